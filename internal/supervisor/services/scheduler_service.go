// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package services

import (
	"context"
	"fmt"
)

// StartStopManager matches the scheduler.Manager lifecycle.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts the scheduler's Start/Stop lifecycle to
// suture's Serve pattern: Start spawns the tenant loops, Serve blocks
// until cancellation, Stop waits for in-flight runs to drain.
type SchedulerService struct {
	manager StartStopManager
}

// NewSchedulerService wraps the scheduler as a supervised service.
func NewSchedulerService(manager StartStopManager) *SchedulerService {
	return &SchedulerService{manager: manager}
}

// Serve implements suture.Service. A Start failure is returned so
// suture restarts the service with backoff.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *SchedulerService) String() string {
	return "scheduler"
}

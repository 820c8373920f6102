// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backupwiz/backupwiz/internal/config"
	"github.com/backupwiz/backupwiz/internal/logging"
	"github.com/backupwiz/backupwiz/internal/models"
)

// Runner executes one reconciliation run for a tenant's sync stream.
// Satisfied by *reconcile.Engine.
type Runner interface {
	Run(ctx context.Context, tenant config.TenantConfig, syncType models.SyncType) error
}

// Manager schedules reconciliation runs across all enabled tenants.
type Manager struct {
	runner  Runner
	cfg     config.SyncConfig
	tenants []config.TenantConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	lastRunMu sync.RWMutex
	lastRun   map[string]time.Time
}

// NewManager creates a scheduler over the given tenants.
func NewManager(runner Runner, cfg config.SyncConfig, tenants []config.TenantConfig) *Manager {
	return &Manager{
		runner:   runner,
		cfg:      cfg,
		tenants:  tenants,
		stopChan: make(chan struct{}),
		lastRun:  make(map[string]time.Time),
	}
}

// Start launches one loop per enabled tenant. Goroutines are added to
// the WaitGroup before starting so Stop cannot race the launches.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	m.running = true
	m.mu.Unlock()

	started := 0
	for _, tenant := range m.tenants {
		if !tenant.Enabled {
			logging.Info().Str("tenant", tenant.ID).Msg("Tenant disabled, skipping")
			continue
		}
		m.wg.Add(1)
		go m.tenantLoop(ctx, tenant)
		started++
	}

	logging.Info().
		Int("tenants", started).
		Dur("interval", m.cfg.Interval).
		Msg("Scheduler started")
	return nil
}

// Stop signals every loop and waits for in-flight runs to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Scheduler stopped")
	return nil
}

// LastRunTime returns when the tenant's streams last finished a pass.
func (m *Manager) LastRunTime(tenantID string) time.Time {
	m.lastRunMu.RLock()
	defer m.lastRunMu.RUnlock()
	return m.lastRun[tenantID]
}

// tenantInterval is the tenant's own interval when set, else the
// global one.
func (m *Manager) tenantInterval(tenant config.TenantConfig) time.Duration {
	if tenant.Interval > 0 {
		return tenant.Interval
	}
	return m.cfg.Interval
}

// tenantLoop runs an immediate pass and then one per interval until
// stopped.
func (m *Manager) tenantLoop(ctx context.Context, tenant config.TenantConfig) {
	defer m.wg.Done()

	m.runTenant(ctx, tenant)

	ticker := time.NewTicker(m.tenantInterval(tenant))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.runTenant(ctx, tenant)
		}
	}
}

// runTenant walks the tenant's sync streams in order. Each stream gets
// its own wall-clock budget; a failed stream is logged and the pass
// moves on, since the engine already recorded it on the checkpoint.
func (m *Manager) runTenant(ctx context.Context, tenant config.TenantConfig) {
	for _, name := range tenant.Sync {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		default:
		}

		syncType := models.SyncType(name)
		runCtx, cancel := context.WithTimeout(ctx, m.cfg.RunTimeout)
		err := m.runner.Run(runCtx, tenant, syncType)
		cancel()

		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn().
				Str("tenant", tenant.ID).
				Str("sync_type", name).
				Str("error", logging.RedactError(err.Error())).
				Msg("Sync run failed")
		}
	}

	m.lastRunMu.Lock()
	m.lastRun[tenant.ID] = time.Now()
	m.lastRunMu.Unlock()
}

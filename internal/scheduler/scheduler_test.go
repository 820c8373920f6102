// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/backupwiz/backupwiz/internal/config"
	"github.com/backupwiz/backupwiz/internal/models"
)

// recordingRunner captures every run it is asked to perform.
type recordingRunner struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (r *recordingRunner) Run(_ context.Context, tenant config.TenantConfig, syncType models.SyncType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, tenant.ID+"/"+string(syncType))
	return r.err
}

func (r *recordingRunner) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.runs))
	copy(out, r.runs)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Interval:   50 * time.Millisecond,
		RunTimeout: time.Second,
	}
}

func TestStartRunsEnabledTenantsImmediately(t *testing.T) {
	runner := &recordingRunner{}
	tenants := []config.TenantConfig{
		{ID: "acme", Enabled: true, Sync: []string{"extensions", "messages"}},
		{ID: "globex", Enabled: false, Sync: []string{"messages"}},
	}
	m := NewManager(runner, testSyncConfig(), tenants)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	waitFor(t, time.Second, func() bool { return len(runner.snapshot()) >= 2 })

	runs := runner.snapshot()
	if runs[0] != "acme/extensions" || runs[1] != "acme/messages" {
		t.Errorf("runs = %v, want acme streams in configured order", runs[:2])
	}
	for _, run := range runs {
		if run == "globex/messages" {
			t.Error("disabled tenant was scheduled")
		}
	}
}

func TestTicksScheduleRepeatedPasses(t *testing.T) {
	runner := &recordingRunner{}
	tenants := []config.TenantConfig{
		{ID: "acme", Enabled: true, Sync: []string{"messages"}},
	}
	m := NewManager(runner, testSyncConfig(), tenants)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	waitFor(t, 2*time.Second, func() bool { return len(runner.snapshot()) >= 3 })

	if m.LastRunTime("acme").IsZero() {
		t.Error("LastRunTime not recorded")
	}
}

func TestRunFailuresDoNotStopTheLoop(t *testing.T) {
	runner := &recordingRunner{err: errors.New("tunnel down")}
	tenants := []config.TenantConfig{
		{ID: "acme", Enabled: true, Sync: []string{"messages", "call_logs"}},
	}
	m := NewManager(runner, testSyncConfig(), tenants)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	// Both streams of the pass still run, and later passes still happen.
	waitFor(t, 2*time.Second, func() bool { return len(runner.snapshot()) >= 4 })
}

func TestStopWaitsForLoops(t *testing.T) {
	runner := &recordingRunner{}
	tenants := []config.TenantConfig{
		{ID: "acme", Enabled: true, Sync: []string{"messages"}},
	}
	m := NewManager(runner, testSyncConfig(), tenants)

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(runner.snapshot()) >= 1 })

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); err == nil {
		t.Error("second Stop should report not running")
	}

	before := len(runner.snapshot())
	time.Sleep(120 * time.Millisecond)
	if after := len(runner.snapshot()); after != before {
		t.Errorf("runs continued after Stop: %d -> %d", before, after)
	}
}

func TestStartTwiceFails(t *testing.T) {
	m := NewManager(&recordingRunner{}, testSyncConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if err := m.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
}

func TestPerTenantIntervalOverride(t *testing.T) {
	runner := &recordingRunner{}
	cfg := config.SyncConfig{Interval: time.Hour, RunTimeout: time.Second}
	tenants := []config.TenantConfig{
		{ID: "fast", Enabled: true, Sync: []string{"messages"}, Interval: 30 * time.Millisecond},
		{ID: "slow", Enabled: true, Sync: []string{"messages"}},
	}
	m := NewManager(runner, cfg, tenants)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	count := func(id string) int {
		n := 0
		for _, run := range runner.snapshot() {
			if run == id+"/messages" {
				n++
			}
		}
		return n
	}

	// The fast tenant re-runs on its own interval; the slow tenant only
	// gets the immediate startup pass inside this window.
	waitFor(t, 2*time.Second, func() bool { return count("fast") >= 3 })
	if got := count("slow"); got != 1 {
		t.Errorf("slow tenant ran %d times, want 1", got)
	}
}

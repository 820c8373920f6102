// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/backupwiz/backupwiz/internal/checkpoint"
	"github.com/backupwiz/backupwiz/internal/config"
	"github.com/backupwiz/backupwiz/internal/logging"
	"github.com/backupwiz/backupwiz/internal/metrics"
	"github.com/backupwiz/backupwiz/internal/models"
	"github.com/backupwiz/backupwiz/internal/remote"
	"github.com/backupwiz/backupwiz/internal/sink"
	"github.com/backupwiz/backupwiz/internal/tunnel"
)

// Engine runs reconciliation for (tenant, sync type) pairs. One engine
// serves all tenants; per-tenant breakers and rate limiters keep a
// misbehaving customer host from affecting the rest.
type Engine struct {
	opener      Opener
	archive     sink.Archive
	objects     sink.ObjectStore
	checkpoints checkpoint.Store
	cfg         config.SyncConfig

	mu       sync.Mutex
	controls map[string]*tenantControls
}

type tenantControls struct {
	breaker *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
}

// New builds an engine. All collaborators are required.
func New(opener Opener, archive sink.Archive, objects sink.ObjectStore, checkpoints checkpoint.Store, cfg config.SyncConfig) *Engine {
	return &Engine{
		opener:      opener,
		archive:     archive,
		objects:     objects,
		checkpoints: checkpoints,
		cfg:         cfg,
		controls:    make(map[string]*tenantControls),
	}
}

func (e *Engine) tenantControls(tenantID string) *tenantControls {
	e.mu.Lock()
	defer e.mu.Unlock()
	tc, ok := e.controls[tenantID]
	if !ok {
		qps := e.cfg.QueriesPerSecond
		if qps <= 0 {
			qps = 10
		}
		tc = &tenantControls{
			breaker: newBreaker("remote-" + tenantID),
			limiter: rate.NewLimiter(rate.Limit(qps), 1),
		}
		e.controls[tenantID] = tc
	}
	return tc
}

// runStats accumulates per-run counters for the checkpoint commit.
type runStats struct {
	synced int64
	failed int64
}

// Run executes one reconciliation run. Checkpoint contention is not an
// error: another worker owns the pair and this call returns nil without
// work. Everything else either commits an advanced cursor or records the
// failure on the checkpoint before returning.
func (e *Engine) Run(ctx context.Context, tenant config.TenantConfig, syncType models.SyncType) error {
	start := time.Now()
	ctx = logging.WithRunID(ctx, logging.NewRunID())
	log := logging.Ctx(ctx).With().
		Str("tenant", tenant.ID).
		Str("sync_type", string(syncType)).
		Logger()

	token, err := e.checkpoints.BeginRun(ctx, tenant.ID, syncType)
	if err != nil {
		if errors.Is(err, checkpoint.ErrRunInProgress) {
			metrics.CheckpointContention.WithLabelValues(tenant.ID, string(syncType)).Inc()
			metrics.RecordSyncRun(tenant.ID, string(syncType), "contended", time.Since(start), 0, 0)
			log.Debug().Msg("Run already in progress, skipping")
			return nil
		}
		return fmt.Errorf("begin run: %w", err)
	}

	cp, err := e.checkpoints.Get(ctx, tenant.ID, syncType)
	if err != nil {
		e.recordFailure(ctx, token, err, &runStats{}, start)
		return err
	}
	cursor := cp.Cursor
	log.Info().Stringer("cursor", cursor).Msg("Sync run started")

	src, err := e.opener.Open(ctx, tenant)
	if err != nil {
		log.Error().Err(logging.RedactErr(err)).Msg("Remote connection failed")
		e.recordFailure(ctx, token, err, &runStats{}, start)
		return err
	}
	defer src.Close()

	stats := &runStats{}
	cursor, runErr := e.syncPages(ctx, src, tenant, syncType, cursor, stats)
	if runErr != nil {
		log.Error().Err(logging.RedactErr(runErr)).
			Int64("items_synced", stats.synced).
			Int64("items_failed", stats.failed).
			Msg("Sync run failed")
		e.recordFailure(ctx, token, runErr, stats, start)
		return runErr
	}

	if err := e.checkpoints.CommitRun(ctx, token, cursor, stats.synced, stats.failed); err != nil {
		log.Error().Err(err).Msg("Checkpoint commit failed")
		return fmt.Errorf("commit run: %w", err)
	}

	metrics.RecordSyncRun(tenant.ID, string(syncType), "success", time.Since(start), stats.synced, stats.failed)
	log.Info().
		Stringer("cursor", cursor).
		Int64("items_synced", stats.synced).
		Int64("items_failed", stats.failed).
		Dur("duration", time.Since(start)).
		Msg("Sync run complete")
	return nil
}

// recordFailure marks the checkpoint failed. It runs on a detached
// context: a cancelled or timed-out run must still write its outcome so
// the pair is never stuck "running" until staleness reclaim.
func (e *Engine) recordFailure(ctx context.Context, token checkpoint.RunToken, runErr error, stats *runStats, start time.Time) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := e.checkpoints.FailRun(detached, token, runErr, stats.synced, stats.failed); err != nil {
		logging.Error().Err(err).
			Str("tenant", token.TenantID).
			Str("sync_type", string(token.SyncType)).
			Msg("Failed to record run failure on checkpoint")
	}
	metrics.RecordSyncRun(token.TenantID, string(token.SyncType), "error", time.Since(start), stats.synced, stats.failed)
}

// syncPages dispatches to the per-type page loop.
func (e *Engine) syncPages(ctx context.Context, src Source, tenant config.TenantConfig, syncType models.SyncType, cursor models.Cursor, stats *runStats) (models.Cursor, error) {
	switch syncType {
	case models.SyncMessages:
		return e.syncMessages(ctx, src, tenant, cursor, stats)
	case models.SyncExtensions:
		return e.syncExtensions(ctx, src, tenant, cursor, stats)
	case models.SyncCallLogs:
		return e.syncCallLogs(ctx, src, tenant, cursor, stats)
	case models.SyncRecordings:
		return e.syncRecordings(ctx, src, tenant, cursor, stats)
	case models.SyncVoicemails:
		return e.syncVoicemails(ctx, src, tenant, cursor, stats)
	case models.SyncFaxes:
		return e.syncFaxes(ctx, src, tenant, cursor, stats)
	default:
		return cursor, fmt.Errorf("unknown sync type %q", syncType)
	}
}

// retryWithBackoff executes fn with exponential backoff. Waits are
// cancellable; auth failures are terminal and never retried.
func (e *Engine) retryWithBackoff(ctx context.Context, fn func() error) error {
	attempts := e.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := e.cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		if attempt < attempts-1 {
			logging.Warn().Err(logging.RedactErr(err)).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("delay", delay).
				Msg("Retrying remote fetch")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// retryable reports whether an error is worth another attempt. Rejected
// credentials and open breakers are not: retrying cannot change them
// within one run.
func retryable(err error) bool {
	switch {
	case errors.Is(err, tunnel.ErrAuth),
		errors.Is(err, remote.ErrDatabaseAuth),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// fetchPage pulls one page through the tenant's rate limiter, circuit
// breaker, and the retry policy.
func fetchPage[T any](ctx context.Context, e *Engine, tenantID string, fn func() ([]T, []*remote.RowError, error)) ([]T, []*remote.RowError, error) {
	tc := e.tenantControls(tenantID)

	type page struct {
		rows    []T
		rowErrs []*remote.RowError
	}

	var result page
	err := e.retryWithBackoff(ctx, func() error {
		if err := tc.limiter.Wait(ctx); err != nil {
			return err
		}
		v, err := tc.breaker.Execute(func() (any, error) {
			rows, rowErrs, err := fn()
			if err != nil {
				return nil, err
			}
			return page{rows: rows, rowErrs: rowErrs}, nil
		})
		if err != nil {
			return err
		}
		result = v.(page)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result.rows, result.rowErrs, nil
}

// writeRow retries a sink write a bounded number of times before giving
// the row up as failed. Only archive write errors are retried; anything
// else propagates immediately.
func (e *Engine) writeRow(ctx context.Context, fn func() error) error {
	retries := e.cfg.SinkRetries
	if retries <= 0 {
		retries = 1
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var we *sink.WriteError
		if !errors.As(err, &we) {
			return err
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// countRowErrors logs and tallies decode failures from a fetched page.
func countRowErrors(rowErrs []*remote.RowError, stats *runStats, tenantID string) {
	for _, re := range rowErrs {
		logging.Warn().Err(re).Str("tenant", tenantID).Msg("Row rejected during decode")
		stats.failed++
	}
}

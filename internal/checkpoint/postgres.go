// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backupwiz/backupwiz/internal/models"
)

// checkpointSchema creates the checkpoint table on first use. The sync
// path introduces no other persisted state.
const checkpointSchema = `
CREATE TABLE IF NOT EXISTS sync_checkpoints (
	tenant_id       TEXT        NOT NULL,
	sync_type       TEXT        NOT NULL,
	status          TEXT        NOT NULL DEFAULT 'idle',
	run_id          UUID,
	cursor_ts       TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	cursor_id       BIGINT      NOT NULL DEFAULT 0,
	last_sync_at    TIMESTAMPTZ,
	last_success_at TIMESTAMPTZ,
	last_error      TEXT,
	last_error_at   TIMESTAMPTZ,
	items_synced    BIGINT      NOT NULL DEFAULT 0,
	items_failed    BIGINT      NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, sync_type)
)`

// PostgresStore persists checkpoints in the archive database.
type PostgresStore struct {
	pool       *pgxpool.Pool
	staleAfter time.Duration
}

// NewPostgresStore creates a checkpoint store over an existing pool and
// ensures the checkpoint table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, checkpointSchema); err != nil {
		return nil, fmt.Errorf("ensure checkpoint schema: %w", err)
	}
	return &PostgresStore{pool: pool, staleAfter: DefaultStaleAfter}, nil
}

// SetStaleAfter overrides the staleness threshold.
func (s *PostgresStore) SetStaleAfter(d time.Duration) {
	s.staleAfter = d
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, tenantID string, syncType models.SyncType) (models.SyncCheckpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, sync_type, status, cursor_ts, cursor_id,
		       last_sync_at, last_success_at, last_error, last_error_at,
		       items_synced, items_failed
		FROM sync_checkpoints
		WHERE tenant_id = $1 AND sync_type = $2`,
		tenantID, string(syncType))

	cp, err := scanCheckpoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SyncCheckpoint{
			TenantID: tenantID,
			SyncType: syncType,
			Status:   models.RunStatusIdle,
		}, nil
	}
	if err != nil {
		return models.SyncCheckpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, tenantID string) ([]models.SyncCheckpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, sync_type, status, cursor_ts, cursor_id,
		       last_sync_at, last_success_at, last_error, last_error_at,
		       items_synced, items_failed
		FROM sync_checkpoints
		WHERE tenant_id = $1
		ORDER BY sync_type`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []models.SyncCheckpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("list checkpoints: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// BeginRun implements Store. The claim is one conditional upsert: it wins
// when no row exists, the row is not running, or the running row has gone
// stale. Losing the conditional race reports ErrRunInProgress.
func (s *PostgresStore) BeginRun(ctx context.Context, tenantID string, syncType models.SyncType) (RunToken, error) {
	runID := uuid.New()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sync_checkpoints (tenant_id, sync_type, status, run_id, last_sync_at)
		VALUES ($1, $2, 'running', $3, now())
		ON CONFLICT (tenant_id, sync_type) DO UPDATE
		SET status = 'running', run_id = $3, last_sync_at = now()
		WHERE sync_checkpoints.status <> 'running'
		   OR sync_checkpoints.last_sync_at < now() - make_interval(secs => $4)`,
		tenantID, string(syncType), runID, s.staleAfter.Seconds())
	if err != nil {
		return RunToken{}, fmt.Errorf("begin run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return RunToken{}, ErrRunInProgress
	}

	return RunToken{ID: runID, TenantID: tenantID, SyncType: syncType}, nil
}

// CommitRun implements Store. The cursor columns only move forward; the
// row-wise comparison keeps the (timestamp, id) pair atomic.
func (s *PostgresStore) CommitRun(ctx context.Context, token RunToken, cursor models.Cursor, itemsSynced, itemsFailed int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_checkpoints
		SET status = 'success',
		    last_success_at = now(),
		    items_synced = $4,
		    items_failed = $5,
		    cursor_ts = CASE WHEN (cursor_ts, cursor_id) < ($6, $7) THEN $6 ELSE cursor_ts END,
		    cursor_id = CASE WHEN (cursor_ts, cursor_id) < ($6, $7) THEN $7 ELSE cursor_id END
		WHERE tenant_id = $1 AND sync_type = $2 AND run_id = $3 AND status = 'running'`,
		token.TenantID, string(token.SyncType), token.ID,
		itemsSynced, itemsFailed, cursor.Timestamp, cursor.ID)
	if err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownRun
	}
	return nil
}

// FailRun implements Store. The cursor is deliberately untouched.
func (s *PostgresStore) FailRun(ctx context.Context, token RunToken, runErr error, itemsSyncedSoFar, itemsFailed int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_checkpoints
		SET status = 'error',
		    last_error = $4,
		    last_error_at = now(),
		    items_synced = $5,
		    items_failed = $6
		WHERE tenant_id = $1 AND sync_type = $2 AND run_id = $3 AND status = 'running'`,
		token.TenantID, string(token.SyncType), token.ID,
		runErr.Error(), itemsSyncedSoFar, itemsFailed)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownRun
	}
	return nil
}

// scanCheckpoint reads one checkpoint row in the shared column order.
func scanCheckpoint(row pgx.Row) (models.SyncCheckpoint, error) {
	var (
		cp       models.SyncCheckpoint
		syncType string
		status   string
		cursorTS time.Time
	)
	err := row.Scan(
		&cp.TenantID, &syncType, &status, &cursorTS, &cp.Cursor.ID,
		&cp.LastSyncAt, &cp.LastSuccessAt, &cp.LastError, &cp.LastErrorAt,
		&cp.ItemsSynced, &cp.ItemsFailed,
	)
	if err != nil {
		return models.SyncCheckpoint{}, err
	}
	cp.SyncType = models.SyncType(syncType)
	cp.Status = models.RunStatus(status)
	// 'epoch' sentinel maps back to the zero cursor.
	if !cursorTS.Equal(time.Unix(0, 0)) || cp.Cursor.ID != 0 {
		cp.Cursor.Timestamp = cursorTS
	}
	return cp, nil
}

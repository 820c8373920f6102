// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/backupwiz/backupwiz/internal/models"
)

// DefaultStaleAfter is how long a "running" checkpoint may sit untouched
// before it is considered abandoned and reclaimable by a new run.
const DefaultStaleAfter = time.Hour

var (
	// ErrRunInProgress means a non-stale run already holds this
	// (tenant, sync type) pair.
	ErrRunInProgress = errors.New("sync run already in progress")

	// ErrUnknownRun means the token does not match the current run,
	// usually because a stale run was reclaimed underneath it.
	ErrUnknownRun = errors.New("run token does not match current run")
)

// RunToken proves ownership of one claimed run. Commit and Fail only apply
// when the token still matches the stored run id.
type RunToken struct {
	ID       uuid.UUID
	TenantID string
	SyncType models.SyncType
}

// Store is the checkpoint persistence contract consumed by the
// reconciliation engine and the status API.
type Store interface {
	// Get returns the checkpoint for (tenant, sync type); a never-synced
	// pair yields an idle checkpoint with the zero cursor.
	Get(ctx context.Context, tenantID string, syncType models.SyncType) (models.SyncCheckpoint, error)

	// List returns all checkpoints for a tenant, for the status views.
	List(ctx context.Context, tenantID string) ([]models.SyncCheckpoint, error)

	// BeginRun claims exclusive ownership of (tenant, sync type) or
	// returns ErrRunInProgress.
	BeginRun(ctx context.Context, tenantID string, syncType models.SyncType) (RunToken, error)

	// CommitRun records a successful run and advances the cursor
	// (monotonically; a backwards cursor is ignored in favor of the
	// stored one).
	CommitRun(ctx context.Context, token RunToken, cursor models.Cursor, itemsSynced, itemsFailed int64) error

	// FailRun records the error and item counts, leaving the cursor at
	// its prior value.
	FailRun(ctx context.Context, token RunToken, runErr error, itemsSyncedSoFar, itemsFailed int64) error
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package models

import (
	"fmt"
	"time"
)

// SyncType identifies one incremental sync stream for a tenant.
type SyncType string

// Sync streams pulled from a 3CX deployment. Not every stream exists on
// every 3CX version; missing source tables are treated as empty streams.
const (
	SyncMessages   SyncType = "messages"
	SyncExtensions SyncType = "extensions"
	SyncCallLogs   SyncType = "call_logs"
	SyncRecordings SyncType = "recordings"
	SyncVoicemails SyncType = "voicemails"
	SyncFaxes      SyncType = "faxes"
)

// AllSyncTypes lists every stream in scheduling order. Extensions come
// first so message reconciliation can classify senders against a current
// extension set.
var AllSyncTypes = []SyncType{
	SyncExtensions,
	SyncMessages,
	SyncCallLogs,
	SyncRecordings,
	SyncVoicemails,
	SyncFaxes,
}

// RunStatus is the lifecycle state of a checkpoint.
type RunStatus string

const (
	RunStatusIdle    RunStatus = "idle"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// Cursor marks the last successfully synced remote row as a
// (timestamp, remote id) pair. The zero Cursor means "sync from the
// beginning of time".
type Cursor struct {
	Timestamp time.Time `json:"timestamp"`
	ID        int64     `json:"id"`
}

// IsZero reports whether the cursor has never advanced.
func (c Cursor) IsZero() bool {
	return c.Timestamp.IsZero() && c.ID == 0
}

// Before reports whether c orders strictly before other, timestamp first,
// remote id as tie-break.
func (c Cursor) Before(other Cursor) bool {
	if c.Timestamp.Before(other.Timestamp) {
		return true
	}
	if c.Timestamp.After(other.Timestamp) {
		return false
	}
	return c.ID < other.ID
}

// String renders the cursor for logs and checkpoint views.
func (c Cursor) String() string {
	if c.IsZero() {
		return "(origin)"
	}
	return fmt.Sprintf("(%s, id=%d)", c.Timestamp.UTC().Format(time.RFC3339), c.ID)
}

// SyncCheckpoint is one row of persisted sync state per (tenant, sync type).
// The cursor only advances on success; a failed run leaves it at the last
// fully-committed position so the next run re-reads from there.
type SyncCheckpoint struct {
	TenantID      string     `json:"tenant_id"`
	SyncType      SyncType   `json:"sync_type"`
	Status        RunStatus  `json:"status"`
	Cursor        Cursor     `json:"cursor"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
	ItemsSynced   int64      `json:"items_synced"`
	ItemsFailed   int64      `json:"items_failed"`
}

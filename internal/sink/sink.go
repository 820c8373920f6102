// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/backupwiz/backupwiz/internal/models"
)

// Archive is the structured half of the sink. Every method is an
// idempotent upsert keyed by (tenant_id, remote_id); callers may retry
// any of them without double-counting.
type Archive interface {
	UpsertConversation(ctx context.Context, c *models.Conversation) error
	UpsertMessage(ctx context.Context, m *models.Message) error
	UpsertParticipant(ctx context.Context, p *models.Participant) error
	UpsertMediaFile(ctx context.Context, f *models.MediaFile) error
	UpsertExtension(ctx context.Context, e *models.Extension) error
	UpsertCallLog(ctx context.Context, c *models.CallLog) error
	UpsertRecording(ctx context.Context, r *models.Recording) error
	UpsertVoicemail(ctx context.Context, v *models.Voicemail) error
	UpsertFax(ctx context.Context, f *models.Fax) error

	// RefreshConversationAggregates recomputes message_count,
	// participant_count and the first/last message timestamps from the
	// archived rows themselves. Recomputation (rather than incrementing)
	// keeps the aggregates correct when a page is replayed.
	RefreshConversationAggregates(ctx context.Context, tenantID string, conversationID int64) error

	// Conversation returns the archived conversation or nil when the
	// pair has never been synced.
	Conversation(ctx context.Context, tenantID string, remoteID int64) (*models.Conversation, error)

	// ExtensionNumbers returns the set of archived extension numbers for
	// a tenant, used to classify message senders as internal or external.
	ExtensionNumbers(ctx context.Context, tenantID string) (map[string]struct{}, error)
}

// ObjectStore is the payload half of the sink. Put streams a media
// payload and returns the storage reference to record in the archive.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// WriteError wraps a failed archive write with the table it targeted.
// Reconciliation treats these as transient and retries a bounded number
// of times before failing the run.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("archive write %s: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func writeErr(table string, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Table: table, Err: err}
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backupwiz/backupwiz/internal/models"
)

// archiveSchema creates the archive tables. Natural keys are
// (tenant_id, remote_id) except participants, which the source system
// never modeled as rows and which are keyed by their synthesized
// identity (tenant, conversation, identifier).
const archiveSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	tenant_id         TEXT        NOT NULL,
	remote_id         BIGINT      NOT NULL,
	provider          TEXT        NOT NULL DEFAULT '',
	subject           TEXT,
	is_group_chat     BOOLEAN     NOT NULL DEFAULT FALSE,
	is_external       BOOLEAN     NOT NULL DEFAULT FALSE,
	participant_count INTEGER     NOT NULL DEFAULT 0,
	message_count     BIGINT      NOT NULL DEFAULT 0,
	first_message_at  TIMESTAMPTZ,
	last_message_at   TIMESTAMPTZ,
	PRIMARY KEY (tenant_id, remote_id)
);

CREATE TABLE IF NOT EXISTS messages (
	tenant_id       TEXT        NOT NULL,
	remote_id       BIGINT      NOT NULL,
	conversation_id BIGINT      NOT NULL,
	sender          TEXT        NOT NULL,
	sender_name     TEXT,
	content         TEXT        NOT NULL DEFAULT '',
	message_type    TEXT        NOT NULL DEFAULT 'text',
	sent_at         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, remote_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages (tenant_id, conversation_id, sent_at);

CREATE TABLE IF NOT EXISTS participants (
	tenant_id       TEXT        NOT NULL,
	conversation_id BIGINT      NOT NULL,
	identifier      TEXT        NOT NULL,
	display_name    TEXT,
	kind            TEXT        NOT NULL,
	joined_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, conversation_id, identifier)
);

CREATE TABLE IF NOT EXISTS media_files (
	tenant_id       TEXT        NOT NULL,
	remote_id       BIGINT      NOT NULL,
	file_name       TEXT        NOT NULL,
	content_type    TEXT,
	size_bytes      BIGINT,
	storage_ref     TEXT        NOT NULL,
	message_id      BIGINT,
	conversation_id BIGINT,
	created_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, remote_id)
);

CREATE TABLE IF NOT EXISTS extensions (
	tenant_id  TEXT   NOT NULL,
	remote_id  BIGINT NOT NULL,
	number     TEXT   NOT NULL,
	first_name TEXT,
	last_name  TEXT,
	email      TEXT,
	PRIMARY KEY (tenant_id, remote_id)
);

CREATE TABLE IF NOT EXISTS call_logs (
	tenant_id    TEXT        NOT NULL,
	remote_id    BIGINT      NOT NULL,
	call_id      BIGINT,
	caller       TEXT        NOT NULL,
	callee       TEXT        NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	answered_at  TIMESTAMPTZ,
	ended_at     TIMESTAMPTZ,
	duration_sec INTEGER,
	direction    TEXT,
	PRIMARY KEY (tenant_id, remote_id)
);

CREATE TABLE IF NOT EXISTS recordings (
	tenant_id   TEXT        NOT NULL,
	remote_id   BIGINT      NOT NULL,
	call_id     BIGINT,
	extension   TEXT,
	file_name   TEXT        NOT NULL,
	storage_ref TEXT        NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, remote_id)
);

CREATE TABLE IF NOT EXISTS voicemails (
	tenant_id   TEXT        NOT NULL,
	remote_id   BIGINT      NOT NULL,
	extension   TEXT        NOT NULL,
	caller_id   TEXT,
	file_name   TEXT        NOT NULL,
	storage_ref TEXT        NOT NULL,
	received_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, remote_id)
);

CREATE TABLE IF NOT EXISTS faxes (
	tenant_id   TEXT        NOT NULL,
	remote_id   BIGINT      NOT NULL,
	sender      TEXT,
	recipient   TEXT,
	file_name   TEXT        NOT NULL,
	storage_ref TEXT        NOT NULL,
	received_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, remote_id)
);
`

// PostgresArchive implements Archive on a local PostgreSQL database.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive ensures the archive schema exists and returns the
// archive. The pool is owned by the caller.
func NewPostgresArchive(ctx context.Context, pool *pgxpool.Pool) (*PostgresArchive, error) {
	if _, err := pool.Exec(ctx, archiveSchema); err != nil {
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}
	return &PostgresArchive{pool: pool}, nil
}

func (a *PostgresArchive) UpsertConversation(ctx context.Context, c *models.Conversation) error {
	// Aggregate columns are deliberately not overwritten on conflict:
	// RefreshConversationAggregates owns them and a replayed conversation
	// row must never zero out counts computed from archived messages.
	_, err := a.pool.Exec(ctx, `
		INSERT INTO conversations (
			tenant_id, remote_id, provider, subject, is_group_chat, is_external
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, remote_id) DO UPDATE SET
			provider      = EXCLUDED.provider,
			subject       = EXCLUDED.subject,
			is_group_chat = EXCLUDED.is_group_chat,
			is_external   = EXCLUDED.is_external`,
		c.TenantID, c.RemoteID, c.Provider, c.Subject, c.IsGroupChat, c.IsExternal)
	return writeErr("conversations", err)
}

func (a *PostgresArchive) UpsertMessage(ctx context.Context, m *models.Message) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO messages (
			tenant_id, remote_id, conversation_id, sender, sender_name,
			content, message_type, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, remote_id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			sender          = EXCLUDED.sender,
			sender_name     = EXCLUDED.sender_name,
			content         = EXCLUDED.content,
			message_type    = EXCLUDED.message_type,
			sent_at         = EXCLUDED.sent_at`,
		m.TenantID, m.RemoteID, m.ConversationID, m.Sender, m.SenderName,
		m.Content, string(m.MessageType), m.SentAt)
	return writeErr("messages", err)
}

func (a *PostgresArchive) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	// joined_at keeps the earliest observation: a participant's first
	// message timestamp only ever moves backwards as older pages land.
	_, err := a.pool.Exec(ctx, `
		INSERT INTO participants (
			tenant_id, conversation_id, identifier, display_name, kind, joined_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, conversation_id, identifier) DO UPDATE SET
			display_name = COALESCE(EXCLUDED.display_name, participants.display_name),
			kind         = EXCLUDED.kind,
			joined_at    = LEAST(participants.joined_at, EXCLUDED.joined_at)`,
		p.TenantID, p.ConversationID, p.Identifier, p.DisplayName, string(p.Kind), p.JoinedAt)
	return writeErr("participants", err)
}

func (a *PostgresArchive) UpsertMediaFile(ctx context.Context, f *models.MediaFile) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO media_files (
			tenant_id, remote_id, file_name, content_type, size_bytes,
			storage_ref, message_id, conversation_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, remote_id) DO UPDATE SET
			file_name       = EXCLUDED.file_name,
			content_type    = EXCLUDED.content_type,
			size_bytes      = EXCLUDED.size_bytes,
			storage_ref     = EXCLUDED.storage_ref,
			message_id      = COALESCE(EXCLUDED.message_id, media_files.message_id),
			conversation_id = COALESCE(EXCLUDED.conversation_id, media_files.conversation_id),
			created_at      = EXCLUDED.created_at`,
		f.TenantID, f.RemoteID, f.FileName, f.ContentType, f.SizeBytes,
		f.StorageRef, f.MessageID, f.ConversationID, f.CreatedAt)
	return writeErr("media_files", err)
}

func (a *PostgresArchive) UpsertExtension(ctx context.Context, e *models.Extension) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO extensions (
			tenant_id, remote_id, number, first_name, last_name, email
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, remote_id) DO UPDATE SET
			number     = EXCLUDED.number,
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name,
			email      = EXCLUDED.email`,
		e.TenantID, e.RemoteID, e.Number, e.FirstName, e.LastName, e.Email)
	return writeErr("extensions", err)
}

func (a *PostgresArchive) UpsertCallLog(ctx context.Context, c *models.CallLog) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO call_logs (
			tenant_id, remote_id, call_id, caller, callee, started_at,
			answered_at, ended_at, duration_sec, direction
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, remote_id) DO UPDATE SET
			call_id      = EXCLUDED.call_id,
			caller       = EXCLUDED.caller,
			callee       = EXCLUDED.callee,
			started_at   = EXCLUDED.started_at,
			answered_at  = EXCLUDED.answered_at,
			ended_at     = EXCLUDED.ended_at,
			duration_sec = EXCLUDED.duration_sec,
			direction    = EXCLUDED.direction`,
		c.TenantID, c.RemoteID, c.CallID, c.Caller, c.Callee, c.StartedAt,
		c.AnsweredAt, c.EndedAt, c.DurationSec, c.Direction)
	return writeErr("call_logs", err)
}

func (a *PostgresArchive) UpsertRecording(ctx context.Context, r *models.Recording) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO recordings (
			tenant_id, remote_id, call_id, extension, file_name, storage_ref, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, remote_id) DO UPDATE SET
			call_id     = EXCLUDED.call_id,
			extension   = EXCLUDED.extension,
			file_name   = EXCLUDED.file_name,
			storage_ref = EXCLUDED.storage_ref,
			recorded_at = EXCLUDED.recorded_at`,
		r.TenantID, r.RemoteID, r.CallID, r.Extension, r.FileName, r.StorageRef, r.RecordedAt)
	return writeErr("recordings", err)
}

func (a *PostgresArchive) UpsertVoicemail(ctx context.Context, v *models.Voicemail) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO voicemails (
			tenant_id, remote_id, extension, caller_id, file_name, storage_ref, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, remote_id) DO UPDATE SET
			extension   = EXCLUDED.extension,
			caller_id   = EXCLUDED.caller_id,
			file_name   = EXCLUDED.file_name,
			storage_ref = EXCLUDED.storage_ref,
			received_at = EXCLUDED.received_at`,
		v.TenantID, v.RemoteID, v.Extension, v.CallerID, v.FileName, v.StorageRef, v.ReceivedAt)
	return writeErr("voicemails", err)
}

func (a *PostgresArchive) UpsertFax(ctx context.Context, f *models.Fax) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO faxes (
			tenant_id, remote_id, sender, recipient, file_name, storage_ref, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, remote_id) DO UPDATE SET
			sender      = EXCLUDED.sender,
			recipient   = EXCLUDED.recipient,
			file_name   = EXCLUDED.file_name,
			storage_ref = EXCLUDED.storage_ref,
			received_at = EXCLUDED.received_at`,
		f.TenantID, f.RemoteID, f.Sender, f.Recipient, f.FileName, f.StorageRef, f.ReceivedAt)
	return writeErr("faxes", err)
}

func (a *PostgresArchive) RefreshConversationAggregates(ctx context.Context, tenantID string, conversationID int64) error {
	_, err := a.pool.Exec(ctx, `
		UPDATE conversations c SET
			message_count     = agg.message_count,
			first_message_at  = agg.first_message_at,
			last_message_at   = agg.last_message_at,
			participant_count = (
				SELECT COUNT(*) FROM participants p
				WHERE p.tenant_id = $1 AND p.conversation_id = $2
			)
		FROM (
			SELECT
				COUNT(*)    AS message_count,
				MIN(sent_at) AS first_message_at,
				MAX(sent_at) AS last_message_at
			FROM messages
			WHERE tenant_id = $1 AND conversation_id = $2
		) agg
		WHERE c.tenant_id = $1 AND c.remote_id = $2`,
		tenantID, conversationID)
	return writeErr("conversations", err)
}

func (a *PostgresArchive) ExtensionNumbers(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT number FROM extensions WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, writeErr("extensions", err)
	}
	defer rows.Close()

	numbers := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, writeErr("extensions", err)
		}
		numbers[n] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr("extensions", err)
	}
	return numbers, nil
}

func (a *PostgresArchive) Conversation(ctx context.Context, tenantID string, remoteID int64) (*models.Conversation, error) {
	var c models.Conversation
	err := a.pool.QueryRow(ctx, `
		SELECT tenant_id, remote_id, provider, subject, is_group_chat, is_external,
		       participant_count, message_count, first_message_at, last_message_at
		FROM conversations
		WHERE tenant_id = $1 AND remote_id = $2`,
		tenantID, remoteID).Scan(
		&c.TenantID, &c.RemoteID, &c.Provider, &c.Subject, &c.IsGroupChat, &c.IsExternal,
		&c.ParticipantCount, &c.MessageCount, &c.FirstMessageAt, &c.LastMessageAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, writeErr("conversations", err)
	}
	return &c, nil
}

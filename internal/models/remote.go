// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package models

import "time"

// RemoteRow is implemented by every remote entity variant so the page loop
// can advance the cursor without knowing the concrete type.
type RemoteRow interface {
	// RowCursor returns the (timestamp, id) position of this row in the
	// remote ordering.
	RowCursor() Cursor
}

// RemoteConversation is a chat conversation row read from a 3CX database.
type RemoteConversation struct {
	ID           int64
	Provider     string
	Subject      *string
	PartyCount   int
	HasExternal  bool
	LastActivity time.Time
}

// RowCursor implements RemoteRow.
func (r RemoteConversation) RowCursor() Cursor {
	return Cursor{Timestamp: r.LastActivity, ID: r.ID}
}

// RemoteMessage is a chat message row read from a 3CX database.
type RemoteMessage struct {
	ID             int64
	ConversationID int64
	Sender         string
	SenderName     *string
	Content        string
	SentAt         time.Time
}

// RowCursor implements RemoteRow.
func (r RemoteMessage) RowCursor() Cursor {
	return Cursor{Timestamp: r.SentAt, ID: r.ID}
}

// RemoteExtension is an extension (internal user) row. Extensions have no
// useful timestamp on older schemas, so the cursor is id-only.
type RemoteExtension struct {
	ID        int64
	Number    string
	FirstName *string
	LastName  *string
	Email     *string
	UpdatedAt time.Time
}

// RowCursor implements RemoteRow.
func (r RemoteExtension) RowCursor() Cursor {
	return Cursor{Timestamp: r.UpdatedAt, ID: r.ID}
}

// RemoteCallLog is one CDR segment row.
type RemoteCallLog struct {
	ID         int64
	CallID     *int64
	Caller     string
	Callee     string
	StartedAt  time.Time
	AnsweredAt *time.Time
	EndedAt    *time.Time
	Direction  *string
}

// RowCursor implements RemoteRow.
func (r RemoteCallLog) RowCursor() Cursor {
	return Cursor{Timestamp: r.StartedAt, ID: r.ID}
}

// RemoteRecording is a call recording row; the payload itself is fetched
// separately and streamed to object storage.
type RemoteRecording struct {
	ID         int64
	CallID     *int64
	Extension  *string
	FileName   string
	RecordedAt time.Time
}

// RowCursor implements RemoteRow.
func (r RemoteRecording) RowCursor() Cursor {
	return Cursor{Timestamp: r.RecordedAt, ID: r.ID}
}

// RemoteVoicemail is a voicemail row.
type RemoteVoicemail struct {
	ID         int64
	Extension  string
	CallerID   *string
	FileName   string
	ReceivedAt time.Time
}

// RowCursor implements RemoteRow.
func (r RemoteVoicemail) RowCursor() Cursor {
	return Cursor{Timestamp: r.ReceivedAt, ID: r.ID}
}

// RemoteFax is a fax row.
type RemoteFax struct {
	ID         int64
	Sender     *string
	Recipient  *string
	FileName   string
	ReceivedAt time.Time
}

// RowCursor implements RemoteRow.
func (r RemoteFax) RowCursor() Cursor {
	return Cursor{Timestamp: r.ReceivedAt, ID: r.ID}
}

// MaxCursor returns the maximum (timestamp, id) position across rows,
// or the zero Cursor for an empty page.
func MaxCursor(rows []RemoteRow) Cursor {
	var max Cursor
	for _, row := range rows {
		if c := row.RowCursor(); max.Before(c) {
			max = c
		}
	}
	return max
}

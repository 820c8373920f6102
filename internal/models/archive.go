// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package models

import "time"

// MessageType classifies archived chat messages. When the source system
// gives no explicit type, classification falls back to filename-extension
// heuristics on the message content.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeAudio MessageType = "audio"
	MessageTypeFile  MessageType = "file"
)

// ParticipantKind distinguishes internal extensions from external parties.
type ParticipantKind string

const (
	ParticipantExtension ParticipantKind = "extension"
	ParticipantExternal  ParticipantKind = "external"
)

// Conversation is the archived counterpart of a 3CX chat conversation.
// The aggregate fields (participant/message counts, first/last message
// timestamps) are recomputed from authoritative counts on every sync so
// re-applying a page never double-counts.
type Conversation struct {
	TenantID         string     `json:"tenant_id"`
	RemoteID         int64      `json:"remote_id"`
	Provider         string     `json:"provider"`
	Subject          *string    `json:"subject,omitempty"`
	IsGroupChat      bool       `json:"is_group_chat"`
	IsExternal       bool       `json:"is_external"`
	ParticipantCount int        `json:"participant_count"`
	MessageCount     int64      `json:"message_count"`
	FirstMessageAt   *time.Time `json:"first_message_at,omitempty"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
}

// Message is an archived chat message, keyed by (tenant_id, remote_id).
type Message struct {
	TenantID       string      `json:"tenant_id"`
	RemoteID       int64       `json:"remote_id"`
	ConversationID int64       `json:"conversation_id"`
	Sender         string      `json:"sender"`
	SenderName     *string     `json:"sender_name,omitempty"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type"`
	SentAt         time.Time   `json:"sent_at"`
}

// Participant is a conversation member. Most participants are synthesized
// during message reconciliation from distinct (conversation, sender) pairs
// the source system never modeled explicitly.
type Participant struct {
	TenantID       string          `json:"tenant_id"`
	ConversationID int64           `json:"conversation_id"`
	Identifier     string          `json:"identifier"`
	DisplayName    *string         `json:"display_name,omitempty"`
	Kind           ParticipantKind `json:"kind"`
	JoinedAt       time.Time       `json:"joined_at"`
}

// MediaFile is an archived media artifact (chat attachment). The message
// linkage is best-effort: established by normalized filename match when the
// source supplies no foreign key, and left empty when the match is ambiguous.
type MediaFile struct {
	TenantID       string    `json:"tenant_id"`
	RemoteID       int64     `json:"remote_id"`
	FileName       string    `json:"file_name"`
	ContentType    *string   `json:"content_type,omitempty"`
	SizeBytes      *int64    `json:"size_bytes,omitempty"`
	StorageRef     string    `json:"storage_ref"`
	MessageID      *int64    `json:"message_id,omitempty"`
	ConversationID *int64    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Extension is an archived 3CX extension (internal phone number).
type Extension struct {
	TenantID  string  `json:"tenant_id"`
	RemoteID  int64   `json:"remote_id"`
	Number    string  `json:"number"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// CallLog is one archived CDR segment.
type CallLog struct {
	TenantID    string     `json:"tenant_id"`
	RemoteID    int64      `json:"remote_id"`
	CallID      *int64     `json:"call_id,omitempty"`
	Caller      string     `json:"caller"`
	Callee      string     `json:"callee"`
	StartedAt   time.Time  `json:"started_at"`
	AnsweredAt  *time.Time `json:"answered_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	DurationSec *int       `json:"duration_sec,omitempty"`
	Direction   *string    `json:"direction,omitempty"`
}

// Recording is an archived call recording with its payload reference.
type Recording struct {
	TenantID   string    `json:"tenant_id"`
	RemoteID   int64     `json:"remote_id"`
	CallID     *int64    `json:"call_id,omitempty"`
	Extension  *string   `json:"extension,omitempty"`
	FileName   string    `json:"file_name"`
	StorageRef string    `json:"storage_ref"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Voicemail is an archived voicemail message with its payload reference.
type Voicemail struct {
	TenantID   string    `json:"tenant_id"`
	RemoteID   int64     `json:"remote_id"`
	Extension  string    `json:"extension"`
	CallerID   *string   `json:"caller_id,omitempty"`
	FileName   string    `json:"file_name"`
	StorageRef string    `json:"storage_ref"`
	ReceivedAt time.Time `json:"received_at"`
}

// Fax is an archived fax document with its payload reference.
type Fax struct {
	TenantID   string    `json:"tenant_id"`
	RemoteID   int64     `json:"remote_id"`
	Sender     *string   `json:"sender,omitempty"`
	Recipient  *string   `json:"recipient,omitempty"`
	FileName   string    `json:"file_name"`
	StorageRef string    `json:"storage_ref"`
	ReceivedAt time.Time `json:"received_at"`
}

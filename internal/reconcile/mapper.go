// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package reconcile

import (
	"hash/fnv"
	"path"
	"strings"
	"time"

	"github.com/backupwiz/backupwiz/internal/models"
)

var messageTypeByExt = map[string]models.MessageType{
	".jpg":  models.MessageTypeImage,
	".jpeg": models.MessageTypeImage,
	".png":  models.MessageTypeImage,
	".gif":  models.MessageTypeImage,
	".webp": models.MessageTypeImage,
	".bmp":  models.MessageTypeImage,
	".mp4":  models.MessageTypeVideo,
	".mov":  models.MessageTypeVideo,
	".avi":  models.MessageTypeVideo,
	".mkv":  models.MessageTypeVideo,
	".webm": models.MessageTypeVideo,
	".wav":  models.MessageTypeAudio,
	".mp3":  models.MessageTypeAudio,
	".ogg":  models.MessageTypeAudio,
	".m4a":  models.MessageTypeAudio,
	".opus": models.MessageTypeAudio,
}

// classifyMessageType derives the message type from its content. 3CX
// stores attachment messages as a bare filename in the content column
// with no type marker, so a content value that looks like a lone
// filename classifies by extension; everything else is text.
func classifyMessageType(content string) models.MessageType {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t\n") {
		return models.MessageTypeText
	}
	ext := strings.ToLower(path.Ext(trimmed))
	if len(ext) < 2 {
		return models.MessageTypeText
	}
	if mt, ok := messageTypeByExt[ext]; ok {
		return mt
	}
	// Dotted single token with an unrecognized extension: a generic
	// file attachment (.pdf, .docx, ...).
	return models.MessageTypeFile
}

// classifyParticipant decides internal vs external against the tenant's
// known extension numbers.
func classifyParticipant(identifier string, extensions map[string]struct{}) models.ParticipantKind {
	if _, ok := extensions[identifier]; ok {
		return models.ParticipantExtension
	}
	return models.ParticipantExternal
}

// mapMessage converts a remote chat message into its archive record.
func mapMessage(tenantID string, r models.RemoteMessage) *models.Message {
	return &models.Message{
		TenantID:       tenantID,
		RemoteID:       r.ID,
		ConversationID: r.ConversationID,
		Sender:         r.Sender,
		SenderName:     r.SenderName,
		Content:        r.Content,
		MessageType:    classifyMessageType(r.Content),
		SentAt:         r.SentAt,
	}
}

// participantFor synthesizes the participant implied by a message. 3CX
// never stored participants as rows; the archive derives them from
// distinct (conversation, sender) pairs, dating membership from the
// sender's earliest observed message.
func participantFor(tenantID string, m *models.Message, extensions map[string]struct{}) *models.Participant {
	return &models.Participant{
		TenantID:       tenantID,
		ConversationID: m.ConversationID,
		Identifier:     m.Sender,
		DisplayName:    m.SenderName,
		Kind:           classifyParticipant(m.Sender, extensions),
		JoinedAt:       m.SentAt,
	}
}

// mapConversation converts a remote conversation row. Aggregate fields
// stay zero here; they are recomputed from archived messages after each
// page lands.
func mapConversation(tenantID string, r models.RemoteConversation) *models.Conversation {
	return &models.Conversation{
		TenantID:    tenantID,
		RemoteID:    r.ID,
		Provider:    r.Provider,
		Subject:     r.Subject,
		IsGroupChat: r.PartyCount > 2,
		IsExternal:  r.HasExternal,
	}
}

func mapExtension(tenantID string, r models.RemoteExtension) *models.Extension {
	return &models.Extension{
		TenantID:  tenantID,
		RemoteID:  r.ID,
		Number:    r.Number,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
	}
}

func mapCallLog(tenantID string, r models.RemoteCallLog) *models.CallLog {
	c := &models.CallLog{
		TenantID:   tenantID,
		RemoteID:   r.ID,
		CallID:     r.CallID,
		Caller:     r.Caller,
		Callee:     r.Callee,
		StartedAt:  r.StartedAt,
		AnsweredAt: r.AnsweredAt,
		EndedAt:    r.EndedAt,
		Direction:  r.Direction,
	}
	if r.AnsweredAt != nil && r.EndedAt != nil {
		d := int(r.EndedAt.Sub(*r.AnsweredAt) / time.Second)
		if d >= 0 {
			c.DurationSec = &d
		}
	}
	return c
}

// normalizeMediaName lowercases a filename and strips its extension, so
// "Photo1.JPG", "photo1.jpg" and "photo1" all normalize identically.
func normalizeMediaName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(lower, path.Ext(lower))
}

// mediaFileID derives a stable archive id for an on-disk artifact that
// has no database row. FNV over the exact stored name keeps replayed
// runs converging on the same record.
func mediaFileID(fileName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fileName))
	return int64(h.Sum64() &^ (1 << 63)) // keep it non-negative
}

// linkAttachments matches on-disk chat files against media-type messages
// by normalized filename. A file linking to exactly one message gets that
// message's id and conversation propagated; zero or multiple candidates
// leave the artifact archived but unlinked.
func linkAttachments(tenantID string, files []string, messages []*models.Message) []*models.MediaFile {
	byName := make(map[string][]*models.Message)
	for _, m := range messages {
		if m.MessageType == models.MessageTypeText {
			continue
		}
		byName[normalizeMediaName(m.Content)] = append(byName[normalizeMediaName(m.Content)], m)
	}

	out := make([]*models.MediaFile, 0, len(files))
	for _, name := range files {
		mf := &models.MediaFile{
			TenantID: tenantID,
			RemoteID: mediaFileID(name),
			FileName: name,
		}
		if candidates := byName[normalizeMediaName(name)]; len(candidates) == 1 {
			msg := candidates[0]
			mf.MessageID = &msg.RemoteID
			mf.ConversationID = &msg.ConversationID
			mf.CreatedAt = msg.SentAt
		}
		out = append(out, mf)
	}
	return out
}

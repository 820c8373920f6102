// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/backupwiz/backupwiz/internal/models"
)

// MemoryArchive is an in-memory Archive used in tests and by the
// dry-run mode, mirroring the upsert semantics of the Postgres archive.
type MemoryArchive struct {
	mu            sync.Mutex
	Conversations map[string]*models.Conversation
	Messages      map[string]*models.Message
	Participants  map[string]*models.Participant
	MediaFiles    map[string]*models.MediaFile
	Extensions    map[string]*models.Extension
	CallLogs      map[string]*models.CallLog
	Recordings    map[string]*models.Recording
	Voicemails    map[string]*models.Voicemail
	Faxes         map[string]*models.Fax

	// FailWrites, when set, makes every upsert return a WriteError.
	FailWrites error
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		Conversations: make(map[string]*models.Conversation),
		Messages:      make(map[string]*models.Message),
		Participants:  make(map[string]*models.Participant),
		MediaFiles:    make(map[string]*models.MediaFile),
		Extensions:    make(map[string]*models.Extension),
		CallLogs:      make(map[string]*models.CallLog),
		Recordings:    make(map[string]*models.Recording),
		Voicemails:    make(map[string]*models.Voicemail),
		Faxes:         make(map[string]*models.Fax),
	}
}

func recordKey(tenantID string, remoteID int64) string {
	return fmt.Sprintf("%s/%d", tenantID, remoteID)
}

func (a *MemoryArchive) UpsertConversation(ctx context.Context, c *models.Conversation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("conversations", a.FailWrites)
	}
	key := recordKey(c.TenantID, c.RemoteID)
	if prev, ok := a.Conversations[key]; ok {
		// Aggregates survive the replayed descriptive row.
		cp := *c
		cp.ParticipantCount = prev.ParticipantCount
		cp.MessageCount = prev.MessageCount
		cp.FirstMessageAt = prev.FirstMessageAt
		cp.LastMessageAt = prev.LastMessageAt
		a.Conversations[key] = &cp
		return nil
	}
	cp := *c
	a.Conversations[key] = &cp
	return nil
}

func (a *MemoryArchive) UpsertMessage(ctx context.Context, m *models.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("messages", a.FailWrites)
	}
	cp := *m
	a.Messages[recordKey(m.TenantID, m.RemoteID)] = &cp
	return nil
}

func (a *MemoryArchive) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("participants", a.FailWrites)
	}
	key := fmt.Sprintf("%s/%d/%s", p.TenantID, p.ConversationID, p.Identifier)
	if prev, ok := a.Participants[key]; ok {
		cp := *p
		if cp.DisplayName == nil {
			cp.DisplayName = prev.DisplayName
		}
		if prev.JoinedAt.Before(cp.JoinedAt) {
			cp.JoinedAt = prev.JoinedAt
		}
		a.Participants[key] = &cp
		return nil
	}
	cp := *p
	a.Participants[key] = &cp
	return nil
}

func (a *MemoryArchive) UpsertMediaFile(ctx context.Context, f *models.MediaFile) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("media_files", a.FailWrites)
	}
	key := recordKey(f.TenantID, f.RemoteID)
	cp := *f
	if prev, ok := a.MediaFiles[key]; ok {
		if cp.MessageID == nil {
			cp.MessageID = prev.MessageID
		}
		if cp.ConversationID == nil {
			cp.ConversationID = prev.ConversationID
		}
	}
	a.MediaFiles[key] = &cp
	return nil
}

func (a *MemoryArchive) UpsertExtension(ctx context.Context, e *models.Extension) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("extensions", a.FailWrites)
	}
	cp := *e
	a.Extensions[recordKey(e.TenantID, e.RemoteID)] = &cp
	return nil
}

func (a *MemoryArchive) UpsertCallLog(ctx context.Context, c *models.CallLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("call_logs", a.FailWrites)
	}
	cp := *c
	a.CallLogs[recordKey(c.TenantID, c.RemoteID)] = &cp
	return nil
}

func (a *MemoryArchive) UpsertRecording(ctx context.Context, r *models.Recording) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("recordings", a.FailWrites)
	}
	cp := *r
	a.Recordings[recordKey(r.TenantID, r.RemoteID)] = &cp
	return nil
}

func (a *MemoryArchive) UpsertVoicemail(ctx context.Context, v *models.Voicemail) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("voicemails", a.FailWrites)
	}
	cp := *v
	a.Voicemails[recordKey(v.TenantID, v.RemoteID)] = &cp
	return nil
}

func (a *MemoryArchive) UpsertFax(ctx context.Context, f *models.Fax) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("faxes", a.FailWrites)
	}
	cp := *f
	a.Faxes[recordKey(f.TenantID, f.RemoteID)] = &cp
	return nil
}

func (a *MemoryArchive) RefreshConversationAggregates(ctx context.Context, tenantID string, conversationID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWrites != nil {
		return writeErr("conversations", a.FailWrites)
	}
	conv, ok := a.Conversations[recordKey(tenantID, conversationID)]
	if !ok {
		return nil
	}

	var (
		count int64
		first *time.Time
		last  *time.Time
	)
	for _, m := range a.Messages {
		if m.TenantID != tenantID || m.ConversationID != conversationID {
			continue
		}
		count++
		sent := m.SentAt
		if first == nil || sent.Before(*first) {
			first = &sent
		}
		if last == nil || sent.After(*last) {
			last = &sent
		}
	}

	var participants int
	for _, p := range a.Participants {
		if p.TenantID == tenantID && p.ConversationID == conversationID {
			participants++
		}
	}

	conv.MessageCount = count
	conv.FirstMessageAt = first
	conv.LastMessageAt = last
	conv.ParticipantCount = participants
	return nil
}

func (a *MemoryArchive) ExtensionNumbers(ctx context.Context, tenantID string) (map[string]struct{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	numbers := make(map[string]struct{})
	for _, e := range a.Extensions {
		if e.TenantID == tenantID {
			numbers[e.Number] = struct{}{}
		}
	}
	return numbers, nil
}

func (a *MemoryArchive) Conversation(ctx context.Context, tenantID string, remoteID int64) (*models.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	conv, ok := a.Conversations[recordKey(tenantID, remoteID)]
	if !ok {
		return nil, nil
	}
	cp := *conv
	return &cp, nil
}

// MemoryObjectStore is an in-memory ObjectStore for tests.
type MemoryObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte

	// FailPuts, when set, makes every Put return it.
	FailPuts error
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{Objects: make(map[string][]byte)}
}

func (s *MemoryObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPuts != nil {
		return "", s.FailPuts
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.Objects[key] = data
	return "mem://" + key, nil
}

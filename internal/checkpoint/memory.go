// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/backupwiz/backupwiz/internal/models"
)

// MemoryStore is an in-memory checkpoint store with the same claim and
// monotonicity semantics as the PostgreSQL store. Used by tests and by
// one-off connection-test runs that never touch the archive.
type MemoryStore struct {
	mu         sync.Mutex
	states     map[storeKey]*memoryState
	staleAfter time.Duration

	// now is swappable so tests can drive staleness.
	now func() time.Time
}

type storeKey struct {
	tenantID string
	syncType models.SyncType
}

type memoryState struct {
	checkpoint models.SyncCheckpoint
	runID      uuid.UUID
	claimedAt  time.Time
}

// NewMemoryStore creates an in-memory store with the default staleness
// threshold.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:     make(map[storeKey]*memoryState),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// SetStaleAfter overrides the staleness threshold (tests).
func (s *MemoryStore) SetStaleAfter(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleAfter = d
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, tenantID string, syncType models.SyncType) (models.SyncCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[storeKey{tenantID, syncType}]
	if !ok {
		return models.SyncCheckpoint{
			TenantID: tenantID,
			SyncType: syncType,
			Status:   models.RunStatusIdle,
		}, nil
	}
	return state.checkpoint, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, tenantID string) ([]models.SyncCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.SyncCheckpoint
	for key, state := range s.states {
		if key.tenantID == tenantID {
			out = append(out, state.checkpoint)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SyncType < out[j].SyncType })
	return out, nil
}

// BeginRun implements Store.
func (s *MemoryStore) BeginRun(_ context.Context, tenantID string, syncType models.SyncType) (RunToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey{tenantID, syncType}
	now := s.now()

	state, ok := s.states[key]
	if !ok {
		state = &memoryState{
			checkpoint: models.SyncCheckpoint{
				TenantID: tenantID,
				SyncType: syncType,
				Status:   models.RunStatusIdle,
			},
		}
		s.states[key] = state
	}

	if state.checkpoint.Status == models.RunStatusRunning && now.Sub(state.claimedAt) < s.staleAfter {
		return RunToken{}, ErrRunInProgress
	}

	token := RunToken{ID: uuid.New(), TenantID: tenantID, SyncType: syncType}
	state.runID = token.ID
	state.claimedAt = now
	state.checkpoint.Status = models.RunStatusRunning
	syncAt := now
	state.checkpoint.LastSyncAt = &syncAt

	return token, nil
}

// CommitRun implements Store.
func (s *MemoryStore) CommitRun(_ context.Context, token RunToken, cursor models.Cursor, itemsSynced, itemsFailed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.owned(token)
	if err != nil {
		return err
	}

	now := s.now()
	cp := &state.checkpoint
	cp.Status = models.RunStatusSuccess
	cp.LastSuccessAt = &now
	cp.ItemsSynced = itemsSynced
	cp.ItemsFailed = itemsFailed
	// Monotonic advance only; a stale or backwards cursor never rewinds
	// committed progress.
	if cp.Cursor.Before(cursor) {
		cp.Cursor = cursor
	}
	return nil
}

// FailRun implements Store.
func (s *MemoryStore) FailRun(_ context.Context, token RunToken, runErr error, itemsSyncedSoFar, itemsFailed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.owned(token)
	if err != nil {
		return err
	}

	now := s.now()
	msg := runErr.Error()
	cp := &state.checkpoint
	cp.Status = models.RunStatusError
	cp.LastError = &msg
	cp.LastErrorAt = &now
	cp.ItemsSynced = itemsSyncedSoFar
	cp.ItemsFailed = itemsFailed
	return nil
}

// owned resolves the state a token still owns.
func (s *MemoryStore) owned(token RunToken) (*memoryState, error) {
	state, ok := s.states[storeKey{token.TenantID, token.SyncType}]
	if !ok || state.runID != token.ID || state.checkpoint.Status != models.RunStatusRunning {
		return nil, ErrUnknownRun
	}
	return state, nil
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// mockServer simulates *http.Server lifecycle behaviour.
type mockServer struct {
	listenErr   error
	shutdownErr error
	shutdown    chan struct{}
	done        chan struct{}
}

func newMockServer() *mockServer {
	return &mockServer{
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *mockServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.shutdown
	close(m.done)
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(_ context.Context) error {
	close(m.shutdown)
	<-m.done
	return m.shutdownErr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	server := newMockServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHTTPServiceListenFailure(t *testing.T) {
	server := newMockServer()
	server.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Errorf("Serve returned %v, want wrapped listen error", err)
	}
}

// startStopRecorder tracks scheduler lifecycle transitions.
type startStopRecorder struct {
	startErr error
	stopped  bool
}

func (r *startStopRecorder) Start(context.Context) error { return r.startErr }
func (r *startStopRecorder) Stop() error                 { r.stopped = true; return nil }

func TestSchedulerServiceLifecycle(t *testing.T) {
	rec := &startStopRecorder{}
	svc := NewSchedulerService(rec)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !rec.stopped {
		t.Error("Stop was not called on shutdown")
	}
}

func TestSchedulerServiceStartFailure(t *testing.T) {
	rec := &startStopRecorder{startErr: errors.New("already running")}
	svc := NewSchedulerService(rec)

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("expected start failure to propagate")
	}
	if rec.stopped {
		t.Error("Stop should not run when Start fails")
	}
}

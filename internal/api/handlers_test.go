// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/backupwiz/backupwiz/internal/checkpoint"
	"github.com/backupwiz/backupwiz/internal/config"
	"github.com/backupwiz/backupwiz/internal/models"
	"github.com/backupwiz/backupwiz/internal/remote"
	"github.com/backupwiz/backupwiz/internal/tunnel"
)

// fakeTester returns a canned result and records the request it saw.
type fakeTester struct {
	result ConnectionTestResult
	seen   *ConnectionTestRequest
}

func (f *fakeTester) Test(_ context.Context, req ConnectionTestRequest) ConnectionTestResult {
	f.seen = &req
	return f.result
}

func testServer(t *testing.T, store checkpoint.Store, tenants []config.TenantConfig, tester ConnectionTester, ready func(context.Context) error) *httptest.Server {
	t.Helper()
	handler := NewHandler(store, tenants, tester, ready)
	srv := httptest.NewServer(NewRouter(handler, nil).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func decodeResponse(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var out APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthLive(t *testing.T) {
	srv := testServer(t, checkpoint.NewMemoryStore(), nil, &fakeTester{}, nil)

	resp, err := http.Get(srv.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	out := decodeResponse(t, resp)
	if out.Status != "success" {
		t.Errorf("status = %q, want success", out.Status)
	}
}

func TestHealthReadyProbeFailure(t *testing.T) {
	ready := func(context.Context) error { return errors.New("connection refused") }
	srv := testServer(t, checkpoint.NewMemoryStore(), nil, &fakeTester{}, ready)

	resp, err := http.Get(srv.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if out.Error == nil || out.Error.Code != CodeInternalError {
		t.Errorf("expected %s error, got %+v", CodeInternalError, out.Error)
	}
}

func TestSyncStatusListsTenants(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	ctx := context.Background()

	token, err := store.BeginRun(ctx, "acme", models.SyncMessages)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.CommitRun(ctx, token, models.Cursor{ID: 42}, 10, 0); err != nil {
		t.Fatalf("CommitRun: %v", err)
	}

	tenants := []config.TenantConfig{
		{ID: "acme", Enabled: true},
		{ID: "globex", Enabled: false},
	}
	srv := testServer(t, store, tenants, &fakeTester{}, nil)

	resp, err := http.Get(srv.URL + "/api/v1/sync/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	out := decodeResponse(t, resp)
	if out.Metadata.Count != 2 {
		t.Fatalf("count = %d, want 2", out.Metadata.Count)
	}

	raw, _ := json.Marshal(out.Data)
	var statuses []TenantStatus
	if err := json.Unmarshal(raw, &statuses); err != nil {
		t.Fatalf("unmarshal statuses: %v", err)
	}
	if statuses[0].TenantID != "acme" || len(statuses[0].Checkpoints) != 1 {
		t.Errorf("acme status = %+v", statuses[0])
	}
	if statuses[0].Checkpoints[0].ItemsSynced != 10 {
		t.Errorf("items_synced = %d, want 10", statuses[0].Checkpoints[0].ItemsSynced)
	}
	if len(statuses[1].Checkpoints) != 0 {
		t.Errorf("globex should have no checkpoints, got %d", len(statuses[1].Checkpoints))
	}
}

func TestSyncStatusTenantFilter(t *testing.T) {
	tenants := []config.TenantConfig{{ID: "acme", Enabled: true}}
	srv := testServer(t, checkpoint.NewMemoryStore(), tenants, &fakeTester{}, nil)

	resp, err := http.Get(srv.URL + "/api/v1/sync/status?tenant=acme")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	out := decodeResponse(t, resp)
	if out.Metadata.Count != 1 {
		t.Errorf("count = %d, want 1", out.Metadata.Count)
	}

	resp, err = http.Get(srv.URL + "/api/v1/sync/status?tenant=nosuch")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestConnectionTestSuccess(t *testing.T) {
	tester := &fakeTester{result: ConnectionTestResult{Success: true}}
	srv := testServer(t, checkpoint.NewMemoryStore(), nil, tester, nil)

	body := `{"host":"pbx.example.com","user":"root","password":"s3cret","db_password":"dbs3cret"}`
	resp, err := http.Post(srv.URL+"/api/v1/connections/test", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decodeResponse(t, resp)

	raw, _ := json.Marshal(out.Data)
	var result ConnectionTestResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Success {
		t.Errorf("success = false, want true")
	}
	if tester.seen == nil || tester.seen.Password != "s3cret" {
		t.Errorf("tester did not receive the credentials")
	}
}

func TestConnectionTestFailureCategory(t *testing.T) {
	tester := &fakeTester{result: ConnectionTestResult{
		Success:  false,
		Category: CategoryDBAuth,
		Message:  "database authentication was rejected",
	}}
	srv := testServer(t, checkpoint.NewMemoryStore(), nil, tester, nil)

	body := `{"host":"203.0.113.5","user":"root","password":"wrong","db_password":"wrong"}`
	resp, err := http.Post(srv.URL+"/api/v1/connections/test", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	out := decodeResponse(t, resp)

	raw, _ := json.Marshal(out.Data)
	var result ConnectionTestResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Category != CategoryDBAuth {
		t.Errorf("category = %q, want %q", result.Category, CategoryDBAuth)
	}
}

func TestConnectionTestValidation(t *testing.T) {
	srv := testServer(t, checkpoint.NewMemoryStore(), nil, &fakeTester{}, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{host:`, CodeInvalidJSON},
		{"missing host", `{"user":"root","db_password":"x"}`, CodeValidationError},
		{"missing db password", `{"host":"pbx.example.com","user":"root"}`, CodeValidationError},
		{"bad port", `{"host":"pbx.example.com","user":"root","db_password":"x","ssh_port":99999}`, CodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/connections/test", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			out := decodeResponse(t, resp)
			if out.Error == nil || out.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", out.Error, tt.code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, checkpoint.NewMemoryStore(), nil, &fakeTester{}, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category string
	}{
		{"ssh auth", tunnel.ErrAuth, CategorySSHAuth},
		{"ssh network", tunnel.ErrNetwork, CategoryNetwork},
		{"db auth", remote.ErrDatabaseAuth, CategoryDBAuth},
		{"db connection", remote.ErrConnection, CategoryDBError},
		{"db query", remote.ErrQuery, CategoryDBError},
		{"timeout", context.DeadlineExceeded, CategoryNetwork},
		{"unknown", errors.New("boom"), CategoryNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, message := categorize(tt.err)
			if category != tt.category {
				t.Errorf("categorize(%v) = %q, want %q", tt.err, category, tt.category)
			}
			if message == "" {
				t.Error("expected a message")
			}
		})
	}
}

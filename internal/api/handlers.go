// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/backupwiz/backupwiz/internal/checkpoint"
	"github.com/backupwiz/backupwiz/internal/config"
	"github.com/backupwiz/backupwiz/internal/logging"
	"github.com/backupwiz/backupwiz/internal/models"
)

// Handler serves the syncd operational endpoints.
type Handler struct {
	checkpoints checkpoint.Store
	tenants     []config.TenantConfig
	tester      ConnectionTester
	ready       func(ctx context.Context) error
	started     time.Time
}

// NewHandler wires the handler dependencies. ready reports whether the
// archive database is reachable; nil means always ready.
func NewHandler(store checkpoint.Store, tenants []config.TenantConfig, tester ConnectionTester, ready func(ctx context.Context) error) *Handler {
	return &Handler{
		checkpoints: store,
		tenants:     tenants,
		tester:      tester,
		ready:       ready,
		started:     time.Now(),
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status": "alive",
			"uptime": time.Since(h.started).Round(time.Second).String(),
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// HealthReady reports readiness, probing the archive database when a
// probe was configured.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := h.ready(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, CodeInternalError, "archive database is not reachable", err)
			return
		}
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     map[string]interface{}{"status": "ready"},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// TenantStatus is one tenant's sync state in the status view.
type TenantStatus struct {
	TenantID    string                  `json:"tenant_id"`
	Enabled     bool                    `json:"enabled"`
	Checkpoints []models.SyncCheckpoint `json:"checkpoints"`
}

// SyncStatus returns per-tenant checkpoint state. An optional ?tenant=
// query narrows the view to one tenant.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("tenant")

	statuses := make([]TenantStatus, 0, len(h.tenants))
	for _, tenant := range h.tenants {
		if filter != "" && tenant.ID != filter {
			continue
		}

		cps, err := h.checkpoints.List(r.Context(), tenant.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, CodeInternalError, "failed to load sync state", err)
			return
		}
		statuses = append(statuses, TenantStatus{
			TenantID:    tenant.ID,
			Enabled:     tenant.Enabled,
			Checkpoints: cps,
		})
	}

	if filter != "" && len(statuses) == 0 {
		respondError(w, http.StatusNotFound, CodeNotFound, "unknown tenant", nil)
		return
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   statuses,
		Metadata: Metadata{
			Timestamp: time.Now(),
			Count:     len(statuses),
		},
	})
}

// TestConnection probes caller-supplied credentials end to end and
// reports success or the failing layer's category.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionTestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidJSON, "request body is not valid JSON", nil)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &APIResponse{
			Status:   "error",
			Metadata: Metadata{Timestamp: time.Now()},
			Error:    apiErr,
		})
		return
	}

	result := h.tester.Test(r.Context(), req)

	logging.Ctx(r.Context()).Info().
		Str("host", sanitizeLogValue(req.Host)).
		Bool("success", result.Success).
		Str("category", result.Category).
		Msg("Connection test completed")

	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     result,
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tunnel metrics
	TunnelOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backupwiz_tunnel_opens_total",
			Help: "Total SSH tunnel open attempts",
		},
		[]string{"tenant", "result"}, // result: "success", "auth", "network"
	)

	TunnelOpenDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backupwiz_tunnel_open_duration_seconds",
			Help:    "Time to establish an SSH tunnel including handshake",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sync run metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backupwiz_sync_runs_total",
			Help: "Total reconciliation runs",
		},
		[]string{"tenant", "sync_type", "result"}, // result: "success", "error", "contended"
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backupwiz_sync_run_duration_seconds",
			Help:    "Wall-clock duration of reconciliation runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"sync_type"},
	)

	SyncRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backupwiz_sync_rows_total",
			Help: "Rows processed by reconciliation",
		},
		[]string{"tenant", "sync_type", "result"}, // result: "synced", "failed"
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backupwiz_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful run per sync type",
		},
		[]string{"tenant", "sync_type"},
	)

	// Checkpoint metrics
	CheckpointContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backupwiz_checkpoint_contention_total",
			Help: "BeginRun attempts rejected because a run was already in progress",
		},
		[]string{"tenant", "sync_type"},
	)

	// Media payload metrics
	MediaBytesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backupwiz_media_bytes_fetched_total",
			Help: "Media payload bytes streamed from remote hosts into object storage",
		},
		[]string{"tenant", "kind"}, // kind: "recordings", "voicemails", "faxes", "attachments"
	)

	// Circuit breaker metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backupwiz_breaker_state",
			Help: "Remote query circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backupwiz_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backupwiz_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backupwiz_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordTunnelOpen records one tunnel open attempt.
func RecordTunnelOpen(tenant, result string, duration time.Duration) {
	TunnelOpensTotal.WithLabelValues(tenant, result).Inc()
	if result == "success" {
		TunnelOpenDuration.Observe(duration.Seconds())
	}
}

// RecordSyncRun records the outcome of one reconciliation run.
func RecordSyncRun(tenant, syncType, result string, duration time.Duration, synced, failed int64) {
	SyncRunsTotal.WithLabelValues(tenant, syncType, result).Inc()
	SyncRunDuration.WithLabelValues(syncType).Observe(duration.Seconds())
	SyncRowsTotal.WithLabelValues(tenant, syncType, "synced").Add(float64(synced))
	SyncRowsTotal.WithLabelValues(tenant, syncType, "failed").Add(float64(failed))
	if result == "success" {
		SyncLastSuccess.WithLabelValues(tenant, syncType).Set(float64(time.Now().Unix()))
	}
}

// RecordAPIRequest records one API request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

// Package api exposes the operational HTTP surface of syncd: health
// probes, per-tenant sync status, on-demand connection testing, and the
// Prometheus scrape endpoint. Routing is built on Chi with the
// go-chi/cors and go-chi/httprate middleware.
//
// The API is read-mostly. The one mutating-shaped endpoint,
// POST /api/v1/connections/test, opens a short-lived tunnel and database
// connection with caller-supplied credentials and reports which layer
// failed; nothing is persisted and the supplied secrets never reach the
// logs.
package api

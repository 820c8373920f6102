// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

// Package metrics exposes Prometheus collectors for the sync pipeline.
//
// Collectors are registered via promauto at package init and served on
// the /metrics endpoint by the HTTP server. Labels stay low-cardinality:
// tenant and sync type only, never record ids or filenames.
package metrics

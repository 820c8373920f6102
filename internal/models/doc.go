// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

/*
Package models defines the data structures shared across the BackupWiz
acquisition pipeline.

Three families of types live here:

  - Remote* rows: transient records read from a customer's 3CX PostgreSQL
    database through the SSH tunnel. They are validated at the boundary,
    mapped, and discarded, never persisted as-is.
  - Archive records: tenant-scoped rows written into the managed archive,
    keyed by (tenant_id, remote natural key).
  - SyncCheckpoint / Cursor: per (tenant, sync type) incremental sync state.

The Cursor is a (timestamp, id) pair, not a bare timestamp: two remote rows
can share a timestamp, and the id tie-break keeps pagination stable when a
page boundary falls between them.
*/
package models

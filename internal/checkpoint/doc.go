// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

/*
Package checkpoint persists incremental sync state per (tenant, sync type).

The store enforces the pipeline's two correctness invariants:

  - Exclusivity: BeginRun rejects a second concurrent run for the same
    (tenant, sync type) while a non-stale run is marked running. A running
    row older than the staleness threshold is treated as abandoned (a
    crashed worker) and reclaimed.
  - Cursor monotonicity: CommitRun only ever moves the cursor forward;
    FailRun records the error and leaves the cursor at the last
    fully-committed position, so the next run re-reads from there and the
    idempotent upsert path absorbs the redelivered rows.

Two implementations share the semantics: a PostgreSQL store against the
archive database (the claim is a single conditional upsert, not a
read-modify-write), and an in-memory store for tests and the connection-test
path.
*/
package checkpoint

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

// Package reconcile drives one sync run end to end: claim the checkpoint,
// open the tunnel, page through the remote table in strict (timestamp, id)
// order, map rows into archive records, upsert them, and commit the
// advanced cursor. Every write is idempotent, so a crashed or replayed run
// converges instead of double-counting.
//
// The engine takes all of its collaborators (source opener, archive,
// object store, checkpoint store) as explicit dependencies; nothing is
// reached through package globals except logging and metrics.
package reconcile

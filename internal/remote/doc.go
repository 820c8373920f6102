// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

/*
Package remote is the PostgreSQL client for a customer's 3CX database,
reached through the tunnel package's forwarded loopback port.

All incremental pulls are bounded, paginated SELECTs ordered by the remote
timestamp column ascending with the remote primary key as tie-break, so the
reconciliation cursor, a (timestamp, id) pair, resumes exactly where the
last run committed even when two rows share a timestamp.

Remote rows arrive with loosely-typed values (3CX schemas drift across
versions), so every fetcher decodes through an explicit coercion step that
isolates non-conforming rows instead of propagating them.

Tables absent on older 3CX installs are tolerated: an undefined_table error
is reported as zero rows for that sync type, not a failure.
*/
package remote

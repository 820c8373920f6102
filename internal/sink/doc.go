// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

// Package sink persists reconciled records into the local archive.
//
// Two destinations exist: a PostgreSQL archive for structured records
// (conversations, messages, call logs, ...) and an S3-compatible object
// store for media payloads (recordings, voicemails, faxes, chat
// attachments). All structured writes are idempotent upserts keyed by
// (tenant_id, remote_id), so replaying a page after a partial failure
// converges to the same archive state.
package sink

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

// Package supervisor builds the suture service tree for syncd. The tree
// has two layers: pipeline (the reconciliation scheduler) and api (the
// HTTP server). A crash in the pipeline restarts only the pipeline; the
// status API keeps serving checkpoint state throughout.
package supervisor

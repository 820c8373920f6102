// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

// Package scheduler drives periodic reconciliation runs. Each enabled
// tenant gets its own loop: an immediate run at startup and then one
// every sync interval, walking the tenant's configured sync types in
// order. Tenants are independent; a slow or failing tenant never
// delays the others. Run failures are recorded on the checkpoint by
// the engine and surface through the status API, so the loop itself
// only logs and keeps ticking.
package scheduler

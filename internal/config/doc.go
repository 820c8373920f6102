// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

// Package config loads the syncd configuration from layered sources:
// built-in defaults, an optional YAML file, and BACKUPWIZ_* environment
// variables, in ascending precedence. Loading fails fast on anything
// invalid so the daemon never starts half-configured.
//
// Tenant blocks carry SSH and database credentials for customer PBX
// hosts. Those values are secrets: they flow into the tunnel and query
// client but must never appear in logs (see the logging package's
// redaction helpers).
package config

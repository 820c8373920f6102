// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package remote

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the client branches on.
const (
	sqlstateInvalidPassword   = "28P01"
	sqlstateInvalidAuthSpec   = "28000"
	sqlstateUndefinedTable    = "42P01"
	sqlstateUndefinedColumn   = "42703"
	sqlstateInsufficientPrivs = "42501"
)

// Sentinel errors for the remote-database failure taxonomy.
var (
	// ErrDatabaseAuth means PostgreSQL rejected the password through a
	// successfully opened tunnel, distinct from tunnel errors so the
	// operator knows SSH worked but the DB password is wrong.
	ErrDatabaseAuth = errors.New("database authentication failed")

	// ErrConnection means the database was not reachable or not accepting
	// connections through the tunnel.
	ErrConnection = errors.New("database connection failed")

	// ErrQuery is a query-level failure (malformed SQL, missing column).
	ErrQuery = errors.New("database query failed")
)

// classifyConnectError sorts a connect/ping failure into the taxonomy.
func classifyConnectError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateInvalidPassword, sqlstateInvalidAuthSpec:
			return fmt.Errorf("%w: %s", ErrDatabaseAuth, pgErr.Code)
		}
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// isMissingTable reports whether err is an undefined_table failure, which
// is tolerated: not every sync type exists on every 3CX version.
func isMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateUndefinedTable
}

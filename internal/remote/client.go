// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package remote

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backupwiz/backupwiz/internal/logging"
)

// Fixed database identity on 3CX installs. Only the password is
// tenant-supplied.
const (
	DefaultDatabase = "database_single"
	DefaultUser     = "phonesystem"

	connectTimeout = 10 * time.Second
)

// DBConfig carries the credentials for the customer's 3CX PostgreSQL
// database, reached through the tunnel's local forwarded port.
type DBConfig struct {
	Database string
	User     string
	Password string
}

// withDefaults fills in the fixed 3CX database identity.
func (c DBConfig) withDefaults() DBConfig {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	return c
}

// Client issues paginated read queries against a tenant's 3CX database.
type Client struct {
	pool *pgxpool.Pool
	addr string
}

// Connect opens a connection pool to the forwarded database port and
// verifies it with a ping. A rejected password surfaces as ErrDatabaseAuth,
// distinct from tunnel-level failures.
func Connect(ctx context.Context, tunnelAddr string, cfg DBConfig) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Password == "" {
		return nil, fmt.Errorf("remote db config: password is required")
	}

	// SSL is off on purpose: the hop is loopback-to-loopback inside the
	// SSH tunnel, and 3CX's bundled PostgreSQL does not serve TLS.
	connString := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable&connect_timeout=%d",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		tunnelAddr,
		url.QueryEscape(cfg.Database),
		int(connectTimeout.Seconds()),
	)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrConnection, err)
	}
	// One sync run is a sequential page loop; a second conn covers the
	// liveness probe.
	poolCfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, classifyConnectError(err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classifyConnectError(err)
	}

	logging.Debug().Str("addr", tunnelAddr).Str("database", cfg.Database).Msg("remote database connected")

	return &Client{pool: pool, addr: tunnelAddr}, nil
}

// Ping is the connectivity probe used by the dashboard's test-connection
// action: a trivial liveness query through the tunnel.
func (c *Client) Ping(ctx context.Context) error {
	var one int
	if err := c.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return classifyConnectError(err)
	}
	return nil
}

// Close releases the connection pool. Safe to call after a failed run.
func (c *Client) Close() {
	c.pool.Close()
}

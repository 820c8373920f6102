// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the syncd daemon.
type Config struct {
	Server  ServerConfig   `koanf:"server"`
	Archive ArchiveConfig  `koanf:"archive"`
	Storage StorageConfig  `koanf:"storage"`
	Sync    SyncConfig     `koanf:"sync"`
	Logging LoggingConfig  `koanf:"logging"`
	Tenants []TenantConfig `koanf:"tenants" validate:"dive"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// ArchiveConfig holds the local PostgreSQL archive connection.
type ArchiveConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	Database string `koanf:"database" validate:"required"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	MaxConns int32  `koanf:"max_conns"`
}

// DSN builds the archive connection string. Never log the result; use
// logging.RedactDSN when a connection target must appear in output.
func (c ArchiveConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// StorageConfig holds the S3-compatible object store for media payloads.
type StorageConfig struct {
	Endpoint  string `koanf:"endpoint" validate:"required"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket" validate:"required"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// SyncConfig holds the pipeline-wide sync tuning knobs.
type SyncConfig struct {
	// Interval between scheduled runs per tenant. Bounded to keep
	// customer PBX hosts from being polled aggressively.
	Interval time.Duration `koanf:"interval"`

	// RunTimeout is the wall-clock budget for a single reconciliation
	// run; the run's context is cancelled when it elapses.
	RunTimeout time.Duration `koanf:"run_timeout"`

	// PageSize bounds every remote query.
	PageSize int `koanf:"page_size" validate:"min=1,max=10000"`

	RetryAttempts int           `koanf:"retry_attempts" validate:"min=1,max=10"`
	RetryDelay    time.Duration `koanf:"retry_delay"`

	// SinkRetries bounds per-row archive write retries before the row
	// is counted failed.
	SinkRetries int `koanf:"sink_retries" validate:"min=1,max=10"`

	// StaleAfter reclaims checkpoints abandoned by crashed runs.
	StaleAfter time.Duration `koanf:"stale_after"`

	// QueriesPerSecond rate-limits remote queries per tenant.
	QueriesPerSecond float64 `koanf:"queries_per_second"`
}

// LoggingConfig mirrors the logging package settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// TenantConfig describes one customer 3CX deployment to back up.
type TenantConfig struct {
	ID      string      `koanf:"id" validate:"required"`
	Enabled bool        `koanf:"enabled"`
	SSH     SSHConfig   `koanf:"ssh"`
	DB      RemoteDB    `koanf:"db"`
	Sync    []string    `koanf:"sync"`
	Paths   RemotePaths `koanf:"paths"`

	// Interval overrides the global sync.interval for this tenant;
	// zero means use the global value. Same bounds apply.
	Interval time.Duration `koanf:"interval"`
}

// SSHConfig holds the tenant's SSH endpoint and credentials. Password
// and key material are secrets: referenced by the tunnel, never logged.
type SSHConfig struct {
	Host           string `koanf:"host" validate:"required,hostname|ip"`
	Port           int    `koanf:"port" validate:"min=1,max=65535"`
	User           string `koanf:"user" validate:"required"`
	Password       string `koanf:"password"`
	PrivateKeyPath string `koanf:"private_key_path"`
}

// RemoteDB holds the tenant's PostgreSQL settings as seen from the far
// end of the tunnel. Defaults match a stock 3CX install.
type RemoteDB struct {
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// RemotePaths locates media payloads on the tenant host for SFTP fetch.
type RemotePaths struct {
	Recordings string `koanf:"recordings"`
	Voicemails string `koanf:"voicemails"`
	Faxes      string `koanf:"faxes"`
	ChatFiles  string `koanf:"chat_files"`
}

// Tenant returns the tenant with the given id.
func (c *Config) Tenant(id string) (TenantConfig, error) {
	for _, t := range c.Tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return TenantConfig{}, fmt.Errorf("unknown tenant %q", id)
}

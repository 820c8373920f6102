// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.applyTenantDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Sync.PageSize != 500 {
		t.Errorf("page size = %d, want 500", cfg.Sync.PageSize)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("interval = %s, want 5m", cfg.Sync.Interval)
	}
}

func TestTenantDefaults(t *testing.T) {
	cfg := defaultConfig()
	cfg.Tenants = []TenantConfig{{
		ID:      "acme",
		Enabled: true,
		SSH:     SSHConfig{Host: "pbx.acme.example", User: "root", Password: "pw"},
	}}
	cfg.applyTenantDefaults()

	tenant := cfg.Tenants[0]
	if tenant.SSH.Port != 22 {
		t.Errorf("ssh port = %d, want 22", tenant.SSH.Port)
	}
	if tenant.DB.Database != "database_single" {
		t.Errorf("db name = %q, want database_single", tenant.DB.Database)
	}
	if tenant.DB.User != "phonesystem" {
		t.Errorf("db user = %q, want phonesystem", tenant.DB.User)
	}
	if tenant.DB.Port != 5432 {
		t.Errorf("db port = %d, want 5432", tenant.DB.Port)
	}
	if len(tenant.Sync) != 6 {
		t.Errorf("sync types = %v, want all 6", tenant.Sync)
	}
	if tenant.Paths.Recordings == "" {
		t.Error("recordings path default missing")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("tenant config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "interval below minimum",
			mutate: func(c *Config) { c.Sync.Interval = 10 * time.Second },
			want:   "sync.interval",
		},
		{
			name:   "interval above maximum",
			mutate: func(c *Config) { c.Sync.Interval = 2 * time.Hour },
			want:   "sync.interval",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			want:   "must be one of",
		},
		{
			name: "tenant without credentials",
			mutate: func(c *Config) {
				c.Tenants = []TenantConfig{{ID: "t", SSH: SSHConfig{Host: "pbx.example.com", User: "root"}}}
			},
			want: "password or private_key_path",
		},
		{
			name: "duplicate tenant",
			mutate: func(c *Config) {
				t := TenantConfig{ID: "t", SSH: SSHConfig{Host: "pbx.example.com", User: "root", Password: "pw"}}
				c.Tenants = []TenantConfig{t, t}
			},
			want: "defined twice",
		},
		{
			name: "tenant interval below minimum",
			mutate: func(c *Config) {
				c.Tenants = []TenantConfig{{
					ID:       "t",
					SSH:      SSHConfig{Host: "pbx.example.com", User: "root", Password: "pw"},
					Interval: 5 * time.Second,
				}}
			},
			want: "interval 5s out of range",
		},
		{
			name: "unknown sync type",
			mutate: func(c *Config) {
				c.Tenants = []TenantConfig{{
					ID:   "t",
					SSH:  SSHConfig{Host: "pbx.example.com", User: "root", Password: "pw"},
					Sync: []string{"telegrams"},
				}}
			},
			want: "unknown sync type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			cfg.applyTenantDefaults()

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q missing %q", err, tt.want)
			}
		})
	}
}

func TestLoadYAMLAndEnvLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
sync:
  page_size: 250
logging:
  level: debug
tenants:
  - id: acme
    enabled: true
    ssh:
      host: pbx.acme.example
      user: root
      password: hunter2
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("BACKUPWIZ_LOGGING_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Sync.PageSize != 250 {
		t.Errorf("page size = %d, want 250 from file", cfg.Sync.PageSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug from file", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("format = %q, want console from env", cfg.Logging.Format)
	}
	if cfg.Sync.RunTimeout != 5*time.Minute {
		t.Errorf("run timeout = %s, want default 5m", cfg.Sync.RunTimeout)
	}

	tenant, err := cfg.Tenant("acme")
	if err != nil {
		t.Fatalf("Tenant: %v", err)
	}
	if tenant.DB.Database != "database_single" {
		t.Errorf("tenant db defaults not applied: %q", tenant.DB.Database)
	}
}

func TestArchiveDSN(t *testing.T) {
	a := ArchiveConfig{Host: "db.internal", Port: 5432, Database: "backupwiz", User: "u", Password: "p", SSLMode: "disable"}
	want := "postgres://u:p@db.internal:5432/backupwiz?sslmode=disable"
	if got := a.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

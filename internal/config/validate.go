// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package config

import (
	"fmt"
	"time"

	"github.com/backupwiz/backupwiz/internal/models"
	"github.com/backupwiz/backupwiz/internal/validation"
)

// Scheduler interval bounds. Customer PBX hosts are production phone
// systems: polling faster than once a minute is never acceptable.
const (
	MinSyncInterval = 60 * time.Second
	MaxSyncInterval = 3600 * time.Second
)

// Stock 3CX install locations and database identity.
const (
	defaultRemoteDBPort = 5432
	defaultRemoteDBName = "database_single"
	defaultRemoteDBUser = "phonesystem"

	defaultRecordingsPath = "/var/lib/3cxpbx/Instance1/Data/Recordings"
	defaultVoicemailsPath = "/var/lib/3cxpbx/Instance1/Data/Voicemails"
	defaultFaxesPath      = "/var/lib/3cxpbx/Instance1/Data/Fax"
	defaultChatFilesPath  = "/var/lib/3cxpbx/Instance1/Data/Http/chatfiles"
)

// applyTenantDefaults fills per-tenant gaps with stock 3CX values so a
// minimal tenant block (host + credentials) is a working configuration.
func (c *Config) applyTenantDefaults() {
	for i := range c.Tenants {
		t := &c.Tenants[i]
		if t.SSH.Port == 0 {
			t.SSH.Port = 22
		}
		if t.DB.Port == 0 {
			t.DB.Port = defaultRemoteDBPort
		}
		if t.DB.Database == "" {
			t.DB.Database = defaultRemoteDBName
		}
		if t.DB.User == "" {
			t.DB.User = defaultRemoteDBUser
		}
		if len(t.Sync) == 0 {
			for _, st := range models.AllSyncTypes {
				t.Sync = append(t.Sync, string(st))
			}
		}
		if t.Paths.Recordings == "" {
			t.Paths.Recordings = defaultRecordingsPath
		}
		if t.Paths.Voicemails == "" {
			t.Paths.Voicemails = defaultVoicemailsPath
		}
		if t.Paths.Faxes == "" {
			t.Paths.Faxes = defaultFaxesPath
		}
		if t.Paths.ChatFiles == "" {
			t.Paths.ChatFiles = defaultChatFilesPath
		}
	}
}

// Validate checks struct tags plus the cross-field rules tags cannot
// express. Called by Load; fail-fast at startup.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if c.Sync.Interval < MinSyncInterval || c.Sync.Interval > MaxSyncInterval {
		return fmt.Errorf("sync.interval %s out of range [%s, %s]",
			c.Sync.Interval, MinSyncInterval, MaxSyncInterval)
	}
	if c.Sync.RunTimeout <= 0 {
		return fmt.Errorf("sync.run_timeout must be positive")
	}
	if c.Sync.StaleAfter <= 0 {
		return fmt.Errorf("sync.stale_after must be positive")
	}

	seen := make(map[string]struct{}, len(c.Tenants))
	for _, t := range c.Tenants {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("tenant %q defined twice", t.ID)
		}
		seen[t.ID] = struct{}{}

		if t.SSH.Password == "" && t.SSH.PrivateKeyPath == "" {
			return fmt.Errorf("tenant %q: ssh needs a password or private_key_path", t.ID)
		}
		if t.Interval != 0 && (t.Interval < MinSyncInterval || t.Interval > MaxSyncInterval) {
			return fmt.Errorf("tenant %q: interval %s out of range [%s, %s]",
				t.ID, t.Interval, MinSyncInterval, MaxSyncInterval)
		}
		for _, st := range t.Sync {
			if !validSyncType(st) {
				return fmt.Errorf("tenant %q: unknown sync type %q", t.ID, st)
			}
		}
	}

	return nil
}

func validSyncType(s string) bool {
	for _, st := range models.AllSyncTypes {
		if string(st) == s {
			return true
		}
	}
	return false
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package logging

import (
	"errors"
	"net/url"
	"strings"
)

// Redacted is the placeholder written in place of any secret value.
const Redacted = "[REDACTED]"

// RedactSecret replaces a non-empty secret with the redaction placeholder.
// Empty stays empty so log lines still show whether a secret was configured.
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	return Redacted
}

// RedactDSN removes the password component from a database connection
// string before it is logged. Unparseable inputs are redacted wholesale
// rather than risking a leaked credential.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		if strings.Contains(dsn, "password=") {
			return Redacted
		}
		return dsn
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// RedactError rewrites an error message that may embed a credential
// (SSH and libpq auth errors can echo connection strings). Any message
// containing a known secret marker is collapsed to its prefix.
func RedactError(msg string) string {
	for _, marker := range []string{"password=", "password authentication"} {
		if i := strings.Index(msg, marker); i >= 0 && marker == "password=" {
			return msg[:i] + "password=" + Redacted
		}
	}
	return msg
}

// RedactErr is the error-typed counterpart of RedactError, for passing
// straight to zerolog's Err. The sentinel chain is deliberately dropped:
// a redacted error is for log output only, never for errors.Is checks.
func RedactErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(RedactError(err.Error()))
}

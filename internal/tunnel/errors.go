// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package tunnel

import (
	"errors"
	"strings"
)

// Sentinel errors for the tunnel failure taxonomy. Callers use errors.Is to
// branch on category; the wrapped error keeps the underlying detail.
var (
	// ErrAuth means the SSH server rejected the username/password. Not
	// retried automatically; surfaced to the tenant admin.
	ErrAuth = errors.New("ssh authentication failed")

	// ErrNetwork means the host was unreachable, the port closed, or the
	// handshake timed out. Retried with backoff by the scheduler.
	ErrNetwork = errors.New("ssh connection failed")

	// ErrBind means the loopback listener could not be bound.
	ErrBind = errors.New("local listener bind failed")

	// ErrClosed is returned when operating on a closed tunnel.
	ErrClosed = errors.New("tunnel is closed")
)

// classifyDialError sorts an SSH dial failure into the auth/network
// taxonomy. x/crypto/ssh reports rejected credentials through the handshake
// error text; everything else at dial time is a network-class failure.
func classifyDialError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "unable to authenticate") ||
		strings.Contains(err.Error(), "no supported methods remain") {
		return ErrAuth
	}
	return ErrNetwork
}

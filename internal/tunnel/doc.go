// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

/*
Package tunnel opens SSH tunnels into customer-hosted 3CX systems.

A tunnel is an SSH connection to the customer's host plus a loopback-only
TCP listener on an OS-assigned ephemeral port. Every connection accepted on
the local listener is forwarded through the SSH session to 127.0.0.1:5432 as
seen from the remote host: the PostgreSQL instance on the 3CX box itself,
never an arbitrary third host.

One Tunnel serves one logical session. Concurrent local connections
multiplex over the same SSH session, but tunnels are not pooled or reused
across Open calls; the scheduler guarantees at most one live tunnel per
tenant.

Errors are classified so operators can tell an SSH credential problem from
an unreachable host:

	t, err := tunnel.Open(ctx, cfg)
	if errors.Is(err, tunnel.ErrAuth) { ... }

All resources (SSH client, local listener, in-flight forwards) are released
by Close and on every failure path, including open timeouts.
*/
package tunnel

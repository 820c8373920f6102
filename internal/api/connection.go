// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package api

import (
	"context"
	"errors"
	"time"

	"github.com/backupwiz/backupwiz/internal/remote"
	"github.com/backupwiz/backupwiz/internal/tunnel"
)

// Error categories returned by the connection test endpoint. Each names
// the layer that rejected the attempt without echoing any credential.
const (
	CategorySSHAuth = "ssh_auth"
	CategoryNetwork = "network"
	CategoryDBAuth  = "db_auth"
	CategoryDBError = "db_error"
)

// ConnectionTestRequest carries the full credential shape for one probe.
// Secrets arrive in the body and are handed to the tunnel and database
// layers; they are never logged and never stored.
type ConnectionTestRequest struct {
	Host       string `json:"host" validate:"required,hostname|ip"`
	SSHPort    int    `json:"ssh_port" validate:"omitempty,min=1,max=65535"`
	User       string `json:"user" validate:"required"`
	Password   string `json:"password"`
	PrivateKey string `json:"private_key"`

	DBPort     int    `json:"db_port" validate:"omitempty,min=1,max=65535"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password" validate:"required"`
}

// ConnectionTestResult reports whether both layers accepted the
// credentials, and on failure which category rejected them.
type ConnectionTestResult struct {
	Success  bool   `json:"success"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ConnectionTester probes a candidate tenant host end to end.
type ConnectionTester interface {
	Test(ctx context.Context, req ConnectionTestRequest) ConnectionTestResult
}

// LiveTester opens a real tunnel and database connection for each probe.
type LiveTester struct {
	// Timeout bounds the whole probe; defaults to 30s.
	Timeout time.Duration
}

// Test opens the SSH tunnel, connects to PostgreSQL through it, pings,
// and tears everything down.
func (t LiveTester) Test(ctx context.Context, req ConnectionTestRequest) ConnectionTestResult {
	timeout := t.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tun, err := tunnel.Open(ctx, tunnel.Config{
		Host:         req.Host,
		SSHPort:      req.SSHPort,
		User:         req.User,
		Password:     req.Password,
		PrivateKey:   []byte(req.PrivateKey),
		RemoteDBPort: req.DBPort,
	})
	if err != nil {
		return failureResult(err)
	}
	defer tun.Close()

	client, err := remote.Connect(ctx, tun.Addr(), remote.DBConfig{
		Database: req.DBName,
		User:     req.DBUser,
		Password: req.DBPassword,
	})
	if err != nil {
		return failureResult(err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return failureResult(err)
	}

	return ConnectionTestResult{Success: true}
}

// failureResult maps a layered failure onto its public category.
func failureResult(err error) ConnectionTestResult {
	category, message := categorize(err)
	return ConnectionTestResult{
		Success:  false,
		Category: category,
		Message:  message,
	}
}

// categorize sorts an error into the four public categories. Messages
// are fixed strings so wrapped detail (which may mention addresses but
// never credentials) stays out of the response body.
func categorize(err error) (string, string) {
	switch {
	case errors.Is(err, tunnel.ErrAuth):
		return CategorySSHAuth, "ssh authentication was rejected"
	case errors.Is(err, tunnel.ErrNetwork), errors.Is(err, tunnel.ErrBind):
		return CategoryNetwork, "ssh host was not reachable"
	case errors.Is(err, remote.ErrDatabaseAuth):
		return CategoryDBAuth, "database authentication was rejected"
	case errors.Is(err, remote.ErrConnection), errors.Is(err, remote.ErrQuery):
		return CategoryDBError, "database did not accept the connection"
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryNetwork, "connection attempt timed out"
	default:
		return CategoryNetwork, "connection attempt failed"
	}
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// contextKey is a private type for context keys in this package.
type contextKey string

const (
	// runIDKey is the context key for sync run correlation IDs.
	runIDKey contextKey = "run_id"

	// requestIDKey is the context key for HTTP request IDs.
	requestIDKey contextKey = "request_id"
)

// NewRunID creates a short correlation ID for one sync run.
// The first 8 characters of a UUID keep log lines readable.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// NewRequestID creates a full UUID request ID for HTTP requests.
func NewRequestID() string {
	return uuid.New().String()
}

// WithRunID returns a new context carrying the given run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext retrieves the run ID from context, or "" when absent.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID returns a new context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger enriched with any correlation fields found in ctx.
// A pointer is returned, as zerolog.Ctx does, so event methods chain
// directly off the call.
//
//	logging.Ctx(ctx).Info().Msg("page processed")
func Ctx(ctx context.Context) *zerolog.Logger {
	builder := With()
	if id := RunIDFromContext(ctx); id != "" {
		builder = builder.Str("run_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		builder = builder.Str("request_id", id)
	}
	logger := builder.Logger()
	return &logger
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("tenant", "t-1").Msg("sync started")

	out := buf.String()
	if !strings.Contains(out, `"tenant":"t-1"`) {
		t.Errorf("expected structured tenant field, got %q", out)
	}
	if !strings.Contains(out, `"message":"sync started"`) {
		t.Errorf("expected message field, got %q", out)
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("invisible")
	Warn().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "invisible") {
		t.Errorf("debug line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCtxCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	ctx := WithRunID(context.Background(), "abc12345")
	Ctx(ctx).Info().Msg("page done")

	if !strings.Contains(buf.String(), `"run_id":"abc12345"`) {
		t.Errorf("run_id missing from context-aware log line: %q", buf.String())
	}
}

func TestNewRunIDLength(t *testing.T) {
	id := NewRunID()
	if len(id) != 8 {
		t.Errorf("run ID should be 8 chars, got %d (%q)", len(id), id)
	}
	if id == NewRunID() {
		t.Error("consecutive run IDs should differ")
	}
}

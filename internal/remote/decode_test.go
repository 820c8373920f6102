// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package remote

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int64
		wantErr bool
	}{
		{"int64", int64(42), 42, false},
		{"int32", int32(7), 7, false},
		{"int16", int16(3), 3, false},
		{"float64", float64(99), 99, false},
		{"numeric string", "123", 123, false},
		{"padded string", " 55 ", 55, false},
		{"garbage string", "abc", 0, true},
		{"nil", nil, 0, true},
		{"bool", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asInt64(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("asInt64(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("asInt64(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestAsTime(t *testing.T) {
	ref := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   any
		wantErr bool
	}{
		{"time.Time", ref, false},
		{"rfc3339", "2024-03-15T10:30:00Z", false},
		{"sql timestamp", "2024-03-15 10:30:00", false},
		{"garbage", "yesterday", true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("asTime(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(ref) {
				t.Errorf("asTime(%v) = %v, want %v", tt.input, got, ref)
			}
		})
	}
}

func TestAsStringPtr(t *testing.T) {
	got, err := asStringPtr("hello")
	if err != nil || got == nil || *got != "hello" {
		t.Errorf("asStringPtr(hello) = %v, %v", got, err)
	}
	got, err = asStringPtr(nil)
	if err != nil || got != nil {
		t.Errorf("asStringPtr(nil) should be nil, got %v, %v", got, err)
	}
	got, err = asStringPtr("")
	if err != nil || got != nil {
		t.Errorf("asStringPtr(empty) should be nil, got %v, %v", got, err)
	}
}

func TestAsBool(t *testing.T) {
	trueInputs := []any{true, int64(1), int32(2), "t", "TRUE", "1", "yes"}
	for _, in := range trueInputs {
		if got, err := asBool(in); err != nil || !got {
			t.Errorf("asBool(%v) = %v, %v, want true", in, got, err)
		}
	}
	falseInputs := []any{false, int64(0), "f", "0", "no", "", nil}
	for _, in := range falseInputs {
		if got, err := asBool(in); err != nil || got {
			t.Errorf("asBool(%v) = %v, %v, want false", in, got, err)
		}
	}
	if _, err := asBool("maybe"); err == nil {
		t.Error("asBool(maybe) should fail")
	}
}

func TestDecodeMessage(t *testing.T) {
	sentAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	msg, rerr := decodeMessage([]any{int64(501), int64(10), "101", "Alice", "hello", sentAt})
	if rerr != nil {
		t.Fatalf("decodeMessage: %v", rerr)
	}
	if msg.ID != 501 || msg.ConversationID != 10 || msg.Sender != "101" {
		t.Errorf("decoded message = %+v", msg)
	}
	if msg.SenderName == nil || *msg.SenderName != "Alice" {
		t.Errorf("sender name = %v", msg.SenderName)
	}
}

func TestDecodeMessageLooseTypes(t *testing.T) {
	// Older exports deliver ids as int32 and timestamps as text.
	msg, rerr := decodeMessage([]any{int32(501), "10", "101", nil, "hello", "2024-01-01 00:00:00"})
	if rerr != nil {
		t.Fatalf("decodeMessage with loose types: %v", rerr)
	}
	if msg.ID != 501 || msg.ConversationID != 10 || msg.SenderName != nil {
		t.Errorf("decoded message = %+v", msg)
	}
}

func TestDecodeMessageIsolatesBadRow(t *testing.T) {
	_, rerr := decodeMessage([]any{nil, int64(10), "101", nil, "hello", time.Now()})
	if rerr == nil {
		t.Fatal("expected row error for NULL id")
	}
	if rerr.Table != "chatmessages" || rerr.Field != "idchatmessage" {
		t.Errorf("row error should name the column: %+v", rerr)
	}
}

func TestClassifyConnectError(t *testing.T) {
	authErr := &pgconn.PgError{Code: "28P01"}
	if !errors.Is(classifyConnectError(authErr), ErrDatabaseAuth) {
		t.Error("28P01 should classify as database auth error")
	}

	otherErr := errors.New("connection refused")
	if !errors.Is(classifyConnectError(otherErr), ErrConnection) {
		t.Error("plain dial failure should classify as connection error")
	}
}

func TestIsMissingTable(t *testing.T) {
	if !isMissingTable(&pgconn.PgError{Code: "42P01"}) {
		t.Error("42P01 should be recognized as missing table")
	}
	if isMissingTable(&pgconn.PgError{Code: "42703"}) {
		t.Error("undefined column is not a missing table")
	}
	if isMissingTable(errors.New("boom")) {
		t.Error("plain error is not a missing table")
	}
}

// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package models

import (
	"testing"
	"time"
)

func TestCursorBefore(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a    Cursor
		b    Cursor
		want bool
	}{
		{"earlier timestamp", Cursor{base, 10}, Cursor{base.Add(time.Second), 1}, true},
		{"later timestamp", Cursor{base.Add(time.Second), 1}, Cursor{base, 10}, false},
		{"same timestamp lower id", Cursor{base, 500}, Cursor{base, 501}, true},
		{"same timestamp higher id", Cursor{base, 501}, Cursor{base, 500}, false},
		{"equal", Cursor{base, 500}, Cursor{base, 500}, false},
		{"zero before anything", Cursor{}, Cursor{base, 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Before(tt.b); got != tt.want {
				t.Errorf("%v.Before(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCursorIsZero(t *testing.T) {
	if !(Cursor{}).IsZero() {
		t.Error("zero cursor should report IsZero")
	}
	c := Cursor{Timestamp: time.Now(), ID: 1}
	if c.IsZero() {
		t.Error("advanced cursor should not report IsZero")
	}
}

func TestCursorString(t *testing.T) {
	if got := (Cursor{}).String(); got != "(origin)" {
		t.Errorf("zero cursor string = %q", got)
	}
	c := Cursor{Timestamp: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC), ID: 502}
	if got := c.String(); got != "(2024-01-01T00:00:01Z, id=502)" {
		t.Errorf("cursor string = %q", got)
	}
}

func TestMaxCursor(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []RemoteRow{
		RemoteMessage{ID: 501, SentAt: base},
		RemoteMessage{ID: 502, SentAt: base.Add(time.Second)},
		RemoteMessage{ID: 500, SentAt: base},
	}

	got := MaxCursor(rows)
	want := Cursor{Timestamp: base.Add(time.Second), ID: 502}
	if got != want {
		t.Errorf("MaxCursor = %v, want %v", got, want)
	}

	if !MaxCursor(nil).IsZero() {
		t.Error("MaxCursor of empty page should be zero")
	}
}

func TestMaxCursorTieBreaksOnID(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []RemoteRow{
		RemoteMessage{ID: 7, SentAt: base},
		RemoteMessage{ID: 9, SentAt: base},
		RemoteMessage{ID: 8, SentAt: base},
	}

	if got := MaxCursor(rows); got.ID != 9 {
		t.Errorf("tie-break should pick highest id, got %v", got)
	}
}

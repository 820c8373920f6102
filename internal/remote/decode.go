// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package remote

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RowError records one remote row that failed boundary validation. The row
// is skipped and counted, never propagated into the archive.
type RowError struct {
	Table string
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row mapping failed: %s.%s: %v", e.Table, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// rowErr builds a RowError for a field coercion failure.
func rowErr(table, field string, err error) *RowError {
	return &RowError{Table: table, Field: field, Err: err}
}

// The coercers below absorb the loose typing of 3CX schemas: id columns
// that are int4 on one version and int8 on another, timestamps stored as
// text in older exports, numbers arriving as strings.

// asInt64 coerces a scanned value to int64.
func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return parsed, nil
	case nil:
		return 0, fmt.Errorf("unexpected NULL")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// asInt64Ptr coerces to *int64, mapping NULL to nil.
func asInt64Ptr(v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, err := asInt64(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// asInt coerces a scanned value to int.
func asInt(v any) (int, error) {
	n, err := asInt64(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// asString coerces a scanned value to a non-NULL string.
func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case nil:
		return "", fmt.Errorf("unexpected NULL")
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}

// asStringPtr coerces to *string, mapping NULL and empty to nil.
func asStringPtr(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

// timeLayouts are accepted text timestamp formats, newest first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

// asTime coerces a scanned value to a non-NULL time.
func asTime(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, ts); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp: %q", ts)
	case nil:
		return time.Time{}, fmt.Errorf("unexpected NULL")
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
}

// asTimePtr coerces to *time.Time, mapping NULL to nil.
func asTimePtr(v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	ts, err := asTime(v)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// asBool coerces a scanned value to bool. 3CX stores flags as bool,
// smallint, or "0"/"1" text depending on version.
func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case int32:
		return b != 0, nil
	case int16:
		return b != 0, nil
	case string:
		switch strings.TrimSpace(strings.ToLower(b)) {
		case "t", "true", "1", "yes":
			return true, nil
		case "f", "false", "0", "no", "":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", b)
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("unsupported type %T", v)
	}
}

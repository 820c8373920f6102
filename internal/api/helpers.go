// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/backupwiz/backupwiz/internal/logging"
	"github.com/backupwiz/backupwiz/internal/validation"
)

// sanitizeLogValue strips control characters so caller-supplied strings
// cannot forge or corrupt log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondError sends an error response. The logged error text is the
// already-classified category message, never raw credential material.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(logging.RedactError(err.Error()))).
			Msg("API error")
	}

	respondJSON(w, status, &APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: Metadata{
			Timestamp: time.Now(),
		},
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// validateRequest runs struct validation and converts the first failure
// set into an APIError, or nil when the request is valid.
func validateRequest(v interface{}) *APIError {
	err := validation.ValidateStruct(v)
	if err == nil {
		return nil
	}

	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs.Fields))
		for i, fe := range verrs.Fields {
			msgs[i] = fe.Error()
		}
		return &APIError{
			Code:    CodeValidationError,
			Message: "request validation failed",
			Details: strings.Join(msgs, "; "),
		}
	}
	return &APIError{
		Code:    CodeValidationError,
		Message: "request validation failed",
	}
}

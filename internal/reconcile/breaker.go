// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

package reconcile

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/backupwiz/backupwiz/internal/logging"
	"github.com/backupwiz/backupwiz/internal/metrics"
)

// newBreaker builds the circuit breaker guarding remote queries for one
// tenant. A customer PBX that starts failing under load gets backed off
// for the timeout window instead of being hammered by retries.
//
// The breaker uses real time for its interval and timeout; tests exercise
// the engine against fakes below the breaker rather than mocking it.
func newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	metrics.BreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Opens at a 60% failure rate once enough requests have been
		// seen to mean something.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Remote query breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.BreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

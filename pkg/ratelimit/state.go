// Package ratelimit implements the client-side admission gate that caps how
// many SuiteTalk calls a client issues within a rolling time window.
//
// The gate is a local defense in depth. The remote service enforces its own
// request and concurrency limits and reports violations as SOAP faults or HTTP
// 429 responses, which the retry policy in pkg/client treats as transient.
package ratelimit

import (
	"time"
)

// Defaults mirror the NetSuite integration limits for a standard account.
const (
	DefaultMaxRequestsPerInterval = 4
	DefaultIntervalSeconds        = 1
	DefaultMaxQueuedRetryAttempts = 10
)

// State is a point-in-time view of the gate's rolling window.
type State struct {
	// Limit is the configured number of tickets per interval.
	Limit int `json:"limit"`

	// Interval is the rolling window length.
	Interval time.Duration `json:"interval"`

	// InWindow counts tickets issued within the trailing interval.
	InWindow int `json:"in_window"`

	// Queued counts reservations whose admission time is still in the future.
	Queued int `json:"queued"`

	// NextSlot is the earliest time a new caller would be admitted.
	NextSlot time.Time `json:"next_slot"`
}

// IsSaturated returns true if a caller arriving now would have to wait.
func (s State) IsSaturated() bool {
	return s.InWindow+s.Queued >= s.Limit
}

// WaitFor returns how long a caller arriving at now would wait.
// Returns 0 if the gate has free capacity.
func (s State) WaitFor(now time.Time) time.Duration {
	d := s.NextSlot.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

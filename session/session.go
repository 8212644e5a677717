// Package session hosts stateful component instances, one per client session.
//
// A session moves from Active to Removed exactly once, either because a removal
// operation completed or because it sat idle past its timeout. Removed sessions
// answer every later call with errors.ErrNoSuchSession. A short-lived tombstone
// remembers why a session ended so callers and operators can tell an expired cart
// from a checked-out one.
package session

import (
	"fmt"
	"strings"
	"time"
)

// Key is the opaque handle a client uses to address its session
type Key string

// AccessMode decides what happens when a second call reaches a session that is
// already serving one
type AccessMode int

const (
	// Serialize makes the second call wait for the first, bounded by its context
	Serialize AccessMode = iota
	// Reject fails the second call with errors.ErrConcurrentSessionAccess
	Reject
)

// String returns the string representation of the access mode
func (m AccessMode) String() string {
	if m == Reject {
		return "reject"
	}
	return "serialize"
}

// ParseAccessMode parses "serialize" or "reject". The empty string is Serialize.
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "serialize":
		return Serialize, nil
	case "reject":
		return Reject, nil
	default:
		return Serialize, fmt.Errorf("unknown session access mode %q", s)
	}
}

// LifecycleState of a session
type LifecycleState int

const (
	// Unknown means the table has no record of the key
	Unknown LifecycleState = iota
	Active
	Removed
)

// String returns the string representation of the state
func (s LifecycleState) String() string {
	switch s {
	case Active:
		return "active"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Reasons a session ends
const (
	ReasonRemoved   = "removed"   // a removal operation completed
	ReasonExpired   = "expired"   // idle timeout elapsed
	ReasonDiscarded = "discarded" // an operation panicked and the instance is no longer trusted
	ReasonShutdown  = "shutdown"  // the table was closed
)

// Status describes a session as the table currently knows it
type Status struct {
	Key       Key       `json:"key"`
	Component string    `json:"component,omitempty"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Tracker is told about every session's idle timeout so it can schedule sweeps
type Tracker interface {
	Track(key string, timeout time.Duration)
	Untrack(key string)
}

type nopTracker struct{}

func (nopTracker) Track(string, time.Duration) {}
func (nopTracker) Untrack(string)              {}

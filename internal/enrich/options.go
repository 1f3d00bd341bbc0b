package enrich

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Policy selects how a run reacts to a unit failure.
type Policy int

const (
	// FailFast stops dispatching after the first failure and lets in-flight
	// units finish.
	FailFast Policy = iota
	// ContinueOnError skips the failed unit's transitive dependents and keeps
	// running everything else.
	ContinueOnError
)

func (p Policy) String() string {
	switch p {
	case ContinueOnError:
		return "continue_on_error"
	default:
		return "fail_fast"
	}
}

// ParsePolicy accepts the names produced by Policy.String.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "fail_fast", "failfast":
		return FailFast, nil
	case "continue_on_error", "continue":
		return ContinueOnError, nil
	default:
		return FailFast, fmt.Errorf("unknown failure policy %q", value)
	}
}

// EventType labels executor events delivered to Options.Observer.
type EventType string

const (
	EventDispatched EventType = "dispatched"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
	EventSkipped    EventType = "skipped"
	EventHalted     EventType = "halted"
)

// Event is emitted from the control goroutine, so observers never run
// concurrently with each other.
type Event struct {
	Type      EventType
	Unit      Identity
	Elapsed   time.Duration
	Err       error
	BlockedBy Identity
}

// Options configures a run.
type Options struct {
	// Concurrency bounds the number of in-flight units. Values below 1 mean 1.
	Concurrency int
	Policy      Policy
	// RunID correlates log lines and the report; one is generated when empty.
	RunID    string
	Logger   *slog.Logger
	Observer func(Event)
}

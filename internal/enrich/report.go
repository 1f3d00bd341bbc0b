package enrich

import (
	"fmt"
	"strings"
	"time"
)

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomeSucceeded     Outcome = "succeeded"
	OutcomeFailed        Outcome = "failed"
	OutcomeCycleDetected Outcome = "cycle_detected"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeHalted        Outcome = "halted"
)

// SkipRecord names a unit that never ran and the unit that blocked it.
type SkipRecord struct {
	ID        Identity
	BlockedBy Identity
	Reason    string
}

// FailureRecord names a unit whose Execute returned an error.
type FailureRecord struct {
	ID  Identity
	Err error
}

// Report describes a finished run. It is returned for every run that got
// past graph validation, including failed, halted, and cancelled ones.
type Report struct {
	RunID       string
	Outcome     Outcome
	Policy      Policy
	Concurrency int

	// Completed lists units in completion order.
	Completed []Identity
	Skipped   []SkipRecord
	Failed    []FailureRecord

	// Flags is the OR of every completed unit's Kind.
	Flags Kind
	// Drained is true when every unit reached a terminal state.
	Drained bool
	// HaltedBy names the unit that requested an early stop, if any.
	HaltedBy   Identity
	HaltReason string

	States    map[Identity]State
	Durations map[Identity]time.Duration

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// State returns the final state of id.
func (r *Report) State(id Identity) State {
	if r == nil {
		return StatePending
	}
	return r.States[id]
}

// Succeeded reports whether every unit completed.
func (r *Report) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSucceeded
}

// SkippedIDs returns the identities of skipped units in the order they were skipped.
func (r *Report) SkippedIDs() []Identity {
	if r == nil {
		return nil
	}
	ids := make([]Identity, 0, len(r.Skipped))
	for _, rec := range r.Skipped {
		ids = append(ids, rec.ID)
	}
	return ids
}

// FailedIDs returns the identities of failed units in failure order.
func (r *Report) FailedIDs() []Identity {
	if r == nil {
		return nil
	}
	ids := make([]Identity, 0, len(r.Failed))
	for _, rec := range r.Failed {
		ids = append(ids, rec.ID)
	}
	return ids
}

// Failure returns the error recorded for id.
func (r *Report) Failure(id Identity) (error, bool) {
	if r == nil {
		return nil, false
	}
	for _, rec := range r.Failed {
		if rec.ID == id {
			return rec.Err, true
		}
	}
	return nil, false
}

// Skip returns the skip record for id.
func (r *Report) Skip(id Identity) (SkipRecord, bool) {
	if r == nil {
		return SkipRecord{}, false
	}
	for _, rec := range r.Skipped {
		if rec.ID == id {
			return rec, true
		}
	}
	return SkipRecord{}, false
}

// Summary renders a one-line description for logs and notifications.
func (r *Report) Summary() string {
	if r == nil {
		return "no run"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d completed", r.Outcome, len(r.Completed))
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, ", %d failed (%s)", len(r.Failed), JoinIdentities(r.FailedIDs()))
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, ", %d skipped", len(r.Skipped))
	}
	if r.HaltedBy != "" {
		fmt.Fprintf(&b, ", halted by %s", r.HaltedBy)
	}
	return b.String()
}

package enrich

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingDependency = errors.New("missing dependency")
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrEmptyIdentity     = errors.New("empty identity")
	ErrUnboundIdentity   = errors.New("unbound identity")
	ErrCycleDetected     = errors.New("dependency cycle detected")
	ErrUnitFailed        = errors.New("unit failed")
	ErrCancelled         = errors.New("run cancelled")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ConfigReason classifies a ConfigurationError.
type ConfigReason string

const (
	ReasonMissingDependency ConfigReason = "missing_dependency"
	ReasonDuplicateIdentity ConfigReason = "duplicate_identity"
	ReasonEmptyIdentity     ConfigReason = "empty_identity"
	ReasonUnboundIdentity   ConfigReason = "unbound_identity"
)

// ConfigurationError reports a descriptor set that can never be scheduled.
// It is raised before any unit executes.
type ConfigurationError struct {
	Reason     ConfigReason
	Unit       Identity
	Dependency Identity
}

func (e *ConfigurationError) Error() string {
	switch e.Reason {
	case ReasonMissingDependency:
		if e.Unit == "" {
			return fmt.Sprintf("configuration: unit %q is not registered", e.Dependency)
		}
		return fmt.Sprintf("configuration: unit %q depends on %q which is not in the set", e.Unit, e.Dependency)
	case ReasonDuplicateIdentity:
		return fmt.Sprintf("configuration: unit %q is declared more than once", e.Unit)
	case ReasonEmptyIdentity:
		return "configuration: unit identity is empty"
	case ReasonUnboundIdentity:
		return fmt.Sprintf("configuration: no implementation bound for unit %q", e.Unit)
	default:
		return fmt.Sprintf("configuration: %s (unit %q)", e.Reason, e.Unit)
	}
}

func (e *ConfigurationError) Unwrap() error {
	switch e.Reason {
	case ReasonMissingDependency:
		return ErrMissingDependency
	case ReasonDuplicateIdentity:
		return ErrDuplicateIdentity
	case ReasonEmptyIdentity:
		return ErrEmptyIdentity
	case ReasonUnboundIdentity:
		return ErrUnboundIdentity
	default:
		return nil
	}
}

// CycleError is returned when the executor drains without reaching every
// unit. Path holds one witness cycle and Unresolved every unit left pending.
type CycleError struct {
	Path       []Identity
	Unresolved []Identity
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: unresolved units %s", ErrCycleDetected, JoinIdentities(e.Unresolved))
	}
	parts := make([]string, 0, len(e.Path))
	for _, id := range e.Path {
		parts = append(parts, string(id))
	}
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(parts, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// UnitError wraps the error a unit returned.
type UnitError struct {
	Unit Identity
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %s: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() []error { return []error{ErrUnitFailed, e.Err} }

// PanicError carries a panic recovered from a unit's Execute or, when Merge
// is set, from the merge it returned.
type PanicError struct {
	Unit  Identity
	Value any
	Stack []byte
	Merge bool
}

func (e *PanicError) Error() string {
	if e.Merge {
		return fmt.Sprintf("panic in merge of unit %s: %v", e.Unit, e.Value)
	}
	return fmt.Sprintf("panic in unit %s: %v", e.Unit, e.Value)
}

type haltSignal struct {
	reason string
}

func (h *haltSignal) Error() string { return "halt: " + h.reason }

// Halt builds the error a unit returns to end the run early without failing.
// The halting unit counts as completed and its merge is applied; every unit
// that has not started is skipped.
func Halt(reason string) error {
	return &haltSignal{reason: strings.TrimSpace(reason)}
}

// HaltReason reports whether err is a halt request and returns its reason.
func HaltReason(err error) (string, bool) {
	var h *haltSignal
	if errors.As(err, &h) {
		return h.reason, true
	}
	return "", false
}

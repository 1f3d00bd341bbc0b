package enrich

import (
	"context"
	"runtime/debug"
	"sync"
)

// Subject is the shared result a run builds up. The executor calls
// MarkApplied with a unit's Kind after applying that unit's merge.
type Subject interface {
	Applied() Kind
	MarkApplied(Kind)
}

// Merge applies a unit's output to the subject. Merges run one at a time on
// the control goroutine while the subject is write-locked.
type Merge[S Subject] func(S)

// View gives running units read access to the subject. Reads take a shared
// lock and never overlap a merge.
type View[S Subject] struct {
	mu      sync.RWMutex
	subject S
}

// NewView wraps subject for direct use by tests and callers that execute a
// single unit outside a run.
func NewView[S Subject](subject S) *View[S] {
	return &View[S]{subject: subject}
}

// Read calls fn with the subject under the read lock. fn must not retain
// references to mutable subject state after it returns.
func (v *View[S]) Read(fn func(S)) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	fn(v.subject)
}

// Applied returns the subject's current flags.
func (v *View[S]) Applied() Kind {
	var kind Kind
	v.Read(func(s S) { kind = s.Applied() })
	return kind
}

// apply runs merge and marks kind under the write lock. A panicking merge
// leaves kind unmarked and comes back as a *PanicError.
func (v *View[S]) apply(id Identity, kind Kind, merge Merge[S]) (err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Unit: id, Value: recovered, Stack: debug.Stack(), Merge: true}
		}
	}()
	if merge != nil {
		merge(v.subject)
	}
	v.subject.MarkApplied(kind)
	return nil
}

// Unit is a pluggable enrichment step.
type Unit[S Subject] interface {
	Descriptor() Descriptor
	// Execute computes the unit's output from the view and returns a merge
	// that records it. A nil merge with a nil error still marks Kind applied.
	Execute(ctx context.Context, view *View[S]) (Merge[S], error)
}

// Func adapts a descriptor and a function into a Unit.
type Func[S Subject] struct {
	Desc Descriptor
	Fn   func(ctx context.Context, view *View[S]) (Merge[S], error)
}

func (f Func[S]) Descriptor() Descriptor { return f.Desc }

func (f Func[S]) Execute(ctx context.Context, view *View[S]) (Merge[S], error) {
	if f.Fn == nil {
		return nil, nil
	}
	return f.Fn(ctx, view)
}

// Descriptors extracts the descriptor of every unit in order.
func Descriptors[S Subject](units []Unit[S]) []Descriptor {
	descs := make([]Descriptor, 0, len(units))
	for _, unit := range units {
		if unit == nil {
			continue
		}
		descs = append(descs, unit.Descriptor())
	}
	return descs
}

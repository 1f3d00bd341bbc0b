package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"lightbox/internal/logging"
	"lightbox/internal/services"
)

// Execute builds a graph from the units' descriptors and runs it.
func Execute[S Subject](ctx context.Context, units []Unit[S], subject S, opts Options) (*Report, error) {
	graph, err := Build(Descriptors(units))
	if err != nil {
		return nil, err
	}
	return Run(ctx, graph, units, subject, opts)
}

// Run drains graph against subject. units must supply an implementation for
// every identity in the graph; extra units are ignored. The returned report
// is non-nil whenever the units could be bound, and the error is nil only
// for succeeded and halted runs.
func Run[S Subject](ctx context.Context, graph *Graph, units []Unit[S], subject S, opts Options) (*Report, error) {
	if graph == nil {
		return nil, errors.New("enrich: nil graph")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	bound, err := bindUnits(graph, units)
	if err != nil {
		return nil, err
	}
	r := newRunner(graph, bound, subject, opts)
	if path := graph.CyclePath(); path != nil {
		return r.rejectCycle(ctx, path)
	}
	return r.run(ctx)
}

func bindUnits[S Subject](graph *Graph, units []Unit[S]) (map[Identity]Unit[S], error) {
	bound := make(map[Identity]Unit[S], graph.Len())
	for _, unit := range units {
		if unit == nil {
			continue
		}
		id := unit.Descriptor().ID
		if !graph.Contains(id) {
			continue
		}
		if _, dup := bound[id]; dup {
			return nil, &ConfigurationError{Reason: ReasonDuplicateIdentity, Unit: id}
		}
		bound[id] = unit
	}
	for _, id := range graph.order {
		if _, ok := bound[id]; !ok {
			return nil, &ConfigurationError{Reason: ReasonUnboundIdentity, Unit: id}
		}
	}
	return bound, nil
}

type completion[S Subject] struct {
	id      Identity
	merge   Merge[S]
	err     error
	elapsed time.Duration
}

// runner owns all mutable run state. Everything except execute runs on the
// control goroutine.
type runner[S Subject] struct {
	graph  *Graph
	units  map[Identity]Unit[S]
	view   *View[S]
	opts   Options
	logger *slog.Logger
	limit  int

	indegree map[Identity]int
	queue    *readyQueue
	results  chan completion[S]
	running  int
	report   *Report

	stopping   bool
	cancelled  bool
	stopCause  Identity
	stopReason string

	unitErrs     []error
	invariantErr error
}

func newRunner[S Subject](graph *Graph, units map[Identity]Unit[S], subject S, opts Options) *runner[S] {
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	indegree := make(map[Identity]int, graph.Len())
	states := make(map[Identity]State, graph.Len())
	for _, id := range graph.order {
		indegree[id] = graph.indegree[id]
		states[id] = StatePending
	}

	r := &runner[S]{
		graph:    graph,
		units:    units,
		view:     &View[S]{subject: subject},
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "enrich"),
		limit:    limit,
		indegree: indegree,
		queue:    newReadyQueue(nil),
		results:  make(chan completion[S], graph.Len()),
		report: &Report{
			RunID:       runID,
			Policy:      opts.Policy,
			Concurrency: limit,
			States:      states,
			Durations:   make(map[Identity]time.Duration, graph.Len()),
		},
	}
	return r
}

// rejectCycle ends a run whose graph contains a cycle before any unit is
// dispatched. Every unit stays Pending and the subject is untouched.
func (r *runner[S]) rejectCycle(ctx context.Context, path []Identity) (*Report, error) {
	ctx = services.WithRunID(ctx, r.report.RunID)
	r.logger = logging.WithContext(ctx, r.logger)
	report := r.report
	report.StartedAt = time.Now()
	report.FinishedAt = report.StartedAt
	report.Outcome = OutcomeCycleDetected
	report.Drained = false

	err := &CycleError{Path: path, Unresolved: r.graph.unresolvable()}
	logging.ErrorWithContext(r.logger, "enrichment run rejected", "run_cycle_detected",
		logging.String("cycle", JoinIdentities(path)),
		logging.Int("unresolved", len(err.Unresolved)),
		logging.String(logging.FieldErrorHint, "check unit dependency declarations"),
		logging.String(logging.FieldImpact, "no units ran"),
	)
	return report, err
}

func (r *runner[S]) run(ctx context.Context) (*Report, error) {
	ctx = services.WithRunID(ctx, r.report.RunID)
	r.logger = logging.WithContext(ctx, r.logger)
	r.report.StartedAt = time.Now()
	for _, id := range r.graph.ready {
		r.transition(id, StateReady)
		r.queue.push(id)
	}
	r.logger.Debug("enrichment run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("units", r.graph.Len()),
		logging.Int("concurrency", r.limit),
		logging.String("policy", r.opts.Policy.String()),
	)

	done := ctx.Done()
	for {
		if !r.stopping && ctx.Err() != nil {
			r.cancel()
		}
		r.dispatch(ctx)
		if r.running == 0 {
			break
		}
		select {
		case c := <-r.results:
			if !r.stopping && ctx.Err() != nil {
				r.cancel()
			}
			r.handle(c)
		case <-done:
			done = nil
			r.cancel()
		}
	}
	return r.finish(ctx)
}

func (r *runner[S]) dispatch(ctx context.Context) {
	for !r.stopping && r.running < r.limit {
		id, ok := r.queue.pop()
		if !ok {
			return
		}
		if r.report.States[id] != StateReady {
			continue
		}
		r.transition(id, StateRunning)
		r.running++
		r.emit(Event{Type: EventDispatched, Unit: id})
		r.logger.Debug("unit dispatched",
			logging.String(logging.FieldUnit, string(id)),
			logging.String(logging.FieldEventType, "unit_start"),
			logging.Int("in_flight", r.running),
		)
		go r.execute(ctx, id, r.units[id])
	}
}

func (r *runner[S]) execute(ctx context.Context, id Identity, unit Unit[S]) {
	start := time.Now()
	c := completion[S]{id: id}
	defer func() {
		if recovered := recover(); recovered != nil {
			c.merge = nil
			c.err = &PanicError{Unit: id, Value: recovered, Stack: debug.Stack()}
		}
		c.elapsed = time.Since(start)
		r.results <- c
	}()
	c.merge, c.err = unit.Execute(services.WithUnit(ctx, string(id)), r.view)
}

func (r *runner[S]) handle(c completion[S]) {
	r.running--
	r.report.Durations[c.id] = c.elapsed

	reason, halted := HaltReason(c.err)
	if c.err != nil && !halted {
		r.fail(c)
		return
	}
	if err := r.view.apply(c.id, r.graph.Kind(c.id), c.merge); err != nil {
		c.err = err
		r.fail(c)
		return
	}
	r.complete(c)
	if halted {
		r.halt(c.id, reason)
	}
}

func (r *runner[S]) complete(c completion[S]) {
	kind := r.graph.Kind(c.id)
	r.transition(c.id, StateCompleted)
	r.report.Completed = append(r.report.Completed, c.id)
	r.report.Flags |= kind
	r.emit(Event{Type: EventCompleted, Unit: c.id, Elapsed: c.elapsed})
	r.logger.Debug("unit completed",
		logging.String(logging.FieldUnit, string(c.id)),
		logging.String(logging.FieldEventType, "unit_complete"),
		logging.Duration("unit_duration", c.elapsed),
	)

	for _, dependent := range r.graph.dependents[c.id] {
		r.indegree[dependent]--
		if r.indegree[dependent] == 0 && r.report.States[dependent] == StatePending {
			r.transition(dependent, StateReady)
			r.queue.push(dependent)
		}
	}
}

func (r *runner[S]) fail(c completion[S]) {
	r.transition(c.id, StateFailed)
	r.report.Failed = append(r.report.Failed, FailureRecord{ID: c.id, Err: c.err})
	r.unitErrs = append(r.unitErrs, &UnitError{Unit: c.id, Err: c.err})
	r.emit(Event{Type: EventFailed, Unit: c.id, Elapsed: c.elapsed, Err: c.err})
	logging.WarnWithContext(r.logger, "unit failed", "unit_failed",
		logging.String(logging.FieldUnit, string(c.id)),
		logging.Error(c.err),
		logging.Duration("unit_duration", c.elapsed),
		logging.String("policy", r.opts.Policy.String()),
		logging.String(logging.FieldImpact, "dependent units will not run"),
	)

	if r.opts.Policy == ContinueOnError {
		r.skipDependents(c.id)
		return
	}
	r.stop(c.id, fmt.Sprintf("run stopped after %s failed", c.id))
}

// skipDependents marks every transitive dependent of root Skipped. Units that
// already reached a terminal state are left alone.
func (r *runner[S]) skipDependents(root Identity) {
	pending := cloneIDs(r.graph.dependents[root])
	reason := fmt.Sprintf("dependency %s failed", root)
	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]
		state := r.report.States[id]
		if state != StatePending && state != StateReady {
			continue
		}
		r.skip(id, root, reason)
		pending = append(pending, r.graph.dependents[id]...)
	}
}

func (r *runner[S]) skip(id, blockedBy Identity, reason string) {
	r.transition(id, StateSkipped)
	r.report.Skipped = append(r.report.Skipped, SkipRecord{ID: id, BlockedBy: blockedBy, Reason: reason})
	r.emit(Event{Type: EventSkipped, Unit: id, BlockedBy: blockedBy})
	r.logger.Debug("unit skipped",
		logging.String(logging.FieldUnit, string(id)),
		logging.String(logging.FieldEventType, "unit_skipped"),
		logging.String("blocked_by", string(blockedBy)),
		logging.String("reason", reason),
	)
}

func (r *runner[S]) halt(id Identity, reason string) {
	if r.stopping {
		return
	}
	r.report.HaltedBy = id
	r.report.HaltReason = reason
	r.emit(Event{Type: EventHalted, Unit: id})
	r.logger.Info("run halted by unit",
		logging.String(logging.FieldUnit, string(id)),
		logging.String(logging.FieldEventType, "run_halted"),
		logging.String("reason", reason),
	)
	r.stop(id, fmt.Sprintf("halted by %s: %s", id, reason))
}

func (r *runner[S]) stop(cause Identity, reason string) {
	if r.stopping {
		return
	}
	r.stopping = true
	r.stopCause = cause
	r.stopReason = reason
}

func (r *runner[S]) cancel() {
	if r.stopping {
		return
	}
	r.cancelled = true
	r.stop("", "run cancelled")
}

func (r *runner[S]) transition(id Identity, to State) {
	from := r.report.States[id]
	if !canTransition(from, to) {
		if r.invariantErr == nil {
			r.invariantErr = fmt.Errorf("%w: unit %s %s -> %s", ErrInvalidTransition, id, from, to)
		}
		return
	}
	r.report.States[id] = to
}

func (r *runner[S]) emit(event Event) {
	if r.opts.Observer != nil {
		r.opts.Observer(event)
	}
}

func (r *runner[S]) finish(ctx context.Context) (*Report, error) {
	var unresolved []Identity
	for _, id := range r.graph.order {
		state := r.report.States[id]
		if state.Terminal() {
			continue
		}
		if r.stopping {
			r.skip(id, r.stopCause, r.stopReason)
			continue
		}
		unresolved = append(unresolved, id)
	}

	report := r.report
	report.FinishedAt = time.Now()
	report.Drained = len(unresolved) == 0

	var primary error
	switch {
	case r.cancelled:
		report.Outcome = OutcomeCancelled
		cause := context.Cause(ctx)
		if cause == nil {
			cause = context.Canceled
		}
		primary = fmt.Errorf("%w: %w", ErrCancelled, cause)
	case len(unresolved) > 0:
		// Cycles are rejected before dispatch; reaching here means the
		// drain bookkeeping lost a unit.
		report.Outcome = OutcomeCycleDetected
		within := make(map[Identity]struct{}, len(unresolved))
		for _, id := range unresolved {
			within[id] = struct{}{}
		}
		primary = &CycleError{Path: r.graph.findCycle(within), Unresolved: unresolved}
	case len(r.unitErrs) > 0:
		report.Outcome = OutcomeFailed
	case report.HaltedBy != "":
		report.Outcome = OutcomeHalted
	default:
		report.Outcome = OutcomeSucceeded
	}

	errs := make([]error, 0, len(r.unitErrs)+2)
	if primary != nil {
		errs = append(errs, primary)
	}
	errs = append(errs, r.unitErrs...)
	if r.invariantErr != nil {
		errs = append(errs, r.invariantErr)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("outcome", string(report.Outcome)),
		logging.Int("completed", len(report.Completed)),
		logging.Int("failed", len(report.Failed)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Duration("run_duration", report.Duration()),
	}
	if report.Outcome == OutcomeCycleDetected {
		logging.ErrorWithContext(r.logger, "enrichment run could not drain", "run_cycle_detected",
			append(attrs, logging.Error(primary),
				logging.String(logging.FieldErrorHint, "check unit dependency declarations"))...)
	} else {
		r.logger.Debug("enrichment run finished", logging.Args(attrs...)...)
	}

	return report, joinErrors(errs)
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

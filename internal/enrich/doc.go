// Package enrich schedules enrichment units against a single shared subject.
//
// Units declare their identity, the identities they depend on, and the result
// flag they contribute. Build validates a descriptor set and compiles it into
// an immutable Graph (forward edges, indegree counts, the initial ready set).
// Run drains the graph on one control goroutine: ready units are dispatched in
// FIFO order onto at most Options.Concurrency goroutines, completions are
// awaited one at a time, and every successful unit's merge is applied to the
// subject under a write lock before its dependents are released.
//
// Failures follow the configured Policy. FailFast stops dispatching and lets
// in-flight units finish; ContinueOnError marks every transitive dependent of
// the failed unit Skipped and keeps going. A graph that cannot be drained is
// reported as a dependency cycle, and context cancellation yields a distinct
// Cancelled outcome. Every run, including partial ones, returns a Report.
package enrich

// Package notifications delivers library events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Individual event families can be switched off in the [notifications]
// section; suppressed events are dropped without a request.
//
// RunNotifier adapts the service to the enrichment pipeline's run observer.
package notifications

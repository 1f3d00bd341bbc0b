package services

import "context"

type contextKey string

const (
	photoIDKey contextKey = "photo_id"
	unitKey    contextKey = "unit"
	runIDKey   contextKey = "run_id"
)

// WithPhotoID annotates context with the library photo identifier.
func WithPhotoID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, photoIDKey, id)
}

// PhotoIDFromContext extracts the photo identifier if present.
func PhotoIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(photoIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithUnit annotates context with the enrichment unit currently executing.
func WithUnit(ctx context.Context, unit string) context.Context {
	if unit == "" {
		return ctx
	}
	return context.WithValue(ctx, unitKey, unit)
}

// UnitFromContext returns the unit identity if present.
func UnitFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(unitKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the enrichment run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

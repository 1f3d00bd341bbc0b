package enrichers

import (
	"fmt"
	"strings"

	"lightbox/internal/enrich"
	"lightbox/internal/photo"
	"lightbox/internal/selection"
)

// Registry holds the registered units in registration order.
type Registry struct {
	units []Unit
	byID  map[enrich.Identity]Unit
}

// NewRegistry validates that identities are unique and non-empty.
func NewRegistry(units ...Unit) (*Registry, error) {
	r := &Registry{byID: make(map[enrich.Identity]Unit, len(units))}
	for _, unit := range units {
		if unit == nil {
			continue
		}
		id := unit.Descriptor().ID
		if strings.TrimSpace(string(id)) == "" {
			return nil, &enrich.ConfigurationError{Reason: enrich.ReasonEmptyIdentity}
		}
		if _, dup := r.byID[id]; dup {
			return nil, &enrich.ConfigurationError{Reason: enrich.ReasonDuplicateIdentity, Unit: id}
		}
		r.byID[id] = unit
		r.units = append(r.units, unit)
	}
	return r, nil
}

// Builtin registers the built-in units. Vision units are left out when
// deps.Analyzer is nil.
func Builtin(deps Deps) *Registry {
	units := []Unit{
		previewUnit(deps),
		metadataUnit(deps),
		duplicateUnit(deps),
		thumbnailUnit(deps),
		colorUnit(),
	}
	if deps.Analyzer != nil {
		units = append(units,
			analyzeUnit(deps),
			tagUnit(),
			categoryUnit(),
			captionUnit(),
			adultUnit(),
			objectsUnit(),
			faceUnit(deps),
		)
	}
	r, err := NewRegistry(units...)
	if err != nil {
		panic(fmt.Sprintf("enrichers: built-in registry: %v", err))
	}
	return r
}

// Units returns every registered unit.
func (r *Registry) Units() []Unit {
	return append([]Unit(nil), r.units...)
}

// Descriptors returns the descriptor of every registered unit.
func (r *Registry) Descriptors() []enrich.Descriptor {
	return enrich.Descriptors(r.units)
}

// Lookup returns the unit registered under id.
func (r *Registry) Lookup(id enrich.Identity) (Unit, bool) {
	unit, ok := r.byID[id]
	return unit, ok
}

// Active returns the units named in names plus everything they depend on,
// in registration order. An empty list activates every registered unit.
func (r *Registry) Active(names []string) ([]Unit, error) {
	if len(names) == 0 {
		return r.Units(), nil
	}
	ids := make([]enrich.Identity, 0, len(names))
	for _, name := range names {
		id := enrich.Identity(strings.TrimSpace(name))
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("unknown or unavailable unit %q", name)
		}
		ids = append(ids, id)
	}
	closure, err := selection.Subgraph(r.Descriptors(), ids, 0, selection.Options{Policy: selection.ForceAll})
	if err != nil {
		return nil, err
	}
	units := make([]Unit, 0, len(closure))
	for _, desc := range closure {
		units = append(units, r.byID[desc.ID])
	}
	return units, nil
}

// Kinds resolves unit names to the OR of their result flags.
func (r *Registry) Kinds(names []string) (enrich.Kind, error) {
	var kind enrich.Kind
	for _, name := range names {
		unit, ok := r.byID[enrich.Identity(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown or unavailable unit %q", name)
		}
		kind |= unit.Descriptor().Kind
	}
	return kind, nil
}

// ResetUnits clears the previous output of units on rec and drops their
// flags so a forced run starts from a clean record.
func ResetUnits(rec *photo.Record, units []Unit) {
	for _, unit := range units {
		if resetter, ok := unit.(Resetter); ok {
			resetter.Reset(rec)
		}
		rec.ClearFlags(unit.Descriptor().Kind)
	}
}

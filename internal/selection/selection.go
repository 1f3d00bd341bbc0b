// Package selection narrows a registered unit set to the units one
// incremental run actually has to execute.
package selection

import (
	"slices"

	"lightbox/internal/enrich"
)

// Policy decides what happens to a dependency whose result is already recorded.
type Policy int

const (
	// SatisfiedSkip treats an already applied dependency that was not
	// requested as satisfied: it does not run and is dropped from its
	// dependents' dependency lists.
	SatisfiedSkip Policy = iota
	// ForceAll re-runs every dependency in the closure.
	ForceAll
)

func (p Policy) String() string {
	if p == ForceAll {
		return "force_all"
	}
	return "satisfied_skip"
}

// Options tunes Subgraph.
type Options struct {
	Policy Policy
	// DataProviders are kinds whose output is transient. Units producing them
	// always re-run when something in the closure needs them.
	DataProviders enrich.Kind
}

// Subgraph returns the descriptors needed to run requested: the requested
// units plus the transitive closure of their dependencies, filtered by the
// policy. Output keeps the order of all. Unknown requested identities yield a
// ConfigurationError with reason MissingDependency and an empty Unit.
func Subgraph(all []enrich.Descriptor, requested []enrich.Identity, applied enrich.Kind, opts Options) ([]enrich.Descriptor, error) {
	index := make(map[enrich.Identity]enrich.Descriptor, len(all))
	for _, desc := range all {
		index[desc.ID] = desc
	}

	explicit := make(map[enrich.Identity]struct{}, len(requested))
	queue := make([]enrich.Identity, 0, len(requested))
	for _, id := range requested {
		if _, ok := index[id]; !ok {
			return nil, &enrich.ConfigurationError{Reason: enrich.ReasonMissingDependency, Dependency: id}
		}
		if _, dup := explicit[id]; dup {
			continue
		}
		explicit[id] = struct{}{}
		queue = append(queue, id)
	}

	included := make(map[enrich.Identity]struct{}, len(all))
	for _, id := range queue {
		included[id] = struct{}{}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range index[id].Deps {
			if _, seen := included[dep]; seen {
				continue
			}
			desc, ok := index[dep]
			if !ok {
				return nil, &enrich.ConfigurationError{Reason: enrich.ReasonMissingDependency, Unit: id, Dependency: dep}
			}
			if satisfied(desc, applied, opts) {
				continue
			}
			included[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}

	out := make([]enrich.Descriptor, 0, len(included))
	for _, desc := range all {
		if _, ok := included[desc.ID]; !ok {
			continue
		}
		deps := make([]enrich.Identity, 0, len(desc.Deps))
		for _, dep := range desc.Deps {
			if _, ok := included[dep]; ok {
				deps = append(deps, dep)
			}
		}
		out = append(out, enrich.Descriptor{ID: desc.ID, Deps: deps, Kind: desc.Kind})
	}
	return out, nil
}

func satisfied(desc enrich.Descriptor, applied enrich.Kind, opts Options) bool {
	if opts.Policy == ForceAll {
		return false
	}
	if opts.DataProviders.Has(desc.Kind) {
		return false
	}
	return applied.Has(desc.Kind)
}

// Missing returns the units in active whose Kind is not yet in applied, in the
// order of all. An empty active list means every unit in all. Units with a
// zero Kind never count as missing.
func Missing(all []enrich.Descriptor, active []enrich.Identity, applied enrich.Kind) []enrich.Identity {
	var missing []enrich.Identity
	for _, desc := range all {
		if len(active) > 0 && !slices.Contains(active, desc.ID) {
			continue
		}
		if desc.Kind == 0 || applied.Has(desc.Kind) {
			continue
		}
		missing = append(missing, desc.ID)
	}
	return missing
}

// Expected returns the flags a successful run of descs sets.
func Expected(descs []enrich.Descriptor) enrich.Kind {
	var kind enrich.Kind
	for _, desc := range descs {
		kind |= desc.Kind
	}
	return kind
}

// Filter keeps the descriptors named in ids, preserving the order of all.
// An empty ids list keeps everything.
func Filter(all []enrich.Descriptor, ids []enrich.Identity) []enrich.Descriptor {
	if len(ids) == 0 {
		return slices.Clone(all)
	}
	out := make([]enrich.Descriptor, 0, len(ids))
	for _, desc := range all {
		if slices.Contains(ids, desc.ID) {
			out = append(out, desc)
		}
	}
	return out
}

package enrich

import "strings"

// Graph is the compiled, immutable form of a descriptor set. It is safe to
// share between runs; Run copies the indegree counts before mutating them.
type Graph struct {
	order      []Identity
	kinds      map[Identity]Kind
	deps       map[Identity][]Identity
	dependents map[Identity][]Identity
	indegree   map[Identity]int
	ready      []Identity
	edges      int
}

// Build validates descriptors and compiles them into a Graph. Duplicate
// dependency entries collapse to one edge. Cycles are not rejected here; Run
// reports them as ErrCycleDetected before dispatching any unit.
func Build(descs []Descriptor) (*Graph, error) {
	g := &Graph{
		order:      make([]Identity, 0, len(descs)),
		kinds:      make(map[Identity]Kind, len(descs)),
		deps:       make(map[Identity][]Identity, len(descs)),
		dependents: make(map[Identity][]Identity, len(descs)),
		indegree:   make(map[Identity]int, len(descs)),
	}

	for _, desc := range descs {
		id := desc.ID
		if strings.TrimSpace(string(id)) == "" {
			return nil, &ConfigurationError{Reason: ReasonEmptyIdentity}
		}
		if _, exists := g.kinds[id]; exists {
			return nil, &ConfigurationError{Reason: ReasonDuplicateIdentity, Unit: id}
		}
		g.kinds[id] = desc.Kind
		g.order = append(g.order, id)
	}

	for _, desc := range descs {
		id := desc.ID
		seen := make(map[Identity]struct{}, len(desc.Deps))
		deps := make([]Identity, 0, len(desc.Deps))
		for _, dep := range desc.Deps {
			if _, dup := seen[dep]; dup {
				continue
			}
			if _, ok := g.kinds[dep]; !ok {
				return nil, &ConfigurationError{Reason: ReasonMissingDependency, Unit: id, Dependency: dep}
			}
			seen[dep] = struct{}{}
			deps = append(deps, dep)
			g.dependents[dep] = append(g.dependents[dep], id)
		}
		g.deps[id] = deps
		g.indegree[id] = len(deps)
		g.edges += len(deps)
	}

	for _, id := range g.order {
		if g.indegree[id] == 0 {
			g.ready = append(g.ready, id)
		}
	}
	return g, nil
}

// Len returns the number of units in the graph.
func (g *Graph) Len() int { return len(g.order) }

// Edges returns the number of dependency edges, equal to the sum of indegrees.
func (g *Graph) Edges() int { return g.edges }

// Order returns unit identities in descriptor order.
func (g *Graph) Order() []Identity { return cloneIDs(g.order) }

// Ready returns the units with no dependencies, in descriptor order.
func (g *Graph) Ready() []Identity { return cloneIDs(g.ready) }

// Contains reports whether id is part of the graph.
func (g *Graph) Contains(id Identity) bool {
	_, ok := g.kinds[id]
	return ok
}

// Kind returns the result flag of id.
func (g *Graph) Kind(id Identity) Kind { return g.kinds[id] }

// Dependencies returns the deduplicated dependencies of id.
func (g *Graph) Dependencies(id Identity) []Identity { return cloneIDs(g.deps[id]) }

// Dependents returns the units that list id as a dependency.
func (g *Graph) Dependents(id Identity) []Identity { return cloneIDs(g.dependents[id]) }

// Indegree returns the number of unmet dependencies of id before any run.
func (g *Graph) Indegree(id Identity) int { return g.indegree[id] }

// Kinds returns the OR of every unit's result flag.
func (g *Graph) Kinds() Kind {
	var all Kind
	for _, kind := range g.kinds {
		all |= kind
	}
	return all
}

// CyclePath returns one dependency cycle as a closed path (first element
// repeated at the end), or nil when the graph is acyclic. The search walks
// units in descriptor order so the witness is stable.
func (g *Graph) CyclePath() []Identity {
	return g.findCycle(nil)
}

func (g *Graph) findCycle(within map[Identity]struct{}) []Identity {
	const (
		white = iota
		grey
		black
	)
	color := make(map[Identity]int, len(g.order))
	var stack []Identity
	var found []Identity

	include := func(id Identity) bool {
		if within == nil {
			return true
		}
		_, ok := within[id]
		return ok
	}

	var visit func(id Identity) bool
	visit = func(id Identity) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, dep := range g.deps[id] {
			if !include(dep) {
				continue
			}
			switch color[dep] {
			case grey:
				start := 0
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						start = i
						break
					}
				}
				found = append(cloneIDs(stack[start:]), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if !include(id) || color[id] != white {
			continue
		}
		if visit(id) {
			return found
		}
	}
	return nil
}

// unresolvable returns, in descriptor order, the units that can never become
// ready: cycle members and everything downstream of them.
func (g *Graph) unresolvable() []Identity {
	indegree := make(map[Identity]int, len(g.order))
	for id, n := range g.indegree {
		indegree[id] = n
	}
	queue := cloneIDs(g.ready)
	resolved := make(map[Identity]struct{}, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		resolved[id] = struct{}{}
		for _, dependent := range g.dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	var out []Identity
	for _, id := range g.order {
		if _, ok := resolved[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func cloneIDs(ids []Identity) []Identity {
	if len(ids) == 0 {
		return nil
	}
	out := make([]Identity, len(ids))
	copy(out, ids)
	return out
}

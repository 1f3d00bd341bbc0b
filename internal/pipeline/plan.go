package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"lightbox/internal/enrich"
	"lightbox/internal/enrichers"
	"lightbox/internal/photo"
	"lightbox/internal/selection"
	"lightbox/internal/services"
)

type plan struct {
	requested []enrich.Identity
	selected  []enrich.Identity
	units     []enrichers.Unit
	graph     *enrich.Graph
	expected  enrich.Kind
}

// plan picks the units to run for rec and compiles their graph.
func (s *Service) plan(rec *photo.Record, req Request) (*plan, error) {
	requested, err := s.requested(rec, req)
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return &plan{}, nil
	}

	opts := selection.Options{Policy: selection.SatisfiedSkip, DataProviders: s.providers}
	if req.Force {
		opts.Policy = selection.ForceAll
	}
	descs, err := selection.Subgraph(s.descs, requested, rec.Applied(), opts)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "select units", "", err)
	}
	graph, err := s.graph(descs)
	if err != nil {
		return nil, err
	}

	p := &plan{
		requested: requested,
		graph:     graph,
		expected:  selection.Expected(descs),
	}
	for _, desc := range descs {
		unit, _ := s.registry.Lookup(desc.ID)
		p.selected = append(p.selected, desc.ID)
		p.units = append(p.units, unit)
	}
	return p, nil
}

func (s *Service) requested(rec *photo.Record, req Request) ([]enrich.Identity, error) {
	active := s.ActiveUnits()
	if len(req.Units) == 0 {
		if req.Force {
			return active, nil
		}
		return selection.Missing(s.descs, active, rec.Applied()), nil
	}
	ids := make([]enrich.Identity, 0, len(req.Units))
	for _, name := range req.Units {
		id := enrich.Identity(strings.TrimSpace(name))
		if id == "" {
			continue
		}
		if !slices.Contains(active, id) {
			return nil, services.Wrap(services.ErrValidation, "pipeline", "select units",
				fmt.Sprintf("unit %q is not active", id), nil)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	// Explicitly requested units run even when their result exists.
	return ids, nil
}

// graph returns a compiled graph for descs, reusing a cached one when the
// same trimmed unit set was built before.
func (s *Service) graph(descs []enrich.Descriptor) (*enrich.Graph, error) {
	key := graphKey(descs)
	if g, ok := s.graphs.Get(key); ok {
		return g, nil
	}
	g, err := enrich.Build(descs)
	if err != nil {
		var cfgErr *enrich.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "build graph", "", err)
		}
		return nil, fmt.Errorf("build graph: %w", err)
	}
	s.graphs.Add(key, g)
	return g, nil
}

func graphKey(descs []enrich.Descriptor) string {
	var b strings.Builder
	for i, desc := range descs {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(string(desc.ID))
		b.WriteByte('<')
		b.WriteString(enrich.JoinIdentities(desc.Deps))
	}
	return b.String()
}

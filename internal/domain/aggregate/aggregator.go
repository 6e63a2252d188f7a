// Package aggregate folds per-entity content documents into aggregate
// documents, one accumulator per field, selected by a per-field policy.
package aggregate

import (
	"fmt"

	"github.com/DataBiosphere/azul-indexer/internal/domain/accumulate"
)

// Transform optionally reshapes each input document before folding, used to
// normalize a transformer's raw output.
type Transform func(contents map[string]any) map[string]any

// GroupKeyFunc derives the grouping key for one document.
type GroupKeyFunc func(contents map[string]any) string

// Simple folds a list of content documents into at most one aggregate dict.
// Accumulator instances are created on first sight of a field and never
// reused across folds; construct a fresh Simple per fold.
type Simple struct {
	policy    accumulate.Policy
	transform Transform
}

// NewSimple creates a simple aggregator with the given field policy.
func NewSimple(policy accumulate.Policy) *Simple {
	if policy == nil {
		policy = accumulate.DefaultPolicy
	}
	return &Simple{policy: policy}
}

// WithTransform sets a per-document transform applied before folding.
func (s *Simple) WithTransform(t Transform) *Simple {
	s.transform = t
	return s
}

// Fold merges docs field by field. An empty input yields nil. Fields whose
// policy resolves to a nil factory are dropped.
func (s *Simple) Fold(docs []map[string]any) (map[string]any, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	accumulators := make(map[string]accumulate.Accumulator)
	dropped := make(map[string]struct{})
	var order []string
	for _, doc := range docs {
		if s.transform != nil {
			doc = s.transform(doc)
		}
		for field, value := range doc {
			if _, skip := dropped[field]; skip {
				continue
			}
			acc, ok := accumulators[field]
			if !ok {
				factory := s.policy(field)
				if factory == nil {
					dropped[field] = struct{}{}
					continue
				}
				acc = factory()
				accumulators[field] = acc
				order = append(order, field)
			}
			if err := acc.Accumulate(value); err != nil {
				return nil, fmt.Errorf("fold field %q: %w", field, err)
			}
		}
	}
	out := make(map[string]any, len(order))
	for _, field := range order {
		v, err := accumulators[field].Get()
		if err != nil {
			return nil, fmt.Errorf("summarize field %q: %w", field, err)
		}
		out[field] = v
	}
	return out, nil
}

// Grouping partitions documents by a key and applies a Simple fold per
// group, yielding one aggregate dict per group.
type Grouping struct {
	policy    accumulate.Policy
	transform Transform
	keyOf     GroupKeyFunc
}

// NewGrouping creates a grouping aggregator.
func NewGrouping(policy accumulate.Policy, keyOf GroupKeyFunc) *Grouping {
	if policy == nil {
		policy = accumulate.DefaultPolicy
	}
	return &Grouping{policy: policy, keyOf: keyOf}
}

// WithTransform sets a per-document transform applied before grouping.
func (g *Grouping) WithTransform(t Transform) *Grouping {
	g.transform = t
	return g
}

// Fold partitions docs by group key and folds each partition independently.
// Group iteration order follows first appearance in the input.
func (g *Grouping) Fold(docs []map[string]any) (map[string]map[string]any, error) {
	groups := make(map[string][]map[string]any)
	var order []string
	for _, doc := range docs {
		if g.transform != nil {
			doc = g.transform(doc)
		}
		key := g.keyOf(doc)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], doc)
	}
	out := make(map[string]map[string]any, len(order))
	for _, key := range order {
		folded, err := NewSimple(g.policy).Fold(groups[key])
		if err != nil {
			return nil, fmt.Errorf("fold group %q: %w", key, err)
		}
		out[key] = folded
	}
	return out, nil
}

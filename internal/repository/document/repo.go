// Package document persists contributions and aggregates, mapping the store's
// concurrency-control errors onto domain sentinels.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	doc "github.com/DataBiosphere/azul-indexer/internal/domain/document"
	"github.com/DataBiosphere/azul-indexer/internal/domain/translate"
	"github.com/DataBiosphere/azul-indexer/internal/es"
)

// store is the consumer interface for document persistence (ISP).
type store interface {
	Create(ctx context.Context, index, id string, body []byte) error
	Index(ctx context.Context, index, id string, body []byte, expected *es.Version) error
	Delete(ctx context.Context, index, id string, expected *es.Version) error
	Get(ctx context.Context, index, id string) (*es.Document, error)
	Search(ctx context.Context, index string, query []byte) ([]es.Hit, error)
	CreateIndex(ctx context.Context, name string, mapping []byte) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements the usecase/indexer store interfaces.
type Repo struct {
	store  store
	prefix string
	types  translate.FieldTypes
}

// New creates a document repository. prefix namespaces the store indices;
// types drives null translation on both variants.
func New(s store, prefix string, types translate.FieldTypes) *Repo {
	return &Repo{store: s, prefix: prefix, types: types}
}

// CreateContribution writes a contribution with create-only semantics.
// Returns domain.ErrConflict when the identical contribution already exists.
func (r *Repo) CreateContribution(ctx context.Context, c *doc.Contribution) error {
	body, err := c.MarshalWire(r.types)
	if err != nil {
		return err
	}
	coords := c.Coordinates(r.prefix)
	if err := r.store.Create(ctx, coords.Index, coords.DocumentID, body); err != nil {
		if errors.Is(err, es.ErrConflict) {
			return fmt.Errorf("contribution %s: %w", coords.DocumentID, domain.ErrConflict)
		}
		return fmt.Errorf("create contribution %s: %w", coords.DocumentID, err)
	}
	return nil
}

// ContributionsFor scans every contribution stored for entity. The scan is
// authoritative: aggregation never trusts tally counts as state.
func (r *Repo) ContributionsFor(ctx context.Context, entity domain.EntityReference) ([]*doc.Contribution, error) {
	query, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"term": map[string]any{"entity_id": entity.ID}},
					map[string]any{"term": map[string]any{"entity_type": entity.Type}},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build contribution query: %w", err)
	}
	hits, err := r.store.Search(ctx, doc.KindContribution.IndexName(r.prefix), query)
	if err != nil {
		return nil, fmt.Errorf("scan contributions for %s: %w", entity, err)
	}
	out := make([]*doc.Contribution, 0, len(hits))
	for _, hit := range hits {
		c, err := doc.UnmarshalContribution(hit.Source, r.types)
		if err != nil {
			return nil, fmt.Errorf("decode contribution %s: %w", hit.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// GetAggregate reads the current aggregate with its live version, or
// domain.ErrNotFound.
func (r *Repo) GetAggregate(ctx context.Context, entity domain.EntityReference) (*doc.Aggregate, error) {
	coords := (&doc.Aggregate{Entity: entity}).Coordinates(r.prefix)
	stored, err := r.store.Get(ctx, coords.Index, coords.DocumentID)
	if err != nil {
		if errors.Is(err, es.ErrNotFound) {
			return nil, fmt.Errorf("aggregate %s: %w", entity, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get aggregate %s: %w", entity, err)
	}
	version := stored.Version
	return doc.UnmarshalAggregate(stored.Source, &version, r.types)
}

// WriteAggregate applies the write discipline of the aggregate variant: a
// deletion-shaped aggregate becomes a store delete carrying the read version
// (missing is success), a versionless aggregate a create, anything else a
// compare-and-set overwrite. A stale version yields
// domain.ErrVersionConflict on every path.
func (r *Repo) WriteAggregate(ctx context.Context, a *doc.Aggregate) error {
	coords := a.Coordinates(r.prefix)
	if a.Deleted() {
		if err := r.store.Delete(ctx, coords.Index, coords.DocumentID, a.Version); err != nil {
			if errors.Is(err, es.ErrVersionConflict) {
				return fmt.Errorf("aggregate %s: %w", a.Entity, domain.ErrVersionConflict)
			}
			return fmt.Errorf("delete aggregate %s: %w", a.Entity, err)
		}
		return nil
	}
	body, err := a.MarshalWire(r.types)
	if err != nil {
		return err
	}
	if a.Version == nil {
		if err := r.store.Create(ctx, coords.Index, coords.DocumentID, body); err != nil {
			if errors.Is(err, es.ErrConflict) {
				// someone created it since our read; same recovery as staleness
				return fmt.Errorf("aggregate %s: %w", a.Entity, domain.ErrVersionConflict)
			}
			return fmt.Errorf("create aggregate %s: %w", a.Entity, err)
		}
		return nil
	}
	if err := r.store.Index(ctx, coords.Index, coords.DocumentID, body, a.Version); err != nil {
		if errors.Is(err, es.ErrVersionConflict) {
			return fmt.Errorf("aggregate %s: %w", a.Entity, domain.ErrVersionConflict)
		}
		return fmt.Errorf("write aggregate %s: %w", a.Entity, err)
	}
	return nil
}

// EnsureIndices creates both indices with keyword mappings on the identity
// fields so term scans behave exactly. Existing indices are left alone.
func (r *Repo) EnsureIndices(ctx context.Context) error {
	for kind, mapping := range map[doc.Kind][]byte{
		doc.KindContribution: contributionMapping,
		doc.KindAggregate:    aggregateMapping,
	} {
		name := kind.IndexName(r.prefix)
		exists, err := r.store.IndexExists(ctx, name)
		if err != nil {
			return fmt.Errorf("check index %s: %w", name, err)
		}
		if exists {
			continue
		}
		if err := r.store.CreateIndex(ctx, name, mapping); err != nil && !errors.Is(err, es.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}

var contributionMapping = []byte(`{
	"mappings": {
		"properties": {
			"entity_type":    {"type": "keyword"},
			"entity_id":      {"type": "keyword"},
			"bundle_uuid":    {"type": "keyword"},
			"bundle_version": {"type": "keyword"},
			"bundle_deleted": {"type": "boolean"}
		}
	}
}`)

var aggregateMapping = []byte(`{
	"mappings": {
		"properties": {
			"entity_type":       {"type": "keyword"},
			"entity_id":         {"type": "keyword"},
			"num_contributions": {"type": "long"},
			"bundles": {
				"properties": {
					"uuid":    {"type": "keyword"},
					"version": {"type": "keyword"}
				}
			}
		}
	}
}`)

// Package plugin defines the metadata transformer contract: the swappable,
// domain-specific layer that turns a raw bundle into entity-shaped content
// documents and describes how those documents aggregate.
package plugin

import (
	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/domain/accumulate"
	"github.com/DataBiosphere/azul-indexer/internal/domain/aggregate"
	"github.com/DataBiosphere/azul-indexer/internal/domain/translate"
)

// Entity is one transformed output: the entity a bundle speaks about and
// what it says.
type Entity struct {
	Ref      domain.EntityReference
	Contents map[string]any
}

// Plugin adapts one indexed metadata domain to the pipeline.
type Plugin interface {
	// Name identifies the plugin in logs and config.
	Name() string
	// Transform turns a bundle into zero or more entity content documents.
	// A bundle lacking the required entity yields
	// domain.ErrMissingRequiredEntity.
	Transform(bundle *domain.Bundle) ([]Entity, error)
	// FieldTypes is the schema driving null translation for stored
	// documents.
	FieldTypes() translate.FieldTypes
	// FieldPolicy selects per-field accumulators for aggregation.
	FieldPolicy() accumulate.Policy
	// GroupKeyFor returns the grouping key function for an entity type, or
	// nil when that type aggregates without grouping.
	GroupKeyFor(entityType string) aggregate.GroupKeyFunc
	// RequiredEntityType names the entity type a bundle must produce to be
	// indexable at all.
	RequiredEntityType() string
}

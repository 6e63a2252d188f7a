// Package document models the two document variants the pipeline writes:
// per-bundle contributions and per-entity aggregates. Identity, versioning
// and wire codec rules live here; persistence lives in the repository.
package document

import (
	"fmt"
	"strings"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/es"
)

// Kind tags the document variant. Dispatch on Kind is exhaustive; adding a
// variant must extend every switch.
type Kind int

const (
	// KindContribution is one bundle's knowledge about one entity.
	KindContribution Kind = iota
	// KindAggregate is the merged view of one entity across bundles.
	KindAggregate
)

func (k Kind) String() string {
	switch k {
	case KindContribution:
		return "contribution"
	case KindAggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IndexName computes the store index for a document kind under prefix.
func (k Kind) IndexName(prefix string) string {
	switch k {
	case KindContribution:
		return prefix + "contributions"
	case KindAggregate:
		return prefix + "aggregates"
	default:
		panic("unknown document kind " + k.String())
	}
}

// Coordinates locate one document in the store.
type Coordinates struct {
	Index      string
	DocumentID string
}

// Contribution is one bundle's contribution to one entity. Contributions
// are written create-only, never updated, never deleted; superseded ones
// simply stop mattering once aggregation filters them out.
type Contribution struct {
	Entity        domain.EntityReference
	BundleUUID    string
	BundleVersion string
	// BundleDeleted marks a retraction; Contents is nil in that case.
	BundleDeleted bool
	Contents      map[string]any
}

// DocumentID is a pure function of the four identifying fields. Identical
// redeliveries produce the same ID and collide harmlessly on write; distinct
// logical contributions never collide.
func (c *Contribution) DocumentID() string {
	state := "exists"
	if c.BundleDeleted {
		state = "deleted"
	}
	return strings.Join([]string{c.Entity.ID, c.BundleUUID, c.BundleVersion, state}, "_")
}

// Coordinates computes the store identity of the contribution.
func (c *Contribution) Coordinates(prefix string) Coordinates {
	return Coordinates{
		Index:      KindContribution.IndexName(prefix),
		DocumentID: c.DocumentID(),
	}
}

// FQID returns the identity of the contributing bundle.
func (c *Contribution) FQID() domain.BundleFQID {
	return domain.BundleFQID{UUID: c.BundleUUID, Version: c.BundleVersion}
}

// Aggregate is the current merged view of one entity. Exactly one aggregate
// exists per entity and is overwritten in place under optimistic versioning.
type Aggregate struct {
	Entity domain.EntityReference
	// Version is the store version read before this write; nil means the
	// write is a create. The store rejects stale versions.
	Version *es.Version
	// Contents empty means the entity is deleted from the index.
	Contents         map[string]any
	Bundles          []domain.BundleFQID
	NumContributions int
}

// Coordinates computes the store identity of the aggregate.
func (a *Aggregate) Coordinates(prefix string) Coordinates {
	return Coordinates{
		Index:      KindAggregate.IndexName(prefix),
		DocumentID: a.Entity.ID,
	}
}

// Deleted reports whether this aggregate expresses entity deletion.
func (a *Aggregate) Deleted() bool {
	return len(a.Contents) == 0
}

package indexer

import (
	"context"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	doc "github.com/DataBiosphere/azul-indexer/internal/domain/document"
)

// ContributionWriter writes contribution documents create-only.
type ContributionWriter interface {
	CreateContribution(ctx context.Context, c *doc.Contribution) error
}

// ContributionScanner reads every contribution stored for an entity.
type ContributionScanner interface {
	ContributionsFor(ctx context.Context, entity domain.EntityReference) ([]*doc.Contribution, error)
}

// AggregateStore reads and writes aggregate documents under optimistic
// versioning.
type AggregateStore interface {
	GetAggregate(ctx context.Context, entity domain.EntityReference) (*doc.Aggregate, error)
	WriteAggregate(ctx context.Context, a *doc.Aggregate) error
}

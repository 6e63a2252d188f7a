package worker

import (
	"context"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/queue"
)

// BundleFetcher resolves a notification's bundle from the upstream
// repository.
type BundleFetcher interface {
	Fetch(ctx context.Context, uuid, version string) (*domain.Bundle, error)
}

// Contributor runs the contribute stage for one bundle.
type Contributor interface {
	Contribute(ctx context.Context, bundle *domain.Bundle, deleted bool) (map[domain.EntityReference]int, error)
}

// Aggregator runs the aggregate stage for tallied entities.
type Aggregator interface {
	Aggregate(ctx context.Context, tallies map[domain.EntityReference]int) error
}

// Enqueuer sends messages downstream.
type Enqueuer interface {
	SendBatch(ctx context.Context, queue string, msgs []queue.Outgoing) error
}

// Handler processes one received batch and names the messages safe to
// acknowledge. Unacknowledged messages come back after the visibility
// timeout.
type Handler interface {
	Handle(ctx context.Context, msgs []queue.Message) ([]queue.Message, error)
}

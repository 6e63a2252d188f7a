package notify

import (
	"context"

	"github.com/DataBiosphere/azul-indexer/internal/queue"
)

// Enqueuer sends messages to the pipeline's queues.
type Enqueuer interface {
	SendBatch(ctx context.Context, queue string, msgs []queue.Outgoing) error
}

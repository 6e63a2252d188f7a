// Package worker drives the queue-mediated pipeline: a generic receive loop
// plus the handlers for the contribute and aggregate stages. Workers share
// nothing in process; all coordination goes through the queues and the
// document store.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DataBiosphere/azul-indexer/internal/logger"
	"github.com/DataBiosphere/azul-indexer/internal/queue"
)

const (
	// DefaultReceiveWait is the long-poll duration per receive.
	DefaultReceiveWait = 20 * time.Second
	// DefaultErrorBackoff is the pause after a failed receive.
	DefaultErrorBackoff = 5 * time.Second
)

// Worker consumes one queue with one handler until the context is canceled.
type Worker struct {
	q       queue.Client
	name    string
	handler Handler
	wait    time.Duration
	backoff time.Duration
}

// New creates a worker for the named queue.
func New(q queue.Client, queueName string, h Handler) *Worker {
	return &Worker{
		q: q, name: queueName, handler: h,
		wait:    DefaultReceiveWait,
		backoff: DefaultErrorBackoff,
	}
}

// WithReceiveWait configures the long-poll duration.
func (w *Worker) WithReceiveWait(d time.Duration) *Worker {
	if d > 0 {
		w.wait = d
	}
	return w
}

// Run receives, handles and acknowledges batches until ctx is canceled.
// Handler errors are logged, never fatal: the message stays on the queue
// and redelivery retries it.
func (w *Worker) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).With(zap.String("queue", w.name))
	log.Info("worker started")

	for {
		if ctx.Err() != nil {
			log.Info("worker stopped")
			return nil
		}

		msgs, err := w.q.ReceiveBatch(ctx, w.name, queue.MaxBatchSize, w.wait)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopped")
				return nil
			}
			log.Error("receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				log.Info("worker stopped")
				return nil
			case <-time.After(w.backoff):
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		ack, err := w.handler.Handle(ctx, msgs)
		if err != nil {
			log.Warn("batch handled with errors",
				zap.Int("received", len(msgs)),
				zap.Int("acknowledged", len(ack)),
				zap.Error(err))
		}
		if len(ack) > 0 {
			if err := w.q.Ack(ctx, w.name, ack...); err != nil {
				log.Error("ack failed", zap.Int("messages", len(ack)), zap.Error(err))
			}
		}
	}
}

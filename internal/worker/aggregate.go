package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/logger"
	"github.com/DataBiosphere/azul-indexer/internal/metrics"
	"github.com/DataBiosphere/azul-indexer/internal/queue"
)

// AggregateHandler consumes tally messages. An entity tallied once in the
// batch is aggregated immediately; an entity tallied more than once gets its
// tallies consolidated into a single deferred tally, betting that even more
// are in flight and one later aggregation can cover them all.
type AggregateHandler struct {
	aggregator Aggregator
	q          Enqueuer
	tallyQueue string
}

// NewAggregateHandler creates the aggregate stage handler. tallyQueue names
// the handler's own queue, the target of consolidation re-sends.
func NewAggregateHandler(a Aggregator, q Enqueuer, tallyQueue string) *AggregateHandler {
	return &AggregateHandler{aggregator: a, q: q, tallyQueue: tallyQueue}
}

type tallyGroup struct {
	tally Tally
	msgs  []queue.Message
}

// Handle groups the batch's tallies by entity, consolidates the multiples
// and aggregates the singles. Messages of a consolidated group are
// acknowledged once the merged tally is safely re-enqueued; a referred
// tally's message is acknowledged only when its aggregation succeeded.
func (h *AggregateHandler) Handle(ctx context.Context, msgs []queue.Message) ([]queue.Message, error) {
	log := logger.FromContext(ctx)

	var ack []queue.Message
	groups := make(map[domain.EntityReference]*tallyGroup)
	var order []domain.EntityReference
	for _, msg := range msgs {
		var t Tally
		if err := json.Unmarshal(msg.Body, &t); err != nil {
			log.Error("dropping undecodable tally",
				zap.String("message_id", msg.ID), zap.Error(err))
			ack = append(ack, msg)
			continue
		}
		ref := t.Ref()
		g, ok := groups[ref]
		if !ok {
			g = &tallyGroup{tally: t}
			groups[ref] = g
			order = append(order, ref)
		} else {
			// Keep the first tally's identity, sum the counts.
			g.tally.Count += t.Count
		}
		g.msgs = append(g.msgs, msg)
	}

	var errs []error
	for _, ref := range order {
		g := groups[ref]
		if len(g.msgs) > 1 {
			if err := h.consolidate(ctx, g); err != nil {
				errs = append(errs, err)
				continue
			}
			metrics.TalliesConsolidatedTotal.Add(float64(len(g.msgs)))
			ack = append(ack, g.msgs...)
			continue
		}

		if err := h.aggregator.Aggregate(ctx, map[domain.EntityReference]int{ref: g.tally.Count}); err != nil {
			log.Warn("aggregation failed, leaving tally for redelivery",
				zap.String("entity", ref.String()),
				zap.Int64("attempts", g.msgs[0].Attempts),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		metrics.TalliesReferredTotal.Inc()
		ack = append(ack, g.msgs...)
	}
	return ack, errors.Join(errs...)
}

// consolidate re-enqueues the merged tally under the entity's group with a
// fresh dedup ID.
func (h *AggregateHandler) consolidate(ctx context.Context, g *tallyGroup) error {
	body, err := json.Marshal(g.tally)
	if err != nil {
		return fmt.Errorf("encode consolidated tally for %s: %w", g.tally.Ref(), err)
	}
	msg := queue.Outgoing{
		Body:    body,
		GroupID: g.tally.EntityID,
		DedupID: uuid.NewString(),
	}
	if err := h.q.SendBatch(ctx, h.tallyQueue, []queue.Outgoing{msg}); err != nil {
		return fmt.Errorf("re-enqueue consolidated tally for %s: %w", g.tally.Ref(), err)
	}
	return nil
}

package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/logger"
	"github.com/DataBiosphere/azul-indexer/internal/queue"
	"github.com/DataBiosphere/azul-indexer/internal/usecase/notify"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ContributeHandler turns notification messages into contributions and
// feeds the resulting tallies to the aggregate stage's queue.
type ContributeHandler struct {
	fetcher    BundleFetcher
	indexer    Contributor
	q          Enqueuer
	tallyQueue string
}

// NewContributeHandler creates the contribute stage handler.
func NewContributeHandler(f BundleFetcher, c Contributor, q Enqueuer, tallyQueue string) *ContributeHandler {
	return &ContributeHandler{fetcher: f, indexer: c, q: q, tallyQueue: tallyQueue}
}

// Handle processes notifications one by one; a failing message does not
// block the rest of the batch. Undecodable messages are acknowledged and
// dropped: redelivery cannot fix them.
func (h *ContributeHandler) Handle(ctx context.Context, msgs []queue.Message) ([]queue.Message, error) {
	log := logger.FromContext(ctx)

	var ack []queue.Message
	var errs []error
	for _, msg := range msgs {
		var n notify.Notification
		if err := json.Unmarshal(msg.Body, &n); err != nil {
			log.Error("dropping undecodable notification",
				zap.String("message_id", msg.ID), zap.Error(err))
			ack = append(ack, msg)
			continue
		}
		if err := h.handleOne(ctx, n); err != nil {
			log.Warn("contribute failed, leaving for redelivery",
				zap.String("bundle_uuid", n.Match.BundleUUID),
				zap.String("bundle_version", n.Match.BundleVersion),
				zap.Int64("attempts", msg.Attempts),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		ack = append(ack, msg)
	}
	return ack, errors.Join(errs...)
}

func (h *ContributeHandler) handleOne(ctx context.Context, n notify.Notification) error {
	log := logger.FromContext(ctx)

	bundle, err := h.fetcher.Fetch(ctx, n.Match.BundleUUID, n.Match.BundleVersion)
	if err != nil {
		return fmt.Errorf("fetch bundle %s.%s: %w", n.Match.BundleUUID, n.Match.BundleVersion, err)
	}

	tallies, err := h.indexer.Contribute(ctx, bundle, n.Action == notify.ActionDelete)
	if err != nil {
		if errors.Is(err, domain.ErrMissingRequiredEntity) {
			// Not indexable, not a failure.
			log.Warn("skipping bundle without required entity",
				zap.String("bundle_uuid", n.Match.BundleUUID),
				zap.String("bundle_version", n.Match.BundleVersion))
			return nil
		}
		return err
	}
	return h.enqueueTallies(ctx, tallies)
}

// enqueueTallies emits one tally per contributed entity in sends of at most
// queue.MaxBatchSize. The group ID is the entity ID so a FIFO-style queue
// clusters same-entity tallies; the dedup ID is fresh per send so two
// distinct count increments never collapse into one.
func (h *ContributeHandler) enqueueTallies(ctx context.Context, tallies map[domain.EntityReference]int) error {
	out := make([]queue.Outgoing, 0, len(tallies))
	for ref, count := range tallies {
		body, err := json.Marshal(Tally{
			EntityType: ref.Type,
			EntityID:   ref.ID,
			Count:      count,
		})
		if err != nil {
			return fmt.Errorf("encode tally for %s: %w", ref, err)
		}
		out = append(out, queue.Outgoing{
			Body:    body,
			GroupID: ref.ID,
			DedupID: uuid.NewString(),
		})
	}
	for len(out) > 0 {
		n := min(len(out), queue.MaxBatchSize)
		if err := h.q.SendBatch(ctx, h.tallyQueue, out[:n]); err != nil {
			return fmt.Errorf("enqueue tallies: %w", err)
		}
		out = out[n:]
	}
	return nil
}

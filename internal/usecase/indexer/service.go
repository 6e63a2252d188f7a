// Package indexer implements the two pipeline stages: contributing a bundle
// to the index and aggregating an entity from its stored contributions.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/domain/aggregate"
	doc "github.com/DataBiosphere/azul-indexer/internal/domain/document"
	"github.com/DataBiosphere/azul-indexer/internal/logger"
	"github.com/DataBiosphere/azul-indexer/internal/metrics"
	"github.com/DataBiosphere/azul-indexer/internal/plugin"
)

const (
	// DefaultWriteRetries bounds full re-read/re-fold/re-write cycles after
	// an aggregate version conflict.
	DefaultWriteRetries = 3
	// DefaultWriteConcurrency bounds parallel contribution writes per bundle.
	DefaultWriteConcurrency = 8
)

// Service orchestrates contribution and aggregation.
type Service struct {
	writer      ContributionWriter
	scanner     ContributionScanner
	aggregates  AggregateStore
	plugin      plugin.Plugin
	keepLatest  bool
	retries     int
	concurrency int
}

// New creates an indexer service.
func New(w ContributionWriter, s ContributionScanner, a AggregateStore, p plugin.Plugin) *Service {
	return &Service{
		writer: w, scanner: s, aggregates: a, plugin: p,
		retries:     DefaultWriteRetries,
		concurrency: DefaultWriteConcurrency,
	}
}

// WithKeepLatestBundleVersion makes aggregation consider only the highest
// version of each bundle UUID instead of all versions ever contributed.
func (s *Service) WithKeepLatestBundleVersion(keep bool) *Service {
	s.keepLatest = keep
	return s
}

// WithWriteRetries configures the version-conflict retry budget.
func (s *Service) WithWriteRetries(n int) *Service {
	if n > 0 {
		s.retries = n
	}
	return s
}

// WithWriteConcurrency configures parallel contribution writes.
func (s *Service) WithWriteConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Contribute transforms a bundle into entity contributions and writes each
// one create-only. A contribution that already exists counts as written:
// identical redeliveries must produce identical tallies. deleted marks every
// contribution as a retraction with no contents.
//
// Returns the tally of contributions written per entity.
func (s *Service) Contribute(ctx context.Context, bundle *domain.Bundle, deleted bool) (map[domain.EntityReference]int, error) {
	log := logger.FromContext(ctx)

	entities, err := s.plugin.Transform(bundle)
	if err != nil {
		return nil, fmt.Errorf("transform bundle %s: %w", bundle.FQID, err)
	}

	var mu sync.Mutex
	tallies := make(map[domain.EntityReference]int, len(entities))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, e := range entities {
		e := e
		g.Go(func() error {
			c := &doc.Contribution{
				Entity:        e.Ref,
				BundleUUID:    bundle.FQID.UUID,
				BundleVersion: bundle.FQID.Version,
				BundleDeleted: deleted,
			}
			if !deleted {
				c.Contents = e.Contents
			}
			if err := s.writer.CreateContribution(ctx, c); err != nil {
				if !errors.Is(err, domain.ErrConflict) {
					return err
				}
				// Redelivery of a notification we already processed.
				log.Debug("contribution already present",
					zap.String("document_id", c.DocumentID()))
				metrics.ContributionConflictsTotal.Inc()
			}
			metrics.ContributionsWrittenTotal.WithLabelValues(e.Ref.Type).Inc()
			mu.Lock()
			tallies[e.Ref]++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("contribute bundle %s: %w", bundle.FQID, err)
	}
	return tallies, nil
}

// Aggregate recomputes the aggregate of every tallied entity. The tally
// counts are a hint that work exists, never state: each entity gets a fresh
// full scan of its contributions. Entities fail independently; errors are
// joined so one bad entity cannot starve the rest.
func (s *Service) Aggregate(ctx context.Context, tallies map[domain.EntityReference]int) error {
	var errs []error
	for entity := range tallies {
		timer := metrics.NewAggregationTimer()
		if err := s.aggregateEntity(ctx, entity); err != nil {
			errs = append(errs, err)
		}
		timer.ObserveDuration()
	}
	return errors.Join(errs...)
}

// aggregateEntity runs one read-fold-write cycle for an entity, retrying
// the whole cycle on a version conflict. Conflicts are never merged: the
// loser's fold is discarded and rebuilt from a fresh scan.
func (s *Service) aggregateEntity(ctx context.Context, entity domain.EntityReference) error {
	log := logger.FromContext(ctx)

	for attempt := 1; attempt <= s.retries; attempt++ {
		contributions, err := s.scanner.ContributionsFor(ctx, entity)
		if err != nil {
			return err
		}
		live := liveContributions(contributions, s.keepLatest)

		agg := &doc.Aggregate{
			Entity:           entity,
			Bundles:          bundleList(live),
			NumContributions: len(live),
		}
		if len(live) > 0 {
			contents, err := s.fold(entity, live)
			if err != nil {
				return fmt.Errorf("fold %s: %w", entity, err)
			}
			agg.Contents = contents
		}

		current, err := s.aggregates.GetAggregate(ctx, entity)
		switch {
		case err == nil:
			agg.Version = current.Version
		case errors.Is(err, domain.ErrNotFound):
			agg.Version = nil
		default:
			return err
		}

		err = s.aggregates.WriteAggregate(ctx, agg)
		if err == nil {
			metrics.AggregatesWrittenTotal.WithLabelValues(entity.Type).Inc()
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		metrics.AggregateRetriesTotal.Inc()
		log.Warn("aggregate version conflict, retrying",
			zap.String("entity", entity.String()),
			zap.Int("attempt", attempt))
	}
	return fmt.Errorf("aggregate %s: retries exhausted: %w", entity, domain.ErrVersionConflict)
}

// fold merges live contribution contents per the plugin's field policy,
// grouping first when the plugin defines a group key for the entity type.
func (s *Service) fold(entity domain.EntityReference, live []*doc.Contribution) (map[string]any, error) {
	docs := make([]map[string]any, len(live))
	for i, c := range live {
		docs[i] = c.Contents
	}

	policy := s.plugin.FieldPolicy()
	if keyOf := s.plugin.GroupKeyFor(entity.Type); keyOf != nil {
		groups, err := aggregate.NewGrouping(policy, keyOf).Fold(docs)
		if err != nil {
			return nil, err
		}
		contents := make(map[string]any, len(groups))
		for key, group := range groups {
			contents[key] = group
		}
		return contents, nil
	}
	return aggregate.NewSimple(policy).Fold(docs)
}

// liveContributions filters the raw scan down to the contributions that
// still matter. A deleted contribution retracts the exists contribution of
// the same bundle version; with keepLatest, only a bundle UUID's highest
// version counts at all.
func liveContributions(cs []*doc.Contribution, keepLatest bool) []*doc.Contribution {
	retracted := make(map[domain.BundleFQID]bool)
	for _, c := range cs {
		if c.BundleDeleted {
			retracted[c.FQID()] = true
		}
	}

	var latest map[string]string
	if keepLatest {
		latest = make(map[string]string)
		for _, c := range cs {
			if v, ok := latest[c.BundleUUID]; !ok || c.BundleVersion > v {
				latest[c.BundleUUID] = c.BundleVersion
			}
		}
	}

	live := make([]*doc.Contribution, 0, len(cs))
	for _, c := range cs {
		if c.BundleDeleted || retracted[c.FQID()] {
			continue
		}
		if keepLatest && c.BundleVersion != latest[c.BundleUUID] {
			continue
		}
		live = append(live, c)
	}
	return live
}

// bundleList collects the distinct contributing bundle FQIDs in a
// deterministic order.
func bundleList(live []*doc.Contribution) []domain.BundleFQID {
	seen := make(map[domain.BundleFQID]bool, len(live))
	out := make([]domain.BundleFQID, 0, len(live))
	for _, c := range live {
		fqid := c.FQID()
		if seen[fqid] {
			continue
		}
		seen[fqid] = true
		out = append(out, fqid)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UUID != out[j].UUID {
			return out[i].UUID < out[j].UUID
		}
		return out[i].Version < out[j].Version
	})
	return out
}

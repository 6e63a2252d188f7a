package worker

import (
	"context"
	"time"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/queue"
)

// mockQueue implements queue.Client for tests.
type mockQueue struct {
	sendFn    func(ctx context.Context, queueName string, msgs []queue.Outgoing) error
	receiveFn func(ctx context.Context, queueName string, max int, wait time.Duration) ([]queue.Message, error)
	ackFn     func(ctx context.Context, queueName string, msgs ...queue.Message) error
}

func (m *mockQueue) SendBatch(ctx context.Context, queueName string, msgs []queue.Outgoing) error {
	if m.sendFn != nil {
		return m.sendFn(ctx, queueName, msgs)
	}
	return nil
}

func (m *mockQueue) ReceiveBatch(ctx context.Context, queueName string, max int, wait time.Duration) ([]queue.Message, error) {
	if m.receiveFn != nil {
		return m.receiveFn(ctx, queueName, max, wait)
	}
	return nil, nil
}

func (m *mockQueue) Ack(ctx context.Context, queueName string, msgs ...queue.Message) error {
	if m.ackFn != nil {
		return m.ackFn(ctx, queueName, msgs...)
	}
	return nil
}

func (m *mockQueue) Ping(ctx context.Context) error { return nil }

func (m *mockQueue) Close() {}

// mockFetcher implements BundleFetcher.
type mockFetcher struct {
	fetchFn func(ctx context.Context, uuid, version string) (*domain.Bundle, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, uuid, version string) (*domain.Bundle, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, uuid, version)
	}
	return &domain.Bundle{FQID: domain.BundleFQID{UUID: uuid, Version: version}}, nil
}

// mockIndexer implements Contributor and Aggregator.
type mockIndexer struct {
	contributeFn func(ctx context.Context, bundle *domain.Bundle, deleted bool) (map[domain.EntityReference]int, error)
	aggregateFn  func(ctx context.Context, tallies map[domain.EntityReference]int) error
}

func (m *mockIndexer) Contribute(ctx context.Context, bundle *domain.Bundle, deleted bool) (map[domain.EntityReference]int, error) {
	if m.contributeFn != nil {
		return m.contributeFn(ctx, bundle, deleted)
	}
	return nil, nil
}

func (m *mockIndexer) Aggregate(ctx context.Context, tallies map[domain.EntityReference]int) error {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, tallies)
	}
	return nil
}

package indexer

import (
	"context"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/domain/accumulate"
	"github.com/DataBiosphere/azul-indexer/internal/domain/aggregate"
	doc "github.com/DataBiosphere/azul-indexer/internal/domain/document"
	"github.com/DataBiosphere/azul-indexer/internal/domain/translate"
	"github.com/DataBiosphere/azul-indexer/internal/plugin"
)

// mockRepo implements ContributionWriter, ContributionScanner and
// AggregateStore for tests.
type mockRepo struct {
	createFn func(ctx context.Context, c *doc.Contribution) error
	scanFn   func(ctx context.Context, entity domain.EntityReference) ([]*doc.Contribution, error)
	getFn    func(ctx context.Context, entity domain.EntityReference) (*doc.Aggregate, error)
	writeFn  func(ctx context.Context, a *doc.Aggregate) error
}

func (m *mockRepo) CreateContribution(ctx context.Context, c *doc.Contribution) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	return nil
}

func (m *mockRepo) ContributionsFor(ctx context.Context, entity domain.EntityReference) ([]*doc.Contribution, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, entity)
	}
	return nil, nil
}

func (m *mockRepo) GetAggregate(ctx context.Context, entity domain.EntityReference) (*doc.Aggregate, error) {
	if m.getFn != nil {
		return m.getFn(ctx, entity)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRepo) WriteAggregate(ctx context.Context, a *doc.Aggregate) error {
	if m.writeFn != nil {
		return m.writeFn(ctx, a)
	}
	return nil
}

// mockPlugin implements plugin.Plugin with overridable hooks.
type mockPlugin struct {
	transformFn func(bundle *domain.Bundle) ([]plugin.Entity, error)
	policyFn    accumulate.Policy
	groupKeyFn  func(entityType string) aggregate.GroupKeyFunc
}

func (m *mockPlugin) Name() string { return "mock" }

func (m *mockPlugin) Transform(bundle *domain.Bundle) ([]plugin.Entity, error) {
	if m.transformFn != nil {
		return m.transformFn(bundle)
	}
	return nil, nil
}

func (m *mockPlugin) FieldTypes() translate.FieldTypes { return nil }

func (m *mockPlugin) FieldPolicy() accumulate.Policy {
	if m.policyFn != nil {
		return m.policyFn
	}
	return accumulate.DefaultPolicy
}

func (m *mockPlugin) GroupKeyFor(entityType string) aggregate.GroupKeyFunc {
	if m.groupKeyFn != nil {
		return m.groupKeyFn(entityType)
	}
	return nil
}

func (m *mockPlugin) RequiredEntityType() string { return "projects" }

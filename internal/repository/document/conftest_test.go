package document

import (
	"context"

	"github.com/DataBiosphere/azul-indexer/internal/es"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createFn      func(ctx context.Context, index, id string, body []byte) error
	indexFn       func(ctx context.Context, index, id string, body []byte, expected *es.Version) error
	deleteFn      func(ctx context.Context, index, id string, expected *es.Version) error
	getFn         func(ctx context.Context, index, id string) (*es.Document, error)
	searchFn      func(ctx context.Context, index string, query []byte) ([]es.Hit, error)
	createIndexFn func(ctx context.Context, name string, mapping []byte) error
	existsFn      func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) Create(ctx context.Context, index, id string, body []byte) error {
	if m.createFn != nil {
		return m.createFn(ctx, index, id, body)
	}
	return nil
}

func (m *mockStore) Index(ctx context.Context, index, id string, body []byte, expected *es.Version) error {
	if m.indexFn != nil {
		return m.indexFn(ctx, index, id, body, expected)
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, index, id string, expected *es.Version) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, index, id, expected)
	}
	return nil
}

func (m *mockStore) Get(ctx context.Context, index, id string) (*es.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, index, id)
	}
	return nil, es.ErrNotFound
}

func (m *mockStore) Search(ctx context.Context, index string, query []byte) ([]es.Hit, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, index, query)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, name string, mapping []byte) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, name, mapping)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, name)
	}
	return false, nil
}

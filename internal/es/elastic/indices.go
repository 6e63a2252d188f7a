package elastic

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DataBiosphere/azul-indexer/internal/es"
)

// CreateIndex creates an index with the given mapping; an existing index
// yields es.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, name string, mapping []byte) error {
	req := esapi.IndicesCreateRequest{Index: name}
	if len(mapping) > 0 {
		req.Body = bytes.NewReader(mapping)
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return &es.Error{Op: es.OpCreateIndex, Err: err}
	}
	defer drain(res)
	switch {
	case res.StatusCode == http.StatusBadRequest:
		// resource_already_exists_exception comes back as 400
		return es.ErrIndexExists
	case res.IsError():
		return &es.Error{Op: es.OpCreateIndex, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

// IndexExists reports whether the index exists.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, s.client)
	if err != nil {
		return false, &es.Error{Op: es.OpExists, Err: err}
	}
	defer drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &es.Error{Op: es.OpExists, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
}

// Refresh makes recent writes visible to search.
func (s *Store) Refresh(ctx context.Context, index string) error {
	res, err := esapi.IndicesRefreshRequest{Index: []string{index}}.Do(ctx, s.client)
	if err != nil {
		return &es.Error{Op: es.OpRefresh, Err: err}
	}
	defer drain(res)
	if res.IsError() {
		return &es.Error{Op: es.OpRefresh, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

package elastic

import (
	"bytes"
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DataBiosphere/azul-indexer/internal/es"
)

// searchPageSize is the per-request hit count for the paging loop.
const searchPageSize = 1000

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID          string             `json:"_id"`
			SeqNo       int64              `json:"_seq_no"`
			PrimaryTerm int64              `json:"_primary_term"`
			Source      jsoniterRawMessage `json:"_source"`
			Sort        []any              `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs query against index, paging with search_after until the scan
// is exhausted and returning every hit with its version coordinates.
func (s *Store) Search(ctx context.Context, index string, query []byte) ([]es.Hit, error) {
	var (
		hits  []es.Hit
		after []any
	)
	for {
		body, err := pagedQuery(query, after)
		if err != nil {
			return nil, &es.Error{Op: es.OpSearch, Err: err}
		}
		size := searchPageSize
		seqNoPrimaryTerm := true
		res, err := esapi.SearchRequest{
			Index:            []string{index},
			Body:             bytes.NewReader(body),
			Size:             &size,
			Sort:             []string{"_id"},
			SeqNoPrimaryTerm: &seqNoPrimaryTerm,
		}.Do(ctx, s.client)
		if err != nil {
			return nil, &es.Error{Op: es.OpSearch, Err: err}
		}
		var decoded searchResponse
		if res.IsError() {
			drain(res)
			return nil, &es.Error{Op: es.OpSearch, Err: fmt.Errorf("status %d", res.StatusCode)}
		}
		err = json.NewDecoder(res.Body).Decode(&decoded)
		drain(res)
		if err != nil {
			return nil, &es.Error{Op: es.OpSearch, Err: err}
		}
		for _, h := range decoded.Hits.Hits {
			hits = append(hits, es.Hit{
				ID:      h.ID,
				Version: es.Version{SeqNo: h.SeqNo, PrimaryTerm: h.PrimaryTerm},
				Source:  h.Source,
			})
		}
		if len(decoded.Hits.Hits) < searchPageSize {
			return hits, nil
		}
		after = decoded.Hits.Hits[len(decoded.Hits.Hits)-1].Sort
	}
}

// pagedQuery injects a search_after clause into the caller's query body.
func pagedQuery(query []byte, after []any) ([]byte, error) {
	var body map[string]any
	if len(query) == 0 {
		body = map[string]any{}
	} else if err := json.Unmarshal(query, &body); err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	if after != nil {
		body["search_after"] = after
	} else {
		delete(body, "search_after")
	}
	return json.Marshal(body)
}

package elastic

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DataBiosphere/azul-indexer/internal/es"
)

// Create writes a document with create-only semantics: a 409 from the store
// means a document with that ID already exists.
func (s *Store) Create(ctx context.Context, index, id string, body []byte) error {
	res, err := esapi.CreateRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return &es.Error{Op: es.OpCreate, Err: err}
	}
	defer drain(res)
	switch {
	case res.StatusCode == http.StatusConflict:
		return es.ErrConflict
	case res.IsError():
		return &es.Error{Op: es.OpCreate, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

// Index overwrites a document. With a non-nil expected version the write is
// a compare-and-set on (seq_no, primary_term); a 409 means the version read
// is no longer the live one.
func (s *Store) Index(ctx context.Context, index, id string, body []byte, expected *es.Version) error {
	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}
	if expected != nil {
		seqNo := int(expected.SeqNo)
		primaryTerm := int(expected.PrimaryTerm)
		req.IfSeqNo = &seqNo
		req.IfPrimaryTerm = &primaryTerm
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return &es.Error{Op: es.OpIndex, Err: err}
	}
	defer drain(res)
	switch {
	case res.StatusCode == http.StatusConflict:
		return es.ErrVersionConflict
	case res.IsError():
		return &es.Error{Op: es.OpIndex, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

// Delete removes a document; a missing document is treated as success. With
// a non-nil expected version the delete is a compare-and-set on
// (seq_no, primary_term); a 409 means the version read is no longer the
// live one.
func (s *Store) Delete(ctx context.Context, index, id string, expected *es.Version) error {
	req := esapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
	}
	if expected != nil {
		seqNo := int(expected.SeqNo)
		primaryTerm := int(expected.PrimaryTerm)
		req.IfSeqNo = &seqNo
		req.IfPrimaryTerm = &primaryTerm
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return &es.Error{Op: es.OpDelete, Err: err}
	}
	defer drain(res)
	switch {
	case res.StatusCode == http.StatusConflict:
		return es.ErrVersionConflict
	case res.IsError() && res.StatusCode != http.StatusNotFound:
		return &es.Error{Op: es.OpDelete, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

type getResponse struct {
	Found       bool               `json:"found"`
	SeqNo       int64              `json:"_seq_no"`
	PrimaryTerm int64              `json:"_primary_term"`
	Source      jsoniterRawMessage `json:"_source"`
}

type jsoniterRawMessage []byte

func (m *jsoniterRawMessage) UnmarshalJSON(data []byte) error {
	*m = append((*m)[:0], data...)
	return nil
}

// Get fetches a single document with its live version coordinates.
func (s *Store) Get(ctx context.Context, index, id string) (*es.Document, error) {
	res, err := esapi.GetRequest{
		Index:      index,
		DocumentID: id,
	}.Do(ctx, s.client)
	if err != nil {
		return nil, &es.Error{Op: es.OpGet, Err: err}
	}
	defer drain(res)
	if res.StatusCode == http.StatusNotFound {
		return nil, es.ErrNotFound
	}
	if res.IsError() {
		return nil, &es.Error{Op: es.OpGet, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	var decoded getResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, &es.Error{Op: es.OpGet, Err: err}
	}
	if !decoded.Found {
		return nil, es.ErrNotFound
	}
	return &es.Document{
		ID:      id,
		Version: es.Version{SeqNo: decoded.SeqNo, PrimaryTerm: decoded.PrimaryTerm},
		Source:  decoded.Source,
	}, nil
}

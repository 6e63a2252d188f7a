// Package es defines the document store facade the indexer is written
// against. The elastic subpackage implements it over go-elasticsearch.
package es

import (
	"context"
	"time"
)

// Version is the compare-and-set coordinate pair of one stored document.
// A write carrying a stale Version is rejected by the store.
type Version struct {
	SeqNo       int64
	PrimaryTerm int64
}

// Document is one stored document with its live version.
type Document struct {
	ID      string
	Version Version
	Source  []byte
}

// Hit is one search result.
type Hit struct {
	ID      string
	Version Version
	Source  []byte
}

// Store is the main document store facade. Consumers depend on the narrow
// sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	Writer
	Reader
	Searcher
	IndexManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Writer provides the three write disciplines the pipeline relies on.
type Writer interface {
	// Create writes a document only if the ID does not exist yet; an
	// existing document yields ErrConflict.
	Create(ctx context.Context, index, id string, body []byte) error
	// Index overwrites a document. A non-nil expected version turns the
	// write into a compare-and-set; a stale version yields ErrVersionConflict.
	Index(ctx context.Context, index, id string, body []byte, expected *Version) error
	// Delete removes a document; a missing document is success. A non-nil
	// expected version turns the delete into a compare-and-set; a stale
	// version yields ErrVersionConflict.
	Delete(ctx context.Context, index, id string, expected *Version) error
}

// Reader fetches single documents.
type Reader interface {
	// Get returns ErrNotFound for a missing document.
	Get(ctx context.Context, index, id string) (*Document, error)
}

// Searcher scans documents matching a query.
type Searcher interface {
	// Search runs query (request body JSON) against index and returns all
	// hits, paging internally as needed.
	Search(ctx context.Context, index string, query []byte) ([]Hit, error)
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, name string, mapping []byte) error
	IndexExists(ctx context.Context, name string) (bool, error)
	Refresh(ctx context.Context, index string) error
}

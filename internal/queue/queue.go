// Package queue defines the message queue facade the pipeline is written
// against. The transport must cluster same-group messages, collapse
// duplicate deduplication IDs within a window, and redeliver unacknowledged
// messages after a visibility timeout, counting delivery attempts.
package queue

import (
	"context"
	"time"
)

// MaxBatchSize is the largest number of messages in one send batch.
const MaxBatchSize = 10

// Outgoing is one message to enqueue.
type Outgoing struct {
	Body []byte
	// GroupID clusters related messages; tallies use the entity ID so a
	// FIFO-style transport delivers same-entity tallies together.
	GroupID string
	// DedupID suppresses duplicates within the transport's window. Distinct
	// logical sends must carry distinct IDs or the transport will collapse
	// them.
	DedupID string
}

// Message is one received message.
type Message struct {
	// ID is the transport receipt handle used to acknowledge the message.
	ID      string
	Body    []byte
	GroupID string
	// Attempts is the delivery attempt counter, 1 on first delivery. The
	// transport must expose it even if it has to synthesize one.
	Attempts int64
}

// Client is the queue transport.
type Client interface {
	// SendBatch enqueues messages; len(msgs) must not exceed MaxBatchSize.
	SendBatch(ctx context.Context, queue string, msgs []Outgoing) error
	// ReceiveBatch blocks up to wait for at most max messages. Messages not
	// acknowledged within the transport's visibility timeout are redelivered.
	ReceiveBatch(ctx context.Context, queue string, max int, wait time.Duration) ([]Message, error)
	// Ack acknowledges handled messages.
	Ack(ctx context.Context, queue string, msgs ...Message) error
	Ping(ctx context.Context) error
	Close()
}

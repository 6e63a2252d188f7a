// Package redisq implements queue.Client over Redis Streams via rueidis.
//
// Each queue is one stream consumed through a consumer group. The group ID
// and dedup ID travel as entry fields; dedup is enforced with SET NX keys
// that expire after the dedup window; the delivery attempt counter comes
// from the pending entries list. Messages left pending longer than the
// visibility timeout are reclaimed with XAUTOCLAIM and redelivered.
package redisq

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/DataBiosphere/azul-indexer/internal/queue"
)

const (
	fieldBody  = "body"
	fieldGroup = "group"
	fieldDedup = "dedup"

	groupName = "workers"
)

// Compile-time check: Client implements queue.Client.
var _ queue.Client = (*Client)(nil)

// Config holds connection and delivery parameters.
type Config struct {
	Addrs    []string
	Password string
	// Consumer names this process within the consumer group.
	Consumer string
	// VisibilityTimeout is how long a received message stays invisible
	// before it is reclaimed for redelivery.
	VisibilityTimeout time.Duration
	// DedupWindow is how long a deduplication ID suppresses duplicates.
	DedupWindow time.Duration
}

// Client implements queue.Client via rueidis.
type Client struct {
	client            rueidis.Client
	consumer          string
	visibilityTimeout time.Duration
	dedupWindow       time.Duration

	mu     sync.Mutex
	groups map[string]bool
}

// New creates a Redis Streams queue client.
func New(cfg Config) (*Client, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Consumer == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 5 * time.Minute
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 5 * time.Minute
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Client{
		client:            client,
		consumer:          cfg.Consumer,
		visibilityTimeout: cfg.VisibilityTimeout,
		dedupWindow:       cfg.DedupWindow,
		groups:            make(map[string]bool),
	}, nil
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	cmd := c.client.B().Ping().Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (c *Client) Close() {
	c.client.Close()
}

// SendBatch enqueues messages, silently dropping those whose dedup ID was
// already seen within the window.
func (c *Client) SendBatch(ctx context.Context, stream string, msgs []queue.Outgoing) error {
	if len(msgs) > queue.MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds max %d", len(msgs), queue.MaxBatchSize)
	}
	for _, msg := range msgs {
		if msg.DedupID != "" {
			fresh, err := c.claimDedup(ctx, stream, msg.DedupID)
			if err != nil {
				return err
			}
			if !fresh {
				continue
			}
		}
		cmd := c.client.B().Xadd().Key(stream).Id("*").
			FieldValue().
			FieldValue(fieldBody, string(msg.Body)).
			FieldValue(fieldGroup, msg.GroupID).
			FieldValue(fieldDedup, msg.DedupID).
			Build()
		if err := c.client.Do(ctx, cmd).Error(); err != nil {
			return fmt.Errorf("xadd %s: %w", stream, err)
		}
	}
	return nil
}

// claimDedup reserves a dedup ID; false means a duplicate within the window.
func (c *Client) claimDedup(ctx context.Context, stream, dedupID string) (bool, error) {
	key := fmt.Sprintf("dedup:%s:%s", stream, dedupID)
	cmd := c.client.B().Set().Key(key).Value("1").Nx().
		Ex(c.dedupWindow).Build()
	err := c.client.Do(ctx, cmd).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("set %s: %w", key, err)
	}
	return true, nil
}

// ReceiveBatch first reclaims messages whose visibility timeout expired,
// then blocks for new ones up to wait.
func (c *Client) ReceiveBatch(ctx context.Context, stream string, max int, wait time.Duration) ([]queue.Message, error) {
	if err := c.ensureGroup(ctx, stream); err != nil {
		return nil, err
	}

	msgs, err := c.reclaim(ctx, stream, max)
	if err != nil {
		return nil, err
	}
	if len(msgs) >= max {
		return msgs, nil
	}

	cmd := c.client.B().Xreadgroup().Group(groupName, c.consumer).
		Count(int64(max - len(msgs))).
		Block(wait.Milliseconds()).
		Streams().Key(stream).Id(">").
		Build()
	res := c.client.Do(ctx, cmd)
	if err := res.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return msgs, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", stream, err)
	}
	streams, err := res.AsXRead()
	if err != nil {
		return nil, fmt.Errorf("parse xreadgroup %s: %w", stream, err)
	}
	for _, entry := range streams[stream] {
		msgs = append(msgs, entryToMessage(entry, 1))
	}
	return msgs, nil
}

// reclaim takes over messages another (or a crashed) consumer left pending
// past the visibility timeout, attaching their true delivery counts.
func (c *Client) reclaim(ctx context.Context, stream string, max int) ([]queue.Message, error) {
	cmd := c.client.B().Arbitrary("XAUTOCLAIM").Keys(stream).
		Args(groupName, c.consumer,
			strconv.FormatInt(c.visibilityTimeout.Milliseconds(), 10),
			"0-0", "COUNT", strconv.Itoa(max)).
		Build()
	res := c.client.Do(ctx, cmd)
	if err := res.Error(); err != nil {
		return nil, fmt.Errorf("xautoclaim %s: %w", stream, err)
	}
	arr, err := res.ToArray()
	if err != nil || len(arr) < 2 {
		return nil, fmt.Errorf("parse xautoclaim %s: %w", stream, err)
	}
	entries, err := arr[1].AsXRange()
	if err != nil {
		return nil, fmt.Errorf("parse xautoclaim entries %s: %w", stream, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	attempts, err := c.deliveryCounts(ctx, stream, entries)
	if err != nil {
		return nil, err
	}
	msgs := make([]queue.Message, 0, len(entries))
	for _, entry := range entries {
		msgs = append(msgs, entryToMessage(entry, attempts[entry.ID]))
	}
	return msgs, nil
}

// deliveryCounts reads per-message delivery counters from the pending
// entries list.
func (c *Client) deliveryCounts(ctx context.Context, stream string, entries []rueidis.XRangeEntry) (map[string]int64, error) {
	first, last := entries[0].ID, entries[len(entries)-1].ID
	cmd := c.client.B().Arbitrary("XPENDING").Keys(stream).
		Args(groupName, first, last, strconv.Itoa(len(entries))).
		Build()
	res := c.client.Do(ctx, cmd)
	if err := res.Error(); err != nil {
		return nil, fmt.Errorf("xpending %s: %w", stream, err)
	}
	rows, err := res.ToArray()
	if err != nil {
		return nil, fmt.Errorf("parse xpending %s: %w", stream, err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		cols, err := row.ToArray()
		if err != nil || len(cols) < 4 {
			continue
		}
		id, _ := cols[0].ToString()
		n, _ := cols[3].AsInt64()
		counts[id] = n
	}
	return counts, nil
}

// Ack acknowledges handled messages.
func (c *Client) Ack(ctx context.Context, stream string, msgs ...queue.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	cmd := c.client.B().Xack().Key(stream).Group(groupName).Id(ids...).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("xack %s: %w", stream, err)
	}
	return nil
}

// ensureGroup creates the consumer group once per stream; an existing group
// is fine.
func (c *Client) ensureGroup(ctx context.Context, stream string) error {
	c.mu.Lock()
	done := c.groups[stream]
	c.mu.Unlock()
	if done {
		return nil
	}
	cmd := c.client.B().Arbitrary("XGROUP", "CREATE").Keys(stream).
		Args(groupName, "$", "MKSTREAM").
		Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		if !isBusyGroup(err) {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	c.mu.Lock()
	c.groups[stream] = true
	c.mu.Unlock()
	return nil
}

func isBusyGroup(err error) bool {
	re, ok := rueidis.IsRedisErr(err)
	return ok && len(re.Error()) >= 9 && re.Error()[:9] == "BUSYGROUP"
}

func entryToMessage(entry rueidis.XRangeEntry, attempts int64) queue.Message {
	if attempts < 1 {
		attempts = 1
	}
	return queue.Message{
		ID:       entry.ID,
		Body:     []byte(entry.FieldValues[fieldBody]),
		GroupID:  entry.FieldValues[fieldGroup],
		Attempts: attempts,
	}
}

package redisq

import (
	"time"

	"github.com/redis/rueidis"
)

// NewClientForTest creates a Client with the provided rueidis client (test-only).
func NewClientForTest(c rueidis.Client) *Client {
	return &Client{
		client:            c,
		consumer:          "test-consumer",
		visibilityTimeout: 5 * time.Minute,
		dedupWindow:       5 * time.Minute,
		groups:            make(map[string]bool),
	}
}

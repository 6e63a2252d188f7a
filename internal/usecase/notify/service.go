// Package notify validates bundle notifications at the ingestion boundary
// and feeds the accepted ones into the contribute queue. Invalid
// notifications never enter the pipeline.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/DataBiosphere/azul-indexer/internal/domain"
	"github.com/DataBiosphere/azul-indexer/internal/queue"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Action names what the notification asks for.
type Action string

const (
	// ActionAdd indexes a bundle.
	ActionAdd Action = "add"
	// ActionDelete retracts a bundle's contributions.
	ActionDelete Action = "delete"
)

// Match identifies the bundle a notification speaks about.
type Match struct {
	BundleUUID    string `json:"bundle_uuid"`
	BundleVersion string `json:"bundle_version"`
}

// Notification is the wire shape accepted at the ingestion boundary and
// carried through the contribute queue.
type Notification struct {
	Match  Match  `json:"match"`
	Action Action `json:"action"`
	// TestName fences test traffic from production traffic: required in
	// test mode, forbidden otherwise.
	TestName string `json:"test_name,omitempty"`
}

// Service validates and enqueues notifications.
type Service struct {
	q        Enqueuer
	queue    string
	testMode bool
}

// New creates a notification service feeding the named contribute queue.
func New(q Enqueuer, queueName string, testMode bool) *Service {
	return &Service{q: q, queue: queueName, testMode: testMode}
}

// Validate checks a notification without side effects. All failures wrap
// domain.ErrInvalidNotification.
func (s *Service) Validate(n Notification) error {
	if n.Action != ActionAdd && n.Action != ActionDelete {
		return fmt.Errorf("action %q: %w", n.Action, domain.ErrInvalidNotification)
	}
	if _, err := uuid.Parse(n.Match.BundleUUID); err != nil {
		return fmt.Errorf("bundle_uuid %q: %w", n.Match.BundleUUID, domain.ErrInvalidNotification)
	}
	if n.Match.BundleVersion == "" {
		return fmt.Errorf("empty bundle_version: %w", domain.ErrInvalidNotification)
	}
	if s.testMode && n.TestName == "" {
		return fmt.Errorf("missing test_name in test mode: %w", domain.ErrInvalidNotification)
	}
	if !s.testMode && n.TestName != "" {
		return fmt.Errorf("test_name %q outside test mode: %w", n.TestName, domain.ErrInvalidNotification)
	}
	return nil
}

// Submit validates a notification and enqueues it for the contribute stage.
// Identical resubmissions within the queue's deduplication window collapse
// into one delivery.
func (s *Service) Submit(ctx context.Context, n Notification) error {
	if err := s.Validate(n); err != nil {
		return err
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	msg := queue.Outgoing{
		Body:    body,
		GroupID: n.Match.BundleUUID,
		DedupID: dedupID(n),
	}
	if err := s.q.SendBatch(ctx, s.queue, []queue.Outgoing{msg}); err != nil {
		return fmt.Errorf("enqueue notification for bundle %s: %w", n.Match.BundleUUID, err)
	}
	return nil
}

// dedupID is a pure function of the notification so duplicates collapse and
// distinct notifications never do.
func dedupID(n Notification) string {
	return strings.Join([]string{string(n.Action), n.Match.BundleUUID, n.Match.BundleVersion, n.TestName}, ":")
}

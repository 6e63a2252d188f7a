package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing document.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a create-only write that hit an existing document.
	ErrConflict = errors.New("document already exists")
	// ErrVersionConflict signals an optimistic locking conflict.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInvalidNotification signals a malformed bundle notification.
	ErrInvalidNotification = errors.New("invalid notification")
	// ErrAccumulator signals an accumulator invariant violation.
	ErrAccumulator = errors.New("accumulator invariant violated")
	// ErrMissingRequiredEntity signals a bundle lacking the plugin's required entity.
	ErrMissingRequiredEntity = errors.New("bundle lacks required entity")
)

// VersionConflictError wraps ErrVersionConflict with the live document version.
type VersionConflictError struct {
	SeqNo       int64
	PrimaryTerm int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s: live seq_no=%d primary_term=%d",
		ErrVersionConflict.Error(), e.SeqNo, e.PrimaryTerm)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// NewVersionConflict creates a version conflict error.
func NewVersionConflict(seqNo, primaryTerm int64) error {
	return &VersionConflictError{SeqNo: seqNo, PrimaryTerm: primaryTerm}
}

package storequery

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
)

// Reason classifies a failed store call.
type Reason string

const (
	ReasonTimeout         Reason = "timeout"
	ReasonCanceled        Reason = "canceled"
	ReasonTransport       Reason = "transport"
	ReasonMalformedOutput Reason = "malformed_output"
	ReasonUnknownStore    Reason = "unknown_store"
)

// Error is a failed query against one backing store.
// It matches domain.ErrStoreQueryFailed and the underlying driver error via errors.Is.
type Error struct {
	StoreID string
	Reason  Reason
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.StoreID, e.Reason, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{domain.ErrStoreQueryFailed, e.Err}
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, db.ErrMalformedOutput):
		return ReasonMalformedOutput
	case errors.Is(err, domain.ErrUnknownStore):
		return ReasonUnknownStore
	default:
		return ReasonTransport
	}
}

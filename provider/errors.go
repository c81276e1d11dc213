package provider

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for queries that are structurally unanswerable
// from a single immutable segment: chain-head information, transaction to
// block mapping, and block to transactions listing. It signals the caller
// to retry against the live store; it is never an empty result.
var ErrUnsupported = errors.New("provider: unsupported by this provider")

// ErrSenderRecovery is the sentinel wrapped by SenderRecoveryError.
var ErrSenderRecovery = errors.New("provider: sender recovery failed")

// SenderRecoveryError reports that batch sender recovery could not produce
// an address for every member of the requested batch. Batch recovery is
// all-or-nothing; partial results are never returned.
type SenderRecoveryError struct {
	Want  int
	Got   int
	cause error
}

func (e *SenderRecoveryError) Error() string {
	return fmt.Sprintf("provider: sender recovery failed: recovered %d of %d senders", e.Got, e.Want)
}

func (e *SenderRecoveryError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrSenderRecovery, e.cause}
	}
	return []error{ErrSenderRecovery}
}

package order

import (
	"errors"
	"fmt"
)

// IllegalTransitionError reports a status change that does not follow
// the single legal path Pending -> Started -> Completed.
//
// It is a local outcome: the caller declines the action, nothing is
// mutated, and the error never propagates past the trigger surface.
type IllegalTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

// Error implements the error interface.
func (e *IllegalTransitionError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("illegal transition %s -> %s (order=%s)", e.From, e.To, e.OrderID)
	}
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// IsIllegalTransition returns true if the error is an illegal status
// transition. Uses errors.As to handle wrapped errors.
func IsIllegalTransition(err error) bool {
	var te *IllegalTransitionError
	return errors.As(err, &te)
}

// CanTransition reports whether requested legally follows current.
// Only the two forward edges are legal: no skips, no reverse moves,
// no transitions out of Completed.
func CanTransition(current, requested Status) bool {
	switch current {
	case StatusPending:
		return requested == StatusStarted
	case StatusStarted:
		return requested == StatusCompleted
	}
	return false
}

// Next returns the status that legally follows current, and false when
// current is terminal.
func Next(current Status) (Status, bool) {
	switch current {
	case StatusPending:
		return StatusStarted, true
	case StatusStarted:
		return StatusCompleted, true
	}
	return "", false
}

// Apply returns a copy of rec with status advanced to requested, or an
// IllegalTransitionError. The input record is never mutated.
func Apply(rec Record, requested Status) (Record, error) {
	if !CanTransition(rec.Status, requested) {
		return rec, &IllegalTransitionError{OrderID: rec.ID, From: rec.Status, To: requested}
	}
	out := rec
	out.Status = requested
	return out, nil
}

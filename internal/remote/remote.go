// Package remote defines the minimal contract of the authoritative
// real-time order store, plus two implementations: an in-process
// backend for tests and dev mode, and a Postgres backend driven by
// LISTEN/NOTIFY.
//
// The engine depends only on this contract, never on a specific
// backend.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourtanker/orderflow/internal/order"
)

// Ref is the opaque handle a backend returns once it has accepted a
// record. Its presence on a record marks it as synchronized.
type Ref string

// Snapshot is a full replacement of the order list, ordered by
// createdAt descending. Subscribers never receive incremental diffs.
type Snapshot []order.Record

// SnapshotFunc receives pushed snapshots. Implementations must treat
// the slice as read-only.
type SnapshotFunc func(Snapshot)

// CancelFunc tears down a subscription. Safe to call more than once.
type CancelFunc func()

// Store is the remote collaborator contract.
type Store interface {
	// Insert writes a new record and returns its opaque reference.
	Insert(ctx context.Context, rec order.Record) (Ref, error)

	// UpdateStatus writes a new status for the referenced record.
	UpdateStatus(ctx context.Context, ref Ref, status order.Status) error

	// Subscribe opens a standing channel delivering full snapshots on
	// any underlying change, starting with the current state. Delivery
	// stops when the returned CancelFunc is called or ctx is done.
	Subscribe(ctx context.Context, fn SnapshotFunc) (CancelFunc, error)
}

// ErrUnavailable marks a failed remote call. The store layer absorbs
// it by falling back to the local cache; it is logged, never surfaced
// to the end user.
var ErrUnavailable = errors.New("remote store unavailable")

// ErrUnknownRef is returned by UpdateStatus for a reference the
// backend has never issued.
var ErrUnknownRef = errors.New("unknown remote reference")

// Unavailable wraps err so IsUnavailable recognizes it.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// IsUnavailable returns true if the error marks remote unavailability.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

package store

import (
	"github.com/yourtanker/orderflow/internal/order"
	"github.com/yourtanker/orderflow/internal/remote"
)

// Policy decides how an authoritative remote snapshot merges with
// records that only exist locally.
type Policy interface {
	// Reconcile takes the pushed snapshot and the cache-only records
	// keyed by order ID. It returns the new merged view (createdAt
	// descending) and the records that remain cache-only.
	Reconcile(snap remote.Snapshot, unsynced map[string]order.Record) ([]order.Record, map[string]order.Record)
}

// SnapshotWins is the single deployed policy: the remote snapshot
// replaces the view wholesale. There is no per-field merge - orders
// are customer-private and append-mostly, never edited field-by-field
// by two actors at once.
//
// A cache-only record that appears in the snapshot (matched by order
// ID) has evidently reached the remote store and stops being tracked
// as unsynced. A cache-only record the snapshot omits is retained and
// merged below the authoritative view, so an order written during an
// outage stays visible on this device until a snapshot supersedes it.
type SnapshotWins struct{}

// Reconcile implements Policy.
func (SnapshotWins) Reconcile(snap remote.Snapshot, unsynced map[string]order.Record) ([]order.Record, map[string]order.Record) {
	view := make([]order.Record, len(snap))
	copy(view, snap)

	seen := make(map[string]bool, len(snap))
	for _, rec := range snap {
		seen[rec.ID] = true
	}

	remaining := make(map[string]order.Record, len(unsynced))
	for id, rec := range unsynced {
		if seen[id] {
			continue
		}
		remaining[id] = rec
		view = append(view, rec)
	}

	order.SortDesc(view)
	return view, remaining
}

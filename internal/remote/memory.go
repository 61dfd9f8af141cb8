package remote

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yourtanker/orderflow/internal/order"
)

// Memory is an in-process Store used by tests and single-node dev
// mode. Snapshots are pushed synchronously to subscribers on every
// accepted write, which keeps test scenarios deterministic.
//
// SetAvailable(false) makes every call fail with ErrUnavailable, for
// exercising the fallback path.
type Memory struct {
	mu     sync.Mutex
	recs   map[Ref]order.Record
	subs   map[int]SnapshotFunc
	nextID int
	down   bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		recs: make(map[Ref]order.Record),
		subs: make(map[int]SnapshotFunc),
	}
}

// SetAvailable toggles fault injection.
func (m *Memory) SetAvailable(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = !up
}

// Insert implements Store. The returned ref is a UUIDv7.
func (m *Memory) Insert(ctx context.Context, rec order.Record) (Ref, error) {
	m.mu.Lock()
	if m.down {
		m.mu.Unlock()
		return "", ErrUnavailable
	}

	ref := Ref(uuid.Must(uuid.NewV7()).String())
	rec.RemoteRef = string(ref)
	m.recs[ref] = rec
	snap, fns := m.snapshotLocked()
	m.mu.Unlock()

	broadcast(snap, fns)
	return ref, nil
}

// UpdateStatus implements Store.
func (m *Memory) UpdateStatus(ctx context.Context, ref Ref, status order.Status) error {
	m.mu.Lock()
	if m.down {
		m.mu.Unlock()
		return ErrUnavailable
	}
	rec, ok := m.recs[ref]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownRef
	}
	rec.Status = status
	m.recs[ref] = rec
	snap, fns := m.snapshotLocked()
	m.mu.Unlock()

	broadcast(snap, fns)
	return nil
}

// Subscribe implements Store. The current snapshot is delivered
// immediately, then again after every accepted write.
func (m *Memory) Subscribe(ctx context.Context, fn SnapshotFunc) (CancelFunc, error) {
	m.mu.Lock()
	if m.down {
		m.mu.Unlock()
		return nil, ErrUnavailable
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	snap, _ := m.snapshotLocked()
	m.mu.Unlock()

	fn(snap)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return cancel, nil
}

// snapshotLocked builds the ordered snapshot and the subscriber list.
// Caller holds mu.
func (m *Memory) snapshotLocked() (Snapshot, []SnapshotFunc) {
	snap := make(Snapshot, 0, len(m.recs))
	for _, rec := range m.recs {
		snap = append(snap, rec)
	}
	order.SortDesc(snap)

	fns := make([]SnapshotFunc, 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	return snap, fns
}

func broadcast(snap Snapshot, fns []SnapshotFunc) {
	for _, fn := range fns {
		fn(snap)
	}
}

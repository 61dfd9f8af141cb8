// Package store is the order lifecycle engine: the single source of
// truth for order CRUD as seen by the rest of the system.
//
// It hides whether data currently lives in the authoritative remote
// store, the local cache, or both. Writes go to the remote store when
// it is reachable and are mirrored to the cache either way; a remote
// failure is absorbed at this boundary - the operation is reported as
// completed against the cache and the failure is logged, never shown
// to the end user.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yourtanker/orderflow/internal/cache"
	"github.com/yourtanker/orderflow/internal/order"
	"github.com/yourtanker/orderflow/internal/remote"
)

// DefaultAckDelay is the transient acknowledgment pause between the
// Started and Completed writes.
const DefaultAckDelay = 2 * time.Second

// ErrNotFound is returned when no order matches the given ID.
var ErrNotFound = errors.New("order not found")

// ErrTransitionInFlight is returned when a transition is requested for
// an order whose previous transition has not finished. Callers are
// expected to serialize transitions per order; this error surfaces the
// violation instead of tolerating it silently.
var ErrTransitionInFlight = errors.New("transition already in flight for this order")

// Subscriber receives the current order list after every change.
// The slice must be treated as read-only.
type Subscriber func([]order.Record)

// Store bridges the remote real-time store and the durable local
// cache.
//
// Concurrency model: the engine assumes event/callback interleaving on
// one logical thread (UI triggers, timers, snapshot callbacks). The
// mutex makes the in-memory view safe anyway, but it is never held
// across a remote call - snapshot callbacks re-enter the store
// synchronously on in-process backends.
type Store struct {
	remote  remote.Store
	cache   *cache.Cache
	policy  Policy
	ids     order.IDSource
	now     func() time.Time
	log     *slog.Logger
	tariff  order.Tariff
	ackWait time.Duration

	mu           sync.Mutex
	view         []order.Record          // merged list, createdAt descending
	unsynced     map[string]order.Record // cache-only records by order ID
	inflight     map[string]bool         // orders with an outstanding transition
	subs         map[int]Subscriber
	nextSub      int
	cancelRemote remote.CancelFunc
}

// Option configures a Store.
type Option func(*Store)

// WithIDSource overrides the order ID source (default WTSource).
func WithIDSource(ids order.IDSource) Option {
	return func(s *Store) { s.ids = ids }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger for absorbed remote failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithTariff overrides the price table.
func WithTariff(t order.Tariff) Option {
	return func(s *Store) { s.tariff = t }
}

// WithAckDelay overrides the Started->Completed acknowledgment pause.
// Tests pass zero to avoid real waiting.
func WithAckDelay(d time.Duration) Option {
	return func(s *Store) { s.ackWait = d }
}

// WithPolicy overrides the reconciliation policy (default
// SnapshotWins).
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// New creates a Store over the given remote backend and local cache.
// The cached order list seeds the in-memory view so List works before
// the first snapshot arrives (or during an outage).
func New(r remote.Store, c *cache.Cache, opts ...Option) (*Store, error) {
	s := &Store{
		remote:   r,
		cache:    c,
		policy:   SnapshotWins{},
		ids:      order.WTSource{},
		now:      time.Now,
		log:      slog.Default(),
		tariff:   order.DefaultTariff,
		ackWait:  DefaultAckDelay,
		unsynced: make(map[string]order.Record),
		inflight: make(map[string]bool),
		subs:     make(map[int]Subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}

	cached, err := c.LoadOrders(context.Background())
	if err != nil {
		return nil, fmt.Errorf("seed view from cache: %w", err)
	}
	order.SortDesc(cached)
	s.view = cached

	return s, nil
}

// Create assigns an ID, timestamp and price to the draft, attempts the
// remote write, and mirrors the result to the local cache.
//
// The call never fails on remote unavailability: the record is kept
// cache-only (no remote ref) and still returned as created.
func (s *Store) Create(ctx context.Context, draft order.Draft) (order.Record, error) {
	rec := order.Record{
		ID:               s.ids.NewID(),
		CustomerKey:      draft.CustomerKey,
		CustomerName:     draft.CustomerName,
		Status:           order.StatusPending,
		IsFree:           draft.IsFree,
		Price:            s.tariff.Price(draft.DeliveryType, draft.IsFree),
		DeliveryType:     draft.DeliveryType,
		Quantity:         draft.Quantity,
		Address:          draft.Address,
		Landmark:         draft.Landmark,
		Coordinates:      draft.Coordinates,
		SecondaryContact: draft.SecondaryContact,
		CreatedAt:        s.now().UTC(),
	}

	ref, err := s.remote.Insert(ctx, rec)
	if err != nil {
		s.log.Warn("remote insert failed, keeping order cache-only",
			"order", rec.ID, "err", err)
	} else {
		rec.RemoteRef = string(ref)
	}

	s.mu.Lock()
	if err != nil {
		s.unsynced[rec.ID] = rec
	}
	s.upsertLocked(rec)
	s.mirrorLocked(ctx)
	fns := s.subscribersLocked()
	view := s.copyViewLocked()
	s.mu.Unlock()

	publish(fns, view)
	return rec, nil
}

// Transition advances the order to the requested status.
//
// Legality is delegated to the state machine; an illegal edge returns
// an IllegalTransitionError and mutates nothing. For synchronized
// records the new status is written to the remote store first - the
// local view is never updated optimistically while that write is
// outstanding. Remote failure is absorbed: the status is applied to
// the local copy and the divergence is logged.
func (s *Store) Transition(ctx context.Context, orderID string, requested order.Status) (order.Record, error) {
	s.mu.Lock()
	rec, ok := s.findLocked(orderID)
	if !ok {
		s.mu.Unlock()
		return order.Record{}, fmt.Errorf("transition %s: %w", orderID, ErrNotFound)
	}
	if s.inflight[orderID] {
		s.mu.Unlock()
		return order.Record{}, fmt.Errorf("transition %s: %w", orderID, ErrTransitionInFlight)
	}
	next, err := order.Apply(rec, requested)
	if err != nil {
		s.mu.Unlock()
		return rec, err
	}
	s.inflight[orderID] = true
	s.mu.Unlock()

	if rec.Synced() {
		if err := s.remote.UpdateStatus(ctx, remote.Ref(rec.RemoteRef), requested); err != nil {
			s.log.Warn("remote status update failed, applying to cache copy",
				"order", orderID, "status", requested, "err", err)
		}
	}

	s.mu.Lock()
	delete(s.inflight, orderID)
	// Re-apply onto the freshest local copy: a snapshot may have
	// arrived while the remote write was outstanding.
	if current, ok := s.findLocked(orderID); ok {
		next = current
		next.Status = requested
	}
	if _, cacheOnly := s.unsynced[orderID]; cacheOnly {
		s.unsynced[orderID] = next
	}
	s.upsertLocked(next)
	s.mirrorLocked(ctx)
	fns := s.subscribersLocked()
	view := s.copyViewLocked()
	s.mu.Unlock()

	publish(fns, view)
	return next, nil
}

// Advance moves the order one step along the legal path. The
// Started->Completed edge is preceded by the fixed acknowledgment
// pause; the call blocks for its duration and honors ctx cancellation.
// While the pause runs the order counts as in flight, so a concurrent
// transition for it fails with ErrTransitionInFlight.
func (s *Store) Advance(ctx context.Context, orderID string) (order.Record, error) {
	s.mu.Lock()
	rec, ok := s.findLocked(orderID)
	s.mu.Unlock()
	if !ok {
		return order.Record{}, fmt.Errorf("advance %s: %w", orderID, ErrNotFound)
	}

	next, ok := order.Next(rec.Status)
	if !ok {
		return rec, &order.IllegalTransitionError{OrderID: orderID, From: rec.Status, To: rec.Status}
	}

	if next == order.StatusCompleted {
		return s.completeAfterAck(ctx, orderID)
	}
	return s.Transition(ctx, orderID, next)
}

// List returns the current in-memory view, createdAt descending,
// filtered by customer key when supplied. No network access; always
// available.
func (s *Store) List(customerKey string) []order.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return order.FilterByCustomer(s.view, customerKey)
}

// Subscribe registers fn for every view change, projected through the
// customer key filter when supplied. The first remote subscriber opens
// the standing channel to the remote store; if that fails, the cache
// snapshot is delivered once and no retry happens until re-subscribed.
// The returned cancel is idempotent and must be called when the
// consuming view goes away.
func (s *Store) Subscribe(ctx context.Context, customerKey string, fn Subscriber) (func(), error) {
	wrapped := fn
	if customerKey != "" {
		wrapped = func(recs []order.Record) {
			fn(order.FilterByCustomer(recs, customerKey))
		}
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = wrapped
	needRemote := s.cancelRemote == nil
	view := s.copyViewLocked()
	s.mu.Unlock()

	if needRemote {
		cancelRemote, err := s.remote.Subscribe(ctx, s.onSnapshot)
		if err != nil {
			// Fall back once to the cache snapshot; the subscriber
			// keeps the stale view until it re-subscribes.
			s.log.Warn("remote subscription failed, serving cache snapshot", "err", err)
			if cached, cacheErr := s.cache.LoadOrders(ctx); cacheErr == nil {
				s.mu.Lock()
				order.SortDesc(cached)
				s.view = s.mergeUnsyncedLocked(cached)
				view = s.copyViewLocked()
				s.mu.Unlock()
			}
		} else {
			s.mu.Lock()
			s.cancelRemote = cancelRemote
			view = s.copyViewLocked()
			s.mu.Unlock()
		}
	}

	wrapped(view)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			var cancelRemote remote.CancelFunc
			if len(s.subs) == 0 && s.cancelRemote != nil {
				cancelRemote = s.cancelRemote
				s.cancelRemote = nil
			}
			s.mu.Unlock()
			if cancelRemote != nil {
				cancelRemote()
			}
		})
	}
	return cancel, nil
}

// onSnapshot is the remote push handler. Every snapshot fully replaces
// the in-memory list per the reconciliation policy and is mirrored to
// the cache.
func (s *Store) onSnapshot(snap remote.Snapshot) {
	s.mu.Lock()
	view, unsynced := s.policy.Reconcile(snap, s.unsynced)
	s.view = view
	s.unsynced = unsynced
	s.mirrorLocked(context.Background())
	fns := s.subscribersLocked()
	out := s.copyViewLocked()
	s.mu.Unlock()

	publish(fns, out)
}

// completeAfterAck runs the acknowledgment pause, then issues the
// terminal transition. Cancelling ctx during the pause aborts with no
// state change.
func (s *Store) completeAfterAck(ctx context.Context, orderID string) (order.Record, error) {
	s.mu.Lock()
	if s.inflight[orderID] {
		s.mu.Unlock()
		return order.Record{}, fmt.Errorf("advance %s: %w", orderID, ErrTransitionInFlight)
	}
	s.inflight[orderID] = true
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.inflight, orderID)
		s.mu.Unlock()
	}

	if s.ackWait > 0 {
		timer := time.NewTimer(s.ackWait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			release()
			return order.Record{}, ctx.Err()
		case <-timer.C:
		}
	}

	release()
	return s.Transition(ctx, orderID, order.StatusCompleted)
}

// findLocked looks up an order by ID in the merged view.
func (s *Store) findLocked(orderID string) (order.Record, bool) {
	for _, rec := range s.view {
		if rec.ID == orderID {
			return rec, true
		}
	}
	return order.Record{}, false
}

// upsertLocked inserts or replaces rec in the view, keeping order.
func (s *Store) upsertLocked(rec order.Record) {
	for i, existing := range s.view {
		if existing.ID == rec.ID {
			s.view[i] = rec
			return
		}
	}
	s.view = append(s.view, rec)
	order.SortDesc(s.view)
}

// mergeUnsyncedLocked appends cache-only records missing from recs.
func (s *Store) mergeUnsyncedLocked(recs []order.Record) []order.Record {
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		seen[rec.ID] = true
	}
	for id, rec := range s.unsynced {
		if !seen[id] {
			recs = append(recs, rec)
		}
	}
	order.SortDesc(recs)
	return recs
}

// mirrorLocked writes the current view through to the local cache.
// The mirror is non-authoritative; a failed write is logged and
// otherwise ignored.
func (s *Store) mirrorLocked(ctx context.Context) {
	if err := s.cache.SaveOrders(ctx, s.view); err != nil {
		s.log.Warn("cache mirror failed", "err", err)
	}
}

func (s *Store) subscribersLocked() []Subscriber {
	fns := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}

func (s *Store) copyViewLocked() []order.Record {
	out := make([]order.Record, len(s.view))
	copy(out, s.view)
	return out
}

func publish(fns []Subscriber, view []order.Record) {
	for _, fn := range fns {
		fn(view)
	}
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourtanker/orderflow/internal/cache"
	"github.com/yourtanker/orderflow/internal/order"
	"github.com/yourtanker/orderflow/internal/remote"
	"github.com/yourtanker/orderflow/internal/testutil"
)

const customer = "9876543210"

type fixture struct {
	store  *Store
	remote *remote.Memory
	cache  *cache.Cache
	clock  *testutil.Clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	m := remote.NewMemory()
	clock := testutil.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Minute)

	base := []Option{
		WithClock(clock.Now),
		WithAckDelay(0),
		WithIDSource(testutil.NewFixedIDSource(
			"#WT-1001", "#WT-1002", "#WT-1003", "#WT-1004", "#WT-1005",
			"#WT-1006", "#WT-1007", "#WT-1008", "#WT-1009", "#WT-1010",
			"#WT-1011", "#WT-1012",
		)),
	}
	s, err := New(m, c, append(base, opts...)...)
	require.NoError(t, err)

	return &fixture{store: s, remote: m, cache: c, clock: clock}
}

func draft(free bool, dt order.DeliveryType) order.Draft {
	return order.Draft{
		CustomerKey:  customer,
		CustomerName: "Asha",
		DeliveryType: dt,
		Quantity:     order.Quantity2500L,
		Address:      "Karimnagar, Telangana, India",
		Landmark:     "Karimnagar City",
		IsFree:       free,
	}
}

func TestCreate_AssignsFieldsAndSyncs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)

	assert.Equal(t, "#WT-1001", rec.ID)
	assert.Equal(t, order.StatusPending, rec.Status)
	assert.Equal(t, "₹450", rec.Price)
	assert.True(t, rec.Synced(), "record should carry a remote ref")
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), rec.CreatedAt)
}

func TestCreate_PricePerTariff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	express, err := f.store.Create(ctx, draft(false, order.DeliveryExpress))
	require.NoError(t, err)
	assert.Equal(t, "₹600", express.Price)

	free, err := f.store.Create(ctx, draft(true, order.DeliveryExpress))
	require.NoError(t, err)
	assert.Equal(t, "₹0", free.Price)
	assert.True(t, free.IsFree)
}

func TestCreate_RemoteDownKeepsCacheOnly(t *testing.T) {
	// Scenario: remote write fails -> returned order has no remote
	// ref, local cache contains it, caller sees success.
	f := newFixture(t)
	ctx := context.Background()
	f.remote.SetAvailable(false)

	rec, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err, "remote failure must be absorbed")
	assert.False(t, rec.Synced())

	cached, err := f.cache.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, rec.ID, cached[0].ID)

	got := f.store.List(customer)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
}

func TestCreate_WriteThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)

	cached, err := f.cache.LoadOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "cache mirrors successful remote writes too")
}

func TestTransition_LegalPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)

	rec, err = f.store.Transition(ctx, rec.ID, order.StatusStarted)
	require.NoError(t, err)
	assert.Equal(t, order.StatusStarted, rec.Status)

	rec, err = f.store.Transition(ctx, rec.ID, order.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, rec.Status)
}

func TestTransition_IllegalEdgeRejected(t *testing.T) {
	// Scenario: Completed requested on a Pending order -> rejected,
	// status unchanged.
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)

	_, err = f.store.Transition(ctx, rec.ID, order.StatusCompleted)
	require.Error(t, err)
	assert.True(t, order.IsIllegalTransition(err))

	got := f.store.List(customer)
	require.Len(t, got, 1)
	assert.Equal(t, order.StatusPending, got[0].Status)
}

func TestTransition_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Transition(context.Background(), "#WT-9999", order.StatusStarted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransition_RemoteDownMutatesCacheCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)

	f.remote.SetAvailable(false)
	rec, err = f.store.Transition(ctx, rec.ID, order.StatusStarted)
	require.NoError(t, err, "remote failure must be absorbed")
	assert.Equal(t, order.StatusStarted, rec.Status)

	cached, err := f.cache.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, order.StatusStarted, cached[0].Status)
}

func TestAdvance_WalksLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)

	rec, err = f.store.Advance(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusStarted, rec.Status)

	rec, err = f.store.Advance(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, rec.Status)

	_, err = f.store.Advance(ctx, rec.ID)
	assert.True(t, order.IsIllegalTransition(err), "completed is terminal")
}

func TestAdvance_AckPauseHonorsCancellation(t *testing.T) {
	f := newFixture(t, WithAckDelay(time.Minute))
	ctx := context.Background()

	rec, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)
	_, err = f.store.Advance(ctx, rec.ID)
	require.NoError(t, err)

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.store.Advance(cancelCtx, rec.ID)
	assert.ErrorIs(t, err, context.Canceled)

	got := f.store.List(customer)
	assert.Equal(t, order.StatusStarted, got[0].Status, "no state change on cancelled ack")
}

func TestTransition_ConcurrentForSameOrderRejected(t *testing.T) {
	f := newFixture(t, WithAckDelay(time.Minute))
	ctx := context.Background()

	rec, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)
	_, err = f.store.Advance(ctx, rec.ID)
	require.NoError(t, err)

	ackCtx, cancelAck := context.WithCancel(ctx)
	defer cancelAck()
	done := make(chan error, 1)
	go func() {
		_, err := f.store.Advance(ackCtx, rec.ID)
		done <- err
	}()
	// Wait until the ack pause has claimed the in-flight slot.
	require.Eventually(t, func() bool {
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		return f.store.inflight[rec.ID]
	}, time.Second, time.Millisecond)

	_, err = f.store.Transition(ctx, rec.ID, order.StatusCompleted)
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	cancelAck()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestList_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)
	_, err = f.store.Create(ctx, draft(false, order.DeliveryExpress))
	require.NoError(t, err)

	first := f.store.List(customer)
	second := f.store.List(customer)
	assert.Equal(t, first, second, "no intervening writes, identical sequences")
}

func TestList_FiltersByCustomerNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)
	other := draft(false, order.DeliveryNormal)
	other.CustomerKey = "1112223334"
	_, err = f.store.Create(ctx, other)
	require.NoError(t, err)
	_, err = f.store.Create(ctx, draft(false, order.DeliveryExpress))
	require.NoError(t, err)

	got := f.store.List(customer)
	require.Len(t, got, 2)
	assert.Equal(t, "#WT-1003", got[0].ID, "createdAt descending")
	assert.Equal(t, "#WT-1001", got[1].ID)

	all := f.store.List("")
	assert.Len(t, all, 3)
}

func TestSubscribe_RoundTripThroughSnapshot(t *testing.T) {
	// Round-trip: a created order fetched from the next snapshot has
	// identical fields plus a remote ref.
	f := newFixture(t)
	ctx := context.Background()

	var latest []order.Record
	cancel, err := f.store.Subscribe(ctx, customer, func(recs []order.Record) { latest = recs })
	require.NoError(t, err)
	defer cancel()

	created, err := f.store.Create(ctx, draft(false, order.DeliveryExpress))
	require.NoError(t, err)

	require.NotEmpty(t, latest)
	got := latest[0]
	assert.NotEmpty(t, got.RemoteRef)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.CustomerKey, got.CustomerKey)
	assert.Equal(t, created.Price, got.Price)
	assert.Equal(t, created.Quantity, got.Quantity)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
}

func TestSubscribe_RemoteDownFallsBackToCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Seed the cache while the remote is up.
	_, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)

	f.remote.SetAvailable(false)
	var got []order.Record
	cancel, err := f.store.Subscribe(ctx, customer, func(recs []order.Record) { got = recs })
	require.NoError(t, err, "subscription failure is absorbed")
	defer cancel()

	require.Len(t, got, 1, "cache snapshot served once")
}

func TestReconcile_SnapshotOmittingUnsyncedRecord(t *testing.T) {
	// Scenario: an order written during an outage never reached the
	// remote store. A later snapshot omits it; reconciliation must not
	// drop the world - the unsynced record stays visible locally.
	f := newFixture(t)
	ctx := context.Background()

	f.remote.SetAvailable(false)
	offline, err := f.store.Create(ctx, draft(false, order.DeliveryNormal))
	require.NoError(t, err)

	f.remote.SetAvailable(true)
	cancel, err := f.store.Subscribe(ctx, customer, func([]order.Record) {})
	require.NoError(t, err)
	defer cancel()

	online, err := f.store.Create(ctx, draft(false, order.DeliveryExpress))
	require.NoError(t, err)

	got := f.store.List(customer)
	require.Len(t, got, 2)
	assert.Equal(t, online.ID, got[0].ID)
	assert.Equal(t, offline.ID, got[1].ID)
	assert.False(t, got[1].Synced())
}

func TestSubscribe_CancelIsIdempotent(t *testing.T) {
	f := newFixture(t)

	calls := 0
	cancel, err := f.store.Subscribe(context.Background(), "", func([]order.Record) { calls++ })
	require.NoError(t, err)
	require.Greater(t, calls, 0)

	before := calls
	cancel()
	cancel()

	_, err = f.store.Create(context.Background(), draft(false, order.DeliveryNormal))
	require.NoError(t, err)
	assert.Equal(t, before, calls, "no delivery after cancel")
}

func TestNew_SeedsViewFromCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	ctx := context.Background()

	c, err := cache.Open(path)
	require.NoError(t, err)
	require.NoError(t, c.SaveOrders(ctx, []order.Record{{
		ID:          "#WT-7777",
		CustomerKey: customer,
		Status:      order.StatusCompleted,
		CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}}))
	c.Close()

	c2, err := cache.Open(path)
	require.NoError(t, err)
	defer c2.Close()

	s, err := New(remote.NewMemory(), c2)
	require.NoError(t, err)

	got := s.List(customer)
	require.Len(t, got, 1)
	assert.Equal(t, "#WT-7777", got[0].ID)
}

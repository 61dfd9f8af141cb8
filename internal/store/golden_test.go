package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/yourtanker/orderflow/internal/cache"
	"github.com/yourtanker/orderflow/internal/order"
	"github.com/yourtanker/orderflow/internal/remote"
	"github.com/yourtanker/orderflow/internal/testutil"
)

// TestGolden_Lifecycle drives a fixed sequence of bookings and status
// changes and compares the resulting order list against a golden file.
// Everything nondeterministic is pinned: clock, ID source, ack delay.
func TestGolden_Lifecycle(t *testing.T) {
	ctx := context.Background()

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	m := remote.NewMemory()
	s, err := New(m, c,
		WithClock(testutil.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Minute).Now),
		WithIDSource(testutil.NewFixedIDSource("#WT-1001", "#WT-1002", "#WT-1003")),
		WithAckDelay(0),
	)
	require.NoError(t, err)

	first, err := s.Create(ctx, order.Draft{
		CustomerKey:  "9876543210",
		CustomerName: "Asha",
		DeliveryType: order.DeliveryNormal,
		Quantity:     order.Quantity2500L,
		Address:      "Karimnagar, Telangana, India",
		Landmark:     "Karimnagar City",
		Coordinates:  &order.Coordinates{Lat: 18.4386, Lng: 79.1288},
	})
	require.NoError(t, err)

	_, err = s.Create(ctx, order.Draft{
		CustomerKey:  "9876543210",
		CustomerName: "Asha",
		DeliveryType: order.DeliveryExpress,
		Quantity:     order.Quantity5000L,
		Address:      "Karimnagar, Telangana, India",
		Landmark:     "Court Chowrasta",
		IsFree:       true,
	})
	require.NoError(t, err)

	_, err = s.Advance(ctx, first.ID)
	require.NoError(t, err)
	_, err = s.Advance(ctx, first.ID)
	require.NoError(t, err)

	// The last booking lands during a remote outage and stays
	// cache-only. It must still appear in the list.
	m.SetAvailable(false)
	_, err = s.Create(ctx, order.Draft{
		CustomerKey:  "9876543210",
		CustomerName: "Asha",
		DeliveryType: order.DeliveryNormal,
		Quantity:     order.Quantity10000L,
		Address:      "Karimnagar, Telangana, India",
		Landmark:     "Karimnagar City",
	})
	require.NoError(t, err)

	data, err := json.MarshalIndent(s.List(""), "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t)
	g.Assert(t, "lifecycle", data)
}

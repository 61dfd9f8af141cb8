package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yourtanker/orderflow/internal/order"
)

// SaveOrders replaces the mirrored order list. Records serialize as
// flat JSON objects; remote-only fields (the remote ref) are excluded
// by the record's own JSON shape.
func (c *Cache) SaveOrders(ctx context.Context, recs []order.Record) error {
	raw, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("save orders: %w", err)
	}
	return c.Set(ctx, KeyOrders, string(raw))
}

// LoadOrders returns the mirrored order list, or an empty slice when
// nothing has been cached yet.
func (c *Cache) LoadOrders(ctx context.Context) ([]order.Record, error) {
	raw, ok, err := c.Get(ctx, KeyOrders)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if !ok {
		return []order.Record{}, nil
	}

	var recs []order.Record
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("load orders: corrupt cache value: %w", err)
	}
	return recs, nil
}

// SetActiveCode persists the active promo code across sessions.
func (c *Cache) SetActiveCode(ctx context.Context, code string) error {
	if code == "" {
		return c.ClearActiveCode(ctx)
	}
	return c.Set(ctx, KeyActivePromoCode, code)
}

// ActiveCode returns the persisted promo code, or "" when none.
func (c *Cache) ActiveCode(ctx context.Context) (string, error) {
	code, ok, err := c.Get(ctx, KeyActivePromoCode)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return code, nil
}

// ClearActiveCode removes the persisted promo code.
func (c *Cache) ClearActiveCode(ctx context.Context) error {
	return c.Delete(ctx, KeyActivePromoCode)
}

// Package order defines the delivery order record, its status state
// machine, and order identifier generation.
package order

import (
	"fmt"
	"sort"
	"time"
)

// Status is the fulfillment state of an order.
// Transitions are forward-only: Pending -> Started -> Completed.
type Status string

const (
	// StatusPending is the initial state of every order.
	StatusPending Status = "Pending"
	// StatusStarted means a tanker is on its way.
	StatusStarted Status = "Started"
	// StatusCompleted is terminal. No transitions leave it.
	StatusCompleted Status = "Completed"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusStarted, StatusCompleted:
		return true
	}
	return false
}

// DeliveryType selects the delivery tariff.
type DeliveryType string

const (
	DeliveryNormal  DeliveryType = "Normal"
	DeliveryExpress DeliveryType = "Express"
)

// Quantity is the ordered tanker volume.
type Quantity string

const (
	Quantity2500L  Quantity = "2500L"
	Quantity5000L  Quantity = "5000L"
	Quantity10000L Quantity = "10000L"
)

// ParseDeliveryType maps user input to a DeliveryType.
func ParseDeliveryType(s string) (DeliveryType, error) {
	switch DeliveryType(s) {
	case DeliveryNormal, DeliveryExpress:
		return DeliveryType(s), nil
	}
	return "", fmt.Errorf("unknown delivery type %q (want Normal or Express)", s)
}

// ParseQuantity maps user input to a Quantity.
func ParseQuantity(s string) (Quantity, error) {
	switch Quantity(s) {
	case Quantity2500L, Quantity5000L, Quantity10000L:
		return Quantity(s), nil
	}
	return "", fmt.Errorf("unknown quantity %q (want 2500L, 5000L or 10000L)", s)
}

// Coordinates is an optional geographic pair attached at creation time.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Tariff is the fixed price table used at order creation.
// A redeemed promo overrides both rates to zero.
type Tariff struct {
	Symbol  string
	Normal  int
	Express int
}

// DefaultTariff matches the deployed price list.
var DefaultTariff = Tariff{Symbol: "₹", Normal: 450, Express: 600}

// Price renders the price string for a delivery type.
// Free orders always price to zero regardless of type.
func (t Tariff) Price(dt DeliveryType, free bool) string {
	amount := t.Normal
	if dt == DeliveryExpress {
		amount = t.Express
	}
	if free {
		amount = 0
	}
	return fmt.Sprintf("%s%d", t.Symbol, amount)
}

// Draft carries the user-selected fields of an order before creation.
// The store assigns everything else (id, price, status, timestamps).
type Draft struct {
	CustomerKey      string       `json:"customerKey"`
	CustomerName     string       `json:"customerName"`
	DeliveryType     DeliveryType `json:"deliveryType"`
	Quantity         Quantity     `json:"quantity"`
	Address          string       `json:"address"`
	Landmark         string       `json:"landmark"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	SecondaryContact string       `json:"secondaryContact"`
	IsFree           bool         `json:"isFree"`
}

// Record is one delivery order. All fields except Status are immutable
// after creation; Status advances only through the state machine.
//
// RemoteRef is assigned at most once, by the store layer, when the
// authoritative remote store accepts the record. It is deliberately
// excluded from JSON so cache serialization stays free of remote-only
// fields.
type Record struct {
	ID               string       `json:"id"`
	CustomerKey      string       `json:"customerKey"`
	CustomerName     string       `json:"customerName"`
	Status           Status       `json:"status"`
	IsFree           bool         `json:"isFree"`
	Price            string       `json:"price"`
	DeliveryType     DeliveryType `json:"deliveryType"`
	Quantity         Quantity     `json:"quantity"`
	Address          string       `json:"address"`
	Landmark         string       `json:"landmark"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	SecondaryContact string       `json:"secondaryContact"`
	CreatedAt        time.Time    `json:"createdAt"`

	RemoteRef string `json:"-"`
}

// Synced reports whether the record has been accepted by the remote
// store. Records without a ref live only in the local cache.
func (r Record) Synced() bool {
	return r.RemoteRef != ""
}

// SortDesc orders records by CreatedAt descending in place, newest
// first, with ID as a deterministic tiebreak for equal timestamps.
func SortDesc(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}

// FilterByCustomer returns the records belonging to the given customer
// key, preserving order. An empty key returns all records.
func FilterByCustomer(recs []Record, customerKey string) []Record {
	if customerKey == "" {
		out := make([]Record, len(recs))
		copy(out, recs)
		return out
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if r.CustomerKey == customerKey {
			out = append(out, r)
		}
	}
	return out
}

// Partition splits records into active (not yet completed) and
// completed, preserving order. Used by the dispatcher view.
func Partition(recs []Record) (active, completed []Record) {
	for _, r := range recs {
		if r.Status == StatusCompleted {
			completed = append(completed, r)
		} else {
			active = append(active, r)
		}
	}
	return active, completed
}

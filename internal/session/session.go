// Package session holds the per-user application state that outlives a
// single operation but is not persisted: who is logged in, the booking
// draft under construction, and whether the next booking is free.
package session

import (
	"sync"

	"github.com/yourtanker/orderflow/internal/order"
)

// State is the mutable cross-screen state for one signed-in customer.
// All methods are safe for concurrent use.
type State struct {
	mu sync.Mutex

	customerKey  string
	customerName string
	draft        order.Draft
	freeNext     bool
}

// New returns an empty State.
func New() *State {
	return &State{}
}

// SignIn records the customer identity and resets any stale draft.
func (s *State) SignIn(key, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerKey = key
	s.customerName = name
	s.draft = order.Draft{}
	s.freeNext = false
}

// SignOut clears everything.
func (s *State) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerKey = ""
	s.customerName = ""
	s.draft = order.Draft{}
	s.freeNext = false
}

// Customer returns the signed-in key and display name.
func (s *State) Customer() (key, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerKey, s.customerName
}

// SignedIn reports whether a customer key is present.
func (s *State) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerKey != ""
}

// UpdateDraft applies fn to the in-progress booking draft.
func (s *State) UpdateDraft(fn func(*order.Draft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.draft)
}

// Draft materializes the booking draft, stamped with the customer
// identity and the free flag. It does not consume the free flag; call
// ConsumeFree when the booking is actually submitted.
func (s *State) Draft() order.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	d.CustomerKey = s.customerKey
	d.CustomerName = s.customerName
	d.IsFree = s.freeNext
	return d
}

// MarkFreeNext flags the next booking as free. Set when a promo code
// is redeemed.
func (s *State) MarkFreeNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeNext = true
}

// FreeNext reports whether the next booking is flagged free.
func (s *State) FreeNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeNext
}

// ConsumeFree clears the free flag and reports whether it was set.
// The flag is one-shot: exactly one booking gets the zero price.
func (s *State) ConsumeFree() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.freeNext
	s.freeNext = false
	return was
}

// ResetDraft discards the in-progress draft after a booking completes.
func (s *State) ResetDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = order.Draft{}
}

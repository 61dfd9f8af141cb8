package testutil

import "sync"

// FixedIDSource returns predetermined order IDs for testing.
//
// This enables deterministic scenarios and golden trace comparison.
//
// Panics when all IDs are consumed. This is a fail-fast approach to
// catch test misconfiguration (test created more orders than expected).
type FixedIDSource struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDSource creates a source returning ids in order.
func NewFixedIDSource(ids ...string) *FixedIDSource {
	return &FixedIDSource{ids: ids}
}

// NewID returns the next predetermined ID.
func (s *FixedIDSource) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.ids) {
		panic("FixedIDSource: all ids exhausted")
	}
	id := s.ids[s.idx]
	s.idx++
	return id
}

// FixedCodeSource returns predetermined promo codes for testing.
// Panics when all codes are consumed, like FixedIDSource.
type FixedCodeSource struct {
	mu    sync.Mutex
	codes []string
	idx   int
}

// NewFixedCodeSource creates a source returning codes in order.
func NewFixedCodeSource(codes ...string) *FixedCodeSource {
	return &FixedCodeSource{codes: codes}
}

// NewCode returns the next predetermined code.
func (s *FixedCodeSource) NewCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.codes) {
		panic("FixedCodeSource: all codes exhausted")
	}
	code := s.codes[s.idx]
	s.idx++
	return code
}

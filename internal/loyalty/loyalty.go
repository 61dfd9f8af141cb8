// Package loyalty derives the per-customer reward counter from order
// history and manages the single-use promo code lifecycle.
package loyalty

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// DefaultMilestone is the order count that fills the progress meter.
const DefaultMilestone = 10

// DefaultAlphabet excludes visually ambiguous symbols (0/O, 1/I).
const DefaultAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the issued promo code length.
const DefaultCodeLength = 6

// ErrMilestoneNotReached is returned by Claim when the progress meter
// is not full or a code is already active.
var ErrMilestoneNotReached = errors.New("loyalty milestone not reached")

// Outcome classifies a promo code validation attempt.
//
// Empty is a distinct non-error state: the user has not attempted a
// code yet, and nothing should render as a rejection.
type Outcome int

const (
	OutcomeEmpty Outcome = iota
	OutcomeInvalid
	OutcomeValid
)

// String returns the outcome name for logs and API payloads.
func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "Empty"
	case OutcomeInvalid:
		return "Invalid"
	case OutcomeValid:
		return "Valid"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// CodeSource generates promo codes.
// Implemented by RandomSource (production); tests use the fixed source
// in internal/testutil.
type CodeSource interface {
	NewCode() string
}

// RandomSource draws codes uniformly from Alphabet.
type RandomSource struct {
	Alphabet string
	Length   int
}

// NewCode returns a fresh code.
// Panics if the system entropy source fails (should never happen).
func (s RandomSource) NewCode() string {
	alphabet := s.Alphabet
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	length := s.Length
	if length <= 0 {
		length = DefaultCodeLength
	}

	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("promo code entropy: %v", err))
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String()
}

// Engine holds the loyalty state for one customer session.
//
// Progress is a pure function of the order count; the only stateful
// field is the active promo code, which the owner persists across
// sessions (cache key "activePromoCode"). At most one code is active
// at a time, and issuance requires a full meter with no active code.
type Engine struct {
	mu        sync.Mutex
	milestone int
	codes     CodeSource
	active    string
}

// Option configures an Engine.
type Option func(*Engine)

// WithMilestone overrides the default milestone size.
func WithMilestone(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.milestone = n
		}
	}
}

// WithActiveCode seeds the engine with a previously persisted code.
func WithActiveCode(code string) Option {
	return func(e *Engine) { e.active = code }
}

// New creates an Engine issuing codes from the given source.
func New(codes CodeSource, opts ...Option) *Engine {
	e := &Engine{milestone: DefaultMilestone, codes: codes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Progress maps an order count onto the 0..milestone meter. A positive
// multiple of the milestone reads as full rather than zero.
func (e *Engine) Progress(orderCount int) int {
	if orderCount <= 0 {
		return 0
	}
	p := orderCount % e.milestone
	if p == 0 {
		return e.milestone
	}
	return p
}

// MilestoneReached reports whether a reward is claimable: the meter is
// full and no code is currently active.
func (e *Engine) MilestoneReached(orderCount int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Progress(orderCount) == e.milestone && e.active == ""
}

// Claim issues a new promo code. Issuance is explicitly caller-driven
// (not automatic on milestone) so the UI can acknowledge first.
// Returns ErrMilestoneNotReached unless MilestoneReached holds.
func (e *Engine) Claim(orderCount int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Progress(orderCount) != e.milestone || e.active != "" {
		return "", ErrMilestoneNotReached
	}
	e.active = e.codes.NewCode()
	return e.active, nil
}

// ActiveCode returns the currently active code, or "" when none.
func (e *Engine) ActiveCode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Validate classifies input against the active code without consuming
// it. Comparison is case-insensitive after NFKC normalization, so
// full-width input from mobile keyboards matches.
func (e *Engine) Validate(input string) Outcome {
	if input == "" {
		return OutcomeEmpty
	}

	e.mu.Lock()
	active := e.active
	e.mu.Unlock()

	if active == "" {
		return OutcomeInvalid
	}
	if strings.EqualFold(norm.NFKC.String(input), active) {
		return OutcomeValid
	}
	return OutcomeInvalid
}

// Redeem consumes the active code. Returns the consumed code and true,
// or "" and false when no code was active. After Redeem, validating
// the same code again yields OutcomeInvalid: redemption is single-use.
func (e *Engine) Redeem() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == "" {
		return "", false
	}
	code := e.active
	e.active = ""
	return code, true
}

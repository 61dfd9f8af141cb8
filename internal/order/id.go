package order

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// IDSource generates order identifiers.
// Implemented by WTSource (production default) and UUIDSource; tests
// use the fixed source in internal/testutil.
type IDSource interface {
	NewID() string
}

// WTSource generates display identifiers of the form "#WT-NNNN" with
// four random digits, matching the deployed format.
//
// The space is small (9000 values), so IDs are not globally unique.
// Deployments that need collision resistance should use UUIDSource;
// the store accepts either.
type WTSource struct{}

// NewID returns a fresh "#WT-NNNN" identifier.
// Panics if the system entropy source fails (should never happen).
func (WTSource) NewID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		panic(fmt.Sprintf("order id entropy: %v", err))
	}
	return fmt.Sprintf("#WT-%d", 1000+n.Int64())
}

// UUIDSource generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so IDs sort
// by creation time and collisions are not a practical concern. This is
// the recommended source for multi-client deployments.
//
// Thread-safety: UUIDSource is stateless and safe for concurrent use.
type UUIDSource struct{}

// NewID returns a new UUIDv7 as a hyphenated string.
func (UUIDSource) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

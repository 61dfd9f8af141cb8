package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_Advances(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(base, time.Minute)

	assert.Equal(t, base, c.Now())
	assert.Equal(t, base.Add(time.Minute), c.Now())
	assert.Equal(t, base.Add(2*time.Minute), c.Peek())
}

func TestFixedIDSource_PanicsWhenExhausted(t *testing.T) {
	src := NewFixedIDSource("#WT-1001")

	assert.Equal(t, "#WT-1001", src.NewID())
	assert.Panics(t, func() { src.NewID() })
}

func TestFixedCodeSource(t *testing.T) {
	src := NewFixedCodeSource("AB23CD", "EF45GH")

	assert.Equal(t, "AB23CD", src.NewCode())
	assert.Equal(t, "EF45GH", src.NewCode())
	assert.Panics(t, func() { src.NewCode() })
}

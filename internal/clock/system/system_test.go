package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockReturnsUTC(t *testing.T) {
	t.Parallel()

	now := New().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestManualAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)
	m.Advance(4 * time.Second)
	assert.Equal(t, start.Add(4*time.Second), m.Now())
}

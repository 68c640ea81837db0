package slidingwindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestNew_RejectsInvalidArgs(t *testing.T) {
	_, err := New(0, time.Second)
	assert.Error(t, err)
	_, err = New(3, 0)
	assert.Error(t, err)
}

func TestLimiter_SlidingBehavior(t *testing.T) {
	clock := newFakeClock()
	l, err := New(3, 10*time.Second, WithNowFunc(clock.Now))
	require.NoError(t, err)

	// three calls spaced inside the window succeed, the fourth fails
	assert.True(t, l.Allow("k"))
	clock.Advance(3 * time.Second)
	assert.True(t, l.Allow("k"))
	clock.Advance(3 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	// once only the oldest call ages past the window, exactly one slot opens:
	// a true slide, not a wholesale reset
	clock.Advance(4*time.Second + time.Millisecond)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestLimiter_Remaining(t *testing.T) {
	clock := newFakeClock()
	l, err := New(3, 10*time.Second, WithNowFunc(clock.Now))
	require.NoError(t, err)

	assert.Equal(t, 3, l.Remaining("k"))

	require.True(t, l.Allow("k"))
	require.True(t, l.Allow("k"))
	assert.Equal(t, 1, l.Remaining("k"))

	// Remaining does not mutate: asking repeatedly changes nothing
	assert.Equal(t, 1, l.Remaining("k"))
	assert.True(t, l.Allow("k"))
	assert.Equal(t, 0, l.Remaining("k"))

	clock.Advance(10*time.Second + time.Millisecond)
	assert.Equal(t, 3, l.Remaining("k"))
}

func TestLimiter_KeyIsolation(t *testing.T) {
	clock := newFakeClock()
	l, err := New(1, time.Minute, WithNowFunc(clock.Now))
	require.NoError(t, err)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestLimiter_ResetAndClear(t *testing.T) {
	clock := newFakeClock()
	l, err := New(1, time.Minute, WithNowFunc(clock.Now))
	require.NoError(t, err)

	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))

	l.Reset("k")
	assert.True(t, l.Allow("k"))

	l.Reset("missing") // no-op

	l.Clear()
	assert.True(t, l.Allow("k"))
}

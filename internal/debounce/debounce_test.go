package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestGuard(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	g := New(300*time.Millisecond, WithClock(c.now))

	assert.True(t, g.Allow(1, "text", "text:John"))
	assert.False(t, g.Allow(1, "text", "text:John"), "duplicate within window")

	c.advance(100 * time.Millisecond)
	assert.True(t, g.Allow(1, "text", "text:Jane"), "different input is not suppressed")
	assert.True(t, g.Allow(1, "callback", "text:Jane"), "handlers are independent")
	assert.True(t, g.Allow(2, "text", "text:Jane"), "users are independent")

	c.advance(300 * time.Millisecond)
	assert.True(t, g.Allow(1, "text", "text:Jane"), "window elapsed")
}

func TestGuardSuppressedInputDoesNotExtendWindow(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	g := New(300*time.Millisecond, WithClock(c.now))

	assert.True(t, g.Allow(1, "cb", "skip"))
	c.advance(200 * time.Millisecond)
	assert.False(t, g.Allow(1, "cb", "skip"))
	c.advance(150 * time.Millisecond)
	assert.True(t, g.Allow(1, "cb", "skip"))
}

func TestGuardDisabled(t *testing.T) {
	g := New(0)
	assert.True(t, g.Allow(1, "text", "a"))
	assert.True(t, g.Allow(1, "text", "a"))

	var nilGuard *Guard
	assert.True(t, nilGuard.Allow(1, "text", "a"))
}

func TestGuardPrunesAndForgets(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	g := New(time.Second, WithClock(c.now))
	for i := 0; i < pruneThreshold; i++ {
		g.Allow(int64(i), "text", "x")
	}
	c.advance(2 * time.Second)
	g.Allow(-1, "text", "x")
	assert.Equal(t, 1, g.Len())

	g.Allow(-1, "callback", "y")
	g.Forget(-1)
	assert.Equal(t, 0, g.Len())
}

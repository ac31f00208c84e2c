package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(start))
}

func TestMockClockAfter(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ch := c.After(time.Minute)
	assert.Equal(t, 1, c.Waiters())

	c.Advance(59 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, time.Unix(60, 0), got)
	default:
		t.Fatal("did not fire")
	}
	assert.Equal(t, 0, c.Waiters())
}

func TestMockClockAfterNonPositive(t *testing.T) {
	c := NewMockClock(time.Unix(10, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("expected immediate fire")
	}
}

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	assert.False(t, c.Now().Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}

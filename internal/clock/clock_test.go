package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedOrdersByFireTimeThenRegistration(t *testing.T) {
	sim := NewSimulated(time.Unix(0, 0))
	var order []string

	sim.After(2*time.Second, func() { order = append(order, "b") })
	sim.After(time.Second, func() { order = append(order, "a") })
	sim.After(time.Second, func() { order = append(order, "a2") })

	sim.Advance(3 * time.Second)

	require.Equal(t, []string{"a", "a2", "b"}, order)
}

func TestSimulatedEveryFiresOnPeriod(t *testing.T) {
	sim := NewSimulated(time.Unix(0, 0))
	count := 0
	sim.Every(time.Second, func() { count++ })

	sim.Advance(3500 * time.Millisecond)

	assert.Equal(t, 3, count)
}

func TestCancelIsNoOp(t *testing.T) {
	sim := NewSimulated(time.Unix(0, 0))
	fired := false
	tok := sim.After(time.Second, func() { fired = true })
	sim.Cancel(tok)
	sim.Cancel(tok) // cancelling twice must not panic

	sim.Advance(2 * time.Second)

	assert.False(t, fired)
}

func TestNowAdvancesMonotonically(t *testing.T) {
	start := time.Unix(1000, 0)
	sim := NewSimulated(start)
	assert.Equal(t, start, sim.Now())
	sim.Advance(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), sim.Now())
}

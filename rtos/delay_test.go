package rtos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicDelayIsDriftFree(t *testing.T) {
	sys := testOS(t)
	wakes := make(chan uint64, 3)
	_, err := sys.Spawn("periodic", 2, 1024, func(tc *TaskContext, _ *Task) {
		p := NewPeriodicDelay(tc, Ticks(10))
		for i := 0; i < 3; i++ {
			p.Wait()
			wakes <- tc.OS().TickCount()
		}
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)

	var got []uint64
	for i := 0; i < 3; i++ {
		sys.AdvanceTicks(10)
		mustIdle(t, sys)
		got = append(got, <-wakes)
	}
	// Wakeups land on exact period boundaries regardless of body timing.
	assert.Equal(t, []uint64{10, 20, 30}, got)
}

func TestDelayMarkerResyncsAfterOverrun(t *testing.T) {
	sys := testOS(t)
	result := make(chan uint64, 1)
	_, err := sys.Spawn("t", 2, 1024, func(tc *TaskContext, _ *Task) {
		d := NewDelayMarker(tc)
		// Burn past the first interval so the delay target is already in
		// the past, then confirm the marker resynchronized.
		tc.Delay(Ticks(5))
		d.DelayUntil(Ticks(3))
		result <- tc.OS().TickCount()
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	sys.AdvanceTicks(5)
	mustIdle(t, sys)
	// The overrun DelayUntil returns immediately at tick 5.
	assert.Equal(t, uint64(5), <-result)
}

func TestDelayForeverPanics(t *testing.T) {
	sys := testOS(t)
	panicked := make(chan bool, 1)
	_, err := sys.Spawn("t", 2, 1024, func(tc *TaskContext, _ *Task) {
		defer func() { panicked <- recover() != nil }()
		tc.Delay(Forever)
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	assert.True(t, <-panicked)
}

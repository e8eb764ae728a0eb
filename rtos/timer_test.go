package rtos

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneShotTimerFiresOnce(t *testing.T) {
	sys := testOS(t)
	var fired atomic.Int32
	tm, err := NewTimer(sys, "oneshot", Ticks(5), false, func(*TaskContext, *Timer) {
		fired.Add(1)
	})
	require.NoError(t, err)
	assert.False(t, tm.IsActive())

	_, err = sys.Spawn("ctl", 2, 1024, func(tc *TaskContext, _ *Task) {
		require.NoError(t, tm.Start(tc, Forever))
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	assert.True(t, tm.IsActive())

	sys.AdvanceTicks(4)
	mustIdle(t, sys)
	assert.Equal(t, int32(0), fired.Load())

	sys.AdvanceTick()
	mustIdle(t, sys)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, tm.IsActive())

	sys.AdvanceTicks(10)
	mustIdle(t, sys)
	assert.Equal(t, int32(1), fired.Load(), "a one-shot timer must not rearm")
}

func TestAutoReloadTimerKeepsFiring(t *testing.T) {
	sys := testOS(t)
	var fired atomic.Int32
	tm, err := NewTimer(sys, "reload", Ticks(3), true, func(*TaskContext, *Timer) {
		fired.Add(1)
	})
	require.NoError(t, err)

	_, err = sys.Spawn("ctl", 2, 1024, func(tc *TaskContext, _ *Task) {
		require.NoError(t, tm.Start(tc, Forever))
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)

	for i := 0; i < 3; i++ {
		sys.AdvanceTicks(3)
		mustIdle(t, sys)
	}
	assert.Equal(t, int32(3), fired.Load())
	assert.True(t, tm.IsActive())
}

func TestStopDisarmsBeforeExpiry(t *testing.T) {
	sys := testOS(t)
	var fired atomic.Int32
	tm, err := NewTimer(sys, "stopped", Ticks(5), false, func(*TaskContext, *Timer) {
		fired.Add(1)
	})
	require.NoError(t, err)

	_, err = sys.Spawn("ctl", 2, 1024, func(tc *TaskContext, _ *Task) {
		require.NoError(t, tm.Start(tc, Forever))
		tc.Delay(Ticks(2))
		require.NoError(t, tm.Stop(tc, Forever))
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	sys.AdvanceTicks(2) // ctl wakes and stops the timer
	mustIdle(t, sys)
	sys.AdvanceTicks(10)
	mustIdle(t, sys)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, tm.IsActive())
}

func TestChangePeriodRearms(t *testing.T) {
	sys := testOS(t)
	var fired atomic.Int32
	tm, err := NewTimer(sys, "rp", Ticks(100), false, func(*TaskContext, *Timer) {
		fired.Add(1)
	})
	require.NoError(t, err)

	_, err = sys.Spawn("ctl", 2, 1024, func(tc *TaskContext, _ *Task) {
		require.NoError(t, tm.Start(tc, Forever))
		require.NoError(t, tm.ChangePeriod(tc, Ticks(2), Forever))
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	assert.Equal(t, int64(2), tm.Period().TickCount())

	sys.AdvanceTicks(2)
	mustIdle(t, sys)
	assert.Equal(t, int32(1), fired.Load())
}

func TestTimerDeleteReleasesControlBlock(t *testing.T) {
	sys := testOS(t)
	tm, err := NewTimer(sys, "gone", Ticks(5), false, func(*TaskContext, *Timer) {})
	require.NoError(t, err)
	free := sys.FreeHeapBytes()

	result := make(chan error, 2)
	_, err = sys.Spawn("ctl", 2, 1024, func(tc *TaskContext, _ *Task) {
		result <- tm.Delete(tc, Forever)
		result <- tm.Start(tc, Forever)
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	assert.NoError(t, <-result)
	assert.ErrorIs(t, <-result, ErrDeleted)
	assert.Greater(t, sys.FreeHeapBytes(), free)
}

func TestTimerStartFromISR(t *testing.T) {
	sys := testOS(t)
	var fired atomic.Int32
	tm, err := NewTimer(sys, "isr", Ticks(2), false, func(*TaskContext, *Timer) {
		fired.Add(1)
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)

	irq := sys.AttachInterrupt("kick", func(ic *ISRContext) {
		assert.NoError(t, tm.StartFromISR(ic))
	})
	_, err = irq.Trigger()
	require.NoError(t, err)
	mustIdle(t, sys)

	sys.AdvanceTicks(2)
	mustIdle(t, sys)
	assert.Equal(t, int32(1), fired.Load())
}

package rtos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterruptByteHandoffWithinOneTick(t *testing.T) {
	sys := testOS(t)
	rx, err := NewQueue[byte](sys, 4)
	require.NoError(t, err)

	got := make(chan byte, 1)
	atTick := make(chan uint64, 1)
	_, err = sys.Spawn("driver", 4, 1024, func(tc *TaskContext, _ *Task) {
		b, err := rx.Receive(tc, Forever)
		if err != nil {
			return
		}
		got <- b
		atTick <- tc.OS().TickCount()
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)

	irq := sys.AttachInterrupt("uart-rx", func(ic *ISRContext) {
		assert.NoError(t, rx.SendFromISR(ic, 0x5a))
	})
	yielded, err := irq.Trigger()
	require.NoError(t, err)
	assert.True(t, yielded, "waking the blocked driver must request a context switch")
	mustIdle(t, sys)

	assert.Equal(t, byte(0x5a), <-got)
	assert.Equal(t, uint64(0), <-atTick, "the handoff must not consume a tick")
}

func TestInterruptSendToFullQueueFails(t *testing.T) {
	sys := testOS(t)
	q, err := NewQueue[byte](sys, 1)
	require.NoError(t, err)

	_, err = sys.Spawn("filler", 2, 1024, func(tc *TaskContext, _ *Task) {
		_ = q.Send(tc, 1, NoWait)
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)

	var sendErr error
	irq := sys.AttachInterrupt("irq", func(ic *ISRContext) {
		sendErr = q.SendFromISR(ic, 2)
	})
	yielded, err := irq.Trigger()
	require.NoError(t, err)
	assert.False(t, yielded)
	assert.ErrorIs(t, sendErr, ErrQueueFull)
	assert.Equal(t, 1, q.Len())
}

func TestDetachedInterruptDeliversNothing(t *testing.T) {
	sys := testOS(t)
	fired := false
	irq := sys.AttachInterrupt("once", func(*ISRContext) { fired = true })
	irq.Detach()

	_, err := irq.Trigger()
	assert.Error(t, err)
	assert.False(t, fired)
}

func TestNotifyFromISRWakesWaiter(t *testing.T) {
	sys := testOS(t)
	got := make(chan uint32, 1)
	task, err := sys.Spawn("waiter", 3, 1024, func(tc *TaskContext, _ *Task) {
		got <- tc.TakeNotification(true, Forever)
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)

	irq := sys.AttachInterrupt("evt", func(ic *ISRContext) {
		assert.NoError(t, task.NotifyFromISR(ic, NotifyIncrement, 0))
		assert.True(t, ic.NeedsContextSwitch())
	})
	_, err = irq.Trigger()
	require.NoError(t, err)
	mustIdle(t, sys)
	assert.Equal(t, uint32(1), <-got)
}

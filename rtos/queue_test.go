package rtos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOWithBlockedSender(t *testing.T) {
	sys := testOS(t)
	q, err := NewQueue[int](sys, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Capacity())

	got := make(chan int, 4)
	_, err = sys.Spawn("producer", 3, 1024, func(tc *TaskContext, _ *Task) {
		for v := 1; v <= 4; v++ {
			if err := q.Send(tc, v, Forever); err != nil {
				return
			}
		}
	})
	require.NoError(t, err)
	_, err = sys.Spawn("consumer", 2, 1024, func(tc *TaskContext, _ *Task) {
		for i := 0; i < 4; i++ {
			v, err := q.Receive(tc, Forever)
			if err != nil {
				return
			}
			got <- v
		}
	})
	require.NoError(t, err)

	sys.Start()
	mustIdle(t, sys)
	close(got)
	var order []int
	for v := range got {
		order = append(order, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, order)
	assert.Equal(t, 0, q.Len())
}

func TestQueueNoWaitSendOnFull(t *testing.T) {
	sys := testOS(t)
	q, err := NewQueue[byte](sys, 1)
	require.NoError(t, err)

	result := make(chan error, 1)
	_, err = sys.Spawn("t", 2, 1024, func(tc *TaskContext, _ *Task) {
		if err := q.Send(tc, 'a', NoWait); err != nil {
			result <- err
			return
		}
		result <- q.Send(tc, 'b', NoWait)
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	assert.ErrorIs(t, <-result, ErrTimeout)
	assert.Equal(t, 1, q.Len())
}

func TestQueueReceiveTimeout(t *testing.T) {
	sys := testOS(t)
	q, err := NewQueue[int](sys, 1)
	require.NoError(t, err)

	result := make(chan error, 1)
	_, err = sys.Spawn("t", 2, 1024, func(tc *TaskContext, _ *Task) {
		_, err := q.Receive(tc, Ticks(3))
		result <- err
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	sys.AdvanceTicks(3)
	mustIdle(t, sys)
	assert.ErrorIs(t, <-result, ErrTimeout)
}

func TestQueueDeleteFailsBlockedReceiver(t *testing.T) {
	sys := testOS(t)
	q, err := NewQueue[int](sys, 1)
	require.NoError(t, err)

	result := make(chan error, 1)
	_, err = sys.Spawn("waiter", 2, 1024, func(tc *TaskContext, _ *Task) {
		_, err := q.Receive(tc, Forever)
		result <- err
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)

	_, err = sys.Spawn("deleter", 3, 1024, func(tc *TaskContext, _ *Task) {
		q.Delete(tc)
	})
	require.NoError(t, err)
	mustIdle(t, sys)
	assert.ErrorIs(t, <-result, ErrDeleted)
}

func TestDeleteTaskBlockedOnReceive(t *testing.T) {
	sys := testOS(t)
	q, err := NewQueue[int](sys, 1)
	require.NoError(t, err)

	victim, err := sys.Spawn("victim", 2, 1024, func(tc *TaskContext, _ *Task) {
		q.Receive(tc, Forever)
		t.Error("receive returned after delete")
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	freeBefore := sys.FreeHeapBytes()

	done := make(chan struct{})
	_, err = sys.Spawn("deleter", 3, 1024, func(tc *TaskContext, _ *Task) {
		victim.Delete(tc)
		close(done)
	})
	require.NoError(t, err)
	mustIdle(t, sys)
	<-done

	assert.Greater(t, sys.FreeHeapBytes(), freeBefore)
	assert.Len(t, sys.Snapshot(), 0)

	// The scheduler must keep working after the victim's unwind.
	ran := make(chan struct{})
	_, err = sys.Spawn("after", 2, 1024, func(tc *TaskContext, _ *Task) {
		close(ran)
	})
	require.NoError(t, err)
	mustIdle(t, sys)
	<-ran
}

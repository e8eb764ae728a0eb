package rtos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/config"
)

const idleWait = 2 * time.Second

func testOS(t *testing.T) *RTOS {
	t.Helper()
	cfg := config.Default()
	sys, err := New(cfg)
	require.NoError(t, err)
	return sys
}

func mustIdle(t *testing.T, sys *RTOS) {
	t.Helper()
	require.True(t, sys.WaitIdle(idleWait), "kernel did not go idle")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.TickRateHz = 0
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestSpawnSelfHandleIdentity(t *testing.T) {
	sys := testOS(t)
	selfCh := make(chan *Task, 1)
	outer, err := sys.Spawn("probe", 2, 1024, func(tc *TaskContext, self *Task) {
		selfCh <- self
	})
	require.NoError(t, err)

	sys.Start()
	mustIdle(t, sys)

	self := <-selfCh
	assert.True(t, outer.Equal(self), "self-handle must carry the creator handle's identity")
	assert.Equal(t, outer.ID(), self.ID())
	assert.Equal(t, "probe", self.Name())
}

func TestSpawnInvalidPriorityAllocatesNothing(t *testing.T) {
	sys := testOS(t)
	allocs := sys.k.Heap().AllocCount()
	free := sys.FreeHeapBytes()

	_, err := sys.Spawn("bad", sys.MaxPriorities(), 1024, func(*TaskContext, *Task) {})
	require.ErrorIs(t, err, ErrInvalidPriority)
	assert.Equal(t, allocs, sys.k.Heap().AllocCount(), "failed spawn must not touch the kernel heap")
	assert.Equal(t, free, sys.FreeHeapBytes())
}

func TestSpawnExhaustsKernelHeap(t *testing.T) {
	cfg := config.Default()
	cfg.HeapBytes = 4 << 10
	sys, err := New(cfg)
	require.NoError(t, err)

	var spawned int
	for i := 0; i < 64; i++ {
		_, err := sys.Spawn("filler", 1, 1024, func(tc *TaskContext, _ *Task) {
			tc.Delay(Ticks(1_000_000))
		})
		if err != nil {
			require.ErrorIs(t, err, ErrOutOfKernelMemory)
			break
		}
		spawned++
	}
	require.Greater(t, spawned, 0)
	require.Less(t, spawned, 64, "expected the heap to run out")
}

func TestDurationRoundsUpToOneTick(t *testing.T) {
	sys := testOS(t) // 1000 Hz: one tick per millisecond
	assert.Equal(t, int64(1), sys.Duration(time.Microsecond).TickCount())
	assert.Equal(t, int64(1), sys.Duration(time.Millisecond).TickCount())
	assert.Equal(t, int64(2), sys.Duration(time.Millisecond+time.Microsecond).TickCount())
	assert.Equal(t, NoWait, sys.Duration(0))
}

func TestDelayAndTickCount(t *testing.T) {
	sys := testOS(t)
	wokeAt := make(chan uint64, 1)
	_, err := sys.Spawn("sleeper", 2, 1024, func(tc *TaskContext, _ *Task) {
		tc.Delay(Ticks(5))
		wokeAt <- tc.OS().TickCount()
	})
	require.NoError(t, err)

	sys.Start()
	mustIdle(t, sys)
	sys.AdvanceTicks(5)
	mustIdle(t, sys)
	assert.Equal(t, uint64(5), <-wokeAt)
}

func TestSuspendResumeThroughHandles(t *testing.T) {
	sys := testOS(t)
	phase := make(chan string, 2)
	task, err := sys.Spawn("t", 2, 1024, func(tc *TaskContext, self *Task) {
		phase <- "running"
		self.Suspend(tc)
		phase <- "resumed"
	})
	require.NoError(t, err)

	sys.Start()
	mustIdle(t, sys)
	assert.Equal(t, "running", <-phase)

	_, err = sys.Spawn("helper", 3, 1024, func(tc *TaskContext, _ *Task) {
		task.Resume(tc)
	})
	require.NoError(t, err)
	mustIdle(t, sys)
	assert.Equal(t, "resumed", <-phase)
}

func TestSnapshotReportsLiveTasks(t *testing.T) {
	sys := testOS(t)
	worker, err := sys.Spawn("worker", 3, 2048, func(tc *TaskContext, _ *Task) {
		tc.Delay(Ticks(100))
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)

	snap := sys.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "worker", snap[0].Name)
	assert.Equal(t, uint8(3), snap[0].Priority)
	assert.Equal(t, 2048, snap[0].StackBytes)
	assert.Greater(t, snap[0].StackFree, 0)
	assert.Less(t, snap[0].StackFree, snap[0].StackBytes)
	assert.Equal(t, snap[0].StackFree, worker.StackHighWater())
}

package rtos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriticalSectionNestingRestoresDepth(t *testing.T) {
	sys := testOS(t)
	depths := make(chan []int, 1)
	_, err := sys.Spawn("t", 2, 1024, func(tc *TaskContext, _ *Task) {
		var seen []int
		var sections []*CriticalSection
		for i := 1; i <= 5; i++ {
			sections = append(sections, EnterCritical(tc))
			seen = append(seen, CriticalDepth(tc))
		}
		for i := len(sections) - 1; i >= 0; i-- {
			sections[i].Exit()
			seen = append(seen, CriticalDepth(tc))
		}
		depths <- seen
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 4, 3, 2, 1, 0}, <-depths)
}

func TestCriticalSectionExitIsIdempotent(t *testing.T) {
	sys := testOS(t)
	depth := make(chan int, 1)
	_, err := sys.Spawn("t", 2, 1024, func(tc *TaskContext, _ *Task) {
		cs := EnterCritical(tc)
		cs.Exit()
		cs.Exit() // no effect; the defer-plus-early-exit pattern hits this
		cs.Exit()
		depth <- CriticalDepth(tc)
	})
	require.NoError(t, err)
	sys.Start()
	mustIdle(t, sys)
	assert.Equal(t, 0, <-depth)
}

func TestSchedulerLockDefersPreemption(t *testing.T) {
	sys := testOS(t)
	events := make(chan string, 4)
	started := make(chan struct{})

	_, err := sys.Spawn("low", 1, 1024, func(tc *TaskContext, _ *Task) {
		sl := SuspendScheduler(tc)
		<-started // a higher-priority task exists by now
		events <- "low critical work"
		sl.Exit()
		events <- "low after unlock"
	})
	require.NoError(t, err)
	sys.Start()

	_, err = sys.Spawn("high", 5, 1024, func(tc *TaskContext, _ *Task) {
		events <- "high"
	})
	require.NoError(t, err)
	close(started)
	mustIdle(t, sys)

	close(events)
	var order []string
	for e := range events {
		order = append(order, e)
	}
	assert.Equal(t, []string{"low critical work", "high", "low after unlock"}, order)
}

package rtos

// CriticalSection is a scoped token representing "interrupts are masked".
// It has no persistent identity; its sole job is guaranteed release. Exit
// is idempotent, so the usual pattern restores the pre-entry state exactly
// once on every exit path:
//
//	cs := rtos.EnterCritical(tc)
//	defer cs.Exit()
//
// Sections nest through a per-task depth counter: an inner Exit never
// unmasks interrupts while an outer section is still open. Critical
// sections protect non-kernel shared data and must stay short; interrupt
// delivery is delayed for their whole duration.
type CriticalSection struct {
	tc     *TaskContext
	exited bool
}

// EnterCritical masks interrupt delivery and returns the guard.
func EnterCritical(tc *TaskContext) *CriticalSection {
	tc.os.k.EnterCritical(tc.t)
	return &CriticalSection{tc: tc}
}

// Exit restores the pre-entry masking state. Further calls do nothing.
func (cs *CriticalSection) Exit() {
	if cs.exited {
		return
	}
	cs.exited = true
	cs.tc.os.k.ExitCritical(cs.tc.t)
}

// Depth returns the calling task's current nesting depth, for tests and
// diagnostics.
func CriticalDepth(tc *TaskContext) int {
	return tc.os.k.CriticalDepth(tc.t)
}

// SchedulerLock is the coarser critical-section granularity: preemption is
// disabled but interrupts still fire. Wakeups they cause are held back and
// flushed when the last nesting level unwinds.
type SchedulerLock struct {
	tc     *TaskContext
	exited bool
}

// SuspendScheduler disables preemption and returns the guard.
func SuspendScheduler(tc *TaskContext) *SchedulerLock {
	tc.os.k.SuspendScheduler(tc.t)
	return &SchedulerLock{tc: tc}
}

// Exit re-enables preemption, performing any context switch held back
// while the lock was in force. Further calls do nothing.
func (sl *SchedulerLock) Exit() {
	if sl.exited {
		return
	}
	sl.exited = true
	sl.tc.os.k.ResumeScheduler(sl.tc.t)
}

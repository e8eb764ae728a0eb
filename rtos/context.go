package rtos

import "keel/kernel"

// TaskContext is the capability token proving the caller executes as a
// normal task, where blocking is legal. It is minted exclusively by the
// task-entry trampoline in Spawn and handed to the entry function; there is
// no other way to obtain one, so a blocking call without a running task
// behind it does not compile.
//
// A TaskContext is bound to its task's goroutine and must not be handed to
// another goroutine; the kernel faults when it detects a caller that is not
// the running task.
type TaskContext struct {
	os *RTOS
	t  *kernel.TCB
}

// OS returns the operating system the task runs under, giving task code
// access to object creation and timebase queries.
func (tc *TaskContext) OS() *RTOS { return tc.os }

// Task returns a handle to the calling task itself. The handle carries the
// same kernel identity as the one Spawn returned to the creator, so a task
// can suspend, notify, or reprioritize itself without a registry lookup.
func (tc *TaskContext) Task() *Task {
	return &Task{os: tc.os, t: tc.t}
}

// Delay blocks the calling task for the given timeout. Forever is rejected
// as a programming error; NoWait yields the remainder of the time slice.
func (tc *TaskContext) Delay(t Timeout) {
	if t.IsForever() {
		panic("rtos: Delay(Forever)")
	}
	tc.os.k.Delay(tc.t, t.ticks)
}

// DelayUntil blocks until an absolute tick value, enabling drift-free
// periodic loops. It reports false when the tick had already passed.
func (tc *TaskContext) DelayUntil(wakeTick uint64) bool {
	return tc.os.k.DelayUntil(tc.t, wakeTick)
}

// Yield offers the processor to a ready task of equal priority.
func (tc *TaskContext) Yield() {
	tc.os.k.Yield(tc.t)
}

// Exit deletes the calling task and never returns. Deferred functions on
// the task goroutine still run.
func (tc *TaskContext) Exit() {
	tc.os.k.DeleteTask(tc.t, tc.t)
}

// TakeNotification waits for the task's notification value to become
// non-zero, then clears it (clear true) or decrements it by one. It returns
// the value observed, or zero when the wait timed out.
func (tc *TaskContext) TakeNotification(clear bool, timeout Timeout) uint32 {
	return tc.os.k.NotifyTake(tc.t, clear, timeout.ticks)
}

// WaitNotification blocks until a notification is pending. clearEnter is
// cleared from the value before waiting, clearExit after a successful wait.
func (tc *TaskContext) WaitNotification(clearEnter, clearExit uint32, timeout Timeout) (uint32, error) {
	val, st := tc.os.k.NotifyWait(tc.t, clearEnter, clearExit, timeout.ticks)
	return val, statusErr(st)
}

// ISRContext is the capability token carried by interrupt handlers. It is
// minted exclusively by an Interrupt's trigger trampoline; handler code can
// only reach the non-blocking FromISR operations with it, so a blocking
// call from interrupt context does not compile.
//
// FromISR operations accumulate on the token whether they woke a task that
// outranks the interrupted one. The trampoline honors the flag after the
// handler returns; the API layer never switches contexts from inside the
// handler.
type ISRContext struct {
	os  *RTOS
	isr *kernel.ISR
}

// OS returns the operating system the interrupt belongs to. Only
// non-blocking queries are safe from interrupt context.
func (ic *ISRContext) OS() *RTOS { return ic.os }

// NeedsContextSwitch reports the accumulated hint that a woken task should
// preempt as soon as the handler returns.
func (ic *ISRContext) NeedsContextSwitch() bool {
	return ic.isr.YieldRequested()
}

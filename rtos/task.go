package rtos

import (
	"fmt"

	"keel/kernel"
)

// Task is an owned handle to a kernel task. Handles passed around the
// system all refer to the same kernel identity; Equal compares it. Delete
// ends the handle's usefulness: every later operation through any handle to
// the task fails with ErrDeleted.
type Task struct {
	os *RTOS
	t  *kernel.TCB
}

// NotifyAction selects how Notify updates the target's notification value.
type NotifyAction = kernel.NotifyAction

const (
	// NotifyNoAction wakes the target without touching the value.
	NotifyNoAction = kernel.NotifyNoAction
	// NotifySetBits ORs the argument into the value.
	NotifySetBits = kernel.NotifySetBits
	// NotifyIncrement adds one to the value.
	NotifyIncrement = kernel.NotifyIncrement
	// NotifyOverwrite stores the argument unconditionally.
	NotifyOverwrite = kernel.NotifyOverwrite
	// NotifySetValue stores the argument unless a notification is pending.
	NotifySetValue = kernel.NotifySetValue
)

// Spawn creates a task and readies it. The entry function receives the
// TaskContext capability token and a handle to the task itself, minted
// before the task is made schedulable; the self-handle carries the same
// kernel identity Spawn returns to the caller. The task is deleted when
// entry returns.
//
// Priority is validated against the configured MaxPriorities before any
// kernel heap allocation happens.
func (os *RTOS) Spawn(name string, priority uint8, stackBytes int, entry func(*TaskContext, *Task)) (*Task, error) {
	tcb, st := os.k.CreateTask(name, priority, stackBytes, func(t *kernel.TCB) {
		tc := &TaskContext{os: os, t: t}
		entry(tc, &Task{os: os, t: t})
	})
	if st != kernel.StatusOK {
		return nil, fmt.Errorf("rtos: spawn %q: %w", name, statusErr(st))
	}
	return &Task{os: os, t: tcb}, nil
}

// ID returns the kernel-assigned task number.
func (t *Task) ID() uint32 { return t.t.ID() }

// Name returns the task name.
func (t *Task) Name() string { return t.t.Name() }

// Equal reports whether two handles refer to the same kernel task.
func (t *Task) Equal(other *Task) bool {
	return other != nil && t.t == other.t
}

// State returns the task's lifecycle state.
func (t *Task) State() kernel.TaskState { return t.t.State() }

// Priority returns the task's base priority.
func (t *Task) Priority() uint8 { return t.t.BasePriority() }

// EffectivePriority returns the priority the scheduler currently uses,
// including any priority inherited through a mutex the task holds.
func (t *Task) EffectivePriority() uint8 { return t.t.EffectivePriority() }

// StackBytes returns the stack reservation made at spawn.
func (t *Task) StackBytes() int { return t.t.StackBytes() }

// StackHighWater reports the least unused stack ever observed for the task.
func (t *Task) StackHighWater() int { return t.t.StackHighWater() }

// SetPriority changes the task's base priority.
func (t *Task) SetPriority(tc *TaskContext, priority uint8) error {
	return statusErr(t.os.k.SetPriority(tc.t, t.t, priority))
}

// Suspend removes the task from scheduling until Resume. Suspending the
// calling task's own handle parks it immediately.
func (t *Task) Suspend(tc *TaskContext) {
	t.os.k.Suspend(tc.t, t.t)
}

// Resume returns a suspended task to the ready state.
func (t *Task) Resume(tc *TaskContext) {
	t.os.k.Resume(tc.t, t.t)
}

// ResumeFromISR readies a suspended task from interrupt context.
func (t *Task) ResumeFromISR(ic *ISRContext) {
	t.os.k.ResumeFromISR(ic.isr, t.t)
}

// Notify posts a notification, waking the task when it is blocked in
// TakeNotification or WaitNotification.
func (t *Task) Notify(tc *TaskContext, action NotifyAction, value uint32) error {
	return statusErr(t.os.k.Notify(tc.t, t.t, action, value))
}

// NotifyFromISR posts a notification from interrupt context. The
// context-switch hint accumulates on the token.
func (t *Task) NotifyFromISR(ic *ISRContext, action NotifyAction, value uint32) error {
	return statusErr(t.os.k.NotifyFromISR(ic.isr, t.t, action, value))
}

// Delete removes the task. Deleting the calling task's own handle never
// returns. A task mid-execution is reaped at its next kernel call; the
// caller is responsible for not deleting tasks other code still references.
func (t *Task) Delete(tc *TaskContext) {
	t.os.k.DeleteTask(tc.t, t.t)
}

package kernel

import (
	"runtime"

	"keel/heap"
)

// TCB is a task control block. All scheduler-owned fields are guarded by the
// kernel mutex; critDepth is only touched by the task's own goroutine.
type TCB struct {
	id       uint32
	name     string
	basePrio uint8
	effPrio  uint8
	state    TaskState

	// gate admits the task goroutine to the CPU. Capacity one so a wake
	// issued just before the task parks is not lost.
	gate chan struct{}

	waitingOn  *waitlist
	wakeTick   uint64
	inDelayed  bool
	wakeStatus Status

	notifValue   uint32
	notifPending bool
	notifWaiting bool

	held      []*Mutex // mutexes currently owned, for disinheritance
	critDepth int

	stackBytes int
	stackPeak  int
	region     heap.Region
	k          *Kernel
}

// TaskInfo is a snapshot of task identity for hooks and diagnostics.
type TaskInfo struct {
	ID       uint32
	Name     string
	Priority uint8
}

func (t *TCB) info() TaskInfo {
	return TaskInfo{ID: t.id, Name: t.name, Priority: t.effPrio}
}

// ID returns the kernel-assigned task number.
func (t *TCB) ID() uint32 { return t.id }

// Name returns the task name given at creation.
func (t *TCB) Name() string { return t.name }

// State returns the task's current lifecycle state.
func (t *TCB) State() TaskState {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.state
}

// BasePriority returns the priority assigned at creation or by SetPriority.
func (t *TCB) BasePriority() uint8 {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.basePrio
}

// EffectivePriority returns the priority the scheduler currently uses,
// including any priority inherited through a mutex.
func (t *TCB) EffectivePriority() uint8 {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.effPrio
}

// StackBytes returns the stack size reserved for the task.
func (t *TCB) StackBytes() int { return t.stackBytes }

// StackHighWater reports the smallest amount of unused stack observed for
// the task. Stacks are simulated on the host, so the figure comes from a
// nominal frame charge taken at each kernel entry, scaled by the critical
// section nesting depth, not from probing a real stack.
func (t *TCB) StackHighWater() int {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	free := t.stackBytes - t.stackPeak
	if free < 0 {
		free = 0
	}
	return free
}

// exit terminates the task goroutine. Deferred functions on the task's
// stack still run, which is the closest Go analog to a task delete hook.
// Always called with k.mu held; the unwinding kernel call releases the
// lock through its own deferred unlock.
func (t *TCB) exit() {
	runtime.Goexit()
}

// CreateTask allocates a control block and stack from the kernel heap and
// readies the task. The entry function runs on a dedicated goroutine once
// the scheduler grants the task the CPU. Priority is validated before any
// heap allocation happens.
func (k *Kernel) CreateTask(name string, prio uint8, stackBytes int, entry func(*TCB)) (*TCB, Status) {
	if prio >= k.cfg.MaxPriorities {
		return nil, StatusInvalidPriority
	}
	if stackBytes < k.cfg.MinStackBytes {
		stackBytes = k.cfg.MinStackBytes
	}

	region, ok := k.arena.Alloc(taskOverhead+stackBytes, 0)
	if !ok {
		return nil, StatusNoMemory
	}

	k.mu.Lock()
	k.nextID++
	t := &TCB{
		id:         k.nextID,
		name:       name,
		basePrio:   prio,
		effPrio:    prio,
		gate:       make(chan struct{}, 1),
		stackBytes: stackBytes,
		region:     region,
		k:          k,
	}
	k.tasks = append(k.tasks, t)
	t.state = StateReady
	k.enqueueReady(t, false)
	k.hooks.TaskCreated(t.info())
	if k.running != nil && t.effPrio > k.running.effPrio {
		k.pendYield = true
	}
	k.kick()
	k.mu.Unlock()

	go func() {
		<-t.gate
		t.k.mu.Lock()
		if t.state == StateDeleted {
			t.k.mu.Unlock()
			return
		}
		t.state = StateRunning
		t.k.mu.Unlock()

		defer k.taskReturned(t)
		entry(t)
	}()

	return t, StatusOK
}

// taskReturned finalizes a task whose entry function returned or whose
// goroutine is unwinding after a delete.
func (k *Kernel) taskReturned(t *TCB) {
	k.mu.Lock()
	if t.state == StateDeleted {
		k.mu.Unlock()
		return
	}
	k.reapLocked(t)
	if k.running == t {
		k.running = nil
		top, ok := k.topReadyPrio()
		if ok && k.schedSuspended == 0 {
			k.runTask(t, k.popReady(top))
		} else {
			k.cond.Broadcast()
		}
	}
	k.mu.Unlock()
}

// reapLocked removes a task from every scheduler structure and returns its
// memory to the arena.
func (k *Kernel) reapLocked(t *TCB) {
	switch t.state {
	case StateReady:
		k.dequeueReady(t)
	case StateBlocked:
		if t.waitingOn != nil {
			t.waitingOn.remove(t)
			t.waitingOn = nil
		}
		k.delayRemove(t)
	}
	t.state = StateDeleted
	for i, it := range k.tasks {
		if it == t {
			k.tasks = append(k.tasks[:i], k.tasks[i+1:]...)
			break
		}
	}
	if t.region.Valid() {
		k.arena.Free(t.region)
		t.region = heap.Region{}
	}
	k.hooks.TaskDeleted(t.info())
}

// DeleteTask removes a task. Deleting the calling task never returns: the
// goroutine unwinds after the next ready task has been dispatched. Deleting
// a remote task that is mid-execution takes effect at its next kernel call.
func (k *Kernel) DeleteTask(caller, target *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if target.state == StateDeleted {
		return
	}

	if caller == target {
		k.reapLocked(target)
		k.running = nil
		top, ok := k.topReadyPrio()
		if ok && k.schedSuspended == 0 {
			k.runTask(target, k.popReady(top))
		} else {
			k.cond.Broadcast()
		}
		target.exit()
		return
	}

	wasRunning := k.running == target
	k.reapLocked(target)
	if wasRunning {
		// The target goroutine notices at its next kernel entry.
		k.running = nil
		k.kick()
	} else {
		// Unpark the goroutine so it can unwind.
		select {
		case target.gate <- struct{}{}:
		default:
		}
	}
	if caller != nil {
		k.maybePreempt(caller)
	}
}

// enterTask is the prologue of every task-context kernel call: it terminates
// goroutines whose task was remotely deleted. Termination happens with k.mu
// held, so every caller must release the lock through a deferred unlock for
// the unwind to leave it consistent.
func (k *Kernel) enterTask(caller *TCB) {
	if caller == nil {
		return
	}
	if caller.state == StateDeleted {
		caller.exit()
	}
	used := stackFrameBase + stackFrameBytes*caller.critDepth
	if used > caller.stackPeak {
		caller.stackPeak = used
	}
}

// Suspend removes a task from scheduling until Resume. Suspending the
// calling task parks it immediately; suspending a blocked task abandons its
// wait, and the interrupted operation reports a timeout once resumed.
func (k *Kernel) Suspend(caller, target *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if target.state == StateDeleted || target.state == StateSuspended {
		return
	}

	if target == caller {
		target.state = StateSuspended
		k.hooks.TaskBlocked(target.info())
		k.switchOut(target)
		return
	}

	switch target.state {
	case StateReady:
		k.dequeueReady(target)
	case StateBlocked:
		if target.waitingOn != nil {
			target.waitingOn.remove(target)
			target.waitingOn = nil
		}
		k.delayRemove(target)
		target.notifWaiting = false
		target.wakeStatus = StatusTimeout
	case StateRunning:
		// Takes effect at the target's next kernel call; until then the
		// host simulation cannot stop a goroutine mid-flight.
		k.running = nil
		k.kick()
	}
	target.state = StateSuspended
	k.hooks.TaskBlocked(target.info())
	k.maybePreempt(caller)
}

// Resume returns a suspended task to the ready state.
func (k *Kernel) Resume(caller, target *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if target.state != StateSuspended {
		return
	}
	k.makeReady(target)
	k.maybePreempt(caller)
}

// ResumeFromISR readies a suspended task from interrupt context and reports
// whether the woken task outranks the running one.
func (k *Kernel) ResumeFromISR(isr *ISR, target *TCB) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if target.state != StateSuspended {
		return false
	}
	higher := k.wokeHigher(target)
	k.makeReady(target)
	if higher {
		isr.yield = true
	}
	return higher
}

// SetPriority changes a task's base priority, recomputing the effective
// priority under any active inheritance.
func (k *Kernel) SetPriority(caller, target *TCB, prio uint8) Status {
	if prio >= k.cfg.MaxPriorities {
		return StatusInvalidPriority
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	target.basePrio = prio
	k.recomputeEffPrio(target)
	k.maybePreempt(caller)
	return StatusOK
}

// setEffPrio moves a task between ready lists or repositions it on a wait
// list when its effective priority changes.
func (k *Kernel) setEffPrio(t *TCB, prio uint8) {
	if t.effPrio == prio {
		return
	}
	switch t.state {
	case StateReady:
		k.dequeueReady(t)
		t.effPrio = prio
		k.enqueueReady(t, false)
	case StateBlocked:
		t.effPrio = prio
		if t.waitingOn != nil {
			t.waitingOn.reposition(t)
		}
	default:
		t.effPrio = prio
	}
	if k.running != nil && t.state == StateReady && prio > k.running.effPrio {
		k.pendYield = true
	}
}

// recomputeEffPrio applies base priority plus the highest priority among
// waiters of every mutex the task holds.
func (k *Kernel) recomputeEffPrio(t *TCB) {
	prio := t.basePrio
	for _, m := range t.held {
		if wp, ok := m.waiters.peekHighestPrio(); ok && wp > prio {
			prio = wp
		}
	}
	k.setEffPrio(t, prio)
}

// Delay blocks the calling task for the given number of ticks.
func (k *Kernel) Delay(caller *TCB, ticks int64) {
	if ticks <= 0 {
		k.Yield(caller)
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	k.blockOn(caller, nil, int64(k.tick)+ticks)
}

// DelayUntil blocks the calling task until an absolute tick value. It
// returns immediately when the tick has already passed, reporting false.
func (k *Kernel) DelayUntil(caller *TCB, wakeTick uint64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if wakeTick <= k.tick {
		k.maybePreempt(caller)
		return false
	}
	k.blockOn(caller, nil, int64(wakeTick))
	return true
}

// Yield offers the CPU to an equal-priority peer.
func (k *Kernel) Yield(caller *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	k.pendYield = true
	k.maybePreempt(caller)
}

// TaskStatus is one row of a scheduler state snapshot.
type TaskStatus struct {
	ID           uint32
	Name         string
	State        TaskState
	BasePriority uint8
	Priority     uint8
	StackBytes   int
	StackFree    int
}

// Snapshot reports every live task, ordered by creation.
func (k *Kernel) Snapshot() []TaskStatus {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]TaskStatus, 0, len(k.tasks))
	for _, t := range k.tasks {
		out = append(out, TaskStatus{
			ID:           t.id,
			Name:         t.name,
			State:        t.state,
			BasePriority: t.basePrio,
			Priority:     t.effPrio,
			StackBytes:   t.stackBytes,
			StackFree:    t.stackBytes - t.stackPeak,
		})
	}
	return out
}

// NumTasks returns the live task count.
func (k *Kernel) NumTasks() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.tasks)
}

// Package kernel is a deterministic host simulation of a preemptive,
// fixed-priority real-time kernel. It provides the raw object operations a
// real kernel port exposes through its ABI: task create/delete, queues,
// semaphores, mutexes with priority inheritance, task notifications, critical
// sections, and tick handling.
//
// Each task runs on its own goroutine but at most one task executes at a
// time: a task goroutine only runs application code after being admitted
// through its gate channel, and it hands the gate over inside kernel calls.
// Preemption therefore happens at kernel entry and exit points and on tick
// delivery, which is the standard behavior of host simulation ports.
//
// This package is the trusted collaborator underneath the rtos package. It
// performs no context-safety checking of its own; the rtos layer makes
// misuse (such as blocking from an interrupt handler) unrepresentable.
package kernel

import (
	"sync"
	"time"

	"keel/heap"
)

// Kernel is one simulated kernel instance: scheduler state, timebase, and
// the heap arena every kernel object is carved from.
type Kernel struct {
	mu   sync.Mutex
	cond *sync.Cond // signaled on idle transitions

	// intrMu is the simulated interrupt mask. Interrupt delivery (RunISR,
	// AdvanceTick) acquires it, so a task holding it via a critical section
	// delays interrupts exactly like masking does on hardware.
	intrMu sync.Mutex

	cfg   Config
	arena *heap.Arena
	hooks Hooks

	ready        []runqueue
	readySummary uint32 // bit n set when ready[n] is non-empty
	running      *TCB
	tasks        []*TCB
	nextID       uint32

	tick    uint64
	delayed []*TCB // sorted by wakeTick ascending

	started        bool
	schedSuspended int
	pendYield      bool
	isrDepth       int
}

// New creates a kernel from a validated configuration.
func New(cfg Config, hooks Hooks) *Kernel {
	if !cfg.valid() {
		panic("kernel: invalid configuration")
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	k := &Kernel{
		cfg:   cfg,
		arena: heap.New(cfg.HeapBytes),
		hooks: hooks,
		ready: make([]runqueue, cfg.MaxPriorities),
	}
	k.cond = sync.NewCond(&k.mu)
	return k
}

// Config returns the build parameters the kernel was created with.
func (k *Kernel) Config() Config { return k.cfg }

// Heap exposes the kernel heap arena for diagnostics.
func (k *Kernel) Heap() *heap.Arena { return k.arena }

// Start makes the scheduler live: the highest-priority ready task begins
// executing. Tasks may be created both before and after Start.
func (k *Kernel) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		panic("kernel: scheduler already started")
	}
	k.started = true
	k.kick()
}

// Started reports whether the scheduler is live.
func (k *Kernel) Started() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.started
}

// TickCount returns the current tick value.
func (k *Kernel) TickCount() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tick
}

// AdvanceTick delivers one scheduler tick: the timebase advances, expired
// delays and timeouts fire, and a same-priority peer of the running task is
// granted the next time slice. Tick delivery respects the interrupt mask.
func (k *Kernel) AdvanceTick() {
	k.intrMu.Lock()
	k.mu.Lock()

	k.tick++
	k.hooks.Tick(k.tick)

	// Tick delivery is an interrupt frame: every expired task is readied
	// before any of them is dispatched, so the one that runs first is the
	// highest-priority woken task, not the first one drained.
	k.isrDepth++
	for len(k.delayed) > 0 && k.delayed[0].wakeTick <= k.tick {
		t := k.delayed[0]
		k.delayed = k.delayed[1:]
		t.inDelayed = false
		if t.waitingOn != nil {
			// Timed out waiting on an object.
			t.waitingOn.remove(t)
			t.waitingOn = nil
			t.wakeStatus = StatusTimeout
		} else {
			t.wakeStatus = StatusOK
		}
		t.notifWaiting = false
		k.makeReady(t)
	}
	k.isrDepth--

	// Round-robin within the running task's priority level.
	if k.running != nil && !k.ready[k.running.effPrio].empty() {
		k.pendYield = true
	}
	k.kick()

	k.mu.Unlock()
	k.intrMu.Unlock()
}

// StartTicker drives AdvanceTick from a real-time ticker at the configured
// tick rate. The returned stop function halts the ticker.
func (k *Kernel) StartTicker() (stop func()) {
	interval := time.Second / time.Duration(k.cfg.TickRateHz)
	if interval <= 0 {
		interval = time.Millisecond
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				k.AdvanceTick()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// WaitIdle blocks until every task is blocked, suspended, or deleted, or
// until the wall-clock timeout expires. It reports whether idle was reached.
// This is the synchronization point for host code driving the simulation.
func (k *Kernel) WaitIdle(d time.Duration) bool {
	deadline := time.Now().Add(d)
	wake := time.AfterFunc(d, func() {
		k.mu.Lock()
		k.cond.Broadcast()
		k.mu.Unlock()
	})
	defer wake.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()
	for !k.idleLocked() {
		if !time.Now().Before(deadline) {
			return false
		}
		k.cond.Wait()
	}
	return true
}

func (k *Kernel) idleLocked() bool {
	return k.running == nil && k.readySummary == 0
}

// --- scheduler core (all with k.mu held) ---

func (k *Kernel) topReadyPrio() (uint8, bool) {
	if k.readySummary == 0 {
		return 0, false
	}
	for p := int(k.cfg.MaxPriorities) - 1; p >= 0; p-- {
		if k.readySummary&(1<<uint(p)) != 0 {
			return uint8(p), true
		}
	}
	return 0, false
}

func (k *Kernel) enqueueReady(t *TCB, front bool) {
	if front {
		k.ready[t.effPrio].pushFront(t)
	} else {
		k.ready[t.effPrio].pushBack(t)
	}
	k.readySummary |= 1 << uint(t.effPrio)
}

func (k *Kernel) dequeueReady(t *TCB) {
	if k.ready[t.effPrio].remove(t) && k.ready[t.effPrio].empty() {
		k.readySummary &^= 1 << uint(t.effPrio)
	}
}

func (k *Kernel) popReady(prio uint8) *TCB {
	t := k.ready[prio].pop()
	if k.ready[prio].empty() {
		k.readySummary &^= 1 << uint(prio)
	}
	return t
}

// makeReady transitions a task to the ready state and flags a yield when it
// outranks the running task. Dispatch is deferred while an interrupt frame
// is open so a handler always finishes before the task it woke resumes.
func (k *Kernel) makeReady(t *TCB) {
	t.state = StateReady
	k.enqueueReady(t, false)
	k.hooks.TaskReady(t.info())
	if k.running != nil && t.effPrio > k.running.effPrio {
		k.pendYield = true
	}
	if k.isrDepth == 0 {
		k.kick()
	}
}

// kick starts the highest-priority ready task when the CPU is idle.
func (k *Kernel) kick() {
	if !k.started || k.running != nil || k.schedSuspended > 0 {
		return
	}
	top, ok := k.topReadyPrio()
	if !ok {
		k.cond.Broadcast()
		return
	}
	next := k.popReady(top)
	k.runTask(nil, next)
}

func (k *Kernel) runTask(prev, next *TCB) {
	k.running = next
	next.state = StateRunning
	var prevInfo TaskInfo
	if prev != nil {
		prevInfo = prev.info()
	}
	k.hooks.TaskSwitch(prevInfo, next.info())
	next.gate <- struct{}{}
}

// switchOut parks the calling task until it is scheduled again. The caller
// must be the running task and must have already recorded its next state
// and wait bookkeeping. Returns with k.mu re-held.
func (k *Kernel) switchOut(t *TCB) {
	k.dispatchFrom(t)
	k.mu.Unlock()
	<-t.gate
	k.mu.Lock()
	if t.state == StateDeleted {
		// Remotely deleted while parked; unwind without touching the
		// scheduler. Exit holds k.mu: the kernel call being unwound
		// releases it through its deferred unlock.
		t.exit()
	}
	t.state = StateRunning
}

// dispatchFrom hands the CPU from the departing task to the next ready one.
func (k *Kernel) dispatchFrom(t *TCB) {
	if k.running != t {
		k.fault("dispatch from a task that is not running")
	}
	k.running = nil
	top, ok := k.topReadyPrio()
	if !ok || k.schedSuspended > 0 {
		k.cond.Broadcast()
		return
	}
	next := k.popReady(top)
	k.runTask(t, next)
}

// maybePreempt switches the caller out when a higher-priority task is ready,
// or an equal-priority task is ready and a yield is pending. Called at the
// tail of every task-context kernel operation.
func (k *Kernel) maybePreempt(caller *TCB) {
	if caller == nil || k.schedSuspended > 0 || caller.critDepth > 0 {
		return
	}
	top, ok := k.topReadyPrio()
	yield := k.pendYield
	k.pendYield = false
	if !ok {
		return
	}
	if top > caller.effPrio || (yield && top >= caller.effPrio) {
		caller.state = StateReady
		k.enqueueReady(caller, top > caller.effPrio)
		k.switchOut(caller)
	}
}

// blockOn parks the caller on a wait list (nil for bare delays and
// notification waits) until signaled, timed out, or deleted. deadline is an
// absolute tick, or WaitForever. Returns the wake status.
func (k *Kernel) blockOn(caller *TCB, wl *waitlist, deadline int64) Status {
	if caller != k.running {
		k.fault("blocking call from a task that is not running")
	}
	if caller.critDepth > 0 {
		k.fault("blocking call inside a critical section")
	}
	if k.schedSuspended > 0 {
		k.fault("blocking call while the scheduler is suspended")
	}

	caller.state = StateBlocked
	caller.wakeStatus = StatusTimeout
	if wl != nil {
		wl.insert(caller)
		caller.waitingOn = wl
	}
	if deadline >= 0 {
		caller.wakeTick = uint64(deadline)
		k.delayInsert(caller)
	}
	k.hooks.TaskBlocked(caller.info())
	k.switchOut(caller)
	return caller.wakeStatus
}

// wake removes a task from whatever it waits on and readies it.
func (k *Kernel) wake(t *TCB, st Status) {
	if t.waitingOn != nil {
		t.waitingOn.remove(t)
		t.waitingOn = nil
	}
	k.delayRemove(t)
	t.notifWaiting = false
	t.wakeStatus = st
	k.makeReady(t)
}

// wokeHigher reports whether t outranks the running task, the yield hint
// interrupt handlers accumulate.
func (k *Kernel) wokeHigher(t *TCB) bool {
	return k.running == nil || t.effPrio > k.running.effPrio
}

// deadlineFor converts a relative tick count (WaitForever, NoWait, or a
// positive tick count) into an absolute deadline.
func (k *Kernel) deadlineFor(ticks int64) int64 {
	if ticks < 0 {
		return WaitForever
	}
	return int64(k.tick) + ticks
}

// --- delayed list ---

func (k *Kernel) delayInsert(t *TCB) {
	i := len(k.delayed)
	for j, it := range k.delayed {
		if it.wakeTick > t.wakeTick {
			i = j
			break
		}
	}
	k.delayed = append(k.delayed, nil)
	copy(k.delayed[i+1:], k.delayed[i:])
	k.delayed[i] = t
	t.inDelayed = true
}

func (k *Kernel) delayRemove(t *TCB) {
	if !t.inDelayed {
		return
	}
	for i, it := range k.delayed {
		if it == t {
			copy(k.delayed[i:], k.delayed[i+1:])
			k.delayed = k.delayed[:len(k.delayed)-1]
			break
		}
	}
	t.inDelayed = false
}

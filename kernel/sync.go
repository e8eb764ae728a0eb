package kernel

import "keel/heap"

// Semaphore is a counting semaphore control block. A binary semaphore is a
// counting semaphore with max 1.
type Semaphore struct {
	k     *Kernel
	count uint32
	max   uint32

	waiters waitlist
	region  heap.Region
	deleted bool
}

// CreateSemaphore allocates a semaphore with the given maximum and initial
// count.
func (k *Kernel) CreateSemaphore(max, initial uint32) (*Semaphore, Status) {
	if max == 0 || initial > max {
		return nil, StatusNoMemory
	}
	region, ok := k.arena.Alloc(semaphoreOverhead, 0)
	if !ok {
		return nil, StatusNoMemory
	}
	return &Semaphore{k: k, count: initial, max: max, region: region}, StatusOK
}

// Count returns the current semaphore count.
func (s *Semaphore) Count() uint32 {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.count
}

// Max returns the configured maximum count.
func (s *Semaphore) Max() uint32 { return s.max }

// DeleteSemaphore frees the semaphore and fails all waiters with
// StatusDeleted.
func (k *Kernel) DeleteSemaphore(caller *TCB, s *Semaphore) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if s.deleted {
		return
	}
	s.deleted = true
	for t := s.waiters.popHighest(); t != nil; t = s.waiters.popHighest() {
		t.waitingOn = nil
		k.delayRemove(t)
		t.wakeStatus = StatusDeleted
		k.makeReady(t)
	}
	k.arena.Free(s.region)
	s.region = heap.Region{}
	k.maybePreempt(caller)
}

// SemTake decrements the semaphore, blocking up to ticks when the count is
// zero.
func (k *Kernel) SemTake(caller *TCB, s *Semaphore, ticks int64) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if s.deleted {
		return StatusDeleted
	}
	if s.count > 0 {
		s.count--
		k.maybePreempt(caller)
		return StatusOK
	}
	if ticks == NoWait {
		return StatusTimeout
	}
	// A giver hands the token straight to the woken waiter, so a successful
	// wake means the take already happened.
	return k.blockOn(caller, &s.waiters, k.deadlineFor(ticks))
}

// SemGive increments the semaphore or hands the token to the
// highest-priority waiter. Giving past the maximum reports saturation and
// leaves the count unchanged.
func (k *Kernel) SemGive(caller *TCB, s *Semaphore) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if s.deleted {
		return StatusDeleted
	}
	if w := s.waiters.popHighest(); w != nil {
		w.waitingOn = nil
		k.wake(w, StatusOK)
		k.maybePreempt(caller)
		return StatusOK
	}
	if s.count >= s.max {
		return StatusSaturated
	}
	s.count++
	return StatusOK
}

// SemTakeFromISR attempts a non-blocking take from interrupt context.
func (k *Kernel) SemTakeFromISR(isr *ISR, s *Semaphore) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if s.deleted || s.count == 0 {
		return false
	}
	s.count--
	return true
}

// SemGiveFromISR gives the semaphore from interrupt context, accumulating
// the context-switch hint when it wakes a higher-priority task.
func (k *Kernel) SemGiveFromISR(isr *ISR, s *Semaphore) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	if s.deleted {
		return StatusDeleted
	}
	if w := s.waiters.popHighest(); w != nil {
		w.waitingOn = nil
		if k.wokeHigher(w) {
			isr.yield = true
		}
		k.wake(w, StatusOK)
		return StatusOK
	}
	if s.count >= s.max {
		return StatusSaturated
	}
	s.count++
	return StatusOK
}

// Mutex is a mutual-exclusion control block with priority inheritance.
// Mutexes are task-context only: the kernel offers no FromISR entry points
// for them, and the rtos layer exposes none.
type Mutex struct {
	k         *Kernel
	owner     *TCB
	lockCount int
	recursive bool

	waiters waitlist
	region  heap.Region
	deleted bool
}

// CreateMutex allocates a mutex. A recursive mutex may be re-locked by its
// owner; a plain one treats that as an error.
func (k *Kernel) CreateMutex(recursive bool) (*Mutex, Status) {
	region, ok := k.arena.Alloc(mutexOverhead, 0)
	if !ok {
		return nil, StatusNoMemory
	}
	return &Mutex{k: k, recursive: recursive, region: region}, StatusOK
}

// Owner returns the task currently holding the mutex, or nil.
func (m *Mutex) Owner() *TCB {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	return m.owner
}

// DeleteMutex frees the mutex. Deleting a held mutex is a programming error
// the kernel faults on, matching real kernels' configASSERT behavior.
func (k *Kernel) DeleteMutex(caller *TCB, m *Mutex) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if m.deleted {
		return
	}
	if m.owner != nil {
		k.fault("delete of a held mutex")
	}
	m.deleted = true
	for t := m.waiters.popHighest(); t != nil; t = m.waiters.popHighest() {
		t.waitingOn = nil
		k.delayRemove(t)
		t.wakeStatus = StatusDeleted
		k.makeReady(t)
	}
	k.arena.Free(m.region)
	m.region = heap.Region{}
	k.maybePreempt(caller)
}

// MutexLock acquires the mutex, blocking up to ticks. While the caller
// waits, the owner inherits the caller's priority if it is higher.
// Re-locking a non-recursive mutex fails with StatusAlreadyHeld.
func (k *Kernel) MutexLock(caller *TCB, m *Mutex, ticks int64) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if m.deleted {
		return StatusDeleted
	}

	if m.owner == nil {
		m.owner = caller
		m.lockCount = 1
		caller.held = append(caller.held, m)
		return StatusOK
	}
	if m.owner == caller {
		if !m.recursive {
			return StatusAlreadyHeld
		}
		m.lockCount++
		return StatusOK
	}
	if ticks == NoWait {
		return StatusTimeout
	}

	if m.owner.effPrio < caller.effPrio {
		k.setEffPrio(m.owner, caller.effPrio)
	}
	// Ownership is handed over by the unlocking task, so a successful wake
	// means the caller already owns the mutex.
	st := k.blockOn(caller, &m.waiters, k.deadlineFor(ticks))
	if st != StatusOK && m.owner != nil {
		// The wait ended without the lock; drop any priority the owner
		// inherited on the caller's behalf.
		k.recomputeEffPrio(m.owner)
	}
	return st
}

// MutexUnlock releases the mutex, restoring any inherited priority and
// handing ownership to the highest-priority waiter.
func (k *Kernel) MutexUnlock(caller *TCB, m *Mutex) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if m.deleted {
		return StatusDeleted
	}
	if m.owner != caller {
		return StatusNotOwner
	}
	if m.recursive {
		if m.lockCount--; m.lockCount > 0 {
			return StatusOK
		}
	}

	for i, held := range caller.held {
		if held == m {
			caller.held = append(caller.held[:i], caller.held[i+1:]...)
			break
		}
	}

	if w := m.waiters.popHighest(); w != nil {
		w.waitingOn = nil
		m.owner = w
		m.lockCount = 1
		w.held = append(w.held, m)
		k.wake(w, StatusOK)
	} else {
		m.owner = nil
		m.lockCount = 0
	}

	k.recomputeEffPrio(caller)
	k.maybePreempt(caller)
	return StatusOK
}

package kernel

import "keel/heap"

// Queue is the kernel side of a fixed-capacity message queue. The kernel
// owns the blocking protocol and the slot accounting; element storage lives
// with the typed wrapper in the rtos layer, which passes copy closures that
// execute under the kernel lock. Elements are therefore moved while no task
// can observe a partial transfer.
type Queue struct {
	k        *Kernel
	capacity int
	count    int

	sendWait waitlist
	recvWait waitlist

	region  heap.Region
	deleted bool
}

// CreateQueue reserves queue storage on the kernel heap. itemBytes is the
// per-element footprint charged to the arena.
func (k *Kernel) CreateQueue(capacity, itemBytes int) (*Queue, Status) {
	if capacity <= 0 || itemBytes <= 0 {
		return nil, StatusNoMemory
	}
	region, ok := k.arena.Alloc(queueOverhead+capacity*itemBytes, 0)
	if !ok {
		return nil, StatusNoMemory
	}
	return &Queue{k: k, capacity: capacity, region: region}, StatusOK
}

// Capacity returns the fixed slot count.
func (q *Queue) Capacity() int { return q.capacity }

// Len returns the number of occupied slots.
func (q *Queue) Len() int {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return q.count
}

// DeleteQueue frees the queue storage and fails every blocked sender and
// receiver with StatusDeleted.
func (k *Kernel) DeleteQueue(caller *TCB, q *Queue) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if q.deleted {
		return
	}
	q.deleted = true
	for t := q.sendWait.popHighest(); t != nil; t = q.sendWait.popHighest() {
		t.waitingOn = nil
		k.delayRemove(t)
		t.wakeStatus = StatusDeleted
		k.makeReady(t)
	}
	for t := q.recvWait.popHighest(); t != nil; t = q.recvWait.popHighest() {
		t.waitingOn = nil
		k.delayRemove(t)
		t.wakeStatus = StatusDeleted
		k.makeReady(t)
	}
	k.arena.Free(q.region)
	q.region = heap.Region{}
	k.maybePreempt(caller)
}

// QueueSend appends an element, blocking up to ticks while the queue is
// full. copyIn runs under the kernel lock once a slot is available.
func (k *Kernel) QueueSend(caller *TCB, q *Queue, copyIn func(), ticks int64) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	deadline := k.deadlineFor(ticks)

	for {
		if q.deleted {
			return StatusDeleted
		}
		if q.count < q.capacity {
			copyIn()
			q.count++
			if w := q.recvWait.popHighest(); w != nil {
				w.waitingOn = nil
				k.wake(w, StatusOK)
			}
			k.maybePreempt(caller)
			return StatusOK
		}
		if ticks == NoWait {
			return StatusTimeout
		}
		if st := k.blockOn(caller, &q.sendWait, deadline); st != StatusOK {
			return st
		}
		// Woken by a receiver freeing a slot; re-check under the lock.
	}
}

// QueueReceive removes the oldest element, blocking up to ticks while the
// queue is empty. copyOut runs under the kernel lock.
func (k *Kernel) QueueReceive(caller *TCB, q *Queue, copyOut func(), ticks int64) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	deadline := k.deadlineFor(ticks)

	for {
		if q.deleted {
			return StatusDeleted
		}
		if q.count > 0 {
			copyOut()
			q.count--
			if w := q.sendWait.popHighest(); w != nil {
				w.waitingOn = nil
				k.wake(w, StatusOK)
			}
			k.maybePreempt(caller)
			return StatusOK
		}
		if ticks == NoWait {
			return StatusTimeout
		}
		if st := k.blockOn(caller, &q.recvWait, deadline); st != StatusOK {
			return st
		}
	}
}

// QueueSendFromISR appends an element without blocking. A full queue fails
// with StatusQueueFull and the contents are untouched.
func (k *Kernel) QueueSendFromISR(isr *ISR, q *Queue, copyIn func()) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	if q.deleted {
		return StatusDeleted
	}
	if q.count >= q.capacity {
		return StatusQueueFull
	}
	copyIn()
	q.count++
	if w := q.recvWait.popHighest(); w != nil {
		w.waitingOn = nil
		if k.wokeHigher(w) {
			isr.yield = true
		}
		k.wake(w, StatusOK)
	}
	return StatusOK
}

// QueueReceiveFromISR removes the oldest element without blocking, failing
// with StatusQueueEmpty when there is nothing to take.
func (k *Kernel) QueueReceiveFromISR(isr *ISR, q *Queue, copyOut func()) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	if q.deleted {
		return StatusDeleted
	}
	if q.count == 0 {
		return StatusQueueEmpty
	}
	copyOut()
	q.count--
	if w := q.sendWait.popHighest(); w != nil {
		w.waitingOn = nil
		if k.wokeHigher(w) {
			isr.yield = true
		}
		k.wake(w, StatusOK)
	}
	return StatusOK
}

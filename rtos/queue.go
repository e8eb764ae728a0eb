package rtos

import (
	"unsafe"

	"keel/kernel"
)

// Queue is a fixed-capacity FIFO whose elements are moved by value across
// the context boundary: a sent element is copied in under the kernel lock
// and the sender retains no alias to it. Capacity is immutable after
// creation. Among blocked receivers the highest-priority one is woken
// first; equal priorities wake FIFO.
//
// The kernel owns the blocking protocol and slot accounting; the typed ring
// storage lives here and is charged against the kernel heap at creation.
type Queue[T any] struct {
	os *RTOS
	q  *kernel.Queue

	ring []T
	head int // next slot to fill
	tail int // next slot to drain
}

// NewQueue creates a queue with the given capacity. Fails with
// ErrOutOfKernelMemory when the kernel heap cannot hold the storage.
func NewQueue[T any](os *RTOS, capacity int) (*Queue[T], error) {
	var zero T
	itemBytes := int(unsafe.Sizeof(zero))
	if itemBytes == 0 {
		itemBytes = 1
	}
	kq, st := os.k.CreateQueue(capacity, itemBytes)
	if st != kernel.StatusOK {
		return nil, statusErr(st)
	}
	return &Queue[T]{os: os, q: kq, ring: make([]T, capacity)}, nil
}

// Capacity returns the fixed slot count.
func (q *Queue[T]) Capacity() int { return q.q.Capacity() }

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int { return q.q.Len() }

func (q *Queue[T]) put(v T) func() {
	return func() {
		q.ring[q.head] = v
		q.head = (q.head + 1) % len(q.ring)
	}
}

func (q *Queue[T]) take(dst *T) func() {
	return func() {
		var zero T
		*dst = q.ring[q.tail]
		q.ring[q.tail] = zero
		q.tail = (q.tail + 1) % len(q.ring)
	}
}

// Send appends an element, blocking up to timeout while the queue is full.
func (q *Queue[T]) Send(tc *TaskContext, v T, timeout Timeout) error {
	return statusErr(q.os.k.QueueSend(tc.t, q.q, q.put(v), timeout.ticks))
}

// Receive removes the oldest element, blocking up to timeout while the
// queue is empty.
func (q *Queue[T]) Receive(tc *TaskContext, timeout Timeout) (T, error) {
	var v T
	st := q.os.k.QueueReceive(tc.t, q.q, q.take(&v), timeout.ticks)
	return v, statusErr(st)
}

// SendFromISR appends an element from interrupt context without blocking.
// A full queue fails with ErrQueueFull and its contents are untouched. The
// context-switch hint accumulates on the token.
func (q *Queue[T]) SendFromISR(ic *ISRContext, v T) error {
	return statusErr(q.os.k.QueueSendFromISR(ic.isr, q.q, q.put(v)))
}

// ReceiveFromISR removes the oldest element from interrupt context without
// blocking. ok is false when the queue is empty or deleted.
func (q *Queue[T]) ReceiveFromISR(ic *ISRContext) (v T, ok bool) {
	st := q.os.k.QueueReceiveFromISR(ic.isr, q.q, q.take(&v))
	return v, st == kernel.StatusOK
}

// Delete frees the queue. Every blocked sender and receiver fails with
// ErrDeleted, as does any later operation through this handle.
func (q *Queue[T]) Delete(tc *TaskContext) {
	q.os.k.DeleteQueue(tc.t, q.q)
}

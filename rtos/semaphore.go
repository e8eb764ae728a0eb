package rtos

import "keel/kernel"

// Semaphore is a counting or binary semaphore handle. A binary semaphore is
// a counting semaphore with maximum one, created empty so the first Take
// blocks until a Give.
type Semaphore struct {
	os *RTOS
	s  *kernel.Semaphore
}

// NewBinarySemaphore creates an empty binary semaphore.
func (os *RTOS) NewBinarySemaphore() (*Semaphore, error) {
	return os.newSemaphore(1, 0)
}

// NewCountingSemaphore creates a counting semaphore with the given maximum
// and initial count.
func (os *RTOS) NewCountingSemaphore(max, initial uint32) (*Semaphore, error) {
	return os.newSemaphore(max, initial)
}

func (os *RTOS) newSemaphore(max, initial uint32) (*Semaphore, error) {
	s, st := os.k.CreateSemaphore(max, initial)
	if st != kernel.StatusOK {
		return nil, statusErr(st)
	}
	return &Semaphore{os: os, s: s}, nil
}

// Take decrements the semaphore, blocking up to timeout when the count is
// zero.
func (s *Semaphore) Take(tc *TaskContext, timeout Timeout) error {
	return statusErr(s.os.k.SemTake(tc.t, s.s, timeout.ticks))
}

// Give increments the semaphore or wakes the highest-priority waiter.
// Giving a full semaphore fails with ErrSemaphoreSaturated; the count is
// never silently dropped.
func (s *Semaphore) Give(tc *TaskContext) error {
	return statusErr(s.os.k.SemGive(tc.t, s.s))
}

// TakeFromISR attempts a non-blocking take from interrupt context,
// reporting whether a count was available.
func (s *Semaphore) TakeFromISR(ic *ISRContext) bool {
	return s.os.k.SemTakeFromISR(ic.isr, s.s)
}

// GiveFromISR gives the semaphore from interrupt context. The
// context-switch hint accumulates on the token.
func (s *Semaphore) GiveFromISR(ic *ISRContext) error {
	return statusErr(s.os.k.SemGiveFromISR(ic.isr, s.s))
}

// Count returns the current count.
func (s *Semaphore) Count() uint32 { return s.s.Count() }

// IsTaken reports whether the count is zero.
func (s *Semaphore) IsTaken() bool { return s.s.Count() == 0 }

// Delete frees the semaphore; all waiters fail with ErrDeleted.
func (s *Semaphore) Delete(tc *TaskContext) {
	s.os.k.DeleteSemaphore(tc.t, s.s)
}

package rtos

import "keel/kernel"

// Mutex is a mutual-exclusion handle with priority inheritance: while a
// higher-priority task waits, the holder runs at the waiter's priority so
// no middle-priority task can starve it.
//
// Mutexes are task-context only. The kernel's own constraint is that mutex
// operations are not interrupt-safe, so this type simply has no method
// accepting an ISRContext, so misuse is unrepresentable rather than checked.
type Mutex struct {
	os        *RTOS
	m         *kernel.Mutex
	recursive bool
}

// NewMutex creates a mutex. Re-locking by the owner fails with
// ErrAlreadyHeld; there is no silent reentrancy.
func (os *RTOS) NewMutex() (*Mutex, error) {
	return os.newMutex(false)
}

// NewRecursiveMutex creates a mutex the owner may re-lock; it unlocks after
// a matching number of Unlock calls.
func (os *RTOS) NewRecursiveMutex() (*Mutex, error) {
	return os.newMutex(true)
}

func (os *RTOS) newMutex(recursive bool) (*Mutex, error) {
	m, st := os.k.CreateMutex(recursive)
	if st != kernel.StatusOK {
		return nil, statusErr(st)
	}
	return &Mutex{os: os, m: m, recursive: recursive}, nil
}

// Lock acquires the mutex, blocking up to timeout.
func (m *Mutex) Lock(tc *TaskContext, timeout Timeout) error {
	return statusErr(m.os.k.MutexLock(tc.t, m.m, timeout.ticks))
}

// Unlock releases the mutex, restoring any inherited priority. Unlocking a
// mutex held by another task fails with ErrNotOwner.
func (m *Mutex) Unlock(tc *TaskContext) error {
	return statusErr(m.os.k.MutexUnlock(tc.t, m.m))
}

// With runs fn while holding the mutex, releasing it on every exit path.
func (m *Mutex) With(tc *TaskContext, timeout Timeout, fn func()) error {
	if err := m.Lock(tc, timeout); err != nil {
		return err
	}
	defer m.Unlock(tc)
	fn()
	return nil
}

// Owner returns a handle to the task currently holding the mutex, or nil.
func (m *Mutex) Owner() *Task {
	t := m.m.Owner()
	if t == nil {
		return nil
	}
	return &Task{os: m.os, t: t}
}

// Recursive reports whether the mutex permits owner re-locking.
func (m *Mutex) Recursive() bool { return m.recursive }

// Delete frees the mutex. Deleting a held mutex is a kernel fault.
func (m *Mutex) Delete(tc *TaskContext) {
	m.os.k.DeleteMutex(tc.t, m.m)
}

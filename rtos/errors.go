package rtos

import (
	"errors"
	"fmt"

	"keel/kernel"
)

// Sentinel errors for every way a kernel operation can fail. Callers match
// with errors.Is; context-mismatch failures (for example blocking from an
// interrupt handler) have no sentinel because the token types make them
// unrepresentable.
var (
	// ErrOutOfKernelMemory reports kernel heap exhaustion at object
	// creation. Retry policy is application-specific, so nothing retries
	// automatically.
	ErrOutOfKernelMemory = errors.New("rtos: out of kernel memory")

	// ErrTimeout reports that a wait exceeded its deadline without the
	// operation completing. Shared state is left consistent.
	ErrTimeout = errors.New("rtos: timeout")

	// ErrQueueFull reports a non-blocking send to a full queue.
	ErrQueueFull = errors.New("rtos: queue full")

	// ErrQueueEmpty reports a non-blocking receive from an empty queue.
	ErrQueueEmpty = errors.New("rtos: queue empty")

	// ErrSemaphoreSaturated reports a give beyond a counting semaphore's
	// configured maximum. The count is unchanged.
	ErrSemaphoreSaturated = errors.New("rtos: semaphore saturated")

	// ErrInvalidPriority reports a priority at or above the configured
	// MaxPriorities.
	ErrInvalidPriority = errors.New("rtos: invalid priority")

	// ErrNotOwner reports an unlock of a mutex held by another task.
	ErrNotOwner = errors.New("rtos: mutex not owned by caller")

	// ErrAlreadyHeld reports a re-lock of a non-recursive mutex by its
	// owner.
	ErrAlreadyHeld = errors.New("rtos: mutex already held by caller")

	// ErrNotificationPending reports a set-value notification refused
	// because the target already has one pending.
	ErrNotificationPending = errors.New("rtos: notification pending")

	// ErrDeleted reports use of a handle whose kernel object was deleted.
	ErrDeleted = errors.New("rtos: kernel object deleted")
)

// statusErr maps a raw kernel status to its sentinel.
func statusErr(st kernel.Status) error {
	switch st {
	case kernel.StatusOK:
		return nil
	case kernel.StatusTimeout:
		return ErrTimeout
	case kernel.StatusQueueFull:
		return ErrQueueFull
	case kernel.StatusQueueEmpty:
		return ErrQueueEmpty
	case kernel.StatusSaturated:
		return ErrSemaphoreSaturated
	case kernel.StatusNoMemory:
		return ErrOutOfKernelMemory
	case kernel.StatusInvalidPriority:
		return ErrInvalidPriority
	case kernel.StatusNotOwner:
		return ErrNotOwner
	case kernel.StatusAlreadyHeld:
		return ErrAlreadyHeld
	case kernel.StatusNotifyPending:
		return ErrNotificationPending
	case kernel.StatusDeleted:
		return ErrDeleted
	default:
		return fmt.Errorf("rtos: unexpected kernel status %s", st)
	}
}

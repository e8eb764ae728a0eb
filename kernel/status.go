package kernel

// Status is the raw result code of a kernel operation.
//
// The rtos layer translates these into errors; inside the kernel they stay
// plain integers so hot paths never allocate.
type Status uint8

const (
	StatusOK Status = iota
	StatusTimeout
	StatusQueueFull
	StatusQueueEmpty
	StatusSaturated
	StatusNoMemory
	StatusInvalidPriority
	StatusNotOwner
	StatusAlreadyHeld
	StatusNotifyPending
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusQueueFull:
		return "queue full"
	case StatusQueueEmpty:
		return "queue empty"
	case StatusSaturated:
		return "semaphore saturated"
	case StatusNoMemory:
		return "out of kernel memory"
	case StatusInvalidPriority:
		return "invalid priority"
	case StatusNotOwner:
		return "not owner"
	case StatusAlreadyHeld:
		return "already held"
	case StatusNotifyPending:
		return "notification pending"
	case StatusDeleted:
		return "object deleted"
	default:
		return "unknown"
	}
}

// TaskState describes where a task is in its lifecycle.
type TaskState uint8

const (
	StateReady TaskState = iota
	StateRunning
	StateBlocked
	StateSuspended
	StateDeleted
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateSuspended:
		return "suspended"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Timeout sentinels for the ticks argument of blocking operations.
const (
	// WaitForever blocks with no deadline.
	WaitForever int64 = -1
	// NoWait returns immediately when the operation cannot complete.
	NoWait int64 = 0
)

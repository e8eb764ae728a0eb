package kernel

// MaxSupportedPriorities bounds the per-priority ready list array. Priority
// masks are 32-bit, matching the wait masks used on the smallest targets.
const MaxSupportedPriorities = 32

// MaxTickRateHz caps the tick frequency at 1 MHz so a tick period always
// converts to a positive wall-clock duration.
const MaxTickRateHz = 1_000_000

// Config fixes the kernel build parameters. The values mirror what a real
// kernel build bakes in at compile time: once a Kernel is created they never
// change.
type Config struct {
	// MaxPriorities is the number of distinct task priorities. Valid task
	// priorities are 0..MaxPriorities-1, higher numbers preempt lower.
	MaxPriorities uint8

	// TickRateHz is the scheduler tick frequency.
	TickRateHz int

	// HeapBytes sizes the kernel heap arena that backs every control block,
	// stack, and queue storage allocation.
	HeapBytes int

	// MinStackBytes is the smallest stack a task may request.
	MinStackBytes int
}

// Overhead charged against the kernel heap per object kind, on top of any
// caller-requested storage. The numbers approximate real control block sizes
// so exhaustion behavior stays faithful.
const (
	taskOverhead      = 128
	queueOverhead     = 80
	semaphoreOverhead = 80
	mutexOverhead     = 88
	timerOverhead     = 96
)

// Simulated stack frame charges used for the high-water mark. Each kernel
// entry costs a base frame, and each held critical section nesting level
// costs an extra frame.
const (
	stackFrameBase  = 96
	stackFrameBytes = 32
)

func (c Config) valid() bool {
	return c.MaxPriorities >= 1 && c.MaxPriorities <= MaxSupportedPriorities &&
		c.TickRateHz > 0 && c.TickRateHz <= MaxTickRateHz &&
		c.HeapBytes > 0 && c.MinStackBytes > 0
}

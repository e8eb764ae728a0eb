package rtos

import (
	"time"

	"keel/kernel"
)

// Timeout bounds a blocking wait in scheduler ticks. The zero value is
// NoWait. There is no separate cancellation mechanism: a timed-out wait
// returns ErrTimeout and leaves all shared state consistent.
type Timeout struct {
	ticks int64
}

// Forever blocks with no deadline.
var Forever = Timeout{ticks: kernel.WaitForever}

// NoWait makes the operation fail immediately instead of blocking.
var NoWait = Timeout{ticks: kernel.NoWait}

// Ticks bounds a wait to n scheduler ticks.
func Ticks(n uint32) Timeout {
	return Timeout{ticks: int64(n)}
}

// IsForever reports whether the timeout never expires.
func (t Timeout) IsForever() bool { return t.ticks < 0 }

// TickCount returns the tick bound, with kernel.WaitForever for Forever.
func (t Timeout) TickCount() int64 { return t.ticks }

// Duration converts a wall-clock duration to ticks using the configured
// tick rate, rounding up so short non-zero waits never degrade to NoWait.
func (os *RTOS) Duration(d time.Duration) Timeout {
	if d <= 0 {
		return NoWait
	}
	rate := time.Second / time.Duration(os.cfg.TickRateHz)
	ticks := int64((d + rate - 1) / rate)
	if ticks == 0 {
		ticks = 1
	}
	return Timeout{ticks: ticks}
}

package rtos

// DelayMarker remembers the tick a task last woke at, so consecutive delays
// measure from wake to wake instead of from call to call. Loop body
// execution time then no longer drifts the schedule.
type DelayMarker struct {
	tc       *TaskContext
	lastWake uint64
}

// NewDelayMarker captures the current tick as the first wake point.
func NewDelayMarker(tc *TaskContext) *DelayMarker {
	return &DelayMarker{tc: tc, lastWake: tc.os.TickCount()}
}

// DelayUntil blocks until one interval past the previous wake point. When
// the body overran the interval, it returns immediately and resynchronizes
// to the current tick.
func (d *DelayMarker) DelayUntil(interval Timeout) {
	if interval.IsForever() {
		panic("rtos: DelayUntil(Forever)")
	}
	d.lastWake += uint64(interval.ticks)
	if !d.tc.DelayUntil(d.lastWake) {
		d.lastWake = d.tc.os.TickCount()
	}
}

// PeriodicDelay is a DelayMarker with a fixed period, for the common
// "run every N ticks" loop shape.
type PeriodicDelay struct {
	marker DelayMarker
	period int64
}

// NewPeriodicDelay captures the current tick and the loop period.
func NewPeriodicDelay(tc *TaskContext, period Timeout) *PeriodicDelay {
	if period.IsForever() || period.ticks <= 0 {
		panic("rtos: periodic delay period must be a positive tick count")
	}
	return &PeriodicDelay{
		marker: DelayMarker{tc: tc, lastWake: tc.os.TickCount()},
		period: period.ticks,
	}
}

// Wait blocks until the next period boundary.
func (p *PeriodicDelay) Wait() {
	p.marker.DelayUntil(Timeout{ticks: p.period})
}

// SetPeriod changes the loop period, effective from the next Wait.
func (p *PeriodicDelay) SetPeriod(period Timeout) {
	if period.IsForever() || period.ticks <= 0 {
		panic("rtos: periodic delay period must be a positive tick count")
	}
	p.period = period.ticks
}

// Reset moves the schedule origin to the current tick.
func (p *PeriodicDelay) Reset() {
	p.marker.lastWake = p.marker.tc.os.TickCount()
}

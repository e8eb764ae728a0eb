package rtos

import (
	"sync"

	"keel/heap"
	"keel/kernel"
)

// Timer is a software timer serviced by a kernel-owned daemon task. All
// timer commands travel through the daemon's command queue, so Start, Stop,
// Reset, and ChangePeriod are ordinary queue sends and have FromISR forms;
// the callback always runs in the daemon's task context, never in the
// caller's and never in an interrupt handler.
type Timer struct {
	os     *RTOS
	name   string
	cbID   uintptr
	region heap.Region

	mu         sync.Mutex
	period     int64
	autoReload bool
	active     bool
	expiry     uint64
}

type timerOp uint8

const (
	cmdStart timerOp = iota
	cmdStop
	cmdReset
	cmdChangePeriod
	cmdDelete
)

type timerCmd struct {
	op     timerOp
	tm     *Timer
	when   uint64 // tick at which the command was issued
	period int64  // cmdChangePeriod only
}

// timerService owns the daemon task and its command queue. Both are
// created lazily on the first NewTimer so systems without timers pay no
// heap or priority-slot cost for them.
type timerService struct {
	os *RTOS

	mu     sync.Mutex
	cmds   *Queue[timerCmd]
	daemon *Task
	cbs    registry[func(*TaskContext, *Timer)]
}

func (s *timerService) ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daemon != nil {
		return nil
	}
	tcfg := s.os.cfg.Timer
	cmds, err := NewQueue[timerCmd](s.os, tcfg.QueueLen)
	if err != nil {
		return err
	}
	daemon, err := s.os.Spawn("TmrSvc", tcfg.TaskPriority, tcfg.TaskStackBytes,
		func(tc *TaskContext, _ *Task) { s.run(tc) })
	if err != nil {
		s.os.k.DeleteQueue(nil, cmds.q)
		return err
	}
	s.cmds = cmds
	s.daemon = daemon
	return nil
}

// run is the daemon loop: sleep until the nearest expiry or the next
// command, whichever comes first.
func (s *timerService) run(tc *TaskContext) {
	armed := make(map[*Timer]struct{})
	for {
		wait := Forever
		if next, ok := nearestExpiry(armed); ok {
			now := tc.os.TickCount()
			if next <= now {
				wait = NoWait
			} else {
				wait = Timeout{ticks: int64(next - now)}
			}
		}
		cmd, err := s.cmds.Receive(tc, wait)
		if err == nil {
			s.apply(tc, armed, cmd)
		}
		s.fireDue(tc, armed)
	}
}

func nearestExpiry(armed map[*Timer]struct{}) (uint64, bool) {
	var next uint64
	found := false
	for tm := range armed {
		tm.mu.Lock()
		e := tm.expiry
		tm.mu.Unlock()
		if !found || e < next {
			next, found = e, true
		}
	}
	return next, found
}

func (s *timerService) apply(tc *TaskContext, armed map[*Timer]struct{}, cmd timerCmd) {
	tm := cmd.tm
	if _, ok := s.cbs.lookup(tm.cbID); !ok {
		delete(armed, tm) // deleted while the command was in flight
		return
	}
	tm.mu.Lock()
	switch cmd.op {
	case cmdStart, cmdReset:
		tm.active = true
		tm.expiry = cmd.when + uint64(tm.period)
		armed[tm] = struct{}{}
	case cmdStop:
		tm.active = false
		delete(armed, tm)
	case cmdChangePeriod:
		tm.period = cmd.period
		tm.active = true
		tm.expiry = cmd.when + uint64(tm.period)
		armed[tm] = struct{}{}
	case cmdDelete:
		tm.active = false
		delete(armed, tm)
		tm.mu.Unlock()
		s.cbs.unregister(tm.cbID)
		s.os.k.FreeTimerControl(tm.region)
		return
	}
	tm.mu.Unlock()
}

func (s *timerService) fireDue(tc *TaskContext, armed map[*Timer]struct{}) {
	now := tc.os.TickCount()
	for tm := range armed {
		tm.mu.Lock()
		due := tm.active && tm.expiry <= now
		if due {
			if tm.autoReload {
				tm.expiry += uint64(tm.period)
			} else {
				tm.active = false
			}
		}
		reload := tm.autoReload
		tm.mu.Unlock()
		if !due {
			continue
		}
		if !reload {
			delete(armed, tm)
		}
		if cb, ok := s.cbs.lookup(tm.cbID); ok {
			cb(tc, tm)
		}
	}
}

// NewTimer creates a software timer firing cb after period. An auto-reload
// timer rearms itself each expiry; a one-shot timer fires once per Start.
// The timer is created dormant and consumes kernel heap for its control
// block; the first timer also brings up the daemon task and its command
// queue, sized by the build configuration.
func NewTimer(os *RTOS, name string, period Timeout, autoReload bool, cb func(*TaskContext, *Timer)) (*Timer, error) {
	if period.IsForever() || period.ticks <= 0 {
		panic("rtos: timer period must be a positive tick count")
	}
	if err := os.timers.ensure(); err != nil {
		return nil, err
	}
	region, st := os.k.AllocTimerControl()
	if st != kernel.StatusOK {
		return nil, statusErr(st)
	}
	tm := &Timer{
		os:         os,
		name:       name,
		region:     region,
		period:     period.ticks,
		autoReload: autoReload,
	}
	tm.cbID = os.timers.cbs.register(cb)
	return tm, nil
}

// Name returns the timer's name.
func (tm *Timer) Name() string { return tm.name }

// Period returns the current period in ticks.
func (tm *Timer) Period() Timeout {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return Timeout{ticks: tm.period}
}

// IsActive reports whether the timer is armed. The answer reflects
// commands the daemon has already processed.
func (tm *Timer) IsActive() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.active
}

// AutoReload reports whether the timer rearms itself on expiry.
func (tm *Timer) AutoReload() bool { return tm.autoReload }

func (tm *Timer) send(tc *TaskContext, op timerOp, period int64, timeout Timeout) error {
	if _, ok := tm.os.timers.cbs.lookup(tm.cbID); !ok {
		return ErrDeleted
	}
	cmd := timerCmd{op: op, tm: tm, when: tm.os.TickCount(), period: period}
	return tm.os.timers.cmds.Send(tc, cmd, timeout)
}

func (tm *Timer) sendFromISR(ic *ISRContext, op timerOp) error {
	if _, ok := tm.os.timers.cbs.lookup(tm.cbID); !ok {
		return ErrDeleted
	}
	cmd := timerCmd{op: op, tm: tm, when: tm.os.TickCount()}
	return tm.os.timers.cmds.SendFromISR(ic, cmd)
}

// Start arms the timer; it fires one period from now. Blocks up to timeout
// while the daemon's command queue is full.
func (tm *Timer) Start(tc *TaskContext, timeout Timeout) error {
	return tm.send(tc, cmdStart, 0, timeout)
}

// Stop disarms the timer. A pending expiry that the daemon has not yet
// processed is discarded.
func (tm *Timer) Stop(tc *TaskContext, timeout Timeout) error {
	return tm.send(tc, cmdStop, 0, timeout)
}

// Reset rearms the timer, restarting the period from now.
func (tm *Timer) Reset(tc *TaskContext, timeout Timeout) error {
	return tm.send(tc, cmdReset, 0, timeout)
}

// ChangePeriod sets a new period and rearms the timer with it.
func (tm *Timer) ChangePeriod(tc *TaskContext, period Timeout, timeout Timeout) error {
	if period.IsForever() || period.ticks <= 0 {
		panic("rtos: timer period must be a positive tick count")
	}
	return tm.send(tc, cmdChangePeriod, period.ticks, timeout)
}

// Delete tears the timer down through the daemon, freeing its control
// block. Every later operation through the handle fails with ErrDeleted.
func (tm *Timer) Delete(tc *TaskContext, timeout Timeout) error {
	return tm.send(tc, cmdDelete, 0, timeout)
}

// StartFromISR arms the timer from interrupt context.
func (tm *Timer) StartFromISR(ic *ISRContext) error {
	return tm.sendFromISR(ic, cmdStart)
}

// StopFromISR disarms the timer from interrupt context.
func (tm *Timer) StopFromISR(ic *ISRContext) error {
	return tm.sendFromISR(ic, cmdStop)
}

// ResetFromISR rearms the timer from interrupt context.
func (tm *Timer) ResetFromISR(ic *ISRContext) error {
	return tm.sendFromISR(ic, cmdReset)
}

package kernel

// NotifyAction selects how a notification updates the target task's 32-bit
// notification value.
type NotifyAction uint8

const (
	// NotifyNoAction pends the notification without touching the value.
	NotifyNoAction NotifyAction = iota
	// NotifySetBits ORs the argument into the value.
	NotifySetBits
	// NotifyIncrement adds one to the value; the argument is ignored.
	NotifyIncrement
	// NotifyOverwrite stores the argument unconditionally.
	NotifyOverwrite
	// NotifySetValue stores the argument only when no notification is
	// pending, failing with StatusNotifyPending otherwise.
	NotifySetValue
)

func (a NotifyAction) String() string {
	switch a {
	case NotifyNoAction:
		return "no action"
	case NotifySetBits:
		return "set bits"
	case NotifyIncrement:
		return "increment"
	case NotifyOverwrite:
		return "overwrite"
	case NotifySetValue:
		return "set value"
	default:
		return "unknown"
	}
}

// applyNotify updates the value and reports whether the notification should
// pend.
func (t *TCB) applyNotify(action NotifyAction, value uint32) Status {
	switch action {
	case NotifyNoAction:
	case NotifySetBits:
		t.notifValue |= value
	case NotifyIncrement:
		t.notifValue++
	case NotifyOverwrite:
		t.notifValue = value
	case NotifySetValue:
		if t.notifPending {
			return StatusNotifyPending
		}
		t.notifValue = value
	}
	t.notifPending = true
	return StatusOK
}

// Notify posts a notification to a task, waking it when it is blocked in
// NotifyWait or NotifyTake.
func (k *Kernel) Notify(caller, target *TCB, action NotifyAction, value uint32) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if target.state == StateDeleted {
		return StatusDeleted
	}
	if st := target.applyNotify(action, value); st != StatusOK {
		return st
	}
	if target.notifWaiting {
		k.wake(target, StatusOK)
		k.maybePreempt(caller)
	}
	return StatusOK
}

// NotifyFromISR posts a notification from interrupt context, accumulating
// the context-switch hint.
func (k *Kernel) NotifyFromISR(isr *ISR, target *TCB, action NotifyAction, value uint32) Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	if target.state == StateDeleted {
		return StatusDeleted
	}
	if st := target.applyNotify(action, value); st != StatusOK {
		return st
	}
	if target.notifWaiting {
		if k.wokeHigher(target) {
			isr.yield = true
		}
		k.wake(target, StatusOK)
	}
	return StatusOK
}

// NotifyWait blocks the calling task until a notification is pending.
// clearEnter is ANDed out of the value before waiting, clearExit after a
// successful wait. The value observed on return is reported either way.
func (k *Kernel) NotifyWait(caller *TCB, clearEnter, clearExit uint32, ticks int64) (uint32, Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)

	if !caller.notifPending {
		if ticks == NoWait {
			return caller.notifValue, StatusTimeout
		}
		caller.notifValue &^= clearEnter
		caller.notifWaiting = true
		st := k.blockOn(caller, nil, k.deadlineFor(ticks))
		caller.notifWaiting = false
		if st != StatusOK {
			return caller.notifValue, st
		}
	}

	caller.notifPending = false
	val := caller.notifValue
	caller.notifValue &^= clearExit
	return val, StatusOK
}

// NotifyTake waits for the notification value to become non-zero, then
// either clears it or decrements it by one, returning the value it observed.
// A zero return means the wait timed out.
func (k *Kernel) NotifyTake(caller *TCB, clear bool, ticks int64) uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)

	if caller.notifValue == 0 {
		if ticks == NoWait {
			return 0
		}
		caller.notifWaiting = true
		st := k.blockOn(caller, nil, k.deadlineFor(ticks))
		caller.notifWaiting = false
		if st != StatusOK || caller.notifValue == 0 {
			return 0
		}
	}

	caller.notifPending = false
	val := caller.notifValue
	if clear {
		caller.notifValue = 0
	} else {
		caller.notifValue--
	}
	return val
}

package kernel

// EnterCritical masks simulated interrupt delivery for the calling task.
// Nesting is tracked with a per-task depth counter; only the outermost
// enter takes the interrupt mask, so an inner exit never unmasks while an
// outer section is still open. Blocking inside a critical section is a
// kernel fault.
func (k *Kernel) EnterCritical(caller *TCB) {
	if caller.critDepth == 0 {
		k.intrMu.Lock()
	}
	caller.critDepth++
}

// ExitCritical unwinds one nesting level, releasing the interrupt mask when
// the outermost section closes.
func (k *Kernel) ExitCritical(caller *TCB) {
	if caller.critDepth == 0 {
		k.fault("critical section exit without matching enter")
	}
	caller.critDepth--
	if caller.critDepth == 0 {
		k.intrMu.Unlock()
	}
}

// CriticalDepth returns the caller's critical section nesting depth.
func (k *Kernel) CriticalDepth(caller *TCB) int {
	return caller.critDepth
}

// SuspendScheduler stops preemption without masking interrupts: wakeups
// still happen, but no context switch occurs until ResumeScheduler unwinds
// the last nesting level.
func (k *Kernel) SuspendScheduler(caller *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	k.schedSuspended++
}

// ResumeScheduler unwinds one scheduler-suspend level and performs any
// context switch that was held back.
func (k *Kernel) ResumeScheduler(caller *TCB) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterTask(caller)
	if k.schedSuspended == 0 {
		k.fault("scheduler resume without matching suspend")
	}
	k.schedSuspended--
	if k.schedSuspended == 0 {
		k.maybePreempt(caller)
	}
}

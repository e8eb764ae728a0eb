package kernel

// ISR is one simulated interrupt frame. FromISR operations record on it
// whether they woke a task that outranks the one that was running, and the
// trampoline in RunISR acts on the accumulated flag after the handler
// returns; the kernel never context-switches from inside interrupt context.
type ISR struct {
	k     *Kernel
	name  string
	yield bool
}

// YieldRequested reports the accumulated context-switch hint.
func (i *ISR) YieldRequested() bool { return i.yield }

// Name returns the interrupt name given to RunISR.
func (i *ISR) Name() string { return i.name }

// RunISR simulates interrupt delivery: it waits for the interrupt mask
// (so critical sections delay it, exactly like hardware masking), runs the
// handler with a fresh interrupt frame, and finally requests a scheduler
// yield if the handler woke a higher-priority task. It reports whether a
// yield was performed.
//
// While the frame is open, task wakeups are queued rather than dispatched,
// guaranteeing the handler finishes before any task it woke resumes.
func (k *Kernel) RunISR(name string, handler func(*ISR)) bool {
	k.intrMu.Lock()
	defer k.intrMu.Unlock()

	k.mu.Lock()
	k.isrDepth++
	k.hooks.ISREnter(name)
	k.mu.Unlock()

	isr := &ISR{k: k, name: name}
	handler(isr)

	k.mu.Lock()
	k.isrDepth--
	if isr.yield {
		k.pendYield = true
	}
	// Dispatch any wakeup the handler queued while the frame was open.
	k.kick()
	k.hooks.ISRExit(name, isr.yield)
	k.mu.Unlock()

	return isr.yield
}

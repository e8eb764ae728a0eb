package rtos

import "keel/kernel"

// Interrupt is a simulated interrupt line. Attaching a handler yields the
// line; Trigger delivers one interrupt on it, running the handler through a
// trampoline that mints the ISRContext, waits out any open critical
// section, and performs the context switch the handler requested once it
// has returned.
type Interrupt struct {
	os   *RTOS
	id   uintptr
	name string
}

// AttachInterrupt registers handler on a new interrupt line.
func (os *RTOS) AttachInterrupt(name string, handler func(*ISRContext)) *Interrupt {
	id := os.isrs.register(handler)
	return &Interrupt{os: os, id: id, name: name}
}

// Name returns the line's name.
func (in *Interrupt) Name() string { return in.name }

// Trigger delivers one interrupt: the handler runs in interrupt context and
// any task it woke that outranks the interrupted one is dispatched when the
// handler returns. It reports whether such a context switch happened, and
// errDetached after Detach.
//
// Trigger must be called from a host goroutine, never from task code; a
// task triggering its own interrupt line would deadlock on the dispatch it
// causes.
func (in *Interrupt) Trigger() (yielded bool, err error) {
	handler, ok := in.os.isrs.lookup(in.id)
	if !ok {
		return false, errDetached
	}
	yielded = in.os.k.RunISR(in.name, func(isr *kernel.ISR) {
		handler(&ISRContext{os: in.os, isr: isr})
	})
	return yielded, nil
}

// Detach unregisters the handler. Subsequent Triggers fail and deliver
// nothing.
func (in *Interrupt) Detach() {
	in.os.isrs.unregister(in.id)
}

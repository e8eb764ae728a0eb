package kernel

// Hooks receives scheduler events for logging and tracing. Implementations
// are called with the kernel lock held and must be fast and non-blocking;
// they must not call back into the kernel.
type Hooks interface {
	TaskCreated(t TaskInfo)
	TaskDeleted(t TaskInfo)
	TaskReady(t TaskInfo)
	TaskBlocked(t TaskInfo)
	TaskSwitch(prev, next TaskInfo)
	Tick(tick uint64)
	ISREnter(name string)
	ISRExit(name string, yield bool)
}

// NopHooks discards all events.
type NopHooks struct{}

func (NopHooks) TaskCreated(TaskInfo)     {}
func (NopHooks) TaskDeleted(TaskInfo)     {}
func (NopHooks) TaskReady(TaskInfo)       {}
func (NopHooks) TaskBlocked(TaskInfo)     {}
func (NopHooks) TaskSwitch(_, _ TaskInfo) {}
func (NopHooks) Tick(uint64)              {}
func (NopHooks) ISREnter(string)          {}
func (NopHooks) ISRExit(_ string, _ bool) {}

// MultiHooks fans events out to several receivers.
type MultiHooks []Hooks

func (m MultiHooks) TaskCreated(t TaskInfo) {
	for _, h := range m {
		h.TaskCreated(t)
	}
}

func (m MultiHooks) TaskDeleted(t TaskInfo) {
	for _, h := range m {
		h.TaskDeleted(t)
	}
}

func (m MultiHooks) TaskReady(t TaskInfo) {
	for _, h := range m {
		h.TaskReady(t)
	}
}

func (m MultiHooks) TaskBlocked(t TaskInfo) {
	for _, h := range m {
		h.TaskBlocked(t)
	}
}

func (m MultiHooks) TaskSwitch(prev, next TaskInfo) {
	for _, h := range m {
		h.TaskSwitch(prev, next)
	}
}

func (m MultiHooks) Tick(tick uint64) {
	for _, h := range m {
		h.Tick(tick)
	}
}

func (m MultiHooks) ISREnter(name string) {
	for _, h := range m {
		h.ISREnter(name)
	}
}

func (m MultiHooks) ISRExit(name string, yield bool) {
	for _, h := range m {
		h.ISRExit(name, yield)
	}
}

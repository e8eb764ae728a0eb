package kernel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// FaultInfo contains details about a kernel fault: a violated invariant
// that a real kernel would trap in configASSERT.
type FaultInfo struct {
	Reason string
	Stack  []byte
}

var (
	faultActive atomic.Bool
	faultOnce   sync.Once

	faultHandler atomic.Value // func(FaultInfo)
)

// InFaultMode reports whether a kernel fault has been raised.
func InFaultMode() bool {
	return faultActive.Load()
}

// SetFaultHandler installs a process-wide fault handler.
//
// The handler is invoked at most once (on the first fault). It must not
// panic; the kernel panics itself right after the handler returns.
func SetFaultHandler(fn func(FaultInfo)) {
	faultHandler.Store(fn)
}

// fault raises a kernel fault: notify the handler once, then panic.
func (k *Kernel) fault(reason string) {
	faultOnce.Do(func() {
		faultActive.Store(true)
		info := FaultInfo{Reason: reason, Stack: captureStack()}
		if v := faultHandler.Load(); v != nil {
			if fn, ok := v.(func(FaultInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
	panic("kernel: " + reason)
}

func captureStack() []byte {
	buf := make([]byte, 16<<10)
	n := runtime.Stack(buf, false)
	return buf[:n]
}

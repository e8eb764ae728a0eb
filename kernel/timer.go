package kernel

import "keel/heap"

// AllocTimerControl charges one software-timer control block against the
// kernel heap. The timer machinery itself lives above the kernel; only the
// memory accounting passes through here so FreeHeapBytes stays honest.
func (k *Kernel) AllocTimerControl() (heap.Region, Status) {
	region, ok := k.arena.Alloc(timerOverhead, 0)
	if !ok {
		return heap.Region{}, StatusNoMemory
	}
	return region, StatusOK
}

// FreeTimerControl returns a timer control block to the kernel heap.
func (k *Kernel) FreeTimerControl(r heap.Region) {
	k.arena.Free(r)
}

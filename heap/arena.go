// Package heap implements the kernel heap bridge: a single fixed-size arena
// that serves every kernel allocation (task control blocks and stacks, queue
// storage, semaphores, timers).
//
// There is exactly one arena per kernel instance, so fragmentation and
// exhaustion can be reasoned about in one place. The arena is never touched
// from interrupt context; all allocation happens on create/delete paths.
package heap

import "sync"

// MinAlign is the smallest alignment Alloc will honor.
const MinAlign = 8

// blockOverhead is the bookkeeping cost charged to every live allocation.
const blockOverhead = 16

// Region describes one live allocation inside the arena.
//
// The zero Region is invalid; a valid Region always has Size > 0.
type Region struct {
	off  uint32
	size uint32
}

// Size returns the usable byte count of the region.
func (r Region) Size() int { return int(r.size) }

// Valid reports whether the region refers to a live allocation.
func (r Region) Valid() bool { return r.size != 0 }

type block struct {
	off  uint32
	size uint32
	next *block
}

// Arena is a first-fit allocator over a fixed slab of kernel memory.
//
// Free blocks are kept address-ordered and coalesced on free, mirroring the
// heap_4 scheme most kernel configurations select.
type Arena struct {
	mu sync.Mutex

	capacity  uint32
	freeList  *block
	freeBytes uint32

	allocs    uint64
	lowWater  uint32 // minimum freeBytes ever observed
	allocated map[uint32]uint32
}

// New creates an arena managing size bytes. Size is rounded down to MinAlign.
func New(size int) *Arena {
	if size < MinAlign {
		size = MinAlign
	}
	cap := uint32(size) &^ (MinAlign - 1)
	return &Arena{
		capacity:  cap,
		freeList:  &block{off: 0, size: cap},
		freeBytes: cap,
		lowWater:  cap,
		allocated: make(map[uint32]uint32),
	}
}

// Alloc reserves size bytes aligned to align, which must be a power of two
// (values below MinAlign are rounded up to it). It returns false when no free
// block can satisfy the request; the arena is left unchanged in that case.
func (a *Arena) Alloc(size, align int) (Region, bool) {
	if size <= 0 {
		return Region{}, false
	}
	if align < MinAlign {
		align = MinAlign
	}

	alignU := uint32(align)
	need := (uint32(size) + blockOverhead + alignU - 1) &^ (alignU - 1)

	a.mu.Lock()
	defer a.mu.Unlock()

	var prev *block
	for b := a.freeList; b != nil; prev, b = b, b.next {
		pad := uint32(0)
		if rem := b.off & (alignU - 1); rem != 0 {
			pad = alignU - rem
		}
		if b.size < pad+need {
			continue
		}

		off := b.off + pad
		take := need
		rest := b.size - pad - need
		if rest < MinAlign {
			// Absorb the remainder rather than leaving an unusable sliver.
			take += rest
			rest = 0
		}

		switch {
		case pad == 0 && rest == 0:
			if prev == nil {
				a.freeList = b.next
			} else {
				prev.next = b.next
			}
		case pad == 0:
			b.off += take
			b.size = rest
		case rest == 0:
			b.size = pad
		default:
			b.size = pad
			b.next = &block{off: off + take, size: rest, next: b.next}
		}

		a.freeBytes -= take
		if a.freeBytes < a.lowWater {
			a.lowWater = a.freeBytes
		}
		a.allocs++
		a.allocated[off] = take
		return Region{off: off, size: take}, true
	}
	return Region{}, false
}

// Free returns a region to the arena, coalescing with adjacent free blocks.
// Freeing an invalid or already-freed region panics: that is a double-free,
// which real kernel heaps treat as a fatal configASSERT.
func (a *Arena) Free(r Region) {
	if !r.Valid() {
		panic("heap: free of invalid region")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	size, ok := a.allocated[r.off]
	if !ok || size != r.size {
		panic("heap: free of unallocated region")
	}
	delete(a.allocated, r.off)
	a.freeBytes += r.size

	var prev *block
	b := a.freeList
	for b != nil && b.off < r.off {
		prev, b = b, b.next
	}

	nb := &block{off: r.off, size: r.size, next: b}
	if prev == nil {
		a.freeList = nb
	} else {
		prev.next = nb
	}

	// Coalesce forward, then backward.
	if nb.next != nil && nb.off+nb.size == nb.next.off {
		nb.size += nb.next.size
		nb.next = nb.next.next
	}
	if prev != nil && prev.off+prev.size == nb.off {
		prev.size += nb.size
		prev.next = nb.next
	}
}

// FreeBytes returns the bytes currently available for allocation.
func (a *Arena) FreeBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.freeBytes)
}

// MinEverFreeBytes returns the smallest free-byte count ever observed,
// the heap equivalent of a stack high-water mark.
func (a *Arena) MinEverFreeBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.lowWater)
}

// AllocCount returns the number of successful allocations performed.
func (a *Arena) AllocCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}

// Capacity returns the total managed byte count.
func (a *Arena) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.capacity)
}

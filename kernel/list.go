package kernel

// runqueue is a FIFO of ready tasks at one priority level.
type runqueue struct {
	items []*TCB
}

func (q *runqueue) pushBack(t *TCB) { q.items = append(q.items, t) }
func (q *runqueue) empty() bool     { return len(q.items) == 0 }

// pushFront re-admits a preempted task so it resumes before its peers.
func (q *runqueue) pushFront(t *TCB) {
	q.items = append(q.items, nil)
	copy(q.items[1:], q.items)
	q.items[0] = t
}

func (q *runqueue) pop() *TCB {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return t
}

func (q *runqueue) remove(t *TCB) bool {
	for i, it := range q.items {
		if it == t {
			copy(q.items[i:], q.items[i+1:])
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

// waitlist holds tasks blocked on one kernel object, ordered by effective
// priority (highest first) and FIFO within a priority level.
type waitlist struct {
	items []*TCB
}

func (wl *waitlist) empty() bool { return len(wl.items) == 0 }

func (wl *waitlist) insert(t *TCB) {
	i := len(wl.items)
	for j, it := range wl.items {
		if it.effPrio < t.effPrio {
			i = j
			break
		}
	}
	wl.items = append(wl.items, nil)
	copy(wl.items[i+1:], wl.items[i:])
	wl.items[i] = t
}

// popHighest removes and returns the highest-priority, longest-waiting task.
func (wl *waitlist) popHighest() *TCB {
	if len(wl.items) == 0 {
		return nil
	}
	t := wl.items[0]
	copy(wl.items, wl.items[1:])
	wl.items = wl.items[:len(wl.items)-1]
	return t
}

func (wl *waitlist) peekHighestPrio() (uint8, bool) {
	if len(wl.items) == 0 {
		return 0, false
	}
	return wl.items[0].effPrio, true
}

func (wl *waitlist) remove(t *TCB) bool {
	for i, it := range wl.items {
		if it == t {
			copy(wl.items[i:], wl.items[i+1:])
			wl.items = wl.items[:len(wl.items)-1]
			return true
		}
	}
	return false
}

// reposition re-sorts a waiter after its effective priority changed.
func (wl *waitlist) reposition(t *TCB) {
	if wl.remove(t) {
		wl.insert(t)
	}
}

package kernel

import (
	"fmt"
	"testing"
)

func TestNotifyWaitWakesOnSetBits(t *testing.T) {
	k := testKernel()
	var rec recorder
	tcb := mustCreate(t, k, "waiter", 2, func(self *TCB) {
		val, st := k.NotifyWait(self, 0, 0xffffffff, WaitForever)
		if st != StatusOK {
			rec.add("wrong status")
			return
		}
		rec.add(fmt.Sprintf("val %#x", val))
	})
	k.Start()
	mustIdle(t, k)

	if st := k.Notify(nil, tcb, NotifySetBits, 0x5); st != StatusOK {
		t.Fatalf("notify: expected ok, got %s", st)
	}
	mustIdle(t, k)
	expectEvents(t, &rec, []string{"val 0x5"})
}

func TestNotifySetValueRejectsWhenPending(t *testing.T) {
	k := testKernel()
	tcb := mustCreate(t, k, "t", 2, func(self *TCB) {
		// Park so notifications pend instead of being consumed.
		k.Delay(self, 100)
	})
	k.Start()
	mustIdle(t, k)

	if st := k.Notify(nil, tcb, NotifySetValue, 1); st != StatusOK {
		t.Fatalf("first notify: expected ok, got %s", st)
	}
	if st := k.Notify(nil, tcb, NotifySetValue, 2); st != StatusNotifyPending {
		t.Fatalf("second notify: expected notification pending, got %s", st)
	}
	// Overwrite always succeeds.
	if st := k.Notify(nil, tcb, NotifyOverwrite, 3); st != StatusOK {
		t.Fatalf("overwrite: expected ok, got %s", st)
	}
}

func TestNotifyTakeCountingSemantics(t *testing.T) {
	k := testKernel()
	var rec recorder
	tcb := mustCreate(t, k, "taker", 2, func(self *TCB) {
		for i := 0; i < 2; i++ {
			val := k.NotifyTake(self, false, WaitForever)
			rec.add(fmt.Sprintf("took %d", val))
		}
	})
	k.Start()
	mustIdle(t, k)

	// Deliver three increments inside one interrupt frame so the taker
	// cannot run between them: the first take observes 3 and leaves 2.
	k.RunISR("irq", func(isr *ISR) {
		for i := 0; i < 3; i++ {
			if st := k.NotifyFromISR(isr, tcb, NotifyIncrement, 0); st != StatusOK {
				rec.add("notify failed")
			}
		}
	})
	mustIdle(t, k)
	expectEvents(t, &rec, []string{"took 3", "took 2"})
}

func TestNotifyTakeTimeoutReturnsZero(t *testing.T) {
	k := testKernel()
	var rec recorder
	mustCreate(t, k, "taker", 2, func(self *TCB) {
		val := k.NotifyTake(self, true, 4)
		rec.add(fmt.Sprintf("took %d", val))
	})
	k.Start()
	mustIdle(t, k)
	for i := 0; i < 4; i++ {
		k.AdvanceTick()
	}
	mustIdle(t, k)
	expectEvents(t, &rec, []string{"took 0"})
}

func TestNotifyFromISRYieldHint(t *testing.T) {
	k := testKernel()
	var rec recorder
	tcb := mustCreate(t, k, "waiter", 5, func(self *TCB) {
		val, st := k.NotifyWait(self, 0, 0xffffffff, WaitForever)
		if st != StatusOK {
			rec.add("wrong status")
			return
		}
		rec.add(fmt.Sprintf("val %d", val))
	})
	k.Start()
	mustIdle(t, k)

	yield := k.RunISR("irq", func(isr *ISR) {
		if st := k.NotifyFromISR(isr, tcb, NotifyOverwrite, 42); st != StatusOK {
			rec.add("notify failed")
		}
	})
	if !yield {
		t.Fatal("expected ISR yield after waking a waiter")
	}
	mustIdle(t, k)
	expectEvents(t, &rec, []string{"val 42"})
}

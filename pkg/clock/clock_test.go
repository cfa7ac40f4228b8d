package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var order []string
	f.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	f.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	f.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	f.Advance(5 * time.Second)
	if got := len(order); got != 3 {
		t.Fatalf("fired %d timers", got)
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("wrong order: %v", order)
	}
}

func TestFakeAdvancePartial(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	fired := false
	f.AfterFunc(10*time.Second, func() { fired = true })

	f.Advance(9 * time.Second)
	if fired {
		t.Fatal("fired early")
	}
	if f.Pending() != 1 {
		t.Fatalf("pending = %d", f.Pending())
	}
	f.Advance(time.Second)
	if !fired {
		t.Fatal("did not fire at deadline")
	}
}

func TestFakeStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("first stop should report true")
	}
	if timer.Stop() {
		t.Fatal("second stop should report false")
	}
	f.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeCallbackMaySchedule(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			f.AfterFunc(time.Second, tick)
		}
	}
	f.AfterFunc(time.Second, tick)

	f.Advance(10 * time.Second)
	if count != 3 {
		t.Fatalf("chained callback ran %d times", count)
	}
	if f.Now() != time.Unix(0, 0).Add(10*time.Second) {
		t.Fatalf("clock at %v", f.Now())
	}
}

func TestFakeZeroDelayFiresOnTick(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	fired := false
	f.AfterFunc(0, func() { fired = true })
	f.Tick()
	if !fired {
		t.Fatal("zero-delay timer did not fire on tick")
	}
}

func TestSystemClockAfterFunc(t *testing.T) {
	c := System()
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

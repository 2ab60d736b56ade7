package loading

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

func TestHideWaitsForMinimumDuration(t *testing.T) {
	clock := newFakeClock()
	c := New(500*time.Millisecond, WithClock(clock))

	c.Show()
	clock.Advance(100 * time.Millisecond)
	c.Hide()
	if !c.IsLoading() {
		t.Fatal("indicator hidden before the minimum duration")
	}

	clock.Advance(399 * time.Millisecond)
	if !c.IsLoading() {
		t.Fatal("indicator hidden at 499ms")
	}

	clock.Advance(time.Millisecond)
	if c.IsLoading() {
		t.Fatal("indicator still visible at 500ms")
	}
}

func TestHideAfterMinimumIsImmediate(t *testing.T) {
	clock := newFakeClock()
	c := New(500*time.Millisecond, WithClock(clock))

	c.Show()
	clock.Advance(600 * time.Millisecond)
	c.Hide()
	if c.IsLoading() {
		t.Fatal("expected immediate hide")
	}
}

func TestShowCancelsDeferredHide(t *testing.T) {
	clock := newFakeClock()
	c := New(500*time.Millisecond, WithClock(clock))

	c.Show()
	clock.Advance(100 * time.Millisecond)
	c.Hide()
	clock.Advance(100 * time.Millisecond)
	c.Show()

	clock.Advance(time.Second)
	if !c.IsLoading() {
		t.Fatal("deferred hide fired after a later Show")
	}

	c.Hide()
	if c.IsLoading() {
		t.Fatal("expected hide once the second show is old enough")
	}
}

func TestHideWithoutShowIsNoOp(t *testing.T) {
	clock := newFakeClock()
	c := New(0, WithClock(clock))
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Hide()
	if c.IsLoading() {
		t.Fatal("Hide turned the indicator on")
	}
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification %v", v)
	default:
	}
	if c.MinDuration() != DefaultMinDuration {
		t.Fatalf("MinDuration() = %v", c.MinDuration())
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	clock := newFakeClock()
	c := New(500*time.Millisecond, WithClock(clock))
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Show()
	if v := <-ch; !v {
		t.Fatal("expected true after Show")
	}
	c.Hide()
	clock.Advance(500 * time.Millisecond)
	if v := <-ch; v {
		t.Fatal("expected false after deferred hide")
	}
}

func TestWithLoadingHidesOnPanic(t *testing.T) {
	clock := newFakeClock()
	c := New(500*time.Millisecond, WithClock(clock))

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic swallowed")
			}
		}()
		_ = c.WithLoading(func() error {
			clock.Advance(time.Second)
			panic("boom")
		})
	}()
	if c.IsLoading() {
		t.Fatal("indicator left visible after panic")
	}
}

func TestDoReturnsResultUnchanged(t *testing.T) {
	clock := newFakeClock()
	c := New(500*time.Millisecond, WithClock(clock))
	sentinel := errors.New("upstream failed")

	got, err := Do(c, func() (int, error) { return 42, sentinel })
	if got != 42 || !errors.Is(err, sentinel) {
		t.Fatalf("Do() = %d, %v", got, err)
	}
	if !c.IsLoading() {
		t.Fatal("fast operation should keep the indicator for the minimum duration")
	}
	clock.Advance(500 * time.Millisecond)
	if c.IsLoading() {
		t.Fatal("indicator still visible after the minimum duration")
	}
}

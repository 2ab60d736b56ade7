// Package loading coordinates a global busy indicator that, once shown, stays
// visible for a minimum duration so short operations do not flicker it.
package loading

import (
	"sync"
	"time"
)

// DefaultMinDuration is the minimum time the indicator stays visible.
const DefaultMinDuration = 500 * time.Millisecond

// Timer is the subset of *time.Timer the coordinator relies on.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so tests can drive deferred hides deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	mu          sync.Mutex
	clock       Clock
	minDuration time.Duration

	loading     bool
	startedAt   time.Time
	pendingHide Timer
	generation  uint64

	subscribers map[int]chan bool
	nextID      int
}

// New returns an idle coordinator. A non-positive minDuration selects DefaultMinDuration.
func New(minDuration time.Duration, opts ...Option) *Coordinator {
	if minDuration <= 0 {
		minDuration = DefaultMinDuration
	}
	c := &Coordinator{
		clock:       systemClock{},
		minDuration: minDuration,
		subscribers: make(map[int]chan bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MinDuration returns the configured minimum visible time.
func (c *Coordinator) MinDuration() time.Duration { return c.minDuration }

// Show makes the indicator visible and cancels any pending deferred hide.
func (c *Coordinator) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPendingLocked()
	c.generation++
	c.startedAt = c.clock.Now()
	if !c.loading {
		c.loading = true
		c.publishLocked(true)
	}
}

// Hide clears the indicator once MinDuration has elapsed since the last Show.
// Earlier calls schedule a deferred hide for the remainder. Hide while idle is a no-op.
func (c *Coordinator) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loading {
		return
	}
	c.stopPendingLocked()
	elapsed := c.clock.Now().Sub(c.startedAt)
	if elapsed >= c.minDuration {
		c.loading = false
		c.publishLocked(false)
		return
	}
	gen := c.generation
	c.pendingHide = c.clock.AfterFunc(c.minDuration-elapsed, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen || !c.loading {
			return
		}
		c.pendingHide = nil
		c.loading = false
		c.publishLocked(false)
	})
}

// IsLoading reports whether the indicator is visible.
func (c *Coordinator) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Subscribe returns a channel receiving every visibility change. Slow readers only
// observe the latest state. The returned func unsubscribes.
func (c *Coordinator) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

// WithLoading shows the indicator for the duration of fn. Hide runs on every exit
// path, including panics, and fn's error is returned unchanged.
func (c *Coordinator) WithLoading(fn func() error) error {
	c.Show()
	defer c.Hide()
	return fn()
}

// Do is the value-returning form of WithLoading.
func Do[T any](c *Coordinator, fn func() (T, error)) (T, error) {
	c.Show()
	defer c.Hide()
	return fn()
}

func (c *Coordinator) stopPendingLocked() {
	if c.pendingHide != nil {
		c.pendingHide.Stop()
		c.pendingHide = nil
	}
}

func (c *Coordinator) publishLocked(state bool) {
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

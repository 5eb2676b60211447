package clock

import (
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch       chan time.Time
	next     time.Time
	interval time.Duration
	stopped  bool
}

func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTicker{ch: make(chan time.Time, 1), next: c.now.Add(d), interval: d}
	c.tickers = append(c.tickers, ft)
	c.changed.Broadcast()
	return &Ticker{C: ft.ch, stop: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		ft.stopped = true
		c.changed.Broadcast()
	}}
}

// Advance moves the clock forward and fires every ticker whose deadline has
// passed, at most once per ticker per call.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		if t.stopped || t.next.After(c.now) {
			continue
		}
		select {
		case t.ch <- c.now:
		default:
		}
		for !t.next.After(c.now) {
			t.next = t.next.Add(t.interval)
		}
	}
}

// WaitForTickers blocks until at least n live tickers are registered. Use it
// before Advance to avoid racing a goroutine that is still starting up.
func (c *FakeClock) WaitForTickers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.liveTickersLocked() < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) liveTickersLocked() int {
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Package clock abstracts time so that flush intervals and the scaling
// resend loop can be driven deterministically in tests.
package clock

import "time"

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) *Ticker
}

// Ticker mirrors time.Ticker. C has capacity 1; ticks are dropped when the
// consumer falls behind.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

func (t *Ticker) Stop() { t.stop() }

type realClock struct{}

func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}

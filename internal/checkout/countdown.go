package checkout

import (
	"context"
	"time"
)

// Remaining is the whole seconds left until expiresAt, never negative.
func Remaining(expiresAt, now time.Time) time.Duration {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return left.Truncate(time.Second)
}

// Ticker produces a tick channel and a stop function.
type Ticker func(interval time.Duration) (<-chan time.Time, func())

func realTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// CountdownOption customises a countdown.
type CountdownOption func(*countdownConfig)

type countdownConfig struct {
	now    func() time.Time
	ticker Ticker
}

// WithClock overrides the wall clock used to compute the remaining time.
func WithClock(now func() time.Time) CountdownOption {
	return func(c *countdownConfig) { c.now = now }
}

// WithTicker overrides the once-per-second ticker.
func WithTicker(t Ticker) CountdownOption {
	return func(c *countdownConfig) { c.ticker = t }
}

// Countdown reports the time left on a PIX payment once per second and stops at
// zero. It never touches the persisted order.
type Countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartCountdown reports the current remaining time immediately, then on every
// tick. When the remaining time reaches zero it reports 0, calls onExpire and stops.
func StartCountdown(expiresAt time.Time, observe func(time.Duration), onExpire func(), opts ...CountdownOption) *Countdown {
	cfg := countdownConfig{now: time.Now, ticker: realTicker}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Countdown{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(c.done)
		ticks, stop := cfg.ticker(time.Second)
		defer stop()

		for {
			left := Remaining(expiresAt, cfg.now())
			if observe != nil {
				observe(left)
			}
			if left == 0 {
				if onExpire != nil {
					onExpire()
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticks:
			}
		}
	}()
	return c
}

// Close stops the countdown and waits for its goroutine. Safe to call twice.
func (c *Countdown) Close() {
	if c == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Done is closed once the countdown has stopped.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

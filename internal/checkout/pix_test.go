package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/acaifrutal/storefront-backend/pkg/enums"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/mercadopago"
)

func TestPixTrackerStateMachine(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewPixTracker(WithClock(func() time.Time { return now }), WithTicker(manualTicker(make(chan time.Time))))
	defer tracker.Close()

	if got := tracker.Status("u1").State; got != enums.PixStateNotRequested {
		t.Fatalf("initial state %s", got)
	}
	if err := tracker.Ready("u1", "o1", mercadopago.PixPayment{}); err == nil {
		t.Fatal("NotRequested -> Ready must be rejected")
	}
	if err := tracker.Begin("u1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tracker.Begin("u1"); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second begin should conflict, got %v", err)
	}
	tracker.Fail("u1")
	if got := tracker.Status("u1").State; got != enums.PixStateFailed {
		t.Fatalf("expected Failed, got %s", got)
	}
	if err := tracker.Begin("u1"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if err := tracker.Ready("u1", "o1", mercadopago.PixPayment{PaymentID: "mp_1", ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("ready: %v", err)
	}
	status := tracker.Status("u1")
	if status.State != enums.PixStateReady || status.Payment.PaymentID != "mp_1" {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := tracker.Begin("u1"); err != nil {
		t.Fatalf("new checkout after ready: %v", err)
	}
	if got := tracker.Status("u1"); got.State != enums.PixStateRequesting || got.Payment != nil {
		t.Fatalf("expected fresh Requesting status, got %+v", got)
	}
}

func TestPixTrackerExpiresAndNotifiesWatchers(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ticks := make(chan time.Time)
	tracker := NewPixTracker(WithClock(clock.Now), WithTicker(manualTicker(ticks)))
	defer tracker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan PixStatus, 16)
	go tracker.Watch(ctx, "u1", func(s PixStatus) { updates <- s })
	if first := <-updates; first.State != enums.PixStateNotRequested {
		t.Fatalf("unexpected first status %+v", first)
	}

	if err := tracker.Begin("u1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tracker.Ready("u1", "o1", mercadopago.PixPayment{PaymentID: "mp_1", ExpiresAt: clock.Now().Add(time.Second)}); err != nil {
		t.Fatalf("ready: %v", err)
	}
	clock.Advance(time.Second)
	ticks <- time.Time{}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-updates:
			if s.State == enums.PixStateExpired {
				if s.Seconds != 0 || s.OrderID != "o1" {
					t.Fatalf("unexpected expired status %+v", s)
				}
				if got := tracker.Status("u1").State; got != enums.PixStateExpired {
					t.Fatalf("tracker state %s", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for expiry")
		}
	}
}

func TestPixTrackerReadyReplacesCountdown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewPixTracker(WithClock(func() time.Time { return now }), WithTicker(manualTicker(make(chan time.Time))))
	defer tracker.Close()

	for i, id := range []string{"mp_1", "mp_2"} {
		if err := tracker.Begin("u1"); err != nil {
			t.Fatalf("begin %d: %v", i, err)
		}
		if err := tracker.Ready("u1", "o", mercadopago.PixPayment{PaymentID: id, ExpiresAt: now.Add(time.Minute)}); err != nil {
			t.Fatalf("ready %d: %v", i, err)
		}
	}
	status := tracker.Status("u1")
	if status.Payment.PaymentID != "mp_2" || status.State != enums.PixStateReady {
		t.Fatalf("unexpected status %+v", status)
	}
}

func (t *PixTracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func TestPixTrackerDropsIdleWatchers(t *testing.T) {
	tracker := NewPixTracker()
	defer tracker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	seen := make(chan PixStatus, 1)
	go func() {
		defer close(done)
		tracker.Watch(ctx, "anon-1", func(s PixStatus) { seen <- s })
	}()
	<-seen
	if got := tracker.size(); got != 1 {
		t.Fatalf("expected one entry while watching, got %d", got)
	}
	cancel()
	<-done
	if got := tracker.size(); got != 0 {
		t.Fatalf("expected idle entry to be dropped, got %d", got)
	}
}

func TestPixTrackerDropsExpiredPaymentsWithoutWatchers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewPixTracker(WithClock(func() time.Time { return now }), WithTicker(manualTicker(make(chan time.Time))))
	defer tracker.Close()

	if err := tracker.Begin("u1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tracker.Ready("u1", "o1", mercadopago.PixPayment{PaymentID: "mp_1", ExpiresAt: now}); err != nil {
		t.Fatalf("ready: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for tracker.size() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expired entry was kept: %+v", tracker.Status("u1"))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := tracker.Status("u1").State; got != enums.PixStateNotRequested {
		t.Fatalf("unexpected state after eviction %s", got)
	}
	if err := tracker.Begin("u1"); err != nil {
		t.Fatalf("begin after eviction: %v", err)
	}
}

func TestPixTrackerKeepsLivePaymentsWithoutWatchers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewPixTracker(WithClock(func() time.Time { return now }), WithTicker(manualTicker(make(chan time.Time))))
	defer tracker.Close()

	if err := tracker.Begin("u1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tracker.Ready("u1", "o1", mercadopago.PixPayment{PaymentID: "mp_1", ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if err := tracker.Begin("u2"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	tracker.Fail("u2")
	tracker.Fail("anon-1")
	if got := tracker.size(); got != 2 {
		t.Fatalf("expected ready and failed entries to stay, got %d", got)
	}
}

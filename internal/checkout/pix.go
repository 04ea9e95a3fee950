package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acaifrutal/storefront-backend/pkg/enums"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/mercadopago"
)

// PixStatus is the checkout-screen view of an identity's latest PIX payment.
type PixStatus struct {
	State     enums.PixState          `json:"state"`
	OrderID   string                  `json:"orderId,omitempty"`
	Payment   *mercadopago.PixPayment `json:"payment,omitempty"`
	Remaining time.Duration           `json:"-"`
	Seconds   int64                   `json:"remainingSeconds"`
}

type pixEntry struct {
	status    PixStatus
	countdown *Countdown
	gen       uint64
	listeners map[int]chan PixStatus
}

// PixTracker keeps the PIX state machine and countdown per identity.
type PixTracker struct {
	mu      sync.Mutex
	entries map[string]*pixEntry
	nextID  int
	opts    []CountdownOption
	closed  bool
}

// NewPixTracker builds an empty tracker. Countdown options apply to every countdown it starts.
func NewPixTracker(opts ...CountdownOption) *PixTracker {
	return &PixTracker{entries: map[string]*pixEntry{}, opts: opts}
}

func (t *PixTracker) entry(identityID string) *pixEntry {
	e, ok := t.entries[identityID]
	if !ok {
		e = &pixEntry{
			status:    PixStatus{State: enums.PixStateNotRequested},
			listeners: map[int]chan PixStatus{},
		}
		t.entries[identityID] = e
	}
	return e
}

// releaseLocked drops an idle entry: no listeners, no running countdown, and a
// state that reads the same as a missing entry or a finished payment.
func (t *PixTracker) releaseLocked(identityID string, e *pixEntry) {
	if len(e.listeners) > 0 || e.countdown != nil {
		return
	}
	if e.status.State != enums.PixStateNotRequested && e.status.State != enums.PixStateExpired {
		return
	}
	if t.entries[identityID] == e {
		delete(t.entries, identityID)
	}
}

// Status returns the identity's current PIX status.
func (t *PixTracker) Status(identityID string) PixStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[identityID]; ok {
		return e.status
	}
	return PixStatus{State: enums.PixStateNotRequested}
}

// Begin moves the identity to Requesting. A finished payment (Ready or Expired)
// is discarded first so a new checkout can start.
func (t *PixTracker) Begin(identityID string) error {
	t.mu.Lock()
	e := t.entry(identityID)
	var stale *Countdown
	if e.status.State == enums.PixStateReady || e.status.State == enums.PixStateExpired {
		stale = e.countdown
		e.countdown = nil
		e.gen++
		e.status = PixStatus{State: enums.PixStateNotRequested}
	}
	err := t.moveLocked(e, PixStatus{State: enums.PixStateRequesting})
	t.mu.Unlock()

	stale.Close()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a pix payment is already being requested")
	}
	return nil
}

// Fail marks the request as failed. The customer may retry.
func (t *PixTracker) Fail(identityID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(identityID)
	_ = t.moveLocked(e, PixStatus{State: enums.PixStateFailed})
	t.releaseLocked(identityID, e)
}

// Ready records the created payment and starts its countdown, cancelling any previous one.
func (t *PixTracker) Ready(identityID, orderID string, payment mercadopago.PixPayment) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("pix tracker closed")
	}
	e := t.entry(identityID)
	p := payment
	next := PixStatus{State: enums.PixStateReady, OrderID: orderID, Payment: &p}
	if err := t.moveLocked(e, next); err != nil {
		t.releaseLocked(identityID, e)
		t.mu.Unlock()
		return err
	}
	previous := e.countdown
	e.gen++
	gen := e.gen
	e.countdown = nil
	t.mu.Unlock()

	previous.Close()

	cd := StartCountdown(payment.ExpiresAt,
		func(left time.Duration) { t.tick(identityID, gen, left) },
		func() { t.expire(identityID, gen) },
		t.opts...,
	)

	t.mu.Lock()
	if e.gen == gen && !t.closed && e.status.State == enums.PixStateReady {
		e.countdown = cd
		cd = nil
	}
	t.mu.Unlock()
	cd.Close()
	return nil
}

func (t *PixTracker) tick(identityID string, gen uint64, left time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[identityID]
	if !ok || e.gen != gen || e.status.State != enums.PixStateReady {
		return
	}
	e.status.Remaining = left
	e.status.Seconds = int64(left / time.Second)
	t.notifyLocked(e)
}

func (t *PixTracker) expire(identityID string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[identityID]
	if !ok || e.gen != gen {
		return
	}
	next := e.status
	next.State = enums.PixStateExpired
	next.Remaining, next.Seconds = 0, 0
	_ = t.moveLocked(e, next)
	if finished := e.countdown; finished != nil {
		e.countdown = nil
		finished.cancel()
	}
	t.releaseLocked(identityID, e)
}

// moveLocked applies a state machine transition and notifies listeners.
func (t *PixTracker) moveLocked(e *pixEntry, next PixStatus) error {
	if !e.status.State.CanTransitionTo(next.State) {
		return fmt.Errorf("pix state %s cannot move to %s", e.status.State, next.State)
	}
	e.status = next
	t.notifyLocked(e)
	return nil
}

func (t *PixTracker) notifyLocked(e *pixEntry) {
	for _, ch := range e.listeners {
		select {
		case ch <- e.status:
		default:
		}
	}
}

// Watch calls onChange with the current status and then on every tick or state
// change until ctx is done. Slow observers miss intermediate ticks.
func (t *PixTracker) Watch(ctx context.Context, identityID string, onChange func(PixStatus)) {
	ch := make(chan PixStatus, 4)
	t.mu.Lock()
	e := t.entry(identityID)
	id := t.nextID
	t.nextID++
	e.listeners[id] = ch
	current := e.status
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(e.listeners, id)
		t.releaseLocked(identityID, e)
		t.mu.Unlock()
	}()

	onChange(current)
	for {
		select {
		case <-ctx.Done():
			return
		case status := <-ch:
			onChange(status)
		}
	}
}

// Close cancels every running countdown.
func (t *PixTracker) Close() {
	t.mu.Lock()
	t.closed = true
	running := make([]*Countdown, 0, len(t.entries))
	for _, e := range t.entries {
		if e.countdown != nil {
			running = append(running, e.countdown)
			e.countdown = nil
		}
		e.gen++
	}
	t.mu.Unlock()
	for _, cd := range running {
		cd.Close()
	}
}

package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/internal/catalog"
	"github.com/acaifrutal/storefront-backend/internal/docstore"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/internal/profile"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/mercadopago"
	"github.com/acaifrutal/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type stubProfiles struct {
	log   *callLog
	err   error
	input profile.Input
}

func (s *stubProfiles) Save(_ context.Context, _ string, input profile.Input) (profile.Profile, error) {
	s.log.add("profile")
	s.input = input
	return profile.Profile{}, s.err
}

type stubOrders struct {
	log   *callLog
	err   error
	order orders.Order
}

func (s *stubOrders) Create(_ context.Context, order orders.Order) (orders.Order, error) {
	s.log.add("order")
	if s.err != nil {
		return orders.Order{}, s.err
	}
	order.ID = "order-1"
	s.order = order
	return order, nil
}

type stubCarts struct {
	log *callLog
	err error
}

func (s *stubCarts) Clear(context.Context, string) error {
	s.log.add("cart")
	return s.err
}

type stubGateway struct {
	log     *callLog
	err     error
	request mercadopago.PixRequest
	payment mercadopago.PixPayment
}

func (s *stubGateway) CreatePixPayment(_ context.Context, req mercadopago.PixRequest) (mercadopago.PixPayment, error) {
	s.log.add("gateway")
	s.request = req
	if s.err != nil {
		return mercadopago.PixPayment{}, s.err
	}
	return s.payment, nil
}

var fixedNow = time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)

// manualTicker never ticks unless the test sends on it.
func manualTicker(ch chan time.Time) Ticker {
	return func(time.Duration) (<-chan time.Time, func()) { return ch, func() {} }
}

type sequencerFixture struct {
	log      *callLog
	profiles *stubProfiles
	orders   *stubOrders
	carts    *stubCarts
	gateway  *stubGateway
	seq      *Sequencer
}

func newSequencerFixture(t *testing.T) *sequencerFixture {
	t.Helper()
	log := &callLog{}
	f := &sequencerFixture{
		log:      log,
		profiles: &stubProfiles{log: log},
		orders:   &stubOrders{log: log},
		carts:    &stubCarts{log: log},
		gateway: &stubGateway{log: log, payment: mercadopago.PixPayment{
			PaymentID:    "mp_123",
			QRCodeBase64: "iVBORw0KGgo=",
			QRCodeText:   "00020126...",
			ExpiresAt:    fixedNow.Add(30 * time.Minute),
		}},
	}
	tracker := NewPixTracker(WithClock(func() time.Time { return fixedNow }), WithTicker(manualTicker(make(chan time.Time))))
	t.Cleanup(tracker.Close)
	seq, err := NewSequencer(f.profiles, f.orders, f.carts, f.gateway, logger.Nop(), WithPixTracker(tracker))
	if err != nil {
		t.Fatalf("new sequencer: %v", err)
	}
	seq.now = func() time.Time { return fixedNow }
	seq.suffix = func() string { return "abcd1234" }
	f.seq = seq
	return f
}

func validDraft(method enums.PaymentMethod) Draft {
	return Draft{
		Items: []cart.Item{{
			ProductID: "p1", Name: "Açaí 500ml", Quantity: 1, UnitPrice: decimal.NewFromInt(15),
		}},
		TotalPrice:    decimal.NewFromInt(15),
		DeliveryFee:   decimal.Zero,
		ContactNumber: "(11) 99999-0000",
		PaymentMethod: method,
		DeliveryAddress: types.Address{
			CEP: "01310-100", Street: "Av. Paulista", Number: "1000", Neighborhood: "Bela Vista",
		},
	}
}

var customer = identity.Identity{ID: "user-1", Email: "cliente@example.com"}

func TestProcessPaymentPixHappyPath(t *testing.T) {
	f := newSequencerFixture(t)

	res, err := f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodPix), customer)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := []string{"profile", "gateway", "order", "cart"}
	if got := f.log.list(); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] || got[3] != want[3] {
		t.Fatalf("unexpected call order %v", got)
	}
	if res.Order.Status != enums.OrderStatusAwaitingPixPayment || res.Order.PixPaymentID != "mp_123" {
		t.Fatalf("unexpected order %+v", res.Order)
	}
	if res.Pix == nil || res.PixState != enums.PixStateReady || res.Advance {
		t.Fatalf("unexpected result %+v", res)
	}
	if !f.gateway.request.Amount.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("unexpected amount %s", f.gateway.request.Amount)
	}
	if f.gateway.request.ExternalReference != "11999990000-1748790000000-abcd1234" {
		t.Fatalf("unexpected external reference %q", f.gateway.request.ExternalReference)
	}
	if f.profiles.input.Phone != "(11) 99999-0000" || f.profiles.input.Address.CEP != "01310100" {
		t.Fatalf("unexpected profile input %+v", f.profiles.input)
	}
	status := f.seq.Pix().Status("user-1")
	if status.OrderID != "order-1" || status.State != enums.PixStateReady {
		t.Fatalf("unexpected tracker status %+v", status)
	}
}

func TestProcessPaymentDirectMethodAdvances(t *testing.T) {
	f := newSequencerFixture(t)
	draft := validDraft(enums.PaymentMethodCash)
	draft.DeliveryFee = decimal.RequireFromString("5.5")

	res, err := f.seq.ProcessPayment(context.Background(), draft, customer)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !res.Advance || res.Pix != nil || res.Order.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Order.Total.Equal(decimal.RequireFromString("20.5")) {
		t.Fatalf("expected total with delivery fee, got %s", res.Order.Total)
	}
	for _, call := range f.log.list() {
		if call == "gateway" {
			t.Fatal("gateway must not be called for cash")
		}
	}
}

func TestProcessPaymentValidationCallsNothing(t *testing.T) {
	cases := map[string]func(*Draft){
		"missing contact": func(d *Draft) { d.ContactNumber = " " },
		"missing cep":     func(d *Draft) { d.DeliveryAddress.CEP = "" },
		"missing street":  func(d *Draft) { d.DeliveryAddress.Street = "" },
		"empty cart":      func(d *Draft) { d.Items = nil },
		"unknown method":  func(d *Draft) { d.PaymentMethod = "boleto" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newSequencerFixture(t)
			draft := validDraft(enums.PaymentMethodPix)
			mutate(&draft)

			_, err := f.seq.ProcessPayment(context.Background(), draft, customer)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if calls := f.log.list(); len(calls) != 0 {
				t.Fatalf("expected no collaborator calls, got %v", calls)
			}
		})
	}
}

func TestProcessPaymentGatewayFailureKeepsCart(t *testing.T) {
	f := newSequencerFixture(t)
	f.gateway.err = pkgerrors.New(pkgerrors.CodePaymentGateway, "qr code missing")

	res, err := f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodPix), customer)
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentGateway) || !pkgerrors.IsRetryable(err) {
		t.Fatalf("expected retryable gateway error, got %v", err)
	}
	if res.PixState != enums.PixStateFailed {
		t.Fatalf("expected Failed state, got %s", res.PixState)
	}
	for _, call := range f.log.list() {
		if call == "order" || call == "cart" {
			t.Fatalf("unexpected %s call after gateway failure", call)
		}
	}

	f.gateway.err = nil
	res, err = f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodPix), customer)
	if err != nil || res.PixState != enums.PixStateReady {
		t.Fatalf("retry should succeed, got %+v err=%v", res, err)
	}
}

func TestProcessPaymentPlainGatewayErrorIsWrapped(t *testing.T) {
	f := newSequencerFixture(t)
	f.gateway.err = errors.New("connection reset")

	_, err := f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodPix), customer)
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestProcessPaymentProfileFailureAbortsEarly(t *testing.T) {
	f := newSequencerFixture(t)
	f.profiles.err = errors.New("permission denied")

	_, err := f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodPix), customer)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if details, _ := pkgerrors.As(err).Details().(map[string]any); details["step"] != "profile" {
		t.Fatalf("expected profile step, got %v", pkgerrors.As(err).Details())
	}
	if calls := f.log.list(); len(calls) != 1 || calls[0] != "profile" {
		t.Fatalf("expected only the profile write, got %v", calls)
	}
}

func TestProcessPaymentOrderFailureKeepsCart(t *testing.T) {
	f := newSequencerFixture(t)
	f.orders.err = errors.New("write denied")

	_, err := f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodCash), customer)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	for _, call := range f.log.list() {
		if call == "cart" {
			t.Fatal("cart must not be cleared when the order write fails")
		}
	}
}

func TestProcessPaymentCartClearFailureIsNotFatal(t *testing.T) {
	f := newSequencerFixture(t)
	f.carts.err = errors.New("write denied")

	res, err := f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodCard), customer)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.Order.ID == "" {
		t.Fatal("expected committed order")
	}
}

func TestProcessPaymentWithoutGateway(t *testing.T) {
	f := newSequencerFixture(t)
	f.seq.gateway = nil

	_, err := f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodPix), customer)
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestProcessPaymentAnonymousPayerEmail(t *testing.T) {
	f := newSequencerFixture(t)
	anon := identity.Identity{ID: "anon-1", Anonymous: true}

	if _, err := f.seq.ProcessPayment(context.Background(), validDraft(enums.PaymentMethodPix), anon); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.gateway.request.PayerEmail != "cliente.11999990000@acai.app" {
		t.Fatalf("unexpected payer email %q", f.gateway.request.PayerEmail)
	}
}

type stubCatalog struct{}

func (stubCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	return &catalog.Product{ID: id, Name: "Açaí 500ml", Price: decimal.NewFromInt(15), Type: "acai"}, nil
}

func (stubCatalog) ListToppings(context.Context, bool) []catalog.Topping { return nil }

func TestCheckoutEndToEndPix(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	const scope = "acai-test"

	carts, err := cart.NewService(cart.NewRepository(store, scope), stubCatalog{}, logger.Nop())
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	profiles, err := profile.NewService(store, scope)
	if err != nil {
		t.Fatalf("profile service: %v", err)
	}
	orderSvc, err := orders.NewService(orders.NewRepository(store, scope), nil, logger.Nop())
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	live, err := carts.Add(ctx, "user-1", cart.AddInput{ProductID: "p1", Quantity: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	gateway := &stubGateway{log: &callLog{}, payment: mercadopago.PixPayment{
		PaymentID: "mp_123", QRCodeBase64: "qr", QRCodeText: "pix", ExpiresAt: fixedNow.Add(time.Minute),
	}}
	tracker := NewPixTracker(WithClock(func() time.Time { return fixedNow }), WithTicker(manualTicker(make(chan time.Time))))
	t.Cleanup(tracker.Close)
	seq, err := NewSequencer(profiles, orderSvc, carts, gateway, logger.Nop(), WithPixTracker(tracker))
	if err != nil {
		t.Fatalf("sequencer: %v", err)
	}

	draft, _ := Resync(validDraft(enums.PaymentMethodPix), live)
	res, err := seq.ProcessPayment(ctx, draft, customer)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !res.Order.Total.Equal(decimal.NewFromInt(15)) || res.Order.Status != enums.OrderStatusAwaitingPixPayment {
		t.Fatalf("unexpected order %+v", res.Order)
	}

	history, err := orderSvc.ListForUser(ctx, "user-1")
	if err != nil || len(history) != 1 || history[0].PixPaymentID != "mp_123" {
		t.Fatalf("unexpected history %+v err=%v", history, err)
	}
	if !carts.Get(ctx, "user-1").IsEmpty() {
		t.Fatal("expected cart cleared")
	}
	saved, err := profiles.Get(ctx, "user-1")
	if err != nil || saved.Phone != "(11) 99999-0000" {
		t.Fatalf("unexpected profile %+v err=%v", saved, err)
	}
}

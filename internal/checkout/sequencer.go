package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/internal/profile"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/mercadopago"
	"github.com/acaifrutal/storefront-backend/pkg/metrics"
	"github.com/google/uuid"
)

// ProfileWriter upserts the customer's contact details.
type ProfileWriter interface {
	Save(ctx context.Context, userID string, input profile.Input) (profile.Profile, error)
}

// OrderWriter persists placed orders.
type OrderWriter interface {
	Create(ctx context.Context, order orders.Order) (orders.Order, error)
}

// CartClearer empties the cart after an order is committed.
type CartClearer interface {
	Clear(ctx context.Context, ownerID string) error
}

// PaymentGateway creates PIX charges.
type PaymentGateway interface {
	CreatePixPayment(ctx context.Context, req mercadopago.PixRequest) (mercadopago.PixPayment, error)
}

// Result is the outcome of a successful checkout.
type Result struct {
	Order    orders.Order            `json:"order"`
	Pix      *mercadopago.PixPayment `json:"pix,omitempty"`
	Advance  bool                    `json:"advance"`
	PixState enums.PixState          `json:"pixState"`
}

// Sequencer runs checkout in a fixed order: profile write, payment call, order
// write, cart clear.
type Sequencer struct {
	profiles  ProfileWriter
	orders    OrderWriter
	carts     CartClearer
	gateway   PaymentGateway
	pix       *PixTracker
	metrics   *metrics.StorefrontMetrics
	logg      *logger.Logger
	now       func() time.Time
	pixExpiry time.Duration
	suffix    func() string
}

// SequencerOption customises a Sequencer.
type SequencerOption func(*Sequencer)

// WithPixTracker shares a tracker with the live countdown endpoint.
func WithPixTracker(t *PixTracker) SequencerOption {
	return func(s *Sequencer) { s.pix = t }
}

// WithCheckoutMetrics records checkout outcomes.
func WithCheckoutMetrics(m *metrics.StorefrontMetrics) SequencerOption {
	return func(s *Sequencer) { s.metrics = m }
}

// WithPixExpiry sets how long a PIX charge stays payable.
func WithPixExpiry(d time.Duration) SequencerOption {
	return func(s *Sequencer) { s.pixExpiry = d }
}

// NewSequencer wires the checkout collaborators. gateway may be nil when PIX is
// not configured; PIX checkouts then fail with a gateway error.
func NewSequencer(profiles ProfileWriter, orderWriter OrderWriter, carts CartClearer, gateway PaymentGateway, logg *logger.Logger, opts ...SequencerOption) (*Sequencer, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile writer required")
	}
	if orderWriter == nil {
		return nil, fmt.Errorf("order writer required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Sequencer{
		profiles:  profiles,
		orders:    orderWriter,
		carts:     carts,
		gateway:   gateway,
		logg:      logg,
		now:       time.Now,
		pixExpiry: 30 * time.Minute,
		suffix:    func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pix == nil {
		s.pix = NewPixTracker()
	}
	return s, nil
}

// Pix exposes the tracker holding each identity's PIX state.
func (s *Sequencer) Pix() *PixTracker {
	if s == nil {
		return nil
	}
	return s.pix
}

// ProcessPayment validates the draft, saves the profile, charges PIX when needed,
// writes the order and clears the cart.
func (s *Sequencer) ProcessPayment(ctx context.Context, draft Draft, who identity.Identity) (Result, error) {
	method := string(draft.PaymentMethod)
	if strings.TrimSpace(who.ID) == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	if err := Validate(draft); err != nil {
		s.metrics.Checkout(method, metrics.OutcomeValidation)
		return Result{}, err
	}
	draft.DeliveryAddress = draft.DeliveryAddress.Normalized()
	ctx = s.logg.WithFields(ctx, map[string]any{"user_id": who.ID, "payment_method": method})

	if _, err := s.profiles.Save(ctx, who.ID, profile.Input{
		Name:    draft.CustomerName,
		Email:   who.Email,
		Phone:   strings.TrimSpace(draft.ContactNumber),
		Address: draft.DeliveryAddress,
	}); err != nil {
		s.metrics.Checkout(method, metrics.OutcomeDependencyError)
		return Result{}, asDependency(err, stepProfile, "profile could not be saved")
	}

	order := orders.Order{
		OwnerID:         who.ID,
		UserEmail:       who.Email,
		Items:           draft.Items,
		Total:           draft.OrderTotal(),
		DeliveryAddress: draft.DeliveryAddress,
		ContactNumber:   strings.TrimSpace(draft.ContactNumber),
		PaymentMethod:   draft.PaymentMethod,
		Observations:    strings.TrimSpace(draft.Observations),
		DeliveryFee:     draft.DeliveryFee,
	}

	if draft.PaymentMethod.RequiresGateway() {
		return s.processPix(ctx, order, who)
	}

	order.Status = enums.OrderStatusPending
	saved, err := s.orders.Create(ctx, order)
	if err != nil {
		s.metrics.Checkout(method, metrics.OutcomeDependencyError)
		return Result{}, asDependency(err, stepOrder, "order could not be saved")
	}
	s.clearCart(ctx, who.ID)
	s.metrics.Checkout(method, metrics.OutcomeSuccess)
	return Result{Order: saved, Advance: true, PixState: enums.PixStateNotRequested}, nil
}

func (s *Sequencer) processPix(ctx context.Context, order orders.Order, who identity.Identity) (Result, error) {
	method := string(order.PaymentMethod)
	if err := s.pix.Begin(who.ID); err != nil {
		return Result{}, err
	}
	if s.gateway == nil {
		s.pix.Fail(who.ID)
		s.metrics.Checkout(method, metrics.OutcomeGatewayError)
		return Result{PixState: enums.PixStateFailed}, pkgerrors.New(pkgerrors.CodePaymentGateway, "pix payments are not configured")
	}

	started := s.now()
	payment, err := s.gateway.CreatePixPayment(ctx, mercadopago.PixRequest{
		Amount:            order.Total,
		Description:       fmt.Sprintf("Pedido Açaí - %d itens", len(order.Items)),
		PayerEmail:        payerEmail(who, order.ContactNumber),
		ExternalReference: s.externalReference(order.ContactNumber),
		ExpiresIn:         s.pixExpiry,
	})
	s.metrics.ObservePixCreate(s.now().Sub(started))
	if err != nil {
		s.pix.Fail(who.ID)
		s.metrics.Checkout(method, metrics.OutcomeGatewayError)
		s.logg.Error(ctx, "checkout.pix_create_failed", err)
		if !pkgerrors.HasCode(err, pkgerrors.CodePaymentGateway) {
			err = pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "pix payment could not be created")
		}
		return Result{PixState: enums.PixStateFailed}, err
	}

	order.Status = enums.OrderStatusAwaitingPixPayment
	order.PixPaymentID = payment.PaymentID
	order.PixQRText = payment.QRCodeText
	order.PixQRImageBase64 = payment.QRCodeBase64
	if !payment.ExpiresAt.IsZero() {
		expires := payment.ExpiresAt.UTC()
		order.PixExpiresAt = &expires
	}

	saved, err := s.orders.Create(ctx, order)
	if err != nil {
		s.pix.Fail(who.ID)
		s.metrics.Checkout(method, metrics.OutcomeDependencyError)
		s.logg.Error(s.logg.WithField(ctx, "pix_payment_id", payment.PaymentID), "checkout.pix_order_write_failed", err)
		return Result{PixState: enums.PixStateFailed}, asDependency(err, stepOrder, "order could not be saved")
	}
	s.clearCart(ctx, who.ID)

	state := enums.PixStateReady
	if err := s.pix.Ready(who.ID, saved.ID, payment); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.pix_countdown_not_started")
	} else {
		state = s.pix.Status(who.ID).State
	}
	s.metrics.Checkout(method, metrics.OutcomeSuccess)
	return Result{Order: saved, Pix: &payment, PixState: state}, nil
}

func (s *Sequencer) clearCart(ctx context.Context, ownerID string) {
	if err := s.carts.Clear(ctx, ownerID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.cart_clear_failed")
	}
}

// externalReference is unique per attempt: "{contact}-{unixMillis}-{suffix}".
func (s *Sequencer) externalReference(contact string) string {
	return fmt.Sprintf("%s-%d-%s", digitsOnly(contact), s.now().UnixMilli(), s.suffix())
}

// payerEmail falls back to a placeholder built from the contact number; the
// gateway requires an email even for anonymous customers.
func payerEmail(who identity.Identity, contact string) string {
	if email := strings.TrimSpace(who.Email); email != "" {
		return email
	}
	return "cliente." + digitsOnly(contact) + "@acai.app"
}

func digitsOnly(value string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
}

const (
	stepProfile = "profile"
	stepOrder   = "order"
)

// asDependency tags a collaborator failure with the checkout step it broke.
// Typed errors keep their code.
func asDependency(err error, step, msg string) error {
	code := pkgerrors.CodeDependency
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	return pkgerrors.Wrap(code, err, msg).WithDetails(map[string]any{"step": step})
}

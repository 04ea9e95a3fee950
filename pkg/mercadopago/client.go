package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/shopspring/decimal"

	"github.com/acaifrutal/storefront-backend/pkg/config"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

const (
	defaultTimeout     = 10 * time.Second
	pixMethodID        = "pix"
	defaultDescription = "Pagamento via Pix"
)

var (
	errAccessTokenRequired = errors.New("mercadopago access token is required")
	errLoggerRequired      = errors.New("mercadopago logger is required")
)

// Client wraps the MercadoPago payments SDK with logging and typed gateway errors.
type Client struct {
	payments   payment.Client
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client handed to the SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func withPayments(p payment.Client) Option {
	return func(c *Client) {
		c.payments = p
	}
}

// NewClient validates the credentials and builds the SDK payments client.
func NewClient(ctx context.Context, cfg config.MercadoPagoConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logg,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.payments == nil {
		sdkCfg, err := mpconfig.New(token, mpconfig.WithHTTPClient(c.httpClient))
		if err != nil {
			return nil, fmt.Errorf("mercadopago config: %w", err)
		}
		c.payments = payment.NewClient(sdkCfg)
	}

	logg.Info(ctx, "mercadopago client initialized")
	return c, nil
}

// PixRequest is the payment intent sent to the gateway.
type PixRequest struct {
	Amount            decimal.Decimal
	Description       string
	PayerEmail        string
	ExternalReference string
	// ExpiresIn bounds the QR code lifetime; zero leaves the gateway default.
	ExpiresIn time.Duration
}

// PixPayment is the QR payload returned for a created PIX payment.
type PixPayment struct {
	PaymentID    string    `json:"paymentId"`
	QRCodeBase64 string    `json:"qrCodeBase64"`
	QRCodeText   string    `json:"qrCodeText"`
	ExpiresAt    time.Time `json:"expirationTime"`
}

// PaymentStatus is the gateway view of an existing payment.
type PaymentStatus struct {
	PaymentID         string
	Status            string
	StatusDetail      string
	ExternalReference string
}

const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusAuthorized = "authorized"
	StatusInProcess  = "in_process"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusExpired    = "expired"
)

// Settled reports whether the payment was paid.
func (s PaymentStatus) Settled() bool {
	return s.Status == StatusApproved
}

// Dead reports whether the payment can no longer be paid.
func (s PaymentStatus) Dead() bool {
	switch s.Status {
	case StatusRejected, StatusCancelled, StatusRefunded, StatusExpired:
		return true
	}
	return false
}

// CreatePixPayment creates a PIX payment and returns its QR payload.
func (c *Client) CreatePixPayment(ctx context.Context, req PixRequest) (PixPayment, error) {
	if c == nil || c.payments == nil {
		return PixPayment{}, pkgerrors.New(pkgerrors.CodePaymentGateway, "payment gateway not configured")
	}
	if !req.Amount.IsPositive() {
		return PixPayment{}, pkgerrors.New(pkgerrors.CodeValidation, "pix amount must be positive")
	}
	if strings.TrimSpace(req.PayerEmail) == "" {
		return PixPayment{}, pkgerrors.New(pkgerrors.CodeValidation, "payer email is required")
	}

	sdkReq := payment.Request{
		TransactionAmount: req.Amount.Round(2).InexactFloat64(),
		Description:       req.Description,
		PaymentMethodID:   pixMethodID,
		ExternalReference: req.ExternalReference,
		Payer:             &payment.PayerRequest{Email: req.PayerEmail},
	}
	if sdkReq.Description == "" {
		sdkReq.Description = defaultDescription
	}
	var requestedExpiry time.Time
	if req.ExpiresIn > 0 {
		requestedExpiry = c.now().Add(req.ExpiresIn).UTC()
		sdkReq.DateOfExpiration = &requestedExpiry
	}

	c.log(ctx, "request", "create_pix_payment", map[string]any{
		"external_reference": req.ExternalReference,
		"amount":             req.Amount.StringFixed(2),
	})
	resp, err := c.payments.Create(ctx, sdkReq)
	if err != nil {
		c.logError(ctx, "create_pix_payment", err)
		return PixPayment{}, mapGatewayError(err, "create pix payment")
	}
	if resp == nil {
		return PixPayment{}, pkgerrors.New(pkgerrors.CodePaymentGateway, "create pix payment returned no payment")
	}

	qr := resp.PointOfInteraction.TransactionData
	if qr.QRCodeBase64 == "" {
		return PixPayment{}, pkgerrors.New(pkgerrors.CodePaymentGateway, "pix payment response has no qr code")
	}

	expiresAt := resp.DateOfExpiration
	if expiresAt.IsZero() {
		if requestedExpiry.IsZero() {
			return PixPayment{}, pkgerrors.New(pkgerrors.CodePaymentGateway, "pix payment response has no expiration")
		}
		expiresAt = requestedExpiry
	}

	out := PixPayment{
		PaymentID:    strconv.Itoa(resp.ID),
		QRCodeBase64: qr.QRCodeBase64,
		QRCodeText:   qr.QRCode,
		ExpiresAt:    expiresAt.UTC(),
	}
	c.log(ctx, "response", "create_pix_payment", map[string]any{
		"payment_id": out.PaymentID,
		"status":     resp.Status,
	})
	return out, nil
}

// GetPayment fetches the current status of a payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (PaymentStatus, error) {
	if c == nil || c.payments == nil {
		return PaymentStatus{}, pkgerrors.New(pkgerrors.CodePaymentGateway, "payment gateway not configured")
	}
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return PaymentStatus{}, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	id, err := strconv.Atoi(trimmed)
	if err != nil {
		return PaymentStatus{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment id must be numeric")
	}

	resp, err := c.payments.Get(ctx, id)
	if err != nil {
		c.logError(ctx, "get_payment", err)
		return PaymentStatus{}, mapGatewayError(err, "get payment")
	}
	if resp == nil {
		return PaymentStatus{}, pkgerrors.New(pkgerrors.CodePaymentGateway, "get payment returned no payment")
	}
	return PaymentStatus{
		PaymentID:         strconv.Itoa(resp.ID),
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
	}, nil
}

func mapGatewayError(err error, action string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, action+" timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, action+" request failed")
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	c.logger.Info(c.logger.WithFields(ctx, logFields), "mercadopago "+phase)
}

func (c *Client) logError(ctx context.Context, op string, err error) {
	ctx = c.logger.WithFields(ctx, map[string]any{"operation": op, "phase": "error"})
	c.logger.Error(ctx, "mercadopago "+op, err)
}

package mercadopago

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/shopspring/decimal"

	"github.com/acaifrutal/storefront-backend/pkg/config"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

// fakePayments implements the SDK calls the wrapper uses; anything else panics.
type fakePayments struct {
	payment.Client
	created  []payment.Request
	fetched  []int
	response *payment.Response
	err      error
}

func (f *fakePayments) Create(_ context.Context, req payment.Request) (*payment.Response, error) {
	f.created = append(f.created, req)
	return f.response, f.err
}

func (f *fakePayments) Get(_ context.Context, id int) (*payment.Response, error) {
	f.fetched = append(f.fetched, id)
	return f.response, f.err
}

func newTestClient(t *testing.T, fake *fakePayments) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.MercadoPagoConfig{AccessToken: "token-1"}, logger.Nop(), withPayments(fake))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func pixResponse(id int, expires time.Time) *payment.Response {
	resp := &payment.Response{ID: id, Status: StatusPending, DateOfExpiration: expires}
	resp.PointOfInteraction.TransactionData.QRCodeBase64 = "aW1n"
	resp.PointOfInteraction.TransactionData.QRCode = "000201"
	return resp
}

func TestClientCreatePixPayment(t *testing.T) {
	expires := time.Date(2025, 6, 1, 12, 30, 0, 0, time.FixedZone("BRT", -3*60*60))
	fake := &fakePayments{response: pixResponse(123, expires)}
	client := newTestClient(t, fake)
	client.now = func() time.Time { return time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC) }

	got, err := client.CreatePixPayment(context.Background(), PixRequest{
		Amount:            decimal.RequireFromString("15"),
		Description:       "Pedido Açaí",
		PayerEmail:        "cliente@example.com",
		ExternalReference: "11999999999-1717254000000",
		ExpiresIn:         30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("create pix payment: %v", err)
	}

	if len(fake.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(fake.created))
	}
	req := fake.created[0]
	if req.PaymentMethodID != "pix" {
		t.Fatalf("unexpected payment method %q", req.PaymentMethodID)
	}
	if req.TransactionAmount != 15.0 {
		t.Fatalf("unexpected amount %v", req.TransactionAmount)
	}
	if req.ExternalReference != "11999999999-1717254000000" || req.Description != "Pedido Açaí" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Payer == nil || req.Payer.Email != "cliente@example.com" {
		t.Fatalf("unexpected payer %+v", req.Payer)
	}
	if req.DateOfExpiration == nil || !req.DateOfExpiration.Equal(time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiration %v", req.DateOfExpiration)
	}

	if got.PaymentID != "123" || got.QRCodeBase64 != "aW1n" || got.QRCodeText != "000201" {
		t.Fatalf("unexpected payment %+v", got)
	}
	if !got.ExpiresAt.Equal(time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)) || got.ExpiresAt.Location() != time.UTC {
		t.Fatalf("unexpected expires at %v", got.ExpiresAt)
	}
}

func TestClientCreatePixPaymentDefaultsDescription(t *testing.T) {
	fake := &fakePayments{response: pixResponse(9, time.Now().Add(time.Hour))}
	client := newTestClient(t, fake)

	if _, err := client.CreatePixPayment(context.Background(), PixRequest{Amount: decimal.NewFromInt(5), PayerEmail: "a@b.com"}); err != nil {
		t.Fatalf("create pix payment: %v", err)
	}
	if fake.created[0].Description != "Pagamento via Pix" {
		t.Fatalf("unexpected description %q", fake.created[0].Description)
	}
	if fake.created[0].DateOfExpiration != nil {
		t.Fatal("expected gateway default expiration")
	}
}

func TestClientCreatePixPaymentGatewayError(t *testing.T) {
	fake := &fakePayments{err: errors.New("400 Bad Request: invalid payer")}
	client := newTestClient(t, fake)

	_, err := client.CreatePixPayment(context.Background(), PixRequest{
		Amount:     decimal.NewFromInt(10),
		PayerEmail: "a@b.com",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentGateway) {
		t.Fatalf("expected payment gateway error, got %v", err)
	}
	if !strings.Contains(err.Error(), "create pix payment") || !strings.Contains(pkgerrors.As(err).Unwrap().Error(), "invalid payer") {
		t.Fatalf("unexpected error text %v", err)
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatal("expected gateway error to be retryable")
	}
}

func TestClientCreatePixPaymentMissingQRCode(t *testing.T) {
	fake := &fakePayments{response: &payment.Response{ID: 1, DateOfExpiration: time.Now()}}
	client := newTestClient(t, fake)

	_, err := client.CreatePixPayment(context.Background(), PixRequest{Amount: decimal.NewFromInt(1), PayerEmail: "a@b.com"})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentGateway) {
		t.Fatalf("expected payment gateway error, got %v", err)
	}
}

func TestClientCreatePixPaymentValidation(t *testing.T) {
	fake := &fakePayments{}
	client := newTestClient(t, fake)

	_, err := client.CreatePixPayment(context.Background(), PixRequest{Amount: decimal.Zero, PayerEmail: "a@b.com"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = client.CreatePixPayment(context.Background(), PixRequest{Amount: decimal.NewFromInt(3), PayerEmail: " "})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fake.created) != 0 {
		t.Fatal("sdk should not be called for invalid requests")
	}
}

func TestClientGetPayment(t *testing.T) {
	fake := &fakePayments{response: &payment.Response{
		ID:                987,
		Status:            StatusApproved,
		StatusDetail:      "accredited",
		ExternalReference: "ref-1",
	}}
	client := newTestClient(t, fake)

	status, err := client.GetPayment(context.Background(), " 987 ")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if len(fake.fetched) != 1 || fake.fetched[0] != 987 {
		t.Fatalf("unexpected fetches %v", fake.fetched)
	}
	if status.PaymentID != "987" || !status.Settled() || status.Dead() || status.ExternalReference != "ref-1" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestClientGetPaymentRejectsBadIDs(t *testing.T) {
	fake := &fakePayments{}
	client := newTestClient(t, fake)

	for _, id := range []string{"", "mp_1"} {
		if _, err := client.GetPayment(context.Background(), id); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %q, got %v", id, err)
		}
	}
	if len(fake.fetched) != 0 {
		t.Fatal("sdk should not be called for invalid ids")
	}
}

func TestNilClientIsNotConfigured(t *testing.T) {
	var client *Client
	_, err := client.CreatePixPayment(context.Background(), PixRequest{Amount: decimal.NewFromInt(1), PayerEmail: "a@b.com"})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentGateway) {
		t.Fatalf("expected payment gateway error, got %v", err)
	}
}

func TestPaymentStatusDead(t *testing.T) {
	for _, s := range []string{StatusRejected, StatusCancelled, StatusExpired, StatusRefunded} {
		if !(PaymentStatus{Status: s}).Dead() {
			t.Fatalf("expected %s to be dead", s)
		}
	}
	if (PaymentStatus{Status: StatusPending}).Dead() {
		t.Fatal("pending should not be dead")
	}
}

func TestNewClientValidatesInputs(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.MercadoPagoConfig{AccessToken: "  "}, logger.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := NewClient(ctx, config.MercadoPagoConfig{AccessToken: "token"}, nil); err == nil {
		t.Fatal("expected error for missing logger")
	}
	client, err := NewClient(ctx, config.MercadoPagoConfig{AccessToken: "token", Timeout: 3 * time.Second}, logger.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.payments == nil || client.httpClient.Timeout != 3*time.Second {
		t.Fatalf("unexpected client %+v", client)
	}
}

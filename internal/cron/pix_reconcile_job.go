package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/mercadopago"
	"github.com/acaifrutal/storefront-backend/pkg/metrics"
	"go.uber.org/multierr"
)

const (
	pixReconcileJobName = "pix-reconcile"
	pixReconcileActor   = "system:pix-reconcile"
	defaultPixGrace     = 5 * time.Minute
	defaultPixExpiry    = 30 * time.Minute
)

const (
	outcomeConfirmed = "confirmed"
	outcomeCancelled = "cancelled"
	outcomeWaiting   = "waiting"
	outcomeFailed    = "failed"
)

type awaitingOrderStore interface {
	ListAll(ctx context.Context, status enums.OrderStatus) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id string, status enums.OrderStatus, actor string) (orders.Order, error)
}

type paymentLookup interface {
	GetPayment(ctx context.Context, paymentID string) (mercadopago.PaymentStatus, error)
}

// PixReconcileJobParams configure the PIX settlement poller.
type PixReconcileJobParams struct {
	Logger  *logger.Logger
	Orders  awaitingOrderStore
	Gateway paymentLookup
	Metrics *metrics.CronJobMetrics
	// Grace is added to the PIX expiration before an unpaid order is cancelled.
	Grace time.Duration
	// Expiry bounds orders that never received a gateway payment id.
	Expiry time.Duration
}

// NewPixReconcileJob builds the job that settles or cancels orders awaiting PIX payment.
// Gateway may be nil; only expiry based cancellation runs then.
func NewPixReconcileJob(params PixReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultPixGrace
	}
	expiry := params.Expiry
	if expiry <= 0 {
		expiry = defaultPixExpiry
	}
	return &pixReconcileJob{
		logg:    params.Logger,
		orders:  params.Orders,
		gateway: params.Gateway,
		metrics: params.Metrics,
		grace:   grace,
		expiry:  expiry,
		now:     time.Now,
	}, nil
}

type pixReconcileJob struct {
	logg    *logger.Logger
	orders  awaitingOrderStore
	gateway paymentLookup
	metrics *metrics.CronJobMetrics
	grace   time.Duration
	expiry  time.Duration
	now     func() time.Time
}

func (j *pixReconcileJob) Name() string { return pixReconcileJobName }

func (j *pixReconcileJob) Run(ctx context.Context) error {
	awaiting, err := j.orders.ListAll(ctx, enums.OrderStatusAwaitingPixPayment)
	if err != nil {
		return fmt.Errorf("list orders awaiting pix: %w", err)
	}
	counts := map[string]int{}
	var errs error
	for _, order := range awaiting {
		outcome, err := j.reconcile(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
		counts[outcome]++
	}
	for outcome, n := range counts {
		if j.metrics != nil {
			j.metrics.AddProcessed(pixReconcileJobName, outcome, n)
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":   len(awaiting),
		"confirmed": counts[outcomeConfirmed],
		"cancelled": counts[outcomeCancelled],
		"failed":    counts[outcomeFailed],
	})
	j.logg.Info(logCtx, "pix reconcile loop complete")
	return errs
}

func (j *pixReconcileJob) reconcile(ctx context.Context, order orders.Order) (string, error) {
	if order.PixPaymentID != "" && j.gateway != nil {
		payment, err := j.gateway.GetPayment(ctx, order.PixPaymentID)
		if err != nil {
			return outcomeFailed, err
		}
		switch {
		case payment.Settled():
			return j.move(ctx, order, enums.OrderStatusConfirmed, outcomeConfirmed)
		case payment.Dead():
			return j.move(ctx, order, enums.OrderStatusCancelled, outcomeCancelled)
		}
	}
	if j.expired(order) {
		return j.move(ctx, order, enums.OrderStatusCancelled, outcomeCancelled)
	}
	return outcomeWaiting, nil
}

func (j *pixReconcileJob) expired(order orders.Order) bool {
	deadline := order.CreatedAt.Add(j.expiry)
	if order.PixExpiresAt != nil && !order.PixExpiresAt.IsZero() {
		deadline = *order.PixExpiresAt
	}
	return j.now().After(deadline.Add(j.grace))
}

func (j *pixReconcileJob) move(ctx context.Context, order orders.Order, status enums.OrderStatus, outcome string) (string, error) {
	if _, err := j.orders.UpdateStatus(ctx, order.ID, status, pixReconcileActor); err != nil {
		return outcomeFailed, err
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID,
		"status":   status.String(),
	})
	j.logg.Info(logCtx, "pix order reconciled")
	return outcome, nil
}

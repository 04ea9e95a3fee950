package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/docstore"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/outbox"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Service defines order placement, history and admin status management.
type Service interface {
	Create(ctx context.Context, order Order) (Order, error)
	Get(ctx context.Context, ownerID, id string) (Order, error)
	GetAny(ctx context.Context, id string) (Order, error)
	ListForUser(ctx context.Context, ownerID string) ([]Order, error)
	ListAll(ctx context.Context, status enums.OrderStatus) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status enums.OrderStatus, actor string) (Order, error)
	Watch(ctx context.Context, ownerID string, onChange func([]Order)) error
}

// EventPublisher sends order events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, event outbox.Event) (string, error)
}

// StatusChangedEvent is the payload of order.status_changed.
type StatusChangedEvent struct {
	OrderID string            `json:"orderId"`
	UserID  string            `json:"userId"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

type service struct {
	repo   *Repository
	events EventPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the order service. events may be nil when publishing is disabled.
func NewService(repo *Repository, events EventPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, events: events, logg: logg, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, order Order) (Order, error) {
	if strings.TrimSpace(order.OwnerID) == "" {
		return Order{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "order owner is required")
	}
	if len(order.Items) == 0 {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	if !order.PaymentMethod.IsValid() {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	now := s.now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order = order.normalized()

	saved, err := s.repo.Insert(ctx, order)
	if err != nil {
		return Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order could not be saved")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": saved.ID, "status": string(saved.Status)})
	s.logg.Info(ctx, "orders.created")
	s.publish(ctx, outbox.Event{
		Type:        EventOrderCreated,
		AggregateID: saved.ID,
		Actor:       &outbox.ActorRef{UserID: saved.OwnerID, Role: "customer"},
		Data:        saved,
	})
	return saved, nil
}

func (s *service) Get(ctx context.Context, ownerID, id string) (Order, error) {
	if strings.TrimSpace(id) == "" {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.GetForOwner(ctx, ownerID, id)
	return order, mapReadErr(err)
}

func (s *service) GetAny(ctx context.Context, id string) (Order, error) {
	if strings.TrimSpace(id) == "" {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.Get(ctx, id)
	return order, mapReadErr(err)
}

func (s *service) ListForUser(ctx context.Context, ownerID string) ([]Order, error) {
	orders, err := s.repo.ListForOwner(ctx, ownerID)
	return s.listResult(ctx, orders, err)
}

func (s *service) ListAll(ctx context.Context, status enums.OrderStatus) ([]Order, error) {
	if status != "" && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	orders, err := s.repo.ListAll(ctx, status)
	return s.listResult(ctx, orders, err)
}

// listResult keeps the orders that decoded when some documents are malformed.
func (s *service) listResult(ctx context.Context, orders []Order, err error) ([]Order, error) {
	if err == nil {
		return orders, nil
	}
	if orders == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "orders could not be loaded")
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "orders.decode_failed")
	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, id string, status enums.OrderStatus, actor string) (Order, error) {
	if !status.IsValid() {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	order, err := s.GetAny(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if order.Status == status {
		return order, nil
	}
	if !order.Status.CanTransitionTo(status) {
		return Order{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order status cannot change").
			WithDetails(map[string]any{"from": order.Status, "to": status})
	}

	now := s.now().UTC()
	if err := s.repo.SetStatus(ctx, order, status, now); err != nil {
		return Order{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order status could not be saved")
	}
	previous := order.Status
	order.Status = status
	order.UpdatedAt = now

	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": order.ID, "from": string(previous), "to": string(status)})
	s.logg.Info(ctx, "orders.status_changed")
	role := "admin"
	if strings.HasPrefix(actor, "system:") {
		role = "system"
	}
	s.publish(ctx, outbox.Event{
		Type:        EventOrderStatusChanged,
		AggregateID: order.ID,
		Actor:       &outbox.ActorRef{UserID: actor, Role: role},
		Data:        StatusChangedEvent{OrderID: order.ID, UserID: order.OwnerID, From: previous, To: status},
	})
	return order, nil
}

// Watch calls onChange with the owner's history on subscribe and on every change,
// until ctx is cancelled or the stream closes.
func (s *service) Watch(ctx context.Context, ownerID string, onChange func([]Order)) error {
	stream, err := s.repo.SubscribeOwner(ctx, ownerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to orders")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-stream:
			if !ok {
				return nil
			}
			if snap.Err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", snap.Err.Error()), "orders.watch_failed")
				continue
			}
			orders, err := decodeOrders(snap.Docs)
			if err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "orders.decode_failed")
			}
			onChange(orders)
		}
	}
}

func (s *service) publish(ctx context.Context, event outbox.Event) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Publish(ctx, event); err != nil {
		s.logg.Error(ctx, "orders.event_publish_failed", err)
	}
}

func mapReadErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order could not be loaded")
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/docstore"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	"go.uber.org/multierr"
)

const (
	globalCollection = "all_orders"
	userCollection   = "orders"

	fieldStatus    = "status"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// ErrPartialWrite reports that the global copy was written but the owner's copy was not.
var ErrPartialWrite = errors.New("order written to global collection only")

// Repository keeps the global and per-user copies of every order.
type Repository struct {
	store docstore.Store
	scope string
}

// NewRepository binds order persistence to a document store scope.
func NewRepository(store docstore.Store, scope string) *Repository {
	return &Repository{store: store, scope: scope}
}

func (r *Repository) globalPath() string {
	return docstore.PublicCollection(r.scope, globalCollection)
}

func (r *Repository) userPath(ownerID string) string {
	return docstore.UserCollection(r.scope, ownerID, userCollection)
}

// Insert adds the order to the global collection, then writes the owner's copy under
// the generated id. When the owner's copy fails the global copy is removed.
func (r *Repository) Insert(ctx context.Context, order Order) (Order, error) {
	fields, err := docstore.Encode(order)
	if err != nil {
		return Order{}, err
	}
	delete(fields, "id")

	id, err := r.store.Add(ctx, r.globalPath(), fields)
	if err != nil {
		return Order{}, fmt.Errorf("insert global order: %w", err)
	}
	if err := r.store.Set(ctx, docstore.Child(r.userPath(order.OwnerID), id), fields); err != nil {
		werr := fmt.Errorf("%w: %w", ErrPartialWrite, err)
		if derr := r.store.Delete(context.WithoutCancel(ctx), docstore.Child(r.globalPath(), id)); derr != nil {
			werr = multierr.Append(werr, fmt.Errorf("remove global order %s: %w", id, derr))
		}
		return Order{}, werr
	}
	order.ID = id
	return order, nil
}

// Get loads an order from the global collection.
func (r *Repository) Get(ctx context.Context, id string) (Order, error) {
	doc, err := r.store.Get(ctx, docstore.Child(r.globalPath(), id))
	if err != nil {
		return Order{}, err
	}
	return decodeOrder(doc)
}

// GetForOwner loads an order from the owner's history.
func (r *Repository) GetForOwner(ctx context.Context, ownerID, id string) (Order, error) {
	doc, err := r.store.Get(ctx, docstore.Child(r.userPath(ownerID), id))
	if err != nil {
		return Order{}, err
	}
	return decodeOrder(doc)
}

// ListForOwner returns the owner's orders, newest first.
func (r *Repository) ListForOwner(ctx context.Context, ownerID string) ([]Order, error) {
	docs, err := r.store.List(ctx, r.userPath(ownerID), historyQuery())
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs)
}

// ListAll returns every order, newest first, optionally narrowed to one status.
func (r *Repository) ListAll(ctx context.Context, status enums.OrderStatus) ([]Order, error) {
	docs, err := r.store.List(ctx, r.globalPath(), statusQuery(status))
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs)
}

// SetStatus writes the status on both copies. The global copy is written first.
func (r *Repository) SetStatus(ctx context.Context, order Order, status enums.OrderStatus, at time.Time) error {
	fields := map[string]any{
		fieldStatus:    string(status),
		fieldUpdatedAt: at.UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.Merge(ctx, docstore.Child(r.globalPath(), order.ID), fields); err != nil {
		return fmt.Errorf("update global order: %w", err)
	}
	if order.OwnerID == "" {
		return nil
	}
	if err := r.store.Merge(ctx, docstore.Child(r.userPath(order.OwnerID), order.ID), fields); err != nil {
		return fmt.Errorf("update user order: %w", err)
	}
	return nil
}

// SubscribeOwner streams the owner's order history on every change.
func (r *Repository) SubscribeOwner(ctx context.Context, ownerID string) (<-chan docstore.Snapshot, error) {
	return r.store.SubscribeCollection(ctx, r.userPath(ownerID), historyQuery())
}

// SubscribeAll streams the global order list on every change.
func (r *Repository) SubscribeAll(ctx context.Context, status enums.OrderStatus) (<-chan docstore.Snapshot, error) {
	return r.store.SubscribeCollection(ctx, r.globalPath(), statusQuery(status))
}

func historyQuery() docstore.Query {
	return docstore.Query{OrderBy: fieldCreatedAt, Descending: true}
}

func statusQuery(status enums.OrderStatus) docstore.Query {
	q := historyQuery()
	if status != "" {
		q.WhereField = fieldStatus
		q.WhereValue = string(status)
	}
	return q
}

func decodeOrder(doc docstore.Document) (Order, error) {
	var order Order
	if err := doc.Decode(&order); err != nil {
		return Order{}, err
	}
	order.ID = doc.ID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = doc.CreatedAt
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = doc.UpdatedAt
	}
	return order.normalized(), nil
}

func decodeOrders(docs []docstore.Document) ([]Order, error) {
	out := make([]Order, 0, len(docs))
	var errs error
	for _, doc := range docs {
		order, err := decodeOrder(doc)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, order)
	}
	return out, errs
}

package cart

import (
	"context"
	"errors"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/docstore"
)

const (
	cartCollection = "cart"
	cartDocID      = "currentCart"

	fieldItems      = "items"
	fieldConsumedBy = "consumedBy"
	fieldUpdatedAt  = "updatedAt"
)

// Repository persists carts at users/{owner}/cart/currentCart.
type Repository struct {
	store docstore.Store
	scope string
	now   func() time.Time
}

// NewRepository binds cart persistence to a document store scope.
func NewRepository(store docstore.Store, scope string) *Repository {
	return &Repository{store: store, scope: scope, now: time.Now}
}

// WithScope returns a repository for another tenant scope sharing the same store.
func (r *Repository) WithScope(scope string) *Repository {
	if scope == "" || scope == r.scope {
		return r
	}
	return &Repository{store: r.store, scope: scope, now: r.now}
}

// Path returns the cart document path for owner.
func (r *Repository) Path(ownerID string) string {
	return docstore.UserDoc(r.scope, ownerID, cartCollection, cartDocID)
}

type cartDocument struct {
	Items      []Item    `json:"items"`
	ConsumedBy string    `json:"consumedBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Load returns the owner's cart. A missing document, or one already consumed by a
// reconciliation, loads as an empty cart.
func (r *Repository) Load(ctx context.Context, ownerID string) (Cart, error) {
	doc, err := r.store.Get(ctx, r.Path(ownerID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Cart{OwnerID: ownerID, Items: []Item{}}, nil
		}
		return Cart{}, err
	}
	return decodeCart(ownerID, doc)
}

func decodeCart(ownerID string, doc docstore.Document) (Cart, error) {
	var stored cartDocument
	if err := doc.Decode(&stored); err != nil {
		return Cart{}, err
	}
	out := Cart{OwnerID: ownerID, Items: []Item{}, ConsumedBy: stored.ConsumedBy, UpdatedAt: stored.UpdatedAt}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = doc.UpdatedAt
	}
	if stored.ConsumedBy != "" {
		return out, nil
	}
	for _, item := range stored.Items {
		out.Items = append(out.Items, item.Normalized())
	}
	return out, nil
}

// Save merge-writes the items, stamps updatedAt and clears any consumed marker.
func (r *Repository) Save(ctx context.Context, ownerID string, items []Item) (Cart, error) {
	encoded, err := encodeItems(items)
	if err != nil {
		return Cart{}, err
	}
	now := r.now().UTC()
	if err := r.store.Merge(ctx, r.Path(ownerID), map[string]any{
		fieldItems:      encoded,
		fieldConsumedBy: nil,
		fieldUpdatedAt:  now,
	}); err != nil {
		return Cart{}, err
	}
	normalized := make([]Item, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, item.Normalized())
	}
	return Cart{OwnerID: ownerID, Items: normalized, UpdatedAt: now}, nil
}

// MergeItems replaces only the items field of the owner's cart document.
func (r *Repository) MergeItems(ctx context.Context, ownerID string, items []Item) error {
	encoded, err := encodeItems(items)
	if err != nil {
		return err
	}
	return r.store.Merge(ctx, r.Path(ownerID), map[string]any{fieldItems: encoded})
}

// MarkConsumed records that the cart was merged into consumer so it is never merged twice.
func (r *Repository) MarkConsumed(ctx context.Context, ownerID, consumer string) error {
	return r.store.Merge(ctx, r.Path(ownerID), map[string]any{fieldConsumedBy: consumer})
}

// Delete removes the owner's cart document.
func (r *Repository) Delete(ctx context.Context, ownerID string) error {
	return r.store.Delete(ctx, r.Path(ownerID))
}

// Subscribe streams the owner's cart on every change.
func (r *Repository) Subscribe(ctx context.Context, ownerID string) (<-chan docstore.Snapshot, error) {
	return r.store.SubscribeDoc(ctx, r.Path(ownerID))
}

func encodeItems(items []Item) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		fields, err := docstore.Encode(item.Normalized())
		if err != nil {
			return nil, err
		}
		out = append(out, fields)
	}
	return out, nil
}

package catalog

import (
	"context"
	"fmt"

	"github.com/acaifrutal/storefront-backend/internal/docstore"
	"go.uber.org/multierr"
)

const (
	productsCollection = "products"
	toppingsCollection = "toppings"
)

// Repository persists catalog documents under the public tree of a scope.
type Repository struct {
	store docstore.Store
	scope string
}

// NewRepository binds the catalog to a document store scope.
func NewRepository(store docstore.Store, scope string) *Repository {
	return &Repository{store: store, scope: scope}
}

func (r *Repository) productsPath() string {
	return docstore.PublicCollection(r.scope, productsCollection)
}

func (r *Repository) toppingsPath() string {
	return docstore.PublicCollection(r.scope, toppingsCollection)
}

// ListProducts returns every product ordered by name.
func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	docs, err := r.store.List(ctx, r.productsPath(), docstore.Query{OrderBy: "name"})
	if err != nil {
		return nil, err
	}
	return decodeProducts(docs)
}

// GetProduct loads one product; docstore.ErrNotFound when absent.
func (r *Repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	doc, err := r.store.Get(ctx, docstore.PublicDoc(r.scope, productsCollection, id))
	if err != nil {
		return nil, err
	}
	product, err := decodeProduct(doc)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListToppings returns every topping ordered by name.
func (r *Repository) ListToppings(ctx context.Context) ([]Topping, error) {
	docs, err := r.store.List(ctx, r.toppingsPath(), docstore.Query{OrderBy: "name"})
	if err != nil {
		return nil, err
	}
	return decodeToppings(docs)
}

// SaveProduct replaces the product document.
func (r *Repository) SaveProduct(ctx context.Context, product Product) error {
	fields, err := docstore.Encode(product)
	if err != nil {
		return err
	}
	delete(fields, "id")
	return r.store.Set(ctx, docstore.PublicDoc(r.scope, productsCollection, product.ID), fields)
}

// SaveTopping replaces the topping document.
func (r *Repository) SaveTopping(ctx context.Context, topping Topping) error {
	fields, err := docstore.Encode(topping)
	if err != nil {
		return err
	}
	delete(fields, "id")
	return r.store.Set(ctx, docstore.PublicDoc(r.scope, toppingsCollection, topping.ID), fields)
}

// SubscribeProducts streams the product collection.
func (r *Repository) SubscribeProducts(ctx context.Context) (<-chan docstore.Snapshot, error) {
	return r.store.SubscribeCollection(ctx, r.productsPath(), docstore.Query{OrderBy: "name"})
}

// SubscribeToppings streams the topping collection.
func (r *Repository) SubscribeToppings(ctx context.Context) (<-chan docstore.Snapshot, error) {
	return r.store.SubscribeCollection(ctx, r.toppingsPath(), docstore.Query{OrderBy: "name"})
}

func decodeProduct(doc docstore.Document) (Product, error) {
	var product Product
	if err := doc.Decode(&product); err != nil {
		return Product{}, err
	}
	product.ID = doc.ID
	if product.DefaultIngredients == nil {
		product.DefaultIngredients = []string{}
	}
	return product, nil
}

// decodeProducts skips documents that do not decode instead of failing the whole listing.
func decodeProducts(docs []docstore.Document) ([]Product, error) {
	out := make([]Product, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		product, err := decodeProduct(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, product)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("decode products: %w", multierr.Combine(errs...))
	}
	return out, nil
}

func decodeToppings(docs []docstore.Document) ([]Topping, error) {
	out := make([]Topping, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		var topping Topping
		if err := doc.Decode(&topping); err != nil {
			errs = append(errs, err)
			continue
		}
		topping.ID = doc.ID
		out = append(out, topping)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("decode toppings: %w", multierr.Combine(errs...))
	}
	return out, nil
}

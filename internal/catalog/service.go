package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/acaifrutal/storefront-backend/internal/docstore"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/google/uuid"
)

// MaxRecommendations bounds the "you may also like" list.
const MaxRecommendations = 3

// ListFilter narrows product listings.
type ListFilter struct {
	Type              string
	IncludeOutOfStock bool
}

// Service exposes catalog reads for customers and catalog edits for admins.
// Reads never fail: store errors are logged and produce empty results.
type Service interface {
	ListProducts(ctx context.Context, filter ListFilter) []Product
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListToppings(ctx context.Context, includeOutOfStock bool) []Topping
	Snapshot(ctx context.Context) Snapshot
	Recommendations(ctx context.Context, cartProductIDs []string) []Product
	UpsertProduct(ctx context.Context, id string, input ProductInput) (*Product, error)
	UpsertTopping(ctx context.Context, id string, input ToppingInput) (*Topping, error)
	Watch(ctx context.Context, onChange func(Snapshot)) error
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService builds the catalog service.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) ListProducts(ctx context.Context, filter ListFilter) []Product {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog.products.read_failed")
		return []Product{}
	}
	return filterProducts(products, filter)
}

func (s *service) GetProduct(ctx context.Context, id string) (*Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) ListToppings(ctx context.Context, includeOutOfStock bool) []Topping {
	toppings, err := s.repo.ListToppings(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog.toppings.read_failed")
		return []Topping{}
	}
	if includeOutOfStock {
		return toppings
	}
	out := make([]Topping, 0, len(toppings))
	for _, t := range toppings {
		if !t.OutOfStock {
			out = append(out, t)
		}
	}
	return out
}

func (s *service) Snapshot(ctx context.Context) Snapshot {
	return Snapshot{
		Products: s.ListProducts(ctx, ListFilter{IncludeOutOfStock: true}),
		Toppings: s.ListToppings(ctx, true),
	}
}

// Recommendations returns in-stock side items that are not already in the cart.
func (s *service) Recommendations(ctx context.Context, cartProductIDs []string) []Product {
	return recommend(s.ListProducts(ctx, ListFilter{}), cartProductIDs)
}

func (s *service) UpsertProduct(ctx context.Context, id string, input ProductInput) (*Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price must not be negative")
	}
	if strings.TrimSpace(input.Type) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product type is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	ingredients := input.DefaultIngredients
	if ingredients == nil {
		ingredients = []string{}
	}
	product := Product{
		ID:                 id,
		Name:               strings.TrimSpace(input.Name),
		Description:        input.Description,
		Price:              input.Price,
		Type:               strings.ToLower(strings.TrimSpace(input.Type)),
		ImageURL:           input.ImageURL,
		DefaultIngredients: ingredients,
		OutOfStock:         input.OutOfStock,
	}
	if err := s.repo.SaveProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save product")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", id), "catalog.product.saved")
	return &product, nil
}

func (s *service) UpsertTopping(ctx context.Context, id string, input ToppingInput) (*Topping, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "topping name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "topping price must not be negative")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	topping := Topping{
		ID:         id,
		Name:       strings.TrimSpace(input.Name),
		Price:      input.Price,
		OutOfStock: input.OutOfStock,
	}
	if err := s.repo.SaveTopping(ctx, topping); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save topping")
	}
	s.logg.Info(s.logg.WithField(ctx, "topping_id", id), "catalog.topping.saved")
	return &topping, nil
}

// Watch calls onChange with the full catalog whenever products or toppings change,
// starting with the current state. It blocks until ctx is done.
func (s *service) Watch(ctx context.Context, onChange func(Snapshot)) error {
	products, err := s.repo.SubscribeProducts(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe products")
	}
	toppings, err := s.repo.SubscribeToppings(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe toppings")
	}

	var current Snapshot
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-products:
			if !ok {
				return nil
			}
			if snap.Err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", snap.Err.Error()), "catalog.watch.products_failed")
				continue
			}
			decoded, err := decodeProducts(snap.Docs)
			if err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog.watch.products_decode_failed")
				continue
			}
			current.Products = decoded
		case snap, ok := <-toppings:
			if !ok {
				return nil
			}
			if snap.Err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", snap.Err.Error()), "catalog.watch.toppings_failed")
				continue
			}
			decoded, err := decodeToppings(snap.Docs)
			if err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog.watch.toppings_decode_failed")
				continue
			}
			current.Toppings = decoded
		}
		onChange(Snapshot{
			Products: append([]Product(nil), current.Products...),
			Toppings: append([]Topping(nil), current.Toppings...),
		})
	}
}

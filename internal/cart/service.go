package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/acaifrutal/storefront-backend/internal/catalog"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 99

type catalogReader interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	ListToppings(ctx context.Context, includeOutOfStock bool) []catalog.Topping
}

// AddInput describes a product configuration added to the cart.
type AddInput struct {
	ProductID   string
	Quantity    int
	Ingredients []string
	ToppingIDs  []string
}

// Service exposes cart operations for one identity at a time. Every mutation
// persists immediately.
type Service interface {
	Get(ctx context.Context, ownerID string) Cart
	Load(ctx context.Context, ownerID string) (Cart, error)
	Add(ctx context.Context, ownerID string, input AddInput) (Cart, error)
	UpdateQuantity(ctx context.Context, ownerID, variantKey string, quantity int) (Cart, error)
	Remove(ctx context.Context, ownerID, variantKey string) (Cart, error)
	Clear(ctx context.Context, ownerID string) error
	Watch(ctx context.Context, ownerID string, onChange func(Cart)) error
}

type service struct {
	repo    *Repository
	catalog catalogReader
	logg    *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, catalog catalogReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, catalog: catalog, logg: logg}, nil
}

// Get never fails: a store error is logged and yields an empty cart.
func (s *service) Get(ctx context.Context, ownerID string) Cart {
	cart, err := s.repo.Load(ctx, ownerID)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"owner_id": ownerID, "error": err.Error()}), "cart.read_failed")
		return Cart{OwnerID: ownerID, Items: []Item{}}
	}
	return cart
}

// Load is Get for callers that must tell an empty cart from a failed read.
func (s *service) Load(ctx context.Context, ownerID string) (Cart, error) {
	if err := requireOwner(ownerID); err != nil {
		return Cart{}, err
	}
	return s.load(ctx, ownerID)
}

func (s *service) Add(ctx context.Context, ownerID string, input AddInput) (Cart, error) {
	if err := requireOwner(ownerID); err != nil {
		return Cart{}, err
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || quantity > MaxLineQuantity {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", MaxLineQuantity))
	}

	item, err := s.buildItem(ctx, input.ProductID, input.Ingredients, input.ToppingIDs)
	if err != nil {
		return Cart{}, err
	}
	item.Quantity = quantity

	current, err := s.load(ctx, ownerID)
	if err != nil {
		return Cart{}, err
	}
	items := Merge(current.Items, []Item{item})
	if idx := (Cart{Items: items}).Find(item.VariantKey); idx >= 0 && items[idx].Quantity > MaxLineQuantity {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", MaxLineQuantity))
	}
	return s.save(ctx, ownerID, items)
}

func (s *service) buildItem(ctx context.Context, productID string, ingredients, toppingIDs []string) (Item, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return Item{}, err
	}
	if product.OutOfStock {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "product is out of stock")
	}

	item := Item{
		ProductID:                   product.ID,
		Name:                        product.Name,
		Type:                        product.Type,
		ImageURL:                    product.ImageURL,
		SelectedIncludedIngredients: []string{},
		SelectedToppings:            []Topping{},
	}

	if !product.Customizable() {
		if len(ingredients) > 0 || len(toppingIDs) > 0 {
			return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "only açaí products accept ingredients and toppings")
		}
		item.UnitPrice = product.Price
		item.VariantKey = VariantKey(item.ProductID, nil, nil)
		return item, nil
	}

	allowed := make(map[string]struct{}, len(product.DefaultIngredients))
	for _, ing := range product.DefaultIngredients {
		allowed[ing] = struct{}{}
	}
	seenIngredient := map[string]struct{}{}
	for _, ing := range ingredients {
		if _, ok := allowed[ing]; !ok {
			return Item{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("ingredient %q is not part of %s", ing, product.Name))
		}
		if _, dup := seenIngredient[ing]; dup {
			continue
		}
		seenIngredient[ing] = struct{}{}
		item.SelectedIncludedIngredients = append(item.SelectedIncludedIngredients, ing)
	}

	if len(toppingIDs) > 0 {
		available := map[string]Topping{}
		for _, t := range s.catalog.ListToppings(ctx, false) {
			available[t.ID] = Topping{ID: t.ID, Name: t.Name, Price: t.Price}
		}
		seenTopping := map[string]struct{}{}
		for _, id := range toppingIDs {
			topping, ok := available[id]
			if !ok {
				return Item{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("topping %q is unavailable", id))
			}
			if _, dup := seenTopping[id]; dup {
				continue
			}
			seenTopping[id] = struct{}{}
			item.SelectedToppings = append(item.SelectedToppings, topping)
		}
	}

	item.UnitPrice = UnitPrice(product.Price, item.SelectedToppings)
	item.VariantKey = VariantKey(item.ProductID, item.SelectedIncludedIngredients, item.SelectedToppings)
	return item, nil
}

// UpdateQuantity sets the line quantity; zero or less removes the line.
func (s *service) UpdateQuantity(ctx context.Context, ownerID, variantKey string, quantity int) (Cart, error) {
	if err := requireOwner(ownerID); err != nil {
		return Cart{}, err
	}
	if quantity > MaxLineQuantity {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", MaxLineQuantity))
	}
	current, err := s.load(ctx, ownerID)
	if err != nil {
		return Cart{}, err
	}
	idx := current.Find(variantKey)
	if idx < 0 {
		return Cart{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	items := append([]Item{}, current.Items...)
	if quantity <= 0 {
		items = append(items[:idx], items[idx+1:]...)
	} else {
		items[idx].Quantity = quantity
	}
	return s.save(ctx, ownerID, items)
}

func (s *service) Remove(ctx context.Context, ownerID, variantKey string) (Cart, error) {
	return s.UpdateQuantity(ctx, ownerID, variantKey, 0)
}

func (s *service) Clear(ctx context.Context, ownerID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	_, err := s.save(ctx, ownerID, []Item{})
	return err
}

// Watch calls onChange with the owner's cart on every change, starting with the
// current state. It blocks until ctx is done.
func (s *service) Watch(ctx context.Context, ownerID string, onChange func(Cart)) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	snapshots, err := s.repo.Subscribe(ctx, ownerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe cart")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if snap.Err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", snap.Err.Error()), "cart.watch.read_failed")
				onChange(Cart{OwnerID: ownerID, Items: []Item{}})
				continue
			}
			if snap.Doc == nil {
				onChange(Cart{OwnerID: ownerID, Items: []Item{}})
				continue
			}
			cart, err := decodeCart(ownerID, *snap.Doc)
			if err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.watch.decode_failed")
				cart = Cart{OwnerID: ownerID, Items: []Item{}}
			}
			onChange(cart)
		}
	}
}

func (s *service) load(ctx context.Context, ownerID string) (Cart, error) {
	cart, err := s.repo.Load(ctx, ownerID)
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) save(ctx context.Context, ownerID string, items []Item) (Cart, error) {
	cart, err := s.repo.Save(ctx, ownerID, items)
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return cart, nil
}

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	return nil
}

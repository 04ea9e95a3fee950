package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductTypeAcai marks the customizable bowls; everything else is a side item.
const ProductTypeAcai = "acai"

// Product is a sellable catalog entry.
type Product struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	Type               string          `json:"type"`
	ImageURL           string          `json:"imageUrl"`
	DefaultIngredients []string        `json:"defaultIngredients"`
	OutOfStock         bool            `json:"isOutOfStock"`
}

// Customizable reports whether the product accepts ingredient and topping choices.
func (p Product) Customizable() bool {
	return strings.EqualFold(p.Type, ProductTypeAcai)
}

// Topping is a paid extra for açaí bowls.
type Topping struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	OutOfStock bool            `json:"isOutOfStock"`
}

// ProductInput is the admin payload for creating or replacing a product.
type ProductInput struct {
	Name               string
	Description        string
	Price              decimal.Decimal
	Type               string
	ImageURL           string
	DefaultIngredients []string
	OutOfStock         bool
}

// ToppingInput is the admin payload for creating or replacing a topping.
type ToppingInput struct {
	Name       string
	Price      decimal.Decimal
	OutOfStock bool
}

// Snapshot is one consistent view of the catalog.
type Snapshot struct {
	Products []Product
	Toppings []Topping
}

// Product looks up a product by id.
func (s Snapshot) Product(id string) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Filter applies a listing filter to the snapshot products.
func (s Snapshot) Filter(filter ListFilter) []Product {
	return filterProducts(s.Products, filter)
}

// Recommendations applies the recommendation rule to the snapshot products.
func (s Snapshot) Recommendations(cartProductIDs []string) []Product {
	return recommend(s.Products, cartProductIDs)
}

func filterProducts(products []Product, filter ListFilter) []Product {
	wantType := strings.TrimSpace(filter.Type)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if wantType != "" && !strings.EqualFold(p.Type, wantType) {
			continue
		}
		if p.OutOfStock && !filter.IncludeOutOfStock {
			continue
		}
		out = append(out, p)
	}
	return out
}

// recommend returns in-stock side items that are not already in the cart, in
// catalog order.
func recommend(products []Product, cartProductIDs []string) []Product {
	inCart := make(map[string]struct{}, len(cartProductIDs))
	for _, id := range cartProductIDs {
		inCart[id] = struct{}{}
	}
	out := make([]Product, 0, MaxRecommendations)
	for _, p := range products {
		if len(out) == MaxRecommendations {
			break
		}
		if p.Customizable() || p.OutOfStock {
			continue
		}
		if _, ok := inCart[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

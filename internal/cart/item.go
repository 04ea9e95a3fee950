package cart

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Topping is a paid extra chosen for one cart line.
type Topping struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Item is one cart line. VariantKey identifies the configuration and is unique within a cart.
type Item struct {
	ProductID                   string          `json:"productId"`
	Name                        string          `json:"name"`
	Type                        string          `json:"type"`
	VariantKey                  string          `json:"variantKey"`
	Quantity                    int             `json:"quantity"`
	UnitPrice                   decimal.Decimal `json:"unitPrice"`
	SelectedIncludedIngredients []string        `json:"selectedIncludedIngredients"`
	SelectedToppings            []Topping       `json:"selectedToppings"`
	ImageURL                    string          `json:"imageUrl,omitempty"`
}

// LineTotal is UnitPrice × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Key returns the stored variant key, computing it when the document predates it.
func (i Item) Key() string {
	if i.VariantKey != "" {
		return i.VariantKey
	}
	return VariantKey(i.ProductID, i.SelectedIncludedIngredients, i.SelectedToppings)
}

// VariantKey builds productId-JSON(sorted ingredients)-JSON(sorted topping ids).
func VariantKey(productID string, ingredients []string, toppings []Topping) string {
	ids := make([]string, 0, len(toppings))
	for _, t := range toppings {
		ids = append(ids, t.ID)
	}
	return productID + "-" + sortedJSON(ingredients) + "-" + sortedJSON(ids)
}

func sortedJSON(values []string) string {
	sorted := append([]string{}, values...)
	sort.Strings(sorted)
	raw, _ := json.Marshal(sorted)
	return string(raw)
}

// UnitPrice is the product price plus every selected topping.
func UnitPrice(base decimal.Decimal, toppings []Topping) decimal.Decimal {
	total := base
	for _, t := range toppings {
		total = total.Add(t.Price)
	}
	return total
}

// Normalized fills defaults on lines decoded from stored documents.
func (i Item) Normalized() Item {
	if i.Quantity <= 0 {
		i.Quantity = 1
	}
	if i.SelectedIncludedIngredients == nil {
		i.SelectedIncludedIngredients = []string{}
	}
	if i.SelectedToppings == nil {
		i.SelectedToppings = []Topping{}
	}
	i.VariantKey = i.Key()
	return i
}

// Cart is the live cart owned by one identity.
type Cart struct {
	OwnerID    string    `json:"ownerId"`
	Items      []Item    `json:"items"`
	ConsumedBy string    `json:"consumedBy,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Subtotal sums every line total.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count returns the number of units across every line.
func (c Cart) Count() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// ProductIDs lists the distinct products in the cart.
func (c Cart) ProductIDs() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		out = append(out, item.ProductID)
	}
	return out
}

// Find returns the index of the line with the variant key, or -1.
func (c Cart) Find(variantKey string) int {
	for idx, item := range c.Items {
		if item.Key() == variantKey {
			return idx
		}
	}
	return -1
}

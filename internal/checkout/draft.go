package checkout

import (
	"strings"

	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Draft is the order being assembled on the checkout screen. Items and
// TotalPrice mirror the live cart; every other field is typed by the customer.
type Draft struct {
	Items           []cart.Item         `json:"items"`
	TotalPrice      decimal.Decimal     `json:"totalPrice"`
	Observations    string              `json:"observations"`
	DeliveryFee     decimal.Decimal     `json:"deliveryFee"`
	DeliveryAddress types.Address       `json:"deliveryAddress"`
	ContactNumber   string              `json:"contactNumber"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	CustomerName    string              `json:"customerName,omitempty"`
}

// OrderTotal is what the customer pays: items plus delivery.
func (d Draft) OrderTotal() decimal.Decimal {
	return d.TotalPrice.Add(d.DeliveryFee)
}

// IsEmpty reports whether the draft has nothing to check out.
func (d Draft) IsEmpty() bool {
	return len(d.Items) == 0
}

// Validate checks everything the customer must provide before paying.
func Validate(d Draft) error {
	var missing []string
	if strings.TrimSpace(d.ContactNumber) == "" {
		missing = append(missing, "contactNumber")
	}
	for _, field := range d.DeliveryAddress.Missing() {
		missing = append(missing, "deliveryAddress."+field)
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact number and delivery address are required").
			WithDetails(map[string]any{"missing": missing})
	}
	if d.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !d.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"paymentMethod": string(d.PaymentMethod)})
	}
	return nil
}

// Resync refreshes items and total from the live cart and keeps every other field.
// An empty live cart clears the draft and reports false.
func Resync(d Draft, live cart.Cart) (Draft, bool) {
	if live.IsEmpty() {
		return Draft{}, false
	}
	d.Items = append([]cart.Item(nil), live.Items...)
	d.TotalPrice = live.Subtotal()
	return d, true
}

// Patch carries the customer-editable fields. Nil fields are left unchanged.
type Patch struct {
	Observations    *string
	DeliveryAddress *types.Address
	ContactNumber   *string
	PaymentMethod   *enums.PaymentMethod
	CustomerName    *string
}

// Apply returns d with the non-nil patch fields written.
func (p Patch) Apply(d Draft) Draft {
	if p.Observations != nil {
		d.Observations = strings.TrimSpace(*p.Observations)
	}
	if p.DeliveryAddress != nil {
		d.DeliveryAddress = p.DeliveryAddress.Normalized()
	}
	if p.ContactNumber != nil {
		d.ContactNumber = strings.TrimSpace(*p.ContactNumber)
	}
	if p.PaymentMethod != nil {
		d.PaymentMethod = *p.PaymentMethod
	}
	if p.CustomerName != nil {
		d.CustomerName = strings.TrimSpace(*p.CustomerName)
	}
	return d
}

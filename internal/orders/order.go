package orders

import (
	"time"

	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	"github.com/acaifrutal/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Order is a placed order. The same document lives in the global collection and in
// the owner's history under the same id.
type Order struct {
	ID               string              `json:"id"`
	OwnerID          string              `json:"userId"`
	UserEmail        string              `json:"userEmail"`
	Items            []cart.Item         `json:"items"`
	Total            decimal.Decimal     `json:"total"`
	Status           enums.OrderStatus   `json:"status"`
	CreatedAt        time.Time           `json:"createdAt"`
	DeliveryAddress  types.Address       `json:"deliveryAddress"`
	ContactNumber    string              `json:"contactNumber"`
	PaymentMethod    enums.PaymentMethod `json:"paymentMethod"`
	Observations     string              `json:"observations"`
	DeliveryFee      decimal.Decimal     `json:"deliveryFee"`
	PixPaymentID     string              `json:"pixPaymentId,omitempty"`
	PixQRText        string              `json:"pixQrText,omitempty"`
	PixQRImageBase64 string              `json:"pixQrImageBase64,omitempty"`
	PixExpiresAt     *time.Time          `json:"pixExpiresAt,omitempty"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// StatusLabel is the customer-facing label of the order status.
func (o Order) StatusLabel() string {
	return o.Status.Label()
}

// AwaitingPix reports whether the order still waits for its PIX settlement.
func (o Order) AwaitingPix() bool {
	return o.Status == enums.OrderStatusAwaitingPixPayment && o.PixPaymentID != ""
}

func (o Order) normalized() Order {
	if o.Status == "" || !o.Status.IsValid() {
		o.Status = enums.OrderStatusPending
	}
	items := make([]cart.Item, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, item.Normalized())
	}
	o.Items = items
	o.DeliveryAddress = o.DeliveryAddress.Normalized()
	return o
}

package enums

import "fmt"

// OrderStatus tracks an order from creation to delivery.
type OrderStatus string

const (
	OrderStatusAwaitingPixPayment OrderStatus = "AwaitingPixPayment"
	OrderStatusPending            OrderStatus = "Pending"
	OrderStatusConfirmed          OrderStatus = "Confirmed"
	OrderStatusPreparing          OrderStatus = "Preparing"
	OrderStatusOutForDelivery     OrderStatus = "OutForDelivery"
	OrderStatusDelivered          OrderStatus = "Delivered"
	OrderStatusCancelled          OrderStatus = "Cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusAwaitingPixPayment,
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusAwaitingPixPayment: "Aguardando Pagamento PIX",
	OrderStatusPending:            "Pendente",
	OrderStatusConfirmed:          "Confirmado",
	OrderStatusPreparing:          "Em Preparação",
	OrderStatusOutForDelivery:     "Saiu para Entrega",
	OrderStatusDelivered:          "Entregue",
	OrderStatusCancelled:          "Cancelado",
}

// orderTransitions lists the statuses each status may move to.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusAwaitingPixPayment: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusPending:            {OrderStatusConfirmed, OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusConfirmed:          {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:          {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery:     {OrderStatusDelivered, OrderStatusCancelled},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// Label returns the customer facing (pt-BR) name of the status.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether an order in s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

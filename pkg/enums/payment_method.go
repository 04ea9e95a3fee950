package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a customer settles an order.
type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
)

// Every method except PIX is collected by the courier on delivery.
var paymentMethodLabels = map[PaymentMethod]string{
	PaymentMethodPix:        "PIX",
	PaymentMethodCash:       "Dinheiro",
	PaymentMethodCard:       "Cartão na entrega",
	PaymentMethodCreditCard: "Cartão de Crédito",
	PaymentMethodDebitCard:  "Cartão de Débito",
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	_, ok := paymentMethodLabels[p]
	return ok
}

// Label returns the pt-BR name shown to customers.
func (p PaymentMethod) Label() string {
	if label, ok := paymentMethodLabels[p]; ok {
		return label
	}
	return string(p)
}

// RequiresGateway reports whether the method is settled through the payment gateway.
func (p PaymentMethod) RequiresGateway() bool {
	return p == PaymentMethodPix
}

// ParsePaymentMethod converts raw input into a PaymentMethod, ignoring case and
// surrounding whitespace.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	if !method.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return method, nil
}

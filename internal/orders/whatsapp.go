package orders

import (
	"fmt"
	"net/url"
	"strings"
)

const notInformed = "Não informado"

// WhatsAppMessage renders the order as the pt-BR message sent to the store.
func WhatsAppMessage(order Order) string {
	var b strings.Builder
	b.WriteString("*Novo Pedido - Açaí App*\n\n")
	fmt.Fprintf(&b, "*ID do Pedido:* %s\n", order.ID)
	fmt.Fprintf(&b, "*Email do Cliente:* %s\n", orNotInformed(order.UserEmail))
	fmt.Fprintf(&b, "*WhatsApp do Cliente:* %s\n", orNotInformed(order.ContactNumber))
	fmt.Fprintf(&b, "*Endereço de Entrega:* %s\n\n", order.DeliveryAddress.String())

	b.WriteString("*Itens do Pedido:*\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s (x%d) - R$ %s\n", item.Name, item.Quantity, item.LineTotal().StringFixed(2))
		if len(item.SelectedIncludedIngredients) > 0 {
			fmt.Fprintf(&b, "  (Inclui: %s)\n", strings.Join(item.SelectedIncludedIngredients, ", "))
		}
		if len(item.SelectedToppings) > 0 {
			names := make([]string, 0, len(item.SelectedToppings))
			for _, t := range item.SelectedToppings {
				names = append(names, t.Name)
			}
			fmt.Fprintf(&b, "  (Adicionais: %s)\n", strings.Join(names, ", "))
		}
	}

	if obs := strings.TrimSpace(order.Observations); obs != "" {
		fmt.Fprintf(&b, "\n*Observações:* %s\n", obs)
	}

	fmt.Fprintf(&b, "\n*Total:* R$ %s\n", order.Total.StringFixed(2))
	fmt.Fprintf(&b, "*Forma de Pagamento:* %s\n", orNotInformed(string(order.PaymentMethod)))
	fmt.Fprintf(&b, "*Status:* %s\n", order.StatusLabel())
	return b.String()
}

// WhatsAppLink builds the wa.me deep link that opens a chat with the store
// prefilled with the order message.
func WhatsAppLink(storeNumber string, order Order) string {
	number := strings.TrimPrefix(strings.TrimSpace(storeNumber), "+")
	return "https://wa.me/" + number + "?text=" + encodeComponent(WhatsAppMessage(order))
}

// encodeComponent escapes like a URI component: spaces become %20, not +.
func encodeComponent(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

func orNotInformed(value string) string {
	if strings.TrimSpace(value) == "" {
		return notInformed
	}
	return value
}

package orders

import (
	"net/url"
	"strings"
	"testing"

	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	"github.com/acaifrutal/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

func TestWhatsAppMessage(t *testing.T) {
	order := Order{
		ID:            "order-1",
		ContactNumber: "11999990000",
		PaymentMethod: enums.PaymentMethodPix,
		Status:        enums.OrderStatusAwaitingPixPayment,
		Total:         decimal.RequireFromString("26.5"),
		Observations:  "sem açúcar",
		DeliveryAddress: types.Address{
			CEP: "01310100", Street: "Av. Paulista", Number: "1000", Neighborhood: "Bela Vista", Reference: "portaria",
		},
		Items: []cart.Item{{
			Name: "Açaí 500ml", Quantity: 2, UnitPrice: decimal.RequireFromString("13.25"),
			SelectedIncludedIngredients: []string{"Banana", "Granola"},
			SelectedToppings:            []cart.Topping{{ID: "t1", Name: "Leite Ninho"}},
		}},
	}

	want := "*Novo Pedido - Açaí App*\n\n" +
		"*ID do Pedido:* order-1\n" +
		"*Email do Cliente:* Não informado\n" +
		"*WhatsApp do Cliente:* 11999990000\n" +
		"*Endereço de Entrega:* Av. Paulista, 1000, Bela Vista, CEP: 01310100 (Ref: portaria)\n\n" +
		"*Itens do Pedido:*\n" +
		"- Açaí 500ml (x2) - R$ 26.50\n" +
		"  (Inclui: Banana, Granola)\n" +
		"  (Adicionais: Leite Ninho)\n" +
		"\n*Observações:* sem açúcar\n" +
		"\n*Total:* R$ 26.50\n" +
		"*Forma de Pagamento:* pix\n" +
		"*Status:* Aguardando Pagamento PIX\n"
	if got := WhatsAppMessage(order); got != want {
		t.Fatalf("unexpected message:\n%s\nwant:\n%s", got, want)
	}
}

func TestWhatsAppLinkEncodesMessage(t *testing.T) {
	order := Order{ID: "o-1", Total: decimal.NewFromInt(10), PaymentMethod: enums.PaymentMethodCash, Status: enums.OrderStatusPending}
	link := WhatsAppLink("+5511988887777", order)

	const prefix = "https://wa.me/5511988887777?text="
	if !strings.HasPrefix(link, prefix) {
		t.Fatalf("unexpected link %q", link)
	}
	encoded := strings.TrimPrefix(link, prefix)
	if strings.Contains(encoded, "+") || strings.Contains(encoded, " ") {
		t.Fatalf("expected %%20 spaces, got %q", encoded)
	}
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != WhatsAppMessage(order) {
		t.Fatalf("round trip mismatch:\n%s", decoded)
	}
	if !strings.Contains(decoded, "*Endereço de Entrega:* Endereço não informado") {
		t.Fatalf("expected placeholder address, got %q", decoded)
	}
}

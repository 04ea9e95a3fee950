package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

type orderView struct {
	orders.Order
	StatusLabel string `json:"statusLabel"`
}

func newOrderView(o orders.Order) orderView {
	return orderView{Order: o, StatusLabel: o.StatusLabel()}
}

func newOrderViews(list []orders.Order) []orderView {
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, newOrderView(o))
	}
	return out
}

// OrdersList returns the caller's order history, newest first.
func OrdersList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForUser(r.Context(), who.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderViews(list))
	}
}

func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), who.ID, chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

// OrderWhatsApp builds the message and wa.me link for sending the order to the store.
func OrderWhatsApp(svc orders.Service, storeNumber string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), who.ID, chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"message": orders.WhatsAppMessage(order),
			"link":    orders.WhatsAppLink(storeNumber, order),
		})
	}
}

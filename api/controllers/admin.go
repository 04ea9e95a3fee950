package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/api/validators"
	"github.com/acaifrutal/storefront-backend/internal/catalog"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/pagination"
)

type statusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

type productRequest struct {
	Name               string          `json:"name" validate:"required,max=120"`
	Description        string          `json:"description" validate:"max=1000"`
	Price              decimal.Decimal `json:"price"`
	Type               string          `json:"type" validate:"required,max=40"`
	ImageURL           string          `json:"imageUrl" validate:"omitempty,url"`
	DefaultIngredients []string        `json:"defaultIngredients"`
	OutOfStock         bool            `json:"isOutOfStock"`
}

type toppingRequest struct {
	Name       string          `json:"name" validate:"required,max=120"`
	Price      decimal.Decimal `json:"price"`
	OutOfStock bool            `json:"isOutOfStock"`
}

func orderCursor(o orders.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// AdminOrders lists every order newest first, optionally filtered by ?status=,
// paged by ?limit= and ?cursor=.
func AdminOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status enums.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, validators.FieldError("status", err.Error()))
				return
			}
			status = parsed
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListAll(r.Context(), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := pagination.Slice(list, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		}, orderCursor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, validators.FieldError("cursor", err.Error()))
			return
		}
		responses.WriteSuccess(w, pagination.Page[orderView]{
			Items:      newOrderViews(page.Items),
			NextCursor: page.NextCursor,
		})
	}
}

func AdminOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body statusUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, validators.FieldError("status", err.Error()))
			return
		}
		order, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "orderId"), status, who.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}

func AdminUpsertProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body productRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpsertProduct(r.Context(), chi.URLParam(r, "productId"), catalog.ProductInput{
			Name:               body.Name,
			Description:        body.Description,
			Price:              body.Price,
			Type:               body.Type,
			ImageURL:           body.ImageURL,
			DefaultIngredients: body.DefaultIngredients,
			OutOfStock:         body.OutOfStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminUpsertTopping(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body toppingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		topping, err := svc.UpsertTopping(r.Context(), chi.URLParam(r, "toppingId"), catalog.ToppingInput{
			Name:       body.Name,
			Price:      body.Price,
			OutOfStock: body.OutOfStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, topping)
	}
}

package controllers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/api/validators"
	"github.com/acaifrutal/storefront-backend/internal/cart"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

type cartView struct {
	Items    []cart.Item     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Count    int             `json:"count"`
}

func newCartView(c cart.Cart) cartView {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	return cartView{Items: items, Subtotal: c.Subtotal(), Count: c.Count()}
}

type addItemRequest struct {
	ProductID   string   `json:"productId" validate:"required"`
	Quantity    int      `json:"quantity" validate:"min=0,max=99"`
	Ingredients []string `json:"selectedIncludedIngredients"`
	ToppingIDs  []string `json:"toppingIds"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

func variantKeyParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "variantKey")
	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid variant key")
	}
	return key, nil
}

func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(svc.Get(r.Context(), who.ID)))
	}
}

func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Add(r.Context(), who.ID, cart.AddInput{
			ProductID:   body.ProductID,
			Quantity:    body.Quantity,
			Ingredients: body.Ingredients,
			ToppingIDs:  body.ToppingIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartView(updated))
	}
}

// CartUpdateItem sets a line quantity; zero removes the line.
func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := variantKeyParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.UpdateQuantity(r.Context(), who.ID, key, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(updated))
	}
}

func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key, err := variantKeyParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Remove(r.Context(), who.ID, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(updated))
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), who.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(cart.Cart{}))
	}
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/api/validators"
	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/internal/catalog"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

// catalogCache serves the live catalog snapshot kept by the session state.
type catalogCache interface {
	Catalog() (catalog.Snapshot, bool)
}

func includeOutOfStock(r *http.Request) (bool, error) {
	return validators.ParseQueryBool(r, "includeOutOfStock", false)
}

// CatalogProducts lists products, optionally filtered by ?type=. The cached
// snapshot is used once it has arrived; before that the store is read.
func CatalogProducts(svc catalog.Service, cache catalogCache, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		include, err := includeOutOfStock(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := catalog.ListFilter{
			Type:              r.URL.Query().Get("type"),
			IncludeOutOfStock: include,
		}
		if cache != nil {
			if snap, ok := cache.Catalog(); ok {
				responses.WriteSuccess(w, snap.Filter(filter))
				return
			}
		}
		responses.WriteSuccess(w, svc.ListProducts(r.Context(), filter))
	}
}

func CatalogProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.GetProduct(r.Context(), chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func CatalogToppings(svc catalog.Service, cache catalogCache, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		include, err := includeOutOfStock(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if cache != nil {
			if snap, ok := cache.Catalog(); ok {
				toppings := make([]catalog.Topping, 0, len(snap.Toppings))
				for _, t := range snap.Toppings {
					if include || !t.OutOfStock {
						toppings = append(toppings, t)
					}
				}
				responses.WriteSuccess(w, toppings)
				return
			}
		}
		responses.WriteSuccess(w, svc.ListToppings(r.Context(), include))
	}
}

// CatalogRecommendations suggests side items missing from the caller's cart.
func CatalogRecommendations(svc catalog.Service, carts cart.Service, cache catalogCache, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inCart := carts.Get(r.Context(), who.ID).ProductIDs()
		if cache != nil {
			if snap, ok := cache.Catalog(); ok {
				responses.WriteSuccess(w, snap.Recommendations(inCart))
				return
			}
		}
		responses.WriteSuccess(w, svc.Recommendations(r.Context(), inCart))
	}
}

package controllers

import (
	"net/http"

	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/api/validators"
	"github.com/acaifrutal/storefront-backend/internal/profile"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/types"
)

type profileRequest struct {
	Name    string        `json:"name" validate:"max=120"`
	Phone   string        `json:"phone" validate:"omitempty,phone"`
	Address types.Address `json:"address"`
}

func ProfileFetch(store profile.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := store.Get(r.Context(), who.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, p)
	}
}

// ProfileSave replaces the caller's profile. The email always comes from the identity.
func ProfileSave(store profile.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body profileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := store.Save(r.Context(), who.ID, profile.Input{
			Name:    validators.SanitizeString(body.Name, 120),
			Email:   who.Email,
			Phone:   validators.SanitizePhone(body.Phone),
			Address: body.Address,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, p)
	}
}

package controllers

import (
	"net/http"

	"github.com/acaifrutal/storefront-backend/api/middleware"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
)

func caller(r *http.Request) (identity.Identity, error) {
	who, ok := middleware.IdentityFromContext(r.Context())
	if !ok || who.ID == "" {
		return identity.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return who, nil
}

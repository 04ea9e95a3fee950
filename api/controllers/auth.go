package controllers

import (
	"context"
	"net/http"

	"github.com/acaifrutal/storefront-backend/api/middleware"
	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/api/validators"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

// transitionHandler merges the anonymous cart right after sign-in so the
// response already reflects it.
type transitionHandler interface {
	HandleTransition(ctx context.Context, t identity.Transition) bool
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"max=120"`
}

// AuthAnonymous issues a token for a new anonymous identity.
func AuthAnonymous(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := svc.SignInAnonymous(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// AuthRegister creates an account. A bearer token held by the device before
// registering is treated as the previous anonymous identity.
func AuthRegister(svc identity.Service, transitions transitionHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Register(r.Context(), identity.RegisterInput{
			Email:         body.Email,
			Password:      body.Password,
			Name:          validators.SanitizeString(body.Name, 120),
			PreviousToken: middleware.BearerToken(r.Header.Get("Authorization")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		handleTransition(r.Context(), transitions, result)
		responses.WriteSuccessStatus(w, http.StatusCreated, result.Session)
	}
}

// AuthLogin signs in with email and password.
func AuthLogin(svc identity.Service, transitions transitionHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SignIn(r.Context(), body.Email, body.Password, middleware.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		handleTransition(r.Context(), transitions, result)
		responses.WriteSuccess(w, result.Session)
	}
}

// AuthLogout revokes the caller's session.
func AuthLogout(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SignOut(r.Context(), who); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "signed_out"})
	}
}

// AuthMe returns the resolved caller.
func AuthMe(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, who)
	}
}

func handleTransition(ctx context.Context, transitions transitionHandler, result identity.SignInResult) {
	if transitions == nil || result.Transition == nil {
		return
	}
	transitions.HandleTransition(ctx, *result.Transition)
}

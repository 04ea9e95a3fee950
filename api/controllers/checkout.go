package controllers

import (
	"context"
	"net/http"

	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/api/validators"
	"github.com/acaifrutal/storefront-backend/internal/checkout"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/pkg/enums"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/types"
)

type draftStore interface {
	Start(ctx context.Context, identityID string) (checkout.Draft, error)
	Get(ctx context.Context, identityID string) (checkout.Draft, error)
	Update(ctx context.Context, identityID string, patch checkout.Patch) (checkout.Draft, error)
	Clear(ctx context.Context, identityID string) error
}

type paymentProcessor interface {
	ProcessPayment(ctx context.Context, draft checkout.Draft, who identity.Identity) (checkout.Result, error)
}

type pixStatusReader interface {
	Status(identityID string) checkout.PixStatus
}

type draftPatchRequest struct {
	Observations    *string        `json:"observations" validate:"omitempty,max=500"`
	DeliveryAddress *types.Address `json:"deliveryAddress"`
	ContactNumber   *string        `json:"contactNumber" validate:"omitempty,phone"`
	PaymentMethod   *string        `json:"paymentMethod"`
	CustomerName    *string        `json:"customerName" validate:"omitempty,max=120"`
}

func (p draftPatchRequest) toPatch() (checkout.Patch, error) {
	patch := checkout.Patch{
		Observations:    p.Observations,
		DeliveryAddress: p.DeliveryAddress,
		ContactNumber:   p.ContactNumber,
		CustomerName:    p.CustomerName,
	}
	if p.PaymentMethod != nil {
		method, err := enums.ParsePaymentMethod(*p.PaymentMethod)
		if err != nil {
			return checkout.Patch{}, validators.FieldError("paymentMethod", err.Error())
		}
		patch.PaymentMethod = &method
	}
	return patch, nil
}

// CheckoutDraftStart opens (or refreshes) the caller's checkout draft from the live cart.
func CheckoutDraftStart(drafts draftStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := drafts.Start(r.Context(), who.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDraftView(draft))
	}
}

// CheckoutDraftFetch returns the caller's draft resynced against the live cart.
func CheckoutDraftFetch(drafts draftStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := drafts.Get(r.Context(), who.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDraftView(draft))
	}
}

// CheckoutDraftUpdate applies a partial edit; only the fields present in the body change.
func CheckoutDraftUpdate(drafts draftStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body draftPatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		patch, err := body.toPatch()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := drafts.Update(r.Context(), who.ID, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDraftView(draft))
	}
}

// CheckoutSubmit pays for the stored draft. A finished checkout drops the draft.
func CheckoutSubmit(drafts draftStore, payments paymentProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft, err := drafts.Get(r.Context(), who.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := payments.ProcessPayment(r.Context(), draft, who)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := drafts.Clear(r.Context(), who.ID); err != nil && logg != nil {
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "checkout.draft_clear_failed")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutPixStatus reports the caller's PIX state and countdown.
func CheckoutPixStatus(pix pixStatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pix.Status(who.ID))
	}
}

type draftView struct {
	checkout.Draft
	OrderTotal string `json:"orderTotal"`
}

func newDraftView(d checkout.Draft) draftView {
	return draftView{Draft: d, OrderTotal: d.OrderTotal().StringFixed(2)}
}

package cart

import (
	"context"
	"strings"
	"time"

	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/metrics"
)

// DefaultLeaseTTL bounds how long one reconciliation holds the pair lease.
const DefaultLeaseTTL = 30 * time.Second

// Leaser serializes reconciliations of the same anonymous/authenticated pair.
type Leaser interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	ReconcileLeaseKey(scope, anonID, authID string) string
}

// Reconciler moves an anonymous identity's cart into the authenticated identity's
// cart when a customer signs in.
type Reconciler struct {
	repo     *Repository
	lease    Leaser
	leaseTTL time.Duration
	metrics  *metrics.StorefrontMetrics
	logg     *logger.Logger
}

// ReconcilerOption configures optional reconciler collaborators.
type ReconcilerOption func(*Reconciler)

// WithLease serializes concurrent reconciliations through lease.
func WithLease(lease Leaser, ttl time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.lease = lease
		if ttl > 0 {
			r.leaseTTL = ttl
		}
	}
}

// WithMetrics records reconciliation outcomes.
func WithMetrics(m *metrics.StorefrontMetrics) ReconcilerOption {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// NewReconciler builds a reconciler over the cart repository.
func NewReconciler(repo *Repository, logg *logger.Logger, opts ...ReconcilerOption) *Reconciler {
	if logg == nil {
		logg = logger.Nop()
	}
	r := &Reconciler{repo: repo, leaseTTL: DefaultLeaseTTL, logg: logg}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Reconcile merges the anonymous cart into the authenticated cart by variant key,
// then deletes the anonymous cart. It never fails the caller: every error is
// logged and leaves the anonymous cart in place for a later attempt.
//
// When either identity is missing, or both are the same, nothing is read or written.
func (r *Reconciler) Reconcile(ctx context.Context, scope, anonID, authID string) {
	anonID, authID = strings.TrimSpace(anonID), strings.TrimSpace(authID)
	if anonID == "" || authID == "" || anonID == authID {
		return
	}

	ctx = r.logg.WithFields(ctx, map[string]any{
		"anon_id": anonID,
		"user_id": authID,
		"scope":   scope,
	})
	result, carried := r.reconcile(ctx, scope, anonID, authID)
	r.metrics.Reconcile(result, carried)
}

func (r *Reconciler) reconcile(ctx context.Context, scope, anonID, authID string) (string, int) {
	repo := r.repo.WithScope(scope)

	if r.lease != nil {
		key := r.lease.ReconcileLeaseKey(scope, anonID, authID)
		acquired, err := r.lease.SetNX(ctx, key, authID, r.leaseTTL)
		switch {
		case err != nil:
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "cart.reconcile.lease_unavailable")
		case !acquired:
			r.logg.Info(ctx, "cart.reconcile.skipped_lease_held")
			return metrics.ReconcileSkipped, 0
		default:
			defer func() {
				if err := r.lease.Del(context.WithoutCancel(ctx), key); err != nil {
					r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "cart.reconcile.lease_release_failed")
				}
			}()
		}
	}

	anonCart, err := repo.Load(ctx, anonID)
	if err != nil {
		r.logg.Error(ctx, "cart.reconcile.read_anon_failed", err)
		return metrics.ReconcileFailed, 0
	}
	if anonCart.IsEmpty() {
		return metrics.ReconcileNoop, 0
	}

	authCart, err := repo.Load(ctx, authID)
	if err != nil {
		r.logg.Error(ctx, "cart.reconcile.read_auth_failed", err)
		return metrics.ReconcileFailed, 0
	}

	merged := Merge(authCart.Items, anonCart.Items)
	if err := repo.MergeItems(ctx, authID, merged); err != nil {
		r.logg.Error(ctx, "cart.reconcile.write_failed", err)
		return metrics.ReconcileFailed, 0
	}

	// The marker lands before the delete so a failed delete still reads as consumed.
	markErr := repo.MarkConsumed(ctx, anonID, authID)
	if markErr != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", markErr.Error()), "cart.reconcile.mark_consumed_failed")
	}
	if err := repo.Delete(ctx, anonID); err != nil {
		if markErr != nil {
			r.logg.Error(ctx, "cart.reconcile.anon_cart_left_live", err)
		} else {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "cart.reconcile.delete_anon_failed")
		}
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"anon_items":   len(anonCart.Items),
		"merged_items": len(merged),
	}), "cart.reconcile.merged")
	return metrics.ReconcileMerged, len(anonCart.Items)
}

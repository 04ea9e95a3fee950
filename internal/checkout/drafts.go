package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/internal/profile"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	pkgredis "github.com/acaifrutal/storefront-backend/pkg/redis"
	"github.com/shopspring/decimal"
)

type draftStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DraftKey(scope, identityID string) string
}

// CartReader reads the live cart a draft mirrors. A read failure must surface as
// an error, never as an empty cart.
type CartReader interface {
	Load(ctx context.Context, ownerID string) (cart.Cart, error)
}

// ProfileReader prefills new drafts with saved contact details.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (profile.Profile, error)
}

// DraftStore keeps one checkout draft per identity in redis.
type DraftStore struct {
	store    draftStore
	scope    string
	ttl      time.Duration
	fee      decimal.Decimal
	carts    CartReader
	profiles ProfileReader
}

// NewDraftStore builds a redis-backed draft store. profiles may be nil.
func NewDraftStore(client *pkgredis.Client, scope string, ttl time.Duration, fee decimal.Decimal, carts CartReader, profiles ProfileReader) (*DraftStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return newDraftStore(client, scope, ttl, fee, carts, profiles)
}

func newDraftStore(store draftStore, scope string, ttl time.Duration, fee decimal.Decimal, carts CartReader, profiles ProfileReader) (*DraftStore, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &DraftStore{store: store, scope: scope, ttl: ttl, fee: fee, carts: carts, profiles: profiles}, nil
}

// Start opens a draft from the live cart, keeping fields typed in an earlier draft
// and otherwise prefilling from the saved profile.
func (d *DraftStore) Start(ctx context.Context, identityID string) (Draft, error) {
	if strings.TrimSpace(identityID) == "" {
		return Draft{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	live, err := d.liveCart(ctx, identityID)
	if err != nil {
		return Draft{}, err
	}
	if live.IsEmpty() {
		return Draft{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	draft, found, err := d.load(ctx, identityID)
	if err != nil {
		return Draft{}, err
	}
	if !found {
		draft = d.prefill(ctx, identityID)
	}
	draft.DeliveryFee = d.fee
	draft, _ = Resync(draft, live)
	return draft, d.save(ctx, identityID, draft)
}

// Get returns the draft resynced against the live cart. An empty cart clears the
// draft and yields NOT_FOUND; a failed cart read leaves the draft stored.
func (d *DraftStore) Get(ctx context.Context, identityID string) (Draft, error) {
	draft, found, err := d.load(ctx, identityID)
	if err != nil {
		return Draft{}, err
	}
	if !found {
		return Draft{}, pkgerrors.New(pkgerrors.CodeNotFound, "no checkout in progress")
	}
	live, err := d.liveCart(ctx, identityID)
	if err != nil {
		return Draft{}, err
	}
	synced, ok := Resync(draft, live)
	if !ok {
		if err := d.Clear(ctx, identityID); err != nil {
			return Draft{}, err
		}
		return Draft{}, pkgerrors.New(pkgerrors.CodeNotFound, "no checkout in progress")
	}
	return synced, nil
}

// Update applies the patch to the resynced draft and stores it.
func (d *DraftStore) Update(ctx context.Context, identityID string, patch Patch) (Draft, error) {
	draft, err := d.Get(ctx, identityID)
	if err != nil {
		return Draft{}, err
	}
	if patch.PaymentMethod != nil && !patch.PaymentMethod.IsValid() {
		return Draft{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	draft = patch.Apply(draft)
	return draft, d.save(ctx, identityID, draft)
}

// Clear drops the identity's draft.
func (d *DraftStore) Clear(ctx context.Context, identityID string) error {
	if err := d.store.Del(ctx, d.store.DraftKey(d.scope, identityID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear checkout draft")
	}
	return nil
}

func (d *DraftStore) liveCart(ctx context.Context, identityID string) (cart.Cart, error) {
	live, err := d.carts.Load(ctx, identityID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return cart.Cart{}, err
		}
		return cart.Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return live, nil
}

func (d *DraftStore) prefill(ctx context.Context, identityID string) Draft {
	if d.profiles == nil {
		return Draft{}
	}
	p, err := d.profiles.Get(ctx, identityID)
	if err != nil {
		return Draft{}
	}
	return Draft{CustomerName: p.Name, ContactNumber: p.Phone, DeliveryAddress: p.Address}
}

func (d *DraftStore) load(ctx context.Context, identityID string) (Draft, bool, error) {
	if strings.TrimSpace(identityID) == "" {
		return Draft{}, false, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	raw, err := d.store.Get(ctx, d.store.DraftKey(d.scope, identityID))
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return Draft{}, false, nil
		}
		return Draft{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout draft")
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return Draft{}, false, nil
	}
	return draft, true, nil
}

func (d *DraftStore) save(ctx context.Context, identityID string, draft Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout draft")
	}
	if err := d.store.Set(ctx, d.store.DraftKey(d.scope, identityID), string(raw), d.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout draft")
	}
	return nil
}

package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/docstore"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/types"
)

const (
	profileCollection = "profile"
	profileDocID      = "details"
)

// Profile is the customer's saved contact and delivery details.
type Profile struct {
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Phone       string        `json:"phone"`
	Address     types.Address `json:"address"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// Input carries the fields written by Save. Empty strings are written as empty.
type Input struct {
	Name    string
	Email   string
	Phone   string
	Address types.Address
}

// Store is the profile persistence surface used by checkout.
type Store interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Save(ctx context.Context, userID string, input Input) (Profile, error)
}

// Service reads and upserts profiles at users/{id}/profile/details.
type Service struct {
	store docstore.Store
	scope string
	now   func() time.Time
}

// NewService binds profiles to a document store scope.
func NewService(store docstore.Store, scope string) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store required")
	}
	return &Service{store: store, scope: scope, now: time.Now}, nil
}

func (s *Service) path(userID string) string {
	return docstore.UserDoc(s.scope, userID, profileCollection, profileDocID)
}

// Get returns the stored profile, or an empty profile when none exists yet.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	doc, err := s.store.Get(ctx, s.path(userID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Profile{}, nil
		}
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	var p Profile
	if err := doc.Decode(&p); err != nil {
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode profile")
	}
	return p, nil
}

// Save merge-writes name, email, phone, address and lastUpdated; any other field
// already on the document survives.
func (s *Service) Save(ctx context.Context, userID string, input Input) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required")
	}
	p := Profile{
		Name:        strings.TrimSpace(input.Name),
		Email:       strings.TrimSpace(input.Email),
		Phone:       strings.TrimSpace(input.Phone),
		Address:     input.Address.Normalized(),
		LastUpdated: s.now().UTC(),
	}
	fields, err := docstore.Encode(p)
	if err != nil {
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode profile")
	}
	if err := s.store.Merge(ctx, s.path(userID), fields); err != nil {
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save profile")
	}
	return p, nil
}

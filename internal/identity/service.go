package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgauth "github.com/acaifrutal/storefront-backend/pkg/auth"
	"github.com/acaifrutal/storefront-backend/pkg/config"
	"github.com/acaifrutal/storefront-backend/pkg/db"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/security"
	"github.com/google/uuid"
)

const invalidCredentialsMessage = "invalid credentials"

// Session is an issued identity token.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Identity    Identity  `json:"identity"`
}

// SignInResult is a new session plus the transition it caused, if any.
type SignInResult struct {
	Session
	Transition *Transition `json:"-"`
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email         string
	Password      string
	Name          string
	PreviousToken string
}

// Service signs identities in and out.
type Service interface {
	SignInAnonymous(ctx context.Context) (Session, error)
	Register(ctx context.Context, input RegisterInput) (SignInResult, error)
	SignIn(ctx context.Context, email, password, previousToken string) (SignInResult, error)
	SignOut(ctx context.Context, who Identity) error
	Resolve(ctx context.Context, token string) (Identity, error)
}

type accountStore interface {
	Create(ctx context.Context, account *Account) error
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type sessionStore interface {
	Start(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	Revoke(ctx context.Context, sessionID string) error
	HasSession(ctx context.Context, sessionID string) (bool, error)
}

// ServiceParams bundles the identity service dependencies.
type ServiceParams struct {
	Accounts   accountStore
	Sessions   sessionStore
	Stream     *Stream
	JWT        config.JWTConfig
	Password   config.PasswordConfig
	AdminEmail string
	Scope      string
	Logger     *logger.Logger
}

type service struct {
	accounts   accountStore
	sessions   sessionStore
	stream     *Stream
	jwtCfg     config.JWTConfig
	pwCfg      config.PasswordConfig
	adminEmail string
	scope      string
	logg       *logger.Logger
	now        func() time.Time
}

// NewService constructs the identity service.
func NewService(params ServiceParams) (Service, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Stream == nil {
		return nil, fmt.Errorf("identity stream is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		accounts:   params.Accounts,
		sessions:   params.Sessions,
		stream:     params.Stream,
		jwtCfg:     params.JWT,
		pwCfg:      params.Password,
		adminEmail: normalizeEmail(params.AdminEmail),
		scope:      params.Scope,
		logg:       logg,
		now:        time.Now,
	}, nil
}

func (s *service) SignInAnonymous(ctx context.Context) (Session, error) {
	return s.issue(ctx, Identity{ID: uuid.NewString(), Anonymous: true})
}

func (s *service) Register(ctx context.Context, input RegisterInput) (SignInResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return SignInResult{}, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if err := security.ValidatePassword(input.Password); err != nil {
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	now := s.now().UTC()
	account := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		LastLoginAt:  &now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			return SignInResult{}, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}
	return s.signInAccount(ctx, account, input.PreviousToken)
}

func (s *service) SignIn(ctx context.Context, email, password, previousToken string) (SignInResult, error) {
	normalized := normalizeEmail(email)
	if normalized == "" || password == "" {
		return SignInResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	account, err := s.accounts.FindByEmail(ctx, normalized)
	if err != nil {
		if db.IsNotFound(err) {
			return SignInResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	valid, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return SignInResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	s.maybeRehash(ctx, account, password)

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, s.now().UTC()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "identity.last_login_update_failed")
	}
	return s.signInAccount(ctx, account, previousToken)
}

func (s *service) SignOut(ctx context.Context, who Identity) error {
	if strings.TrimSpace(who.SessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")
	}
	if err := s.sessions.Revoke(ctx, who.SessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// Resolve validates the token and its live session.
func (s *service) Resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := pkgauth.ParseIdentityToken(s.jwtCfg, strings.TrimSpace(token))
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	live, err := s.sessions.HasSession(ctx, claims.SessionID())
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session lookup failed")
	}
	if !live {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}
	return Identity{
		ID:        claims.UserID,
		Anonymous: claims.Anonymous,
		Email:     claims.Email,
		Admin:     claims.Admin,
		SessionID: claims.SessionID(),
	}, nil
}

func (s *service) signInAccount(ctx context.Context, account *Account, previousToken string) (SignInResult, error) {
	who := Identity{ID: account.ID, Email: account.Email, Admin: s.isAdmin(account.Email)}
	session, err := s.issue(ctx, who)
	if err != nil {
		return SignInResult{}, err
	}
	result := SignInResult{Session: session}

	if previous := s.previousAnonymous(ctx, previousToken); previous != nil && previous.ID != who.ID {
		t := Transition{From: previous.ID, To: who.ID, Scope: s.scope}
		result.Transition = &t
		s.stream.Publish(t)
		if err := s.sessions.Revoke(ctx, previous.SessionID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "identity.anonymous_session_revoke_failed")
		}
	}
	return result, nil
}

// previousAnonymous resolves the token the device held before signing in. Only
// an anonymous identity counts; anything else yields nil.
func (s *service) previousAnonymous(ctx context.Context, token string) *Identity {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	claims, err := pkgauth.ParseIdentityToken(s.jwtCfg, strings.TrimSpace(token))
	if err != nil {
		s.logg.Debug(s.logg.WithField(ctx, "error", err.Error()), "identity.previous_token_ignored")
		return nil
	}
	if !claims.Anonymous {
		return nil
	}
	return &Identity{ID: claims.UserID, Anonymous: true, SessionID: claims.SessionID()}
}

func (s *service) issue(ctx context.Context, who Identity) (Session, error) {
	now := s.now().UTC()
	token, claims, err := pkgauth.MintIdentityToken(s.jwtCfg, now, pkgauth.IdentityPayload{
		UserID:    who.ID,
		Anonymous: who.Anonymous,
		Email:     who.Email,
		Admin:     who.Admin,
	})
	if err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	who.SessionID = claims.SessionID()
	if err := s.sessions.Start(ctx, who.SessionID, who.ID, claims.TTL(now)); err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	return Session{AccessToken: token, ExpiresAt: claims.ExpiresAt.Time, Identity: who}, nil
}

func (s *service) maybeRehash(ctx context.Context, account *Account, password string) {
	if !security.NeedsRehash(account.PasswordHash, s.pwCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.pwCfg)
	if err == nil {
		err = s.accounts.UpdatePasswordHash(ctx, account.ID, hash)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "identity.rehash_failed")
	}
}

func (s *service) isAdmin(email string) bool {
	return s.adminEmail != "" && normalizeEmail(email) == s.adminEmail
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

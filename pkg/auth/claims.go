package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// IdentityPayload captures the data available when minting an identity token.
type IdentityPayload struct {
	UserID    string
	Anonymous bool
	Email     string
	Admin     bool
	// SessionID becomes the jti; an empty value gets a fresh one.
	SessionID string
}

// IdentityClaims is the typed JWT issued to storefront clients. Anonymous
// identities carry no email and can never be admins.
type IdentityClaims struct {
	UserID    string `json:"uid"`
	Anonymous bool   `json:"anon"`
	Email     string `json:"email,omitempty"`
	Admin     bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// SessionID returns the jti the session manager tracks.
func (c *IdentityClaims) SessionID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

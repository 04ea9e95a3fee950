// Package identity signs customers in, anonymously or with email and password,
// and announces anonymous to authenticated transitions.
package identity

import "strings"

// Identity is the caller behind a request.
type Identity struct {
	ID        string `json:"id"`
	Anonymous bool   `json:"anonymous"`
	Email     string `json:"email,omitempty"`
	Admin     bool   `json:"admin"`
	SessionID string `json:"-"`
}

// Authenticated reports whether the identity signed in with credentials.
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.ID) != "" && !i.Anonymous
}

// Transition records an anonymous identity becoming an authenticated one on the
// same device.
type Transition struct {
	From  string
	To    string
	Scope string
}

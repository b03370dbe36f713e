// Package domain contains the core data types for the Wayfarer marketplace.
// It depends only on uuid and x/text and is imported by every other internal package
// (auth, repo, service, handler, session, gate).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which business line an account belongs to.
// It is fixed when the account is created; switching business line needs a new account.
type Role string

const (
	RoleTraveler Role = "traveler"
	RoleAgency   Role = "agency"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTraveler, RoleAgency, RoleAdmin:
		return true
	}
	return false
}

// Account is the identity owned by the authentication provider.
// ConfirmedAt is nil until the email address has been confirmed.
type Account struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Caller is the authenticated principal performing a service operation.
// The zero value is an anonymous caller.
type Caller struct {
	AccountID uuid.UUID
	Role      Role
}

// Authenticated reports whether c carries an identity.
func (c Caller) Authenticated() bool {
	return c.AccountID != uuid.Nil
}

// Is reports whether c is authenticated with one of the given roles.
func (c Caller) Is(roles ...Role) bool {
	if !c.Authenticated() {
		return false
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// Session is an issued credential pair. AccessToken is short-lived; the
// RefreshToken rotates on every refresh.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Account      Account   `json:"account"`
}

// Expired reports whether the access token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

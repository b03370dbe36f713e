package domain

import (
	"time"

	"github.com/google/uuid"
)

// AgencyStatus is the administrative standing of a travel agency.
type AgencyStatus string

const (
	AgencyPending   AgencyStatus = "pending"
	AgencyActive    AgencyStatus = "active"
	AgencySuspended AgencyStatus = "suspended"
)

// Valid reports whether s is a known agency status.
func (s AgencyStatus) Valid() bool {
	switch s {
	case AgencyPending, AgencyActive, AgencySuspended:
		return true
	}
	return false
}

// Profile is the role-specific record attached to an account.
// Exactly one of Traveler or Agency is set for those roles; admins have neither.
type Profile struct {
	AccountID uuid.UUID       `json:"account_id"`
	Role      Role            `json:"role"`
	Email     string          `json:"email"`
	Traveler  *TravelerFields `json:"traveler,omitempty"`
	Agency    *AgencyFields   `json:"agency,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TravelerFields are the columns of the travelers table.
type TravelerFields struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AgencyFields are the columns of the travel_agencies table.
type AgencyFields struct {
	CompanyName      string       `json:"company_name"`
	Description      string       `json:"description,omitempty"`
	ContactFirstName string       `json:"contact_person_first_name"`
	ContactLastName  string       `json:"contact_person_last_name"`
	Phone            string       `json:"phone,omitempty"`
	AvatarURL        string       `json:"avatar_url,omitempty"`
	CommissionRate   float64      `json:"commission_rate"`
	Verified         bool         `json:"verified"`
	Status           AgencyStatus `json:"status"`
}

// ProfilePatch is a role-agnostic partial profile update as sent by a client.
// Nil fields are left unchanged. Traveler-only and agency-only fields are
// ignored for the other role.
type ProfilePatch struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil &&
		p.AvatarURL == nil && p.CompanyName == nil && p.Description == nil
}

// TravelerPatch is a partial update of the travelers table.
type TravelerPatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
	AvatarURL *string
}

// AgencyPatch is a partial update of the travel_agencies table.
type AgencyPatch struct {
	CompanyName      *string
	Description      *string
	ContactFirstName *string
	ContactLastName  *string
	Phone            *string
	AvatarURL        *string
}

// SignUpMetadata is the role-specific data supplied at registration.
// The database trigger that creates the profile row reads it from the
// account's raw metadata.
type SignUpMetadata struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Package gate decides whether a session may enter a role-protected area.
// Decide is pure: it never navigates, it only says where to go.
package gate

import (
	"net/url"
	"path"
	"strings"

	"github.com/pkordes/wayfarer/internal/domain"
)

// Outcome is the kind of decision.
type Outcome int

const (
	// Wait means the session is still resolving; show nothing conclusive.
	Wait Outcome = iota
	Allow
	RedirectToAuth
	RedirectToDefault
)

func (o Outcome) String() string {
	switch o {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	case RedirectToAuth:
		return "redirect_to_auth"
	case RedirectToDefault:
		return "redirect_to_default"
	}
	return "unknown"
}

// AuthFlow selects which sign-in variant to present.
type AuthFlow string

const (
	FlowTraveler AuthFlow = "traveler"
	FlowAgency   AuthFlow = "agency"
)

// Auth page locations per flow.
const (
	TravelerAuthPath = "/auth"
	AgencyAuthPath   = "/auth/agency"
)

// Session is the part of the session state the gate looks at.
type Session struct {
	Loading bool
	Account *domain.Account
	Profile *domain.Profile
}

// Role is the role the session acts as: the profile's role once loaded,
// otherwise the account's.
func (s Session) Role() (domain.Role, bool) {
	if s.Account == nil {
		return "", false
	}
	if s.Profile != nil && s.Profile.Role != "" {
		return s.Profile.Role, true
	}
	if s.Account.Role != "" {
		return s.Account.Role, true
	}
	return "", false
}

// Decision is the result of Decide.
type Decision struct {
	Outcome Outcome `json:"-"`
	// Path is the redirect target; empty for Wait and Allow.
	Path string `json:"path,omitempty"`
	// IntendedPath is remembered on RedirectToAuth so the user can return after signing in.
	IntendedPath string   `json:"intended_path,omitempty"`
	AuthFlow     AuthFlow `json:"auth_flow,omitempty"`
}

// Location is Path with the intended path attached as a redirect query parameter.
func (d Decision) Location() string {
	if d.Outcome != RedirectToAuth || d.IntendedPath == "" {
		return d.Path
	}
	return d.Path + "?redirect=" + url.QueryEscape(d.IntendedPath)
}

// Decide returns Allow only for a resolved session whose role is required.
// Every other resolved case is a redirect.
func Decide(s Session, required domain.Role, requestedPath string) Decision {
	if s.Loading {
		return Decision{Outcome: Wait}
	}

	role, ok := s.Role()
	if !ok {
		flow := FlowTraveler
		path := TravelerAuthPath
		if required == domain.RoleAgency {
			flow = FlowAgency
			path = AgencyAuthPath
		}
		return Decision{Outcome: RedirectToAuth, Path: path, IntendedPath: requestedPath, AuthFlow: flow}
	}

	if role != required {
		return Decision{Outcome: RedirectToDefault, Path: DefaultPath(role)}
	}
	return Decision{Outcome: Allow}
}

// DefaultPath is the home area of role.
func DefaultPath(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "/admin"
	case domain.RoleAgency:
		return "/travel_agency"
	default:
		return "/traveler"
	}
}

// Allowed reports whether p lies in role's area. The path is cleaned first
// and prefixes match whole segments, so "/traveler/../admin" is an admin path
// and "/travelerX" belongs to nobody.
func Allowed(role domain.Role, p string) bool {
	p, _, _ = strings.Cut(p, "#")
	p, _, _ = strings.Cut(p, "?")
	if !strings.HasPrefix(p, "/") {
		return false
	}
	p = path.Clean(p)
	switch role {
	case domain.RoleAdmin:
		return under(p, "/admin")
	case domain.RoleAgency:
		return under(p, "/travel_agency") || under(p, "/packages")
	case domain.RoleTraveler:
		return p == "/" || under(p, "/traveler")
	}
	return false
}

func under(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// ResolvePostAuthRedirect returns intended when role may go there, otherwise
// role's default path.
func ResolvePostAuthRedirect(role domain.Role, intended string) string {
	if intended != "" && Allowed(role, intended) {
		return intended
	}
	return DefaultPath(role)
}

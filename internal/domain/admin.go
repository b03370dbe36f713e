package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionStatus is the state of an administrative to-do item.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionResolved  ActionStatus = "resolved"
	ActionDismissed ActionStatus = "dismissed"
)

// Valid reports whether s is a known action status.
func (s ActionStatus) Valid() bool {
	switch s {
	case ActionPending, ActionResolved, ActionDismissed:
		return true
	}
	return false
}

// Closes reports whether moving to s stamps the resolver and resolution time.
func (s ActionStatus) Closes() bool {
	return s == ActionResolved || s == ActionDismissed
}

// PendingAction is an item in the admin review queue, e.g. an agency awaiting
// verification or a package awaiting moderation.
type PendingAction struct {
	ID          uuid.UUID    `json:"id"`
	ActionType  string       `json:"action_type"`
	EntityType  string       `json:"entity_type"`
	EntityID    uuid.UUID    `json:"entity_id"`
	Description string       `json:"description,omitempty"`
	Status      ActionStatus `json:"status"`
	ResolvedBy  *uuid.UUID   `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ActivityLog is an audit entry for an admin mutation.
type ActivityLog struct {
	ID         uuid.UUID      `json:"id"`
	AdminID    uuid.UUID      `json:"admin_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   *uuid.UUID     `json:"entity_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AgencySummary is the admin view of an agency.
type AgencySummary struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	AgencyFields
	CreatedAt time.Time `json:"created_at"`
}

// AgencyCounts tallies agencies for the dashboard.
type AgencyCounts struct {
	Total     int `json:"total"`
	Verified  int `json:"verified"`
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Suspended int `json:"suspended"`
}

// PayoutSummary tallies payouts for the dashboard.
type PayoutSummary struct {
	PendingCount    int   `json:"pending_count"`
	PendingAmount   Money `json:"pending_amount"`
	ProcessedCount  int   `json:"processed_count"`
	ProcessedAmount Money `json:"processed_amount"`
}

// Dashboard is the admin overview combined from independent reads.
// The reads are not taken from a single snapshot.
type Dashboard struct {
	Agencies           AgencyCounts        `json:"agencies"`
	Packages           PackageStatusCounts `json:"packages"`
	Bookings           BookingStats        `json:"bookings"`
	Revenue            Money               `json:"revenue"`
	PlatformCommission Money               `json:"platform_commission"`
	Payouts            PayoutSummary       `json:"payouts"`
	OpenActions        int                 `json:"open_actions"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

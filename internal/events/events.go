// Package events publishes domain and auth events to a message broker.
// Delivery is best effort: publishers log failures and callers never fail an
// operation because an event could not be sent.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Routing keys published on the events exchange.
const (
	AuthSignedUp              = "auth.signed_up"
	AuthSignedIn              = "auth.signed_in"
	AuthSignedOut             = "auth.signed_out"
	AuthTokenRefreshed        = "auth.token_refreshed"
	AuthConfirmationRequested = "auth.confirmation_requested"
	AuthEmailConfirmed        = "auth.email_confirmed"
	PackageCreated            = "package.created"
	PackageStatusChanged      = "package.status_changed"
	BookingCreated            = "booking.created"
	BookingStatusChanged      = "booking.status_changed"
	PayoutsProcessed          = "payout.processed"
)

// Event is the JSON body of every published message.
type Event struct {
	Type       string         `json:"type"`
	ActorID    uuid.UUID      `json:"actor_id,omitempty"`
	EntityID   uuid.UUID      `json:"entity_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New builds an event stamped with the current time.
func New(typ string, actor, entity uuid.UUID, data map[string]any) Event {
	return Event{Type: typ, ActorID: actor, EntityID: entity, OccurredAt: time.Now().UTC(), Data: data}
}

// Publisher is implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Package service contains the business logic for the Wayfarer API.
// Services validate inputs, enforce role rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
//
// Every operation takes the domain.Caller explicitly. The HTTP middleware has
// already gated the route, but each operation re-checks the role it needs so
// services are safe to call from anywhere.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/events"
	"github.com/pkordes/wayfarer/internal/repo"
)

// Counters receives domain counter increments. *metrics.Metrics satisfies it.
type Counters interface {
	PackageCreated()
	BookingCreated()
	PartialWrite(batch string)
	PayoutCreated()
}

type nopCounters struct{}

func (nopCounters) PackageCreated()     {}
func (nopCounters) BookingCreated()     {}
func (nopCounters) PartialWrite(string) {}
func (nopCounters) PayoutCreated()      {}

// Hooks are the side channels shared by all services. Every field is
// optional; the zero value logs to slog.Default and drops everything else.
type Hooks struct {
	Log      *slog.Logger
	Events   events.Publisher
	Counters Counters
	// Activity receives an audit entry for every admin mutation.
	Activity repo.ActivityLogRepo
	// Now defaults to time.Now.
	Now func() time.Time
}

func (h Hooks) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

func (h Hooks) counters() Counters {
	if h.Counters == nil {
		return nopCounters{}
	}
	return h.Counters
}

func (h Hooks) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h Hooks) emit(ctx context.Context, typ string, actor, entity uuid.UUID, data map[string]any) {
	events.Emit(ctx, h.Events, h.logger(), events.New(typ, actor, entity, data))
}

// audit appends an activity log entry. Failures are logged and dropped so an
// audit outage never blocks an admin action.
func (h Hooks) audit(ctx context.Context, caller domain.Caller, action, entityType string, entityID *uuid.UUID, details map[string]any) {
	if h.Activity == nil {
		return
	}
	entry := domain.ActivityLog{
		AdminID:    caller.AccountID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	}
	if err := h.Activity.Append(ctx, entry); err != nil {
		h.logger().WarnContext(ctx, "activity log not written", "action", action, "error", err)
	}
}

// requireRole returns ErrNotAuthenticated for an anonymous caller and
// ErrAuthorization for a caller with none of roles.
func requireRole(caller domain.Caller, roles ...domain.Role) error {
	if !caller.Authenticated() {
		return domain.ErrNotAuthenticated
	}
	if !caller.Is(roles...) {
		return domain.ErrAuthorization
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

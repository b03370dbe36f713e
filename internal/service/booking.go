package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/events"
	"github.com/pkordes/wayfarer/internal/repo"
)

// BookingService implements the booking lifecycle. Booking status and
// payment status are separate axes and either may change without the other.
type BookingService struct {
	bookings repo.BookingRepo
	packages repo.PackageRepo
	hooks    Hooks
}

// NewBookingService constructs a BookingService backed by the provided repos.
func NewBookingService(bookings repo.BookingRepo, packages repo.PackageRepo, hooks Hooks) *BookingService {
	return &BookingService{bookings: bookings, packages: packages, hooks: hooks}
}

// CreateRequest records a traveler's booking request for a published package.
// The total is computed from the package's current base price; any total sent
// by the client is ignored. max_participants is not enforced.
func (s *BookingService) CreateRequest(ctx context.Context, caller domain.Caller, req domain.BookingRequest) (domain.Booking, error) {
	if err := requireRole(caller, domain.RoleTraveler); err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.CreateRequest: %w", err)
	}
	if req.Participants < 1 {
		return domain.Booking{}, fmt.Errorf("%w: participants must be at least 1", domain.ErrValidation)
	}
	if req.Participants > domain.ParticipantLimit {
		return domain.Booking{}, fmt.Errorf("%w: participants must be at most %d", domain.ErrValidation, domain.ParticipantLimit)
	}
	if req.BookingDate.IsZero() {
		return domain.Booking{}, fmt.Errorf("%w: booking_date is required", domain.ErrValidation)
	}

	pkg, err := s.packages.GetByID(ctx, req.PackageID)
	if err != nil || pkg.Status != domain.PackagePublished {
		if err == nil || isNotFound(err) {
			return domain.Booking{}, fmt.Errorf("%w: package not found", domain.ErrNotFound)
		}
		return domain.Booking{}, fmt.Errorf("service.BookingService.CreateRequest: %w", err)
	}

	total, ok := pkg.BasePrice.Times(req.Participants)
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: total price out of range", domain.ErrValidation)
	}

	created, err := s.bookings.Create(ctx, domain.Booking{
		PackageID:       pkg.ID,
		TravelerID:      caller.AccountID,
		BookingDate:     req.BookingDate,
		Participants:    req.Participants,
		TotalPrice:      total,
		SpecialRequests: req.SpecialRequests,
		Status:          domain.BookingPending,
		PaymentStatus:   domain.PaymentPending,
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.CreateRequest: %w", err)
	}
	s.hooks.counters().BookingCreated()
	s.hooks.emit(ctx, events.BookingCreated, caller.AccountID, created.ID, map[string]any{
		"package_id":  pkg.ID,
		"agency_id":   pkg.AgencyID,
		"total_price": created.TotalPrice,
	})
	return created, nil
}

// UpdateStatus changes the booking status, the payment status, or both.
// Nil leaves an axis unchanged. Only the agency that owns the booked package
// and administrators may call it; another agency sees not found.
func (s *BookingService) UpdateStatus(ctx context.Context, caller domain.Caller, id uuid.UUID,
	status *domain.BookingStatus, payment *domain.PaymentStatus) (domain.Booking, error) {
	if err := requireRole(caller, domain.RoleAgency, domain.RoleAdmin); err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.UpdateStatus: %w", err)
	}
	if status == nil && payment == nil {
		return domain.Booking{}, fmt.Errorf("%w: status or payment_status is required", domain.ErrValidation)
	}
	if status != nil && !status.Valid() {
		return domain.Booking{}, fmt.Errorf("%w: unknown booking status %q", domain.ErrValidation, *status)
	}
	if payment != nil && !payment.Valid() {
		return domain.Booking{}, fmt.Errorf("%w: unknown payment status %q", domain.ErrValidation, *payment)
	}

	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.UpdateStatus: %w", err)
	}
	if caller.Role == domain.RoleAgency && current.AgencyID != caller.AccountID {
		return domain.Booking{}, fmt.Errorf("service.BookingService.UpdateStatus: %w", domain.ErrNotFound)
	}

	result, err := s.bookings.UpdateStatus(ctx, id, status, payment)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.UpdateStatus: %w", err)
	}
	if caller.Role == domain.RoleAdmin {
		s.hooks.audit(ctx, caller, "booking_status_updated", "booking", &id, map[string]any{
			"status": result.Status, "payment_status": result.PaymentStatus,
		})
	}
	s.hooks.emit(ctx, events.BookingStatusChanged, caller.AccountID, id, map[string]any{
		"status": result.Status, "payment_status": result.PaymentStatus,
	})
	return result, nil
}

// ListForTraveler returns the caller's own bookings, newest first.
func (s *BookingService) ListForTraveler(ctx context.Context, caller domain.Caller) ([]domain.Booking, error) {
	if err := requireRole(caller, domain.RoleTraveler); err != nil {
		return nil, fmt.Errorf("service.BookingService.ListForTraveler: %w", err)
	}
	bookings, err := s.bookings.ListByTraveler(ctx, caller.AccountID)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.ListForTraveler: %w", err)
	}
	return bookings, nil
}

// ListForAgency returns the bookings on an agency's packages. Only the agency
// itself and administrators may call it.
func (s *BookingService) ListForAgency(ctx context.Context, caller domain.Caller, agencyID uuid.UUID) ([]domain.Booking, error) {
	if err := requireRole(caller, domain.RoleAgency, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.BookingService.ListForAgency: %w", err)
	}
	if caller.Role == domain.RoleAgency && caller.AccountID != agencyID {
		return nil, fmt.Errorf("service.BookingService.ListForAgency: %w", domain.ErrAuthorization)
	}
	bookings, err := s.bookings.ListByAgency(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.ListForAgency: %w", err)
	}
	return bookings, nil
}

// ListAll returns every booking. Admin only.
func (s *BookingService) ListAll(ctx context.Context, caller domain.Caller) ([]domain.Booking, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.BookingService.ListAll: %w", err)
	}
	bookings, err := s.bookings.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.ListAll: %w", err)
	}
	return bookings, nil
}

// Stats computes the admin booking counters. The month boundary is taken in loc.
func (s *BookingService) Stats(ctx context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.BookingStats, error) {
	bookings, err := s.ListAll(ctx, caller)
	if err != nil {
		return domain.BookingStats{}, fmt.Errorf("service.BookingService.Stats: %w", err)
	}
	return domain.ComputeBookingStats(bookings, now, loc), nil
}

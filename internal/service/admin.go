package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/events"
	"github.com/pkordes/wayfarer/internal/repo"
)

// AdminService aggregates across agencies, packages, bookings and payouts and
// carries the administrator-only mutations. Every mutation is recorded in the
// activity log on a best-effort basis.
type AdminService struct {
	profiles repo.ProfileRepo
	packages repo.PackageRepo
	bookings repo.BookingRepo
	payouts  repo.PayoutRepo
	actions  repo.PendingActionRepo
	activity repo.ActivityLogRepo
	hooks    Hooks
}

// AdminRepos groups the repositories AdminService reads from.
type AdminRepos struct {
	Profiles repo.ProfileRepo
	Packages repo.PackageRepo
	Bookings repo.BookingRepo
	Payouts  repo.PayoutRepo
	Actions  repo.PendingActionRepo
	Activity repo.ActivityLogRepo
}

// NewAdminService constructs an AdminService. When hooks.Activity is nil the
// activity repo from r is used for auditing.
func NewAdminService(r AdminRepos, hooks Hooks) *AdminService {
	if hooks.Activity == nil {
		hooks.Activity = r.Activity
	}
	return &AdminService{
		profiles: r.Profiles,
		packages: r.Packages,
		bookings: r.Bookings,
		payouts:  r.Payouts,
		actions:  r.Actions,
		activity: r.Activity,
		hooks:    hooks,
	}
}

// Dashboard combines five independent reads made in parallel. The reads are
// not taken from one snapshot, so the figures may disagree slightly under
// concurrent writes.
//
// Platform commission applies domain.DefaultCommissionRate to confirmed
// revenue, not each agency's own rate.
func (s *AdminService) Dashboard(ctx context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.Dashboard, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return domain.Dashboard{}, fmt.Errorf("service.AdminService.Dashboard: %w", err)
	}

	var (
		agencies []domain.AgencySummary
		packages []domain.Package
		bookings []domain.Booking
		payouts  []domain.Payout
		open     int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		agencies, err = s.profiles.ListAgencies(gctx)
		return err
	})
	g.Go(func() (err error) {
		packages, err = s.packages.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		bookings, err = s.bookings.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		payouts, err = s.payouts.List(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		open, err = s.actions.CountOpen(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, fmt.Errorf("service.AdminService.Dashboard: %w", err)
	}

	stats := domain.ComputeBookingStats(bookings, now, loc)
	return domain.Dashboard{
		Agencies:           countAgencies(agencies),
		Packages:           domain.CountPackages(packages),
		Bookings:           stats,
		Revenue:            stats.Revenue,
		PlatformCommission: stats.Revenue.Rate(domain.DefaultCommissionRate),
		Payouts:            summarizePayouts(payouts),
		OpenActions:        open,
		GeneratedAt:        now,
	}, nil
}

func countAgencies(agencies []domain.AgencySummary) domain.AgencyCounts {
	var c domain.AgencyCounts
	for _, a := range agencies {
		c.Total++
		if a.Verified {
			c.Verified++
		}
		switch a.Status {
		case domain.AgencyPending:
			c.Pending++
		case domain.AgencyActive:
			c.Active++
		case domain.AgencySuspended:
			c.Suspended++
		}
	}
	return c
}

func summarizePayouts(payouts []domain.Payout) domain.PayoutSummary {
	var s domain.PayoutSummary
	for _, p := range payouts {
		switch p.Status {
		case domain.PayoutPending:
			s.PendingCount++
			s.PendingAmount += p.Amount
		case domain.PayoutProcessed:
			s.ProcessedCount++
			s.ProcessedAmount += p.Amount
		}
	}
	return s
}

// ProcessPayouts marks the given pending payouts processed by the caller.
// Processing is irreversible; payouts already processed are left alone and
// not counted.
func (s *AdminService) ProcessPayouts(ctx context.Context, caller domain.Caller, ids []uuid.UUID) (int64, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return 0, fmt.Errorf("service.AdminService.ProcessPayouts: %w", err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: at least one payout id is required", domain.ErrValidation)
	}
	n, err := s.payouts.MarkProcessed(ctx, ids, caller.AccountID, s.hooks.now())
	if err != nil {
		return 0, fmt.Errorf("service.AdminService.ProcessPayouts: %w", err)
	}
	s.hooks.audit(ctx, caller, "payouts_processed", "payout", nil, map[string]any{
		"requested": len(ids), "processed": n,
	})
	s.hooks.emit(ctx, events.PayoutsProcessed, caller.AccountID, uuid.Nil, map[string]any{"ids": ids, "processed": n})
	return n, nil
}

// ResolvePendingAction moves a review item to status. Resolving or dismissing
// stamps the caller and the time; moving back to pending clears them.
func (s *AdminService) ResolvePendingAction(ctx context.Context, caller domain.Caller, id uuid.UUID, status domain.ActionStatus) (domain.PendingAction, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return domain.PendingAction{}, fmt.Errorf("service.AdminService.ResolvePendingAction: %w", err)
	}
	if !status.Valid() {
		return domain.PendingAction{}, fmt.Errorf("%w: unknown action status %q", domain.ErrValidation, status)
	}
	result, err := s.actions.SetStatus(ctx, id, status, caller.AccountID, s.hooks.now())
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("service.AdminService.ResolvePendingAction: %w", err)
	}
	s.hooks.audit(ctx, caller, "pending_action_"+string(status), "pending_action", &id, map[string]any{
		"action_type": result.ActionType,
	})
	return result, nil
}

// UpdateAgencyStatus changes an agency's status, its verification flag, or both.
func (s *AdminService) UpdateAgencyStatus(ctx context.Context, caller domain.Caller, id uuid.UUID,
	status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return domain.AgencySummary{}, fmt.Errorf("service.AdminService.UpdateAgencyStatus: %w", err)
	}
	if status == nil && verified == nil {
		return domain.AgencySummary{}, fmt.Errorf("%w: status or verified is required", domain.ErrValidation)
	}
	if status != nil && !status.Valid() {
		return domain.AgencySummary{}, fmt.Errorf("%w: unknown agency status %q", domain.ErrValidation, *status)
	}
	result, err := s.profiles.UpdateAgencyStatus(ctx, id, status, verified)
	if err != nil {
		return domain.AgencySummary{}, fmt.Errorf("service.AdminService.UpdateAgencyStatus: %w", err)
	}
	s.hooks.audit(ctx, caller, "agency_status_updated", "agency", &id, map[string]any{
		"status": result.Status, "verified": result.Verified,
	})
	return result, nil
}

// ListAgencies returns every agency, newest first.
func (s *AdminService) ListAgencies(ctx context.Context, caller domain.Caller) ([]domain.AgencySummary, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.AdminService.ListAgencies: %w", err)
	}
	agencies, err := s.profiles.ListAgencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.ListAgencies: %w", err)
	}
	return agencies, nil
}

// ListPayouts returns payouts, optionally only those with status.
func (s *AdminService) ListPayouts(ctx context.Context, caller domain.Caller, status *domain.PayoutStatus) ([]domain.Payout, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.AdminService.ListPayouts: %w", err)
	}
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown payout status %q", domain.ErrValidation, *status)
	}
	payouts, err := s.payouts.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.ListPayouts: %w", err)
	}
	return payouts, nil
}

// ListPendingActions returns review items, optionally only those with status.
func (s *AdminService) ListPendingActions(ctx context.Context, caller domain.Caller, status *domain.ActionStatus) ([]domain.PendingAction, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.AdminService.ListPendingActions: %w", err)
	}
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown action status %q", domain.ErrValidation, *status)
	}
	actions, err := s.actions.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.ListPendingActions: %w", err)
	}
	return actions, nil
}

// ListActivity returns one page of the admin activity log, newest first.
func (s *AdminService) ListActivity(ctx context.Context, caller domain.Caller, p domain.PaginationParams) (domain.Page[domain.ActivityLog], error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return domain.Page[domain.ActivityLog]{}, fmt.Errorf("service.AdminService.ListActivity: %w", err)
	}
	page, err := s.activity.List(ctx, p)
	if err != nil {
		return domain.Page[domain.ActivityLog]{}, fmt.Errorf("service.AdminService.ListActivity: %w", err)
	}
	return page, nil
}

// GeneratePayouts creates one pending payout per agency with confirmed
// revenue between start and end inclusive. The amount is the revenue less the
// agency's own commission rate, which is stored on the payout.
//
// It runs from the scheduler without a caller. Re-running for the same period
// creates nothing new; only newly created payouts are returned.
func (s *AdminService) GeneratePayouts(ctx context.Context, start, end time.Time) ([]domain.Payout, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: period end is before period start", domain.ErrValidation)
	}
	revenues, err := s.bookings.RevenueByAgency(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("service.AdminService.GeneratePayouts: %w", err)
	}

	created := []domain.Payout{}
	for _, r := range revenues {
		if r.Revenue <= 0 {
			continue
		}
		p, ok, err := s.payouts.Create(ctx, domain.Payout{
			AgencyID:       r.AgencyID,
			PeriodStart:    start,
			PeriodEnd:      end,
			Amount:         r.Revenue - r.Revenue.Rate(r.CommissionRate),
			CommissionRate: r.CommissionRate,
		})
		if err != nil {
			return created, fmt.Errorf("service.AdminService.GeneratePayouts: %w", err)
		}
		if !ok {
			continue
		}
		s.hooks.counters().PayoutCreated()
		created = append(created, p)
	}
	s.hooks.logger().InfoContext(ctx, "payouts generated",
		"period_start", start.Format(time.DateOnly),
		"period_end", end.Format(time.DateOnly),
		"agencies", len(revenues),
		"created", len(created),
	)
	return created, nil
}

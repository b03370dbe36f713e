package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/events"
	"github.com/pkordes/wayfarer/internal/repo"
)

// PackageService implements the package lifecycle: agency authoring,
// publication, admin moderation and traveler browsing.
type PackageService struct {
	packages  repo.PackageRepo
	itinerary repo.ItineraryRepo
	media     repo.MediaRepo
	actions   repo.PendingActionRepo
	hooks     Hooks
}

// NewPackageService constructs a PackageService backed by the provided repos.
func NewPackageService(packages repo.PackageRepo, itinerary repo.ItineraryRepo, media repo.MediaRepo,
	actions repo.PendingActionRepo, hooks Hooks) *PackageService {
	return &PackageService{packages: packages, itinerary: itinerary, media: media, actions: actions, hooks: hooks}
}

// Create persists a new draft package owned by the calling agency, then its
// itinerary and media batches.
//
// The three writes are independent. If a dependent batch fails, malformed
// itinerary days included, the package still exists and Create reports
// success; the failure is logged and counted as a partial write.
func (s *PackageService) Create(ctx context.Context, caller domain.Caller, in domain.NewPackage) (domain.Package, error) {
	if err := requireRole(caller, domain.RoleAgency); err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.Create: %w", err)
	}
	if err := validatePackage(in.Package); err != nil {
		return domain.Package{}, err
	}
	if err := validateMedia(in.Media); err != nil {
		return domain.Package{}, err
	}

	pkg := in.Package
	pkg.AgencyID = caller.AccountID
	pkg.Status = domain.PackageDraft
	created, err := s.packages.Create(ctx, pkg)
	if err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.Create: %w", err)
	}
	s.hooks.counters().PackageCreated()

	// Malformed days fail the itinerary batch only, like a rejected insert.
	if err := validateItinerary(in.Itinerary); err != nil {
		s.partialWrite(ctx, created.ID, "itinerary", err)
	} else if err := s.itinerary.CreateBatch(ctx, created.ID, in.Itinerary); err != nil {
		s.partialWrite(ctx, created.ID, "itinerary", err)
	}
	if err := s.media.CreateBatch(ctx, created.ID, in.Media); err != nil {
		s.partialWrite(ctx, created.ID, "media", err)
	}

	s.hooks.emit(ctx, events.PackageCreated, caller.AccountID, created.ID, map[string]any{"title": created.Title})
	return created, nil
}

func (s *PackageService) partialWrite(ctx context.Context, packageID uuid.UUID, batch string, err error) {
	pw := &domain.PartialWriteError{Entity: "package", EntityID: packageID, Batch: batch, Err: err}
	s.hooks.logger().ErrorContext(ctx, "dependent write failed", "package_id", packageID, "batch", batch, "error", pw)
	s.hooks.counters().PartialWrite(batch)
}

// Update overwrites the content fields of a package owned by the caller.
// Status and featured are not touched.
func (s *PackageService) Update(ctx context.Context, caller domain.Caller, pkg domain.Package) (domain.Package, error) {
	if _, err := s.owned(ctx, caller, pkg.ID); err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.Update: %w", err)
	}
	if err := validatePackage(pkg); err != nil {
		return domain.Package{}, err
	}
	result, err := s.packages.Update(ctx, pkg)
	if err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.Update: %w", err)
	}
	return result, nil
}

// ReplaceItinerary swaps the whole itinerary of an owned package.
func (s *PackageService) ReplaceItinerary(ctx context.Context, caller domain.Caller, packageID uuid.UUID, days []domain.ItineraryDay) error {
	if _, err := s.owned(ctx, caller, packageID); err != nil {
		return fmt.Errorf("service.PackageService.ReplaceItinerary: %w", err)
	}
	if err := validateItinerary(days); err != nil {
		return err
	}
	if err := s.itinerary.Replace(ctx, packageID, days); err != nil {
		return fmt.Errorf("service.PackageService.ReplaceItinerary: %w", err)
	}
	return nil
}

// AddMedia appends media items to an owned package. A new primary item is
// rejected when the package already has one; use SetPrimaryMedia instead.
func (s *PackageService) AddMedia(ctx context.Context, caller domain.Caller, packageID uuid.UUID, items []domain.MediaItem) error {
	if _, err := s.owned(ctx, caller, packageID); err != nil {
		return fmt.Errorf("service.PackageService.AddMedia: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one media item is required", domain.ErrValidation)
	}
	if err := validateMedia(items); err != nil {
		return err
	}
	if hasPrimary(items) {
		existing, err := s.media.ListByPackage(ctx, packageID)
		if err != nil {
			return fmt.Errorf("service.PackageService.AddMedia: %w", err)
		}
		if hasPrimary(existing) {
			return fmt.Errorf("%w: package already has a primary media item", domain.ErrValidation)
		}
	}
	if err := s.media.CreateBatch(ctx, packageID, items); err != nil {
		return fmt.Errorf("service.PackageService.AddMedia: %w", err)
	}
	return nil
}

// SetPrimaryMedia makes mediaID the package's only primary item.
func (s *PackageService) SetPrimaryMedia(ctx context.Context, caller domain.Caller, packageID, mediaID uuid.UUID) error {
	if _, err := s.owned(ctx, caller, packageID); err != nil {
		return fmt.Errorf("service.PackageService.SetPrimaryMedia: %w", err)
	}
	if err := s.media.SetPrimary(ctx, packageID, mediaID); err != nil {
		return fmt.Errorf("service.PackageService.SetPrimaryMedia: %w", err)
	}
	return nil
}

// Publish makes an owned package visible to travelers.
func (s *PackageService) Publish(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error) {
	return s.ownerTransition(ctx, caller, id, domain.PackagePublished, "service.PackageService.Publish")
}

// Withdraw moves an owned package back to draft.
func (s *PackageService) Withdraw(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error) {
	return s.ownerTransition(ctx, caller, id, domain.PackageDraft, "service.PackageService.Withdraw")
}

// SubmitForReview moves an owned package to pending and queues a moderation
// item for administrators.
func (s *PackageService) SubmitForReview(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error) {
	pkg, err := s.ownerTransition(ctx, caller, id, domain.PackagePending, "service.PackageService.SubmitForReview")
	if err != nil {
		return domain.Package{}, err
	}
	if s.actions != nil {
		_, err := s.actions.Create(ctx, domain.PendingAction{
			ActionType:  "package_review",
			EntityType:  "package",
			EntityID:    pkg.ID,
			Description: fmt.Sprintf("Review package %q", pkg.Title),
			Status:      domain.ActionPending,
		})
		if err != nil {
			s.partialWrite(ctx, pkg.ID, "pending_action", err)
		}
	}
	return pkg, nil
}

func (s *PackageService) ownerTransition(ctx context.Context, caller domain.Caller, id uuid.UUID, to domain.PackageStatus, op string) (domain.Package, error) {
	current, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.Package{}, fmt.Errorf("%s: %w", op, err)
	}
	result, err := s.packages.SetStatus(ctx, id, to)
	if err != nil {
		return domain.Package{}, fmt.Errorf("%s: %w", op, err)
	}
	s.hooks.emit(ctx, events.PackageStatusChanged, caller.AccountID, id, map[string]any{
		"from": current.Status, "to": to,
	})
	return result, nil
}

// UpdateStatus lets an administrator set any status from any status.
func (s *PackageService) UpdateStatus(ctx context.Context, caller domain.Caller, id uuid.UUID, status domain.PackageStatus) (domain.Package, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.UpdateStatus: %w", err)
	}
	if !status.Valid() {
		return domain.Package{}, fmt.Errorf("%w: unknown package status %q", domain.ErrValidation, status)
	}
	result, err := s.packages.SetStatus(ctx, id, status)
	if err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.UpdateStatus: %w", err)
	}
	s.hooks.audit(ctx, caller, "package_status_updated", "package", &id, map[string]any{"status": status})
	s.hooks.emit(ctx, events.PackageStatusChanged, caller.AccountID, id, map[string]any{"to": status})
	return result, nil
}

// ToggleFeatured sets the featured flag. Admin only.
func (s *PackageService) ToggleFeatured(ctx context.Context, caller domain.Caller, id uuid.UUID, featured bool) (domain.Package, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.ToggleFeatured: %w", err)
	}
	result, err := s.packages.SetFeatured(ctx, id, featured)
	if err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.ToggleFeatured: %w", err)
	}
	s.hooks.audit(ctx, caller, "package_featured_updated", "package", &id, map[string]any{"featured": featured})
	return result, nil
}

// Get returns a package with its itinerary and media.
// A package that is not published is reported as not found unless the caller
// owns it or is an administrator.
func (s *PackageService) Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.PackageDetail, error) {
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return domain.PackageDetail{}, fmt.Errorf("service.PackageService.Get: %w", err)
	}
	if pkg.Status != domain.PackagePublished && !canManage(caller, pkg) {
		return domain.PackageDetail{}, fmt.Errorf("service.PackageService.Get: %w", domain.ErrNotFound)
	}
	days, err := s.itinerary.ListByPackage(ctx, id)
	if err != nil {
		return domain.PackageDetail{}, fmt.Errorf("service.PackageService.Get: %w", err)
	}
	media, err := s.media.ListByPackage(ctx, id)
	if err != nil {
		return domain.PackageDetail{}, fmt.Errorf("service.PackageService.Get: %w", err)
	}
	pkg.PrimaryMedia = domain.EffectivePrimary(media)
	return domain.PackageDetail{Package: pkg, Itinerary: days, Media: media}, nil
}

// ListForAgency returns every package of an agency. Only the agency itself
// and administrators may call it.
func (s *PackageService) ListForAgency(ctx context.Context, caller domain.Caller, agencyID uuid.UUID) ([]domain.Package, error) {
	if err := requireRole(caller, domain.RoleAgency, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.PackageService.ListForAgency: %w", err)
	}
	if caller.Role == domain.RoleAgency && caller.AccountID != agencyID {
		return nil, fmt.Errorf("service.PackageService.ListForAgency: %w", domain.ErrAuthorization)
	}
	pkgs, err := s.packages.ListByAgency(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("service.PackageService.ListForAgency: %w", err)
	}
	return pkgs, nil
}

// ListPublished returns the published packages matching filter, with their
// effective primary media. Open to anonymous callers.
func (s *PackageService) ListPublished(ctx context.Context, filter domain.PackageFilter) ([]domain.Package, error) {
	pkgs, err := s.packages.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.PackageService.ListPublished: %w", err)
	}
	return filter.Apply(pkgs), nil
}

// ListAll returns every package. Admin only.
func (s *PackageService) ListAll(ctx context.Context, caller domain.Caller) ([]domain.Package, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.PackageService.ListAll: %w", err)
	}
	pkgs, err := s.packages.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.PackageService.ListAll: %w", err)
	}
	return pkgs, nil
}

// StatusCounts tallies every package by status. Admin only.
func (s *PackageService) StatusCounts(ctx context.Context, caller domain.Caller) (domain.PackageStatusCounts, error) {
	pkgs, err := s.ListAll(ctx, caller)
	if err != nil {
		return domain.PackageStatusCounts{}, fmt.Errorf("service.PackageService.StatusCounts: %w", err)
	}
	return domain.CountPackages(pkgs), nil
}

// owned loads a package the calling agency owns. Another agency's package
// is reported as not found.
func (s *PackageService) owned(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error) {
	if err := requireRole(caller, domain.RoleAgency); err != nil {
		return domain.Package{}, err
	}
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return domain.Package{}, err
	}
	if pkg.AgencyID != caller.AccountID {
		return domain.Package{}, domain.ErrNotFound
	}
	return pkg, nil
}

func canManage(caller domain.Caller, pkg domain.Package) bool {
	if caller.Is(domain.RoleAdmin) {
		return true
	}
	return caller.Is(domain.RoleAgency) && caller.AccountID == pkg.AgencyID
}

func hasPrimary(items []domain.MediaItem) bool {
	for _, m := range items {
		if m.IsPrimary {
			return true
		}
	}
	return false
}

// validatePackage enforces the basic info and pricing rules shared by
// Create and Update.
func validatePackage(p domain.Package) error {
	var problems []string
	if strings.TrimSpace(p.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(p.Destination) == "" {
		problems = append(problems, "destination is required")
	}
	if p.DurationDays < 1 {
		problems = append(problems, "duration_days must be at least 1")
	}
	if p.DurationNights < 0 {
		problems = append(problems, "duration_nights must not be negative")
	}
	if p.MaxParticipants < 1 || p.MaxParticipants > domain.ParticipantLimit {
		problems = append(problems, "max_participants must be between 1 and 2147483647")
	}
	if p.BasePrice < 0 {
		problems = append(problems, "base_price must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func validateItinerary(days []domain.ItineraryDay) error {
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d.DayNumber < 1 {
			return fmt.Errorf("%w: day_number must be at least 1", domain.ErrValidation)
		}
		if seen[d.DayNumber] {
			return fmt.Errorf("%w: duplicate day_number %d", domain.ErrValidation, d.DayNumber)
		}
		seen[d.DayNumber] = true
		if strings.TrimSpace(d.Title) == "" {
			return fmt.Errorf("%w: day %d title is required", domain.ErrValidation, d.DayNumber)
		}
	}
	return nil
}

func validateMedia(items []domain.MediaItem) error {
	primaries := 0
	for _, m := range items {
		if strings.TrimSpace(m.FileURL) == "" {
			return fmt.Errorf("%w: media file_url is required", domain.ErrValidation)
		}
		if m.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return fmt.Errorf("%w: at most one media item may be primary", domain.ErrValidation)
	}
	return nil
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/repo"
)

// ProfileService reads profiles and routes role-agnostic profile patches to
// the role table that backs them.
type ProfileService struct {
	profiles repo.ProfileRepo
}

// NewProfileService constructs a ProfileService backed by the provided repo.
func NewProfileService(profiles repo.ProfileRepo) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Get returns the profile of accountID. Callers may read their own profile;
// administrators may read any. Returns domain.ErrNotFound until the sign-up
// trigger has created the row.
func (s *ProfileService) Get(ctx context.Context, caller domain.Caller, accountID uuid.UUID) (domain.Profile, error) {
	if !caller.Authenticated() {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Get: %w", domain.ErrNotAuthenticated)
	}
	if caller.AccountID != accountID && caller.Role != domain.RoleAdmin {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Get: %w", domain.ErrAuthorization)
	}
	p, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Get: %w", err)
	}
	return p, nil
}

// Update applies patch to the caller's own profile and returns the whole
// profile as re-read after the write.
//
// Travelers map first/last name one to one; agencies store them as the
// contact person. Administrator profiles have no editable fields.
func (s *ProfileService) Update(ctx context.Context, caller domain.Caller, patch domain.ProfilePatch) (domain.Profile, error) {
	if !caller.Authenticated() {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Update: %w", domain.ErrNotAuthenticated)
	}
	if patch.Empty() {
		return domain.Profile{}, fmt.Errorf("%w: no profile fields to update", domain.ErrValidation)
	}

	var err error
	switch caller.Role {
	case domain.RoleTraveler:
		if patch.CompanyName != nil || patch.Description != nil {
			return domain.Profile{}, fmt.Errorf("%w: company_name and description apply to agencies only", domain.ErrValidation)
		}
		err = s.profiles.UpdateTraveler(ctx, caller.AccountID, domain.TravelerPatch{
			FirstName: patch.FirstName,
			LastName:  patch.LastName,
			Phone:     patch.Phone,
			AvatarURL: patch.AvatarURL,
		})
	case domain.RoleAgency:
		err = s.profiles.UpdateAgency(ctx, caller.AccountID, domain.AgencyPatch{
			CompanyName:      patch.CompanyName,
			Description:      patch.Description,
			ContactFirstName: patch.FirstName,
			ContactLastName:  patch.LastName,
			Phone:            patch.Phone,
			AvatarURL:        patch.AvatarURL,
		})
	default:
		return domain.Profile{}, fmt.Errorf("%w: %s profiles have no editable fields", domain.ErrValidation, caller.Role)
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Update: %w", err)
	}

	p, err := s.profiles.GetByAccountID(ctx, caller.AccountID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Update: %w", err)
	}
	return p, nil
}

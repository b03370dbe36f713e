package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// ProfileRepo reads the profiles view and writes the role tables behind it.
type ProfileRepo interface {
	// GetByAccountID returns domain.ErrNotFound while the sign-up trigger has
	// not yet produced the profile row.
	GetByAccountID(ctx context.Context, id uuid.UUID) (domain.Profile, error)

	// UpdateTraveler applies the non-nil fields of patch to the travelers row.
	UpdateTraveler(ctx context.Context, id uuid.UUID, patch domain.TravelerPatch) error

	// UpdateAgency applies the non-nil fields of patch to the travel_agencies row.
	UpdateAgency(ctx context.Context, id uuid.UUID, patch domain.AgencyPatch) error

	// ListAgencies returns every agency ordered by creation time, newest first.
	ListAgencies(ctx context.Context) ([]domain.AgencySummary, error)

	// UpdateAgencyStatus changes the administrative status and/or verification flag.
	UpdateAgencyStatus(ctx context.Context, id uuid.UUID, status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error)
}

type pgProfileRepo struct {
	db db
}

// NewProfileRepo constructs a ProfileRepo backed by the provided db connection.
func NewProfileRepo(db db) ProfileRepo {
	return &pgProfileRepo{db: db}
}

func (r *pgProfileRepo) GetByAccountID(ctx context.Context, id uuid.UUID) (domain.Profile, error) {
	const q = `
		SELECT id, role, email, first_name, last_name, phone, avatar_url,
		       company_name, description, commission_rate, is_verified, agency_status,
		       created_at, updated_at
		FROM profiles
		WHERE id = @id`

	var p domain.Profile
	var pid pgtype.UUID
	var role, first, last, phone, avatar string
	var company, description, agencyStatus string
	var rate float64
	var verified bool
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}).Scan(
		&pid, &role, &p.Email, &first, &last, &phone, &avatar,
		&company, &description, &rate, &verified, &agencyStatus,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.GetByAccountID: %w", notFound(err))
	}
	p.AccountID = uuid.UUID(pid.Bytes)
	p.Role = domain.Role(role)

	switch p.Role {
	case domain.RoleTraveler:
		p.Traveler = &domain.TravelerFields{FirstName: first, LastName: last, Phone: phone, AvatarURL: avatar}
	case domain.RoleAgency:
		p.Agency = &domain.AgencyFields{
			CompanyName:      company,
			Description:      description,
			ContactFirstName: first,
			ContactLastName:  last,
			Phone:            phone,
			AvatarURL:        avatar,
			CommissionRate:   rate,
			Verified:         verified,
			Status:           domain.AgencyStatus(agencyStatus),
		}
	}
	return p, nil
}

func (r *pgProfileRepo) UpdateTraveler(ctx context.Context, id uuid.UUID, patch domain.TravelerPatch) error {
	const q = `
		UPDATE travelers
		SET first_name = COALESCE(@first_name, first_name),
		    last_name  = COALESCE(@last_name, last_name),
		    phone      = COALESCE(@phone, phone),
		    avatar_url = COALESCE(@avatar_url, avatar_url),
		    updated_at = now()
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"id":         id,
		"first_name": patch.FirstName,
		"last_name":  patch.LastName,
		"phone":      patch.Phone,
		"avatar_url": patch.AvatarURL,
	})
	if err != nil {
		return fmt.Errorf("repo.ProfileRepo.UpdateTraveler: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ProfileRepo.UpdateTraveler: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgProfileRepo) UpdateAgency(ctx context.Context, id uuid.UUID, patch domain.AgencyPatch) error {
	const q = `
		UPDATE travel_agencies
		SET company_name              = COALESCE(@company_name, company_name),
		    description               = COALESCE(@description, description),
		    contact_person_first_name = COALESCE(@contact_first_name, contact_person_first_name),
		    contact_person_last_name  = COALESCE(@contact_last_name, contact_person_last_name),
		    phone                     = COALESCE(@phone, phone),
		    avatar_url                = COALESCE(@avatar_url, avatar_url),
		    updated_at                = now()
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"id":                 id,
		"company_name":       patch.CompanyName,
		"description":        patch.Description,
		"contact_first_name": patch.ContactFirstName,
		"contact_last_name":  patch.ContactLastName,
		"phone":              patch.Phone,
		"avatar_url":         patch.AvatarURL,
	})
	if err != nil {
		return fmt.Errorf("repo.ProfileRepo.UpdateAgency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ProfileRepo.UpdateAgency: %w", domain.ErrNotFound)
	}
	return nil
}

const agencySummaryColumns = `
	g.id, a.email, g.company_name, g.description,
	g.contact_person_first_name, g.contact_person_last_name, g.phone, g.avatar_url,
	g.commission_rate, g.is_verified, g.status, g.created_at`

func (r *pgProfileRepo) ListAgencies(ctx context.Context) ([]domain.AgencySummary, error) {
	const q = `
		SELECT ` + agencySummaryColumns + `
		FROM travel_agencies g
		JOIN auth_accounts a ON a.id = g.id
		ORDER BY g.created_at DESC`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.ProfileRepo.ListAgencies: %w", err)
	}
	agencies, err := collect(rows, scanAgencySummary)
	if err != nil {
		return nil, fmt.Errorf("repo.ProfileRepo.ListAgencies: scan: %w", err)
	}
	return agencies, nil
}

func (r *pgProfileRepo) UpdateAgencyStatus(ctx context.Context, id uuid.UUID, status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error) {
	const q = `
		WITH g AS (
			UPDATE travel_agencies
			SET status      = COALESCE(@status, status),
			    is_verified = COALESCE(@verified, is_verified),
			    updated_at  = now()
			WHERE id = @id
			RETURNING *
		)
		SELECT ` + agencySummaryColumns + `
		FROM g
		JOIN auth_accounts a ON a.id = g.id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"id":       id,
		"status":   textPtr(status),
		"verified": verified,
	})
	summary, err := scanAgencySummary(row)
	if err != nil {
		return domain.AgencySummary{}, fmt.Errorf("repo.ProfileRepo.UpdateAgencyStatus: %w", notFound(err))
	}
	return summary, nil
}

func scanAgencySummary(s scanner) (domain.AgencySummary, error) {
	var (
		a      domain.AgencySummary
		id     pgtype.UUID
		status string
	)
	err := s.Scan(&id, &a.Email, &a.CompanyName, &a.Description,
		&a.ContactFirstName, &a.ContactLastName, &a.Phone, &a.AvatarURL,
		&a.CommissionRate, &a.Verified, &status, &a.CreatedAt)
	if err != nil {
		return domain.AgencySummary{}, err
	}
	a.AccountID = uuid.UUID(id.Bytes)
	a.Status = domain.AgencyStatus(status)
	return a, nil
}

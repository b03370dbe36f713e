package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// PayoutRepo defines the persistence operations for agency payouts.
type PayoutRepo interface {
	// Create inserts a pending payout. If a payout already exists for the same
	// agency and period, nothing is written and created is false.
	Create(ctx context.Context, p domain.Payout) (payout domain.Payout, created bool, err error)

	// List returns payouts, optionally filtered by status, newest first.
	List(ctx context.Context, status *domain.PayoutStatus) ([]domain.Payout, error)

	// MarkProcessed stamps the given payouts as processed by actor at at.
	// Only payouts still pending are touched; the number updated is returned.
	MarkProcessed(ctx context.Context, ids []uuid.UUID, actor uuid.UUID, at time.Time) (int64, error)
}

type pgPayoutRepo struct {
	db db
}

// NewPayoutRepo constructs a PayoutRepo backed by the provided db connection.
func NewPayoutRepo(db db) PayoutRepo {
	return &pgPayoutRepo{db: db}
}

const payoutColumns = `
	id, agency_id, period_start, period_end, amount_cents, commission_rate::float8,
	status, processed_at, processed_by, created_at`

func (r *pgPayoutRepo) Create(ctx context.Context, p domain.Payout) (domain.Payout, bool, error) {
	const q = `
		INSERT INTO agency_payouts (agency_id, period_start, period_end, amount_cents, commission_rate)
		VALUES (@agency_id, @period_start, @period_end, @amount_cents, @commission_rate)
		ON CONFLICT (agency_id, period_start, period_end) DO NOTHING
		RETURNING ` + payoutColumns

	args := pgx.NamedArgs{
		"agency_id":       p.AgencyID,
		"period_start":    pgtype.Date{Time: p.PeriodStart, Valid: true},
		"period_end":      pgtype.Date{Time: p.PeriodEnd, Valid: true},
		"amount_cents":    int64(p.Amount),
		"commission_rate": p.CommissionRate,
	}

	result, err := scanPayout(r.db.QueryRow(ctx, q, args))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payout{}, false, nil
		}
		return domain.Payout{}, false, fmt.Errorf("repo.PayoutRepo.Create: %w", err)
	}
	return result, true, nil
}

func (r *pgPayoutRepo) List(ctx context.Context, status *domain.PayoutStatus) ([]domain.Payout, error) {
	const q = `
		SELECT ` + payoutColumns + `
		FROM agency_payouts
		WHERE @status::text IS NULL OR status = @status
		ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"status": textPtr(status)})
	if err != nil {
		return nil, fmt.Errorf("repo.PayoutRepo.List: %w", err)
	}
	payouts, err := collect(rows, scanPayout)
	if err != nil {
		return nil, fmt.Errorf("repo.PayoutRepo.List: scan: %w", err)
	}
	return payouts, nil
}

func (r *pgPayoutRepo) MarkProcessed(ctx context.Context, ids []uuid.UUID, actor uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const q = `
		UPDATE agency_payouts
		SET status = 'processed', processed_at = @at, processed_by = @actor
		WHERE id = ANY(@ids::uuid[]) AND status = 'pending'`

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"ids": idStrings, "actor": actor, "at": at})
	if err != nil {
		return 0, fmt.Errorf("repo.PayoutRepo.MarkProcessed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPayout(s scanner) (domain.Payout, error) {
	var (
		p                      domain.Payout
		id, agencyID           pgtype.UUID
		periodStart, periodEnd pgtype.Date
		cents                  int64
		status                 string
		processedAt            pgtype.Timestamptz
		processedBy            pgtype.UUID
	)
	err := s.Scan(&id, &agencyID, &periodStart, &periodEnd, &cents, &p.CommissionRate,
		&status, &processedAt, &processedBy, &p.CreatedAt)
	if err != nil {
		return domain.Payout{}, err
	}
	p.ID = uuid.UUID(id.Bytes)
	p.AgencyID = uuid.UUID(agencyID.Bytes)
	p.PeriodStart = periodStart.Time
	p.PeriodEnd = periodEnd.Time
	p.Amount = domain.Money(cents)
	p.Status = domain.PayoutStatus(status)
	p.ProcessedAt = timePtr(processedAt)
	p.ProcessedBy = uuidPtr(processedBy)
	return p, nil
}

package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// ItineraryRepo persists the itinerary days owned by a package.
type ItineraryRepo interface {
	// CreateBatch inserts all days for a package in one round trip.
	// A failing row fails the whole batch.
	CreateBatch(ctx context.Context, packageID uuid.UUID, days []domain.ItineraryDay) error

	// Replace deletes the package's days and inserts days in their place.
	Replace(ctx context.Context, packageID uuid.UUID, days []domain.ItineraryDay) error

	// ListByPackage returns the package's days ordered by day number.
	ListByPackage(ctx context.Context, packageID uuid.UUID) ([]domain.ItineraryDay, error)
}

type pgItineraryRepo struct {
	db db
}

// NewItineraryRepo constructs an ItineraryRepo backed by the provided db connection.
func NewItineraryRepo(db db) ItineraryRepo {
	return &pgItineraryRepo{db: db}
}

const insertItineraryDay = `
	INSERT INTO itineraries (
		package_id, day_number, title, description, activities,
		meals_included, accommodation, transportation)
	VALUES (
		@package_id, @day_number, @title, @description, @activities,
		@meals_included, @accommodation, @transportation)`

func (r *pgItineraryRepo) CreateBatch(ctx context.Context, packageID uuid.UUID, days []domain.ItineraryDay) error {
	if len(days) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	queueItineraryDays(b, packageID, days)
	if err := execBatch(ctx, r.db, b); err != nil {
		return fmt.Errorf("repo.ItineraryRepo.CreateBatch: %w", err)
	}
	return nil
}

// Replace sends the delete and the inserts as one batch, which Postgres runs
// in a single implicit transaction.
func (r *pgItineraryRepo) Replace(ctx context.Context, packageID uuid.UUID, days []domain.ItineraryDay) error {
	b := &pgx.Batch{}
	b.Queue(`DELETE FROM itineraries WHERE package_id = @package_id`, pgx.NamedArgs{"package_id": packageID})
	queueItineraryDays(b, packageID, days)
	if err := execBatch(ctx, r.db, b); err != nil {
		return fmt.Errorf("repo.ItineraryRepo.Replace: %w", err)
	}
	return nil
}

func (r *pgItineraryRepo) ListByPackage(ctx context.Context, packageID uuid.UUID) ([]domain.ItineraryDay, error) {
	const q = `
		SELECT id, package_id, day_number, title, description, activities,
		       meals_included, accommodation, transportation
		FROM itineraries
		WHERE package_id = @package_id
		ORDER BY day_number`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"package_id": packageID})
	if err != nil {
		return nil, fmt.Errorf("repo.ItineraryRepo.ListByPackage: %w", err)
	}
	days, err := collect(rows, scanItineraryDay)
	if err != nil {
		return nil, fmt.Errorf("repo.ItineraryRepo.ListByPackage: scan: %w", err)
	}
	return days, nil
}

func queueItineraryDays(b *pgx.Batch, packageID uuid.UUID, days []domain.ItineraryDay) {
	for _, d := range days {
		b.Queue(insertItineraryDay, pgx.NamedArgs{
			"package_id":     packageID,
			"day_number":     d.DayNumber,
			"title":          d.Title,
			"description":    d.Description,
			"activities":     nonNil(d.Activities),
			"meals_included": nonNil(d.Meals),
			"accommodation":  d.Accommodation,
			"transportation": d.Transportation,
		})
	}
}

func scanItineraryDay(s scanner) (domain.ItineraryDay, error) {
	var (
		d             domain.ItineraryDay
		id, packageID pgtype.UUID
	)
	err := s.Scan(&id, &packageID, &d.DayNumber, &d.Title, &d.Description,
		&d.Activities, &d.Meals, &d.Accommodation, &d.Transportation)
	if err != nil {
		return domain.ItineraryDay{}, err
	}
	d.ID = uuid.UUID(id.Bytes)
	d.PackageID = uuid.UUID(packageID.Bytes)
	return d, nil
}

// execBatch sends b and checks every queued statement's result.
func execBatch(ctx context.Context, conn db, b *pgx.Batch) error {
	results := conn.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return results.Close()
}

package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// MediaRepo persists the media items owned by a package.
type MediaRepo interface {
	// CreateBatch inserts all items for a package in one round trip.
	CreateBatch(ctx context.Context, packageID uuid.UUID, items []domain.MediaItem) error

	// ListByPackage returns the package's media ordered by display order.
	ListByPackage(ctx context.Context, packageID uuid.UUID) ([]domain.MediaItem, error)

	// SetPrimary makes mediaID the only primary item of the package.
	// Returns domain.ErrNotFound if the item does not belong to the package.
	SetPrimary(ctx context.Context, packageID, mediaID uuid.UUID) error
}

type pgMediaRepo struct {
	db db
}

// NewMediaRepo constructs a MediaRepo backed by the provided db connection.
func NewMediaRepo(db db) MediaRepo {
	return &pgMediaRepo{db: db}
}

func (r *pgMediaRepo) CreateBatch(ctx context.Context, packageID uuid.UUID, items []domain.MediaItem) error {
	if len(items) == 0 {
		return nil
	}
	const q = `
		INSERT INTO package_media (package_id, file_url, media_type, caption, is_primary, display_order)
		VALUES (@package_id, @file_url, @media_type, @caption, @is_primary, @display_order)`

	b := &pgx.Batch{}
	for _, m := range items {
		mediaType := m.MediaType
		if mediaType == "" {
			mediaType = "image"
		}
		b.Queue(q, pgx.NamedArgs{
			"package_id":    packageID,
			"file_url":      m.FileURL,
			"media_type":    mediaType,
			"caption":       m.Caption,
			"is_primary":    m.IsPrimary,
			"display_order": m.DisplayOrder,
		})
	}
	if err := execBatch(ctx, r.db, b); err != nil {
		return fmt.Errorf("repo.MediaRepo.CreateBatch: %w", err)
	}
	return nil
}

func (r *pgMediaRepo) ListByPackage(ctx context.Context, packageID uuid.UUID) ([]domain.MediaItem, error) {
	const q = `
		SELECT id, package_id, file_url, media_type, caption, is_primary, display_order
		FROM package_media
		WHERE package_id = @package_id
		ORDER BY display_order, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"package_id": packageID})
	if err != nil {
		return nil, fmt.Errorf("repo.MediaRepo.ListByPackage: %w", err)
	}
	items, err := collect(rows, scanMediaItem)
	if err != nil {
		return nil, fmt.Errorf("repo.MediaRepo.ListByPackage: scan: %w", err)
	}
	return items, nil
}

// SetPrimary clears the old primary before setting the new one; the partial
// unique index rejects two primaries even transiently within one statement.
func (r *pgMediaRepo) SetPrimary(ctx context.Context, packageID, mediaID uuid.UUID) error {
	args := pgx.NamedArgs{"package_id": packageID, "media_id": mediaID}

	b := &pgx.Batch{}
	b.Queue(`UPDATE package_media SET is_primary = false
		WHERE package_id = @package_id AND is_primary AND id <> @media_id`, args)
	set := b.Queue(`UPDATE package_media SET is_primary = true
		WHERE package_id = @package_id AND id = @media_id`, args)

	var affected int64
	set.Exec(func(tag pgconn.CommandTag) error {
		affected = tag.RowsAffected()
		return nil
	})
	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("repo.MediaRepo.SetPrimary: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("repo.MediaRepo.SetPrimary: %w", domain.ErrNotFound)
	}
	return nil
}

func scanMediaItem(s scanner) (domain.MediaItem, error) {
	var (
		m             domain.MediaItem
		id, packageID pgtype.UUID
	)
	err := s.Scan(&id, &packageID, &m.FileURL, &m.MediaType, &m.Caption, &m.IsPrimary, &m.DisplayOrder)
	if err != nil {
		return domain.MediaItem{}, err
	}
	m.ID = uuid.UUID(id.Bytes)
	m.PackageID = uuid.UUID(packageID.Bytes)
	return m, nil
}

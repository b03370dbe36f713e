package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// ContentRepo persists admin-managed static pages.
type ContentRepo interface {
	// Get returns domain.ErrNotFound if no page has the slug.
	Get(ctx context.Context, slug string) (domain.ContentPage, error)

	// List returns every page ordered by slug.
	List(ctx context.Context) ([]domain.ContentPage, error)

	// Upsert creates the page or replaces its title, body and published flag.
	Upsert(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error)
}

type pgContentRepo struct {
	db db
}

// NewContentRepo constructs a ContentRepo backed by the provided db connection.
func NewContentRepo(db db) ContentRepo {
	return &pgContentRepo{db: db}
}

const contentColumns = `slug, title, body, published, updated_by, updated_at`

func (r *pgContentRepo) Get(ctx context.Context, slug string) (domain.ContentPage, error) {
	const q = `SELECT ` + contentColumns + ` FROM content_pages WHERE slug = @slug`

	page, err := scanContentPage(r.db.QueryRow(ctx, q, pgx.NamedArgs{"slug": slug}))
	if err != nil {
		return domain.ContentPage{}, fmt.Errorf("repo.ContentRepo.Get: %w", notFound(err))
	}
	return page, nil
}

func (r *pgContentRepo) List(ctx context.Context) ([]domain.ContentPage, error) {
	const q = `SELECT ` + contentColumns + ` FROM content_pages ORDER BY slug`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.ContentRepo.List: %w", err)
	}
	pages, err := collect(rows, scanContentPage)
	if err != nil {
		return nil, fmt.Errorf("repo.ContentRepo.List: scan: %w", err)
	}
	return pages, nil
}

func (r *pgContentRepo) Upsert(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error) {
	const q = `
		INSERT INTO content_pages (slug, title, body, published, updated_by)
		VALUES (@slug, @title, @body, @published, @updated_by)
		ON CONFLICT (slug) DO UPDATE
		SET title      = EXCLUDED.title,
		    body       = EXCLUDED.body,
		    published  = EXCLUDED.published,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = now()
		RETURNING ` + contentColumns

	args := pgx.NamedArgs{
		"slug":       page.Slug,
		"title":      page.Title,
		"body":       page.Body,
		"published":  page.Published,
		"updated_by": page.UpdatedBy,
	}
	result, err := scanContentPage(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.ContentPage{}, fmt.Errorf("repo.ContentRepo.Upsert: %w", err)
	}
	return result, nil
}

func scanContentPage(s scanner) (domain.ContentPage, error) {
	var (
		p         domain.ContentPage
		updatedBy pgtype.UUID
	)
	if err := s.Scan(&p.Slug, &p.Title, &p.Body, &p.Published, &updatedBy, &p.UpdatedAt); err != nil {
		return domain.ContentPage{}, err
	}
	p.UpdatedBy = uuidPtr(updatedBy)
	return p, nil
}

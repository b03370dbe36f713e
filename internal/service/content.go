package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/repo"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ContentService manages the admin-edited static pages.
type ContentService struct {
	pages repo.ContentRepo
	hooks Hooks
}

// NewContentService constructs a ContentService backed by the provided repo.
func NewContentService(pages repo.ContentRepo, hooks Hooks) *ContentService {
	return &ContentService{pages: pages, hooks: hooks}
}

// Get returns a page by slug. Unpublished pages are only visible to
// administrators; everyone else gets domain.ErrNotFound.
func (s *ContentService) Get(ctx context.Context, caller domain.Caller, slug string) (domain.ContentPage, error) {
	page, err := s.pages.Get(ctx, slug)
	if err != nil {
		return domain.ContentPage{}, fmt.Errorf("service.ContentService.Get: %w", err)
	}
	if !page.Published && !caller.Is(domain.RoleAdmin) {
		return domain.ContentPage{}, fmt.Errorf("service.ContentService.Get: %w", domain.ErrNotFound)
	}
	return page, nil
}

// List returns every page, published or not. Admin only.
func (s *ContentService) List(ctx context.Context, caller domain.Caller) ([]domain.ContentPage, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.ContentService.List: %w", err)
	}
	pages, err := s.pages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.ContentService.List: %w", err)
	}
	return pages, nil
}

// Upsert creates or replaces the page at page.Slug. Admin only.
func (s *ContentService) Upsert(ctx context.Context, caller domain.Caller, page domain.ContentPage) (domain.ContentPage, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return domain.ContentPage{}, fmt.Errorf("service.ContentService.Upsert: %w", err)
	}
	page.Slug = strings.TrimSpace(page.Slug)
	if !slugPattern.MatchString(page.Slug) {
		return domain.ContentPage{}, fmt.Errorf("%w: slug must be lowercase words joined by hyphens", domain.ErrValidation)
	}
	if strings.TrimSpace(page.Title) == "" {
		return domain.ContentPage{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	actor := caller.AccountID
	page.UpdatedBy = &actor

	result, err := s.pages.Upsert(ctx, page)
	if err != nil {
		return domain.ContentPage{}, fmt.Errorf("service.ContentService.Upsert: %w", err)
	}
	s.hooks.audit(ctx, caller, "content_page_saved", "content_page", nil, map[string]any{
		"slug": result.Slug, "published": result.Published,
	})
	return result, nil
}

package service

import (
	"context"
	"fmt"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/repo"
)

// ExportService assembles the flat admin booking export.
type ExportService struct {
	bookings repo.BookingRepo
}

// NewExportService constructs an ExportService backed by the provided repo.
func NewExportService(bookings repo.BookingRepo) *ExportService {
	return &ExportService{bookings: bookings}
}

// Bookings returns one row per booking, newest first. Admin only.
// Always returns a non-nil slice so an empty export still renders a header.
func (s *ExportService) Bookings(ctx context.Context, caller domain.Caller) ([]domain.BookingExportRow, error) {
	if err := requireRole(caller, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("service.ExportService.Bookings: %w", err)
	}
	rows, err := s.bookings.ListExportRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Bookings: %w", err)
	}
	if rows == nil {
		return []domain.BookingExportRow{}, nil
	}
	return rows, nil
}

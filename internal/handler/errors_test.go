package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/wayfarer/internal/domain"
)

func TestUnwrapMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     string
	}{
		{"nil", nil, domain.ErrValidation, ""},
		{"service prefix", fmt.Errorf("service.BookingService.CreateRequest: %w: participants must be at least 1", domain.ErrValidation), domain.ErrValidation, "participants must be at least 1"},
		{"double wrap", fmt.Errorf("outer: %w", fmt.Errorf("inner: %w: title is required", domain.ErrValidation)), domain.ErrValidation, "title is required"},
		{"bare sentinel", fmt.Errorf("repo.PackageRepo.GetByID: %w", domain.ErrNotFound), domain.ErrNotFound, "not found"},
		{"sentinel alone", domain.ErrNotAuthenticated, domain.ErrNotAuthenticated, "not authenticated"},
		{"unrelated", errors.New("boom"), domain.ErrValidation, "validation error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, unwrapMessage(tc.err, tc.sentinel))
		})
	}
}

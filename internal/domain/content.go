package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentPage is an admin-managed static page, addressed by slug.
type ContentPage struct {
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Published bool       `json:"published"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

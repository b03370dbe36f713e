package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// PackageFilter holds the traveler-facing search criteria.
// Zero values mean "no constraint".
type PackageFilter struct {
	// Search matches title OR description OR destination, case-insensitively.
	Search string
	// Destination is a case-insensitive substring match on the destination.
	Destination string
	// Category and Difficulty are exact matches.
	Category   string
	Difficulty string
	// MinPrice and MaxPrice bound the base price, both inclusive.
	MinPrice *Money
	MaxPrice *Money
	// DurationDays is an exact match on the number of days.
	DurationDays *int
}

// Apply returns the published packages in pkgs that satisfy f, in input order.
// Packages in any other status are dropped regardless of the criteria.
func (f PackageFilter) Apply(pkgs []Package) []Package {
	fold := cases.Fold()
	search := fold.String(strings.TrimSpace(f.Search))
	dest := fold.String(strings.TrimSpace(f.Destination))

	out := []Package{}
	for _, p := range pkgs {
		if p.Status != PackagePublished {
			continue
		}
		if search != "" &&
			!strings.Contains(fold.String(p.Title), search) &&
			!strings.Contains(fold.String(p.Description), search) &&
			!strings.Contains(fold.String(p.Destination), search) {
			continue
		}
		if dest != "" && !strings.Contains(fold.String(p.Destination), dest) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Difficulty != "" && p.Difficulty != f.Difficulty {
			continue
		}
		if f.MinPrice != nil && p.BasePrice < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.BasePrice > *f.MaxPrice {
			continue
		}
		if f.DurationDays != nil && p.DurationDays != *f.DurationDays {
			continue
		}
		out = append(out, p)
	}
	return out
}

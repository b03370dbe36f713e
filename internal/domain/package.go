package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// PackageStatus is the publication state of a package.
// Any status may follow any other; there is no transition table.
type PackageStatus string

const (
	PackageDraft     PackageStatus = "draft"
	PackagePending   PackageStatus = "pending"
	PackagePublished PackageStatus = "published"
)

// Valid reports whether s is one of the three package statuses.
func (s PackageStatus) Valid() bool {
	switch s {
	case PackageDraft, PackagePending, PackagePublished:
		return true
	}
	return false
}

// Package is a sellable travel product authored by an agency.
// PrimaryMedia is only populated by list projections that join media.
type Package struct {
	ID                 uuid.UUID     `json:"id"`
	AgencyID           uuid.UUID     `json:"agency_id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Destination        string        `json:"destination"`
	Category           string        `json:"category,omitempty"`
	Difficulty         string        `json:"difficulty_level,omitempty"`
	DurationDays       int           `json:"duration_days"`
	DurationNights     int           `json:"duration_nights"`
	MaxParticipants    int           `json:"max_participants"`
	BasePrice          Money         `json:"base_price"`
	Featured           bool          `json:"featured"`
	Status             PackageStatus `json:"status"`
	Inclusions         []string      `json:"inclusions"`
	Exclusions         []string      `json:"exclusions"`
	CancellationPolicy string        `json:"cancellation_policy,omitempty"`
	Terms              string        `json:"terms,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	PrimaryMedia       *MediaItem    `json:"primary_media,omitempty"`
}

// ItineraryDay is one day of a package's programme.
// DayNumber is unique within a package.
type ItineraryDay struct {
	ID             uuid.UUID `json:"id"`
	PackageID      uuid.UUID `json:"package_id"`
	DayNumber      int       `json:"day_number"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Activities     []string  `json:"activities"`
	Meals          []string  `json:"meals_included"`
	Accommodation  string    `json:"accommodation,omitempty"`
	Transportation string    `json:"transportation,omitempty"`
}

// MediaItem references a stored file attached to a package.
// At most one item per package has IsPrimary set.
type MediaItem struct {
	ID           uuid.UUID `json:"id"`
	PackageID    uuid.UUID `json:"package_id"`
	FileURL      string    `json:"file_url"`
	MediaType    string    `json:"media_type"`
	Caption      string    `json:"caption,omitempty"`
	IsPrimary    bool      `json:"is_primary"`
	DisplayOrder int       `json:"display_order"`
}

// PackageDetail is a package together with its owned rows.
type PackageDetail struct {
	Package   Package        `json:"package"`
	Itinerary []ItineraryDay `json:"itinerary"`
	Media     []MediaItem    `json:"media"`
}

// NewPackage is the input to package creation: the basic info and pricing
// (carried on Package) plus the dependent itinerary and media batches.
type NewPackage struct {
	Package   Package
	Itinerary []ItineraryDay
	Media     []MediaItem
}

// EffectivePrimary returns the item flagged primary, or the first item by
// display order when none is flagged. It returns nil for an empty slice.
func EffectivePrimary(items []MediaItem) *MediaItem {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].IsPrimary {
			m := items[i]
			return &m
		}
	}
	sorted := make([]MediaItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayOrder < sorted[j].DisplayOrder
	})
	m := sorted[0]
	return &m
}

// PackageStatusCounts is the number of packages in each status.
type PackageStatusCounts struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Pending   int `json:"pending"`
	Published int `json:"published"`
	Featured  int `json:"featured"`
}

// CountPackages tallies pkgs by status and featured flag.
func CountPackages(pkgs []Package) PackageStatusCounts {
	var c PackageStatusCounts
	for _, p := range pkgs {
		c.Total++
		switch p.Status {
		case PackageDraft:
			c.Draft++
		case PackagePending:
			c.Pending++
		case PackagePublished:
			c.Published++
		}
		if p.Featured {
			c.Featured++
		}
	}
	return c
}

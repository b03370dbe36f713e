package domain

import "time"

// BookingExportRow is a single row in the admin booking export.
// It is a flat, denormalized view: one row per booking with the package and
// traveler fields repeated on every row.
type BookingExportRow struct {
	BookingID     string
	CreatedAt     time.Time
	BookingDate   string // "2006-01-02" formatted date
	PackageID     string
	PackageTitle  string
	AgencyID      string
	TravelerID    string
	TravelerEmail string
	Participants  int
	TotalPrice    Money
	Status        BookingStatus
	PaymentStatus PaymentStatus
}

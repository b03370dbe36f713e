package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the approval state of a booking request.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

// PaymentStatus tracks payment independently of BookingStatus.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

// Booking is a traveler's request to buy a package for a date.
// TotalPrice is a snapshot taken at creation and never recomputed.
// PackageTitle and AgencyID are filled by read projections that join packages.
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	PackageID       uuid.UUID     `json:"package_id"`
	TravelerID      uuid.UUID     `json:"traveler_id"`
	BookingDate     time.Time     `json:"booking_date"`
	Participants    int           `json:"participants"`
	TotalPrice      Money         `json:"total_price"`
	SpecialRequests string        `json:"special_requests,omitempty"`
	Status          BookingStatus `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	PackageTitle    string        `json:"package_title,omitempty"`
	AgencyID        uuid.UUID     `json:"agency_id,omitempty"`
}

// ParticipantLimit is the largest participant count the store can hold.
const ParticipantLimit = math.MaxInt32

// BookingRequest is the traveler input to booking creation.
// ClientTotal is accepted for wire compatibility and never used.
type BookingRequest struct {
	PackageID       uuid.UUID
	BookingDate     time.Time
	Participants    int
	SpecialRequests string
	ClientTotal     *Money
}

// BookingStats are the admin counters over all bookings.
type BookingStats struct {
	Total     int   `json:"total"`
	Confirmed int   `json:"confirmed"`
	Pending   int   `json:"pending"`
	Cancelled int   `json:"cancelled"`
	ThisMonth int   `json:"this_month"`
	Revenue   Money `json:"revenue"`
}

// StartOfMonth returns the first instant of now's calendar month in loc.
func StartOfMonth(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
}

// ComputeBookingStats scans bookings once. Revenue counts confirmed bookings only.
func ComputeBookingStats(bookings []Booking, now time.Time, loc *time.Location) BookingStats {
	monthStart := StartOfMonth(now, loc)
	var s BookingStats
	for _, b := range bookings {
		s.Total++
		switch b.Status {
		case BookingConfirmed:
			s.Confirmed++
			s.Revenue += b.TotalPrice
		case BookingPending:
			s.Pending++
		case BookingCancelled:
			s.Cancelled++
		}
		if !b.CreatedAt.Before(monthStart) {
			s.ThisMonth++
		}
	}
	return s
}

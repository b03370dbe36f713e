package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// BookingRepo defines the persistence operations for bookings.
type BookingRepo interface {
	// Create inserts a booking. TotalPrice must already be computed by the caller.
	Create(ctx context.Context, b domain.Booking) (domain.Booking, error)

	// GetByID returns the booking with its package title and owning agency.
	// Returns domain.ErrNotFound if the booking does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// UpdateStatus sets whichever of status and payment are non-nil.
	// Returns domain.ErrNotFound if the booking does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status *domain.BookingStatus, payment *domain.PaymentStatus) (domain.Booking, error)

	// ListByTraveler returns the traveler's bookings, newest first.
	ListByTraveler(ctx context.Context, travelerID uuid.UUID) ([]domain.Booking, error)

	// ListByAgency returns bookings for packages owned by the agency, newest first.
	ListByAgency(ctx context.Context, agencyID uuid.UUID) ([]domain.Booking, error)

	// ListAll returns every booking, newest first.
	ListAll(ctx context.Context) ([]domain.Booking, error)

	// ListExportRows returns the flat export projection of every booking.
	ListExportRows(ctx context.Context) ([]domain.BookingExportRow, error)

	// RevenueByAgency sums confirmed bookings whose booking date falls in
	// [from, to], grouped by owning agency.
	RevenueByAgency(ctx context.Context, from, to time.Time) ([]domain.AgencyRevenue, error)
}

type pgBookingRepo struct {
	db db
}

// NewBookingRepo constructs a BookingRepo backed by the provided db connection.
func NewBookingRepo(db db) BookingRepo {
	return &pgBookingRepo{db: db}
}

const bookingColumns = `
	b.id, b.package_id, b.traveler_id, b.booking_date, b.participants,
	b.total_price_cents, b.special_requests, b.status, b.payment_status,
	b.created_at, b.updated_at, p.title, p.agency_id`

const bookingSelect = `
	SELECT ` + bookingColumns + `
	FROM package_bookings b
	JOIN packages p ON p.id = b.package_id`

func (r *pgBookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	const q = `
		WITH b AS (
			INSERT INTO package_bookings (
				package_id, traveler_id, booking_date, participants,
				total_price_cents, special_requests, status, payment_status)
			VALUES (
				@package_id, @traveler_id, @booking_date, @participants,
				@total_price_cents, @special_requests, @status, @payment_status)
			RETURNING *
		)
		SELECT ` + bookingColumns + `
		FROM b
		JOIN packages p ON p.id = b.package_id`

	args := pgx.NamedArgs{
		"package_id":        b.PackageID,
		"traveler_id":       b.TravelerID,
		"booking_date":      pgtype.Date{Time: b.BookingDate, Valid: true},
		"participants":      b.Participants,
		"total_price_cents": int64(b.TotalPrice),
		"special_requests":  b.SpecialRequests,
		"status":            string(b.Status),
		"payment_status":    string(b.PaymentStatus),
	}

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.Create: %w", notFound(err))
	}
	return result, nil
}

func (r *pgBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	q := bookingSelect + ` WHERE b.id = @id`

	result, err := scanBooking(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.GetByID: %w", notFound(err))
	}
	return result, nil
}

func (r *pgBookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status *domain.BookingStatus, payment *domain.PaymentStatus) (domain.Booking, error) {
	const q = `
		WITH b AS (
			UPDATE package_bookings
			SET status         = COALESCE(@status, status),
			    payment_status = COALESCE(@payment_status, payment_status),
			    updated_at     = now()
			WHERE id = @id
			RETURNING *
		)
		SELECT ` + bookingColumns + `
		FROM b
		JOIN packages p ON p.id = b.package_id`

	args := pgx.NamedArgs{
		"id":             id,
		"status":         textPtr(status),
		"payment_status": textPtr(payment),
	}

	result, err := scanBooking(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("repo.BookingRepo.UpdateStatus: %w", notFound(err))
	}
	return result, nil
}

func (r *pgBookingRepo) ListByTraveler(ctx context.Context, travelerID uuid.UUID) ([]domain.Booking, error) {
	q := bookingSelect + ` WHERE b.traveler_id = @traveler_id ORDER BY b.created_at DESC`
	return r.list(ctx, "ListByTraveler", q, pgx.NamedArgs{"traveler_id": travelerID})
}

func (r *pgBookingRepo) ListByAgency(ctx context.Context, agencyID uuid.UUID) ([]domain.Booking, error) {
	q := bookingSelect + ` WHERE p.agency_id = @agency_id ORDER BY b.created_at DESC`
	return r.list(ctx, "ListByAgency", q, pgx.NamedArgs{"agency_id": agencyID})
}

func (r *pgBookingRepo) ListAll(ctx context.Context) ([]domain.Booking, error) {
	q := bookingSelect + ` ORDER BY b.created_at DESC`
	return r.list(ctx, "ListAll", q, pgx.NamedArgs{})
}

func (r *pgBookingRepo) list(ctx context.Context, op, q string, args pgx.NamedArgs) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.%s: %w", op, err)
	}
	bookings, err := collect(rows, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.%s: scan: %w", op, err)
	}
	return bookings, nil
}

func (r *pgBookingRepo) ListExportRows(ctx context.Context) ([]domain.BookingExportRow, error) {
	const q = `
		SELECT b.id, b.created_at, b.booking_date, b.package_id, p.title, p.agency_id,
		       b.traveler_id, a.email, b.participants, b.total_price_cents,
		       b.status, b.payment_status
		FROM package_bookings b
		JOIN packages p ON p.id = b.package_id
		JOIN auth_accounts a ON a.id = b.traveler_id
		ORDER BY b.created_at, b.id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListExportRows: %w", err)
	}
	out, err := collect(rows, func(s scanner) (domain.BookingExportRow, error) {
		var (
			row                                 domain.BookingExportRow
			id, packageID, agencyID, travelerID pgtype.UUID
			bookingDate                         pgtype.Date
			cents                               int64
			status, payment                     string
		)
		err := s.Scan(&id, &row.CreatedAt, &bookingDate, &packageID, &row.PackageTitle,
			&agencyID, &travelerID, &row.TravelerEmail, &row.Participants, &cents,
			&status, &payment)
		if err != nil {
			return domain.BookingExportRow{}, err
		}
		row.BookingID = uuid.UUID(id.Bytes).String()
		row.PackageID = uuid.UUID(packageID.Bytes).String()
		row.AgencyID = uuid.UUID(agencyID.Bytes).String()
		row.TravelerID = uuid.UUID(travelerID.Bytes).String()
		row.BookingDate = bookingDate.Time.Format(time.DateOnly)
		row.TotalPrice = domain.Money(cents)
		row.Status = domain.BookingStatus(status)
		row.PaymentStatus = domain.PaymentStatus(payment)
		return row, nil
	})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.ListExportRows: scan: %w", err)
	}
	return out, nil
}

func (r *pgBookingRepo) RevenueByAgency(ctx context.Context, from, to time.Time) ([]domain.AgencyRevenue, error) {
	const q = `
		SELECT p.agency_id, SUM(b.total_price_cents)::bigint, COALESCE(ta.commission_rate, 0.12)::float8
		FROM package_bookings b
		JOIN packages p ON p.id = b.package_id
		LEFT JOIN travel_agencies ta ON ta.id = p.agency_id
		WHERE b.status = 'confirmed'
		  AND b.booking_date BETWEEN @from AND @to
		GROUP BY p.agency_id, ta.commission_rate
		ORDER BY p.agency_id`

	args := pgx.NamedArgs{
		"from": pgtype.Date{Time: from, Valid: true},
		"to":   pgtype.Date{Time: to, Valid: true},
	}
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.RevenueByAgency: %w", err)
	}
	out, err := collect(rows, func(s scanner) (domain.AgencyRevenue, error) {
		var (
			rev      domain.AgencyRevenue
			agencyID pgtype.UUID
			cents    int64
		)
		if err := s.Scan(&agencyID, &cents, &rev.CommissionRate); err != nil {
			return domain.AgencyRevenue{}, err
		}
		rev.AgencyID = uuid.UUID(agencyID.Bytes)
		rev.Revenue = domain.Money(cents)
		return rev, nil
	})
	if err != nil {
		return nil, fmt.Errorf("repo.BookingRepo.RevenueByAgency: scan: %w", err)
	}
	return out, nil
}

func scanBooking(s scanner) (domain.Booking, error) {
	var (
		b                                   domain.Booking
		id, packageID, travelerID, agencyID pgtype.UUID
		bookingDate                         pgtype.Date
		cents                               int64
		status, payment                     string
	)
	err := s.Scan(&id, &packageID, &travelerID, &bookingDate, &b.Participants,
		&cents, &b.SpecialRequests, &status, &payment,
		&b.CreatedAt, &b.UpdatedAt, &b.PackageTitle, &agencyID)
	if err != nil {
		return domain.Booking{}, err
	}
	b.ID = uuid.UUID(id.Bytes)
	b.PackageID = uuid.UUID(packageID.Bytes)
	b.TravelerID = uuid.UUID(travelerID.Bytes)
	b.AgencyID = uuid.UUID(agencyID.Bytes)
	b.BookingDate = bookingDate.Time
	b.TotalPrice = domain.Money(cents)
	b.Status = domain.BookingStatus(status)
	b.PaymentStatus = domain.PaymentStatus(payment)
	return b, nil
}

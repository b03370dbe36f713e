package handler

import (
	"net/http"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/middleware"
)

// createBookingRequest is the traveler's booking form. TotalPrice is accepted
// but never trusted; the total is recomputed from the package price.
type createBookingRequest struct {
	PackageID       uuid.UUID          `json:"package_id"`
	BookingDate     openapi_types.Date `json:"booking_date"`
	Participants    int                `json:"participants"`
	SpecialRequests string             `json:"special_requests"`
	TotalPrice      *domain.Money      `json:"total_price"`
}

// updateBookingRequest sets either status axis or both.
type updateBookingRequest struct {
	Status        *domain.BookingStatus `json:"status"`
	PaymentStatus *domain.PaymentStatus `json:"payment_status"`
}

// CreateBooking handles POST /api/bookings.
func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PackageID == uuid.Nil {
		requestError(w, "package_id is required")
		return
	}
	b, err := s.bookings.CreateRequest(r.Context(), middleware.CallerFrom(r.Context()), domain.BookingRequest{
		PackageID:       req.PackageID,
		BookingDate:     req.BookingDate.Time,
		Participants:    req.Participants,
		SpecialRequests: req.SpecialRequests,
		ClientTotal:     req.TotalPrice,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ListMyBookings handles GET /api/bookings.
func (s *Server) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.bookings.ListForTraveler(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateBookingStatus handles PATCH /api/bookings/{id}.
// Open to the owning agency and administrators.
func (s *Server) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req updateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.bookings.UpdateStatus(r.Context(), middleware.CallerFrom(r.Context()), id, req.Status, req.PaymentStatus)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListAgencyBookings handles GET /api/agency/bookings.
func (s *Server) ListAgencyBookings(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	list, err := s.bookings.ListForAgency(r.Context(), caller, caller.AccountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListAllBookings handles GET /api/admin/bookings.
func (s *Server) ListAllBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.bookings.ListAll(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetBookingStats handles GET /api/admin/bookings/stats.
func (s *Server) GetBookingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.bookings.Stats(r.Context(), middleware.CallerFrom(r.Context()), s.now(), s.loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/middleware"
)

type updateAgencyRequest struct {
	Status   *domain.AgencyStatus `json:"status"`
	Verified *bool                `json:"verified"`
}

type processPayoutsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type processPayoutsResponse struct {
	Processed int64 `json:"processed"`
}

type resolveActionRequest struct {
	Status domain.ActionStatus `json:"status"`
}

// GetDashboard handles GET /api/admin/dashboard.
func (s *Server) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.admin.Dashboard(r.Context(), middleware.CallerFrom(r.Context()), s.now(), s.loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListAgencies handles GET /api/admin/agencies.
func (s *Server) ListAgencies(w http.ResponseWriter, r *http.Request) {
	list, err := s.admin.ListAgencies(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateAgency handles PATCH /api/admin/agencies/{id}.
func (s *Server) UpdateAgency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req updateAgencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := s.admin.UpdateAgencyStatus(r.Context(), middleware.CallerFrom(r.Context()), id, req.Status, req.Verified)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListPayouts handles GET /api/admin/payouts?status=.
func (s *Server) ListPayouts(w http.ResponseWriter, r *http.Request) {
	var status *domain.PayoutStatus
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &status); err != nil {
		requestError(w, err.Error())
		return
	}
	list, err := s.admin.ListPayouts(r.Context(), middleware.CallerFrom(r.Context()), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ProcessPayouts handles POST /api/admin/payouts/process.
func (s *Server) ProcessPayouts(w http.ResponseWriter, r *http.Request) {
	var req processPayoutsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.admin.ProcessPayouts(r.Context(), middleware.CallerFrom(r.Context()), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processPayoutsResponse{Processed: n})
}

// ListPendingActions handles GET /api/admin/pending-actions?status=.
func (s *Server) ListPendingActions(w http.ResponseWriter, r *http.Request) {
	var status *domain.ActionStatus
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &status); err != nil {
		requestError(w, err.Error())
		return
	}
	list, err := s.admin.ListPendingActions(r.Context(), middleware.CallerFrom(r.Context()), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ResolvePendingAction handles PATCH /api/admin/pending-actions/{id}.
func (s *Server) ResolvePendingAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req resolveActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := s.admin.ResolvePendingAction(r.Context(), middleware.CallerFrom(r.Context()), id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListActivity handles GET /api/admin/activity?page=&limit=.
func (s *Server) ListActivity(w http.ResponseWriter, r *http.Request) {
	var page, limit *int
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &page); err != nil {
		requestError(w, err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		requestError(w, err.Error())
		return
	}
	res, err := s.admin.ListActivity(r.Context(), middleware.CallerFrom(r.Context()), domain.NewPaginationParams(page, limit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

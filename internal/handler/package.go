package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/middleware"
)

// createPackageRequest is a package's basic info and pricing plus the
// dependent itinerary and media batches, all submitted together.
type createPackageRequest struct {
	domain.Package
	Itinerary []domain.ItineraryDay `json:"itinerary"`
	Media     []domain.MediaItem    `json:"media"`
}

type packageStatusRequest struct {
	Status domain.PackageStatus `json:"status"`
}

type featuredRequest struct {
	Featured *bool `json:"featured"`
}

// listPackagesParams are the query parameters of GET /api/packages.
// Prices are in major units.
type listPackagesParams struct {
	Search       *string
	Destination  *string
	Category     *string
	Difficulty   *string
	MinPrice     *float64
	MaxPrice     *float64
	DurationDays *int
}

func bindListPackagesParams(r *http.Request) (listPackagesParams, error) {
	var p listPackagesParams
	q := r.URL.Query()
	binds := []struct {
		name string
		dst  any
	}{
		{"search", &p.Search},
		{"destination", &p.Destination},
		{"category", &p.Category},
		{"difficulty", &p.Difficulty},
		{"min_price", &p.MinPrice},
		{"max_price", &p.MaxPrice},
		{"duration_days", &p.DurationDays},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dst); err != nil {
			return listPackagesParams{}, err
		}
	}
	return p, nil
}

func (p listPackagesParams) filter() domain.PackageFilter {
	f := domain.PackageFilter{DurationDays: p.DurationDays}
	if p.Search != nil {
		f.Search = *p.Search
	}
	if p.Destination != nil {
		f.Destination = *p.Destination
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Difficulty != nil {
		f.Difficulty = *p.Difficulty
	}
	if p.MinPrice != nil {
		m := domain.MoneyFromFloat(*p.MinPrice)
		f.MinPrice = &m
	}
	if p.MaxPrice != nil {
		m := domain.MoneyFromFloat(*p.MaxPrice)
		f.MaxPrice = &m
	}
	return f
}

// ListPublishedPackages handles GET /api/packages.
func (s *Server) ListPublishedPackages(w http.ResponseWriter, r *http.Request) {
	params, err := bindListPackagesParams(r)
	if err != nil {
		requestError(w, err.Error())
		return
	}
	pkgs, err := s.packages.ListPublished(r.Context(), params.filter())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkgs)
}

// GetPackage handles GET /api/packages/{id}.
func (s *Server) GetPackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	detail, err := s.packages.Get(r.Context(), middleware.CallerFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ListAgencyPackages handles GET /api/agency/packages.
func (s *Server) ListAgencyPackages(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	pkgs, err := s.packages.ListForAgency(r.Context(), caller, caller.AccountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkgs)
}

// CreatePackage handles POST /api/agency/packages.
// A failing itinerary or media batch does not fail the request.
func (s *Server) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var req createPackageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pkg, err := s.packages.Create(r.Context(), middleware.CallerFrom(r.Context()), domain.NewPackage{
		Package:   req.Package,
		Itinerary: req.Itinerary,
		Media:     req.Media,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

// UpdatePackage handles PUT /api/agency/packages/{id}.
func (s *Server) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var pkg domain.Package
	if !decodeJSON(w, r, &pkg) {
		return
	}
	pkg.ID = id
	updated, err := s.packages.Update(r.Context(), middleware.CallerFrom(r.Context()), pkg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ReplaceItinerary handles PUT /api/agency/packages/{id}/itinerary.
func (s *Server) ReplaceItinerary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var days []domain.ItineraryDay
	if !decodeJSON(w, r, &days) {
		return
	}
	if err := s.packages.ReplaceItinerary(r.Context(), middleware.CallerFrom(r.Context()), id, days); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// AddMedia handles POST /api/agency/packages/{id}/media.
func (s *Server) AddMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var items []domain.MediaItem
	if !decodeJSON(w, r, &items) {
		return
	}
	if err := s.packages.AddMedia(r.Context(), middleware.CallerFrom(r.Context()), id, items); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// SetPrimaryMedia handles PUT /api/agency/packages/{id}/media/{mediaID}/primary.
func (s *Server) SetPrimaryMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	mediaID, ok := pathUUID(w, r, "mediaID")
	if !ok {
		return
	}
	if err := s.packages.SetPrimaryMedia(r.Context(), middleware.CallerFrom(r.Context()), id, mediaID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// PublishPackage handles POST /api/agency/packages/{id}/publish.
func (s *Server) PublishPackage(w http.ResponseWriter, r *http.Request) {
	s.ownerTransition(w, r, s.packages.Publish)
}

// WithdrawPackage handles POST /api/agency/packages/{id}/withdraw.
func (s *Server) WithdrawPackage(w http.ResponseWriter, r *http.Request) {
	s.ownerTransition(w, r, s.packages.Withdraw)
}

// SubmitPackage handles POST /api/agency/packages/{id}/submit.
func (s *Server) SubmitPackage(w http.ResponseWriter, r *http.Request) {
	s.ownerTransition(w, r, s.packages.SubmitForReview)
}

type transitionFunc func(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error)

func (s *Server) ownerTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	pkg, err := fn(r.Context(), middleware.CallerFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

// ListAllPackages handles GET /api/admin/packages.
func (s *Server) ListAllPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := s.packages.ListAll(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkgs)
}

// GetPackageCounts handles GET /api/admin/packages/counts.
func (s *Server) GetPackageCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.packages.StatusCounts(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// UpdatePackageStatus handles PATCH /api/admin/packages/{id}/status.
func (s *Server) UpdatePackageStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req packageStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pkg, err := s.packages.UpdateStatus(r.Context(), middleware.CallerFrom(r.Context()), id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

// SetPackageFeatured handles PATCH /api/admin/packages/{id}/featured.
func (s *Server) SetPackageFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req featuredRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Featured == nil {
		requestError(w, "featured is required")
		return
	}
	pkg, err := s.packages.ToggleFeatured(r.Context(), middleware.CallerFrom(r.Context()), id, *req.Featured)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/middleware"
)

// GetContentPage handles GET /api/content/{slug}.
func (s *Server) GetContentPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.content.Get(r.Context(), middleware.CallerFrom(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListContentPages handles GET /api/admin/content.
func (s *Server) ListContentPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.content.List(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// SaveContentPage handles PUT /api/admin/content/{slug}.
func (s *Server) SaveContentPage(w http.ResponseWriter, r *http.Request) {
	var page domain.ContentPage
	if !decodeJSON(w, r, &page) {
		return
	}
	page.Slug = chi.URLParam(r, "slug")
	saved, err := s.content.Upsert(r.Context(), middleware.CallerFrom(r.Context()), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

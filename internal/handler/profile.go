package handler

import (
	"net/http"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/middleware"
)

// GetMyProfile handles GET /api/me/profile.
func (s *Server) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	p, err := s.profiles.Get(r.Context(), caller, caller.AccountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateMyProfile handles PATCH /api/me/profile.
func (s *Server) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	p, err := s.profiles.Update(r.Context(), middleware.CallerFrom(r.Context()), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProfile handles GET /api/profiles/{id}.
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.profiles.Get(r.Context(), middleware.CallerFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

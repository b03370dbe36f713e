package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/wayfarer/internal/auth"
	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/gate"
	"github.com/pkordes/wayfarer/internal/middleware"
)

type signUpRequest struct {
	Email    string                `json:"email"`
	Password string                `json:"password"`
	Role     domain.Role           `json:"role"`
	Metadata domain.SignUpMetadata `json:"metadata"`
}

type signUpResponse struct {
	Account              domain.Account  `json:"account"`
	Session              *domain.Session `json:"session"`
	ConfirmationRequired bool            `json:"confirmation_required"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type confirmRequest struct {
	Token string `json:"token"`
}

// SignUp handles POST /api/auth/signup.
// The session is null when the account must confirm its email first.
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.auth.SignUp(r.Context(), auth.SignUpInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     req.Role,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signUpResponse{
		Account:              res.Account,
		Session:              res.Session,
		ConfirmationRequired: res.Session == nil,
	})
}

// SignIn handles POST /api/auth/signin. Rate-limited attempts answer 429.
func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := s.auth.SignIn(r.Context(), strings.TrimSpace(req.Email), req.Password)
	switch {
	case err == nil:
		s.countSignIn("success")
		writeJSON(w, http.StatusOK, sess)
	case errors.Is(err, auth.ErrRateLimited):
		s.countSignIn("limited")
		writeErrorBody(w, http.StatusTooManyRequests, "rate_limited", unwrapMessage(err, domain.ErrAuthentication))
	case errors.Is(err, domain.ErrAuthentication):
		s.countSignIn("failure")
		s.writeError(w, r, err)
	default:
		s.writeError(w, r, err)
	}
}

func (s *Server) countSignIn(result string) {
	if s.signIns != nil {
		s.signIns.SignIn(result)
	}
}

// SignOut handles POST /api/auth/signout?scope=local|others|global.
// The scope defaults to local.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		s.writeError(w, r, domain.ErrNotAuthenticated)
		return
	}
	var scope *string
	if err := runtime.BindQueryParameter("form", true, false, "scope", r.URL.Query(), &scope); err != nil {
		requestError(w, err.Error())
		return
	}
	sc := auth.ScopeLocal
	if scope != nil {
		sc = auth.Scope(*scope)
	}
	if err := s.auth.SignOut(r.Context(), claims, sc); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// Refresh handles POST /api/auth/refresh.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		requestError(w, "refresh_token is required")
		return
	}
	sess, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ConfirmEmail handles POST /api/auth/confirm.
func (s *Server) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		requestError(w, "token is required")
		return
	}
	acct, err := s.auth.ConfirmEmail(r.Context(), req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// GetUser handles GET /api/auth/user: the account behind the bearer token.
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFrom(r.Context())
	if !caller.Authenticated() {
		s.writeError(w, r, domain.ErrNotAuthenticated)
		return
	}
	acct, err := s.auth.Account(r.Context(), caller.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.ErrAuthentication
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type gateResponse struct {
	Outcome string `json:"outcome"`
	gate.Decision
	Location string `json:"location,omitempty"`
}

// GetGate handles GET /api/gate?role=&path=.
// It evaluates the route gate for the bearer of the request. The profile is
// looked up so the decision uses the profile's role once it exists.
func (s *Server) GetGate(w http.ResponseWriter, r *http.Request) {
	var params struct {
		Role string
		Path *string
	}
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "role", q, &params.Role); err != nil {
		requestError(w, err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "path", q, &params.Path); err != nil {
		requestError(w, err.Error())
		return
	}
	required := domain.Role(params.Role)
	if !required.Valid() {
		s.writeError(w, r, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, params.Role))
		return
	}
	path := gate.DefaultPath(required)
	if params.Path != nil {
		path = *params.Path
	}

	sess, err := s.gateSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d := gate.Decide(sess, required, path)
	writeJSON(w, http.StatusOK, gateResponse{Outcome: d.Outcome.String(), Decision: d, Location: d.Location()})
}

// GetPostAuthRedirect handles GET /api/gate/redirect?intended=.
// It answers where a freshly signed-in caller should land.
func (s *Server) GetPostAuthRedirect(w http.ResponseWriter, r *http.Request) {
	var intended *string
	if err := runtime.BindQueryParameter("form", true, false, "intended", r.URL.Query(), &intended); err != nil {
		requestError(w, err.Error())
		return
	}
	sess, err := s.gateSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	role, ok := sess.Role()
	if !ok {
		s.writeError(w, r, domain.ErrNotAuthenticated)
		return
	}
	target := ""
	if intended != nil {
		target = *intended
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": gate.ResolvePostAuthRedirect(role, target)})
}

// gateSession builds the gate's view of the request: anonymous without a
// token, otherwise the token's account plus its profile when one exists.
func (s *Server) gateSession(r *http.Request) (gate.Session, error) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		return gate.Session{}, nil
	}
	sess := gate.Session{Account: &domain.Account{ID: claims.AccountID, Email: claims.Email, Role: claims.Role}}
	if s.profiles == nil {
		return sess, nil
	}
	p, err := s.profiles.Get(r.Context(), claims.Caller(), claims.AccountID)
	switch {
	case err == nil:
		sess.Profile = &p
	case errors.Is(err, domain.ErrNotFound):
		// No profile row yet; the account role applies.
	default:
		return gate.Session{}, err
	}
	return sess, nil
}

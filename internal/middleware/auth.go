package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/auth"
	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/gate"
)

// TokenVerifier validates a bearer access token.
// *auth.Provider satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the verified claims of the request, or nil for an
// anonymous request.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

// CallerFrom returns the caller identity of the request. It is the zero
// Caller when the request carries no valid token.
func CallerFrom(ctx context.Context) domain.Caller {
	if c := ClaimsFrom(ctx); c != nil {
		return c.Caller()
	}
	return domain.Caller{}
}

// NewAuthenticator returns a middleware that verifies the bearer token when
// one is present and stores its claims in the request context. Requests
// without an Authorization header pass through anonymously; a malformed,
// expired or revoked token is rejected with 401.
func NewAuthenticator(v TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication_failed", "malformed authorization header", "")
				return
			}
			claims, err := v.Verify(r.Context(), token)
			if err != nil {
				log.DebugContext(r.Context(), "token rejected", "error", err)
				writeError(w, http.StatusUnauthorized, "authentication_failed", "invalid or expired token", "")
				return
			}
			noteCaller(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole returns a middleware that admits only callers acting as role.
// It asks gate.Decide with the verified token as the resolved session, so an
// anonymous caller gets 401 with the role's sign-in page and a caller with
// another role gets 403 with that role's home path.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := gate.Decide(sessionFromClaims(ClaimsFrom(r.Context())), role, r.URL.Path)
			switch d.Outcome {
			case gate.Allow:
				next.ServeHTTP(w, r)
			case gate.RedirectToAuth:
				writeError(w, http.StatusUnauthorized, "not_authenticated", "sign in required", d.Location())
			default:
				writeError(w, http.StatusForbidden, "not_authorized", "not authorized", d.Location())
			}
		})
	}
}

// sessionFromClaims builds the gate's view of a token. A token is never in a
// loading state: it has been verified already.
func sessionFromClaims(c *auth.Claims) gate.Session {
	if c == nil || c.AccountID == uuid.Nil {
		return gate.Session{}
	}
	return gate.Session{Account: &domain.Account{ID: c.AccountID, Email: c.Email, Role: c.Role}}
}

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// writeError renders the API's failure envelope.
func writeError(w http.ResponseWriter, status int, code, message, redirect string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message, Redirect: redirect}})
}

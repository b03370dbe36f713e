// Package middleware provides HTTP middleware for the Wayfarer API server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/auth"
	"github.com/pkordes/wayfarer/internal/domain"
)

// requestCaller is filled by NewAuthenticator further down the chain so the
// request line can name the caller.
type requestCaller struct {
	accountID uuid.UUID
	role      domain.Role
}

type requestCallerKey struct{}

func noteCaller(ctx context.Context, c *auth.Claims) {
	if rc, ok := ctx.Value(requestCallerKey{}).(*requestCaller); ok && c != nil {
		rc.accountID, rc.role = c.AccountID, c.Role
	}
}

// NewSlogLogger returns a middleware that logs each request as one structured
// line via log. It records method, path, status, duration, the request ID set
// by chi's RequestID middleware and, once a token has been verified, the
// caller's account and role. 5xx responses log at Error and 4xx at Warn.
//
// Wire it after chimiddleware.RequestID so the request ID is available.
func NewSlogLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := &requestCaller{}
			r = r.WithContext(context.WithValue(r.Context(), requestCallerKey{}, rc))

			// WrapResponseWriter intercepts WriteHeader so we can read the
			// status code after the downstream handler has run.
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			}
			if rc.accountID != uuid.Nil {
				attrs = append(attrs,
					slog.String("account_id", rc.accountID.String()),
					slog.String("role", string(rc.role)),
				)
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			log.LogAttrs(r.Context(), level, "request", attrs...)
		})
	}
}

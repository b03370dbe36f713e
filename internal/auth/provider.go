// Package auth is the authentication provider: password accounts, access and
// refresh tokens, server-side sessions, and email confirmation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/events"
	"github.com/pkordes/wayfarer/internal/repo"
)

// Scope selects which sessions SignOut revokes.
type Scope string

const (
	ScopeLocal  Scope = "local"  // the calling session only
	ScopeOthers Scope = "others" // every session of the account except the calling one
	ScopeGlobal Scope = "global" // every session of the account
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeLocal || s == ScopeOthers || s == ScopeGlobal
}

// SignUpInput is the payload of a sign-up request.
type SignUpInput struct {
	Email    string
	Password string
	Role     domain.Role
	Metadata domain.SignUpMetadata
}

// SignUpResult is the outcome of a sign-up. Session is nil when the account
// must confirm its email before signing in; ConfirmationToken is then set.
type SignUpResult struct {
	Account           domain.Account
	Session           *domain.Session
	ConfirmationToken string
}

// Options configures a Provider.
type Options struct {
	RefreshTTL          time.Duration
	RequireConfirmation bool
}

// Provider implements sign-up, sign-in, sign-out, refresh and token verification.
type Provider struct {
	accounts repo.AccountRepo
	tokens   *TokenManager
	sessions SessionRegistry
	limiter  Limiter
	events   events.Publisher
	log      *slog.Logger
	opts     Options
}

// NewProvider constructs a Provider. limiter and pub may be nil.
func NewProvider(accounts repo.AccountRepo, tokens *TokenManager, sessions SessionRegistry,
	limiter Limiter, pub events.Publisher, log *slog.Logger, opts Options) *Provider {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Provider{
		accounts: accounts,
		tokens:   tokens,
		sessions: sessions,
		limiter:  limiter,
		events:   pub,
		log:      log,
		opts:     opts,
	}
}

// SignUp registers an account. The profile row is created by the database
// from in.Metadata, so it may not be readable immediately after this returns.
// Admin accounts cannot be self-registered.
func (p *Provider) SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return SignUpResult{}, fmt.Errorf("auth.Provider.SignUp: %w", err)
	}
	if in.Role != domain.RoleTraveler && in.Role != domain.RoleAgency {
		return SignUpResult{}, fmt.Errorf("auth.Provider.SignUp: %w: role must be traveler or agency", domain.ErrValidation)
	}
	if in.Role == domain.RoleAgency && in.Metadata.CompanyName == "" {
		return SignUpResult{}, fmt.Errorf("auth.Provider.SignUp: %w: company_name is required", domain.ErrValidation)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("auth.Provider.SignUp: %w", err)
	}

	acct, err := p.accounts.Create(ctx, in.Email, hash, in.Role, in.Metadata, !p.opts.RequireConfirmation)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("auth.Provider.SignUp: %w", err)
	}
	events.Emit(ctx, p.events, p.log, events.New(events.AuthSignedUp, acct.ID, acct.ID, map[string]any{"role": acct.Role}))

	if p.opts.RequireConfirmation {
		token, err := p.tokens.IssueConfirmation(acct.ID)
		if err != nil {
			return SignUpResult{}, fmt.Errorf("auth.Provider.SignUp: %w", err)
		}
		events.Emit(ctx, p.events, p.log, events.New(events.AuthConfirmationRequested, acct.ID, acct.ID,
			map[string]any{"email": acct.Email, "token": token}))
		return SignUpResult{Account: acct, ConfirmationToken: token}, nil
	}

	sess, err := p.openSession(ctx, acct)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("auth.Provider.SignUp: %w", err)
	}
	return SignUpResult{Account: acct, Session: sess}, nil
}

// SignIn authenticates with email and password. Every credential failure,
// including an unconfirmed email, is domain.ErrAuthentication.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	if p.limiter != nil {
		allowed, retryAfter, err := p.limiter.Allow(ctx, email)
		if err != nil {
			// The limiter is advisory; a Redis outage must not block sign-in.
			p.log.WarnContext(ctx, "sign-in limiter unavailable", "error", err)
		} else if !allowed {
			return nil, fmt.Errorf("auth.Provider.SignIn: %w: %w, retry in %s",
				domain.ErrAuthentication, ErrRateLimited, retryAfter.Round(time.Second))
		}
	}

	acct, hash, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("auth.Provider.SignIn: %w: invalid email or password", domain.ErrAuthentication)
		}
		return nil, fmt.Errorf("auth.Provider.SignIn: %w", err)
	}
	if !CheckPassword(hash, password) {
		return nil, fmt.Errorf("auth.Provider.SignIn: %w: invalid email or password", domain.ErrAuthentication)
	}
	if acct.ConfirmedAt == nil {
		return nil, fmt.Errorf("auth.Provider.SignIn: %w: email not confirmed", domain.ErrAuthentication)
	}

	sess, err := p.openSession(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("auth.Provider.SignIn: %w", err)
	}
	events.Emit(ctx, p.events, p.log, events.New(events.AuthSignedIn, acct.ID, acct.ID, nil))
	return sess, nil
}

// SignOut revokes the sessions selected by scope relative to the caller's session.
func (p *Provider) SignOut(ctx context.Context, claims *Claims, scope Scope) error {
	if !scope.Valid() {
		return fmt.Errorf("auth.Provider.SignOut: %w: unknown scope %q", domain.ErrValidation, scope)
	}

	var err error
	switch scope {
	case ScopeLocal:
		err = p.sessions.Revoke(ctx, claims.SessionID)
	case ScopeOthers:
		err = p.sessions.RevokeAccount(ctx, claims.AccountID, claims.SessionID)
	case ScopeGlobal:
		err = p.sessions.RevokeAccount(ctx, claims.AccountID, "")
	}
	if err != nil {
		return fmt.Errorf("auth.Provider.SignOut: %w", err)
	}
	events.Emit(ctx, p.events, p.log, events.New(events.AuthSignedOut, claims.AccountID, claims.AccountID,
		map[string]any{"scope": scope}))
	return nil
}

// Refresh exchanges a refresh token for a new session on the same session id.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	next, err := newOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("auth.Provider.Refresh: %w", err)
	}
	rec, err := p.sessions.Rotate(ctx, refreshToken, next, p.opts.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("auth.Provider.Refresh: %w", err)
	}

	acct, err := p.accounts.GetByID(ctx, rec.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = p.sessions.Revoke(ctx, rec.ID)
			return nil, fmt.Errorf("auth.Provider.Refresh: %w: account no longer exists", domain.ErrAuthentication)
		}
		return nil, fmt.Errorf("auth.Provider.Refresh: %w", err)
	}

	access, exp, err := p.tokens.IssueAccess(acct, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("auth.Provider.Refresh: %w", err)
	}
	events.Emit(ctx, p.events, p.log, events.New(events.AuthTokenRefreshed, acct.ID, acct.ID, nil))
	return &domain.Session{AccessToken: access, RefreshToken: next, TokenType: "bearer", ExpiresAt: exp, Account: acct}, nil
}

// Verify validates an access token and checks that its session is still live.
func (p *Provider) Verify(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := p.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("auth.Provider.Verify: %w", err)
	}
	active, err := p.sessions.Active(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("auth.Provider.Verify: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("auth.Provider.Verify: %w: session revoked", domain.ErrAuthentication)
	}
	return claims, nil
}

// ConfirmEmail marks the account in the confirmation token as confirmed.
func (p *Provider) ConfirmEmail(ctx context.Context, token string) (domain.Account, error) {
	claims, err := p.tokens.ParseConfirmation(token)
	if err != nil {
		return domain.Account{}, fmt.Errorf("auth.Provider.ConfirmEmail: %w", err)
	}
	acct, err := p.accounts.Confirm(ctx, claims.AccountID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("auth.Provider.ConfirmEmail: %w", err)
	}
	events.Emit(ctx, p.events, p.log, events.New(events.AuthEmailConfirmed, acct.ID, acct.ID, nil))
	return acct, nil
}

// Account returns the account behind a verified session.
func (p *Provider) Account(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	acct, err := p.accounts.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("auth.Provider.Account: %w", err)
	}
	return acct, nil
}

func (p *Provider) openSession(ctx context.Context, acct domain.Account) (*domain.Session, error) {
	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	sid := uuid.NewString()
	if err := p.sessions.Create(ctx, SessionRecord{ID: sid, AccountID: acct.ID, RefreshToken: refresh}, p.opts.RefreshTTL); err != nil {
		return nil, err
	}
	access, exp, err := p.tokens.IssueAccess(acct, sid)
	if err != nil {
		return nil, err
	}
	return &domain.Session{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", ExpiresAt: exp, Account: acct}, nil
}

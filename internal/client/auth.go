package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/session"
)

// refreshCooldown spaces out refresh attempts after a transient failure.
const refreshCooldown = 30 * time.Second

type signUpResponse struct {
	Account              domain.Account  `json:"account"`
	Session              *domain.Session `json:"session"`
	ConfirmationRequired bool            `json:"confirmation_required"`
}

// SignUp registers an account. The session is nil while the email address
// awaits confirmation; no event is emitted in that case.
func (c *Client) SignUp(ctx context.Context, req session.SignUpRequest) (*domain.Session, error) {
	var res signUpResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", req, &res); err != nil {
		return nil, fmt.Errorf("client.SignUp: %w", err)
	}
	if res.Session == nil {
		return nil, nil
	}
	c.track(session.EventSignedIn, res.Session)
	return res.Session, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var sess domain.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/signin", "", body, &sess); err != nil {
		return nil, fmt.Errorf("client.SignIn: %w", err)
	}
	c.track(session.EventSignedIn, &sess)
	return &sess, nil
}

// SignOut revokes sessions for scope "local", "others" or "global". Signing
// out other sessions leaves this one in place and emits nothing.
func (c *Client) SignOut(ctx context.Context, accessToken, scope string) error {
	if scope == "" {
		scope = "local"
	}
	path := "/api/auth/signout?scope=" + url.QueryEscape(scope)
	if err := c.do(ctx, http.MethodPost, path, accessToken, nil, nil); err != nil {
		return fmt.Errorf("client.SignOut: %w", err)
	}
	if scope != "others" {
		c.track(session.EventSignedOut, nil)
	}
	return nil
}

// Refresh exchanges a refresh token for a new session. The old refresh
// token stops working.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var sess domain.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", "", body, &sess); err != nil {
		return nil, fmt.Errorf("client.Refresh: %w", err)
	}
	c.track(session.EventTokenRefreshed, &sess)
	return &sess, nil
}

func (c *Client) GetAccount(ctx context.Context, accessToken string) (domain.Account, error) {
	var acct domain.Account
	if err := c.do(ctx, http.MethodGet, "/api/auth/user", accessToken, nil, &acct); err != nil {
		return domain.Account{}, fmt.Errorf("client.GetAccount: %w", err)
	}
	return acct, nil
}

// ConfirmEmail redeems an email confirmation token. When the confirmed
// account is the one currently signed in, USER_UPDATED carries the updated
// account.
func (c *Client) ConfirmEmail(ctx context.Context, token string) (domain.Account, error) {
	var acct domain.Account
	body := map[string]string{"token": token}
	if err := c.do(ctx, http.MethodPost, "/api/auth/confirm", "", body, &acct); err != nil {
		return domain.Account{}, fmt.Errorf("client.ConfirmEmail: %w", err)
	}
	if cur := c.Current(); cur != nil && cur.Account.ID == acct.ID {
		cur.Account = acct
		c.track(session.EventUserUpdated, cur)
	}
	return acct, nil
}

// GetProfile returns domain.ErrNotFound (wrapped) while the profile row does
// not exist yet.
func (c *Client) GetProfile(ctx context.Context, accessToken string, accountID uuid.UUID) (domain.Profile, error) {
	var p domain.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profiles/"+accountID.String(), accessToken, nil, &p); err != nil {
		return domain.Profile{}, fmt.Errorf("client.GetProfile: %w", err)
	}
	return p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, accessToken string, patch domain.ProfilePatch) error {
	if err := c.do(ctx, http.MethodPatch, "/api/me/profile", accessToken, patch, nil); err != nil {
		return fmt.Errorf("client.UpdateProfile: %w", err)
	}
	return nil
}

// AutoRefresh keeps the current session fresh until ctx is done, refreshing
// leeway before the access token expires. Transient failures are retried with
// backoff; a rejected refresh token ends the session with SIGNED_OUT.
func (c *Client) AutoRefresh(ctx context.Context, leeway time.Duration) {
	for {
		wait := time.Minute
		cur := c.Current()
		if cur != nil {
			wait = cur.ExpiresAt.Sub(c.now()) - leeway
		}
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			return
		}
		if cur = c.Current(); cur == nil || cur.ExpiresAt.Sub(c.now()) > leeway {
			continue
		}
		if err := c.refreshWithRetry(ctx, cur.RefreshToken); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.WarnContext(ctx, "session refresh failed", "error", err)
			if isAuthFailure(err) {
				c.track(session.EventSignedOut, nil)
				continue
			}
			t := time.NewTimer(refreshCooldown)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

func (c *Client) refreshWithRetry(ctx context.Context, refreshToken string) error {
	b := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		_, err := c.Refresh(ctx, refreshToken)
		if err != nil && !isAuthFailure(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

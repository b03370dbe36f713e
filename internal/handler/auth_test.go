package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/wayfarer/internal/auth"
	"github.com/pkordes/wayfarer/internal/domain"
)

func TestSignUp_ReturnsSession(t *testing.T) {
	h := newHarness()
	acct := domain.Account{ID: uuid.New(), Email: "ana@example.test", Role: domain.RoleAgency}
	h.auth.signUp = func(_ context.Context, in auth.SignUpInput) (auth.SignUpResult, error) {
		assert.Equal(t, "ana@example.test", in.Email, "email is trimmed")
		assert.Equal(t, domain.RoleAgency, in.Role)
		assert.Equal(t, "Andes Trails", in.Metadata.CompanyName)
		return auth.SignUpResult{Account: acct, Session: &domain.Session{AccessToken: "a", Account: acct}}, nil
	}

	rec := h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":    "  ana@example.test ",
		"password": "correct horse",
		"role":     "agency",
		"metadata": map[string]string{"company_name": "Andes Trails"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var got struct {
		Account              domain.Account  `json:"account"`
		Session              *domain.Session `json:"session"`
		ConfirmationRequired bool            `json:"confirmation_required"`
	}
	decodeData(t, rec, &got)
	assert.Equal(t, acct.ID, got.Account.ID)
	require.NotNil(t, got.Session)
	assert.False(t, got.ConfirmationRequired)
}

func TestSignUp_ConfirmationRequired(t *testing.T) {
	h := newHarness()
	h.auth.signUp = func(context.Context, auth.SignUpInput) (auth.SignUpResult, error) {
		return auth.SignUpResult{Account: domain.Account{ID: uuid.New()}, ConfirmationToken: "secret-link"}, nil
	}

	rec := h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "tom@example.test", "password": "correct horse", "role": "traveler",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-link", "the confirmation token only travels by email")
	var got struct {
		Session              *domain.Session `json:"session"`
		ConfirmationRequired bool            `json:"confirmation_required"`
	}
	decodeData(t, rec, &got)
	assert.Nil(t, got.Session)
	assert.True(t, got.ConfirmationRequired)
}

func TestSignUp_ValidationError(t *testing.T) {
	h := newHarness()
	h.auth.signUp = func(context.Context, auth.SignUpInput) (auth.SignUpResult, error) {
		return auth.SignUpResult{}, fmt.Errorf("auth.Provider.SignUp: %w: company_name is required", domain.ErrValidation)
	}

	rec := h.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{"email": "x@example.test", "role": "agency"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decode(t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, "validation_error", res.Error.Code)
	assert.Equal(t, "company_name is required", res.Error.Message)
}

func TestSignUp_MalformedBody(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/api/auth/signup", "", "{not json")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode(t, rec).Error.Code)
}

func TestSignIn_CountsResults(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantResult string
	}{
		{"success", nil, http.StatusOK, "success"},
		{"bad password", fmt.Errorf("auth.Provider.SignIn: %w: invalid email or password", domain.ErrAuthentication), http.StatusUnauthorized, "failure"},
		{"rate limited", fmt.Errorf("auth.Provider.SignIn: %w: %w, retry in 15m0s", domain.ErrAuthentication, auth.ErrRateLimited), http.StatusTooManyRequests, "limited"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.auth.signIn = func(_ context.Context, email, password string) (*domain.Session, error) {
				if tc.err != nil {
					return nil, tc.err
				}
				return &domain.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: testNow.Add(time.Hour)}, nil
			}

			rec := h.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "tom@example.test", "password": "pw"})

			require.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, 1, h.signIns[tc.wantResult])
		})
	}
}

func TestSignIn_RateLimitedMessage(t *testing.T) {
	h := newHarness()
	h.auth.signIn = func(context.Context, string, string) (*domain.Session, error) {
		return nil, fmt.Errorf("auth.Provider.SignIn: %w: %w, retry in 15m0s", domain.ErrAuthentication, auth.ErrRateLimited)
	}

	rec := h.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "tom@example.test", "password": "pw"})

	res := decode(t, rec)
	assert.Equal(t, "rate_limited", res.Error.Code)
	assert.Equal(t, "too many attempts, retry in 15m0s", res.Error.Message)
}

func TestSignOut_RequiresToken(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodPost, "/api/auth/signout", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_authenticated", decode(t, rec).Error.Code)
}

func TestSignOut_Scope(t *testing.T) {
	tests := []struct {
		query string
		want  auth.Scope
	}{
		{"", auth.ScopeLocal},
		{"?scope=global", auth.ScopeGlobal},
		{"?scope=others", auth.ScopeOthers},
	}
	for _, tc := range tests {
		t.Run(string(tc.want), func(t *testing.T) {
			h := newHarness()
			var got auth.Scope
			var sid string
			h.auth.signOut = func(_ context.Context, claims *auth.Claims, scope auth.Scope) error {
				got, sid = scope, claims.SessionID
				return nil
			}

			rec := h.do(t, http.MethodPost, "/api/auth/signout"+tc.query, travelerToken, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "s-traveler", sid)
		})
	}
}

func TestInvalidToken_Rejected(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodGet, "/api/packages", "revoked-token", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh(t *testing.T) {
	h := newHarness()
	h.auth.refresh = func(_ context.Context, token string) (*domain.Session, error) {
		if token != "r1" {
			return nil, fmt.Errorf("auth.RedisRegistry.Rotate: %w: refresh token invalid", domain.ErrAuthentication)
		}
		return &domain.Session{AccessToken: "a2", RefreshToken: "r2"}, nil
	}

	rec := h.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": "r1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var sess domain.Session
	decodeData(t, rec, &sess)
	assert.Equal(t, "r2", sess.RefreshToken)

	rec = h.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": "r1-old"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUser(t *testing.T) {
	h := newHarness()
	h.auth.account = func(_ context.Context, id uuid.UUID) (domain.Account, error) {
		return domain.Account{ID: id, Email: "tom@example.test", Role: domain.RoleTraveler}, nil
	}

	rec := h.do(t, http.MethodGet, "/api/auth/user", travelerToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var acct domain.Account
	decodeData(t, rec, &acct)
	assert.Equal(t, h.traveler.AccountID, acct.ID)

	rec = h.do(t, http.MethodGet, "/api/auth/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type gateBody struct {
	Outcome      string `json:"outcome"`
	Path         string `json:"path"`
	IntendedPath string `json:"intended_path"`
	AuthFlow     string `json:"auth_flow"`
	Location     string `json:"location"`
}

func TestGetGate(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		query   string
		profile func(domain.Caller) (domain.Profile, error)
		want    gateBody
	}{
		{
			name:  "anonymous agency area",
			query: "role=agency&path=/travel_agency/packages",
			want: gateBody{Outcome: "redirect_to_auth", Path: "/auth/agency", IntendedPath: "/travel_agency/packages",
				AuthFlow: "agency", Location: "/auth/agency?redirect=%2Ftravel_agency%2Fpackages"},
		},
		{
			name:  "traveler in admin area",
			token: travelerToken,
			query: "role=admin&path=/admin",
			profile: func(c domain.Caller) (domain.Profile, error) {
				return domain.Profile{AccountID: c.AccountID, Role: domain.RoleTraveler}, nil
			},
			want: gateBody{Outcome: "redirect_to_default", Path: "/traveler", Location: "/traveler"},
		},
		{
			name:  "agency before its profile exists",
			token: agencyToken,
			query: "role=agency",
			profile: func(domain.Caller) (domain.Profile, error) {
				return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.GetByAccountID: %w", domain.ErrNotFound)
			},
			want: gateBody{Outcome: "allow"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.profiles.get = func(_ context.Context, caller domain.Caller, _ uuid.UUID) (domain.Profile, error) {
				return tc.profile(caller)
			}

			rec := h.do(t, http.MethodGet, "/api/gate?"+tc.query, tc.token, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			var got gateBody
			decodeData(t, rec, &got)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetGate_UnknownRole(t *testing.T) {
	h := newHarness()

	rec := h.do(t, http.MethodGet, "/api/gate?role=pilot", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/gate", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPostAuthRedirect(t *testing.T) {
	h := newHarness()
	h.profiles.get = func(_ context.Context, c domain.Caller, _ uuid.UUID) (domain.Profile, error) {
		return domain.Profile{AccountID: c.AccountID, Role: c.Role}, nil
	}

	var got map[string]string
	rec := h.do(t, http.MethodGet, "/api/gate/redirect?intended=/packages/42", agencyToken, nil)
	decodeData(t, rec, &got)
	assert.Equal(t, "/packages/42", got["path"])

	rec = h.do(t, http.MethodGet, "/api/gate/redirect?intended=/admin", agencyToken, nil)
	decodeData(t, rec, &got)
	assert.Equal(t, "/travel_agency", got["path"])

	rec = h.do(t, http.MethodGet, "/api/gate/redirect", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

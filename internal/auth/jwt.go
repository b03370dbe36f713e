package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
)

// Token purposes. A confirmation token can never be used as an access token.
const (
	purposeAccess  = "access"
	purposeConfirm = "confirm"
)

// confirmationTTL bounds how long an email confirmation link stays valid.
const confirmationTTL = 48 * time.Hour

// Claims are the custom JWT claims carried by access and confirmation tokens.
type Claims struct {
	AccountID uuid.UUID   `json:"account_id"`
	Email     string      `json:"email,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	SessionID string      `json:"sid,omitempty"`
	Purpose   string      `json:"purpose"`
	jwt.RegisteredClaims
}

// Caller returns the identity the claims assert.
func (c *Claims) Caller() domain.Caller {
	return domain.Caller{AccountID: c.AccountID, Role: c.Role}
}

// TokenManager signs and validates HS256 tokens.
type TokenManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenManager returns a TokenManager. accessTTL is the access token lifetime.
func NewTokenManager(secret string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

// IssueAccess signs an access token for acct bound to session sid.
func (m *TokenManager) IssueAccess(acct domain.Account, sid string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)
	token, err := m.sign(&Claims{
		AccountID: acct.ID,
		Email:     acct.Email,
		Role:      acct.Role,
		SessionID: sid,
		Purpose:   purposeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// IssueConfirmation signs an email confirmation token for accountID.
func (m *TokenManager) IssueConfirmation(accountID uuid.UUID) (string, error) {
	now := m.now()
	return m.sign(&Claims{
		AccountID: accountID,
		Purpose:   purposeConfirm,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(confirmationTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}

// ParseAccess validates an access token. Any failure is domain.ErrAuthentication.
func (m *TokenManager) ParseAccess(token string) (*Claims, error) {
	return m.parse(token, purposeAccess)
}

// ParseConfirmation validates a confirmation token.
func (m *TokenManager) ParseConfirmation(token string) (*Claims, error) {
	return m.parse(token, purposeConfirm)
}

func (m *TokenManager) sign(claims *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth.TokenManager: sign: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) parse(token, purpose string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrAuthentication)
	}
	return claims, nil
}

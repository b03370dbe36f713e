package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/wayfarer/internal/domain"
)

// SessionRecord is a server-side session: the refresh token currently bound to
// it and the account it belongs to.
type SessionRecord struct {
	ID           string
	AccountID    uuid.UUID
	RefreshToken string
}

// SessionRegistry tracks live sessions so that sign-out revokes access tokens
// before they expire.
type SessionRegistry interface {
	// Create stores rec for ttl.
	Create(ctx context.Context, rec SessionRecord, ttl time.Duration) error

	// Active reports whether the session has not been revoked or expired.
	Active(ctx context.Context, sid string) (bool, error)

	// Rotate exchanges refreshToken for next. The old token stops working.
	// Returns domain.ErrAuthentication for an unknown or spent token.
	Rotate(ctx context.Context, refreshToken, next string, ttl time.Duration) (SessionRecord, error)

	// Revoke deletes one session. Unknown ids are ignored.
	Revoke(ctx context.Context, sid string) error

	// RevokeAccount deletes every session of the account except keep.
	RevokeAccount(ctx context.Context, accountID uuid.UUID, keep string) error
}

// RedisRegistry stores sessions in Redis:
//
//	<prefix>:session:<sid>      hash {account_id, refresh}
//	<prefix>:refresh:<token>    sid
//	<prefix>:account:<id>       set of sids
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRegistry returns a registry using client. An empty prefix defaults to "wayfarer".
func NewRedisRegistry(client redis.UniversalClient, prefix string) *RedisRegistry {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "wayfarer"
	}
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) sessionKey(sid string) string   { return r.prefix + ":session:" + sid }
func (r *RedisRegistry) refreshKey(token string) string { return r.prefix + ":refresh:" + token }
func (r *RedisRegistry) accountKey(id uuid.UUID) string { return r.prefix + ":account:" + id.String() }

func (r *RedisRegistry) Create(ctx context.Context, rec SessionRecord, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.sessionKey(rec.ID), "account_id", rec.AccountID.String(), "refresh", rec.RefreshToken)
		pipe.Expire(ctx, r.sessionKey(rec.ID), ttl)
		pipe.Set(ctx, r.refreshKey(rec.RefreshToken), rec.ID, ttl)
		pipe.SAdd(ctx, r.accountKey(rec.AccountID), rec.ID)
		pipe.Expire(ctx, r.accountKey(rec.AccountID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("auth.RedisRegistry.Create: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Active(ctx context.Context, sid string) (bool, error) {
	n, err := r.client.Exists(ctx, r.sessionKey(sid)).Result()
	if err != nil {
		return false, fmt.Errorf("auth.RedisRegistry.Active: %w", err)
	}
	return n == 1, nil
}

func (r *RedisRegistry) Rotate(ctx context.Context, refreshToken, next string, ttl time.Duration) (SessionRecord, error) {
	sid, err := r.client.GetDel(ctx, r.refreshKey(refreshToken)).Result()
	if errors.Is(err, redis.Nil) {
		return SessionRecord{}, fmt.Errorf("auth.RedisRegistry.Rotate: %w: refresh token not found", domain.ErrAuthentication)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("auth.RedisRegistry.Rotate: %w", err)
	}

	rawID, err := r.client.HGet(ctx, r.sessionKey(sid), "account_id").Result()
	if errors.Is(err, redis.Nil) {
		return SessionRecord{}, fmt.Errorf("auth.RedisRegistry.Rotate: %w: session revoked", domain.ErrAuthentication)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("auth.RedisRegistry.Rotate: %w", err)
	}
	accountID, err := uuid.Parse(rawID)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("auth.RedisRegistry.Rotate: corrupt session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.sessionKey(sid), "refresh", next)
		pipe.Expire(ctx, r.sessionKey(sid), ttl)
		pipe.Set(ctx, r.refreshKey(next), sid, ttl)
		pipe.Expire(ctx, r.accountKey(accountID), ttl)
		return nil
	})
	if err != nil {
		return SessionRecord{}, fmt.Errorf("auth.RedisRegistry.Rotate: %w", err)
	}
	return SessionRecord{ID: sid, AccountID: accountID, RefreshToken: next}, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, sid string) error {
	fields, err := r.client.HGetAll(ctx, r.sessionKey(sid)).Result()
	if err != nil {
		return fmt.Errorf("auth.RedisRegistry.Revoke: %w", err)
	}
	if len(fields) == 0 {
		return nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(sid))
		if token := fields["refresh"]; token != "" {
			pipe.Del(ctx, r.refreshKey(token))
		}
		if id, err := uuid.Parse(fields["account_id"]); err == nil {
			pipe.SRem(ctx, r.accountKey(id), sid)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("auth.RedisRegistry.Revoke: %w", err)
	}
	return nil
}

func (r *RedisRegistry) RevokeAccount(ctx context.Context, accountID uuid.UUID, keep string) error {
	sids, err := r.client.SMembers(ctx, r.accountKey(accountID)).Result()
	if err != nil {
		return fmt.Errorf("auth.RedisRegistry.RevokeAccount: %w", err)
	}
	for _, sid := range sids {
		if sid == keep {
			continue
		}
		if err := r.Revoke(ctx, sid); err != nil {
			return fmt.Errorf("auth.RedisRegistry.RevokeAccount: %w", err)
		}
	}
	return nil
}

// newOpaqueToken returns a 256-bit random URL-safe token.
func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

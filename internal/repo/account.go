package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// AccountRepo persists authentication accounts. Creating an account fires the
// database trigger that creates the role profile from the sign-up metadata.
type AccountRepo interface {
	// Create inserts a new account. Returns domain.ErrValidation if the email
	// is already registered.
	Create(ctx context.Context, email, passwordHash string, role domain.Role, meta domain.SignUpMetadata, confirmed bool) (domain.Account, error)

	// GetByEmail returns the account and its password hash.
	// Returns domain.ErrNotFound if no account uses that email.
	GetByEmail(ctx context.Context, email string) (domain.Account, string, error)

	// GetByID returns domain.ErrNotFound if the account does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error)

	// Confirm stamps confirmed_at if it is not already set.
	Confirm(ctx context.Context, id uuid.UUID) (domain.Account, error)
}

type pgAccountRepo struct {
	db db
}

// NewAccountRepo constructs an AccountRepo backed by the provided db connection.
func NewAccountRepo(db db) AccountRepo {
	return &pgAccountRepo{db: db}
}

const accountColumns = `id, email, role, confirmed_at, created_at`

func (r *pgAccountRepo) Create(ctx context.Context, email, passwordHash string, role domain.Role, meta domain.SignUpMetadata, confirmed bool) (domain.Account, error) {
	const q = `
		INSERT INTO auth_accounts (email, password_hash, role, raw_metadata, confirmed_at)
		VALUES (@email, @password_hash, @role, @meta, CASE WHEN @confirmed::boolean THEN now() END)
		RETURNING ` + accountColumns

	args := pgx.NamedArgs{
		"email":         normalizeEmail(email),
		"password_hash": passwordHash,
		"role":          string(role),
		"meta":          meta,
		"confirmed":     confirmed,
	}
	acc, err := scanAccount(r.db.QueryRow(ctx, q, args))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, fmt.Errorf("repo.AccountRepo.Create: %w: email already registered", domain.ErrValidation)
		}
		return domain.Account{}, fmt.Errorf("repo.AccountRepo.Create: %w", err)
	}
	return acc, nil
}

func (r *pgAccountRepo) GetByEmail(ctx context.Context, email string) (domain.Account, string, error) {
	const q = `SELECT ` + accountColumns + `, password_hash FROM auth_accounts WHERE email = @email`

	var (
		acc       domain.Account
		id        pgtype.UUID
		role      string
		confirmed pgtype.Timestamptz
		hash      string
	)
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"email": normalizeEmail(email)}).
		Scan(&id, &acc.Email, &role, &confirmed, &acc.CreatedAt, &hash)
	if err != nil {
		return domain.Account{}, "", fmt.Errorf("repo.AccountRepo.GetByEmail: %w", notFound(err))
	}
	acc.ID = uuid.UUID(id.Bytes)
	acc.Role = domain.Role(role)
	acc.ConfirmedAt = timePtr(confirmed)
	return acc, hash, nil
}

func (r *pgAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM auth_accounts WHERE id = @id`

	acc, err := scanAccount(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Account{}, fmt.Errorf("repo.AccountRepo.GetByID: %w", err)
	}
	return acc, nil
}

func (r *pgAccountRepo) Confirm(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	const q = `
		UPDATE auth_accounts
		SET confirmed_at = COALESCE(confirmed_at, now()),
		    updated_at   = now()
		WHERE id = @id
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Account{}, fmt.Errorf("repo.AccountRepo.Confirm: %w", err)
	}
	return acc, nil
}

func scanAccount(s scanner) (domain.Account, error) {
	var (
		acc       domain.Account
		id        pgtype.UUID
		role      string
		confirmed pgtype.Timestamptz
	)
	if err := s.Scan(&id, &acc.Email, &role, &confirmed, &acc.CreatedAt); err != nil {
		return domain.Account{}, notFound(err)
	}
	acc.ID = uuid.UUID(id.Bytes)
	acc.Role = domain.Role(role)
	acc.ConfirmedAt = timePtr(confirmed)
	return acc, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

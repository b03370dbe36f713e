package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// PendingActionRepo persists the admin review queue.
type PendingActionRepo interface {
	Create(ctx context.Context, a domain.PendingAction) (domain.PendingAction, error)

	// List returns actions, optionally filtered by status, oldest first.
	List(ctx context.Context, status *domain.ActionStatus) ([]domain.PendingAction, error)

	// CountOpen returns the number of actions still pending.
	CountOpen(ctx context.Context) (int, error)

	// SetStatus updates the action's status. When status closes the action the
	// resolver and resolution time are stamped; otherwise they are cleared.
	// Returns domain.ErrNotFound if the action does not exist.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ActionStatus, actor uuid.UUID, at time.Time) (domain.PendingAction, error)
}

type pgPendingActionRepo struct {
	db db
}

// NewPendingActionRepo constructs a PendingActionRepo backed by the provided db connection.
func NewPendingActionRepo(db db) PendingActionRepo {
	return &pgPendingActionRepo{db: db}
}

const pendingActionColumns = `
	id, action_type, entity_type, entity_id, description, status,
	resolved_by, resolved_at, created_at`

func (r *pgPendingActionRepo) Create(ctx context.Context, a domain.PendingAction) (domain.PendingAction, error) {
	const q = `
		INSERT INTO admin_pending_actions (action_type, entity_type, entity_id, description)
		VALUES (@action_type, @entity_type, @entity_id, @description)
		RETURNING ` + pendingActionColumns

	args := pgx.NamedArgs{
		"action_type": a.ActionType,
		"entity_type": a.EntityType,
		"entity_id":   a.EntityID,
		"description": a.Description,
	}
	result, err := scanPendingAction(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("repo.PendingActionRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgPendingActionRepo) List(ctx context.Context, status *domain.ActionStatus) ([]domain.PendingAction, error) {
	const q = `
		SELECT ` + pendingActionColumns + `
		FROM admin_pending_actions
		WHERE @status::text IS NULL OR status = @status
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"status": textPtr(status)})
	if err != nil {
		return nil, fmt.Errorf("repo.PendingActionRepo.List: %w", err)
	}
	actions, err := collect(rows, scanPendingAction)
	if err != nil {
		return nil, fmt.Errorf("repo.PendingActionRepo.List: scan: %w", err)
	}
	return actions, nil
}

func (r *pgPendingActionRepo) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM admin_pending_actions WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repo.PendingActionRepo.CountOpen: %w", err)
	}
	return n, nil
}

func (r *pgPendingActionRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.ActionStatus, actor uuid.UUID, at time.Time) (domain.PendingAction, error) {
	const q = `
		UPDATE admin_pending_actions
		SET status      = @status,
		    resolved_by = CASE WHEN @closes::boolean THEN @actor::uuid END,
		    resolved_at = CASE WHEN @closes::boolean THEN @at::timestamptz END
		WHERE id = @id
		RETURNING ` + pendingActionColumns

	args := pgx.NamedArgs{
		"id":     id,
		"status": string(status),
		"closes": status.Closes(),
		"actor":  actor,
		"at":     at,
	}
	result, err := scanPendingAction(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.PendingAction{}, fmt.Errorf("repo.PendingActionRepo.SetStatus: %w", notFound(err))
	}
	return result, nil
}

func scanPendingAction(s scanner) (domain.PendingAction, error) {
	var (
		a                        domain.PendingAction
		id, entityID, resolvedBy pgtype.UUID
		status                   string
		resolvedAt               pgtype.Timestamptz
	)
	err := s.Scan(&id, &a.ActionType, &a.EntityType, &entityID, &a.Description,
		&status, &resolvedBy, &resolvedAt, &a.CreatedAt)
	if err != nil {
		return domain.PendingAction{}, err
	}
	a.ID = uuid.UUID(id.Bytes)
	a.EntityID = uuid.UUID(entityID.Bytes)
	a.Status = domain.ActionStatus(status)
	a.ResolvedBy = uuidPtr(resolvedBy)
	a.ResolvedAt = timePtr(resolvedAt)
	return a, nil
}

// ActivityLogRepo persists the admin audit trail. Entries are append-only.
type ActivityLogRepo interface {
	Append(ctx context.Context, entry domain.ActivityLog) error

	// List returns one page of entries, newest first, with the total count.
	List(ctx context.Context, p domain.PaginationParams) (domain.Page[domain.ActivityLog], error)
}

type pgActivityLogRepo struct {
	db db
}

// NewActivityLogRepo constructs an ActivityLogRepo backed by the provided db connection.
func NewActivityLogRepo(db db) ActivityLogRepo {
	return &pgActivityLogRepo{db: db}
}

func (r *pgActivityLogRepo) Append(ctx context.Context, entry domain.ActivityLog) error {
	const q = `
		INSERT INTO admin_activity_logs (admin_id, action, entity_type, entity_id, details)
		VALUES (@admin_id, @action, @entity_type, @entity_id, @details)`

	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("repo.ActivityLogRepo.Append: encode details: %w", err)
	}

	_, err = r.db.Exec(ctx, q, pgx.NamedArgs{
		"admin_id":    entry.AdminID,
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"details":     raw,
	})
	if err != nil {
		return fmt.Errorf("repo.ActivityLogRepo.Append: %w", err)
	}
	return nil
}

func (r *pgActivityLogRepo) List(ctx context.Context, p domain.PaginationParams) (domain.Page[domain.ActivityLog], error) {
	const q = `
		SELECT id, admin_id, action, entity_type, entity_id, details, created_at,
		       count(*) OVER () AS total
		FROM admin_activity_logs
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return domain.Page[domain.ActivityLog]{}, fmt.Errorf("repo.ActivityLogRepo.List: %w", err)
	}

	var total int64
	entries, err := collect(rows, func(s scanner) (domain.ActivityLog, error) {
		var (
			e           domain.ActivityLog
			id, adminID pgtype.UUID
			entityID    pgtype.UUID
			raw         []byte
		)
		if err := s.Scan(&id, &adminID, &e.Action, &e.EntityType, &entityID, &raw, &e.CreatedAt, &total); err != nil {
			return domain.ActivityLog{}, err
		}
		e.ID = uuid.UUID(id.Bytes)
		e.AdminID = uuid.UUID(adminID.Bytes)
		e.EntityID = uuidPtr(entityID)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Details); err != nil {
				return domain.ActivityLog{}, fmt.Errorf("decode details: %w", err)
			}
		}
		return e, nil
	})
	if err != nil {
		return domain.Page[domain.ActivityLog]{}, fmt.Errorf("repo.ActivityLogRepo.List: scan: %w", err)
	}

	return domain.Page[domain.ActivityLog]{
		Items: entries,
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
	}, nil
}

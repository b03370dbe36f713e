package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wayfarer/internal/domain"
)

// PackageRepo defines the persistence operations for packages.
type PackageRepo interface {
	// Create inserts a package and returns the persisted record.
	Create(ctx context.Context, p domain.Package) (domain.Package, error)

	// GetByID returns domain.ErrNotFound if the package does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Package, error)

	// Update overwrites the agency-editable content fields. Status and the
	// featured flag are left untouched.
	Update(ctx context.Context, p domain.Package) (domain.Package, error)

	// SetStatus overwrites the status unconditionally.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.PackageStatus) (domain.Package, error)

	// SetFeatured overwrites the featured flag.
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (domain.Package, error)

	// ListByAgency returns every package owned by the agency, newest first.
	ListByAgency(ctx context.Context, agencyID uuid.UUID) ([]domain.Package, error)

	// ListPublished returns all published packages joined with their
	// effective primary media item, featured first then newest first.
	ListPublished(ctx context.Context) ([]domain.Package, error)

	// ListAll returns every package regardless of status, newest first.
	ListAll(ctx context.Context) ([]domain.Package, error)
}

type pgPackageRepo struct {
	db db
}

// NewPackageRepo constructs a PackageRepo backed by the provided db connection.
func NewPackageRepo(db db) PackageRepo {
	return &pgPackageRepo{db: db}
}

const packageColumns = `
	p.id, p.agency_id, p.title, p.description, p.destination, p.category,
	p.difficulty_level, p.duration_days, p.duration_nights, p.max_participants,
	p.base_price_cents, p.featured, p.status, p.inclusions, p.exclusions,
	p.cancellation_policy, p.terms, p.created_at, p.updated_at`

func (r *pgPackageRepo) Create(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	const q = `
		INSERT INTO packages AS p (
			agency_id, title, description, destination, category, difficulty_level,
			duration_days, duration_nights, max_participants, base_price_cents,
			status, inclusions, exclusions, cancellation_policy, terms)
		VALUES (
			@agency_id, @title, @description, @destination, @category, @difficulty_level,
			@duration_days, @duration_nights, @max_participants, @base_price_cents,
			@status, @inclusions, @exclusions, @cancellation_policy, @terms)
		RETURNING ` + packageColumns

	args := packageArgs(pkg)
	args["agency_id"] = pkg.AgencyID
	args["status"] = string(pkg.Status)

	result, err := scanPackage(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Package{}, fmt.Errorf("repo.PackageRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgPackageRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Package, error) {
	const q = `SELECT ` + packageColumns + ` FROM packages p WHERE p.id = @id`

	result, err := scanPackage(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Package{}, fmt.Errorf("repo.PackageRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgPackageRepo) Update(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	const q = `
		UPDATE packages AS p
		SET title               = @title,
		    description         = @description,
		    destination         = @destination,
		    category            = @category,
		    difficulty_level    = @difficulty_level,
		    duration_days       = @duration_days,
		    duration_nights     = @duration_nights,
		    max_participants    = @max_participants,
		    base_price_cents    = @base_price_cents,
		    inclusions          = @inclusions,
		    exclusions          = @exclusions,
		    cancellation_policy = @cancellation_policy,
		    terms               = @terms,
		    updated_at          = now()
		WHERE p.id = @id
		RETURNING ` + packageColumns

	args := packageArgs(pkg)
	args["id"] = pkg.ID

	result, err := scanPackage(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Package{}, fmt.Errorf("repo.PackageRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgPackageRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.PackageStatus) (domain.Package, error) {
	const q = `
		UPDATE packages AS p
		SET status = @status, updated_at = now()
		WHERE p.id = @id
		RETURNING ` + packageColumns

	result, err := scanPackage(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "status": string(status)}))
	if err != nil {
		return domain.Package{}, fmt.Errorf("repo.PackageRepo.SetStatus: %w", err)
	}
	return result, nil
}

func (r *pgPackageRepo) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (domain.Package, error) {
	const q = `
		UPDATE packages AS p
		SET featured = @featured, updated_at = now()
		WHERE p.id = @id
		RETURNING ` + packageColumns

	result, err := scanPackage(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "featured": featured}))
	if err != nil {
		return domain.Package{}, fmt.Errorf("repo.PackageRepo.SetFeatured: %w", err)
	}
	return result, nil
}

func (r *pgPackageRepo) ListByAgency(ctx context.Context, agencyID uuid.UUID) ([]domain.Package, error) {
	const q = `
		SELECT ` + packageColumns + `
		FROM packages p
		WHERE p.agency_id = @agency_id
		ORDER BY p.created_at DESC`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"agency_id": agencyID})
	if err != nil {
		return nil, fmt.Errorf("repo.PackageRepo.ListByAgency: %w", err)
	}
	pkgs, err := collect(rows, scanPackage)
	if err != nil {
		return nil, fmt.Errorf("repo.PackageRepo.ListByAgency: scan: %w", err)
	}
	return pkgs, nil
}

// ListPublished picks the primary media per package with a lateral join: the
// flagged item if any, otherwise the lowest display order.
func (r *pgPackageRepo) ListPublished(ctx context.Context) ([]domain.Package, error) {
	const q = `
		SELECT ` + packageColumns + `,
		       m.id, m.file_url, m.media_type, m.caption, m.is_primary, m.display_order
		FROM packages p
		LEFT JOIN LATERAL (
			SELECT pm.id, pm.file_url, pm.media_type, pm.caption, pm.is_primary, pm.display_order
			FROM package_media pm
			WHERE pm.package_id = p.id
			ORDER BY pm.is_primary DESC, pm.display_order ASC, pm.id
			LIMIT 1
		) m ON true
		WHERE p.status = 'published'
		ORDER BY p.featured DESC, p.created_at DESC`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.PackageRepo.ListPublished: %w", err)
	}
	pkgs, err := collect(rows, scanPackageWithMedia)
	if err != nil {
		return nil, fmt.Errorf("repo.PackageRepo.ListPublished: scan: %w", err)
	}
	return pkgs, nil
}

func (r *pgPackageRepo) ListAll(ctx context.Context) ([]domain.Package, error) {
	const q = `SELECT ` + packageColumns + ` FROM packages p ORDER BY p.created_at DESC`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.PackageRepo.ListAll: %w", err)
	}
	pkgs, err := collect(rows, scanPackage)
	if err != nil {
		return nil, fmt.Errorf("repo.PackageRepo.ListAll: scan: %w", err)
	}
	return pkgs, nil
}

// packageArgs holds the content columns shared by Create and Update.
func packageArgs(p domain.Package) pgx.NamedArgs {
	return pgx.NamedArgs{
		"title":               p.Title,
		"description":         p.Description,
		"destination":         p.Destination,
		"category":            p.Category,
		"difficulty_level":    p.Difficulty,
		"duration_days":       p.DurationDays,
		"duration_nights":     p.DurationNights,
		"max_participants":    p.MaxParticipants,
		"base_price_cents":    int64(p.BasePrice),
		"inclusions":          nonNil(p.Inclusions),
		"exclusions":          nonNil(p.Exclusions),
		"cancellation_policy": p.CancellationPolicy,
		"terms":               p.Terms,
	}
}

// packageDest returns scan destinations in packageColumns order.
func packageDest(p *domain.Package, id, agencyID *pgtype.UUID, price *int64, status *string) []any {
	return []any{
		id, agencyID, &p.Title, &p.Description, &p.Destination, &p.Category,
		&p.Difficulty, &p.DurationDays, &p.DurationNights, &p.MaxParticipants,
		price, &p.Featured, status, &p.Inclusions, &p.Exclusions,
		&p.CancellationPolicy, &p.Terms, &p.CreatedAt, &p.UpdatedAt,
	}
}

func scanPackage(s scanner) (domain.Package, error) {
	var (
		p            domain.Package
		id, agencyID pgtype.UUID
		price        int64
		status       string
	)
	if err := s.Scan(packageDest(&p, &id, &agencyID, &price, &status)...); err != nil {
		return domain.Package{}, notFound(err)
	}
	finishPackage(&p, id, agencyID, price, status)
	return p, nil
}

func scanPackageWithMedia(s scanner) (domain.Package, error) {
	var (
		p            domain.Package
		id, agencyID pgtype.UUID
		price        int64
		status       string
		mID          pgtype.UUID
		mURL, mType  pgtype.Text
		mCaption     pgtype.Text
		mPrimary     pgtype.Bool
		mOrder       pgtype.Int4
	)
	dest := append(packageDest(&p, &id, &agencyID, &price, &status),
		&mID, &mURL, &mType, &mCaption, &mPrimary, &mOrder)
	if err := s.Scan(dest...); err != nil {
		return domain.Package{}, err
	}
	finishPackage(&p, id, agencyID, price, status)
	if mID.Valid {
		p.PrimaryMedia = &domain.MediaItem{
			ID:           uuid.UUID(mID.Bytes),
			PackageID:    p.ID,
			FileURL:      mURL.String,
			MediaType:    mType.String,
			Caption:      mCaption.String,
			IsPrimary:    mPrimary.Bool,
			DisplayOrder: int(mOrder.Int32),
		}
	}
	return p, nil
}

func finishPackage(p *domain.Package, id, agencyID pgtype.UUID, price int64, status string) {
	p.ID = uuid.UUID(id.Bytes)
	p.AgencyID = uuid.UUID(agencyID.Bytes)
	p.BasePrice = domain.Money(price)
	p.Status = domain.PackageStatus(status)
	if p.Inclusions == nil {
		p.Inclusions = []string{}
	}
	if p.Exclusions == nil {
		p.Exclusions = []string{}
	}
}

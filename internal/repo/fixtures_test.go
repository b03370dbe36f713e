package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/repo"
)

// createAccount inserts a confirmed account; the database trigger creates the
// matching role profile.
func createAccount(t *testing.T, tx pgx.Tx, role domain.Role, meta domain.SignUpMetadata) domain.Account {
	t.Helper()
	email := fmt.Sprintf("%s-%s@example.test", role, uuid.NewString()[:8])
	acct, err := repo.NewAccountRepo(tx).Create(context.Background(), email, "hash", role, meta, true)
	require.NoError(t, err, "create %s account", role)
	return acct
}

func createAgency(t *testing.T, tx pgx.Tx) domain.Account {
	t.Helper()
	return createAccount(t, tx, domain.RoleAgency, domain.SignUpMetadata{
		FirstName:   "Ana",
		LastName:    "Lopez",
		CompanyName: "Andes Trips",
	})
}

func createTraveler(t *testing.T, tx pgx.Tx) domain.Account {
	t.Helper()
	return createAccount(t, tx, domain.RoleTraveler, domain.SignUpMetadata{FirstName: "Tom", LastName: "Reed"})
}

// packageFixture returns a draft package with sensible defaults. Callers can
// override individual fields.
func packageFixture(agencyID uuid.UUID) domain.Package {
	return domain.Package{
		AgencyID:        agencyID,
		Title:           "Inca Trail",
		Description:     "Four days to Machu Picchu",
		Destination:     "Cusco, Peru",
		Category:        "adventure",
		Difficulty:      "moderate",
		DurationDays:    4,
		DurationNights:  3,
		MaxParticipants: 12,
		BasePrice:       domain.Money(50000),
		Status:          domain.PackageDraft,
		Inclusions:      []string{"guide", "tents"},
	}
}

func createPackage(t *testing.T, tx pgx.Tx, pkg domain.Package) domain.Package {
	t.Helper()
	got, err := repo.NewPackageRepo(tx).Create(context.Background(), pkg)
	require.NoError(t, err, "create package")
	return got
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/events"
	"github.com/pkordes/wayfarer/internal/service"
)

// ---- helpers ---------------------------------------------------------------

func validNewPackage() domain.NewPackage {
	return domain.NewPackage{
		Package: domain.Package{
			Title:           "Inca Trail Classic",
			Destination:     "Cusco, Peru",
			DurationDays:    4,
			DurationNights:  3,
			MaxParticipants: 12,
			BasePrice:       50000,
		},
		Itinerary: []domain.ItineraryDay{
			{DayNumber: 1, Title: "Km 82 to Wayllabamba"},
			{DayNumber: 2, Title: "Dead Woman's Pass"},
		},
		Media: []domain.MediaItem{
			{FileURL: "media/inca-1.jpg", IsPrimary: true},
			{FileURL: "media/inca-2.jpg", DisplayOrder: 1},
		},
	}
}

// packageFixture wires a PackageService whose repos accept every write.
type packageFixture struct {
	packages  *mockPackageRepo
	itinerary *mockItineraryRepo
	media     *mockMediaRepo
	actions   *mockPendingActionRepo
	counters  *countingCounters
	pub       *capturePublisher
	activity  *memActivity
	logs      *bytes.Buffer
}

func newPackageFixture() *packageFixture {
	return &packageFixture{
		packages: &mockPackageRepo{
			create: func(_ context.Context, p domain.Package) (domain.Package, error) {
				p.ID = uuid.New()
				return p, nil
			},
		},
		itinerary: &mockItineraryRepo{
			createBatch: func(context.Context, uuid.UUID, []domain.ItineraryDay) error { return nil },
		},
		media: &mockMediaRepo{
			createBatch: func(context.Context, uuid.UUID, []domain.MediaItem) error { return nil },
		},
		actions:  &mockPendingActionRepo{},
		counters: &countingCounters{},
		pub:      &capturePublisher{},
		activity: &memActivity{},
		logs:     &bytes.Buffer{},
	}
}

func (f *packageFixture) service() *service.PackageService {
	return service.NewPackageService(f.packages, f.itinerary, f.media, f.actions, service.Hooks{
		Log:      slog.New(slog.NewJSONHandler(f.logs, nil)),
		Events:   f.pub,
		Counters: f.counters,
		Activity: f.activity,
	})
}

// stored makes GetByID return pkg and SetStatus echo the new status onto it.
func (f *packageFixture) stored(pkg domain.Package) {
	f.packages.getByID = func(_ context.Context, id uuid.UUID) (domain.Package, error) {
		if id != pkg.ID {
			return domain.Package{}, domain.ErrNotFound
		}
		return pkg, nil
	}
	f.packages.setStatus = func(_ context.Context, _ uuid.UUID, status domain.PackageStatus) (domain.Package, error) {
		out := pkg
		out.Status = status
		return out, nil
	}
}

func ownedPackage(owner uuid.UUID, status domain.PackageStatus) domain.Package {
	p := validNewPackage().Package
	p.ID = uuid.New()
	p.AgencyID = owner
	p.Status = status
	return p
}

// ---- Create ----------------------------------------------------------------

func TestPackageService_Create_OK(t *testing.T) {
	f := newPackageFixture()
	agency := agencyCaller()

	var gotDays []domain.ItineraryDay
	var gotMedia []domain.MediaItem
	f.itinerary.createBatch = func(_ context.Context, _ uuid.UUID, days []domain.ItineraryDay) error {
		gotDays = days
		return nil
	}
	f.media.createBatch = func(_ context.Context, _ uuid.UUID, items []domain.MediaItem) error {
		gotMedia = items
		return nil
	}

	in := validNewPackage()
	in.Package.Status = domain.PackagePublished // ignored: new packages start as drafts
	in.Package.AgencyID = uuid.New()            // ignored: the caller owns it

	got, err := f.service().Create(context.Background(), agency, in)

	require.NoError(t, err)
	assert.Equal(t, domain.PackageDraft, got.Status)
	assert.Equal(t, agency.AccountID, got.AgencyID)
	assert.Len(t, gotDays, 2)
	assert.Len(t, gotMedia, 2)
	assert.Equal(t, 1, f.counters.packages)
	assert.Empty(t, f.counters.partial)
	assert.Equal(t, []string{events.PackageCreated}, f.pub.types())
}

func TestPackageService_Create_ItineraryFailureIsTolerated(t *testing.T) {
	f := newPackageFixture()
	f.itinerary.createBatch = func(context.Context, uuid.UUID, []domain.ItineraryDay) error {
		return errors.New("batch insert failed")
	}
	mediaCalled := false
	f.media.createBatch = func(context.Context, uuid.UUID, []domain.MediaItem) error {
		mediaCalled = true
		return nil
	}

	got, err := f.service().Create(context.Background(), agencyCaller(), validNewPackage())

	require.NoError(t, err, "a failed dependent batch must not fail the create")
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.True(t, mediaCalled, "media batch still runs after the itinerary batch fails")
	assert.Equal(t, []string{"itinerary"}, f.counters.partial)
	assert.Contains(t, f.logs.String(), "dependent write failed")
	assert.Contains(t, f.logs.String(), "batch insert failed")
}

func TestPackageService_Create_MalformedDaysSkipItinerary(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.NewPackage)
	}{
		{"duplicate day", func(p *domain.NewPackage) { p.Itinerary[1].DayNumber = 1 }},
		{"day zero", func(p *domain.NewPackage) { p.Itinerary[0].DayNumber = 0 }},
		{"blank day title", func(p *domain.NewPackage) { p.Itinerary[1].Title = " " }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPackageFixture()
			f.itinerary.createBatch = func(context.Context, uuid.UUID, []domain.ItineraryDay) error {
				t.Fatal("malformed days must not be inserted")
				return nil
			}
			mediaCalled := false
			f.media.createBatch = func(context.Context, uuid.UUID, []domain.MediaItem) error {
				mediaCalled = true
				return nil
			}
			in := validNewPackage()
			tc.mutate(&in)

			got, err := f.service().Create(context.Background(), agencyCaller(), in)

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, got.ID)
			assert.Equal(t, 1, f.counters.packages)
			assert.True(t, mediaCalled)
			assert.Equal(t, []string{"itinerary"}, f.counters.partial)
			assert.Contains(t, f.logs.String(), "partial write")
		})
	}
}

func TestPackageService_Create_MediaFailureIsTolerated(t *testing.T) {
	f := newPackageFixture()
	f.media.createBatch = func(context.Context, uuid.UUID, []domain.MediaItem) error {
		return errors.New("unique violation")
	}

	_, err := f.service().Create(context.Background(), agencyCaller(), validNewPackage())

	require.NoError(t, err)
	assert.Equal(t, []string{"media"}, f.counters.partial)
}

func TestPackageService_Create_PackageInsertFailureIsReturned(t *testing.T) {
	f := newPackageFixture()
	f.packages.create = func(context.Context, domain.Package) (domain.Package, error) {
		return domain.Package{}, errors.New("db down")
	}

	_, err := f.service().Create(context.Background(), agencyCaller(), validNewPackage())

	require.Error(t, err)
	assert.Zero(t, f.counters.packages)
}

func TestPackageService_Create_RoleChecks(t *testing.T) {
	tests := []struct {
		name    string
		caller  domain.Caller
		wantErr error
	}{
		{"anonymous", domain.Caller{}, domain.ErrNotAuthenticated},
		{"traveler", travelerCaller(), domain.ErrAuthorization},
		{"admin", adminCaller(), domain.ErrAuthorization},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPackageFixture()
			_, err := f.service().Create(context.Background(), tc.caller, validNewPackage())
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPackageService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.NewPackage)
	}{
		{"blank title", func(p *domain.NewPackage) { p.Package.Title = "  " }},
		{"blank destination", func(p *domain.NewPackage) { p.Package.Destination = "" }},
		{"zero days", func(p *domain.NewPackage) { p.Package.DurationDays = 0 }},
		{"negative nights", func(p *domain.NewPackage) { p.Package.DurationNights = -1 }},
		{"zero participants", func(p *domain.NewPackage) { p.Package.MaxParticipants = 0 }},
		{"negative price", func(p *domain.NewPackage) { p.Package.BasePrice = -1 }},
		{"two primaries", func(p *domain.NewPackage) { p.Media[1].IsPrimary = true }},
		{"media without url", func(p *domain.NewPackage) { p.Media[0].FileURL = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPackageFixture()
			f.packages.create = func(context.Context, domain.Package) (domain.Package, error) {
				t.Fatal("repo must not be called for invalid input")
				return domain.Package{}, nil
			}
			in := validNewPackage()
			tc.mutate(&in)

			_, err := f.service().Create(context.Background(), agencyCaller(), in)

			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

// ---- owner operations ------------------------------------------------------

func TestPackageService_PublishFlow_VisibleAndBookable(t *testing.T) {
	f := newPackageFixture()
	agency := agencyCaller()
	pkg := ownedPackage(agency.AccountID, domain.PackageDraft)
	f.stored(pkg)

	published, err := f.service().Publish(context.Background(), agency, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PackagePublished, published.Status)
	assert.Equal(t, []string{events.PackageStatusChanged}, f.pub.types())

	f.packages.listPublished = func(context.Context) ([]domain.Package, error) {
		return []domain.Package{published}, nil
	}
	got, err := f.service().ListPublished(context.Background(), domain.PackageFilter{Search: "inca"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pkg.ID, got[0].ID)
}

func TestPackageService_Publish_OtherAgencySeesNotFound(t *testing.T) {
	f := newPackageFixture()
	pkg := ownedPackage(uuid.New(), domain.PackageDraft)
	f.stored(pkg)

	_, err := f.service().Publish(context.Background(), agencyCaller(), pkg.ID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPackageService_Withdraw_BackToDraft(t *testing.T) {
	f := newPackageFixture()
	agency := agencyCaller()
	pkg := ownedPackage(agency.AccountID, domain.PackagePublished)
	f.stored(pkg)

	got, err := f.service().Withdraw(context.Background(), agency, pkg.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PackageDraft, got.Status)
}

func TestPackageService_SubmitForReview_QueuesAction(t *testing.T) {
	f := newPackageFixture()
	agency := agencyCaller()
	pkg := ownedPackage(agency.AccountID, domain.PackageDraft)
	f.stored(pkg)
	var queued domain.PendingAction
	f.actions.create = func(_ context.Context, a domain.PendingAction) (domain.PendingAction, error) {
		queued = a
		return a, nil
	}

	got, err := f.service().SubmitForReview(context.Background(), agency, pkg.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PackagePending, got.Status)
	assert.Equal(t, "package_review", queued.ActionType)
	assert.Equal(t, pkg.ID, queued.EntityID)
	assert.Equal(t, domain.ActionPending, queued.Status)
}

func TestPackageService_Update_ValidatesAndKeepsOwnership(t *testing.T) {
	f := newPackageFixture()
	agency := agencyCaller()
	pkg := ownedPackage(agency.AccountID, domain.PackageDraft)
	f.stored(pkg)
	f.packages.update = func(_ context.Context, p domain.Package) (domain.Package, error) { return p, nil }

	edit := pkg
	edit.Title = "Inca Trail Express"
	got, err := f.service().Update(context.Background(), agency, edit)
	require.NoError(t, err)
	assert.Equal(t, "Inca Trail Express", got.Title)

	edit.MaxParticipants = 0
	_, err = f.service().Update(context.Background(), agency, edit)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPackageService_AddMedia_RejectsSecondPrimary(t *testing.T) {
	f := newPackageFixture()
	agency := agencyCaller()
	pkg := ownedPackage(agency.AccountID, domain.PackageDraft)
	f.stored(pkg)
	f.media.listByPackage = func(context.Context, uuid.UUID) ([]domain.MediaItem, error) {
		return []domain.MediaItem{{ID: uuid.New(), FileURL: "a.jpg", IsPrimary: true}}, nil
	}

	err := f.service().AddMedia(context.Background(), agency, pkg.ID, []domain.MediaItem{{FileURL: "b.jpg", IsPrimary: true}})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPackageService_ReplaceItinerary_RejectsDuplicates(t *testing.T) {
	f := newPackageFixture()
	agency := agencyCaller()
	pkg := ownedPackage(agency.AccountID, domain.PackageDraft)
	f.stored(pkg)

	err := f.service().ReplaceItinerary(context.Background(), agency, pkg.ID, []domain.ItineraryDay{
		{DayNumber: 2, Title: "a"}, {DayNumber: 2, Title: "b"},
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- admin operations ------------------------------------------------------

func TestPackageService_UpdateStatus_AdminAnyToAny(t *testing.T) {
	f := newPackageFixture()
	admin := adminCaller()
	pkg := ownedPackage(uuid.New(), domain.PackagePublished)
	f.stored(pkg)

	got, err := f.service().UpdateStatus(context.Background(), admin, pkg.ID, domain.PackagePending)

	require.NoError(t, err)
	assert.Equal(t, domain.PackagePending, got.Status)
	assert.Equal(t, []string{"package_status_updated"}, f.activity.actions())
}

func TestPackageService_UpdateStatus_AgencyForbidden(t *testing.T) {
	f := newPackageFixture()

	_, err := f.service().UpdateStatus(context.Background(), agencyCaller(), uuid.New(), domain.PackagePublished)

	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestPackageService_UpdateStatus_UnknownStatus(t *testing.T) {
	f := newPackageFixture()

	_, err := f.service().UpdateStatus(context.Background(), adminCaller(), uuid.New(), "archived")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPackageService_ToggleFeatured_AuditFailureDoesNotFail(t *testing.T) {
	f := newPackageFixture()
	f.activity.err = errors.New("audit table locked")
	f.packages.setFeatured = func(_ context.Context, id uuid.UUID, featured bool) (domain.Package, error) {
		return domain.Package{ID: id, Featured: featured}, nil
	}

	got, err := f.service().ToggleFeatured(context.Background(), adminCaller(), uuid.New(), true)

	require.NoError(t, err)
	assert.True(t, got.Featured)
	assert.Contains(t, f.logs.String(), "activity log not written")
}

// ---- reads -----------------------------------------------------------------

func TestPackageService_Get_Visibility(t *testing.T) {
	owner := agencyCaller()
	draft := ownedPackage(owner.AccountID, domain.PackageDraft)

	tests := []struct {
		name    string
		caller  domain.Caller
		wantErr error
	}{
		{"anonymous", domain.Caller{}, domain.ErrNotFound},
		{"traveler", travelerCaller(), domain.ErrNotFound},
		{"other agency", agencyCaller(), domain.ErrNotFound},
		{"owner", owner, nil},
		{"admin", adminCaller(), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPackageFixture()
			f.stored(draft)
			f.itinerary.listByPackage = func(context.Context, uuid.UUID) ([]domain.ItineraryDay, error) {
				return []domain.ItineraryDay{}, nil
			}
			f.media.listByPackage = func(context.Context, uuid.UUID) ([]domain.MediaItem, error) {
				return []domain.MediaItem{}, nil
			}

			_, err := f.service().Get(context.Background(), tc.caller, draft.ID)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPackageService_Get_EffectivePrimaryFallsBackToFirst(t *testing.T) {
	f := newPackageFixture()
	pkg := ownedPackage(uuid.New(), domain.PackagePublished)
	f.stored(pkg)
	first := domain.MediaItem{ID: uuid.New(), FileURL: "first.jpg", DisplayOrder: 0}
	second := domain.MediaItem{ID: uuid.New(), FileURL: "second.jpg", DisplayOrder: 1}
	f.itinerary.listByPackage = func(context.Context, uuid.UUID) ([]domain.ItineraryDay, error) {
		return []domain.ItineraryDay{}, nil
	}
	f.media.listByPackage = func(context.Context, uuid.UUID) ([]domain.MediaItem, error) {
		return []domain.MediaItem{second, first}, nil
	}

	got, err := f.service().Get(context.Background(), travelerCaller(), pkg.ID)

	require.NoError(t, err)
	require.NotNil(t, got.Package.PrimaryMedia)
	assert.Equal(t, first.ID, got.Package.PrimaryMedia.ID)
}

func TestPackageService_ListForAgency_OnlySelfOrAdmin(t *testing.T) {
	f := newPackageFixture()
	agency := agencyCaller()
	f.packages.listByAgency = func(context.Context, uuid.UUID) ([]domain.Package, error) {
		return []domain.Package{}, nil
	}

	_, err := f.service().ListForAgency(context.Background(), agency, agency.AccountID)
	require.NoError(t, err)

	_, err = f.service().ListForAgency(context.Background(), adminCaller(), agency.AccountID)
	require.NoError(t, err)

	_, err = f.service().ListForAgency(context.Background(), agencyCaller(), agency.AccountID)
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestPackageService_ListPublished_DropsNonPublished(t *testing.T) {
	f := newPackageFixture()
	f.packages.listPublished = func(context.Context) ([]domain.Package, error) {
		return []domain.Package{
			ownedPackage(uuid.New(), domain.PackagePublished),
			ownedPackage(uuid.New(), domain.PackageDraft),
		}, nil
	}

	got, err := f.service().ListPublished(context.Background(), domain.PackageFilter{})

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPackageService_StatusCounts(t *testing.T) {
	f := newPackageFixture()
	featured := ownedPackage(uuid.New(), domain.PackagePublished)
	featured.Featured = true
	f.packages.listAll = func(context.Context) ([]domain.Package, error) {
		return []domain.Package{
			featured,
			ownedPackage(uuid.New(), domain.PackageDraft),
			ownedPackage(uuid.New(), domain.PackagePending),
		}, nil
	}

	got, err := f.service().StatusCounts(context.Background(), adminCaller())

	require.NoError(t, err)
	assert.Equal(t, domain.PackageStatusCounts{Total: 3, Draft: 1, Pending: 1, Published: 1, Featured: 1}, got)

	_, err = f.service().StatusCounts(context.Background(), agencyCaller())
	assert.ErrorIs(t, err, domain.ErrAuthorization)
}

package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/events"
	"github.com/pkordes/wayfarer/internal/repo"
	"github.com/pkordes/wayfarer/internal/service"
)

// Hand-written test doubles: each method is a function field, set only the
// ones a test needs. Calling an unset field panics, which flags an
// unexpected repo call.

// ---- packages --------------------------------------------------------------

type mockPackageRepo struct {
	create        func(ctx context.Context, p domain.Package) (domain.Package, error)
	getByID       func(ctx context.Context, id uuid.UUID) (domain.Package, error)
	update        func(ctx context.Context, p domain.Package) (domain.Package, error)
	setStatus     func(ctx context.Context, id uuid.UUID, status domain.PackageStatus) (domain.Package, error)
	setFeatured   func(ctx context.Context, id uuid.UUID, featured bool) (domain.Package, error)
	listByAgency  func(ctx context.Context, agencyID uuid.UUID) ([]domain.Package, error)
	listPublished func(ctx context.Context) ([]domain.Package, error)
	listAll       func(ctx context.Context) ([]domain.Package, error)
}

func (m *mockPackageRepo) Create(ctx context.Context, p domain.Package) (domain.Package, error) {
	return m.create(ctx, p)
}
func (m *mockPackageRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Package, error) {
	return m.getByID(ctx, id)
}
func (m *mockPackageRepo) Update(ctx context.Context, p domain.Package) (domain.Package, error) {
	return m.update(ctx, p)
}
func (m *mockPackageRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.PackageStatus) (domain.Package, error) {
	return m.setStatus(ctx, id, status)
}
func (m *mockPackageRepo) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (domain.Package, error) {
	return m.setFeatured(ctx, id, featured)
}
func (m *mockPackageRepo) ListByAgency(ctx context.Context, agencyID uuid.UUID) ([]domain.Package, error) {
	return m.listByAgency(ctx, agencyID)
}
func (m *mockPackageRepo) ListPublished(ctx context.Context) ([]domain.Package, error) {
	return m.listPublished(ctx)
}
func (m *mockPackageRepo) ListAll(ctx context.Context) ([]domain.Package, error) {
	return m.listAll(ctx)
}

var _ repo.PackageRepo = (*mockPackageRepo)(nil)

type mockItineraryRepo struct {
	createBatch   func(ctx context.Context, packageID uuid.UUID, days []domain.ItineraryDay) error
	replace       func(ctx context.Context, packageID uuid.UUID, days []domain.ItineraryDay) error
	listByPackage func(ctx context.Context, packageID uuid.UUID) ([]domain.ItineraryDay, error)
}

func (m *mockItineraryRepo) CreateBatch(ctx context.Context, packageID uuid.UUID, days []domain.ItineraryDay) error {
	return m.createBatch(ctx, packageID, days)
}
func (m *mockItineraryRepo) Replace(ctx context.Context, packageID uuid.UUID, days []domain.ItineraryDay) error {
	return m.replace(ctx, packageID, days)
}
func (m *mockItineraryRepo) ListByPackage(ctx context.Context, packageID uuid.UUID) ([]domain.ItineraryDay, error) {
	return m.listByPackage(ctx, packageID)
}

var _ repo.ItineraryRepo = (*mockItineraryRepo)(nil)

type mockMediaRepo struct {
	createBatch   func(ctx context.Context, packageID uuid.UUID, items []domain.MediaItem) error
	listByPackage func(ctx context.Context, packageID uuid.UUID) ([]domain.MediaItem, error)
	setPrimary    func(ctx context.Context, packageID, mediaID uuid.UUID) error
}

func (m *mockMediaRepo) CreateBatch(ctx context.Context, packageID uuid.UUID, items []domain.MediaItem) error {
	return m.createBatch(ctx, packageID, items)
}
func (m *mockMediaRepo) ListByPackage(ctx context.Context, packageID uuid.UUID) ([]domain.MediaItem, error) {
	return m.listByPackage(ctx, packageID)
}
func (m *mockMediaRepo) SetPrimary(ctx context.Context, packageID, mediaID uuid.UUID) error {
	return m.setPrimary(ctx, packageID, mediaID)
}

var _ repo.MediaRepo = (*mockMediaRepo)(nil)

// ---- bookings --------------------------------------------------------------

type mockBookingRepo struct {
	create          func(ctx context.Context, b domain.Booking) (domain.Booking, error)
	getByID         func(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	updateStatus    func(ctx context.Context, id uuid.UUID, status *domain.BookingStatus, payment *domain.PaymentStatus) (domain.Booking, error)
	listByTraveler  func(ctx context.Context, travelerID uuid.UUID) ([]domain.Booking, error)
	listByAgency    func(ctx context.Context, agencyID uuid.UUID) ([]domain.Booking, error)
	listAll         func(ctx context.Context) ([]domain.Booking, error)
	listExportRows  func(ctx context.Context) ([]domain.BookingExportRow, error)
	revenueByAgency func(ctx context.Context, from, to time.Time) ([]domain.AgencyRevenue, error)
}

func (m *mockBookingRepo) Create(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	return m.create(ctx, b)
}
func (m *mockBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return m.getByID(ctx, id)
}
func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status *domain.BookingStatus, payment *domain.PaymentStatus) (domain.Booking, error) {
	return m.updateStatus(ctx, id, status, payment)
}
func (m *mockBookingRepo) ListByTraveler(ctx context.Context, travelerID uuid.UUID) ([]domain.Booking, error) {
	return m.listByTraveler(ctx, travelerID)
}
func (m *mockBookingRepo) ListByAgency(ctx context.Context, agencyID uuid.UUID) ([]domain.Booking, error) {
	return m.listByAgency(ctx, agencyID)
}
func (m *mockBookingRepo) ListAll(ctx context.Context) ([]domain.Booking, error) {
	return m.listAll(ctx)
}
func (m *mockBookingRepo) ListExportRows(ctx context.Context) ([]domain.BookingExportRow, error) {
	return m.listExportRows(ctx)
}
func (m *mockBookingRepo) RevenueByAgency(ctx context.Context, from, to time.Time) ([]domain.AgencyRevenue, error) {
	return m.revenueByAgency(ctx, from, to)
}

var _ repo.BookingRepo = (*mockBookingRepo)(nil)

// ---- admin -----------------------------------------------------------------

type mockProfileRepo struct {
	getByAccountID     func(ctx context.Context, id uuid.UUID) (domain.Profile, error)
	updateTraveler     func(ctx context.Context, id uuid.UUID, patch domain.TravelerPatch) error
	updateAgency       func(ctx context.Context, id uuid.UUID, patch domain.AgencyPatch) error
	listAgencies       func(ctx context.Context) ([]domain.AgencySummary, error)
	updateAgencyStatus func(ctx context.Context, id uuid.UUID, status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error)
}

func (m *mockProfileRepo) GetByAccountID(ctx context.Context, id uuid.UUID) (domain.Profile, error) {
	return m.getByAccountID(ctx, id)
}
func (m *mockProfileRepo) UpdateTraveler(ctx context.Context, id uuid.UUID, patch domain.TravelerPatch) error {
	return m.updateTraveler(ctx, id, patch)
}
func (m *mockProfileRepo) UpdateAgency(ctx context.Context, id uuid.UUID, patch domain.AgencyPatch) error {
	return m.updateAgency(ctx, id, patch)
}
func (m *mockProfileRepo) ListAgencies(ctx context.Context) ([]domain.AgencySummary, error) {
	return m.listAgencies(ctx)
}
func (m *mockProfileRepo) UpdateAgencyStatus(ctx context.Context, id uuid.UUID, status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error) {
	return m.updateAgencyStatus(ctx, id, status, verified)
}

var _ repo.ProfileRepo = (*mockProfileRepo)(nil)

type mockPayoutRepo struct {
	create        func(ctx context.Context, p domain.Payout) (domain.Payout, bool, error)
	list          func(ctx context.Context, status *domain.PayoutStatus) ([]domain.Payout, error)
	markProcessed func(ctx context.Context, ids []uuid.UUID, actor uuid.UUID, at time.Time) (int64, error)
}

func (m *mockPayoutRepo) Create(ctx context.Context, p domain.Payout) (domain.Payout, bool, error) {
	return m.create(ctx, p)
}
func (m *mockPayoutRepo) List(ctx context.Context, status *domain.PayoutStatus) ([]domain.Payout, error) {
	return m.list(ctx, status)
}
func (m *mockPayoutRepo) MarkProcessed(ctx context.Context, ids []uuid.UUID, actor uuid.UUID, at time.Time) (int64, error) {
	return m.markProcessed(ctx, ids, actor, at)
}

var _ repo.PayoutRepo = (*mockPayoutRepo)(nil)

type mockPendingActionRepo struct {
	create    func(ctx context.Context, a domain.PendingAction) (domain.PendingAction, error)
	list      func(ctx context.Context, status *domain.ActionStatus) ([]domain.PendingAction, error)
	countOpen func(ctx context.Context) (int, error)
	setStatus func(ctx context.Context, id uuid.UUID, status domain.ActionStatus, actor uuid.UUID, at time.Time) (domain.PendingAction, error)
}

func (m *mockPendingActionRepo) Create(ctx context.Context, a domain.PendingAction) (domain.PendingAction, error) {
	return m.create(ctx, a)
}
func (m *mockPendingActionRepo) List(ctx context.Context, status *domain.ActionStatus) ([]domain.PendingAction, error) {
	return m.list(ctx, status)
}
func (m *mockPendingActionRepo) CountOpen(ctx context.Context) (int, error) {
	return m.countOpen(ctx)
}
func (m *mockPendingActionRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.ActionStatus, actor uuid.UUID, at time.Time) (domain.PendingAction, error) {
	return m.setStatus(ctx, id, status, actor, at)
}

var _ repo.PendingActionRepo = (*mockPendingActionRepo)(nil)

// memActivity records appended entries. It is safe for concurrent use.
type memActivity struct {
	mu      sync.Mutex
	entries []domain.ActivityLog
	err     error
}

func (m *memActivity) Append(_ context.Context, entry domain.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memActivity) List(_ context.Context, p domain.PaginationParams) (domain.Page[domain.ActivityLog], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Page[domain.ActivityLog]{Items: m.entries, Page: p.Page, Limit: p.Limit, Total: int64(len(m.entries))}, nil
}

func (m *memActivity) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

var _ repo.ActivityLogRepo = (*memActivity)(nil)

type mockContentRepo struct {
	get    func(ctx context.Context, slug string) (domain.ContentPage, error)
	list   func(ctx context.Context) ([]domain.ContentPage, error)
	upsert func(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error)
}

func (m *mockContentRepo) Get(ctx context.Context, slug string) (domain.ContentPage, error) {
	return m.get(ctx, slug)
}
func (m *mockContentRepo) List(ctx context.Context) ([]domain.ContentPage, error) {
	return m.list(ctx)
}
func (m *mockContentRepo) Upsert(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error) {
	return m.upsert(ctx, page)
}

var _ repo.ContentRepo = (*mockContentRepo)(nil)

// ---- hooks -----------------------------------------------------------------

// countingCounters records domain counter increments.
type countingCounters struct {
	mu       sync.Mutex
	packages int
	bookings int
	payouts  int
	partial  []string
}

func (c *countingCounters) PackageCreated() { c.mu.Lock(); c.packages++; c.mu.Unlock() }
func (c *countingCounters) BookingCreated() { c.mu.Lock(); c.bookings++; c.mu.Unlock() }
func (c *countingCounters) PayoutCreated()  { c.mu.Lock(); c.payouts++; c.mu.Unlock() }
func (c *countingCounters) PartialWrite(batch string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partial = append(c.partial, batch)
}

var _ service.Counters = (*countingCounters)(nil)

// capturePublisher keeps every published event.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var _ events.Publisher = (*capturePublisher)(nil)

// ---- callers ---------------------------------------------------------------

func travelerCaller() domain.Caller {
	return domain.Caller{AccountID: uuid.New(), Role: domain.RoleTraveler}
}

func agencyCaller() domain.Caller {
	return domain.Caller{AccountID: uuid.New(), Role: domain.RoleAgency}
}

func adminCaller() domain.Caller {
	return domain.Caller{AccountID: uuid.New(), Role: domain.RoleAdmin}
}

func ptr[T any](v T) *T { return &v }

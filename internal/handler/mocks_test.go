package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/wayfarer/internal/auth"
	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/handler"
)

// ---- mock AuthServicer -----------------------------------------------------

type mockAuth struct {
	tokens       map[string]*auth.Claims
	signUp       func(ctx context.Context, in auth.SignUpInput) (auth.SignUpResult, error)
	signIn       func(ctx context.Context, email, password string) (*domain.Session, error)
	signOut      func(ctx context.Context, claims *auth.Claims, scope auth.Scope) error
	refresh      func(ctx context.Context, refreshToken string) (*domain.Session, error)
	confirmEmail func(ctx context.Context, token string) (domain.Account, error)
	account      func(ctx context.Context, id uuid.UUID) (domain.Account, error)
}

func (m *mockAuth) SignUp(ctx context.Context, in auth.SignUpInput) (auth.SignUpResult, error) {
	return m.signUp(ctx, in)
}
func (m *mockAuth) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	return m.signIn(ctx, email, password)
}
func (m *mockAuth) SignOut(ctx context.Context, claims *auth.Claims, scope auth.Scope) error {
	return m.signOut(ctx, claims, scope)
}
func (m *mockAuth) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	return m.refresh(ctx, refreshToken)
}
func (m *mockAuth) Verify(_ context.Context, accessToken string) (*auth.Claims, error) {
	if c, ok := m.tokens[accessToken]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: unknown token", domain.ErrAuthentication)
}
func (m *mockAuth) ConfirmEmail(ctx context.Context, token string) (domain.Account, error) {
	return m.confirmEmail(ctx, token)
}
func (m *mockAuth) Account(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return m.account(ctx, id)
}

var _ handler.AuthServicer = (*mockAuth)(nil)

// ---- mock ProfileServicer --------------------------------------------------

type mockProfiles struct {
	get    func(ctx context.Context, caller domain.Caller, accountID uuid.UUID) (domain.Profile, error)
	update func(ctx context.Context, caller domain.Caller, patch domain.ProfilePatch) (domain.Profile, error)
}

func (m *mockProfiles) Get(ctx context.Context, caller domain.Caller, accountID uuid.UUID) (domain.Profile, error) {
	return m.get(ctx, caller, accountID)
}
func (m *mockProfiles) Update(ctx context.Context, caller domain.Caller, patch domain.ProfilePatch) (domain.Profile, error) {
	return m.update(ctx, caller, patch)
}

var _ handler.ProfileServicer = (*mockProfiles)(nil)

// ---- mock PackageServicer --------------------------------------------------

type mockPackages struct {
	create           func(ctx context.Context, caller domain.Caller, in domain.NewPackage) (domain.Package, error)
	update           func(ctx context.Context, caller domain.Caller, pkg domain.Package) (domain.Package, error)
	replaceItinerary func(ctx context.Context, caller domain.Caller, id uuid.UUID, days []domain.ItineraryDay) error
	addMedia         func(ctx context.Context, caller domain.Caller, id uuid.UUID, items []domain.MediaItem) error
	setPrimaryMedia  func(ctx context.Context, caller domain.Caller, id, mediaID uuid.UUID) error
	publish          func(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error)
	withdraw         func(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error)
	submitForReview  func(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error)
	updateStatus     func(ctx context.Context, caller domain.Caller, id uuid.UUID, status domain.PackageStatus) (domain.Package, error)
	toggleFeatured   func(ctx context.Context, caller domain.Caller, id uuid.UUID, featured bool) (domain.Package, error)
	get              func(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.PackageDetail, error)
	listForAgency    func(ctx context.Context, caller domain.Caller, agencyID uuid.UUID) ([]domain.Package, error)
	listPublished    func(ctx context.Context, filter domain.PackageFilter) ([]domain.Package, error)
	listAll          func(ctx context.Context, caller domain.Caller) ([]domain.Package, error)
	statusCounts     func(ctx context.Context, caller domain.Caller) (domain.PackageStatusCounts, error)
}

func (m *mockPackages) Create(ctx context.Context, caller domain.Caller, in domain.NewPackage) (domain.Package, error) {
	return m.create(ctx, caller, in)
}
func (m *mockPackages) Update(ctx context.Context, caller domain.Caller, pkg domain.Package) (domain.Package, error) {
	return m.update(ctx, caller, pkg)
}
func (m *mockPackages) ReplaceItinerary(ctx context.Context, caller domain.Caller, id uuid.UUID, days []domain.ItineraryDay) error {
	return m.replaceItinerary(ctx, caller, id, days)
}
func (m *mockPackages) AddMedia(ctx context.Context, caller domain.Caller, id uuid.UUID, items []domain.MediaItem) error {
	return m.addMedia(ctx, caller, id, items)
}
func (m *mockPackages) SetPrimaryMedia(ctx context.Context, caller domain.Caller, id, mediaID uuid.UUID) error {
	return m.setPrimaryMedia(ctx, caller, id, mediaID)
}
func (m *mockPackages) Publish(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error) {
	return m.publish(ctx, caller, id)
}
func (m *mockPackages) Withdraw(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error) {
	return m.withdraw(ctx, caller, id)
}
func (m *mockPackages) SubmitForReview(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error) {
	return m.submitForReview(ctx, caller, id)
}
func (m *mockPackages) UpdateStatus(ctx context.Context, caller domain.Caller, id uuid.UUID, status domain.PackageStatus) (domain.Package, error) {
	return m.updateStatus(ctx, caller, id, status)
}
func (m *mockPackages) ToggleFeatured(ctx context.Context, caller domain.Caller, id uuid.UUID, featured bool) (domain.Package, error) {
	return m.toggleFeatured(ctx, caller, id, featured)
}
func (m *mockPackages) Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.PackageDetail, error) {
	return m.get(ctx, caller, id)
}
func (m *mockPackages) ListForAgency(ctx context.Context, caller domain.Caller, agencyID uuid.UUID) ([]domain.Package, error) {
	return m.listForAgency(ctx, caller, agencyID)
}
func (m *mockPackages) ListPublished(ctx context.Context, filter domain.PackageFilter) ([]domain.Package, error) {
	return m.listPublished(ctx, filter)
}
func (m *mockPackages) ListAll(ctx context.Context, caller domain.Caller) ([]domain.Package, error) {
	return m.listAll(ctx, caller)
}
func (m *mockPackages) StatusCounts(ctx context.Context, caller domain.Caller) (domain.PackageStatusCounts, error) {
	return m.statusCounts(ctx, caller)
}

var _ handler.PackageServicer = (*mockPackages)(nil)

// ---- mock BookingServicer --------------------------------------------------

type mockBookings struct {
	createRequest   func(ctx context.Context, caller domain.Caller, req domain.BookingRequest) (domain.Booking, error)
	updateStatus    func(ctx context.Context, caller domain.Caller, id uuid.UUID, status *domain.BookingStatus, payment *domain.PaymentStatus) (domain.Booking, error)
	listForTraveler func(ctx context.Context, caller domain.Caller) ([]domain.Booking, error)
	listForAgency   func(ctx context.Context, caller domain.Caller, agencyID uuid.UUID) ([]domain.Booking, error)
	listAll         func(ctx context.Context, caller domain.Caller) ([]domain.Booking, error)
	stats           func(ctx context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.BookingStats, error)
}

func (m *mockBookings) CreateRequest(ctx context.Context, caller domain.Caller, req domain.BookingRequest) (domain.Booking, error) {
	return m.createRequest(ctx, caller, req)
}
func (m *mockBookings) UpdateStatus(ctx context.Context, caller domain.Caller, id uuid.UUID,
	status *domain.BookingStatus, payment *domain.PaymentStatus) (domain.Booking, error) {
	return m.updateStatus(ctx, caller, id, status, payment)
}
func (m *mockBookings) ListForTraveler(ctx context.Context, caller domain.Caller) ([]domain.Booking, error) {
	return m.listForTraveler(ctx, caller)
}
func (m *mockBookings) ListForAgency(ctx context.Context, caller domain.Caller, agencyID uuid.UUID) ([]domain.Booking, error) {
	return m.listForAgency(ctx, caller, agencyID)
}
func (m *mockBookings) ListAll(ctx context.Context, caller domain.Caller) ([]domain.Booking, error) {
	return m.listAll(ctx, caller)
}
func (m *mockBookings) Stats(ctx context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.BookingStats, error) {
	return m.stats(ctx, caller, now, loc)
}

var _ handler.BookingServicer = (*mockBookings)(nil)

// ---- mock AdminServicer ----------------------------------------------------

type mockAdmin struct {
	dashboard            func(ctx context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.Dashboard, error)
	processPayouts       func(ctx context.Context, caller domain.Caller, ids []uuid.UUID) (int64, error)
	resolvePendingAction func(ctx context.Context, caller domain.Caller, id uuid.UUID, status domain.ActionStatus) (domain.PendingAction, error)
	updateAgencyStatus   func(ctx context.Context, caller domain.Caller, id uuid.UUID, status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error)
	listAgencies         func(ctx context.Context, caller domain.Caller) ([]domain.AgencySummary, error)
	listPayouts          func(ctx context.Context, caller domain.Caller, status *domain.PayoutStatus) ([]domain.Payout, error)
	listPendingActions   func(ctx context.Context, caller domain.Caller, status *domain.ActionStatus) ([]domain.PendingAction, error)
	listActivity         func(ctx context.Context, caller domain.Caller, p domain.PaginationParams) (domain.Page[domain.ActivityLog], error)
}

func (m *mockAdmin) Dashboard(ctx context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.Dashboard, error) {
	return m.dashboard(ctx, caller, now, loc)
}
func (m *mockAdmin) ProcessPayouts(ctx context.Context, caller domain.Caller, ids []uuid.UUID) (int64, error) {
	return m.processPayouts(ctx, caller, ids)
}
func (m *mockAdmin) ResolvePendingAction(ctx context.Context, caller domain.Caller, id uuid.UUID, status domain.ActionStatus) (domain.PendingAction, error) {
	return m.resolvePendingAction(ctx, caller, id, status)
}
func (m *mockAdmin) UpdateAgencyStatus(ctx context.Context, caller domain.Caller, id uuid.UUID,
	status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error) {
	return m.updateAgencyStatus(ctx, caller, id, status, verified)
}
func (m *mockAdmin) ListAgencies(ctx context.Context, caller domain.Caller) ([]domain.AgencySummary, error) {
	return m.listAgencies(ctx, caller)
}
func (m *mockAdmin) ListPayouts(ctx context.Context, caller domain.Caller, status *domain.PayoutStatus) ([]domain.Payout, error) {
	return m.listPayouts(ctx, caller, status)
}
func (m *mockAdmin) ListPendingActions(ctx context.Context, caller domain.Caller, status *domain.ActionStatus) ([]domain.PendingAction, error) {
	return m.listPendingActions(ctx, caller, status)
}
func (m *mockAdmin) ListActivity(ctx context.Context, caller domain.Caller, p domain.PaginationParams) (domain.Page[domain.ActivityLog], error) {
	return m.listActivity(ctx, caller, p)
}

var _ handler.AdminServicer = (*mockAdmin)(nil)

// ---- mock ExportServicer and ContentServicer -------------------------------

type mockExport struct {
	bookings func(ctx context.Context, caller domain.Caller) ([]domain.BookingExportRow, error)
}

func (m *mockExport) Bookings(ctx context.Context, caller domain.Caller) ([]domain.BookingExportRow, error) {
	return m.bookings(ctx, caller)
}

var _ handler.ExportServicer = (*mockExport)(nil)

type mockContent struct {
	get    func(ctx context.Context, caller domain.Caller, slug string) (domain.ContentPage, error)
	list   func(ctx context.Context, caller domain.Caller) ([]domain.ContentPage, error)
	upsert func(ctx context.Context, caller domain.Caller, page domain.ContentPage) (domain.ContentPage, error)
}

func (m *mockContent) Get(ctx context.Context, caller domain.Caller, slug string) (domain.ContentPage, error) {
	return m.get(ctx, caller, slug)
}
func (m *mockContent) List(ctx context.Context, caller domain.Caller) ([]domain.ContentPage, error) {
	return m.list(ctx, caller)
}
func (m *mockContent) Upsert(ctx context.Context, caller domain.Caller, page domain.ContentPage) (domain.ContentPage, error) {
	return m.upsert(ctx, caller, page)
}

var _ handler.ContentServicer = (*mockContent)(nil)

type signInTally map[string]int

func (t signInTally) SignIn(result string) { t[result]++ }

// ---- harness ---------------------------------------------------------------

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// Bearer tokens known to every harness.
const (
	travelerToken = "traveler-token"
	agencyToken   = "agency-token"
	adminToken    = "admin-token"
)

type harness struct {
	auth     *mockAuth
	profiles *mockProfiles
	packages *mockPackages
	bookings *mockBookings
	admin    *mockAdmin
	export   *mockExport
	content  *mockContent
	signIns  signInTally
	logs     *bytes.Buffer

	traveler domain.Caller
	agency   domain.Caller
	adminC   domain.Caller
}

func newHarness() *harness {
	h := &harness{
		profiles: &mockProfiles{},
		packages: &mockPackages{},
		bookings: &mockBookings{},
		admin:    &mockAdmin{},
		export:   &mockExport{},
		content:  &mockContent{},
		signIns:  signInTally{},
		logs:     &bytes.Buffer{},
		traveler: domain.Caller{AccountID: uuid.New(), Role: domain.RoleTraveler},
		agency:   domain.Caller{AccountID: uuid.New(), Role: domain.RoleAgency},
		adminC:   domain.Caller{AccountID: uuid.New(), Role: domain.RoleAdmin},
	}
	h.auth = &mockAuth{tokens: map[string]*auth.Claims{
		travelerToken: {AccountID: h.traveler.AccountID, Role: domain.RoleTraveler, SessionID: "s-traveler"},
		agencyToken:   {AccountID: h.agency.AccountID, Role: domain.RoleAgency, SessionID: "s-agency"},
		adminToken:    {AccountID: h.adminC.AccountID, Role: domain.RoleAdmin, SessionID: "s-admin"},
	}}
	return h
}

func (h *harness) router() http.Handler {
	return handler.NewServer(handler.Services{
		Auth:     h.auth,
		Profiles: h.profiles,
		Packages: h.packages,
		Bookings: h.bookings,
		Admin:    h.admin,
		Export:   h.export,
		Content:  h.content,
		SignIns:  h.signIns,
		Log:      slog.New(slog.NewJSONHandler(h.logs, nil)),
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	}).Routes()
}

// do sends a request through the full router. body is JSON-encoded unless it
// is a string, which is sent verbatim.
func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router().ServeHTTP(rec, req)
	return rec
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Redirect string `json:"redirect"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var res apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	res := decode(t, rec)
	require.True(t, res.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(res.Data, dst))
}

var errBoom = errors.New("boom")

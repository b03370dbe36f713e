// Package handler implements the HTTP handlers for the Wayfarer API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (auth.go, package.go, booking.go, ...) but share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/auth"
	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/middleware"
)

// AuthServicer is the authentication provider as seen by the auth handlers.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without Redis or the database.
type AuthServicer interface {
	SignUp(ctx context.Context, in auth.SignUpInput) (auth.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, claims *auth.Claims, scope auth.Scope) error
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	Verify(ctx context.Context, accessToken string) (*auth.Claims, error)
	ConfirmEmail(ctx context.Context, token string) (domain.Account, error)
	Account(ctx context.Context, id uuid.UUID) (domain.Account, error)
}

// ProfileServicer defines the profile operations the handlers depend on.
type ProfileServicer interface {
	Get(ctx context.Context, caller domain.Caller, accountID uuid.UUID) (domain.Profile, error)
	Update(ctx context.Context, caller domain.Caller, patch domain.ProfilePatch) (domain.Profile, error)
}

// PackageServicer defines the package operations the handlers depend on.
type PackageServicer interface {
	Create(ctx context.Context, caller domain.Caller, in domain.NewPackage) (domain.Package, error)
	Update(ctx context.Context, caller domain.Caller, pkg domain.Package) (domain.Package, error)
	ReplaceItinerary(ctx context.Context, caller domain.Caller, packageID uuid.UUID, days []domain.ItineraryDay) error
	AddMedia(ctx context.Context, caller domain.Caller, packageID uuid.UUID, items []domain.MediaItem) error
	SetPrimaryMedia(ctx context.Context, caller domain.Caller, packageID, mediaID uuid.UUID) error
	Publish(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error)
	Withdraw(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error)
	SubmitForReview(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Package, error)
	UpdateStatus(ctx context.Context, caller domain.Caller, id uuid.UUID, status domain.PackageStatus) (domain.Package, error)
	ToggleFeatured(ctx context.Context, caller domain.Caller, id uuid.UUID, featured bool) (domain.Package, error)
	Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.PackageDetail, error)
	ListForAgency(ctx context.Context, caller domain.Caller, agencyID uuid.UUID) ([]domain.Package, error)
	ListPublished(ctx context.Context, filter domain.PackageFilter) ([]domain.Package, error)
	ListAll(ctx context.Context, caller domain.Caller) ([]domain.Package, error)
	StatusCounts(ctx context.Context, caller domain.Caller) (domain.PackageStatusCounts, error)
}

// BookingServicer defines the booking operations the handlers depend on.
type BookingServicer interface {
	CreateRequest(ctx context.Context, caller domain.Caller, req domain.BookingRequest) (domain.Booking, error)
	UpdateStatus(ctx context.Context, caller domain.Caller, id uuid.UUID,
		status *domain.BookingStatus, payment *domain.PaymentStatus) (domain.Booking, error)
	ListForTraveler(ctx context.Context, caller domain.Caller) ([]domain.Booking, error)
	ListForAgency(ctx context.Context, caller domain.Caller, agencyID uuid.UUID) ([]domain.Booking, error)
	ListAll(ctx context.Context, caller domain.Caller) ([]domain.Booking, error)
	Stats(ctx context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.BookingStats, error)
}

// AdminServicer defines the admin aggregation operations the handlers depend on.
type AdminServicer interface {
	Dashboard(ctx context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.Dashboard, error)
	ProcessPayouts(ctx context.Context, caller domain.Caller, ids []uuid.UUID) (int64, error)
	ResolvePendingAction(ctx context.Context, caller domain.Caller, id uuid.UUID, status domain.ActionStatus) (domain.PendingAction, error)
	UpdateAgencyStatus(ctx context.Context, caller domain.Caller, id uuid.UUID,
		status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error)
	ListAgencies(ctx context.Context, caller domain.Caller) ([]domain.AgencySummary, error)
	ListPayouts(ctx context.Context, caller domain.Caller, status *domain.PayoutStatus) ([]domain.Payout, error)
	ListPendingActions(ctx context.Context, caller domain.Caller, status *domain.ActionStatus) ([]domain.PendingAction, error)
	ListActivity(ctx context.Context, caller domain.Caller, p domain.PaginationParams) (domain.Page[domain.ActivityLog], error)
}

// ExportServicer defines the export operation the export handler depends on.
type ExportServicer interface {
	Bookings(ctx context.Context, caller domain.Caller) ([]domain.BookingExportRow, error)
}

// ContentServicer defines the content page operations.
type ContentServicer interface {
	Get(ctx context.Context, caller domain.Caller, slug string) (domain.ContentPage, error)
	List(ctx context.Context, caller domain.Caller) ([]domain.ContentPage, error)
	Upsert(ctx context.Context, caller domain.Caller, page domain.ContentPage) (domain.ContentPage, error)
}

// SignInCounter counts sign-in attempts by result. *metrics.Metrics satisfies it.
type SignInCounter interface {
	SignIn(result string)
}

// Services bundles the dependencies of a Server. Any service may be nil in
// tests that do not exercise its routes.
type Services struct {
	Auth     AuthServicer
	Profiles ProfileServicer
	Packages PackageServicer
	Bookings BookingServicer
	Admin    AdminServicer
	Export   ExportServicer
	Content  ContentServicer

	SignIns  SignInCounter
	Log      *slog.Logger
	Location *time.Location
	Now      func() time.Time
	OpenAPI  []byte
}

// Server holds the dependencies shared by every handler.
type Server struct {
	auth     AuthServicer
	profiles ProfileServicer
	packages PackageServicer
	bookings BookingServicer
	admin    AdminServicer
	export   ExportServicer
	content  ContentServicer

	signIns SignInCounter
	log     *slog.Logger
	loc     *time.Location
	now     func() time.Time
	openAPI []byte
}

// NewServer constructs the Server with all its dependencies.
func NewServer(s Services) *Server {
	srv := &Server{
		auth:     s.Auth,
		profiles: s.Profiles,
		packages: s.Packages,
		bookings: s.Bookings,
		admin:    s.Admin,
		export:   s.Export,
		content:  s.Content,
		signIns:  s.SignIns,
		log:      s.Log,
		loc:      s.Location,
		now:      s.Now,
		openAPI:  s.OpenAPI,
	}
	if srv.log == nil {
		srv.log = slog.Default()
	}
	if srv.loc == nil {
		srv.loc = time.UTC
	}
	if srv.now == nil {
		srv.now = time.Now
	}
	return srv
}

// NewHealthHandler returns a router with only the health and OpenAPI document routes.
func NewHealthHandler() http.Handler {
	return NewServer(Services{}).Routes()
}

// Routes returns the API router. Cross-cutting middleware (request ids,
// logging, CORS, metrics) is applied by the caller around it.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	if s.auth == nil {
		return r
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewAuthenticator(s.auth, s.log))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.SignUp)
			r.Post("/signin", s.SignIn)
			r.Post("/signout", s.SignOut)
			r.Post("/refresh", s.Refresh)
			r.Post("/confirm", s.ConfirmEmail)
			r.Get("/user", s.GetUser)
		})

		r.Get("/gate", s.GetGate)
		r.Get("/gate/redirect", s.GetPostAuthRedirect)

		r.Get("/me/profile", s.GetMyProfile)
		r.Patch("/me/profile", s.UpdateMyProfile)
		r.Get("/profiles/{id}", s.GetProfile)

		r.Get("/packages", s.ListPublishedPackages)
		r.Get("/packages/{id}", s.GetPackage)

		r.Route("/bookings", func(r chi.Router) {
			r.With(middleware.RequireRole(domain.RoleTraveler)).Post("/", s.CreateBooking)
			r.With(middleware.RequireRole(domain.RoleTraveler)).Get("/", s.ListMyBookings)
			r.Patch("/{id}", s.UpdateBookingStatus)
		})

		r.Get("/content/{slug}", s.GetContentPage)

		r.Route("/agency", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAgency))
			r.Get("/packages", s.ListAgencyPackages)
			r.Post("/packages", s.CreatePackage)
			r.Put("/packages/{id}", s.UpdatePackage)
			r.Put("/packages/{id}/itinerary", s.ReplaceItinerary)
			r.Post("/packages/{id}/media", s.AddMedia)
			r.Put("/packages/{id}/media/{mediaID}/primary", s.SetPrimaryMedia)
			r.Post("/packages/{id}/publish", s.PublishPackage)
			r.Post("/packages/{id}/withdraw", s.WithdrawPackage)
			r.Post("/packages/{id}/submit", s.SubmitPackage)
			r.Get("/bookings", s.ListAgencyBookings)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Get("/dashboard", s.GetDashboard)
			r.Get("/agencies", s.ListAgencies)
			r.Patch("/agencies/{id}", s.UpdateAgency)
			r.Get("/packages", s.ListAllPackages)
			r.Get("/packages/counts", s.GetPackageCounts)
			r.Patch("/packages/{id}/status", s.UpdatePackageStatus)
			r.Patch("/packages/{id}/featured", s.SetPackageFeatured)
			r.Get("/bookings", s.ListAllBookings)
			r.Get("/bookings/stats", s.GetBookingStats)
			r.Get("/payouts", s.ListPayouts)
			r.Post("/payouts/process", s.ProcessPayouts)
			r.Get("/pending-actions", s.ListPendingActions)
			r.Patch("/pending-actions/{id}", s.ResolvePendingAction)
			r.Get("/activity", s.ListActivity)
			r.Get("/export/bookings", s.ExportBookings)
			r.Get("/content", s.ListContentPages)
			r.Put("/content/{slug}", s.SaveContentPage)
		})
	})
	return r
}

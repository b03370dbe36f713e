package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/domain"
)

// ListPackages returns the published catalogue narrowed by f.
func (c *Client) ListPackages(ctx context.Context, f domain.PackageFilter) ([]domain.Package, error) {
	q := url.Values{}
	setIf := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	setIf("search", f.Search)
	setIf("destination", f.Destination)
	setIf("category", f.Category)
	setIf("difficulty", f.Difficulty)
	if f.MinPrice != nil {
		q.Set("min_price", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		q.Set("max_price", f.MaxPrice.String())
	}
	if f.DurationDays != nil {
		q.Set("duration_days", strconv.Itoa(*f.DurationDays))
	}
	path := "/api/packages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var pkgs []domain.Package
	if err := c.do(ctx, http.MethodGet, path, "", nil, &pkgs); err != nil {
		return nil, fmt.Errorf("client.ListPackages: %w", err)
	}
	return pkgs, nil
}

// GetPackage returns a package with its itinerary and media. accessToken may
// be empty for published packages.
func (c *Client) GetPackage(ctx context.Context, accessToken string, id uuid.UUID) (domain.PackageDetail, error) {
	var d domain.PackageDetail
	if err := c.do(ctx, http.MethodGet, "/api/packages/"+id.String(), accessToken, nil, &d); err != nil {
		return domain.PackageDetail{}, fmt.Errorf("client.GetPackage: %w", err)
	}
	return d, nil
}

// BookingInput is a traveler's booking request. The server computes the price.
type BookingInput struct {
	PackageID       uuid.UUID `json:"package_id"`
	BookingDate     string    `json:"booking_date"`
	Participants    int       `json:"participants"`
	SpecialRequests string    `json:"special_requests,omitempty"`
}

func (c *Client) CreateBooking(ctx context.Context, accessToken string, in BookingInput) (domain.Booking, error) {
	var b domain.Booking
	if err := c.do(ctx, http.MethodPost, "/api/bookings", accessToken, in, &b); err != nil {
		return domain.Booking{}, fmt.Errorf("client.CreateBooking: %w", err)
	}
	return b, nil
}

func (c *Client) ListBookings(ctx context.Context, accessToken string) ([]domain.Booking, error) {
	var bs []domain.Booking
	if err := c.do(ctx, http.MethodGet, "/api/bookings", accessToken, nil, &bs); err != nil {
		return nil, fmt.Errorf("client.ListBookings: %w", err)
	}
	return bs, nil
}

// GateResult is the server's route gate decision.
type GateResult struct {
	Outcome      string `json:"outcome"`
	Path         string `json:"path,omitempty"`
	IntendedPath string `json:"intended_path,omitempty"`
	AuthFlow     string `json:"auth_flow,omitempty"`
	Location     string `json:"location,omitempty"`
}

// Gate asks the server whether the bearer may open path as role.
func (c *Client) Gate(ctx context.Context, accessToken string, role domain.Role, path string) (GateResult, error) {
	q := url.Values{"role": {string(role)}}
	if path != "" {
		q.Set("path", path)
	}
	var res GateResult
	if err := c.do(ctx, http.MethodGet, "/api/gate?"+q.Encode(), accessToken, nil, &res); err != nil {
		return GateResult{}, fmt.Errorf("client.Gate: %w", err)
	}
	return res, nil
}

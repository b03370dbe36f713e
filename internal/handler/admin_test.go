package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/wayfarer/internal/domain"
)

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	h := newHarness()

	for _, token := range []string{travelerToken, agencyToken} {
		rec := h.do(t, http.MethodGet, "/api/admin/dashboard", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}
	rec := h.do(t, http.MethodGet, "/api/admin/dashboard", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/auth?redirect=%2Fapi%2Fadmin%2Fdashboard", decode(t, rec).Error.Redirect)
}

func TestGetDashboard(t *testing.T) {
	h := newHarness()
	h.admin.dashboard = func(_ context.Context, caller domain.Caller, now time.Time, loc *time.Location) (domain.Dashboard, error) {
		assert.Equal(t, h.adminC, caller)
		assert.Equal(t, testNow, now)
		return domain.Dashboard{Revenue: 100000, PlatformCommission: 12000, OpenActions: 2, GeneratedAt: now}, nil
	}

	rec := h.do(t, http.MethodGet, "/api/admin/dashboard", adminToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var d domain.Dashboard
	decodeData(t, rec, &d)
	assert.Equal(t, domain.Money(12000), d.PlatformCommission)
	assert.Equal(t, 2, d.OpenActions)
}

func TestListPayouts_StatusFilter(t *testing.T) {
	h := newHarness()
	var got *domain.PayoutStatus
	h.admin.listPayouts = func(_ context.Context, _ domain.Caller, status *domain.PayoutStatus) ([]domain.Payout, error) {
		got = status
		return []domain.Payout{}, nil
	}

	rec := h.do(t, http.MethodGet, "/api/admin/payouts?status=pending", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.PayoutPending, *got)

	rec = h.do(t, http.MethodGet, "/api/admin/payouts", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got)
}

func TestProcessPayouts(t *testing.T) {
	h := newHarness()
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	h.admin.processPayouts = func(_ context.Context, _ domain.Caller, got []uuid.UUID) (int64, error) {
		assert.Equal(t, ids, got)
		return 2, nil
	}

	rec := h.do(t, http.MethodPost, "/api/admin/payouts/process", adminToken, map[string]any{"ids": ids})

	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Processed int64 `json:"processed"`
	}
	decodeData(t, rec, &res)
	assert.EqualValues(t, 2, res.Processed)
}

func TestResolvePendingAction(t *testing.T) {
	h := newHarness()
	id := uuid.New()
	h.admin.resolvePendingAction = func(_ context.Context, _ domain.Caller, got uuid.UUID, status domain.ActionStatus) (domain.PendingAction, error) {
		return domain.PendingAction{ID: got, Status: status}, nil
	}

	rec := h.do(t, http.MethodPatch, "/api/admin/pending-actions/"+id.String(), adminToken, map[string]string{"status": "dismissed"})

	require.Equal(t, http.StatusOK, rec.Code)
	var a domain.PendingAction
	decodeData(t, rec, &a)
	assert.Equal(t, domain.ActionDismissed, a.Status)
}

func TestUpdateAgency(t *testing.T) {
	h := newHarness()
	id := uuid.New()
	h.admin.updateAgencyStatus = func(_ context.Context, _ domain.Caller, got uuid.UUID, status *domain.AgencyStatus, verified *bool) (domain.AgencySummary, error) {
		require.NotNil(t, status)
		assert.Nil(t, verified)
		return domain.AgencySummary{AccountID: got, AgencyFields: domain.AgencyFields{Status: *status}}, nil
	}

	rec := h.do(t, http.MethodPatch, "/api/admin/agencies/"+id.String(), adminToken, map[string]string{"status": "suspended"})

	require.Equal(t, http.StatusOK, rec.Code)
	var a domain.AgencySummary
	decodeData(t, rec, &a)
	assert.Equal(t, domain.AgencySuspended, a.Status)
}

func TestListActivity_Pagination(t *testing.T) {
	h := newHarness()
	var got domain.PaginationParams
	h.admin.listActivity = func(_ context.Context, _ domain.Caller, p domain.PaginationParams) (domain.Page[domain.ActivityLog], error) {
		got = p
		return domain.Page[domain.ActivityLog]{Items: []domain.ActivityLog{}, Page: p.Page, Limit: p.Limit}, nil
	}

	rec := h.do(t, http.MethodGet, "/api/admin/activity?page=3&limit=500", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaginationParams{Page: 3, Limit: 200}, got)

	rec = h.do(t, http.MethodGet, "/api/admin/activity", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaginationParams{Page: 1, Limit: 50}, got)

	rec = h.do(t, http.MethodGet, "/api/admin/activity?page=x", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pkordes/wayfarer/internal/domain"
)

// exportRowFixture returns a fully-populated domain.BookingExportRow for testing.
func exportRowFixture() domain.BookingExportRow {
	return domain.BookingExportRow{
		BookingID:     uuid.NewString(),
		CreatedAt:     time.Date(2026, 9, 2, 14, 30, 0, 0, time.UTC),
		BookingDate:   "2026-11-20",
		PackageID:     uuid.NewString(),
		PackageTitle:  "Inca Trail, 4 days",
		AgencyID:      uuid.NewString(),
		TravelerID:    uuid.NewString(),
		TravelerEmail: "tom@example.test",
		Participants:  2,
		TotalPrice:    100000,
		Status:        domain.BookingConfirmed,
		PaymentStatus: domain.PaymentPaid,
	}
}

func exportHarness(rows []domain.BookingExportRow) *harness {
	h := newHarness()
	h.export.bookings = func(context.Context, domain.Caller) ([]domain.BookingExportRow, error) {
		return rows, nil
	}
	return h
}

// TestExportBookings_JSON_Default verifies that the default format is JSON in
// the success envelope.
func TestExportBookings_JSON_Default(t *testing.T) {
	row := exportRowFixture()
	h := exportHarness([]domain.BookingExportRow{row})

	rec := h.do(t, http.MethodGet, "/api/admin/export/bookings", adminToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var got []map[string]any
	decodeData(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, row.BookingID, got[0]["booking_id"])
	assert.Equal(t, "2026-11-20", got[0]["booking_date"])
	assert.Equal(t, 1000.0, got[0]["total_price"])
}

// TestExportBookings_CSV verifies the header row, one data row per booking
// and that commas inside a title are quoted.
func TestExportBookings_CSV(t *testing.T) {
	row := exportRowFixture()
	h := exportHarness([]domain.BookingExportRow{row})

	rec := h.do(t, http.MethodGet, "/api/admin/export/bookings?format=csv", adminToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings.csv")

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "booking_id", records[0][0])
	assert.Equal(t, "payment_status", records[0][11])
	assert.Equal(t, row.BookingID, records[1][0])
	assert.Equal(t, "2026-09-02T14:30:00Z", records[1][1])
	assert.Equal(t, "Inca Trail, 4 days", records[1][4])
	assert.Equal(t, "2", records[1][8])
	assert.Equal(t, "1000.00", records[1][9])
	assert.Equal(t, "confirmed", records[1][10])
}

// TestExportBookings_CSV_Empty verifies that an empty export is just the header.
func TestExportBookings_CSV_Empty(t *testing.T) {
	h := exportHarness([]domain.BookingExportRow{})

	rec := h.do(t, http.MethodGet, "/api/admin/export/bookings?format=csv", adminToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// TestExportBookings_XLSX reads the workbook back and checks the sheet.
func TestExportBookings_XLSX(t *testing.T) {
	row := exportRowFixture()
	h := exportHarness([]domain.BookingExportRow{row, exportRowFixture()})

	rec := h.do(t, http.MethodGet, "/api/admin/export/bookings?format=xlsx", adminToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bookings.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "booking_id", rows[0][0])
	assert.Equal(t, row.BookingID, rows[1][0])
	assert.Equal(t, "Inca Trail, 4 days", rows[1][4])
	assert.Equal(t, "2", rows[1][8])
}

func TestExportBookings_UnknownFormat(t *testing.T) {
	h := exportHarness(nil)

	rec := h.do(t, http.MethodGet, "/api/admin/export/bookings?format=pdf", adminToken, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportBookings_AdminOnly(t *testing.T) {
	h := exportHarness(nil)

	rec := h.do(t, http.MethodGet, "/api/admin/export/bookings", agencyToken, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

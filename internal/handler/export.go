// export.go implements GET /api/admin/export/bookings.
// Returns every booking as a flat table.
// Supports ?format=csv (CSV), ?format=xlsx (Excel) or default (JSON).

package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/xuri/excelize/v2"

	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/middleware"
)

// exportHeaders defines the column names written as the first row of CSV and XLSX exports.
var exportHeaders = []string{
	"booking_id", "created_at", "booking_date", "package_id", "package_title",
	"agency_id", "traveler_id", "traveler_email", "participants", "total_price",
	"status", "payment_status",
}

const exportSheet = "Bookings"

// exportRow is the JSON shape of one exported booking.
type exportRow struct {
	BookingID     string               `json:"booking_id"`
	CreatedAt     time.Time            `json:"created_at"`
	BookingDate   openapi_types.Date   `json:"booking_date"`
	PackageID     string               `json:"package_id"`
	PackageTitle  string               `json:"package_title"`
	AgencyID      string               `json:"agency_id"`
	TravelerID    string               `json:"traveler_id"`
	TravelerEmail string               `json:"traveler_email,omitempty"`
	Participants  int                  `json:"participants"`
	TotalPrice    domain.Money         `json:"total_price"`
	Status        domain.BookingStatus `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
}

// ExportBookings implements GET /api/admin/export/bookings.
func (s *Server) ExportBookings(w http.ResponseWriter, r *http.Request) {
	var format *string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		requestError(w, err.Error())
		return
	}
	f := "json"
	if format != nil {
		f = *format
	}
	if f != "json" && f != "csv" && f != "xlsx" {
		requestError(w, fmt.Sprintf("unknown format %q: want json, csv or xlsx", f))
		return
	}

	rows, err := s.export.Bookings(r.Context(), middleware.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch f {
	case "csv":
		writeFile(w, "text/csv", "bookings.csv", buildCSV(rows))
	case "xlsx":
		buf, err := buildXLSX(rows)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "bookings.xlsx", buf)
	default:
		writeJSON(w, http.StatusOK, buildJSONRows(rows))
	}
}

func writeFile(w http.ResponseWriter, contentType, name string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	buf.WriteTo(w)
}

// buildJSONRows converts domain rows to the JSON response shape.
func buildJSONRows(rows []domain.BookingExportRow) []exportRow {
	out := make([]exportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, exportRow{
			BookingID:     r.BookingID,
			CreatedAt:     r.CreatedAt.UTC(),
			BookingDate:   mustParseDate(r.BookingDate),
			PackageID:     r.PackageID,
			PackageTitle:  r.PackageTitle,
			AgencyID:      r.AgencyID,
			TravelerID:    r.TravelerID,
			TravelerEmail: r.TravelerEmail,
			Participants:  r.Participants,
			TotalPrice:    r.TotalPrice,
			Status:        r.Status,
			PaymentStatus: r.PaymentStatus,
		})
	}
	return out
}

// buildCSV encodes domain rows as CSV with a header row.
func buildCSV(rows []domain.BookingExportRow) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	w.Write(exportHeaders)
	for _, r := range rows {
		//nolint:errcheck
		w.Write(csvRecord(r))
	}
	w.Flush()
	return &buf
}

// csvRecord encodes a domain.BookingExportRow as a flat string slice.
func csvRecord(r domain.BookingExportRow) []string {
	return []string{
		r.BookingID,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.BookingDate,
		r.PackageID,
		r.PackageTitle,
		r.AgencyID,
		r.TravelerID,
		r.TravelerEmail,
		strconv.Itoa(r.Participants),
		r.TotalPrice.String(),
		string(r.Status),
		string(r.PaymentStatus),
	}
}

// buildXLSX writes the rows to a single "Bookings" sheet. Participants and
// total price are numeric cells so spreadsheets can sum them.
func buildXLSX(rows []domain.BookingExportRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("handler.buildXLSX: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("handler.buildXLSX: %w", err)
	}

	header := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("handler.buildXLSX: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("handler.buildXLSX: %w", err)
		}
		values := []any{
			r.BookingID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.BookingDate,
			r.PackageID,
			r.PackageTitle,
			r.AgencyID,
			r.TravelerID,
			r.TravelerEmail,
			r.Participants,
			r.TotalPrice.Float(),
			string(r.Status),
			string(r.PaymentStatus),
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, fmt.Errorf("handler.buildXLSX: %w", err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("handler.buildXLSX: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("handler.buildXLSX: %w", err)
	}
	return buf, nil
}

// mustParseDate parses an "2006-01-02" string into an openapi_types.Date.
// Panics on malformed input; callers are expected to pass repo-formatted dates.
func mustParseDate(s string) openapi_types.Date {
	t, err := time.Parse(openapi_types.DateFormat, s)
	if err != nil {
		panic("handler: malformed date from service: " + s)
	}
	return openapi_types.Date{Time: t}
}

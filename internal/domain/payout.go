package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus is the settlement state of a payout.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutProcessed PayoutStatus = "processed"
)

// Valid reports whether s is a known payout status.
func (s PayoutStatus) Valid() bool {
	return s == PayoutPending || s == PayoutProcessed
}

// DefaultCommissionRate is the platform commission used by revenue dashboards.
// It is applied uniformly, not per agency.
const DefaultCommissionRate = 0.12

// Payout is a platform-to-agency settlement for one period.
// Amount and CommissionRate are fixed when the payout is created; only the
// processing fields change afterwards.
type Payout struct {
	ID             uuid.UUID    `json:"id"`
	AgencyID       uuid.UUID    `json:"agency_id"`
	PeriodStart    time.Time    `json:"period_start"`
	PeriodEnd      time.Time    `json:"period_end"`
	Amount         Money        `json:"amount"`
	CommissionRate float64      `json:"commission_rate"`
	Status         PayoutStatus `json:"status"`
	ProcessedAt    *time.Time   `json:"processed_at,omitempty"`
	ProcessedBy    *uuid.UUID   `json:"processed_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// AgencyRevenue is confirmed-booking revenue for one agency over a period.
type AgencyRevenue struct {
	AgencyID       uuid.UUID
	Revenue        Money
	CommissionRate float64
}

package domain_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/wayfarer/internal/domain"
)

func TestMoneyFromFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want domain.Money
	}{
		{499.99, 49999},
		{0.1 + 0.2, 30},
		{-12.5, -1250},
		{0, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, domain.MoneyFromFloat(tc.in), "%v", tc.in)
	}
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "1000.00", domain.Money(100000).String())
	assert.Equal(t, "0.05", domain.Money(5).String())
	assert.Equal(t, "-3.40", domain.Money(-340).String())
}

func TestMoney_TimesAndRate(t *testing.T) {
	total, ok := domain.Money(99999).Times(3)
	assert.True(t, ok)
	assert.Equal(t, domain.Money(299997), total)
	assert.Equal(t, domain.Money(12000), domain.Money(100000).Rate(0.12))
	// Halves round away from zero.
	assert.Equal(t, domain.Money(51), domain.Money(101).Rate(0.5))
	assert.Equal(t, domain.Money(-51), domain.Money(-101).Rate(0.5))
}

func TestMoney_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Price domain.Money `json:"price"`
	}{Price: 45050})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":450.50}`, string(b))

	var got struct {
		A domain.Money `json:"a"`
		B domain.Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":19.99,"b":"7.5"}`), &got))
	assert.Equal(t, domain.Money(1999), got.A)
	assert.Equal(t, domain.Money(750), got.B)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"cheap"}`), &got))
}

func TestMoney_TimesOverflow(t *testing.T) {
	tests := []struct {
		name string
		m    domain.Money
		n    int
		want domain.Money
		ok   bool
	}{
		{"zero price", 0, 1 << 30, 0, true},
		{"largest positive", math.MaxInt64, 1, math.MaxInt64, true},
		{"largest negative", math.MinInt64, 1, math.MinInt64, true},
		{"negative factor", 250, -4, -1000, true},
		{"wraps to zero", 1 << 40, 1 << 24, 0, false},
		{"one past max", 1 << 62, 2, 0, false},
		{"negative one past min", math.MinInt64, -1, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.m.Times(tc.n)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMoney_UnmarshalRejectsOutOfRange(t *testing.T) {
	for _, raw := range []string{`"NaN"`, `"Inf"`, `"-Inf"`, `"infinity"`, `1e17`, `-92233720368547758.08`} {
		var m domain.Money
		assert.Error(t, json.Unmarshal([]byte(raw), &m), raw)
		assert.Zero(t, m, raw)
	}

	var m domain.Money
	require.NoError(t, json.Unmarshal([]byte(`9000000000000000`), &m))
	assert.Equal(t, domain.Money(900000000000000000), m)
}

package domain

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
)

// Money is an amount in minor units (hundredths). The marketplace is
// currency-less, so there is no currency code attached.
// Integer storage keeps base_price × participants exact.
type Money int64

// maxMinorUnits is 2^63 as a float64, the first value outside int64.
const maxMinorUnits = 1 << 63

// MoneyFromFloat converts a decimal amount (e.g. 499.99) to Money, rounding
// half away from zero to the nearest minor unit.
func MoneyFromFloat(v float64) Money {
	return Money(math.Round(v * 100))
}

// Times multiplies m by n. ok is false when the product does not fit in Money.
func (m Money) Times(n int) (product Money, ok bool) {
	if m == 0 || n == 0 {
		return 0, true
	}
	hi, lo := bits.Mul64(absU64(int64(m)), absU64(int64(n)))
	neg := (m < 0) != (n < 0)
	limit := uint64(math.MaxInt64)
	if neg {
		limit++
	}
	if hi != 0 || lo > limit {
		return 0, false
	}
	if neg {
		return Money(-int64(lo - 1) - 1), true
	}
	return Money(lo), true
}

func absU64(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

// Rate applies a fractional rate (e.g. 0.12) and rounds to the nearest minor unit.
func (m Money) Rate(r float64) Money {
	return Money(math.Round(float64(m) * r))
}

// Float returns the amount in major units.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String formats the amount with two fractional digits, e.g. "1000.00".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders Money as a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number (or a quoted number) in major units.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v*100) >= maxMinorUnits {
		return fmt.Errorf("money: %q out of range", s)
	}
	*m = MoneyFromFloat(v)
	return nil
}

// Package money converts loosely typed upstream amounts into integer minor
// units (100 minor = 1 major) and formats them back for display.
package money

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit tells Normalize how to read a raw amount.
type Unit int

const (
	// UnitUnknown applies the magnitude heuristic (see Normalize).
	UnitUnknown Unit = iota
	// UnitMinor means the amount is already in minor units.
	UnitMinor
	// UnitMajor means the amount is in major units and is scaled by 100.
	UnitMajor
)

// MinorThreshold is the boundary of the magnitude heuristic: amounts above it
// are taken to be minor units already.
const MinorThreshold = 100

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Normalize converts raw into a non-negative number of minor units.
//
// nil, non-numeric, NaN and infinite inputs yield 0. Without a hint, values
// greater than MinorThreshold are treated as minor units and values at or
// below it as major units. Fractional results round half away from zero, and
// results beyond the int64 range saturate at math.MaxInt64.
func Normalize(raw any, hint Unit) int64 {
	d, ok := parse(raw)
	if !ok || d.Sign() <= 0 {
		return 0
	}

	switch hint {
	case UnitMinor:
	case UnitMajor:
		d = d.Mul(hundred)
	default:
		if d.LessThanOrEqual(decimal.NewFromInt(MinorThreshold)) {
			d = d.Mul(hundred)
		}
	}
	d = d.Round(0)
	if d.GreaterThan(maxMinor) {
		return math.MaxInt64
	}
	return d.IntPart()
}

// Mul multiplies two non-negative minor amounts, saturating at
// math.MaxInt64. A negative operand yields 0.
func Mul(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// Add sums two non-negative minor amounts, saturating at math.MaxInt64.
func Add(a, b int64) int64 {
	if a > 0 && b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

// Parse reports whether raw holds a usable number.
func Parse(raw any) (float64, bool) {
	d, ok := parse(raw)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func parse(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return decimal.NewFromInt(int64(v)), true
	case uint32:
		return decimal.NewFromInt(int64(v)), true
	case json.Number:
		return fromString(v.String())
	case string:
		return fromString(v)
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func fromString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	// ParseFloat accepts NaN/Inf spellings that decimal would not.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return decimal.Zero, false
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}
	return fromFloat(f)
}

// Format renders minor units as a major-unit string with two decimals.
func Format(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// FormatWithSymbol prefixes Format with a currency symbol.
func FormatWithSymbol(symbol string, minor int64) string {
	if minor < 0 {
		return "-" + symbol + Format(-minor)
	}
	return symbol + Format(minor)
}

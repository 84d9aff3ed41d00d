package orderview

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/example/bookadmin/pkg/models"
	"github.com/example/bookadmin/pkg/money"
)

// Accessors over untyped upstream JSON. None of them fail: a missing or
// oddly typed value reads as absent.

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case models.RawOrder:
		return m
	default:
		return nil
	}
}

func lookup(m map[string]any, path ...string) any {
	var cur any = m
	for _, key := range path {
		obj := asMap(cur)
		if obj == nil {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// str renders scalars as trimmed strings. Integral floats print without a
// fractional part so numeric ids survive JSON decoding.
func str(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			s = strconv.FormatInt(int64(t), 10)
		} else {
			s = strconv.FormatFloat(t, 'f', -1, 64)
		}
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := str(m[key]); ok {
			return s
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts the layouts above or unix milliseconds.
func parseTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}
	if ms, ok := money.Parse(v); ok && ms > 0 {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}

func firstTime(m map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		if t, ok := parseTime(m[key]); ok {
			return t
		}
	}
	return time.Time{}
}

func quantity(v any) int64 {
	f, ok := money.Parse(v)
	if !ok || f < 1 {
		return 1
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

func formatAddress(v any) string {
	if s, ok := str(v); ok {
		return s
	}
	m := asMap(v)
	if m == nil {
		return ""
	}
	parts := []string{
		firstString(m, "street", "address", "line1"),
		firstString(m, "line2"),
		firstString(m, "city"),
		firstString(m, "state"),
		firstString(m, "zip", "postalCode", "pincode"),
		firstString(m, "country"),
	}
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

package api

import (
	"database/sql"
	"net/http/httptest"
	"testing"

	"population-map/pkg/database"
)

func TestParseHelpers(t *testing.T) {
	t.Parallel()

	if got := parseIntDefault("", 100); got != 100 {
		t.Errorf("parseIntDefault empty = %d, want 100", got)
	}
	if got := parseIntDefault("25", 100); got != 25 {
		t.Errorf("parseIntDefault = %d, want 25", got)
	}
	if got := parseIntDefault("junk", 7); got != 7 {
		t.Errorf("parseIntDefault junk = %d, want 7", got)
	}
	if got := parseInt64Default("9000000000", 0); got != 9000000000 {
		t.Errorf("parseInt64Default = %d, want 9000000000", got)
	}
	if got := clampInt(5000, 1, 1000); got != 1000 {
		t.Errorf("clampInt upper = %d, want 1000", got)
	}
	if got := clampInt(0, 1, 1000); got != 1 {
		t.Errorf("clampInt lower = %d, want 1", got)
	}
}

func TestLocationsCacheKeyCanonical(t *testing.T) {
	t.Parallel()

	a := locationsCacheKey(database.Filter{
		MinPop:  sql.NullInt64{Int64: 1000, Valid: true},
		Keyword: "Ban",
		Limit:   100,
	})
	b := locationsCacheKey(database.Filter{
		MinPop:  sql.NullInt64{Int64: 1000, Valid: true},
		Keyword: "bAN",
		Limit:   100,
	})
	if a != b {
		t.Errorf("case variants produced distinct keys:\n%s\n%s", a, b)
	}

	c := locationsCacheKey(database.Filter{Limit: 100})
	if a == c {
		t.Error("filtered and unfiltered requests share a cache key")
	}
}

func TestNullableFloat(t *testing.T) {
	t.Parallel()

	if got := nullableFloat(sql.NullFloat64{}); got != nil {
		t.Errorf("nullableFloat(null) = %v, want nil", *got)
	}
	got := nullableFloat(sql.NullFloat64{Float64: -6.5, Valid: true})
	if got == nil || *got != -6.5 {
		t.Errorf("nullableFloat(-6.5) = %v, want -6.5", got)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "203.0.113.9:51412"
	if got := clientIP(r); got != "203.0.113.9" {
		t.Errorf("clientIP = %q, want 203.0.113.9", got)
	}

	r.RemoteAddr = "bare-host"
	if got := clientIP(r); got != "bare-host" {
		t.Errorf("clientIP without port = %q, want bare-host", got)
	}
}

package app

import (
	"testing"
	"time"
)

func TestParseReportRange(t *testing.T) {
	start, end, err := parseReportRange("2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !start.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %s - %s", start, end)
	}

	for _, tc := range [][2]string{
		{"2026-02-01", "2026-01-01"},
		{"01/01/2026", "2026-01-31"},
		{"2026-01-01", ""},
	} {
		if _, _, err := parseReportRange(tc[0], tc[1]); !IsValidation(err) {
			t.Fatalf("expected validation error for %v, got %v", tc, err)
		}
	}
}

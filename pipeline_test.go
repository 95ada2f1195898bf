package main

import (
	"strings"
	"testing"
	"time"
)

func TestResolveDateRangeTodayModeIgnoresDates(t *testing.T) {
	_, _, label, err := resolveDateRange("today", "", "")
	if err != nil {
		t.Fatalf("today mode must not require dates: %v", err)
	}
	if label != "" {
		t.Errorf("label: got %q, want empty", label)
	}
}

func TestResolveDateRangeHistoricalRequiresDates(t *testing.T) {
	_, _, _, err := resolveDateRange("historical", "", "")
	if err == nil {
		t.Fatal("historical mode without dates must fail")
	}
}

func TestResolveDateRangeSingleDate(t *testing.T) {
	start, end, label, err := resolveDateRange("historical", "2026-08-20", "")
	if err != nil {
		t.Fatalf("single start date: %v", err)
	}
	if !start.Equal(end) {
		t.Errorf("single date must yield a one-day range: %v .. %v", start, end)
	}
	if label != "2026-08-20" {
		t.Errorf("label: got %q, want 2026-08-20", label)
	}

	// End-only works the same way.
	start, end, _, err = resolveDateRange("historical", "", "2026-08-21")
	if err != nil {
		t.Fatalf("single end date: %v", err)
	}
	if !start.Equal(end) {
		t.Errorf("end-only must yield a one-day range")
	}
}

func TestResolveDateRangeFullRange(t *testing.T) {
	start, end, label, err := resolveDateRange("historical", "2026-08-20", "2026-08-22")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if end.Sub(start) != 48*time.Hour {
		t.Errorf("range span: got %v", end.Sub(start))
	}
	if label != "2026-08-20_to_2026-08-22" {
		t.Errorf("label: got %q", label)
	}
}

func TestResolveDateRangeRejectsInverted(t *testing.T) {
	_, _, _, err := resolveDateRange("historical", "2026-08-22", "2026-08-20")
	if err == nil || !strings.Contains(err.Error(), "before") {
		t.Errorf("inverted range must fail, got %v", err)
	}
}

func TestResolveDateRangeRejectsMalformed(t *testing.T) {
	_, _, _, err := resolveDateRange("historical", "20/08/2026", "")
	if err == nil {
		t.Fatal("malformed date must fail")
	}
}

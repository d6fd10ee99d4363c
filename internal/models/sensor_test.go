package models

import (
	"math"
	"testing"
	"time"
)

func TestStatusForBands(t *testing.T) {
	cases := []struct {
		value float64
		want  Status
	}{
		{math.Inf(-1), StatusLow},
		{-5, StatusLow},
		{0, StatusLow},
		{19.999, StatusLow},
		{20, StatusModerate},
		{59.5, StatusModerate},
		{60, StatusHigh},
		{84.99, StatusHigh},
		{85, StatusCritical},
		{1000, StatusCritical},
		{math.Inf(1), StatusCritical},
		{math.NaN(), StatusLow},
	}

	for _, tc := range cases {
		if got := StatusFor(tc.value); got != tc.want {
			t.Errorf("StatusFor(%v) = %s, want %s", tc.value, got, tc.want)
		}
	}
}

func TestOccupancyThresholdsContiguous(t *testing.T) {
	if err := OccupancyThresholds.Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}

	// Walking the domain in small steps must only ever move up one band at a
	// time, and every value must land in exactly one known band.
	order := map[Status]int{StatusLow: 0, StatusModerate: 1, StatusHigh: 2, StatusCritical: 3}
	prev := order[StatusFor(-10)]
	for v := -10.0; v <= 110; v += 0.25 {
		rank, ok := order[StatusFor(v)]
		if !ok {
			t.Fatalf("value %.2f mapped to unknown status %q", v, StatusFor(v))
		}
		if rank < prev || rank > prev+1 {
			t.Fatalf("value %.2f jumped from band %d to %d", v, prev, rank)
		}
		prev = rank
	}
	if prev != order[StatusCritical] {
		t.Fatalf("walk ended in band %d, want critical", prev)
	}
}

func TestThresholdsValidateRejectsOverlap(t *testing.T) {
	bad := Thresholds{
		Bands: []Threshold{
			{Upper: 30, Status: "dry"},
			{Upper: 30, Status: "moderate"},
		},
		Top: "wet",
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for non-increasing bounds")
	}

	if err := (Thresholds{Bands: []Threshold{{Upper: 1, Status: "a"}}}).Validate(); err == nil {
		t.Fatal("expected error for empty top status")
	}
}

func TestThresholdsClassifyCustomDomain(t *testing.T) {
	moisture := Thresholds{
		Bands: []Threshold{
			{Upper: 20, Status: "dry"},
			{Upper: 50, Status: "moderate"},
			{Upper: 80, Status: "moist"},
		},
		Top: "wet",
	}
	if got := moisture.Classify(49.9); got != "moderate" {
		t.Fatalf("Classify(49.9) = %s, want moderate", got)
	}
	if got := moisture.Classify(80); got != "wet" {
		t.Fatalf("Classify(80) = %s, want wet", got)
	}
}

func TestNewReadingDerivesStatus(t *testing.T) {
	ts := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	r := NewReading(ts, 72)
	if r.Status != StatusHigh {
		t.Fatalf("expected high, got %s", r.Status)
	}
	if !r.Timestamp.Equal(ts) || r.Value != 72 {
		t.Fatalf("unexpected reading %+v", r)
	}
}

func TestPointFinite(t *testing.T) {
	cases := []struct {
		value float64
		want  bool
	}{
		{0, true},
		{-3, true},
		{120.5, true},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, c := range cases {
		if got := (Point{Value: c.value}).Finite(); got != c.want {
			t.Errorf("Point{Value: %v}.Finite() = %v, want %v", c.value, got, c.want)
		}
	}
}

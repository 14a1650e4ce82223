// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package dateparse

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestParseYearPhrase(t *testing.T) {
	r := Parse("photos from 2024", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	wantFrom := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)
	if !r.Range.From.Equal(wantFrom) || !r.Range.To.Equal(wantTo) {
		t.Fatalf("got from=%v to=%v, want from=%v to=%v", r.Range.From, r.Range.To, wantFrom, wantTo)
	}
	if r.CleanQuery != "photos" {
		t.Fatalf("expected clean query %q, got %q", "photos", r.CleanQuery)
	}
}

func TestParseLastNDays(t *testing.T) {
	r := Parse("last 7 days", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	wantFrom, _ := dayBounds(fixedNow.AddDate(0, 0, -7))
	_, wantTo := dayBounds(fixedNow)
	if !r.Range.From.Equal(wantFrom) || !r.Range.To.Equal(wantTo) {
		t.Fatalf("got from=%v to=%v, want from=%v to=%v", r.Range.From, r.Range.To, wantFrom, wantTo)
	}
}

func TestParseBetweenLiteralDates(t *testing.T) {
	r := Parse("between 2023-01-01 and 2023-06-30 beach", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	wantFrom := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2023, time.June, 30, 23, 59, 59, 0, time.UTC)
	if !r.Range.From.Equal(wantFrom) || !r.Range.To.Equal(wantTo) {
		t.Fatalf("got from=%v to=%v, want from=%v to=%v", r.Range.From, r.Range.To, wantFrom, wantTo)
	}
	if r.CleanQuery != "beach" {
		t.Fatalf("expected clean query %q, got %q", "beach", r.CleanQuery)
	}
}

func TestNoMatchLeavesQueryUntouched(t *testing.T) {
	r := Parse("sunset over mountains", fixedNow)
	if r.Range != nil {
		t.Fatalf("expected no range, got %+v", r.Range)
	}
	if r.CleanQuery != "sunset over mountains" {
		t.Fatalf("expected clean query unchanged, got %q", r.CleanQuery)
	}
}

// TestSlashDatePrefersDDMMWhenFirstFieldExceeds12 preserves the ambiguous
// DD/MM vs MM/DD disambiguation verbatim (spec §9 REDESIGN FLAGS).
func TestSlashDatePrefersDDMMWhenFirstFieldExceeds12(t *testing.T) {
	r := Parse("photos from 25/03/2024", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	want := time.Date(2024, time.March, 25, 0, 0, 0, 0, time.UTC)
	if !r.Range.From.Equal(want) {
		t.Fatalf("expected DD/MM disambiguation (25 March), got %v", r.Range.From)
	}
}

func TestSlashDateFallsBackToMMDDWhenFirstFieldIsAmbiguous(t *testing.T) {
	r := Parse("photos from 03/04/2024", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	want := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	if !r.Range.From.Equal(want) {
		t.Fatalf("expected MM/DD (March 4), got %v", r.Range.From)
	}
}

func TestRelativeSpanYesterday(t *testing.T) {
	r := Parse("yesterday", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	wantFrom, wantTo := dayBounds(fixedNow.AddDate(0, 0, -1))
	if !r.Range.From.Equal(wantFrom) || !r.Range.To.Equal(wantTo) {
		t.Fatalf("got from=%v to=%v", r.Range.From, r.Range.To)
	}
}

func TestModifierSlicesSpanIntoThirds(t *testing.T) {
	r := Parse("early last month", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	month := relativeMonth(fixedNow, "last")
	third := month.To.Sub(month.From) / 3
	wantFrom := month.From
	wantTo := month.From.Add(third)
	if !r.Range.From.Equal(wantFrom) || !r.Range.To.Equal(wantTo) {
		t.Fatalf("got from=%v to=%v, want from=%v to=%v", r.Range.From, r.Range.To, wantFrom, wantTo)
	}
}

func TestBoundedPrefixAfter(t *testing.T) {
	r := Parse("after 2023-01-01", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	wantFrom := time.Date(2023, time.January, 1, 23, 59, 59, 0, time.UTC).Add(time.Second)
	if !r.Range.From.Equal(wantFrom) {
		t.Fatalf("got from=%v, want %v", r.Range.From, wantFrom)
	}
}

func TestTextualMonthWithoutDayReturnsFullMonth(t *testing.T) {
	r := Parse("photos from march 2024", fixedNow)
	if r.Range == nil {
		t.Fatal("expected a range to be extracted")
	}
	wantFrom := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)
	if !r.Range.From.Equal(wantFrom) || !r.Range.To.Equal(wantTo) {
		t.Fatalf("got from=%v to=%v, want from=%v to=%v", r.Range.From, r.Range.To, wantFrom, wantTo)
	}
}

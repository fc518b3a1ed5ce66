package billingcycle

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestComputeFirstCycleExactAnchor(t *testing.T) {
	anchor := date(2024, time.January, 31, 10, 0)
	now := date(2024, time.February, 15, 0, 0)

	cycle := Compute(anchor, now, true)

	if !cycle.Start.Equal(anchor) {
		t.Fatalf("expected exact anchor start %v, got %v", anchor, cycle.Start)
	}
	if !cycle.End.Equal(date(2024, time.February, 29, 0, 0)) {
		t.Fatalf("expected leap-year end Feb 29, got %v", cycle.End)
	}
	if cycle.DaysRemaining != 14 {
		t.Fatalf("expected 14 days remaining, got %d", cycle.DaysRemaining)
	}
}

func TestComputeTruncatesStartAfterFirstCycle(t *testing.T) {
	anchor := date(2024, time.January, 15, 18, 30)
	now := date(2024, time.March, 20, 12, 0)

	cycle := Compute(anchor, now, true)

	want := date(2024, time.March, 15, 0, 0)
	if !cycle.Start.Equal(want) {
		t.Fatalf("expected midnight start %v, got %v", want, cycle.Start)
	}
	if !cycle.End.Equal(date(2024, time.April, 15, 0, 0)) {
		t.Fatalf("unexpected end %v", cycle.End)
	}
}

func TestComputeMonthOverflowClipsToLastDay(t *testing.T) {
	anchor := date(2023, time.December, 31, 8, 0)

	// Non-leap February: both boundaries clip to Feb 28, never Mar 3.
	now := date(2023, time.February, 10, 0, 0)
	cycle := Compute(date(2022, time.December, 31, 8, 0), now, false)
	if cycle.Start.Month() == time.March || cycle.End.Month() == time.March && cycle.End.Day() < 28 {
		t.Fatalf("cycle overflowed into march: %v - %v", cycle.Start, cycle.End)
	}
	if !cycle.Start.Equal(date(2023, time.January, 31, 0, 0)) {
		t.Fatalf("expected start Jan 31, got %v", cycle.Start)
	}
	if !cycle.End.Equal(date(2023, time.February, 28, 0, 0)) {
		t.Fatalf("expected end Feb 28, got %v", cycle.End)
	}

	// Immediately after the clipped boundary the next window opens on it.
	now = date(2024, time.February, 29, 6, 0)
	cycle = Compute(anchor, now, false)
	if !cycle.Start.Equal(date(2024, time.February, 29, 0, 0)) {
		t.Fatalf("expected clipped start Feb 29, got %v", cycle.Start)
	}
	if !cycle.End.Equal(date(2024, time.March, 31, 0, 0)) {
		t.Fatalf("expected end Mar 31, got %v", cycle.End)
	}
}

func TestComputeContainment(t *testing.T) {
	anchors := []time.Time{
		date(2023, time.January, 1, 0, 0),
		date(2023, time.January, 31, 23, 59),
		date(2023, time.April, 30, 12, 0),
		date(2024, time.February, 29, 6, 30),
		date(2023, time.July, 15, 9, 0),
	}

	for _, anchor := range anchors {
		now := anchor
		for i := 0; i < 500; i++ {
			now = now.Add(37*time.Hour + 13*time.Minute)
			cycle := Compute(anchor, now, false)

			if cycle.Start.After(now) {
				t.Fatalf("anchor %v now %v: start %v after now", anchor, now, cycle.Start)
			}
			if !cycle.End.After(now) {
				t.Fatalf("anchor %v now %v: end %v not after now", anchor, now, cycle.End)
			}
			length := cycle.End.Sub(cycle.Start)
			if length < 28*24*time.Hour || length > 31*24*time.Hour {
				t.Fatalf("anchor %v now %v: cycle length %v out of range", anchor, now, length)
			}
			if cycle.DaysRemaining < 0 || cycle.DaysRemaining > 31 {
				t.Fatalf("days remaining %d out of range", cycle.DaysRemaining)
			}
		}
	}
}

func TestComputeDaysRemainingRoundsUp(t *testing.T) {
	anchor := date(2024, time.March, 1, 0, 0)
	now := date(2024, time.March, 31, 23, 0)

	cycle := Compute(anchor, now, false)

	// One hour left still counts as a day.
	if cycle.DaysRemaining != 1 {
		t.Fatalf("expected 1 day remaining, got %d", cycle.DaysRemaining)
	}
}

package domain

import (
	"testing"
	"time"
)

func TestComputeDedupKey_NormalizesIdentity(t *testing.T) {
	ts := time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)

	a := ComputeDedupKey(" w1aw ", "20M", "cw", ts, 2*time.Minute)
	b := ComputeDedupKey("W1AW", "20m", "CW", ts, 2*time.Minute)

	if a != b {
		t.Fatalf("normalized keys differ: %v vs %v", a, b)
	}
	if a.Callsign != "W1AW" || a.Band != "20m" || a.Mode != "CW" {
		t.Fatalf("unexpected normalization: %+v", a)
	}
}

func TestComputeDedupKey_BucketBoundaries(t *testing.T) {
	// 14:30:00 and 14:30:45 share a 2-minute bucket; 14:32:10 does not.
	base := time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)
	same := base.Add(45 * time.Second)
	other := base.Add(2*time.Minute + 10*time.Second)

	k1 := ComputeDedupKey("W1AW", "20m", "CW", base, 2*time.Minute)
	k2 := ComputeDedupKey("W1AW", "20m", "CW", same, 2*time.Minute)
	k3 := ComputeDedupKey("W1AW", "20m", "CW", other, 2*time.Minute)

	if k1 != k2 {
		t.Fatalf("expected same bucket for %v and %v", base, same)
	}
	if k1 == k3 {
		t.Fatalf("expected different bucket for %v and %v", base, other)
	}
}

func TestComputeDedupKey_ZeroWidthFallsBack(t *testing.T) {
	ts := time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)
	got := ComputeDedupKey("W1AW", "20m", "CW", ts, 0)
	want := ComputeDedupKey("W1AW", "20m", "CW", ts, DefaultBucketWidth)
	if got != want {
		t.Fatalf("zero bucket width should use default: got %+v want %+v", got, want)
	}
}

func TestDedupKey_String_Stable(t *testing.T) {
	ts := time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)
	k := ComputeDedupKey("W1AW", "20m", "CW", ts, 2*time.Minute)
	if k.String() != ComputeDedupKey("w1aw", "20M", "cw", ts, 2*time.Minute).String() {
		t.Fatalf("string form not stable across normalization")
	}
}

func TestRichnessScore_CountsPopulatedFields(t *testing.T) {
	empty := &ContactRecord{}
	if got := empty.RichnessScore(); got != 0 {
		t.Fatalf("empty record richness = %d, want 0", got)
	}

	rich := &ContactRecord{
		Frequency:     "14.074",
		TheirGrid:     "FN31",
		Notes:         "great signal",
		LoTWConfirmed: true,
	}
	if got := rich.RichnessScore(); got != 4 {
		t.Fatalf("richness = %d, want 4", got)
	}
}

func TestSameIdentity_CaseInsensitive(t *testing.T) {
	a := &ContactRecord{Callsign: "W1AW", Band: "20m", Mode: "CW"}
	b := &ContactRecord{Callsign: "w1aw", Band: "20M", Mode: "cw"}
	c := &ContactRecord{Callsign: "W1AW", Band: "40m", Mode: "CW"}

	if !SameIdentity(a, b) {
		t.Fatalf("expected identical identity for %v and %v", a, b)
	}
	if SameIdentity(a, c) {
		t.Fatalf("different bands must not match")
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
	"github.com/jsvana/carrier-wave-sub002/internal/repo"
)

// seedContact persists a record with the given identity and timestamp,
// marking it present at each listed service.
func seedContact(t *testing.T, db *gorm.DB, callsign string, ts time.Time, present []string, mutate func(*domain.ContactRecord)) *domain.ContactRecord {
	t.Helper()
	ctx := context.Background()
	key := domain.ComputeDedupKey(callsign, "20m", "CW", ts, domain.DefaultBucketWidth)
	c := &domain.ContactRecord{
		Callsign:    key.Callsign,
		Band:        key.Band,
		Mode:        key.Mode,
		DedupBucket: key.Bucket,
		Timestamp:   ts,
	}
	if mutate != nil {
		mutate(c)
	}
	if err := repo.CreateContact(ctx, db, c); err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	for _, svc := range present {
		if err := repo.MarkPresent(ctx, db, c.ID, svc, ts); err != nil {
			t.Fatalf("seed presence: %v", err)
		}
	}
	return c
}

func TestReconcile_MergesClockDriftDuplicates(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	// Same QSO logged twice: 14:29 by one tool, 14:33 by another. Different
	// dedup buckets, so the merge engine kept both.
	early := time.Date(2025, 3, 14, 14, 29, 0, 0, time.UTC)
	late := time.Date(2025, 3, 14, 14, 33, 0, 0, time.UTC)

	richer := seedContact(t, db, "W1AW", early, []string{"qrz"}, func(c *domain.ContactRecord) {
		c.Frequency = "14.032"
		c.TheirGrid = "FN31"
	})
	seedContact(t, db, "W1AW", late, []string{"lotw"}, func(c *domain.ContactRecord) {
		c.LoTWConfirmed = true
	})

	res, err := NewReconcileService(db).Run(ctx, 0) // default window
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.GroupsFound != 1 || res.Merged != 1 || res.Removed != 1 {
		t.Fatalf("result = %+v, want one group with one removal", res)
	}

	total, _ := repo.CountContacts(ctx, db)
	if total != 1 {
		t.Fatalf("expected 1 surviving record, got %d", total)
	}

	// Presence counts tie (1 each), so the richer record wins and absorbs
	// the loser's presence and confirmation.
	got, err := repo.GetContact(ctx, db, richer.ID)
	if err != nil {
		t.Fatalf("winner deleted: %v", err)
	}
	if !got.LoTWConfirmed {
		t.Fatalf("loser's confirmation not absorbed")
	}
	if got.Frequency != "14.032" || got.TheirGrid != "FN31" {
		t.Fatalf("winner fields lost: %+v", got)
	}
	if len(got.Presences) != 2 {
		t.Fatalf("expected both presences on winner, got %d", len(got.Presences))
	}
}

func TestReconcile_WinnerByPresenceCount(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	early := time.Date(2025, 3, 14, 14, 29, 0, 0, time.UTC)
	late := time.Date(2025, 3, 14, 14, 33, 0, 0, time.UTC)

	// The richer record loses to the one confirmed at more services.
	seedContact(t, db, "W1AW", early, []string{"qrz"}, func(c *domain.ContactRecord) {
		c.Frequency = "14.032"
		c.TheirGrid = "FN31"
		c.Notes = "rich but lonely"
	})
	popular := seedContact(t, db, "W1AW", late, []string{"lotw", "eqsl"}, nil)

	if _, err := NewReconcileService(db).Run(ctx, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := repo.GetContact(ctx, db, popular.ID)
	if err != nil {
		t.Fatalf("presence-count winner was deleted: %v", err)
	}
	if got.Frequency != "14.032" || got.Notes != "rich but lonely" {
		t.Fatalf("loser's fields not filled into winner: %+v", got)
	}
	if len(got.Presences) != 3 {
		t.Fatalf("expected qrz presence copied over, got %d rows", len(got.Presences))
	}
}

func TestReconcile_WindowBounds(t *testing.T) {
	db := newServiceDB(t)
	svc := NewReconcileService(db)
	ctx := context.Background()

	for _, bad := range []time.Duration{30 * time.Second, 20 * time.Minute} {
		if _, err := svc.Run(ctx, bad); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("window %s: expected ErrInvalidWindow, got %v", bad, err)
		}
	}
	if _, err := svc.Run(ctx, MinReconcileWindow); err != nil {
		t.Fatalf("minimum window rejected: %v", err)
	}
	if _, err := svc.Run(ctx, MaxReconcileWindow); err != nil {
		t.Fatalf("maximum window rejected: %v", err)
	}
}

func TestReconcile_RespectsWindow(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	// Two legitimate contacts with the same identity 20 minutes apart must
	// never be merged.
	seedContact(t, db, "W1AW", time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC), nil, nil)
	seedContact(t, db, "W1AW", time.Date(2025, 3, 14, 14, 20, 0, 0, time.UTC), nil, nil)

	res, err := NewReconcileService(db).Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.GroupsFound != 0 || res.Removed != 0 {
		t.Fatalf("distinct contacts merged: %+v", res)
	}
	total, _ := repo.CountContacts(ctx, db)
	if total != 2 {
		t.Fatalf("expected both records kept, got %d", total)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	seedContact(t, db, "W1AW", time.Date(2025, 3, 14, 14, 29, 0, 0, time.UTC), []string{"qrz"}, nil)
	seedContact(t, db, "W1AW", time.Date(2025, 3, 14, 14, 33, 0, 0, time.UTC), []string{"lotw"}, nil)

	svc := NewReconcileService(db)
	if _, err := svc.Run(ctx, 0); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	res, err := svc.Run(ctx, 0)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.GroupsFound != 0 || res.Removed != 0 {
		t.Fatalf("second pass found work: %+v", res)
	}
}

func TestPickWinner_TotalOrder(t *testing.T) {
	present := func(n int) []domain.ServicePresence {
		out := make([]domain.ServicePresence, n)
		for i := range out {
			out[i].IsPresent = true
		}
		return out
	}

	a := &domain.ContactRecord{ID: "a", Presences: present(1), Frequency: "14.032", TheirGrid: "FN31"}
	b := &domain.ContactRecord{ID: "b", Presences: present(2)}
	if w := pickWinner([]*domain.ContactRecord{a, b}); w.ID != "b" {
		t.Fatalf("presence count must dominate richness, winner = %s", w.ID)
	}

	c := &domain.ContactRecord{ID: "c", Presences: present(1)}
	if w := pickWinner([]*domain.ContactRecord{c, a}); w.ID != "a" {
		t.Fatalf("richness must break presence ties, winner = %s", w.ID)
	}

	d := &domain.ContactRecord{ID: "d"}
	e := &domain.ContactRecord{ID: "e"}
	if w := pickWinner([]*domain.ContactRecord{e, d}); w.ID != "d" {
		t.Fatalf("lowest ID must break full ties, winner = %s", w.ID)
	}
}

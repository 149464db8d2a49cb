package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
)

// newRepoDB opens a throwaway SQLite database for repository tests.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testContact(ts time.Time) *domain.ContactRecord {
	key := domain.ComputeDedupKey("W1AW", "20m", "CW", ts, domain.DefaultBucketWidth)
	return &domain.ContactRecord{
		Callsign:    key.Callsign,
		Band:        key.Band,
		Mode:        key.Mode,
		DedupBucket: key.Bucket,
		Timestamp:   ts,
	}
}

func TestCreateContact_AssignsIDAndTimestamps(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	c := testContact(time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC))
	if err := CreateContact(ctx, db, c); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	if c.ID == "" {
		t.Fatalf("expected generated UUID primary key")
	}
	if c.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}

	got, err := GetContact(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got.Callsign != "W1AW" || got.Band != "20m" || got.Mode != "CW" {
		t.Fatalf("unexpected stored record: %+v", got)
	}
}

func TestCreateContact_DuplicateDedupKey(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)

	if err := CreateContact(ctx, db, testContact(ts)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	// Same identity, same bucket: the composite unique index must reject it.
	err := CreateContact(ctx, db, testContact(ts.Add(30*time.Second)))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestFindByDedupKey(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)

	c := testContact(ts)
	if err := CreateContact(ctx, db, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := FindByDedupKey(ctx, db, c.Key())
	if err != nil {
		t.Fatalf("FindByDedupKey: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("wrong record: got %s want %s", got.ID, c.ID)
	}

	missing := domain.ComputeDedupKey("K5XYZ", "40m", "SSB", ts, domain.DefaultBucketWidth)
	if _, err := FindByDedupKey(ctx, db, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListContactsByTimestamp_Ascending(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC)
	// Insert out of chronological order.
	for _, off := range []time.Duration{20 * time.Minute, 0, 10 * time.Minute} {
		ts := base.Add(off)
		key := domain.ComputeDedupKey("W1AW", "20m", "CW", ts, domain.DefaultBucketWidth)
		c := &domain.ContactRecord{
			Callsign: key.Callsign, Band: key.Band, Mode: key.Mode,
			DedupBucket: key.Bucket, Timestamp: ts,
		}
		if err := CreateContact(ctx, db, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	out, err := ListContactsByTimestamp(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.Before(out[i-1].Timestamp) {
			t.Fatalf("records not in ascending timestamp order")
		}
	}
}

func TestSaveContact_DoesNotWritePreloadedPresences(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)

	c := testContact(ts)
	if err := CreateContact(ctx, db, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	now := time.Now().UTC()
	if err := MarkPresent(ctx, db, c.ID, "qrz", now); err != nil {
		t.Fatalf("mark present: %v", err)
	}

	// Preload, mutate the in-memory presence, then save the contact. The
	// stale presence must not be written back.
	loaded, err := GetContact(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.Presences) != 1 {
		t.Fatalf("expected 1 presence, got %d", len(loaded.Presences))
	}
	loaded.Presences[0].IsPresent = false
	loaded.Notes = "updated"
	if err := SaveContact(ctx, db, loaded); err != nil {
		t.Fatalf("save: %v", err)
	}

	p, err := GetPresence(ctx, db, c.ID, "qrz")
	if err != nil {
		t.Fatalf("get presence: %v", err)
	}
	if !p.IsPresent {
		t.Fatalf("SaveContact clobbered the presence row")
	}
	again, _ := GetContact(ctx, db, c.ID)
	if again.Notes != "updated" {
		t.Fatalf("contact field not saved")
	}
}

func TestDeleteContact_RemovesPresences(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)

	c := testContact(ts)
	if err := CreateContact(ctx, db, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := MarkPresent(ctx, db, c.ID, "qrz", time.Now().UTC()); err != nil {
		t.Fatalf("mark present: %v", err)
	}

	if err := DeleteContact(ctx, db, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetContact(ctx, db, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
	if _, err := GetPresence(ctx, db, c.ID, "qrz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected presence gone, got %v", err)
	}

	// Deleting again reports not found.
	if err := DeleteContact(ctx, db, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestListContactsPage_DescendingWindow(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		key := domain.ComputeDedupKey("W1AW", "20m", "CW", ts, domain.DefaultBucketWidth)
		c := &domain.ContactRecord{
			Callsign: key.Callsign, Band: key.Band, Mode: key.Mode,
			DedupBucket: key.Bucket, Timestamp: ts,
		}
		if err := CreateContact(ctx, db, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	total, err := CountContacts(ctx, db)
	if err != nil || total != 5 {
		t.Fatalf("count = %d (%v), want 5", total, err)
	}

	page, err := ListContactsPage(ctx, db, 0, 2)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page))
	}
	if !page[0].Timestamp.After(page[1].Timestamp) {
		t.Fatalf("expected most recent first")
	}
}

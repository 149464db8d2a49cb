package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetCursor_NotFound(t *testing.T) {
	db := newRepoDB(t)
	if _, err := GetCursor(context.Background(), db, "qrz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for fresh service, got %v", err)
	}
}

func TestSaveCursor_Upsert(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	t1 := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := SaveCursor(ctx, db, "qrz", "2025-03-14T10:00:00Z", t1); err != nil {
		t.Fatalf("save (create): %v", err)
	}
	c, err := GetCursor(ctx, db, "qrz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Cursor != "2025-03-14T10:00:00Z" || !c.LastSyncedAt.Equal(t1) {
		t.Fatalf("unexpected cursor: %+v", c)
	}

	t2 := t1.Add(time.Hour)
	if err := SaveCursor(ctx, db, "qrz", "opaque-token-2", t2); err != nil {
		t.Fatalf("save (update): %v", err)
	}
	c, _ = GetCursor(ctx, db, "qrz")
	if c.Cursor != "opaque-token-2" || !c.LastSyncedAt.Equal(t2) {
		t.Fatalf("cursor not updated: %+v", c)
	}

	// Cursors are per-service.
	if _, err := GetCursor(ctx, db, "lotw"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected lotw cursor absent, got %v", err)
	}
}

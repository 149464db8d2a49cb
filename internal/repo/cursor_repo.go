// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the SyncCursor
// model: the opaque per-service fetch position advanced after each
// successfully merged cycle.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
)

// GetCursor returns the stored cursor for the service, or ErrNotFound when
// the service has never completed a fetch.
func GetCursor(ctx context.Context, db *gorm.DB, service string) (*domain.SyncCursor, error) {
	var c domain.SyncCursor
	err := db.WithContext(ctx).Where("service = ?", service).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCursor upserts the cursor for the service, recording the sync time.
func SaveCursor(ctx context.Context, db *gorm.DB, service, cursor string, at time.Time) error {
	existing, err := GetCursor(ctx, db, service)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.WithContext(ctx).Create(&domain.SyncCursor{
			ID:           uuid.NewString(),
			Service:      service,
			Cursor:       cursor,
			LastSyncedAt: at,
		}).Error
	}
	if err != nil {
		return err
	}
	existing.Cursor = cursor
	existing.LastSyncedAt = at
	return db.WithContext(ctx).Save(existing).Error
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ServicePresence model: the per-(contact, service) rows that track whether
// a record exists at a service and whether it still needs to be uploaded.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
)

// GetPresence fetches the presence row for (contactID, service), or
// ErrNotFound if none exists.
func GetPresence(ctx context.Context, db *gorm.DB, contactID, service string) (*domain.ServicePresence, error) {
	var p domain.ServicePresence
	err := db.WithContext(ctx).
		Where("contact_id = ? AND service = ?", contactID, service).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPresent records that the contact is confirmed to exist at the service:
// is_present=true, needs_upload=false, last_confirmed_at=at. The row is
// created when absent.
func MarkPresent(ctx context.Context, db *gorm.DB, contactID, service string, at time.Time) error {
	p, err := GetPresence(ctx, db, contactID, service)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.WithContext(ctx).Create(&domain.ServicePresence{
			ID:              uuid.NewString(),
			ContactID:       contactID,
			Service:         service,
			IsPresent:       true,
			NeedsUpload:     false,
			LastConfirmedAt: &at,
		}).Error
	}
	if err != nil {
		return err
	}
	p.IsPresent = true
	p.NeedsUpload = false
	p.LastConfirmedAt = &at
	return db.WithContext(ctx).Save(p).Error
}

// MarkNeedsUpload flags the contact for upload to the service, creating the
// presence row when absent. A row already marked present is left untouched:
// present and needs-upload are mutually exclusive beyond one cycle.
func MarkNeedsUpload(ctx context.Context, db *gorm.DB, contactID, service string) error {
	p, err := GetPresence(ctx, db, contactID, service)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.WithContext(ctx).Create(&domain.ServicePresence{
			ID:          uuid.NewString(),
			ContactID:   contactID,
			Service:     service,
			IsPresent:   false,
			NeedsUpload: true,
		}).Error
	}
	if err != nil {
		return err
	}
	if p.IsPresent || p.NeedsUpload {
		return nil
	}
	p.NeedsUpload = true
	return db.WithContext(ctx).Save(p).Error
}

// SavePresence persists every field of an existing presence row.
func SavePresence(ctx context.Context, db *gorm.DB, p *domain.ServicePresence) error {
	return db.WithContext(ctx).Save(p).Error
}

// CreatePresence inserts a presence row as-is, assigning a UUID when unset.
// Used by the reconciliation pass when copying a loser's presence onto the
// winner.
func CreatePresence(ctx context.Context, db *gorm.DB, p *domain.ServicePresence) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(p).Error
}

// ListNeedingUpload returns the contacts whose presence row for the service
// has needs_upload=true, ordered by timestamp ascending so uploads replay in
// log order.
func ListNeedingUpload(ctx context.Context, db *gorm.DB, service string) ([]domain.ContactRecord, error) {
	var out []domain.ContactRecord
	err := db.WithContext(ctx).
		Joins("JOIN service_presences sp ON sp.contact_id = contact_records.id").
		Where("sp.service = ? AND sp.needs_upload = ?", service, true).
		Order("contact_records.timestamp asc").
		Find(&out).Error
	return out, err
}

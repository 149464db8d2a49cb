// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ContactRecord model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no merge policy, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, FindByDedupKey returns ErrNotFound.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicateKey indicates an insert collided with the dedup-key unique
// index. The merge engine treats it as "someone already created this record"
// and retries the lookup.
var ErrDuplicateKey = errors.New("duplicate dedup key")

// CreateContact inserts a new ContactRecord. The caller supplies normalized
// identity fields and the dedup bucket; a UUID primary key and UTC creation
// time are assigned here. A unique-index collision is mapped to
// ErrDuplicateKey.
func CreateContact(ctx context.Context, db *gorm.DB, c *domain.ContactRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// SaveContact persists every field of an existing ContactRecord. Presence
// rows are managed through the presence repository, never as GORM
// associations: a preloaded (and possibly stale) Presences slice must not be
// written back.
func SaveContact(ctx context.Context, db *gorm.DB, c *domain.ContactRecord) error {
	return db.WithContext(ctx).Omit(clause.Associations).Save(c).Error
}

// FindByDedupKey fetches the record matching the given dedup key, or
// ErrNotFound if no row exists.
func FindByDedupKey(ctx context.Context, db *gorm.DB, key domain.DedupKey) (*domain.ContactRecord, error) {
	var c domain.ContactRecord
	err := db.WithContext(ctx).
		Preload("Presences").
		Where("callsign = ? AND band = ? AND mode = ? AND dedup_bucket = ?",
			key.Callsign, key.Band, key.Mode, key.Bucket).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContact fetches a record by primary key with its presence rows.
func GetContact(ctx context.Context, db *gorm.DB, id string) (*domain.ContactRecord, error) {
	var c domain.ContactRecord
	err := db.WithContext(ctx).Preload("Presences").First(&c, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContactsByTimestamp returns every record ordered by timestamp
// ascending, with presence rows preloaded. The reconciliation pass relies
// on the ordering to bound its sliding-window scan.
func ListContactsByTimestamp(ctx context.Context, db *gorm.DB) ([]domain.ContactRecord, error) {
	var out []domain.ContactRecord
	err := db.WithContext(ctx).
		Preload("Presences").
		Order("timestamp asc").
		Find(&out).Error
	return out, err
}

// CountContacts returns the total number of persisted contact records.
func CountContacts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.ContactRecord{}).Count(&total).Error
	return total, err
}

// ListContactsPage returns a paginated slice of records ordered by timestamp
// descending (most recent first).
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListContactsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ContactRecord, error) {
	var out []domain.ContactRecord
	err := db.WithContext(ctx).
		Preload("Presences").
		Order("timestamp desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteContact removes a record and, via the FK constraint, its presence
// rows. Used only by the reconciliation pass when a loser is absorbed.
func DeleteContact(ctx context.Context, db *gorm.DB, id string) error {
	// Presence rows first: SQLite only cascades when foreign_keys is on.
	if err := db.WithContext(ctx).
		Where("contact_id = ?", id).
		Delete(&domain.ServicePresence{}).Error; err != nil {
		return err
	}
	res := db.WithContext(ctx).Delete(&domain.ContactRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

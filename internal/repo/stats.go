// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the live aggregate queries behind the
// query surface: total record counts and per-service present/pending counts.
// Counts are always computed from the store on demand; the engine keeps no
// incremental counters that could drift.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
)

// ServiceStats aggregates presence state for one service.
type ServiceStats struct {
	Present       int64 `json:"present"`
	PendingUpload int64 `json:"pending_upload"`
}

// PresenceStats returns, per service, how many contacts are confirmed
// present and how many still await upload. Services with no presence rows
// are absent from the map.
func PresenceStats(ctx context.Context, db *gorm.DB) (map[string]ServiceStats, error) {
	var rows []struct {
		Service string
		Present int64
		Pending int64
	}
	err := db.WithContext(ctx).
		Model(&domain.ServicePresence{}).
		Select("service",
			"SUM(CASE WHEN is_present THEN 1 ELSE 0 END) AS present",
			"SUM(CASE WHEN needs_upload THEN 1 ELSE 0 END) AS pending").
		Group("service").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]ServiceStats, len(rows))
	for _, r := range rows {
		out[r.Service] = ServiceStats{Present: r.Present, PendingUpload: r.Pending}
	}
	return out, nil
}

// Package services – MergeService
//
// This file implements the merge engine: it folds the fetched records of one
// sync cycle (possibly from several services) into the persisted store with
// no duplicates and no data loss. Records are grouped by dedup key, matched
// against the store, and merged field-by-field under a strict fill-gaps
// policy: a populated value is never overwritten, only empty values are
// filled. The policy makes merges associative and order-independent, so
// running the engine twice on identical input is a no-op.
//
// All store mutation here is single-threaded relative to the store; network
// concurrency happens in the orchestrator's fetch/upload phases, never
// during merge.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/adapter"
	"github.com/jsvana/carrier-wave-sub002/internal/domain"
	"github.com/jsvana/carrier-wave-sub002/internal/repo"
)

// MergeService reconciles fetched records against the persisted store.
type MergeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// BucketWidth is the dedup time-bucket width; zero means the default.
	BucketWidth time.Duration
}

// NewMergeService constructs a MergeService with the default bucket width.
func NewMergeService(db *gorm.DB) *MergeService {
	return &MergeService{DB: db, BucketWidth: domain.DefaultBucketWidth}
}

// MergeStats summarizes one MergeBatch invocation.
type MergeStats struct {
	// Created counts records persisted for the first time.
	Created int
	// Merged counts existing records that absorbed new data.
	Merged int
	// Skipped counts malformed fetched records that were dropped.
	Skipped int
	// Errors holds one message per skipped record.
	Errors []string
}

// group collects the fetched records of one cycle sharing a dedup key,
// preserving first-seen order so merges are deterministic.
type group struct {
	key     domain.DedupKey
	records []adapter.FetchedRecord
}

// MergeBatch folds fetched into the store and then computes upload needs.
//
// uploadTargets are the upload-capable services for which, after all groups
// have merged, every touched record without a confirmed presence is flagged
// needs_upload. force switches the field policy from fill-gaps to
// overwrite-mutable ("force re-download" repair); it still keys off the
// dedup key and never creates duplicates.
//
// A malformed record is skipped and logged; it never aborts its group or the
// cycle. A store-write failure is infrastructure trouble and aborts the
// cycle with an error.
func (s *MergeService) MergeBatch(ctx context.Context, fetched []adapter.FetchedRecord, uploadTargets []adapter.Service, force bool) (*MergeStats, error) {
	stats := &MergeStats{}

	groups := s.groupByKey(fetched, stats)

	touched := make([]string, 0, len(groups))
	now := time.Now().UTC()

	for _, g := range groups {
		id, created, changed, err := s.mergeGroup(ctx, g, now, force)
		if err != nil {
			return stats, fmt.Errorf("merge group %s: %w", g.key, err)
		}
		touched = append(touched, id)
		if created {
			stats.Created++
		} else if changed {
			stats.Merged++
		}
	}

	for _, id := range touched {
		for _, svc := range uploadTargets {
			if err := s.flagForUpload(ctx, id, svc); err != nil {
				return stats, fmt.Errorf("flag %s for upload to %s: %w", id, svc, err)
			}
		}
	}

	return stats, nil
}

// groupByKey buckets fetched records by dedup key in first-seen order,
// dropping malformed ones.
func (s *MergeService) groupByKey(fetched []adapter.FetchedRecord, stats *MergeStats) []*group {
	byKey := make(map[domain.DedupKey]*group)
	var ordered []*group

	for _, fr := range fetched {
		if reason := validateFetched(fr); reason != "" {
			stats.Skipped++
			msg := fmt.Sprintf("%s: skipped malformed record (%s)", fr.Source, reason)
			stats.Errors = append(stats.Errors, msg)
			log.Warn().
				Str("service", string(fr.Source)).
				Str("callsign", fr.Callsign).
				Str("reason", reason).
				Msg("skipping malformed fetched record")
			continue
		}
		key := domain.ComputeDedupKey(fr.Callsign, fr.Band, fr.Mode, fr.Timestamp, s.BucketWidth)
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key}
			byKey[key] = g
			ordered = append(ordered, g)
		}
		g.records = append(g.records, fr)
	}
	return ordered
}

// validateFetched returns a non-empty reason when the record cannot be
// merged.
func validateFetched(fr adapter.FetchedRecord) string {
	switch {
	case domain.NormalizeCallsign(fr.Callsign) == "":
		return "empty callsign"
	case domain.NormalizeBand(fr.Band) == "":
		return "empty band"
	case domain.NormalizeMode(fr.Mode) == "":
		return "empty mode"
	case fr.Timestamp.IsZero():
		return "missing timestamp"
	}
	return ""
}

// mergeGroup merges one dedup-key group inside a single transaction, so the
// merge of one record is atomic even if the cycle is cancelled afterwards.
func (s *MergeService) mergeGroup(ctx context.Context, g *group, now time.Time, force bool) (id string, created, changed bool, err error) {
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, ferr := repo.FindByDedupKey(ctx, tx, g.key)
		switch {
		case ferr == nil:
			// existing record: fold the group in
		case errors.Is(ferr, gorm.ErrRecordNotFound):
			rec = newRecordFromKey(g)
			if cerr := repo.CreateContact(ctx, tx, rec); cerr != nil {
				if errors.Is(cerr, repo.ErrDuplicateKey) {
					// lost a race with another writer; fall back to merge
					if rec, ferr = repo.FindByDedupKey(ctx, tx, g.key); ferr != nil {
						return ferr
					}
				} else {
					return cerr
				}
			} else {
				created = true
			}
		default:
			return ferr
		}

		for _, fr := range g.records {
			if applyFetched(rec, fr, force) {
				changed = true
			}
		}
		if changed || created {
			if serr := repo.SaveContact(ctx, tx, rec); serr != nil {
				return serr
			}
		}

		for _, svc := range groupSources(g) {
			if perr := repo.MarkPresent(ctx, tx, rec.ID, string(svc), now); perr != nil {
				return perr
			}
		}

		id = rec.ID
		return nil
	})
	return id, created, changed, err
}

// newRecordFromKey builds a fresh ContactRecord from a group: normalized
// identity from the key, timestamp from the earliest record in the group.
func newRecordFromKey(g *group) *domain.ContactRecord {
	ts := g.records[0].Timestamp
	for _, fr := range g.records[1:] {
		if fr.Timestamp.Before(ts) {
			ts = fr.Timestamp
		}
	}
	return &domain.ContactRecord{
		Callsign:    g.key.Callsign,
		Band:        g.key.Band,
		Mode:        g.key.Mode,
		DedupBucket: g.key.Bucket,
		Timestamp:   ts.UTC(),
	}
}

// groupSources returns the distinct source services of a group in
// first-seen order.
func groupSources(g *group) []adapter.Service {
	seen := make(map[adapter.Service]struct{}, 2)
	var out []adapter.Service
	for _, fr := range g.records {
		if _, ok := seen[fr.Source]; !ok {
			seen[fr.Source] = struct{}{}
			out = append(out, fr.Source)
		}
	}
	return out
}

// applyFetched merges one fetched record into rec and reports whether
// anything changed.
//
// Ordinary fields follow the fill-gaps policy (or overwrite when force).
// Confirmation facts are scoped to their authority: only a record fetched
// from that authority may set them, and they are never cleared.
func applyFetched(rec *domain.ContactRecord, fr adapter.FetchedRecord, force bool) bool {
	changed := false
	merge := func(dst *string, incoming string) {
		if incoming == "" || *dst == incoming {
			return
		}
		if *dst == "" || force {
			*dst = incoming
			changed = true
		}
	}

	merge(&rec.Frequency, fr.Frequency)
	merge(&rec.RSTSent, fr.RSTSent)
	merge(&rec.RSTReceived, fr.RSTReceived)
	merge(&rec.MyCall, fr.MyCall)
	merge(&rec.MyGrid, fr.MyGrid)
	merge(&rec.TheirGrid, fr.TheirGrid)
	merge(&rec.MyPark, fr.MyPark)
	merge(&rec.TheirPark, fr.TheirPark)
	merge(&rec.Notes, fr.Notes)
	merge(&rec.RawADIF, fr.RawADIF)
	merge(&rec.ContactName, fr.ContactName)
	merge(&rec.QTH, fr.QTH)
	merge(&rec.TxPower, fr.TxPower)
	merge(&rec.SOTARef, fr.SOTARef)

	switch fr.Source {
	case adapter.ServiceLoTW:
		if fr.Confirmed && !rec.LoTWConfirmed {
			rec.LoTWConfirmed = true
			changed = true
		}
		if fr.Confirmed && fr.ConfirmedAt != nil && rec.LoTWConfirmedAt == nil {
			at := fr.ConfirmedAt.UTC()
			rec.LoTWConfirmedAt = &at
			changed = true
		}
	case adapter.ServiceEqsl:
		if fr.Confirmed && !rec.EqslConfirmed {
			rec.EqslConfirmed = true
			changed = true
		}
		if fr.Confirmed && fr.ConfirmedAt != nil && rec.EqslConfirmedAt == nil {
			at := fr.ConfirmedAt.UTC()
			rec.EqslConfirmedAt = &at
			changed = true
		}
	}

	return changed
}

// flagForUpload marks a record for upload to svc unless a presence row
// already reports it present there.
func (s *MergeService) flagForUpload(ctx context.Context, contactID string, svc adapter.Service) error {
	return repo.MarkNeedsUpload(ctx, s.DB, contactID, string(svc))
}

// Package services – ReconcileService
//
// This file implements the on-demand repair pass that catches duplicate
// contacts the dedup key misses: the same QSO logged by two tools whose
// clocks drifted across a bucket boundary. Records are scanned in timestamp
// order with a sliding window; candidates with matching identity fields form
// a group, a deterministic winner absorbs the losers, and the losers are
// deleted. Re-running the pass once no duplicates remain has no further
// effect.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
	"github.com/jsvana/carrier-wave-sub002/internal/repo"
)

// Reconciliation window policy values.
const (
	DefaultReconcileWindow = 5 * time.Minute
	MinReconcileWindow     = 1 * time.Minute
	MaxReconcileWindow     = 15 * time.Minute
)

// ReconcileResult summarizes one reconciliation run.
type ReconcileResult struct {
	// GroupsFound counts duplicate groups detected.
	GroupsFound int `json:"groups_found"`
	// Merged counts surviving winners that absorbed at least one loser.
	Merged int `json:"merged"`
	// Removed counts absorbed (deleted) loser records.
	Removed int `json:"removed"`
}

// ReconcileService merges near-duplicate records beyond the dedup bucket.
type ReconcileService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewReconcileService constructs a ReconcileService.
func NewReconcileService(db *gorm.DB) *ReconcileService {
	return &ReconcileService{DB: db}
}

// Run executes one reconciliation pass with the given window. A zero window
// selects the default; windows outside [MinReconcileWindow,
// MaxReconcileWindow] are rejected with ErrInvalidWindow.
func (s *ReconcileService) Run(ctx context.Context, window time.Duration) (*ReconcileResult, error) {
	if window == 0 {
		window = DefaultReconcileWindow
	}
	if window < MinReconcileWindow || window > MaxReconcileWindow {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}

	records, err := repo.ListContactsByTimestamp(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	res := &ReconcileResult{}
	visited := make([]bool, len(records))

	for i := range records {
		if visited[i] {
			continue
		}
		anchor := &records[i]

		// Records are sorted, so the scan stops at the window edge.
		group := []*domain.ContactRecord{anchor}
		for j := i + 1; j < len(records); j++ {
			if records[j].Timestamp.Sub(anchor.Timestamp) > window {
				break
			}
			if visited[j] {
				continue
			}
			if domain.SameIdentity(anchor, &records[j]) {
				group = append(group, &records[j])
				visited[j] = true
			}
		}
		if len(group) < 2 {
			continue
		}

		res.GroupsFound++
		winner := pickWinner(group)
		if err := s.absorbGroup(ctx, winner, group); err != nil {
			return res, fmt.Errorf("absorb group anchored at %s: %w", anchor.Key(), err)
		}
		res.Merged++
		res.Removed += len(group) - 1
		reconcileRemovedTotal.Add(float64(len(group) - 1))
	}

	log.Info().
		Int("groups", res.GroupsFound).
		Int("merged", res.Merged).
		Int("removed", res.Removed).
		Dur("window", window).
		Msg("reconciliation pass finished")
	return res, nil
}

// pickWinner orders the group by a total order (most confirmed presences,
// then highest field richness, then lowest ID) and returns the first.
func pickWinner(group []*domain.ContactRecord) *domain.ContactRecord {
	ranked := make([]*domain.ContactRecord, len(group))
	copy(ranked, group)
	sort.Slice(ranked, func(i, j int) bool {
		pi, pj := presentCount(ranked[i]), presentCount(ranked[j])
		if pi != pj {
			return pi > pj
		}
		ri, rj := ranked[i].RichnessScore(), ranked[j].RichnessScore()
		if ri != rj {
			return ri > rj
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked[0]
}

func presentCount(c *domain.ContactRecord) int {
	n := 0
	for _, p := range c.Presences {
		if p.IsPresent {
			n++
		}
	}
	return n
}

// absorbGroup folds every loser into the winner inside one transaction:
// presence rows the winner lacks are copied over (an is_present=true on
// either side wins), empty value fields are filled under the same
// never-overwrite rule the merge engine uses, and the loser is deleted.
func (s *ReconcileService) absorbGroup(ctx context.Context, winner *domain.ContactRecord, group []*domain.ContactRecord) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, loser := range group {
			if loser.ID == winner.ID {
				continue
			}
			if err := absorbPresences(ctx, tx, winner, loser); err != nil {
				return err
			}
			fillFromLoser(winner, loser)
			if err := repo.DeleteContact(ctx, tx, loser.ID); err != nil {
				return err
			}
			log.Debug().
				Str("winner", winner.ID).
				Str("loser", loser.ID).
				Str("callsign", winner.Callsign).
				Msg("absorbed duplicate contact")
		}
		return repo.SaveContact(ctx, tx, winner)
	})
}

// absorbPresences copies the loser's presence rows onto the winner. When
// both sides have a row for the same service, is_present=true wins; a
// presence that became present clears needs_upload.
func absorbPresences(ctx context.Context, tx *gorm.DB, winner, loser *domain.ContactRecord) error {
	byService := make(map[string]*domain.ServicePresence, len(winner.Presences))
	for i := range winner.Presences {
		byService[winner.Presences[i].Service] = &winner.Presences[i]
	}

	for _, lp := range loser.Presences {
		wp, ok := byService[lp.Service]
		if !ok {
			np := domain.ServicePresence{
				ContactID:       winner.ID,
				Service:         lp.Service,
				IsPresent:       lp.IsPresent,
				NeedsUpload:     lp.NeedsUpload && !lp.IsPresent,
				LastConfirmedAt: lp.LastConfirmedAt,
			}
			if err := repo.CreatePresence(ctx, tx, &np); err != nil {
				return err
			}
			winner.Presences = append(winner.Presences, np)
			byService[np.Service] = &winner.Presences[len(winner.Presences)-1]
			continue
		}

		changed := false
		if lp.IsPresent && !wp.IsPresent {
			wp.IsPresent = true
			wp.NeedsUpload = false
			changed = true
		}
		if lp.LastConfirmedAt != nil &&
			(wp.LastConfirmedAt == nil || lp.LastConfirmedAt.After(*wp.LastConfirmedAt)) {
			wp.LastConfirmedAt = lp.LastConfirmedAt
			changed = true
		}
		if changed {
			if err := repo.SavePresence(ctx, tx, wp); err != nil {
				return err
			}
		}
	}
	return nil
}

// fillFromLoser fills the winner's empty value fields from the loser.
// Populated winner fields are never overwritten; confirmation facts only
// gain, never clear.
func fillFromLoser(winner, loser *domain.ContactRecord) {
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fill(&winner.Frequency, loser.Frequency)
	fill(&winner.RSTSent, loser.RSTSent)
	fill(&winner.RSTReceived, loser.RSTReceived)
	fill(&winner.MyCall, loser.MyCall)
	fill(&winner.MyGrid, loser.MyGrid)
	fill(&winner.TheirGrid, loser.TheirGrid)
	fill(&winner.MyPark, loser.MyPark)
	fill(&winner.TheirPark, loser.TheirPark)
	fill(&winner.Notes, loser.Notes)
	fill(&winner.RawADIF, loser.RawADIF)
	fill(&winner.ContactName, loser.ContactName)
	fill(&winner.QTH, loser.QTH)
	fill(&winner.TxPower, loser.TxPower)
	fill(&winner.SOTARef, loser.SOTARef)

	if loser.LoTWConfirmed && !winner.LoTWConfirmed {
		winner.LoTWConfirmed = true
	}
	if winner.LoTWConfirmedAt == nil {
		winner.LoTWConfirmedAt = loser.LoTWConfirmedAt
	}
	if loser.EqslConfirmed && !winner.EqslConfirmed {
		winner.EqslConfirmed = true
	}
	if winner.EqslConfirmedAt == nil {
		winner.EqslConfirmedAt = loser.EqslConfirmedAt
	}
}

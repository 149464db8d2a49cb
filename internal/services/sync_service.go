// Package services – SyncService
//
// This file implements the sync orchestrator: one full cycle runs
// Download → Merge → Upload → Confirm across all configured services.
//
// Concurrency model: the download and upload phases launch one goroutine per
// service; each task writes only its own result slot and blocks only inside
// the adapter call, under an independent timeout. A WaitGroup barrier
// separates the phases. The store is touched by exactly one logical writer:
// the merge phase and the confirm phase run sequentially after their
// barriers, and a cycle mutex keeps concurrent cycles out entirely.
//
// Failure isolation: a failed, timed-out, or rate-limited service
// contributes zero records and one entry in SyncResult.Errors; a service
// inside its maintenance window is skipped up front and reported in
// SyncResult.Skipped. Neither disturbs sibling services. Only a store-write
// failure aborts the cycle.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/adapter"
	"github.com/jsvana/carrier-wave-sub002/internal/repo"
)

// Default policy values; config may override them.
const (
	DefaultFetchTimeout    = 2 * time.Minute
	DefaultUploadTimeout   = 2 * time.Minute
	DefaultUploadChunkSize = 50
)

// SyncResult summarizes one orchestrator run.
type SyncResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Fetched counts records downloaded per service this cycle.
	Fetched map[string]int `json:"fetched,omitempty"`
	// Created counts records persisted for the first time.
	Created int `json:"created"`
	// Merged counts existing records that absorbed new data.
	Merged int `json:"merged"`
	// SkippedRecords counts malformed fetched records that were dropped.
	SkippedRecords int `json:"skipped_records"`
	// Uploaded counts records confirmed (accepted or duplicate) per service.
	Uploaded map[string]int `json:"uploaded,omitempty"`
	// Rejected counts records the service refused, per service.
	Rejected map[string]int `json:"rejected,omitempty"`

	// Errors holds contained per-service and per-record failures.
	Errors []string `json:"errors,omitempty"`
	// Skipped holds "didn't run" reasons (e.g. maintenance windows),
	// kept separate from Errors so callers can distinguish the two.
	Skipped []string `json:"skipped,omitempty"`
}

func newSyncResult(start time.Time) *SyncResult {
	return &SyncResult{
		StartedAt: start,
		Fetched:   make(map[string]int),
		Uploaded:  make(map[string]int),
		Rejected:  make(map[string]int),
	}
}

// SyncService drives full synchronization cycles.
type SyncService struct {
	DB       *gorm.DB
	Registry *adapter.Registry
	Creds    adapter.CredentialChecker
	Merge    *MergeService

	FetchTimeout    time.Duration
	UploadTimeout   time.Duration
	UploadChunkSize int

	// cycleMu serializes cycles: the store has a single logical writer.
	cycleMu sync.Mutex

	// now is a test seam.
	now func() time.Time
}

// NewSyncService constructs a SyncService with default timeouts and chunk
// size.
func NewSyncService(db *gorm.DB, reg *adapter.Registry, creds adapter.CredentialChecker, merge *MergeService) *SyncService {
	return &SyncService{
		DB:              db,
		Registry:        reg,
		Creds:           creds,
		Merge:           merge,
		FetchTimeout:    DefaultFetchTimeout,
		UploadTimeout:   DefaultUploadTimeout,
		UploadChunkSize: DefaultUploadChunkSize,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// RunFullSync runs one cycle across every registered, configured service.
func (s *SyncService) RunFullSync(ctx context.Context) (*SyncResult, error) {
	var scope []adapter.Service
	for _, svc := range s.Registry.Services() {
		if s.Creds.IsConfigured(svc) {
			scope = append(scope, svc)
		}
	}
	return s.runCycle(ctx, scope, false)
}

// RunSync runs the same pipeline scoped to a single service. force switches
// the merge to overwrite-mutable mode ("force re-download") to repair
// previously mis-parsed data.
func (s *SyncService) RunSync(ctx context.Context, svc adapter.Service, force bool) (*SyncResult, error) {
	if !knownService(svc) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, svc)
	}
	if _, err := s.Registry.Get(svc); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, svc)
	}
	if !s.Creds.IsConfigured(svc) {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotConfigured, svc)
	}
	return s.runCycle(ctx, []adapter.Service{svc}, force)
}

func knownService(svc adapter.Service) bool {
	for _, known := range adapter.AllServices() {
		if svc == known {
			return true
		}
	}
	return false
}

// fetchSlot is one download task's private result slot.
type fetchSlot struct {
	svc     adapter.Service
	records []adapter.FetchedRecord
	cursor  string
	err     error
	ran     bool
}

// uploadSlot is one upload task's private result slot.
type uploadSlot struct {
	svc     adapter.Service
	results []adapter.UploadResult
	err     error
}

func (s *SyncService) runCycle(ctx context.Context, scope []adapter.Service, force bool) (*SyncResult, error) {
	if !s.cycleMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.cycleMu.Unlock()

	start := s.now()
	res := newSyncResult(start)
	syncCyclesTotal.Inc()

	// --- Download phase (parallel, per-service isolation) ---
	slots := s.downloadPhase(ctx, scope, res)

	var all []adapter.FetchedRecord
	for i := range slots {
		sl := &slots[i]
		if !sl.ran {
			continue
		}
		if sl.err != nil {
			s.recordFailure(res, sl.svc, "download", sl.err)
			continue
		}
		res.Fetched[string(sl.svc)] = len(sl.records)
		all = append(all, sl.records...)
	}

	// --- Merge phase (sequential, single writer) ---
	targets := s.uploadTargets(scope)
	stats, err := s.Merge.MergeBatch(ctx, all, targets, force)
	if stats != nil {
		res.Created += stats.Created
		res.Merged += stats.Merged
		res.SkippedRecords += stats.Skipped
		res.Errors = append(res.Errors, stats.Errors...)
	}
	if err != nil {
		// Store-write failures are cycle-fatal infrastructure faults.
		res.FinishedAt = s.now()
		return res, err
	}
	recordsMergedTotal.Add(float64(stats.Created + stats.Merged))

	// Cursors advance only after their records are safely merged.
	for i := range slots {
		sl := &slots[i]
		if sl.ran && sl.err == nil {
			if cerr := repo.SaveCursor(ctx, s.DB, string(sl.svc), sl.cursor, start); cerr != nil {
				res.FinishedAt = s.now()
				return res, fmt.Errorf("save cursor for %s: %w", sl.svc, cerr)
			}
		}
	}

	// --- Upload phase (parallel) + Confirm phase (sequential) ---
	ups := s.uploadPhase(ctx, targets, res)
	if err := s.confirmPhase(ctx, ups, res); err != nil {
		res.FinishedAt = s.now()
		return res, err
	}

	res.FinishedAt = s.now()
	log.Info().
		Int("created", res.Created).
		Int("merged", res.Merged).
		Int("skipped_records", res.SkippedRecords).
		Int("errors", len(res.Errors)).
		Int("skips", len(res.Skipped)).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("sync cycle finished")
	return res, nil
}

// downloadPhase launches one fetch task per operational service and waits
// for all of them. Maintenance-window services are skipped before launch.
func (s *SyncService) downloadPhase(ctx context.Context, scope []adapter.Service, res *SyncResult) []fetchSlot {
	slots := make([]fetchSlot, len(scope))
	var wg sync.WaitGroup

	for i, svc := range scope {
		slots[i].svc = svc
		ad, err := s.Registry.Get(svc)
		if err != nil {
			slots[i].ran = true
			slots[i].err = err
			continue
		}
		if !ad.IsOperational(s.now()) {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: download skipped, maintenance window", svc))
			continue
		}

		since := ""
		if cur, cerr := repo.GetCursor(ctx, s.DB, string(svc)); cerr == nil {
			since = cur.Cursor
		} else if !errors.Is(cerr, gorm.ErrRecordNotFound) {
			slots[i].ran = true
			slots[i].err = cerr
			continue
		}

		slots[i].ran = true
		wg.Add(1)
		go func(slot *fetchSlot, ad adapter.Adapter, since string) {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, s.FetchTimeout)
			defer cancel()
			slot.records, slot.cursor, slot.err = ad.Fetch(fctx, since)
		}(&slots[i], ad, since)
	}

	wg.Wait()
	return slots
}

// uploadTargets filters scope down to registered, upload-capable services.
func (s *SyncService) uploadTargets(scope []adapter.Service) []adapter.Service {
	var out []adapter.Service
	for _, svc := range scope {
		if ad, err := s.Registry.Get(svc); err == nil && ad.SupportsUpload() {
			out = append(out, svc)
		}
	}
	return out
}

// uploadPhase gathers each target's pending records, chunks them, and
// launches one task per service that submits its chunks sequentially.
func (s *SyncService) uploadPhase(ctx context.Context, targets []adapter.Service, res *SyncResult) []uploadSlot {
	slots := make([]uploadSlot, 0, len(targets))
	var wg sync.WaitGroup

	for _, svc := range targets {
		ad, err := s.Registry.Get(svc)
		if err != nil {
			continue
		}
		if !ad.IsOperational(s.now()) {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: upload skipped, maintenance window", svc))
			continue
		}
		pending, err := repo.ListNeedingUpload(ctx, s.DB, string(svc))
		if err != nil {
			s.recordFailure(res, svc, "upload", err)
			continue
		}
		if len(pending) == 0 {
			continue
		}

		slots = append(slots, uploadSlot{svc: svc})
		slot := &slots[len(slots)-1]

		wg.Add(1)
		go func(slot *uploadSlot, ad adapter.Adapter) {
			defer wg.Done()
			uctx, cancel := context.WithTimeout(ctx, s.UploadTimeout)
			defer cancel()
			for _, chunk := range chunkRecords(pending, s.UploadChunkSize) {
				results, uerr := ad.Upload(uctx, chunk)
				slot.results = append(slot.results, results...)
				if uerr != nil {
					slot.err = uerr
					return
				}
			}
		}(slot, ad)
	}

	wg.Wait()
	return slots
}

// confirmPhase applies per-record upload outcomes to the presence rows,
// sequentially, after the upload barrier. Rejections keep needs_upload set
// and are reported per record.
func (s *SyncService) confirmPhase(ctx context.Context, ups []uploadSlot, res *SyncResult) error {
	now := s.now()
	for i := range ups {
		sl := &ups[i]
		if sl.err != nil {
			s.recordFailure(res, sl.svc, "upload", sl.err)
			// fall through: outcomes gathered before the failure still count
		}
		for _, out := range sl.results {
			switch out.Status {
			case adapter.UploadAccepted, adapter.UploadDuplicate:
				if err := repo.MarkPresent(ctx, s.DB, out.ContactID, string(sl.svc), now); err != nil {
					return fmt.Errorf("confirm %s at %s: %w", out.ContactID, sl.svc, err)
				}
				res.Uploaded[string(sl.svc)]++
			case adapter.UploadRejected:
				res.Rejected[string(sl.svc)]++
				res.Errors = append(res.Errors,
					fmt.Sprintf("%s: record %s rejected: %s", sl.svc, out.ContactID, out.Reason))
			}
		}
	}
	return nil
}

// recordFailure classifies a per-service error into the result. Maintenance
// errors surfaced by the adapter itself count as skips, not failures.
func (s *SyncService) recordFailure(res *SyncResult, svc adapter.Service, phase string, err error) {
	if errors.Is(err, adapter.ErrMaintenance) {
		res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %s skipped, maintenance window", svc, phase))
		return
	}

	kind := "error"
	switch {
	case errors.Is(err, adapter.ErrAuth):
		kind = "auth"
	case errors.Is(err, adapter.ErrRateLimited):
		kind = "rate_limited"
	case errors.Is(err, adapter.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		kind = "network"
	}
	syncErrorsTotal.WithLabelValues(string(svc), kind).Inc()
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %s failed: %v", svc, phase, err))
	log.Warn().
		Str("service", string(svc)).
		Str("phase", phase).
		Str("kind", kind).
		Err(err).
		Msg("service failure contained")
}

// chunkRecords splits records into size-bounded batches, preserving order.
func chunkRecords[T any](records []T, size int) [][]T {
	if size <= 0 {
		size = DefaultUploadChunkSize
	}
	var out [][]T
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

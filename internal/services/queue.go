// Package services – TriggerQueue
//
// "Something changed" signals (push notifications, file monitors, user taps)
// are decoupled from the synchronous pipeline through a bounded work queue.
// Producers enqueue triggers without blocking; a single drain loop runs the
// cycles one at a time, which also keeps the store's single-writer rule
// intact.
package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/jsvana/carrier-wave-sub002/internal/adapter"
)

// Trigger asks the orchestrator to run one sync cycle. An empty Service
// requests a full sync; Force requests the overwrite-mutable merge variant.
type Trigger struct {
	Service adapter.Service
	Force   bool
}

// Runner is the subset of SyncService the queue drains into.
type Runner interface {
	RunFullSync(ctx context.Context) (*SyncResult, error)
	RunSync(ctx context.Context, svc adapter.Service, force bool) (*SyncResult, error)
}

// TriggerQueue is a bounded, non-blocking queue of sync triggers.
type TriggerQueue struct {
	ch chan Trigger
}

// NewTriggerQueue returns a queue holding at most size pending triggers.
// A non-positive size falls back to 16.
func NewTriggerQueue(size int) *TriggerQueue {
	if size <= 0 {
		size = 16
	}
	return &TriggerQueue{ch: make(chan Trigger, size)}
}

// Enqueue offers a trigger without blocking. It reports false when the
// queue is full; a dropped trigger is safe to lose because any later cycle
// performs the same reconciliation work.
func (q *TriggerQueue) Enqueue(t Trigger) bool {
	select {
	case q.ch <- t:
		return true
	default:
		return false
	}
}

// Len returns the number of pending triggers.
func (q *TriggerQueue) Len() int { return len(q.ch) }

// Run drains the queue until ctx is cancelled, executing one cycle per
// trigger. Cycle errors are logged and do not stop the loop.
func (q *TriggerQueue) Run(ctx context.Context, r Runner) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.ch:
			var err error
			if t.Service == "" {
				_, err = r.RunFullSync(ctx)
			} else {
				_, err = r.RunSync(ctx, t.Service, t.Force)
			}
			if err != nil {
				log.Error().
					Str("service", string(t.Service)).
					Bool("force", t.Force).
					Err(err).
					Msg("queued sync cycle failed")
			}
		}
	}
}

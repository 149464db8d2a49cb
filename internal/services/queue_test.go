package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jsvana/carrier-wave-sub002/internal/adapter"
)

// fakeRunner records the cycles a drained queue requests.
type fakeRunner struct {
	mu    sync.Mutex
	calls []Trigger
	done  chan struct{}
}

func (r *fakeRunner) record(t Trigger) {
	r.mu.Lock()
	r.calls = append(r.calls, t)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *fakeRunner) RunFullSync(context.Context) (*SyncResult, error) {
	r.record(Trigger{})
	return &SyncResult{}, nil
}

func (r *fakeRunner) RunSync(_ context.Context, svc adapter.Service, force bool) (*SyncResult, error) {
	r.record(Trigger{Service: svc, Force: force})
	return &SyncResult{}, nil
}

func TestTriggerQueue_EnqueueBounded(t *testing.T) {
	q := NewTriggerQueue(2)

	if !q.Enqueue(Trigger{}) || !q.Enqueue(Trigger{Service: adapter.ServiceQRZ}) {
		t.Fatalf("enqueue within capacity failed")
	}
	if q.Enqueue(Trigger{Service: adapter.ServiceLoTW}) {
		t.Fatalf("enqueue past capacity must report false, not block")
	}
	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
}

func TestTriggerQueue_DefaultSize(t *testing.T) {
	q := NewTriggerQueue(0)
	for i := 0; i < 16; i++ {
		if !q.Enqueue(Trigger{}) {
			t.Fatalf("default-size queue full after %d triggers", i)
		}
	}
	if q.Enqueue(Trigger{}) {
		t.Fatalf("expected default capacity of 16")
	}
}

func TestTriggerQueue_RunDrains(t *testing.T) {
	q := NewTriggerQueue(4)
	r := &fakeRunner{done: make(chan struct{}, 4)}

	q.Enqueue(Trigger{})                                        // full sync
	q.Enqueue(Trigger{Service: adapter.ServiceQRZ, Force: true}) // targeted force

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx, r)

	for i := 0; i < 2; i++ {
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("queue did not drain trigger %d", i)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(r.calls))
	}
	if r.calls[0].Service != "" {
		t.Fatalf("first trigger should be a full sync: %+v", r.calls[0])
	}
	if r.calls[1].Service != adapter.ServiceQRZ || !r.calls[1].Force {
		t.Fatalf("second trigger lost its scope: %+v", r.calls[1])
	}
}

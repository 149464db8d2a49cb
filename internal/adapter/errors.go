// Package adapter – error taxonomy shared by all service adapters.
//
// Adapters wrap these sentinels (fmt.Errorf("%w: …")) so the orchestrator
// can classify failures with errors.Is without knowing service specifics:
//
//   - ErrAuth: credentials rejected; user-actionable, not retried.
//   - ErrNetwork: transient transport fault; safe to retry next cycle.
//   - ErrRateLimited: the service throttled us; retry next cycle.
//   - ErrMaintenance: expected, time-boxed outage; reported as a skip,
//     never as a failure.
package adapter

import "errors"

var (
	// ErrAuth indicates the service rejected the stored credentials.
	ErrAuth = errors.New("authentication rejected")

	// ErrNetwork indicates a transient network failure the adapter could
	// not recover from within its own retry budget.
	ErrNetwork = errors.New("network failure")

	// ErrRateLimited indicates the service throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrMaintenance indicates the service is inside a maintenance window.
	ErrMaintenance = errors.New("maintenance window")
)

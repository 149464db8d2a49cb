// Package services implements the business logic of the sync engine: the
// merge engine, the sync orchestrator, and the reconciliation pass. This
// file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

var (
	// ErrUnknownService is returned when a sync is requested for a service
	// identifier outside the known set.
	ErrUnknownService = errors.New("unknown service")

	// ErrServiceNotConfigured is returned when a sync is requested for a
	// known service that has no usable credentials.
	ErrServiceNotConfigured = errors.New("service not configured")

	// ErrSyncInProgress is returned when a cycle is requested while another
	// cycle is still running. The store has a single logical writer.
	ErrSyncInProgress = errors.New("sync cycle already in progress")

	// ErrInvalidWindow is returned when a reconciliation window falls
	// outside the allowed range.
	ErrInvalidWindow = errors.New("reconciliation window out of range")
)

// Package adapter defines the contract every external logging service must
// satisfy to participate in synchronization. The engine never inspects a
// service's wire format; it only consumes this contract. Concrete adapters
// (authentication, pagination, HTTP encoding) live outside the core.
package adapter

import (
	"context"
	"time"

	"github.com/jsvana/carrier-wave-sub002/internal/domain"
)

// Service identifies one external logging service. The set is closed:
// dispatch happens through the Registry, never through runtime type
// inspection.
type Service string

const (
	ServiceQRZ     Service = "qrz"
	ServiceLoTW    Service = "lotw"
	ServiceEqsl    Service = "eqsl"
	ServiceClubLog Service = "clublog"
	ServicePOTA    Service = "pota"
)

// AllServices lists every known service identifier in stable order.
func AllServices() []Service {
	return []Service{ServiceQRZ, ServiceLoTW, ServiceEqsl, ServiceClubLog, ServicePOTA}
}

// FetchedRecord is the unified, transient shape every adapter emits from
// Fetch. It carries the same value fields as domain.ContactRecord plus the
// source tag, and is discarded once merged.
type FetchedRecord struct {
	Source Service

	Callsign  string
	Band      string
	Mode      string
	Timestamp time.Time

	Frequency   string
	RSTSent     string
	RSTReceived string
	MyCall      string
	MyGrid      string
	TheirGrid   string
	MyPark      string
	TheirPark   string
	Notes       string
	RawADIF     string

	ContactName string
	QTH         string
	TxPower     string
	SOTARef     string

	// Confirmation fact as reported by the source itself. The merge engine
	// applies it only when Source is the owning authority.
	Confirmed   bool
	ConfirmedAt *time.Time
}

// UploadStatus is the per-record outcome of an upload attempt.
type UploadStatus string

const (
	UploadAccepted  UploadStatus = "accepted"
	UploadDuplicate UploadStatus = "duplicate"
	UploadRejected  UploadStatus = "rejected"
)

// UploadResult reports the outcome for one record of an upload batch.
// ContactID refers to the persisted domain.ContactRecord that was submitted.
type UploadResult struct {
	ContactID string
	Status    UploadStatus
	Reason    string // populated when Status is UploadRejected
}

// Adapter is the interface each logging service client implements.
//
// Fetch returns every record newer than the given opaque cursor together
// with the cursor to persist for the next cycle. Adapters own pagination and
// retry of transient faults internally; a returned error is terminal for the
// cycle and should wrap one of the sentinel errors in this package.
//
// Upload submits a batch and returns one UploadResult per record. It is only
// called when SupportsUpload reports true.
//
// IsOperational gates both phases: when it reports false (maintenance
// blackout), the orchestrator skips the service instead of failing it.
type Adapter interface {
	Service() Service
	Fetch(ctx context.Context, since string) ([]FetchedRecord, string, error)
	SupportsUpload() bool
	Upload(ctx context.Context, batch []domain.ContactRecord) ([]UploadResult, error)
	IsOperational(at time.Time) bool
}

// CredentialChecker answers whether a service has usable credentials.
// Credential storage itself is external to the engine.
type CredentialChecker interface {
	IsConfigured(svc Service) bool
}

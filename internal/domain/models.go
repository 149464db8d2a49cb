// Package domain defines the persistence models for the synchronized logbook:
// contact records, their per-service presence rows, and per-service sync
// cursors. These types are mapped with GORM and form the core data layer
// of the sync engine.
package domain

import "time"

// ContactRecord represents one physical radio contact (QSO), merged from
// every logging service that reported it. The identity fields plus the
// derived dedup bucket form the dedup key; a composite unique index enforces
// that no two rows share it.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Callsign / Band / Mode: case-normalized identity fields.
//   - DedupBucket: floor(Timestamp / bucket width); part of the unique index.
//   - Timestamp: QSO start time (UTC).
//   - Value fields (Frequency … RawADIF): filled gap-by-gap by the merge
//     engine, never blanked once populated.
//   - ContactName / QTH / TxPower / SOTARef: extension fields only some
//     sources report; always optional.
//   - LoTW*/Eqsl*: service-scoped confirmation facts, updated only from the
//     owning authority.
//   - Presences: per-service presence rows, cascade-deleted with the record.
type ContactRecord struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Callsign    string    `json:"callsign"     gorm:"type:varchar(24);not null;uniqueIndex:ux_contact_dedup,priority:1"`
	Band        string    `json:"band"         gorm:"type:varchar(12);not null;uniqueIndex:ux_contact_dedup,priority:2"`
	Mode        string    `json:"mode"         gorm:"type:varchar(16);not null;uniqueIndex:ux_contact_dedup,priority:3"`
	DedupBucket int64     `json:"-"            gorm:"not null;uniqueIndex:ux_contact_dedup,priority:4"`
	Timestamp   time.Time `json:"timestamp"    gorm:"not null;index"`

	Frequency   string `json:"frequency,omitempty"`
	RSTSent     string `json:"rst_sent,omitempty"`
	RSTReceived string `json:"rst_received,omitempty"`
	MyCall      string `json:"my_call,omitempty"`
	MyGrid      string `json:"my_grid,omitempty"`
	TheirGrid   string `json:"their_grid,omitempty"`
	MyPark      string `json:"my_park,omitempty"`
	TheirPark   string `json:"their_park,omitempty"`
	Notes       string `json:"notes,omitempty"      gorm:"type:text"`
	RawADIF     string `json:"-"                    gorm:"type:text"` // verbatim source record, kept for re-export

	// Extension fields discovered only from certain sources.
	ContactName string `json:"contact_name,omitempty"`
	QTH         string `json:"qth,omitempty"`
	TxPower     string `json:"tx_power,omitempty"`
	SOTARef     string `json:"sota_ref,omitempty"`

	// Confirmation facts scoped to their issuing authority.
	LoTWConfirmed   bool       `json:"lotw_confirmed"`
	LoTWConfirmedAt *time.Time `json:"lotw_confirmed_at,omitempty"`
	EqslConfirmed   bool       `json:"eqsl_confirmed"`
	EqslConfirmedAt *time.Time `json:"eqsl_confirmed_at,omitempty"`

	// Hard-deleted only: a soft-deleted row would keep holding the dedup
	// unique index and block re-creation of the same contact.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Presences []ServicePresence `json:"presences,omitempty" gorm:"foreignKey:ContactID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ContactRecord.
func (ContactRecord) TableName() string { return "contact_records" }

// RichnessScore counts the populated optional fields of a record. The
// reconciliation pass uses it as a tie-break when choosing a merge winner.
func (c *ContactRecord) RichnessScore() int {
	score := 0
	for _, v := range []string{
		c.Frequency, c.RSTSent, c.RSTReceived,
		c.MyCall, c.MyGrid, c.TheirGrid,
		c.MyPark, c.TheirPark, c.Notes, c.RawADIF,
		c.ContactName, c.QTH, c.TxPower, c.SOTARef,
	} {
		if v != "" {
			score++
		}
	}
	if c.LoTWConfirmed {
		score++
	}
	if c.EqslConfirmed {
		score++
	}
	return score
}

// ServicePresence records whether (and how) one contact relates to one
// external logging service. At most one row exists per (contact, service)
// pair, enforced by a unique index.
//
// IsPresent means the record is confirmed to exist at the service;
// NeedsUpload means the record must still be pushed there. A confirmed
// upload clears NeedsUpload within the same cycle.
type ServicePresence struct {
	ID              string     `json:"id"                gorm:"type:char(36);primaryKey"`
	ContactID       string     `json:"-"                 gorm:"type:char(36);not null;index;uniqueIndex:ux_presence_contact_service,priority:1"`
	Service         string     `json:"service"           gorm:"type:varchar(16);not null;uniqueIndex:ux_presence_contact_service,priority:2"`
	IsPresent       bool       `json:"is_present"        gorm:"not null;default:false"`
	NeedsUpload     bool       `json:"needs_upload"      gorm:"not null;default:false"`
	LastConfirmedAt *time.Time `json:"last_confirmed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ServicePresence.
func (ServicePresence) TableName() string { return "service_presences" }

// SyncCursor stores the per-service fetch cursor so each cycle downloads only
// records newer than the last successful merge. The cursor value is opaque to
// the engine; adapters interpret it.
type SyncCursor struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	Service      string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_cursor_service"`
	Cursor       string    `gorm:"type:text"`
	LastSyncedAt time.Time `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the database table name for SyncCursor.
func (SyncCursor) TableName() string { return "sync_cursors" }

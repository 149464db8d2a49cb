// Dedup key derivation and identity normalization.
//
// The dedup key is the coarse uniqueness guard for contact records:
// normalized callsign, band, and mode plus a time bucket. Two services
// reporting the same QSO within one bucket collapse to a single record.
// Contacts that drift across bucket boundaries are caught later by the
// reconciliation pass.
package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultBucketWidth is the default dedup time-bucket width. It is a policy
// value, not a hard requirement; config may override it.
const DefaultBucketWidth = 2 * time.Minute

var upperCaser = cases.Upper(language.Und)

// NormalizeCallsign upper-cases and trims a callsign for identity comparison.
func NormalizeCallsign(s string) string {
	return upperCaser.String(strings.TrimSpace(s))
}

// NormalizeMode upper-cases and trims an operating mode (e.g. "cw" -> "CW").
func NormalizeMode(s string) string {
	return upperCaser.String(strings.TrimSpace(s))
}

// NormalizeBand lower-cases and trims a band label (e.g. "20M" -> "20m").
func NormalizeBand(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DedupKey identifies a presumed-unique contact: normalized identity fields
// plus the timestamp bucket.
type DedupKey struct {
	Callsign string
	Band     string
	Mode     string
	Bucket   int64
}

// ComputeDedupKey derives the dedup key for the given identity fields using
// bucketWidth-wide time buckets. A non-positive bucketWidth falls back to
// DefaultBucketWidth.
func ComputeDedupKey(callsign, band, mode string, ts time.Time, bucketWidth time.Duration) DedupKey {
	if bucketWidth <= 0 {
		bucketWidth = DefaultBucketWidth
	}
	return DedupKey{
		Callsign: NormalizeCallsign(callsign),
		Band:     NormalizeBand(band),
		Mode:     NormalizeMode(mode),
		Bucket:   ts.UTC().Unix() / int64(bucketWidth/time.Second),
	}
}

// Key returns the record's dedup key as stored (identity fields are already
// normalized at persistence time).
func (c *ContactRecord) Key() DedupKey {
	return DedupKey{Callsign: c.Callsign, Band: c.Band, Mode: c.Mode, Bucket: c.DedupBucket}
}

// String renders the key in a stable form usable as a map key or log field.
func (k DedupKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.Callsign, k.Band, k.Mode, k.Bucket)
}

// SameIdentity reports whether two records agree on callsign, band, and mode
// regardless of time bucket. The reconciliation pass uses it when grouping
// candidates inside its sliding window.
func SameIdentity(a, b *ContactRecord) bool {
	return strings.EqualFold(a.Callsign, b.Callsign) &&
		strings.EqualFold(a.Band, b.Band) &&
		strings.EqualFold(a.Mode, b.Mode)
}

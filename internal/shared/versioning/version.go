// Package versioning implements the temporal version-chain primitives shared by
// the catalog and ledger stores. Every mutation of a versioned entity writes a
// new immutable row; the row whose valid_to equals the far-future sentinel is
// the entity's current version.
package versioning

import "time"

// FarFuture is the fixed sentinel marking a version as current. Keeping it a
// concrete timestamp (rather than a nullable end date) makes "current" a plain
// equality filter in every backend.
var FarFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Meta carries the temporal bookkeeping columns shared by every versioned row.
type Meta struct {
	EntityID   int64
	ValidFrom  time.Time
	ValidTo    time.Time
	SystemDate time.Time
	IsDeleted  bool
}

// IsCurrent reports whether this version occupies the current slot.
func (m Meta) IsCurrent() bool {
	return m.ValidTo.Equal(FarFuture)
}

// Covers reports whether the half-open interval [ValidFrom, ValidTo) contains at.
func (m Meta) Covers(at time.Time) bool {
	return !at.Before(m.ValidFrom) && at.Before(m.ValidTo)
}

// Version pairs entity data with its temporal metadata.
type Version[T any] struct {
	Entity T
	Meta   Meta
}

// Timestamp normalizes a transition timestamp: UTC, truncated to microseconds
// so it round-trips through backends with microsecond resolution.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NextAfter returns now unless it would not extend the chain strictly forward,
// in which case it advances one microsecond past the current version's start.
// Close-and-open pairs use a single timestamp from this function so that
// old.valid_to always equals new.valid_from.
func NextAfter(now, currentValidFrom time.Time) time.Time {
	now = Timestamp(now)
	if now.After(currentValidFrom) {
		return now
	}
	return currentValidFrom.Add(time.Microsecond)
}

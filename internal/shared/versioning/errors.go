package versioning

import "errors"

var (
	// ErrNotFound signals the entity, version, or key does not exist in the
	// requested state (including "current version is a deletion marker" when
	// the caller asked for live data only).
	ErrNotFound = errors.New("entity not found")

	// ErrConflict signals a uniqueness violation or an invalid state
	// transition: deleting an already-deleted entity, resurrecting a live
	// one, or losing a concurrent close-and-open race.
	ErrConflict = errors.New("version conflict")

	// ErrStorage wraps backend failures. It is never swallowed; a half
	// committed version chain is a correctness bug, not a degraded state.
	ErrStorage = errors.New("storage failure")
)

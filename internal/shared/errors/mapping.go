package errors

import (
	"errors"

	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// MapVersioningError translates the version store's error taxonomy into
// problem responses: missing or deleted entities map to 404, lost races
// and uniqueness violations to 409, storage failures to 500.
func MapVersioningError(err error) (ProblemDetail, bool) {
	switch {
	case errors.Is(err, versioning.ErrNotFound):
		return ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, versioning.ErrConflict):
		return ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, versioning.ErrStorage):
		return ErrInternal.WithDetail(err.Error()), true
	default:
		return ProblemDetail{}, false
	}
}

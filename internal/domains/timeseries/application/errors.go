package application

import (
	"errors"
	"fmt"

	"github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
)

// ErrInvalidInput marks use-case failures caused by the caller's payload.
var ErrInvalidInput = errors.New("invalid observation input")

// ErrInvalidRange marks range queries where start is after end.
var ErrInvalidRange = errors.New("start date must not be after end date")

func mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrMissingAsset),
		errors.Is(err, domain.ErrMissingSource),
		errors.Is(err, domain.ErrMissingDate),
		errors.Is(err, domain.ErrNoValues):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return err
	}
}

package application

import (
	"errors"
	"fmt"

	"github.com/atlasmarkets/refdata/internal/domains/datasources/domain"
)

// ErrInvalidInput marks use-case failures caused by the caller's payload.
var ErrInvalidInput = errors.New("invalid data source input")

func mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyName), errors.Is(err, domain.ErrEmptyProvider):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return err
	}
}

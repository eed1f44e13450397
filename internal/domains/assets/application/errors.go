package application

import (
	"errors"
	"fmt"

	"github.com/atlasmarkets/refdata/internal/domains/assets/domain"
)

// ErrInvalidInput signals the request violated a domain invariant.
var ErrInvalidInput = errors.New("invalid asset input")

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrEmptyName) ||
		errors.Is(err, domain.ErrMissingSymbol) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

package ports

import (
	"context"
	"errors"
	"time"
)

// Row is one observation as returned by an external provider, keyed by
// business date with the same typed value maps the ledger stores.
type Row struct {
	BusinessDate time.Time
	ValuesDouble map[string]float64
	ValuesInt    map[string]int64
	ValuesText   map[string]string
}

// FetchRequest identifies the provider-side slice to retrieve.
type FetchRequest struct {
	Symbol    string
	Table     string
	StartDate time.Time
	EndDate   time.Time
}

// Provider retrieves time-series rows from an external market data
// feed. Implementations classify failures as transient or permanent via
// the error wrappers below; unclassified errors are treated as
// permanent.
type Provider interface {
	FetchRange(ctx context.Context, req FetchRequest) ([]Row, error)
}

// TransientError marks provider failures worth retrying: rate limits,
// timeouts, upstream 5xx.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks provider failures that retrying cannot fix:
// unknown datasets, bad credentials, malformed payloads.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is marked non-retryable.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

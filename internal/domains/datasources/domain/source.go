// Package domain models market data sources: the named provider feeds
// whose observations the time-series ledger stores.
package domain

import "errors"

var (
	ErrEmptyName     = errors.New("data source name must not be empty")
	ErrEmptyProvider = errors.New("data source provider must not be empty")
)

// DataSource identifies one dataset offered by an external provider,
// such as an end-of-day price table. Provider matching is exact and
// case-sensitive per stored convention.
type DataSource struct {
	ID          int64
	Name        string
	Provider    string
	Description string
	Attributes  map[string]string
}

// NewDataSource validates and constructs a data source.
func NewDataSource(name, provider, description string, attributes map[string]string) (*DataSource, error) {
	src := &DataSource{
		Name:        name,
		Provider:    provider,
		Description: description,
		Attributes:  cloneAttributes(attributes),
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return src, nil
}

// Validate checks the invariants every stored version must satisfy.
func (s *DataSource) Validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}
	if s.Provider == "" {
		return ErrEmptyProvider
	}
	return nil
}

// MergeAttributes overlays the supplied keys on the existing bag.
func (s *DataSource) MergeAttributes(attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}
	if s.Attributes == nil {
		s.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		s.Attributes[k] = v
	}
}

// Clone deep-copies the data source so version chains never alias.
func (s *DataSource) Clone() *DataSource {
	if s == nil {
		return nil
	}
	copied := *s
	copied.Attributes = cloneAttributes(s.Attributes)
	return &copied
}

func cloneAttributes(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

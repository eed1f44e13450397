package domain

import (
	"errors"
	"strings"
)

// Conventional attribute keys. The bag is open; these are the keys the rest of
// the system relies on.
const (
	AttrSymbol   = "symbol"
	AttrType     = "type"
	AttrExchange = "exchange"
)

// Asset represents a financial instrument tracked by the reference catalog.
// Temporal metadata lives outside the aggregate; an Asset is only the
// entity-specific payload of a version.
type Asset struct {
	ID          int64
	Name        string
	Description string
	Attributes  map[string]string
}

var (
	ErrEmptyName     = errors.New("asset name is required")
	ErrMissingSymbol = errors.New("asset symbol attribute is required")
)

// NewAsset validates the invariants and builds a new Asset aggregate.
func NewAsset(id int64, name, description string, attributes map[string]string) (*Asset, error) {
	a := &Asset{ID: id, Description: description}
	if err := a.Rename(name); err != nil {
		return nil, err
	}
	a.MergeAttributes(attributes)
	if a.Symbol() == "" {
		return nil, ErrMissingSymbol
	}
	return a, nil
}

// Rename mutates the asset name ensuring the invariant.
func (a *Asset) Rename(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	a.Name = name
	return nil
}

// Describe replaces the free-form description.
func (a *Asset) Describe(description string) {
	a.Description = description
}

// MergeAttributes overlays the supplied keys onto the attribute bag.
func (a *Asset) MergeAttributes(attributes map[string]string) {
	if len(attributes) == 0 {
		return
	}
	if a.Attributes == nil {
		a.Attributes = make(map[string]string, len(attributes))
	}
	for k, v := range attributes {
		a.Attributes[k] = v
	}
}

// Symbol returns the ticker symbol attribute, trimmed.
func (a *Asset) Symbol() string {
	return strings.TrimSpace(a.Attributes[AttrSymbol])
}

// Clone returns a deep copy so stored versions stay immutable.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	if len(a.Attributes) > 0 {
		clone.Attributes = make(map[string]string, len(a.Attributes))
		for k, v := range a.Attributes {
			clone.Attributes[k] = v
		}
	}
	return &clone
}

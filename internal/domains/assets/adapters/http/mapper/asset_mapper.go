package mapper

import (
	"time"

	assettypes "github.com/atlasmarkets/refdata/internal/domains/assets/application/types"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// MutationAsset captures inbound payloads for create/update/resurrect
// flows while preserving field presence.
type MutationAsset struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Asset is the HTTP representation of one asset version.
type Asset struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	ValidFrom   time.Time         `json:"validFrom"`
	ValidTo     time.Time         `json:"validTo"`
	SystemDate  time.Time         `json:"systemDate"`
	IsDeleted   bool              `json:"isDeleted"`
}

// ToMutationInput maps an inbound payload into the use-case input.
func ToMutationInput(input MutationAsset) assettypes.AssetMutationInput {
	return assettypes.AssetMutationInput{
		Name:        input.Name,
		Description: input.Description,
		Attributes:  CloneAttributes(input.Attributes),
	}
}

// FromVersion maps an asset version into its transport shape.
func FromVersion(v *assettypes.AssetVersion) Asset {
	if v == nil || v.Entity == nil {
		return Asset{}
	}
	return Asset{
		ID:          v.Meta.EntityID,
		Name:        v.Entity.Name,
		Description: v.Entity.Description,
		Attributes:  CloneAttributes(v.Entity.Attributes),
		ValidFrom:   v.Meta.ValidFrom,
		ValidTo:     v.Meta.ValidTo,
		SystemDate:  v.Meta.SystemDate,
		IsDeleted:   v.Meta.IsDeleted,
	}
}

// FromVersions maps a version slice into transport shapes.
func FromVersions(versions []*assettypes.AssetVersion) []Asset {
	out := make([]Asset, 0, len(versions))
	for _, v := range versions {
		out = append(out, FromVersion(v))
	}
	return out
}

// IsCurrent reports whether the transport version holds the current slot.
func (a Asset) IsCurrent() bool {
	return a.ValidTo.Equal(versioning.FarFuture)
}

// CloneAttributes copies an attribute map so transport and domain never alias.
func CloneAttributes(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

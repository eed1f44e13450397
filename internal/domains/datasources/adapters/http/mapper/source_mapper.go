package mapper

import (
	"time"

	sourcetypes "github.com/atlasmarkets/refdata/internal/domains/datasources/application/types"
)

// MutationDataSource captures inbound payloads for create/update/resurrect
// flows while preserving field presence.
type MutationDataSource struct {
	Name        *string           `json:"name,omitempty"`
	Provider    *string           `json:"provider,omitempty"`
	Description *string           `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// DataSource is the HTTP representation of one data source version.
type DataSource struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Provider    string            `json:"provider"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	ValidFrom   time.Time         `json:"validFrom"`
	ValidTo     time.Time         `json:"validTo"`
	SystemDate  time.Time         `json:"systemDate"`
	IsDeleted   bool              `json:"isDeleted"`
}

// ToMutationInput maps an inbound payload into the use-case input.
func ToMutationInput(input MutationDataSource) sourcetypes.DataSourceMutationInput {
	return sourcetypes.DataSourceMutationInput{
		Name:        input.Name,
		Provider:    input.Provider,
		Description: input.Description,
		Attributes:  cloneAttributes(input.Attributes),
	}
}

// FromVersion maps a data source version into its transport shape.
func FromVersion(v *sourcetypes.DataSourceVersion) DataSource {
	if v == nil || v.Entity == nil {
		return DataSource{}
	}
	return DataSource{
		ID:          v.Meta.EntityID,
		Name:        v.Entity.Name,
		Provider:    v.Entity.Provider,
		Description: v.Entity.Description,
		Attributes:  cloneAttributes(v.Entity.Attributes),
		ValidFrom:   v.Meta.ValidFrom,
		ValidTo:     v.Meta.ValidTo,
		SystemDate:  v.Meta.SystemDate,
		IsDeleted:   v.Meta.IsDeleted,
	}
}

// FromVersions maps a version slice into transport shapes.
func FromVersions(versions []*sourcetypes.DataSourceVersion) []DataSource {
	out := make([]DataSource, 0, len(versions))
	for _, v := range versions {
		out = append(out, FromVersion(v))
	}
	return out
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

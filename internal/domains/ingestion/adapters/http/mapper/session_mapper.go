package mapper

import (
	"time"

	oapitypes "github.com/oapi-codegen/runtime/types"

	types "github.com/atlasmarkets/refdata/internal/domains/ingestion/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/domain"
)

// StartSession captures an inbound ingestion request. Dates travel as
// plain calendar dates on the wire.
type StartSession struct {
	AssetID      int64          `json:"assetId"`
	DataSourceID int64          `json:"dataSourceId"`
	StartDate    oapitypes.Date `json:"startDate"`
	EndDate      oapitypes.Date `json:"endDate"`
	Mode         string         `json:"mode"`
}

// Session is the HTTP representation of an ingestion session.
type Session struct {
	ID           string         `json:"id"`
	AssetID      int64          `json:"assetId"`
	DataSourceID int64          `json:"dataSourceId"`
	StartDate    oapitypes.Date `json:"startDate"`
	EndDate      oapitypes.Date `json:"endDate"`
	Mode         string         `json:"mode"`
	Stage        string         `json:"stage"`
	Reason       string         `json:"reason,omitempty"`
	RowsWritten  int            `json:"rowsWritten"`
	Progress     []string       `json:"progress,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// ToStartInput maps an inbound payload into the use-case input.
func ToStartInput(input StartSession) types.StartInput {
	return types.StartInput{
		AssetID:      input.AssetID,
		DataSourceID: input.DataSourceID,
		StartDate:    input.StartDate.Time,
		EndDate:      input.EndDate.Time,
		Mode:         domain.Mode(input.Mode),
	}
}

// FromSession maps a session into its transport shape.
func FromSession(s *domain.Session) Session {
	if s == nil {
		return Session{}
	}
	return Session{
		ID:           s.ID,
		AssetID:      s.AssetID,
		DataSourceID: s.DataSourceID,
		StartDate:    oapitypes.Date{Time: s.StartDate},
		EndDate:      oapitypes.Date{Time: s.EndDate},
		Mode:         string(s.Mode),
		Stage:        string(s.Stage),
		Reason:       s.Reason,
		RowsWritten:  s.RowsWritten,
		Progress:     append([]string(nil), s.Progress...),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// FromSessions maps a session slice into transport shapes.
func FromSessions(sessions []*domain.Session) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, FromSession(s))
	}
	return out
}

// Package domain models ingestion sessions: the tracked lifecycle of
// pulling one (asset, source, date range) slice of provider data into
// the time-series ledger.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Stage is the session lifecycle position.
type Stage string

const (
	StageRequested Stage = "requested"
	StageFetching  Stage = "fetching"
	StageWriting   Stage = "writing"
	StageComplete  Stage = "complete"
	StageFailed    Stage = "failed"
)

// Mode selects the ledger write semantics for fetched rows.
type Mode string

const (
	// ModeAppend writes only dates with no current row; diverging
	// duplicates fail the session.
	ModeAppend Mode = "append"
	// ModeRefresh supersedes current rows, used for provider corrections.
	ModeRefresh Mode = "refresh"
)

var (
	ErrInvalidRange    = errors.New("start date must not be after end date")
	ErrInvalidMode     = errors.New("mode must be append or refresh")
	ErrMissingEntities = errors.New("session requires an asset id and a data source id")
)

// legal stage transitions; retries re-enter fetching from itself.
var transitions = map[Stage][]Stage{
	StageRequested: {StageFetching, StageFailed},
	StageFetching:  {StageFetching, StageWriting, StageFailed},
	StageWriting:   {StageComplete, StageFailed},
}

// Session tracks one ingestion run from request to terminal stage. The
// progress log records stage changes and coarse row counts for callers
// polling status.
type Session struct {
	ID           string
	AssetID      int64
	DataSourceID int64
	StartDate    time.Time
	EndDate      time.Time
	Mode         Mode
	Stage        Stage
	Reason       string
	RowsWritten  int
	Progress     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession validates and constructs a session in the requested stage.
func NewSession(id string, assetID, sourceID int64, start, end time.Time, mode Mode, now time.Time) (*Session, error) {
	if assetID == 0 || sourceID == 0 {
		return nil, ErrMissingEntities
	}
	if mode != ModeAppend && mode != ModeRefresh {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	s := &Session{
		ID:           id,
		AssetID:      assetID,
		DataSourceID: sourceID,
		StartDate:    start,
		EndDate:      end,
		Mode:         mode,
		Stage:        StageRequested,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.Record(now, "session requested")
	return s, nil
}

// TransitionTo moves the session to the next stage if the lifecycle
// allows it.
func (s *Session) TransitionTo(stage Stage, now time.Time) error {
	for _, allowed := range transitions[s.Stage] {
		if allowed == stage {
			s.Stage = stage
			s.UpdatedAt = now
			s.Record(now, fmt.Sprintf("stage %s", stage))
			return nil
		}
	}
	return fmt.Errorf("illegal stage transition %s -> %s", s.Stage, stage)
}

// Fail moves the session to the failed terminal stage with a
// human-readable reason. Failing is legal from any non-terminal stage.
func (s *Session) Fail(reason string, now time.Time) {
	if s.IsTerminal() {
		return
	}
	s.Stage = StageFailed
	s.Reason = reason
	s.UpdatedAt = now
	s.Record(now, fmt.Sprintf("failed: %s", reason))
}

// Record appends a timestamped line to the progress log.
func (s *Session) Record(now time.Time, message string) {
	s.Progress = append(s.Progress, fmt.Sprintf("%s %s", now.UTC().Format(time.RFC3339), message))
}

// IsTerminal reports whether the session has reached a final stage.
func (s *Session) IsTerminal() bool {
	return s.Stage == StageComplete || s.Stage == StageFailed
}

// Clone deep-copies the session so stored state never aliases.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	copied.Progress = append([]string(nil), s.Progress...)
	return &copied
}

// Package application implements the ingestion coordinator: the state
// machine that pulls provider data into the time-series ledger.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	assetports "github.com/atlasmarkets/refdata/internal/domains/assets/ports"
	sourceports "github.com/atlasmarkets/refdata/internal/domains/datasources/ports"
	types "github.com/atlasmarkets/refdata/internal/domains/ingestion/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/domain"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
	tstypes "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
	tsports "github.com/atlasmarkets/refdata/internal/domains/timeseries/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// ErrInvalidInput marks use-case failures caused by the caller's payload.
var ErrInvalidInput = errors.New("invalid ingestion input")

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 2 * time.Second
	defaultFetchTimeout   = 2 * time.Minute
	// progressEvery is the row granularity of progress notifications.
	progressEvery = 100
)

// Coordinator drives ingestion sessions through requested, fetching,
// writing, and a terminal stage. Fetched rows are committed only after
// the full fetch succeeds so a failed pull never leaves partial
// coverage behind. Retries apply to transient provider failures only,
// with a doubled backoff between attempts.
type Coordinator struct {
	sessions     ports.SessionStore
	provider     ports.Provider
	ledger       tsports.Service
	assets       assetports.Repository
	sources      sourceports.Repository
	notifier     ports.ProgressNotifier
	orchestrator ports.Orchestrator

	now            func() time.Time
	newID          func() string
	maxAttempts    int
	initialBackoff time.Duration
	fetchTimeout   time.Duration
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithOrchestrator routes Run through a durable execution engine.
func WithOrchestrator(o ports.Orchestrator) CoordinatorOption {
	return func(c *Coordinator) { c.orchestrator = o }
}

// WithNotifier wires the progress event sink.
func WithNotifier(n ports.ProgressNotifier) CoordinatorOption {
	return func(c *Coordinator) { c.notifier = n }
}

// WithClock overrides the time source for deterministic testing.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithRetryPolicy tunes the fetch attempt budget and initial backoff.
func WithRetryPolicy(maxAttempts int, initialBackoff time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if initialBackoff > 0 {
			c.initialBackoff = initialBackoff
		}
	}
}

// WithFetchTimeout bounds each individual provider attempt.
func WithFetchTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// NewCoordinator wires the ingestion coordinator with its dependencies.
// ledger must accept writes without re-checking catalog liveness:
// existence is validated once in Prepare, and a soft delete landing
// after that never aborts the session's writes.
func NewCoordinator(
	sessions ports.SessionStore,
	provider ports.Provider,
	ledger tsports.Service,
	assets assetports.Repository,
	sources sourceports.Repository,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		sessions:       sessions,
		provider:       provider,
		ledger:         ledger,
		assets:         assets,
		sources:        sources,
		now:            time.Now,
		newID:          uuid.NewString,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		fetchTimeout:   defaultFetchTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Start validates the request, persists a session in the requested
// stage, and hands it to the orchestrator. Without an orchestrator the
// pipeline runs inline before Start returns.
func (c *Coordinator) Start(ctx context.Context, input types.StartInput) (*domain.Session, error) {
	session, err := c.Prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	if c.orchestrator != nil {
		if err := c.orchestrator.Run(ctx, session.ID); err != nil {
			return nil, err
		}
	} else if err := c.Run(ctx, session.ID); err != nil {
		return nil, err
	}
	return c.Get(ctx, session.ID)
}

// Prepare validates catalog references and the date range, then persists
// a session in the requested stage without executing it.
func (c *Coordinator) Prepare(ctx context.Context, input types.StartInput) (*domain.Session, error) {
	if _, err := c.assets.GetCurrent(ctx, input.AssetID, false); err != nil {
		return nil, fmt.Errorf("asset %d: %w", input.AssetID, err)
	}
	if _, err := c.sources.GetCurrent(ctx, input.DataSourceID, false); err != nil {
		return nil, fmt.Errorf("data source %d: %w", input.DataSourceID, err)
	}
	session, err := domain.NewSession(
		c.newID(),
		input.AssetID,
		input.DataSourceID,
		input.StartDate,
		input.EndDate,
		input.Mode,
		c.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := c.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	c.notify(ctx, session, "session requested")
	return session, nil
}

// Run executes the fetch and write pipeline for a prepared session.
// Pipeline failures are recorded on the session, not returned: only
// infrastructure errors (store access, missing session) surface.
func (c *Coordinator) Run(ctx context.Context, sessionID string) error {
	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.IsTerminal() {
		return nil
	}

	rows, err := c.fetch(ctx, session)
	if err != nil {
		return c.fail(ctx, session, err)
	}
	if err := c.write(ctx, session, rows); err != nil {
		return c.fail(ctx, session, err)
	}

	if err := session.TransitionTo(domain.StageComplete, c.now()); err != nil {
		return c.fail(ctx, session, err)
	}
	session.Record(c.now(), fmt.Sprintf("wrote %d rows", session.RowsWritten))
	if err := c.sessions.Save(ctx, session); err != nil {
		return err
	}
	c.notify(ctx, session, fmt.Sprintf("session complete, %d rows", session.RowsWritten))
	return nil
}

// Get loads a session by id.
func (c *Coordinator) Get(ctx context.Context, id string) (*domain.Session, error) {
	return c.sessions.Get(ctx, id)
}

// List returns all known sessions.
func (c *Coordinator) List(ctx context.Context) ([]*domain.Session, error) {
	return c.sessions.List(ctx)
}

// fetch retrieves the full date range from the provider, retrying
// transient failures with a doubled backoff between attempts. Rows are
// returned only when the whole fetch succeeded.
func (c *Coordinator) fetch(ctx context.Context, session *domain.Session) ([]ports.Row, error) {
	if err := c.advance(ctx, session, domain.StageFetching); err != nil {
		return nil, err
	}
	req, err := c.buildRequest(ctx, session)
	if err != nil {
		return nil, err
	}

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		rows, err := c.fetchOnce(ctx, req)
		if err == nil {
			session.Record(c.now(), fmt.Sprintf("fetched %d rows", len(rows)))
			return rows, nil
		}
		lastErr = err
		if !ports.IsTransient(err) {
			return nil, fmt.Errorf("provider fetch failed: %w", err)
		}
		if attempt == c.maxAttempts {
			break
		}
		session.Record(c.now(), fmt.Sprintf("fetch attempt %d failed, retrying: %v", attempt, err))
		_ = c.sessions.Save(ctx, session)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("provider fetch failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Coordinator) fetchOnce(ctx context.Context, req ports.FetchRequest) ([]ports.Row, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	return c.provider.FetchRange(fetchCtx, req)
}

// write commits fetched rows to the ledger per the session mode,
// emitting a progress event per row batch.
func (c *Coordinator) write(ctx context.Context, session *domain.Session, rows []ports.Row) error {
	if err := c.advance(ctx, session, domain.StageWriting); err != nil {
		return err
	}
	for _, row := range rows {
		input := tstypes.WriteInput{
			AssetID:      session.AssetID,
			DataSourceID: session.DataSourceID,
			BusinessDate: row.BusinessDate,
			ValuesDouble: row.ValuesDouble,
			ValuesInt:    row.ValuesInt,
			ValuesText:   row.ValuesText,
		}
		var err error
		if session.Mode == domain.ModeRefresh {
			err = c.ledger.Refresh(ctx, input)
		} else {
			err = c.ledger.Append(ctx, input)
		}
		if err != nil {
			if errors.Is(err, versioning.ErrConflict) {
				return fmt.Errorf("conflicting row for %s: %w", row.BusinessDate.Format("2006-01-02"), err)
			}
			return fmt.Errorf("write row for %s: %w", row.BusinessDate.Format("2006-01-02"), err)
		}
		session.RowsWritten++
		if session.RowsWritten%progressEvery == 0 {
			session.Record(c.now(), fmt.Sprintf("wrote %d rows", session.RowsWritten))
			_ = c.sessions.Save(ctx, session)
			c.notify(ctx, session, fmt.Sprintf("wrote %d rows", session.RowsWritten))
		}
	}
	return nil
}

// buildRequest resolves the provider-side identifiers from the catalog:
// the asset's symbol and the source's table attribute (falling back to
// the source name). Deletion markers still resolve here: a session that
// passed Prepare keeps running even when its entities were soft-deleted
// in the meantime.
func (c *Coordinator) buildRequest(ctx context.Context, session *domain.Session) (ports.FetchRequest, error) {
	asset, err := c.assets.GetCurrent(ctx, session.AssetID, true)
	if err != nil {
		return ports.FetchRequest{}, fmt.Errorf("asset %d: %w", session.AssetID, err)
	}
	source, err := c.sources.GetCurrent(ctx, session.DataSourceID, true)
	if err != nil {
		return ports.FetchRequest{}, fmt.Errorf("data source %d: %w", session.DataSourceID, err)
	}
	table := source.Entity.Attributes["table"]
	if table == "" {
		table = source.Entity.Name
	}
	return ports.FetchRequest{
		Symbol:    asset.Entity.Symbol(),
		Table:     table,
		StartDate: session.StartDate,
		EndDate:   session.EndDate,
	}, nil
}

func (c *Coordinator) advance(ctx context.Context, session *domain.Session, stage domain.Stage) error {
	if err := session.TransitionTo(stage, c.now()); err != nil {
		return err
	}
	if err := c.sessions.Save(ctx, session); err != nil {
		return err
	}
	c.notify(ctx, session, fmt.Sprintf("stage %s", stage))
	return nil
}

// fail records the pipeline error on the session. The session reaching
// the failed stage is a handled outcome, not a Run error.
func (c *Coordinator) fail(ctx context.Context, session *domain.Session, cause error) error {
	session.Fail(cause.Error(), c.now())
	if err := c.sessions.Save(ctx, session); err != nil {
		return err
	}
	c.notify(ctx, session, fmt.Sprintf("session failed: %v", cause))
	return nil
}

func (c *Coordinator) notify(ctx context.Context, session *domain.Session, message string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, session.Clone(), message)
}

var _ ports.Service = (*Coordinator)(nil)

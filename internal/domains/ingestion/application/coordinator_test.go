package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	assetmemory "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/memory"
	assetdomain "github.com/atlasmarkets/refdata/internal/domains/assets/domain"
	sourcememory "github.com/atlasmarkets/refdata/internal/domains/datasources/adapters/memory"
	sourcedomain "github.com/atlasmarkets/refdata/internal/domains/datasources/domain"
	ingestmemory "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/memory"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/application"
	types "github.com/atlasmarkets/refdata/internal/domains/ingestion/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/domain"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/catalog"
	tsmemory "github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/memory"
	tsapplication "github.com/atlasmarkets/refdata/internal/domains/timeseries/application"
	tstypes "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
	tsdomain "github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// scriptedProvider returns one canned response per fetch attempt.
type scriptedProvider struct {
	mu       sync.Mutex
	script   []func(req ports.FetchRequest) ([]ports.Row, error)
	requests []ports.FetchRequest
}

func (p *scriptedProvider) FetchRange(_ context.Context, req ports.FetchRequest) ([]ports.Row, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.script) == 0 {
		return nil, ports.Permanent(errors.New("scripted provider exhausted"))
	}
	step := p.script[0]
	p.script = p.script[1:]
	return step(req)
}

func succeed(rows []ports.Row) func(ports.FetchRequest) ([]ports.Row, error) {
	return func(ports.FetchRequest) ([]ports.Row, error) { return rows, nil }
}

func failTransient(msg string) func(ports.FetchRequest) ([]ports.Row, error) {
	return func(ports.FetchRequest) ([]ports.Row, error) { return nil, ports.Transient(errors.New(msg)) }
}

func failPermanent(msg string) func(ports.FetchRequest) ([]ports.Row, error) {
	return func(ports.FetchRequest) ([]ports.Row, error) { return nil, ports.Permanent(errors.New(msg)) }
}

type recordedEvent struct {
	stage   domain.Stage
	message string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, session *domain.Session, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{stage: session.Stage, message: message})
}

type fixture struct {
	coordinator *application.Coordinator
	provider    *scriptedProvider
	notifier    *recordingNotifier
	ledger      *tsapplication.Service
	assets      *assetmemory.Repository
	sources     *sourcememory.Repository
	assetID     int64
	sourceID    int64
}

func newFixture(t *testing.T, script ...func(ports.FetchRequest) ([]ports.Row, error)) *fixture {
	t.Helper()
	ctx := context.Background()

	assets := assetmemory.NewRepository()
	asset, err := assetdomain.NewAsset(0, "Apple Inc.", "", map[string]string{"symbol": "AAPL"})
	require.NoError(t, err)
	assetVersion, err := assets.Create(ctx, asset)
	require.NoError(t, err)

	sources := sourcememory.NewRepository()
	source, err := sourcedomain.NewDataSource("PRICES", "datalink", "", map[string]string{"table": "WIKI/PRICES"})
	require.NoError(t, err)
	sourceVersion, err := sources.Create(ctx, source)
	require.NoError(t, err)

	provider := &scriptedProvider{script: script}
	notifier := &recordingNotifier{}
	ledgerStore := tsmemory.NewLedger()
	ledger := tsapplication.NewService(ledgerStore, catalog.NewGuard(assets, sources))

	// Mirrors the production wiring: the guarded service serves direct
	// observation writes, the coordinator writes without the guard.
	coordinator := application.NewCoordinator(
		ingestmemory.NewSessionStore(),
		provider,
		tsapplication.NewService(ledgerStore, nil),
		assets,
		sources,
		application.WithNotifier(notifier),
		application.WithRetryPolicy(3, time.Millisecond),
		application.WithFetchTimeout(time.Second),
	)
	return &fixture{
		coordinator: coordinator,
		provider:    provider,
		notifier:    notifier,
		ledger:      ledger,
		assets:      assets,
		sources:     sources,
		assetID:     assetVersion.Meta.EntityID,
		sourceID:    sourceVersion.Meta.EntityID,
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func priceRows(days ...int) []ports.Row {
	rows := make([]ports.Row, 0, len(days))
	for _, d := range days {
		rows = append(rows, ports.Row{
			BusinessDate: day(d),
			ValuesDouble: map[string]float64{tsdomain.FieldClose: 100 + float64(d)},
		})
	}
	return rows
}

func (f *fixture) startInput(mode domain.Mode) types.StartInput {
	return types.StartInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    day(1),
		EndDate:      day(31),
		Mode:         mode,
	}
}

func TestStartHappyPath(t *testing.T) {
	f := newFixture(t, succeed(priceRows(2, 3, 4)))
	ctx := context.Background()

	session, err := f.coordinator.Start(ctx, f.startInput(domain.ModeAppend))
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, session.Stage)
	assert.Equal(t, 3, session.RowsWritten)
	assert.NotEmpty(t, session.ID)

	// Provider was asked for the resolved symbol and table.
	require.Len(t, f.provider.requests, 1)
	assert.Equal(t, "AAPL", f.provider.requests[0].Symbol)
	assert.Equal(t, "WIKI/PRICES", f.provider.requests[0].Table)

	// Rows landed in the ledger.
	rows, err := f.ledger.QueryRange(ctx, tstypes.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    day(1),
		EndDate:      day(31),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	// Stage changes were notified in order.
	var stages []domain.Stage
	for _, event := range f.notifier.events {
		stages = append(stages, event.stage)
	}
	assert.Equal(t, []domain.Stage{
		domain.StageRequested,
		domain.StageFetching,
		domain.StageWriting,
		domain.StageComplete,
	}, stages)
}

func TestStartValidatesCatalogReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := f.startInput(domain.ModeAppend)
	input.AssetID = 9999
	_, err := f.coordinator.Start(ctx, input)
	assert.ErrorIs(t, err, versioning.ErrNotFound)

	input = f.startInput(domain.ModeAppend)
	input.DataSourceID = 9999
	_, err = f.coordinator.Start(ctx, input)
	assert.ErrorIs(t, err, versioning.ErrNotFound)

	// No session was persisted for rejected requests.
	sessions, err := f.coordinator.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDeletionMidFetchDoesNotAbortWrites(t *testing.T) {
	var f *fixture
	f = newFixture(t, func(ports.FetchRequest) ([]ports.Row, error) {
		// The asset disappears from the catalog while the provider call
		// is in flight.
		require.NoError(t, f.assets.SoftDelete(context.Background(), f.assetID))
		return priceRows(2, 3, 4), nil
	})
	ctx := context.Background()

	session, err := f.coordinator.Start(ctx, f.startInput(domain.ModeAppend))
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, session.Stage)
	assert.Equal(t, 3, session.RowsWritten)

	rows, err := f.ledger.QueryRange(ctx, tstypes.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    day(1),
		EndDate:      day(31),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRunAfterDeletionStillCompletes(t *testing.T) {
	f := newFixture(t, succeed(priceRows(2)))
	ctx := context.Background()

	session, err := f.coordinator.Prepare(ctx, f.startInput(domain.ModeAppend))
	require.NoError(t, err)

	// Both catalog entries are soft-deleted before the prepared session
	// executes; the run still resolves them and completes.
	require.NoError(t, f.assets.SoftDelete(ctx, f.assetID))
	require.NoError(t, f.sources.SoftDelete(ctx, f.sourceID))
	require.NoError(t, f.coordinator.Run(ctx, session.ID))

	final, err := f.coordinator.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, final.Stage)
	assert.Equal(t, 1, final.RowsWritten)

	require.Len(t, f.provider.requests, 1)
	assert.Equal(t, "AAPL", f.provider.requests[0].Symbol)
}

func TestStartValidatesRangeAndMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := f.startInput(domain.ModeAppend)
	input.StartDate, input.EndDate = input.EndDate, input.StartDate
	_, err := f.coordinator.Start(ctx, input)
	assert.ErrorIs(t, err, application.ErrInvalidInput)

	input = f.startInput(domain.Mode("upsert"))
	_, err = f.coordinator.Start(ctx, input)
	assert.ErrorIs(t, err, application.ErrInvalidInput)
}

func TestTransientFailuresRetryUntilSuccess(t *testing.T) {
	f := newFixture(t,
		failTransient("rate limited"),
		failTransient("gateway timeout"),
		succeed(priceRows(2)),
	)

	session, err := f.coordinator.Start(context.Background(), f.startInput(domain.ModeAppend))
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, session.Stage)
	assert.Len(t, f.provider.requests, 3)
}

func TestTransientFailuresExhaustAttempts(t *testing.T) {
	f := newFixture(t,
		failTransient("rate limited"),
		failTransient("rate limited"),
		failTransient("rate limited"),
	)

	session, err := f.coordinator.Start(context.Background(), f.startInput(domain.ModeAppend))
	require.NoError(t, err)
	assert.Equal(t, domain.StageFailed, session.Stage)
	assert.Contains(t, session.Reason, "after 3 attempts")
	assert.Len(t, f.provider.requests, 3)
}

func TestPermanentFailureDoesNotRetry(t *testing.T) {
	f := newFixture(t, failPermanent("unknown table"))

	session, err := f.coordinator.Start(context.Background(), f.startInput(domain.ModeAppend))
	require.NoError(t, err)
	assert.Equal(t, domain.StageFailed, session.Stage)
	assert.Contains(t, session.Reason, "unknown table")
	assert.Len(t, f.provider.requests, 1)
}

func TestFailedFetchCommitsNothing(t *testing.T) {
	f := newFixture(t, failPermanent("malformed payload"))
	ctx := context.Background()

	_, err := f.coordinator.Start(ctx, f.startInput(domain.ModeAppend))
	require.NoError(t, err)

	rows, err := f.ledger.QueryRange(ctx, tstypes.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    day(1),
		EndDate:      day(31),
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAppendModeFailsOnDivergingDuplicate(t *testing.T) {
	f := newFixture(t, succeed(priceRows(2)))
	ctx := context.Background()

	// Seed a conflicting row for the same date.
	require.NoError(t, f.ledger.Append(ctx, tstypes.WriteInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		BusinessDate: day(2),
		ValuesDouble: map[string]float64{tsdomain.FieldClose: 999},
	}))

	session, err := f.coordinator.Start(ctx, f.startInput(domain.ModeAppend))
	require.NoError(t, err)
	assert.Equal(t, domain.StageFailed, session.Stage)
	assert.Contains(t, session.Reason, "2024-01-02")
}

func TestRefreshModeSupersedesExistingRows(t *testing.T) {
	f := newFixture(t, succeed(priceRows(2)))
	ctx := context.Background()

	require.NoError(t, f.ledger.Append(ctx, tstypes.WriteInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		BusinessDate: day(2),
		ValuesDouble: map[string]float64{tsdomain.FieldClose: 999},
	}))

	session, err := f.coordinator.Start(ctx, f.startInput(domain.ModeRefresh))
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, session.Stage)

	rows, err := f.ledger.QueryRange(ctx, tstypes.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    day(2),
		EndDate:      day(2),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 102.0, rows[0].Entity.ValuesDouble[tsdomain.FieldClose])
}

func TestProgressEmittedPerBatch(t *testing.T) {
	days := make([]ports.Row, 0, 250)
	for i := 0; i < 250; i++ {
		days = append(days, ports.Row{
			BusinessDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			ValuesDouble: map[string]float64{tsdomain.FieldClose: float64(i)},
		})
	}
	f := newFixture(t, succeed(days))

	input := f.startInput(domain.ModeAppend)
	input.StartDate = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	input.EndDate = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	session, err := f.coordinator.Start(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 250, session.RowsWritten)

	var batches []string
	for _, event := range f.notifier.events {
		if event.stage == domain.StageWriting && len(event.message) > 5 && event.message[:5] == "wrote" {
			batches = append(batches, event.message)
		}
	}
	assert.Equal(t, []string{"wrote 100 rows", "wrote 200 rows"}, batches)
}

func TestPrepareThenRunSeparately(t *testing.T) {
	f := newFixture(t, succeed(priceRows(2)))
	ctx := context.Background()

	session, err := f.coordinator.Prepare(ctx, f.startInput(domain.ModeAppend))
	require.NoError(t, err)
	assert.Equal(t, domain.StageRequested, session.Stage)

	require.NoError(t, f.coordinator.Run(ctx, session.ID))

	final, err := f.coordinator.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, final.Stage)

	// Running a terminal session again is a no-op.
	require.NoError(t, f.coordinator.Run(ctx, session.ID))
	assert.Len(t, f.provider.requests, 1)
}

func TestRunUnknownSession(t *testing.T) {
	f := newFixture(t)
	err := f.coordinator.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, versioning.ErrNotFound)
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := newFixture(t, succeed(priceRows(2)), succeed(priceRows(3)))
	ctx := context.Background()

	first, err := f.coordinator.Start(ctx, f.startInput(domain.ModeAppend))
	require.NoError(t, err)
	second, err := f.coordinator.Start(ctx, f.startInput(domain.ModeRefresh))
	require.NoError(t, err)

	sessions, err := f.coordinator.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	ids := []string{sessions[0].ID, sessions[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestSessionIDsAreUnique(t *testing.T) {
	f := newFixture(t, succeed(nil), succeed(nil))
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		session, err := f.coordinator.Start(ctx, f.startInput(domain.ModeAppend))
		require.NoError(t, err, fmt.Sprintf("start %d", i))
		assert.False(t, seen[session.ID])
		seen[session.ID] = true
	}
}

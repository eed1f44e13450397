package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"gorm.io/gorm"

	"github.com/atlasmarkets/refdata/internal/clients/http/datalink"
	assetsmemory "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/memory"
	assetsobs "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/observability"
	assetspostgres "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/persistence/postgres"
	assetsapp "github.com/atlasmarkets/refdata/internal/domains/assets/application"
	assetports "github.com/atlasmarkets/refdata/internal/domains/assets/ports"
	sourcesmemory "github.com/atlasmarkets/refdata/internal/domains/datasources/adapters/memory"
	sourcespostgres "github.com/atlasmarkets/refdata/internal/domains/datasources/adapters/persistence/postgres"
	sourcesapp "github.com/atlasmarkets/refdata/internal/domains/datasources/application"
	sourceports "github.com/atlasmarkets/refdata/internal/domains/datasources/ports"
	ingestionmemory "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/memory"
	ingestionobs "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/observability"
	ingestionpostgres "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/persistence/postgres"
	ingestionworkflows "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/workflows"
	ingestionapp "github.com/atlasmarkets/refdata/internal/domains/ingestion/application"
	ingestionports "github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/catalog"
	tsmemory "github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/memory"
	tspostgres "github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/persistence/postgres"
	tsapp "github.com/atlasmarkets/refdata/internal/domains/timeseries/application"
	tsports "github.com/atlasmarkets/refdata/internal/domains/timeseries/ports"
	"github.com/atlasmarkets/refdata/internal/platform/migrations"
	platformobservability "github.com/atlasmarkets/refdata/internal/platform/observability"
	platformpostgres "github.com/atlasmarkets/refdata/internal/platform/postgres"
	"github.com/atlasmarkets/refdata/internal/server"
)

// Run boots the reference data HTTP API with observability, storage, and
// the ingestion coordinator wired.
func Run(ctx context.Context) error {
	const serviceName = "refdata-api"
	cfg := LoadConfig()
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	stores, cleanupStores := BuildStores(ctx, cfg, logger)
	defer cleanupStores()

	assetService := assetsobs.New(
		assetsapp.NewService(stores.Assets),
		assetsobs.WithLogger(logger),
		assetsobs.WithTracer(instruments.Tracer("internal.assets.application")),
		assetsobs.WithMeter(instruments.Meter("internal.assets.application")),
	)
	sourceService := sourcesapp.NewService(stores.Sources)
	ledgerService := tsapp.NewService(stores.Ledger, catalog.NewGuard(stores.Assets, stores.Sources))
	// The coordinator validates catalog references once at session start;
	// guarding its writes too would let a soft delete abort a session
	// that is already writing.
	ingestLedger := tsapp.NewService(stores.Ledger, nil)

	provider, err := datalink.NewClient(cfg.DatalinkBaseURL, cfg.DatalinkAPIKey, nil)
	if err != nil {
		return fmt.Errorf("failed to configure provider client: %w", err)
	}

	coordinatorOpts := []ingestionapp.CoordinatorOption{
		ingestionapp.WithNotifier(ingestionobs.NewLogNotifier(logger)),
	}
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, running ingestion inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		coordinatorOpts = append(coordinatorOpts,
			ingestionapp.WithOrchestrator(ingestionworkflows.NewTemporalIngestion(temporalClient)))
		logger.Info("Temporal ingestion workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}
	coordinator := ingestionapp.NewCoordinator(
		stores.Sessions,
		provider,
		ingestLedger,
		stores.Assets,
		stores.Sources,
		coordinatorOpts...,
	)

	handlers := server.ApiHandleFunctions{
		AssetAPI:      server.NewAssetAPI(assetService),
		DataSourceAPI: server.NewDataSourceAPI(sourceService),
		TimeSeriesAPI: server.NewTimeSeriesAPI(ledgerService),
		IngestionAPI:  server.NewIngestionAPI(coordinator),
		HealthAPI:     server.NewHealthAPI(stores.Ping),
	}
	router := server.NewRouter(handlers, otelgin.Middleware(serviceName))

	addr := ":" + cfg.Port
	logger.Info("reference data API listening", slog.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Error("reference data API server exited", slog.String("addr", addr), slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Stores groups the storage adapters behind their outbound ports. Ping
// reports storage reachability and is nil for the in-memory fallback.
type Stores struct {
	Assets   assetports.Repository
	Sources  sourceports.Repository
	Ledger   tsports.Ledger
	Sessions ingestionports.SessionStore
	Ping     func(ctx context.Context) error
}

// BuildStores connects to Postgres and migrates the schema, falling back
// to in-memory adapters when no database is reachable.
func BuildStores(ctx context.Context, cfg Config, logger *slog.Logger) (Stores, func()) {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not set, falling back to in-memory stores")
		return memoryStores(), func() {}
	}
	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Warn("failed to connect to postgres, falling back to memory", slog.String("error", err.Error()))
		return memoryStores(), func() {}
	}
	if err := migrations.Run(db); err != nil {
		logger.Warn("failed to migrate schema, falling back to memory", slog.String("error", err.Error()))
		return memoryStores(), closeDB(db)
	}
	logger.Info("stores configured with postgres")
	return Stores{
		Assets:   assetspostgres.NewRepository(db),
		Sources:  sourcespostgres.NewRepository(db),
		Ledger:   tspostgres.NewLedger(db),
		Sessions: ingestionpostgres.NewSessionStore(db),
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, closeDB(db)
}

func memoryStores() Stores {
	return Stores{
		Assets:   assetsmemory.NewRepository(),
		Sources:  sourcesmemory.NewRepository(),
		Ledger:   tsmemory.NewLedger(),
		Sessions: ingestionmemory.NewSessionStore(),
	}
}

func closeDB(db *gorm.DB) func() {
	return func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

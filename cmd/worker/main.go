package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/atlasmarkets/refdata/internal/app/api"
	"github.com/atlasmarkets/refdata/internal/clients/http/datalink"
	ingestionobs "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/observability"
	ingestionapp "github.com/atlasmarkets/refdata/internal/domains/ingestion/application"
	tsapp "github.com/atlasmarkets/refdata/internal/domains/timeseries/application"
	sessionworkflows "github.com/atlasmarkets/refdata/internal/durable/temporal/workflows/ingestion"
	platformobservability "github.com/atlasmarkets/refdata/internal/platform/observability"
	ingestionactivities "github.com/atlasmarkets/refdata/internal/platform/temporal/activities/ingestion"
)

func main() {
	ctx := context.Background()
	const serviceName = "refdata-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	cfg := api.LoadConfig()
	stores, cleanupStores := api.BuildStores(ctx, cfg, logger)
	defer cleanupStores()

	// Catalog references are validated at session start; the write path
	// stays unguarded so a soft delete never aborts a running session.
	ledgerService := tsapp.NewService(stores.Ledger, nil)
	provider, err := datalink.NewClient(cfg.DatalinkBaseURL, cfg.DatalinkAPIKey, nil)
	if err != nil {
		logger.Error("failed to configure provider client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	coordinator := ingestionapp.NewCoordinator(
		stores.Sessions,
		provider,
		ledgerService,
		stores.Assets,
		stores.Sources,
		ingestionapp.WithNotifier(ingestionobs.NewLogNotifier(logger)),
	)
	sessionActivities := ingestionactivities.NewActivities(coordinator)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, sessionworkflows.SessionTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(sessionworkflows.SessionWorkflow, workflow.RegisterOptions{Name: sessionworkflows.SessionWorkflowName})
	w.RegisterActivityWithOptions(sessionActivities.RunSession, activity.RegisterOptions{Name: sessionworkflows.RunSessionActivityName})

	logger.Info("worker listening", slog.String("taskQueue", sessionworkflows.SessionTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

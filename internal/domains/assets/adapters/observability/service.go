package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	assettypes "github.com/atlasmarkets/refdata/internal/domains/assets/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/assets/ports"
)

const tracerName = "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/observability/service"

// Service decorates an asset catalog port with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// Create opens a new asset version chain with instrumentation.
func (s *Service) Create(ctx context.Context, input assettypes.CreateAssetInput) (*assettypes.AssetVersion, error) {
	ctx, span := s.startSpan(ctx, "Service.Create")
	defer span.End()

	s.logInfo(ctx, "creating asset")
	result, err := s.inner.Create(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to create asset")
	}
	if result != nil {
		s.metrics.recordCreated(ctx)
		span.SetAttributes(attribute.Int64("asset.id", result.Meta.EntityID))
		s.logInfo(ctx, "asset created",
			slog.Int64("asset.id", result.Meta.EntityID),
			slog.String("asset.symbol", result.Entity.Symbol()),
		)
	}
	return result, nil
}

// Get reads the current or as-of version of an asset.
func (s *Service) Get(ctx context.Context, input assettypes.GetAssetInput) (*assettypes.AssetVersion, error) {
	attrs := []attribute.KeyValue{attribute.Int64("asset.id", input.ID)}
	if input.AsOf != nil {
		attrs = append(attrs, attribute.String("asset.as_of", input.AsOf.String()))
	}
	ctx, span := s.startSpan(ctx, "Service.Get", attrs...)
	defer span.End()

	result, err := s.inner.Get(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load asset", slog.Int64("asset.id", input.ID))
	}
	return result, nil
}

// List returns the current version of every asset.
func (s *Service) List(ctx context.Context, input assettypes.ListAssetsInput) ([]*assettypes.AssetVersion, error) {
	ctx, span := s.startSpan(ctx, "Service.List", attribute.Bool("asset.include_deleted", input.IncludeDeleted))
	defer span.End()

	result, err := s.inner.List(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list assets")
	}
	span.SetAttributes(attribute.Int("asset.result.count", len(result)))
	s.logInfo(ctx, "listed assets", slog.Int("count", len(result)))
	return result, nil
}

// ListVersions returns the full history of one or all assets.
func (s *Service) ListVersions(ctx context.Context, input assettypes.ListVersionsInput) ([]*assettypes.AssetVersion, error) {
	ctx, span := s.startSpan(ctx, "Service.ListVersions", attribute.Int64("asset.id", input.ID))
	defer span.End()

	result, err := s.inner.ListVersions(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list asset versions", slog.Int64("asset.id", input.ID))
	}
	span.SetAttributes(attribute.Int("asset.result.count", len(result)))
	return result, nil
}

// Update supersedes the current live version of an asset.
func (s *Service) Update(ctx context.Context, input assettypes.UpdateAssetInput) (*assettypes.AssetVersion, error) {
	ctx, span := s.startSpan(ctx, "Service.Update", attribute.Int64("asset.id", input.ID))
	defer span.End()

	s.logInfo(ctx, "updating asset", slog.Int64("asset.id", input.ID))
	result, err := s.inner.Update(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to update asset", slog.Int64("asset.id", input.ID))
	}
	if result != nil {
		s.metrics.recordUpdated(ctx)
		s.logInfo(ctx, "asset updated", slog.Int64("asset.id", result.Meta.EntityID))
	}
	return result, nil
}

// Delete writes a soft-delete marker for an asset.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.startSpan(ctx, "Service.Delete", attribute.Int64("asset.id", id))
	defer span.End()

	s.logInfo(ctx, "deleting asset", slog.Int64("asset.id", id))
	if err := s.inner.Delete(ctx, id); err != nil {
		return s.handleError(ctx, span, err, "failed to delete asset", slog.Int64("asset.id", id))
	}
	s.metrics.recordDeleted(ctx)
	s.logInfo(ctx, "asset deleted", slog.Int64("asset.id", id))
	return nil
}

// Resurrect revives a soft-deleted asset.
func (s *Service) Resurrect(ctx context.Context, input assettypes.ResurrectAssetInput) (*assettypes.AssetVersion, error) {
	ctx, span := s.startSpan(ctx, "Service.Resurrect", attribute.Int64("asset.id", input.ID))
	defer span.End()

	s.logInfo(ctx, "resurrecting asset", slog.Int64("asset.id", input.ID))
	result, err := s.inner.Resurrect(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to resurrect asset", slog.Int64("asset.id", input.ID))
	}
	if result != nil {
		s.metrics.recordResurrected(ctx)
		s.logInfo(ctx, "asset resurrected", slog.Int64("asset.id", result.Meta.EntityID))
	}
	return result, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	assetsCreated     metric.Int64Counter
	assetsUpdated     metric.Int64Counter
	assetsDeleted     metric.Int64Counter
	assetsResurrected metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	assetsCreated, _ := m.Int64Counter("assets.service.created", metric.WithDescription("Number of assets created"))
	assetsUpdated, _ := m.Int64Counter("assets.service.updated", metric.WithDescription("Number of asset versions written by updates"))
	assetsDeleted, _ := m.Int64Counter("assets.service.deleted", metric.WithDescription("Number of soft-delete markers written"))
	assetsResurrected, _ := m.Int64Counter("assets.service.resurrected", metric.WithDescription("Number of assets resurrected"))
	return serviceMetrics{
		assetsCreated:     assetsCreated,
		assetsUpdated:     assetsUpdated,
		assetsDeleted:     assetsDeleted,
		assetsResurrected: assetsResurrected,
	}
}

func (m serviceMetrics) recordCreated(ctx context.Context) {
	addCounter(ctx, m.assetsCreated, 1)
}

func (m serviceMetrics) recordUpdated(ctx context.Context) {
	addCounter(ctx, m.assetsUpdated, 1)
}

func (m serviceMetrics) recordDeleted(ctx context.Context) {
	addCounter(ctx, m.assetsDeleted, 1)
}

func (m serviceMetrics) recordResurrected(ctx context.Context) {
	addCounter(ctx, m.assetsResurrected, 1)
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)

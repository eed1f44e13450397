// Package workflows routes prepared ingestion sessions to their
// execution venue: a Temporal cluster or the calling process.
package workflows

import (
	"context"
	"errors"
	"fmt"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
	sessionworkflows "github.com/atlasmarkets/refdata/internal/durable/temporal/workflows/ingestion"
)

var (
	_ ports.Orchestrator = (*TemporalIngestion)(nil)
	_ ports.Orchestrator = (*InlineIngestion)(nil)
)

// TemporalIngestion starts session workflows on a Temporal cluster. It
// starts and returns without waiting: sessions may run for a long time
// and callers poll session state instead.
type TemporalIngestion struct {
	client    client.Client
	taskQueue string
}

// NewTemporalIngestion wires a Temporal client into the orchestrator.
func NewTemporalIngestion(c client.Client) *TemporalIngestion {
	return &TemporalIngestion{client: c, taskQueue: sessionworkflows.SessionTaskQueue}
}

// Run starts the durable workflow for a prepared session.
func (o *TemporalIngestion) Run(ctx context.Context, sessionID string) error {
	if o == nil || o.client == nil {
		return errors.New("temporal ingestion workflows not configured")
	}
	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("ingestion-session-%s", sessionID),
		TaskQueue: o.taskQueue,
	}
	_, err := o.client.ExecuteWorkflow(
		ctx,
		options,
		sessionworkflows.SessionWorkflow,
		sessionworkflows.SessionWorkflowInput{SessionID: sessionID, TraceID: workflowTraceID(ctx)},
	)
	if err != nil {
		// The session id is the idempotency key; a second start for the
		// same session is a no-op.
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return nil
		}
		return err
	}
	return nil
}

// Runner executes one prepared session's pipeline.
type Runner interface {
	Run(ctx context.Context, sessionID string) error
}

// InlineIngestion executes the pipeline directly without Temporal,
// useful for tests or dev fallbacks.
type InlineIngestion struct {
	runner Runner
}

// NewInlineIngestion wraps the coordinator for synchronous execution.
func NewInlineIngestion(runner Runner) *InlineIngestion {
	return &InlineIngestion{runner: runner}
}

// Run delegates to the coordinator without durable orchestration.
func (o *InlineIngestion) Run(ctx context.Context, sessionID string) error {
	if o == nil || o.runner == nil {
		return errors.New("inline ingestion workflows not configured")
	}
	return o.runner.Run(ctx, sessionID)
}

func workflowTraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	spanContext := span.SpanContext()
	if !spanContext.IsValid() {
		return ""
	}
	return spanContext.TraceID().String()
}

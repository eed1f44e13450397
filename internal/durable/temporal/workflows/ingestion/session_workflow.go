package ingestion

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// SessionWorkflowName is the public identifier for registering the workflow.
	SessionWorkflowName = "ingestion.workflows.Session"
	// SessionTaskQueue is the queue consumed by the worker processing ingestion sessions.
	SessionTaskQueue = "INGESTION_SESSION"
	// RunSessionActivityName executes one prepared session's pipeline.
	RunSessionActivityName = "ingestion.activities.RunSession"
)

// SessionWorkflowInput carries the prepared session to execute.
type SessionWorkflowInput struct {
	SessionID string
	TraceID   string
}

// SessionWorkflow drives one ingestion session through its pipeline.
// The coordinator owns fetch retries and failure bookkeeping, so the
// activity itself runs a single attempt; the long timeout covers large
// date ranges.
func SessionWorkflow(ctx workflow.Context, input SessionWorkflowInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("SessionWorkflow started", withTraceID(input.TraceID, "sessionId", input.SessionID)...)

	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	if err := workflow.ExecuteActivity(ctx, RunSessionActivityName, input.SessionID).Get(ctx, nil); err != nil {
		logger.Error("SessionWorkflow failed", withTraceID(input.TraceID, "sessionId", input.SessionID, "error", err)...)
		return err
	}
	logger.Info("SessionWorkflow completed", withTraceID(input.TraceID, "sessionId", input.SessionID)...)
	return nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}

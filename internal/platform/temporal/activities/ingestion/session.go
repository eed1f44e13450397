package ingestion

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
)

// Runner executes one prepared session's pipeline.
type Runner interface {
	Run(ctx context.Context, sessionID string) error
}

// Activities groups activities that operate on the ingestion bounded context.
type Activities struct {
	runner Runner
}

// NewActivities wires the ingestion coordinator into the Temporal
// activities bundle.
func NewActivities(runner Runner) *Activities {
	return &Activities{runner: runner}
}

type runHeartbeat struct {
	Completed bool
}

// RunSession executes the fetch and write pipeline for a prepared
// session. Session-level outcomes (including failure) are recorded on
// the session itself; only infrastructure errors fail the activity.
func (a *Activities) RunSession(ctx context.Context, sessionID string) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.runner == nil {
		logger.Error("ingestion run activity not initialized", "sessionId", sessionID)
		return errors.New("ingestion run activity not initialized")
	}

	var hb runHeartbeat
	if activity.HasHeartbeatDetails(ctx) {
		_ = activity.GetHeartbeatDetails(ctx, &hb)
	}
	if hb.Completed {
		logger.Info("RunSession already completed in prior attempt; skipping", "sessionId", sessionID)
		return nil
	}

	logger.Info("RunSession activity started", "sessionId", sessionID)
	if err := a.runner.Run(ctx, sessionID); err != nil {
		logger.Error("RunSession activity failed", "sessionId", sessionID, "error", err)
		return err
	}
	activity.RecordHeartbeat(ctx, runHeartbeat{Completed: true})
	logger.Info("RunSession activity completed", "sessionId", sessionID)
	return nil
}

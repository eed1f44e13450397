// Package observability delivers ingestion progress events to the
// process log.
package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/atlasmarkets/refdata/internal/domains/ingestion/domain"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
)

var _ ports.ProgressNotifier = (*LogNotifier)(nil)

// LogNotifier writes progress events as structured log lines. It is the
// default fire-and-forget progress sink; polling clients read the
// session's progress log instead.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier wires the notifier; a nil logger discards events.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogNotifier{logger: logger}
}

// Notify logs one progress event.
func (n *LogNotifier) Notify(ctx context.Context, session *domain.Session, message string) {
	if session == nil {
		return
	}
	n.logger.LogAttrs(ctx, slog.LevelInfo, "ingestion progress",
		slog.String("session.id", session.ID),
		slog.String("session.stage", string(session.Stage)),
		slog.Int64("asset.id", session.AssetID),
		slog.Int64("source.id", session.DataSourceID),
		slog.Int("rows.written", session.RowsWritten),
		slog.String("message", message),
	)
}

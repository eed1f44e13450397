package ports

import (
	"context"

	types "github.com/atlasmarkets/refdata/internal/domains/ingestion/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/domain"
)

// SessionStore persists ingestion sessions across stage transitions.
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	List(ctx context.Context) ([]*domain.Session, error)
}

// ProgressNotifier receives coarse progress events: stage changes and
// periodic row counts. Delivery is fire-and-forget; a slow or failing
// notifier must never stall or fail a session.
type ProgressNotifier interface {
	Notify(ctx context.Context, session *domain.Session, message string)
}

// Orchestrator decides where a prepared session's pipeline executes:
// inline in the calling process or handed to a durable workflow engine.
type Orchestrator interface {
	Run(ctx context.Context, sessionID string) error
}

// Service is the inbound port for ingestion use cases.
type Service interface {
	Start(ctx context.Context, input types.StartInput) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	List(ctx context.Context) ([]*domain.Session, error)
}

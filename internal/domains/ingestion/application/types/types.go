// Package types holds the ingestion use-case inputs shared by transport,
// workflows, and the coordinator.
package types

import (
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/ingestion/domain"
)

// StartInput requests a new ingestion session.
type StartInput struct {
	AssetID      int64
	DataSourceID int64
	StartDate    time.Time
	EndDate      time.Time
	Mode         domain.Mode
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	sessionmapper "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/http/mapper"
	ingestionports "github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
)

// IngestionAPI wires HTTP transport with the ingestion coordinator.
type IngestionAPI struct {
	service ingestionports.Service
}

// NewIngestionAPI creates an IngestionAPI backed by the provided service.
func NewIngestionAPI(service ingestionports.Service) IngestionAPI {
	return IngestionAPI{service: service}
}

// Post /v1/ingestion/sessions
// Start an ingestion session; the pipeline runs asynchronously when a
// workflow orchestrator is configured
func (api *IngestionAPI) StartSession(c *gin.Context) {
	var payload sessionmapper.StartSession
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	session, err := api.service.Start(c.Request.Context(), sessionmapper.ToStartInput(payload))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, sessionmapper.FromSession(session))
}

// Get /v1/ingestion/sessions/:sessionId
// Read one session's stage and progress log
func (api *IngestionAPI) GetSession(c *gin.Context) {
	session, err := api.service.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionmapper.FromSession(session))
}

// Get /v1/ingestion/sessions
// List sessions, newest first
func (api *IngestionAPI) ListSessions(c *gin.Context) {
	sessions, err := api.service.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionmapper.FromSessions(sessions))
}

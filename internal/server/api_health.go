package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthAPI answers liveness probes, reporting storage reachability when
// a ping is wired.
type HealthAPI struct {
	ping func(ctx context.Context) error
}

// NewHealthAPI creates a HealthAPI. A nil ping reports process liveness
// only.
func NewHealthAPI(ping func(ctx context.Context) error) HealthAPI {
	return HealthAPI{ping: ping}
}

// Get /health
func (api *HealthAPI) Check(c *gin.Context) {
	if api.ping != nil {
		if err := api.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "storage": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": "ok"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

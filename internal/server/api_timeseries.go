package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	obsmapper "github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/http/mapper"
	tstypes "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
	tsports "github.com/atlasmarkets/refdata/internal/domains/timeseries/ports"
)

// TimeSeriesAPI wires HTTP transport with the observation ledger service.
type TimeSeriesAPI struct {
	service tsports.Service
}

// NewTimeSeriesAPI creates a TimeSeriesAPI backed by the provided service.
func NewTimeSeriesAPI(service tsports.Service) TimeSeriesAPI {
	return TimeSeriesAPI{service: service}
}

// Post /v1/observations
// Append one observation; identical duplicates are accepted, diverging
// duplicates conflict
func (api *TimeSeriesAPI) AppendObservation(c *gin.Context) {
	var payload obsmapper.WriteObservation
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := api.service.Append(c.Request.Context(), obsmapper.ToWriteInput(payload)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Put /v1/observations
// Refresh one observation, superseding any current row for the date
func (api *TimeSeriesAPI) RefreshObservation(c *gin.Context) {
	var payload obsmapper.WriteObservation
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := api.service.Refresh(c.Request.Context(), obsmapper.ToWriteInput(payload)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get /v1/observations
// Read the current rows of a series over an inclusive date range
func (api *TimeSeriesAPI) QueryObservations(c *gin.Context) {
	assetID, ok := parseIDQuery(c, "assetId")
	if !ok {
		return
	}
	sourceID, ok := parseIDQuery(c, "dataSourceId")
	if !ok {
		return
	}
	start, ok := parseDateQuery(c, "startDate")
	if !ok {
		return
	}
	end, ok := parseDateQuery(c, "endDate")
	if !ok {
		return
	}
	input := tstypes.QueryRangeInput{
		AssetID:      assetID,
		DataSourceID: sourceID,
		StartDate:    start,
		EndDate:      end,
	}
	rows, err := api.service.QueryRange(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, obsmapper.FromRows(rows))
}

// Get /v1/observations/coverage
// Report the committed date range of a series
func (api *TimeSeriesAPI) GetCoverage(c *gin.Context) {
	assetID, ok := parseIDQuery(c, "assetId")
	if !ok {
		return
	}
	sourceID, ok := parseIDQuery(c, "dataSourceId")
	if !ok {
		return
	}
	input := tstypes.CoverageInput{AssetID: assetID, DataSourceID: sourceID}
	coverage, err := api.service.GetCoverage(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if coverage == nil {
		c.JSON(http.StatusOK, gin.H{"hasData": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasData": true, "coverage": obsmapper.FromCoverage(coverage)})
}

func parseIDQuery(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		respondError(c, http.StatusBadRequest, fmt.Errorf("%s is required", name))
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("%s must be an integer", name))
		return 0, false
	}
	return id, true
}

// parseDateQuery reads a required calendar date parameter.
func parseDateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		respondError(c, http.StatusBadRequest, fmt.Errorf("%s is required", name))
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("%s must be a YYYY-MM-DD date", name))
		return time.Time{}, false
	}
	return date, true
}

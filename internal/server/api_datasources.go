package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	sourcemapper "github.com/atlasmarkets/refdata/internal/domains/datasources/adapters/http/mapper"
	sourcetypes "github.com/atlasmarkets/refdata/internal/domains/datasources/application/types"
	sourceports "github.com/atlasmarkets/refdata/internal/domains/datasources/ports"
)

// DataSourceAPI wires HTTP transport with the data source catalog service.
type DataSourceAPI struct {
	service sourceports.Service
}

// NewDataSourceAPI creates a DataSourceAPI backed by the provided service.
func NewDataSourceAPI(service sourceports.Service) DataSourceAPI {
	return DataSourceAPI{service: service}
}

// Post /v1/data-sources
// Register a new data source
func (api *DataSourceAPI) CreateDataSource(c *gin.Context) {
	var payload sourcemapper.MutationDataSource
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	input := sourcetypes.CreateDataSourceInput{DataSourceMutationInput: sourcemapper.ToMutationInput(payload)}
	created, err := api.service.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sourcemapper.FromVersion(created))
}

// Get /v1/data-sources/:sourceId
// Read the current version, or the version valid at asOf
func (api *DataSourceAPI) GetDataSource(c *gin.Context) {
	id, ok := parseIDParam(c, "sourceId")
	if !ok {
		return
	}
	asOf, ok := parseAsOfQuery(c)
	if !ok {
		return
	}
	input := sourcetypes.GetDataSourceInput{
		ID:             id,
		AsOf:           asOf,
		IncludeDeleted: parseBoolQuery(c, "includeDeleted"),
	}
	version, err := api.service.Get(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sourcemapper.FromVersion(version))
}

// Get /v1/data-sources
// List current data source versions
func (api *DataSourceAPI) ListDataSources(c *gin.Context) {
	input := sourcetypes.ListDataSourcesInput{IncludeDeleted: parseBoolQuery(c, "includeDeleted")}
	versions, err := api.service.List(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sourcemapper.FromVersions(versions))
}

// Get /v1/data-sources/versions
// List the full version history across all data sources
func (api *DataSourceAPI) ListAllDataSourceVersions(c *gin.Context) {
	versions, err := api.service.ListVersions(c.Request.Context(), sourcetypes.ListVersionsInput{})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sourcemapper.FromVersions(versions))
}

// Get /v1/data-sources/:sourceId/versions
// List one data source's version chain
func (api *DataSourceAPI) GetDataSourceVersions(c *gin.Context) {
	id, ok := parseIDParam(c, "sourceId")
	if !ok {
		return
	}
	versions, err := api.service.ListVersions(c.Request.Context(), sourcetypes.ListVersionsInput{ID: id})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sourcemapper.FromVersions(versions))
}

// Get /v1/data-sources/provider/:provider
// Find current live data sources for an exact provider name
func (api *DataSourceAPI) FindDataSourcesByProvider(c *gin.Context) {
	input := sourcetypes.FindByProviderInput{Provider: c.Param("provider")}
	versions, err := api.service.FindByProvider(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sourcemapper.FromVersions(versions))
}

// Put /v1/data-sources/:sourceId
// Update a live data source; absent fields carry forward
func (api *DataSourceAPI) UpdateDataSource(c *gin.Context) {
	id, ok := parseIDParam(c, "sourceId")
	if !ok {
		return
	}
	var payload sourcemapper.MutationDataSource
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	input := sourcetypes.UpdateDataSourceInput{ID: id, DataSourceMutationInput: sourcemapper.ToMutationInput(payload)}
	updated, err := api.service.Update(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sourcemapper.FromVersion(updated))
}

// Delete /v1/data-sources/:sourceId
// Soft-delete a data source; its history stays queryable
func (api *DataSourceAPI) DeleteDataSource(c *gin.Context) {
	id, ok := parseIDParam(c, "sourceId")
	if !ok {
		return
	}
	if err := api.service.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Post /v1/data-sources/:sourceId/resurrect
// Revive a soft-deleted data source with new data
func (api *DataSourceAPI) ResurrectDataSource(c *gin.Context) {
	id, ok := parseIDParam(c, "sourceId")
	if !ok {
		return
	}
	var payload sourcemapper.MutationDataSource
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	input := sourcetypes.ResurrectDataSourceInput{ID: id, DataSourceMutationInput: sourcemapper.ToMutationInput(payload)}
	revived, err := api.service.Resurrect(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sourcemapper.FromVersion(revived))
}

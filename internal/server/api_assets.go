package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	assetmapper "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/http/mapper"
	assettypes "github.com/atlasmarkets/refdata/internal/domains/assets/application/types"
	assetports "github.com/atlasmarkets/refdata/internal/domains/assets/ports"
)

// AssetAPI wires HTTP transport with the asset catalog service.
type AssetAPI struct {
	service assetports.Service
}

// NewAssetAPI creates an AssetAPI backed by the provided service.
func NewAssetAPI(service assetports.Service) AssetAPI {
	return AssetAPI{service: service}
}

// Post /v1/assets
// Register a new asset
func (api *AssetAPI) CreateAsset(c *gin.Context) {
	var payload assetmapper.MutationAsset
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	input := assettypes.CreateAssetInput{AssetMutationInput: assetmapper.ToMutationInput(payload)}
	created, err := api.service.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assetmapper.FromVersion(created))
}

// Get /v1/assets/:assetId
// Read the current version, or the version valid at asOf
func (api *AssetAPI) GetAsset(c *gin.Context) {
	id, ok := parseIDParam(c, "assetId")
	if !ok {
		return
	}
	asOf, ok := parseAsOfQuery(c)
	if !ok {
		return
	}
	input := assettypes.GetAssetInput{
		ID:             id,
		AsOf:           asOf,
		IncludeDeleted: parseBoolQuery(c, "includeDeleted"),
	}
	version, err := api.service.Get(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assetmapper.FromVersion(version))
}

// Get /v1/assets
// List current asset versions
func (api *AssetAPI) ListAssets(c *gin.Context) {
	input := assettypes.ListAssetsInput{IncludeDeleted: parseBoolQuery(c, "includeDeleted")}
	versions, err := api.service.List(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assetmapper.FromVersions(versions))
}

// Get /v1/assets/versions
// List the full version history across all assets
func (api *AssetAPI) ListAllAssetVersions(c *gin.Context) {
	versions, err := api.service.ListVersions(c.Request.Context(), assettypes.ListVersionsInput{})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assetmapper.FromVersions(versions))
}

// Get /v1/assets/:assetId/versions
// List one asset's version chain
func (api *AssetAPI) GetAssetVersions(c *gin.Context) {
	id, ok := parseIDParam(c, "assetId")
	if !ok {
		return
	}
	versions, err := api.service.ListVersions(c.Request.Context(), assettypes.ListVersionsInput{ID: id})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assetmapper.FromVersions(versions))
}

// Put /v1/assets/:assetId
// Update a live asset; absent fields carry forward
func (api *AssetAPI) UpdateAsset(c *gin.Context) {
	id, ok := parseIDParam(c, "assetId")
	if !ok {
		return
	}
	var payload assetmapper.MutationAsset
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	input := assettypes.UpdateAssetInput{ID: id, AssetMutationInput: assetmapper.ToMutationInput(payload)}
	updated, err := api.service.Update(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assetmapper.FromVersion(updated))
}

// Delete /v1/assets/:assetId
// Soft-delete an asset; its history stays queryable
func (api *AssetAPI) DeleteAsset(c *gin.Context) {
	id, ok := parseIDParam(c, "assetId")
	if !ok {
		return
	}
	if err := api.service.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Post /v1/assets/:assetId/resurrect
// Revive a soft-deleted asset with new data
func (api *AssetAPI) ResurrectAsset(c *gin.Context) {
	id, ok := parseIDParam(c, "assetId")
	if !ok {
		return
	}
	var payload assetmapper.MutationAsset
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	input := assettypes.ResurrectAssetInput{ID: id, AssetMutationInput: assetmapper.ToMutationInput(payload)}
	revived, err := api.service.Resurrect(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assetmapper.FromVersion(revived))
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	value := c.Param(name)
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("%s must be an integer: %w", name, err))
		return 0, false
	}
	return id, true
}

// parseAsOfQuery reads an optional RFC 3339 point-in-time parameter.
func parseAsOfQuery(c *gin.Context) (*time.Time, bool) {
	raw := c.Query("asOf")
	if raw == "" {
		return nil, true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, errors.New("asOf must be an RFC 3339 timestamp"))
		return nil, false
	}
	return &at, true
}

func parseBoolQuery(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(c.DefaultQuery(name, "false"))
	if err != nil {
		return false
	}
	return value
}

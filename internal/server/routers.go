// Package server exposes the reference data API over gin: asset and
// data-source catalogs, the time-series ledger, and ingestion sessions.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route binds one HTTP method and path pattern to a handler.
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc gin.HandlerFunc
}

// ApiHandleFunctions groups the bounded-context handler sets wired into
// the router.
type ApiHandleFunctions struct {
	AssetAPI      AssetAPI
	DataSourceAPI DataSourceAPI
	TimeSeriesAPI TimeSeriesAPI
	IngestionAPI  IngestionAPI
	HealthAPI     HealthAPI
}

// NewRouter returns a gin engine with all API routes registered.
func NewRouter(handleFunctions ApiHandleFunctions, middleware ...gin.HandlerFunc) *gin.Engine {
	router := gin.Default()
	router.Use(middleware...)
	return NewRouterWithGinEngine(router, handleFunctions)
}

// NewRouterWithGinEngine registers the API routes on an existing engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions) *gin.Engine {
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = defaultHandleFunc
		}
		switch route.Method {
		case http.MethodGet:
			router.GET(route.Pattern, route.HandlerFunc)
		case http.MethodPost:
			router.POST(route.Pattern, route.HandlerFunc)
		case http.MethodPut:
			router.PUT(route.Pattern, route.HandlerFunc)
		case http.MethodDelete:
			router.DELETE(route.Pattern, route.HandlerFunc)
		}
	}
	return router
}

// defaultHandleFunc answers routes without a wired handler.
func defaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

func getRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{
			"Health",
			http.MethodGet,
			"/health",
			handleFunctions.HealthAPI.Check,
		},
		{
			"CreateAsset",
			http.MethodPost,
			"/v1/assets",
			handleFunctions.AssetAPI.CreateAsset,
		},
		{
			"ListAssets",
			http.MethodGet,
			"/v1/assets",
			handleFunctions.AssetAPI.ListAssets,
		},
		{
			"ListAssetVersions",
			http.MethodGet,
			"/v1/assets/versions",
			handleFunctions.AssetAPI.ListAllAssetVersions,
		},
		{
			"GetAsset",
			http.MethodGet,
			"/v1/assets/:assetId",
			handleFunctions.AssetAPI.GetAsset,
		},
		{
			"GetAssetVersions",
			http.MethodGet,
			"/v1/assets/:assetId/versions",
			handleFunctions.AssetAPI.GetAssetVersions,
		},
		{
			"UpdateAsset",
			http.MethodPut,
			"/v1/assets/:assetId",
			handleFunctions.AssetAPI.UpdateAsset,
		},
		{
			"DeleteAsset",
			http.MethodDelete,
			"/v1/assets/:assetId",
			handleFunctions.AssetAPI.DeleteAsset,
		},
		{
			"ResurrectAsset",
			http.MethodPost,
			"/v1/assets/:assetId/resurrect",
			handleFunctions.AssetAPI.ResurrectAsset,
		},
		{
			"CreateDataSource",
			http.MethodPost,
			"/v1/data-sources",
			handleFunctions.DataSourceAPI.CreateDataSource,
		},
		{
			"ListDataSources",
			http.MethodGet,
			"/v1/data-sources",
			handleFunctions.DataSourceAPI.ListDataSources,
		},
		{
			"ListDataSourceVersions",
			http.MethodGet,
			"/v1/data-sources/versions",
			handleFunctions.DataSourceAPI.ListAllDataSourceVersions,
		},
		{
			"FindDataSourcesByProvider",
			http.MethodGet,
			"/v1/data-sources/provider/:provider",
			handleFunctions.DataSourceAPI.FindDataSourcesByProvider,
		},
		{
			"GetDataSource",
			http.MethodGet,
			"/v1/data-sources/:sourceId",
			handleFunctions.DataSourceAPI.GetDataSource,
		},
		{
			"GetDataSourceVersions",
			http.MethodGet,
			"/v1/data-sources/:sourceId/versions",
			handleFunctions.DataSourceAPI.GetDataSourceVersions,
		},
		{
			"UpdateDataSource",
			http.MethodPut,
			"/v1/data-sources/:sourceId",
			handleFunctions.DataSourceAPI.UpdateDataSource,
		},
		{
			"DeleteDataSource",
			http.MethodDelete,
			"/v1/data-sources/:sourceId",
			handleFunctions.DataSourceAPI.DeleteDataSource,
		},
		{
			"ResurrectDataSource",
			http.MethodPost,
			"/v1/data-sources/:sourceId/resurrect",
			handleFunctions.DataSourceAPI.ResurrectDataSource,
		},
		{
			"AppendObservation",
			http.MethodPost,
			"/v1/observations",
			handleFunctions.TimeSeriesAPI.AppendObservation,
		},
		{
			"RefreshObservation",
			http.MethodPut,
			"/v1/observations",
			handleFunctions.TimeSeriesAPI.RefreshObservation,
		},
		{
			"QueryObservations",
			http.MethodGet,
			"/v1/observations",
			handleFunctions.TimeSeriesAPI.QueryObservations,
		},
		{
			"GetCoverage",
			http.MethodGet,
			"/v1/observations/coverage",
			handleFunctions.TimeSeriesAPI.GetCoverage,
		},
		{
			"StartIngestion",
			http.MethodPost,
			"/v1/ingestion/sessions",
			handleFunctions.IngestionAPI.StartSession,
		},
		{
			"ListIngestionSessions",
			http.MethodGet,
			"/v1/ingestion/sessions",
			handleFunctions.IngestionAPI.ListSessions,
		},
		{
			"GetIngestionSession",
			http.MethodGet,
			"/v1/ingestion/sessions/:sessionId",
			handleFunctions.IngestionAPI.GetSession,
		},
	}
}

//go:build pact
// +build pact

package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	pacttest "github.com/atlasmarkets/refdata/test/pact"

	assetsmemory "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/memory"
	assetsobs "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/observability"
	assetsapp "github.com/atlasmarkets/refdata/internal/domains/assets/application"
	assettypes "github.com/atlasmarkets/refdata/internal/domains/assets/application/types"
	assetports "github.com/atlasmarkets/refdata/internal/domains/assets/ports"
	sourcesmemory "github.com/atlasmarkets/refdata/internal/domains/datasources/adapters/memory"
	sourcesapp "github.com/atlasmarkets/refdata/internal/domains/datasources/application"
	ingestionmemory "github.com/atlasmarkets/refdata/internal/domains/ingestion/adapters/memory"
	ingestionapp "github.com/atlasmarkets/refdata/internal/domains/ingestion/application"
	ingestionports "github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/catalog"
	tsmemory "github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/memory"
	tsapp "github.com/atlasmarkets/refdata/internal/domains/timeseries/application"
	refdataserver "github.com/atlasmarkets/refdata/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/pact-foundation/pact-go/v2/models"
	pactprovider "github.com/pact-foundation/pact-go/v2/provider"
	"github.com/stretchr/testify/require"
)

func TestRefdataProviderPact(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := newContractProviderApp(t)
	pactFile := filepath.ToSlash(pacttest.PactFile(t))
	if _, err := os.Stat(pactFile); errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pact file not found at %s - run the pact consumer tests first", pactFile)
	} else {
		require.NoError(t, err)
	}

	verifier := pactprovider.NewVerifier()
	stateHandlers := models.StateHandlers{
		pacttest.StateAssetsBaseline: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset(t)
			return nil, nil
		},
		pacttest.StateAssetExists: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset(t)
			if setup {
				app.seedAsset(t)
			}
			return nil, nil
		},
		pacttest.StateAssetMissing: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset(t)
			return nil, nil
		},
	}

	err := verifier.VerifyProvider(t, pactprovider.VerifyRequest{
		ProviderBaseURL: app.server.URL,
		Provider:        pacttest.ProviderName,
		PactFiles:       []string{pactFile},
		StateHandlers:   stateHandlers,
		BeforeEach: func() error {
			app.reset(t)
			return nil
		},
	})
	require.NoError(t, err)
}

// contractProviderApp rebuilds the in-memory application per provider
// state so seeded entity ids stay deterministic.
type contractProviderApp struct {
	mu     sync.Mutex
	assets assetports.Service
	router http.Handler
	server *httptest.Server
}

func newContractProviderApp(t testing.TB) *contractProviderApp {
	t.Helper()
	app := &contractProviderApp{}
	app.reset(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.mu.Lock()
		router := app.router
		app.mu.Unlock()
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	app.server = server
	return app
}

func (a *contractProviderApp) reset(t testing.TB) {
	t.Helper()

	assetRepo := assetsmemory.NewRepository()
	sourceRepo := sourcesmemory.NewRepository()
	assetService := assetsobs.New(assetsapp.NewService(assetRepo))
	sourceService := sourcesapp.NewService(sourceRepo)
	ledgerService := tsapp.NewService(tsmemory.NewLedger(), catalog.NewGuard(assetRepo, sourceRepo))
	var coordinator ingestionports.Service = ingestionapp.NewCoordinator(
		ingestionmemory.NewSessionStore(),
		nil,
		ledgerService,
		assetRepo,
		sourceRepo,
	)

	handlers := refdataserver.ApiHandleFunctions{
		AssetAPI:      refdataserver.NewAssetAPI(assetService),
		DataSourceAPI: refdataserver.NewDataSourceAPI(sourceService),
		TimeSeriesAPI: refdataserver.NewTimeSeriesAPI(ledgerService),
		IngestionAPI:  refdataserver.NewIngestionAPI(coordinator),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router = refdataserver.NewRouterWithGinEngine(router, handlers)

	a.mu.Lock()
	a.assets = assetService
	a.router = router
	a.mu.Unlock()
}

func (a *contractProviderApp) seedAsset(t testing.TB) {
	t.Helper()
	name := "Apple Inc."
	description := "Common stock"
	input := assettypes.CreateAssetInput{AssetMutationInput: assettypes.AssetMutationInput{
		Name:        &name,
		Description: &description,
		Attributes:  map[string]string{"symbol": "AAPL"},
	}}
	a.mu.Lock()
	service := a.assets
	a.mu.Unlock()
	created, err := service.Create(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, pacttest.ExistingAssetID, created.Meta.EntityID)
}

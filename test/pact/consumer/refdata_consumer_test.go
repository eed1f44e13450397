//go:build pact
// +build pact

package consumer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	pacttest "github.com/atlasmarkets/refdata/test/pact"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"
)

type assetPayload struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	ValidFrom   string            `json:"validFrom"`
	ValidTo     string            `json:"validTo"`
	SystemDate  string            `json:"systemDate"`
	IsDeleted   bool              `json:"isDeleted"`
}

type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type apiError struct {
	status int
	title  string
	detail string
}

func (e apiError) Error() string {
	msg := e.title
	if msg == "" {
		msg = "api error"
	}
	if e.detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.detail)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.status)
}

func (e apiError) Status() int {
	return e.status
}

func TestAssetPortalContract(t *testing.T) {
	t.Helper()
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.ConsumerName,
		Provider: pacttest.ProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	requestAsset := pacttest.ExampleAssetPayload()
	assetBodyMatcher := matchers.Map{
		"id":         matchers.Like(pacttest.ExistingAssetID),
		"name":       matchers.Like(requestAsset["name"]),
		"attributes": matchers.Like(requestAsset["attributes"]),
		"validFrom":  matchers.Regex("2024-06-12T10:00:00Z", `\d{4}-\d{2}-\d{2}T.+`),
		"validTo":    matchers.Regex("9999-12-31T23:59:59Z", `\d{4}-\d{2}-\d{2}T.+`),
		"systemDate": matchers.Regex("2024-06-12T10:00:00Z", `\d{4}-\d{2}-\d{2}T.+`),
		"isDeleted":  matchers.Like(false),
	}
	jsonContentType := matchers.Regex("application/json; charset=utf-8", "application\\/json(?:;\\s?charset=utf-8)?")

	pact.AddInteraction().
		Given(pacttest.StateAssetsBaseline).
		UponReceiving("a request to register an asset").
		WithRequest("POST", "/v1/assets", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{
				"name":       matchers.Like(requestAsset["name"]),
				"attributes": matchers.Like(requestAsset["attributes"]),
			})
		}).
		WillRespondWith(http.StatusCreated, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(assetBodyMatcher)
		})

	pact.AddInteraction().
		Given(pacttest.StateAssetExists).
		UponReceiving("a request to fetch an existing asset").
		WithRequest("GET", fmt.Sprintf("/v1/assets/%d", pacttest.ExistingAssetID)).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(assetBodyMatcher)
		})

	pact.AddInteraction().
		Given(pacttest.StateAssetMissing).
		UponReceiving("a request for a missing asset").
		WithRequest("GET", fmt.Sprintf("/v1/assets/%d", pacttest.MissingAssetID)).
		WillRespondWith(http.StatusNotFound, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/problem+json"))
			b.JSONBody(matchers.Map{
				"type":   matchers.S("/problems/not-found"),
				"title":  matchers.S("Resource Not Found"),
				"status": matchers.Like(http.StatusNotFound),
			})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		client := newAssetClient(config)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		created, err := client.CreateAsset(ctx, requestAsset)
		if err != nil {
			return fmt.Errorf("create asset: %w", err)
		}
		if created == nil || created.ID == 0 {
			return fmt.Errorf("expected created asset ID to be set")
		}

		fetched, err := client.GetAsset(ctx, pacttest.ExistingAssetID)
		if err != nil {
			return fmt.Errorf("get asset: %w", err)
		}
		if fetched == nil || fetched.ID != pacttest.ExistingAssetID {
			return fmt.Errorf("expected asset id %d, got %+v", pacttest.ExistingAssetID, fetched)
		}

		if _, err := client.GetAsset(ctx, pacttest.MissingAssetID); err == nil {
			return fmt.Errorf("expected 404 for asset %d", pacttest.MissingAssetID)
		} else if apiErr, ok := err.(apiError); ok && apiErr.Status() != http.StatusNotFound {
			return fmt.Errorf("expected 404, got %d", apiErr.Status())
		}

		return nil
	})
	require.NoError(t, err)
}

type assetClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAssetClient(config pactconsumer.MockServerConfig) *assetClient {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	transport := &http.Transport{TLSClientConfig: config.TLSConfig}
	client := &http.Client{Transport: transport, Timeout: 10 * time.Second}
	return &assetClient{
		baseURL:    fmt.Sprintf("http://%s:%d", host, config.Port),
		httpClient: client,
	}
}

func (c *assetClient) CreateAsset(ctx context.Context, asset map[string]any) (*assetPayload, error) {
	body, err := json.Marshal(asset)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/assets", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return nil, decodeAPIError(res)
	}

	var payload assetPayload
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *assetClient) GetAsset(ctx context.Context, id int64) (*assetPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/assets/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return nil, decodeAPIError(res)
	}

	var payload assetPayload
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func decodeAPIError(res *http.Response) error {
	var problem problemDetail
	_ = json.NewDecoder(res.Body).Decode(&problem)
	status := problem.Status
	if status == 0 {
		status = res.StatusCode
	}
	return apiError{
		status: status,
		title:  problem.Title,
		detail: problem.Detail,
	}
}

package datalink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
)

const datatablePayload = `{
  "datatable": {
    "data": [
      ["AAPL", "2024-01-03", 184.22, 185.88, 183.43, 184.25, 58414460, "ok"],
      ["AAPL", "2024-01-04", 182.15, 183.09, 180.88, 181.91, 71983570, "ok"]
    ],
    "columns": [
      {"name": "ticker", "type": "String"},
      {"name": "date", "type": "Date"},
      {"name": "open", "type": "double"},
      {"name": "high", "type": "double"},
      {"name": "low", "type": "double"},
      {"name": "close", "type": "double"},
      {"name": "volume", "type": "integer"},
      {"name": "quality", "type": "String"}
    ]
  }
}`

func fetchReq() ports.FetchRequest {
	return ports.FetchRequest{
		Symbol:    "AAPL",
		Table:     "WIKI/PRICES",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetchRangeMapsDatatableRows(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(datatablePayload))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "secret", server.Client())
	require.NoError(t, err)

	rows, err := client.FetchRange(context.Background(), fetchReq())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "/datatables/WIKI%2FPRICES.json", gotPath)
	assert.Equal(t, []string{"AAPL"}, gotQuery["ticker"])
	assert.Equal(t, []string{"2024-01-01"}, gotQuery["date.gte"])
	assert.Equal(t, []string{"secret"}, gotQuery["api_key"])

	first := rows[0]
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), first.BusinessDate)
	assert.Equal(t, 184.22, first.ValuesDouble["open"])
	assert.Equal(t, 184.25, first.ValuesDouble["close"])
	assert.Equal(t, int64(58414460), first.ValuesInt["volume"])
	assert.Equal(t, "ok", first.ValuesText["quality"])
	// Key columns do not leak into value maps.
	assert.NotContains(t, first.ValuesText, "ticker")
	assert.NotContains(t, first.ValuesText, "date")
}

func TestFetchRangeClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "upstream down", status: http.StatusBadGateway, transient: true},
		{name: "unknown table", status: http.StatusNotFound, transient: false},
		{name: "bad credentials", status: http.StatusUnauthorized, transient: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client, err := NewClient(server.URL, "", server.Client())
			require.NoError(t, err)

			_, err = client.FetchRange(context.Background(), fetchReq())
			require.Error(t, err)
			assert.Equal(t, tc.transient, ports.IsTransient(err))
			assert.Equal(t, !tc.transient, ports.IsPermanent(err))
		})
	}
}

func TestFetchRangeNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client, err := NewClient(server.URL, "", &http.Client{Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.FetchRange(context.Background(), fetchReq())
	require.Error(t, err)
	assert.True(t, ports.IsTransient(err))
}

func TestFetchRangeRejectsMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"datatable": {"data": [["2024-01-03"]], "columns": [{"name": "open", "type": "double"}]}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", server.Client())
	require.NoError(t, err)

	_, err = client.FetchRange(context.Background(), fetchReq())
	require.Error(t, err)
	assert.True(t, ports.IsPermanent(err))
}

func TestFetchRangeRequiresIdentifiers(t *testing.T) {
	client, err := NewClient("http://localhost:1", "", nil)
	require.NoError(t, err)

	req := fetchReq()
	req.Symbol = ""
	_, err = client.FetchRange(context.Background(), req)
	assert.True(t, ports.IsPermanent(err))
}

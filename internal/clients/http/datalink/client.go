// Package datalink pulls time-series rows from a Data Link style
// datatable API over HTTP.
package datalink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
)

var _ ports.Provider = (*Client)(nil)

// Client fetches datatable rows and maps them into ledger observations.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient instantiates the provider client with sane defaults.
func NewClient(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("datalink base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}, nil
}

// datatableResponse mirrors the provider's wire format: a column
// manifest plus positional row arrays.
type datatableResponse struct {
	Datatable struct {
		Data    [][]any `json:"data"`
		Columns []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"columns"`
	} `json:"datatable"`
}

// FetchRange retrieves rows for one symbol and table over an inclusive
// date range. Rate limits, upstream outages, and timeouts come back as
// transient errors; unknown tables and auth failures as permanent.
func (c *Client) FetchRange(ctx context.Context, req ports.FetchRequest) ([]ports.Row, error) {
	if c == nil || c.httpClient == nil {
		return nil, ports.Permanent(errors.New("datalink client not configured"))
	}
	if req.Symbol == "" || req.Table == "" {
		return nil, ports.Permanent(errors.New("datalink fetch requires a symbol and a table"))
	}

	endpoint := fmt.Sprintf("%s/datatables/%s.json", c.baseURL, url.PathEscape(req.Table))
	query := url.Values{}
	query.Set("ticker", req.Symbol)
	query.Set("date.gte", req.StartDate.Format("2006-01-02"))
	query.Set("date.lte", req.EndDate.Format("2006-01-02"))
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, ports.Permanent(fmt.Errorf("build datalink request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network failures and deadline hits are worth retrying.
		return nil, ports.Transient(fmt.Errorf("call datalink API: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ports.Transient(fmt.Errorf("datalink rate limited: %s", resp.Status))
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, ports.Transient(fmt.Errorf("datalink upstream error: %s", resp.Status))
	default:
		return nil, ports.Permanent(fmt.Errorf("datalink request rejected: %s", resp.Status))
	}

	var payload datatableResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, ports.Permanent(fmt.Errorf("decode datalink payload: %w", err))
	}
	return mapRows(payload)
}

// mapRows turns positional datatable arrays into typed observations
// using the column manifest: date columns key the row, numbers land in
// values_double or values_int, everything else in values_text.
func mapRows(payload datatableResponse) ([]ports.Row, error) {
	columns := payload.Datatable.Columns
	dateIdx := -1
	for i, col := range columns {
		if strings.EqualFold(col.Name, "date") {
			dateIdx = i
			break
		}
	}
	if dateIdx == -1 {
		return nil, ports.Permanent(errors.New("datalink payload has no date column"))
	}

	rows := make([]ports.Row, 0, len(payload.Datatable.Data))
	for _, raw := range payload.Datatable.Data {
		if len(raw) != len(columns) {
			return nil, ports.Permanent(fmt.Errorf("datalink row width %d does not match %d columns", len(raw), len(columns)))
		}
		dateStr, ok := raw[dateIdx].(string)
		if !ok {
			return nil, ports.Permanent(fmt.Errorf("datalink date cell is %T, want string", raw[dateIdx]))
		}
		businessDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, ports.Permanent(fmt.Errorf("parse datalink date %q: %w", dateStr, err))
		}
		row := ports.Row{BusinessDate: businessDate}
		for i, col := range columns {
			if i == dateIdx || strings.EqualFold(col.Name, "ticker") {
				continue
			}
			cell := raw[i]
			if cell == nil {
				continue
			}
			name := strings.ToLower(col.Name)
			switch value := cell.(type) {
			case float64:
				if strings.EqualFold(col.Type, "integer") || strings.EqualFold(col.Type, "bigint") {
					if row.ValuesInt == nil {
						row.ValuesInt = map[string]int64{}
					}
					row.ValuesInt[name] = int64(value)
				} else {
					if row.ValuesDouble == nil {
						row.ValuesDouble = map[string]float64{}
					}
					row.ValuesDouble[name] = value
				}
			case string:
				if row.ValuesText == nil {
					row.ValuesText = map[string]string{}
				}
				row.ValuesText[name] = value
			case bool:
				if row.ValuesText == nil {
					row.ValuesText = map[string]string{}
				}
				row.ValuesText[name] = fmt.Sprintf("%t", value)
			default:
				return nil, ports.Permanent(fmt.Errorf("datalink cell %s is unsupported type %T", col.Name, cell))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

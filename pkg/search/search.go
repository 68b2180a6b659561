// Package search is the competitor-discovery client (spec §4.6 stage
// 5, §6 Search oracle): it queries an external search collaborator for
// a query string and returns the raw hits, letting the orchestrator
// decide which hosts qualify as competitors. Grounded on pkg/perf's
// oracle-client shape (itself grounded on rohmanhakim-docs-crawler's
// internal/fetcher/html.go), simplified for the search oracle's
// documented graceful-failure contract: "unauthenticated calls are
// permitted to fail gracefully — the pipeline treats absence as 'no
// competitors discovered'" (spec §6), so this client never retries and
// never returns an error to a caller that only needs a result list.
package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

const userAgent = "GeoAuditBot/1.0 (+competitor-discovery)"

// Client calls the search oracle (spec §6 SEARCH_ORACLE_URL/
// SEARCH_ORACLE_KEY/SEARCH_ENGINE_ID).
type Client struct {
	OracleURL string
	OracleKey string
	EngineID  string
	Timeout   time.Duration

	httpClient *http.Client
}

// New constructs a Client. An empty OracleURL makes every Query call a
// graceful no-op, matching "absence as no competitors discovered" for
// deployments that never configure a search oracle.
func New(oracleURL, oracleKey, engineID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		OracleURL:  oracleURL,
		OracleKey:  oracleKey,
		EngineID:   engineID,
		Timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Query runs one search for the given query string and returns the
// raw hits. Any failure (missing oracle, network error, non-2xx
// status, unparseable body) yields an empty, non-error result: the
// search oracle is explicitly a best-effort collaborator (spec §6).
func (c *Client) Query(ctx context.Context, query string) []models.SearchResult {
	if c.OracleURL == "" {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := c.buildRequest(callCtx, query)
	if err != nil {
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	results, err := parseResults(body)
	if err != nil {
		return nil
	}
	return results
}

func (c *Client) buildRequest(ctx context.Context, query string) (*http.Request, error) {
	u, err := url.Parse(c.OracleURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", query)
	if c.EngineID != "" {
		q.Set("engine_id", c.EngineID)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.OracleKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.OracleKey)
	}
	return req, nil
}

type oraclePayload struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func parseResults(body []byte) ([]models.SearchResult, error) {
	var payload oraclePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Link:    item.Link,
			Title:   item.Title,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}

// Package perf is the Performance Client (spec §4.4): it calls an
// external performance oracle once per strategy (mobile, desktop),
// projects the oracle's nested JSON into models.PerfReport, and
// applies staleness and retry policy. Grounded on rohmanhakim/docs-
// crawler's internal/fetcher.HtmlFetcher (plain stdlib net/http GET,
// retry-wrapped, metadata-stamped result), adapted from HTML fetching
// to a JSON oracle client and retried via pkg/retryutil instead of
// docs-crawler's pkg/retry (the same exponential-backoff idiom, now
// driven by pkg/errs.Retryable).
package perf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/retryutil"
)

// OracleVersion is stamped into every PerfReport this client produces.
const OracleVersion = "geo-audit-perf-client/1"

const userAgent = "GeoAuditBot/1.0 (+performance-client)"

// maxAttempts is the spec §4.4/§7 "2 retries" (1 initial + 2 retries).
const maxAttempts = 3

// Client calls the external performance oracle (spec §4.4, §6
// PERF_ORACLE_URL/PERF_ORACLE_KEY).
type Client struct {
	OracleURL      string
	OracleKey      string
	CallTimeout    time.Duration
	StalenessAfter time.Duration

	httpClient *http.Client
}

// New constructs a Client. callTimeout is the per-call wall-clock
// budget (spec §4.4 default 60s); stalenessAfter is PERF_STALENESS_HOURS.
func New(oracleURL, oracleKey string, callTimeout, stalenessAfter time.Duration) *Client {
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	return &Client{
		OracleURL:      oracleURL,
		OracleKey:      oracleKey,
		CallTimeout:    callTimeout,
		StalenessAfter: stalenessAfter,
		httpClient:     &http.Client{},
	}
}

// FetchPerformance calls the oracle for both mobile and desktop
// strategies sequentially (spec §4.4: "sequentially or in parallel,
// implementation choice") and returns both reports. A failure on
// either strategy produces a PerfReport carrying a non-empty Error
// field rather than aborting the other strategy's call — callers that
// need "both succeeded" semantics check each report's Error.
func (c *Client) FetchPerformance(ctx context.Context, targetURL string) (mobile, desktop models.PerfReport, err error) {
	mobile = c.fetchOne(ctx, targetURL, models.StrategyMobile)
	desktop = c.fetchOne(ctx, targetURL, models.StrategyDesktop)
	if mobile.Error != "" && desktop.Error != "" {
		return mobile, desktop, errs.New(errs.KindNetwork, "performance oracle unavailable for both strategies")
	}
	return mobile, desktop, nil
}

// fetchOne calls the oracle once for one strategy, retrying per the
// pkg/retryutil policy, and always returns a usable PerfReport: on
// exhausted retries it returns a report stamped with Error set rather
// than propagating the error, so one strategy's outage never blocks
// the other (spec §4.4, §7).
func (c *Client) fetchOne(ctx context.Context, targetURL string, strategy models.Strategy) models.PerfReport {
	callCtx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	defer cancel()

	report, err := retryutil.Do(callCtx, maxAttempts, 500*time.Millisecond, 60*time.Second, func() (models.PerfReport, error) {
		return c.callOnce(callCtx, targetURL, strategy)
	})
	if err != nil {
		report = models.PerfReport{
			Strategy:      strategy,
			FetchedAt:     report.FetchedAt,
			OracleVersion: OracleVersion,
			UserAgent:     userAgent,
			Error:         err.Error(),
		}
	}
	return report
}

func (c *Client) callOnce(ctx context.Context, targetURL string, strategy models.Strategy) (models.PerfReport, error) {
	req, err := c.buildRequest(ctx, targetURL, strategy)
	if err != nil {
		return models.PerfReport{}, errs.Wrap(errs.KindInvalidConfig, "building oracle request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.PerfReport{}, errs.Wrap(errs.KindTimeout, "oracle call timed out", ctx.Err())
		}
		return models.PerfReport{}, errs.Wrap(errs.KindNetwork, "oracle call failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.PerfReport{}, errs.Wrap(errs.KindNetwork, "reading oracle response", err)
	}

	if kind := classifyStatus(resp.StatusCode); kind != "" {
		return models.PerfReport{}, errs.New(kind, fmt.Sprintf("oracle returned status %d", resp.StatusCode))
	}

	report, err := project(body, strategy)
	if err != nil {
		return models.PerfReport{}, errs.Wrap(errs.KindParseError, "projecting oracle response", err)
	}
	report.OracleVersion = OracleVersion
	report.UserAgent = userAgent
	return report, nil
}

func (c *Client) buildRequest(ctx context.Context, targetURL string, strategy models.Strategy) (*http.Request, error) {
	u, err := url.Parse(c.OracleURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("url", targetURL)
	q.Set("strategy", string(strategy))
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

func classifyStatus(code int) errs.Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return errs.KindRateLimited
	case code >= 500:
		return errs.KindHTTP5xx
	case code >= 400:
		return errs.KindHTTP4xx
	default:
		return ""
	}
}

// IsStale reports whether p should be treated as stale: either it is
// older than maxAge, or it carries a recorded Error (spec §4.4/§8
// "Staleness": "older than PERF_STALENESS_HOURS or marked with an
// error").
func IsStale(p models.PerfReport, maxAge time.Duration) bool {
	if p.Error != "" {
		return true
	}
	if p.FetchedAt.IsZero() {
		return true
	}
	return time.Since(p.FetchedAt) > maxAge
}

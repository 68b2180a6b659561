// Package fetcher implements the spec's Fetcher component (§4.1): a
// single GET with browser-like headers, bounded redirects, a wall-clock
// timeout, an SSRF guard applied before every socket connect (including
// across redirect hops), and response-size truncation. Grounded on
// rohmanhakim/docs-crawler's internal/fetcher/html.go performFetch
// (header set, status-code classification, content reading) adapted
// from docs-crawler's HTML-only fetch to the spec's generic
// fetch(url, timeout, mobile) contract, and on pkg/ssrf for the guard
// docs-crawler itself does not implement.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/ssrf"
)

// MaxRedirects bounds the redirect chain (spec §4.1: "Follows up to 5
// redirects").
const MaxRedirects = 5

// MaxBodyBytes bounds response body reads (spec §4.1: "Bodies larger
// than 8 MiB are truncated").
const MaxBodyBytes = 8 * 1024 * 1024

const (
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36"
)

// Result is the outcome of a single Fetch (spec §4.1 fetch() return
// tuple).
type Result struct {
	Status      int
	ContentType string
	Body        []byte
	FinalURL    string
	Truncated   bool
}

// Fetcher performs SSRF-guarded HTTP GETs on behalf of the Crawler and
// the seed/competitor audit stages.
type Fetcher struct {
	guard *ssrf.Guard
}

// New constructs a Fetcher backed by the given SSRF guard.
func New(guard *ssrf.Guard) *Fetcher {
	return &Fetcher{guard: guard}
}

// Fetch retrieves url with the given wall-clock timeout, selecting a
// mobile or desktop User-Agent/Accept-Language pair (spec §4.1). The
// SSRF guard is consulted before every socket connect the underlying
// transport makes, including connects triggered by redirect hops.
func (f *Fetcher) Fetch(ctx context.Context, target string, timeout time.Duration, mobile bool, language string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := f.checkHost(ctx, target); err != nil {
		return Result{}, err
	}

	client := f.newClient(timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindInvalidConfig, "malformed request URL", err)
	}
	for k, v := range requestHeaders(mobile, language) {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, errs.Wrap(errs.KindTimeout, fmt.Sprintf("fetch timed out after %s", timeout), err)
		}
		if ssrfErr, ok := errs.Of(err); ok && ssrfErr == errs.KindSSRFBlocked {
			return Result{}, errs.Wrap(errs.KindSSRFBlocked, "ssrf guard blocked request", err)
		}
		return Result{}, errs.Wrap(errs.KindNetwork, fmt.Sprintf("request to %s failed", target), err)
	}
	defer resp.Body.Close()

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	limited := io.LimitReader(resp.Body, MaxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindNetwork, "failed to read response body", err)
	}
	truncated := false
	if len(body) > MaxBodyBytes {
		body = body[:MaxBodyBytes]
		truncated = true
	}

	result := Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FinalURL:    finalURL,
		Truncated:   truncated,
	}

	if resp.StatusCode >= 400 {
		kind := classifyStatus(resp.StatusCode)
		return result, errs.New(kind, fmt.Sprintf("fetch of %s returned status %d", target, resp.StatusCode))
	}

	return result, nil
}

// checkHost resolves target's host through the SSRF guard before the
// client is even constructed, satisfying "the check is performed after
// DNS resolution, before socket connect" for the initial hop; redirect
// hops are covered by the dialer Control hook in newClient.
func (f *Fetcher) checkHost(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return errs.Wrap(errs.KindInvalidConfig, "malformed URL", err)
	}
	return f.guard.CheckHost(ctx, u.Hostname())
}

// newClient builds an http.Client whose dialer re-checks every connect
// address against the SSRF guard (covering redirects) and whose
// CheckRedirect enforces the bounded hop count.
func (f *Fetcher) newClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout, Control: f.guard.Control}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return errs.New(errs.KindHTTP4xx, fmt.Sprintf("stopped after %d redirects", MaxRedirects))
			}
			return nil
		},
	}
}

func requestHeaders(mobile bool, language string) map[string]string {
	ua := desktopUserAgent
	if mobile {
		ua = mobileUserAgent
	}
	acceptLanguage := "en-US,en;q=0.9"
	if language != "" {
		acceptLanguage = fmt.Sprintf("%s,en;q=0.8", language)
	}
	return map[string]string{
		"User-Agent":      ua,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": acceptLanguage,
	}
}

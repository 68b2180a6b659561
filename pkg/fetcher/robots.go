package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// CrawlUserAgent is the token the Crawler presents to robots.txt group
// matching (spec §4.3: "Respects robots.txt for the fetch User-Agent").
const CrawlUserAgent = "GeoAuditBot"

// RobotsRules answers whether a given path is allowed for the crawl
// User-Agent (spec §4.1 robots() return type).
type RobotsRules struct {
	data *robotstxt.RobotsData
}

// Allowed reports whether path may be fetched. A nil/empty ruleset
// (robots.txt absent, unparseable, or a non-2xx/4xx fetch outcome)
// permits everything, matching spec §4.6's "unparseable or 5xx treated
// as no rules".
func (r RobotsRules) Allowed(path string) bool {
	if r.data == nil {
		return true
	}
	return r.data.TestAgent(path, CrawlUserAgent)
}

// Robots fetches and parses /robots.txt for base's host (spec §4.1).
// A fetch failure, a non-2xx/4xx status, or unparseable content all
// degrade to "no rules" rather than propagating an error — robots.txt
// absence must never block a crawl.
func (f *Fetcher) Robots(ctx context.Context, base string, mobile bool) RobotsRules {
	u, err := url.Parse(base)
	if err != nil {
		return RobotsRules{}
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	result, err := f.Fetch(ctx, robotsURL, 10*time.Second, mobile, "")
	if err != nil {
		// Any non-2xx status (4xx: no robots.txt; 5xx: unreachable) or
		// network failure degrades to "no rules" per spec §4.6.
		return RobotsRules{}
	}

	data, err := robotstxt.FromBytes(result.Body)
	if err != nil {
		return RobotsRules{}
	}
	return RobotsRules{data: data}
}

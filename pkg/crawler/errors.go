package crawler

import "github.com/geoauditlabs/geo-audit-core/pkg/errs"

// CrawlError records a single non-fatal per-URL failure (spec §4.3:
// "per-URL fetch errors ... are recorded in the error list, never
// abort the crawl").
type CrawlError struct {
	URL     string
	Kind    errs.Kind
	Message string
}

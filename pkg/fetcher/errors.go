package fetcher

import "github.com/geoauditlabs/geo-audit-core/pkg/errs"

// classifyStatus maps an HTTP status code to an errs.Kind following
// spec §4.1/§4.3's fatal-vs-retryable split, grounded on
// rohmanhakim/docs-crawler's internal/fetcher/html.go performFetch
// status switch (5xx and 429 retryable, 4xx not, redirect-limit not).
func classifyStatus(code int) errs.Kind {
	switch {
	case code == 429:
		return errs.KindRateLimited
	case code >= 500:
		return errs.KindHTTP5xx
	case code >= 400:
		return errs.KindHTTP4xx
	default:
		return errs.KindInternal
	}
}

package models

import "time"

// Strategy selects the device profile the performance oracle scores.
type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

// CoreWebVitals holds the field/lab metrics named in spec §4.4.
type CoreWebVitals struct {
	LCPMillis  float64
	INPMillis  float64
	CLS        float64
	FCPMillis  float64
	TTFBMillis float64
}

// Opportunity is one "opportunities" entry from the oracle response
// (spec §4.4): id, title, display value, numeric value, and a nullable
// 0-1 severity score.
type Opportunity struct {
	ID           string
	Title        string
	DisplayValue string
	NumericValue float64
	Severity     *float64 // nil means "not scored" (null in the oracle payload)
}

// Diagnostic mirrors Opportunity's shape for the "diagnostics" map.
type Diagnostic struct {
	ID           string
	Title        string
	DisplayValue string
	NumericValue float64
}

// AuditRecord is one entry of a Lighthouse-style category audit map
// (audit-id -> record). The Performance Client must preserve every
// audit id end to end (spec §4.4: "At least 100 distinct audit ids
// must be preserved").
type AuditRecord struct {
	ID           string
	Title        string
	Description  string
	Score        *float64 // null is valid (not applicable)
	ScoreDisplay string   // "pass" | "average" | "fail" | ""
	DisplayValue string
}

// PerfReport is the projection of one oracle call (spec §4.4 PerfReport).
type PerfReport struct {
	Strategy Strategy

	PerformanceScore   float64
	AccessibilityScore float64
	BestPracticesScore float64
	SEOScore           float64

	Vitals CoreWebVitals

	Opportunities map[string]Opportunity
	Diagnostics   map[string]Diagnostic

	AccessibilityAudits map[string]AuditRecord
	SEOAudits           map[string]AuditRecord
	BestPracticesAudits map[string]AuditRecord

	FetchedAt     time.Time
	OracleVersion string
	UserAgent     string

	// Error, when non-empty, marks this report as a failed/errored
	// fetch attempt; IsStale treats it the same as an age-based
	// staleness marker (spec §4.4).
	Error string
}

// TotalAuditCount returns the number of distinct audit ids preserved
// across all three category maps, used to satisfy the "at least 100
// distinct audit ids" contract in spec §4.4.
func (p *PerfReport) TotalAuditCount() int {
	return len(p.AccessibilityAudits) + len(p.SEOAudits) + len(p.BestPracticesAudits)
}

// PerformancePair bundles the mobile+desktop results for one audit
// (spec §3 Audit.pagespeed_data).
type PerformancePair struct {
	Mobile  *PerfReport
	Desktop *PerfReport
}

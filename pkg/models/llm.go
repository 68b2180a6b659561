package models

// ExternalIntelligence is Agent 1's output (spec §4.5 Agent 1).
type ExternalIntelligence struct {
	IsYMYL        bool
	Category      string
	SearchQueries []string

	// Raw is set when the LLM response could not be parsed into the
	// structured fields above (spec §9 "Dynamic JSON": a tagged union
	// Structured | Raw). Downstream code must never attempt to coerce
	// Raw into the structured fields.
	Raw string

	// Unavailable is set when the underlying LLM call itself failed
	// (primary and fallback backend both unreachable/erroring), as
	// opposed to Raw's case of a response that arrived but didn't
	// parse (spec §8 S5 "LLM total outage").
	Unavailable bool
}

// SearchResult is one item from the competitor-discovery search oracle
// (spec §6 Search oracle).
type SearchResult struct {
	Link    string
	Title   string
	Snippet string
}

// AuxiliaryContext carries optional auxiliary data the synthesizer may
// use when present: keyword lists, backlink summaries, rank tracking,
// LLM-visibility probes, content suggestions (spec §4.5 Agent 2,
// §9 "Duck-typed optional data"). Each field is independently nullable;
// the prompt builder walks only the fields that are non-nil. There is
// no sentinel "empty" struct used to mean absence — a nil field means
// absent, full stop.
type AuxiliaryContext struct {
	Keywords        []string
	BacklinkSummary *BacklinkSummary
	RankTracking    []RankEntry
	LLMVisibility   *LLMVisibilityProbe
	ContentSuggestions []string
}

// BacklinkSummary is optional auxiliary backlink data.
type BacklinkSummary struct {
	TotalBacklinks   int
	ReferringDomains int
	DomainAuthority  float64
}

// RankEntry is one keyword's tracked search ranking.
type RankEntry struct {
	Keyword  string
	Position int
}

// LLMVisibilityProbe is optional data about how often an LLM cites the
// target when asked about its topic — the signal the Citation Signals
// dimension is reserved for (spec §4.2, §9 Open Questions).
type LLMVisibilityProbe struct {
	Probed      bool
	CitedCount  int
	TotalProbes int
}

// SynthesizerOutput is Agent 2's output (spec §4.5 Agent 2).
type SynthesizerOutput struct {
	ReportMarkdown string
	FixPlan        []FixItem

	// Raw mirrors ExternalIntelligence.Raw: set on unparsed responses.
	Raw string

	// Unavailable mirrors ExternalIntelligence.Unavailable: set when
	// the LLM call itself failed rather than merely returning an
	// unparsable response.
	Unavailable bool
}

// RequiredReportSections are the nine sections the synthesized Markdown
// report must contain (spec §4.5 Agent 2).
var RequiredReportSections = []string{
	"Executive Summary",
	"Methodology",
	"Content Inventory",
	"Technical & Semantic Diagnostic",
	"Competitive Gaps",
	"Action Plan",
	"RACI",
	"Roadmap",
	"Metrics & KPIs",
}

package models

// Priority orders FixItems for remediation planning (spec §3 FixItem).
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// priorityRank gives a total order for sorting FixItems, critical
// first. Used by the LLM synthesizer to order the fix plan parsed from
// the model's reply.
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Rank returns priorityRank[p], defaulting unknown priorities to the
// lowest rank so malformed LLM output never sorts ahead of real items.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// Dimension names a scoring category a FixItem addresses, matching the
// six Page Analyzer dimensions (spec §4.2).
type Dimension string

const (
	DimensionStructure Dimension = "structure"
	DimensionContent   Dimension = "content"
	DimensionEEAT      Dimension = "eeat"
	DimensionSchema    Dimension = "schema"
	DimensionTechnical Dimension = "technical"
	DimensionCitation  Dimension = "citation_signals"
)

// FixItem is a single prioritized recommendation (spec §3 FixItem).
type FixItem struct {
	Issue            string
	Priority         Priority
	Page             string // path, or "site"
	CurrentValue     string // optional
	RecommendedValue string
	Category         Dimension // optional
}

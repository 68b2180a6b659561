package models

import "time"

// CheckStatus is a pass/warn/fail tri-state used by several structural
// checks (spec §4.2).
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// Dimension weights, spec §4.2 and the GEO-score invariant in §8.
const (
	WeightStructure = 0.20
	WeightContent   = 0.20
	WeightEEAT      = 0.25
	WeightSchema    = 0.15
	WeightTechnical = 0.10
	WeightCitation  = 0.10
)

// StructureReport is the "Structure" dimension (spec §4.2, weight 20%).
type StructureReport struct {
	Score            float64
	H1Check          CheckStatus
	H1Count          int
	HeadingHierarchy []string // issues, e.g. "skipped H2 -> H4"
	ListUsage        int
	TableUsage       int
	SemanticHTML     float64 // percentage of recognized semantic tags present
}

// ContentReport is the "Content" dimension (weight 20%).
type ContentReport struct {
	Score                float64
	FragmentClarity      int // 0-10
	ConversationalTone   int // 0-10
	QuestionTargeting    CheckStatus
	InvertedPyramidStyle CheckStatus
	Error                string // set when the document could not be parsed
}

// EEATReport is the "E-E-A-T" dimension (weight 25%, highest).
type EEATReport struct {
	Score                  float64
	AuthorPresence         CheckStatus
	AuthorName             string
	ExternalLinks          int
	AuthoritativeLinks     int
	NewestContentDate      *time.Time
	ContentStale           bool // newest date > 18 months old
	HasAboutLink           bool
	HasContactLink         bool
	HasPrivacyLink         bool
}

// SchemaReport is the "Schema" dimension (weight 15%).
type SchemaReport struct {
	Score           float64
	SchemaPresence  string // "present" | "absent"
	SchemaTypes     []string
	ParseErrors     []string
	Recommendations []string // missing types expected for the inferred page kind
}

// TechnicalReport is the "Technical" dimension (weight 10%).
type TechnicalReport struct {
	Score       float64
	MetaRobots  string
	HasViewport bool
	HasCharset  bool
	HasCanonical bool
	Status      int
	ContentType string
}

// CitationSignalsReport is the reserved "Citation Signals" slot (weight
// 10%). Contributes zero when no external probe is attached (spec §9
// Open Questions).
type CitationSignalsReport struct {
	Score    float64
	Attached bool
	Notes    string
}

// Grade is a letter grade derived from GEOScore (spec §4.2).
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeAMin  Grade = "A-"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeBMin  Grade = "B-"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// GradeFromScore maps a GEO score to its letter grade per the
// thresholds in spec §4.2.
func GradeFromScore(score float64) Grade {
	switch {
	case score >= 95:
		return GradeAPlus
	case score >= 90:
		return GradeA
	case score >= 85:
		return GradeAMin
	case score >= 80:
		return GradeBPlus
	case score >= 75:
		return GradeB
	case score >= 70:
		return GradeBMin
	case score >= 60:
		return GradeC
	case score >= 50:
		return GradeD
	default:
		return GradeF
	}
}

// PageReport is the per-URL score bundle (spec §3 PageReport).
type PageReport struct {
	URL         string
	Status      int
	ContentType string
	FetchedAt   time.Time
	Truncated   bool

	Structure StructureReport
	Content   ContentReport
	EEAT      EEATReport
	Schema    SchemaReport
	Technical TechnicalReport
	Citation  CitationSignalsReport

	GEOScore float64
	Grade    Grade

	// PageKind is the heuristically inferred kind of page (e.g.
	// "article", "faq", "product", "generic"), used to drive Schema
	// recommendations (spec §4.2 Schema).
	PageKind string
}

// GEOScoreOf computes the weighted sum described in spec §4.2/§8. It is
// a pure function of the six dimension sub-scores so that re-scoring a
// PageReport is always reproducible.
func GEOScoreOf(r *PageReport) float64 {
	return WeightStructure*r.Structure.Score +
		WeightContent*r.Content.Score +
		WeightEEAT*r.EEAT.Score +
		WeightSchema*r.Schema.Score +
		WeightTechnical*r.Technical.Score +
		WeightCitation*r.Citation.Score
}

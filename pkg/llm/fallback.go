package llm

import (
	"fmt"
	"strings"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

// FallbackReport builds the deterministic Markdown report and fix plan
// spec §4.5 Agent 2 requires when the LLM is unavailable or returns an
// unusable response: "a deterministic Markdown summary built from the
// scored PageReports, with FixItems synthesized from each page's
// highest-severity dimension findings."
func FallbackReport(in SynthesizerInput) models.SynthesizerOutput {
	return models.SynthesizerOutput{
		ReportMarkdown: fallbackMarkdown(in),
		FixPlan:        fallbackFixPlan(in),
	}
}

func fallbackMarkdown(in SynthesizerInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Executive Summary\n\n")
	fmt.Fprintf(&b, "%s scores **%.1f** (%s) on GEO readiness", in.Target.URL, in.Target.GEOScore, in.Target.Grade)
	if in.Incomplete {
		b.WriteString(". Some competitor or telemetry data could not be collected; this report reflects partial data")
	}
	b.WriteString(".\n\n")

	fmt.Fprintf(&b, "## Methodology\n\n")
	b.WriteString("Pages are scored across six dimensions — structure, content, E-E-A-T, schema, technical, and citation signals — each weighted per the standard GEO rubric. This section was generated by the deterministic fallback summarizer because the LLM synthesis step was unavailable.\n\n")

	fmt.Fprintf(&b, "## Content Inventory\n\n")
	fmt.Fprintf(&b, "- Target page kind: %s\n", orDefault(in.Target.PageKind, "generic"))
	fmt.Fprintf(&b, "- Schema types present: %s\n", orDefault(strings.Join(in.Target.Schema.SchemaTypes, ", "), "none"))
	fmt.Fprintf(&b, "- Author byline: %s\n\n", in.Target.EEAT.AuthorPresence)

	fmt.Fprintf(&b, "## Technical & Semantic Diagnostic\n\n")
	fmt.Fprintf(&b, "- H1 check: %s\n", in.Target.Structure.H1Check)
	fmt.Fprintf(&b, "- Semantic HTML coverage: %.0f%%\n", in.Target.Structure.SemanticHTML)
	fmt.Fprintf(&b, "- Meta robots: %s\n", orDefault(in.Target.Technical.MetaRobots, "index, follow"))
	fmt.Fprintf(&b, "- Canonical tag present: %t\n\n", in.Target.Technical.HasCanonical)

	fmt.Fprintf(&b, "## Competitive Gaps\n\n")
	if len(in.Competitors) == 0 {
		b.WriteString("No competitor data was available at synthesis time.\n\n")
	} else {
		for _, comp := range in.Competitors {
			fmt.Fprintf(&b, "- %s: GEO score %.1f (%s)\n", comp.URL, comp.GEOScore, comp.Grade)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Action Plan\n\n")
	fixPlan := fallbackFixPlan(in)
	if len(fixPlan) == 0 {
		b.WriteString("No remediation items were identified.\n\n")
	} else {
		for _, item := range fixPlan {
			fmt.Fprintf(&b, "- [%s] %s (%s): recommend %s\n", item.Priority, item.Issue, item.Page, item.RecommendedValue)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## RACI\n\n")
	b.WriteString("- Responsible: content/SEO owner\n- Accountable: site owner\n- Consulted: engineering\n- Informed: marketing stakeholders\n\n")

	fmt.Fprintf(&b, "## Roadmap\n\n")
	b.WriteString("1. Address critical and high priority items within 30 days.\n2. Address medium priority items within 90 days.\n3. Re-audit after remediation to confirm score improvement.\n\n")

	fmt.Fprintf(&b, "## Metrics & KPIs\n\n")
	fmt.Fprintf(&b, "- GEO score: %.1f (%s)\n", in.Target.GEOScore, in.Target.Grade)
	if in.Performance != nil && in.Performance.Mobile != nil {
		fmt.Fprintf(&b, "- Mobile performance score: %.1f\n", in.Performance.Mobile.PerformanceScore)
	}
	if in.Performance != nil && in.Performance.Desktop != nil {
		fmt.Fprintf(&b, "- Desktop performance score: %.1f\n", in.Performance.Desktop.PerformanceScore)
	}

	return b.String()
}

// fallbackFixPlan synthesizes FixItems from a fixed set of rule checks
// on the target page only (schema presence, H1, author, content
// freshness, noindex, canonical), with a single catch-all item when no
// check fires. Competitor pages are not examined, and dimensions are
// not ranked by score.
func fallbackFixPlan(in SynthesizerInput) []models.FixItem {
	var items []models.FixItem

	if in.Target.Schema.SchemaPresence == "absent" {
		items = append(items, models.FixItem{
			Issue:            "missing schema markup",
			Priority:         models.PriorityCritical,
			Page:             pagePathOf(in.Target.URL),
			RecommendedValue: "add Organization and Article/FAQPage JSON-LD schema",
			Category:         models.DimensionSchema,
		})
	}
	if in.Target.Structure.H1Check == models.CheckFail {
		items = append(items, models.FixItem{
			Issue:            "no H1 heading found",
			Priority:         models.PriorityHigh,
			Page:             pagePathOf(in.Target.URL),
			RecommendedValue: "add exactly one H1 describing the page's primary topic",
			Category:         models.DimensionStructure,
		})
	} else if in.Target.Structure.H1Check == models.CheckWarn {
		items = append(items, models.FixItem{
			Issue:            "multiple H1 headings found",
			Priority:         models.PriorityMedium,
			Page:             pagePathOf(in.Target.URL),
			RecommendedValue: "keep exactly one H1 per page",
			Category:         models.DimensionStructure,
		})
	}
	if in.Target.EEAT.AuthorPresence == models.CheckFail {
		items = append(items, models.FixItem{
			Issue:            "no author byline found",
			Priority:         models.PriorityHigh,
			Page:             pagePathOf(in.Target.URL),
			RecommendedValue: "add an author byline with schema author markup",
			Category:         models.DimensionEEAT,
		})
	}
	if in.Target.EEAT.ContentStale {
		items = append(items, models.FixItem{
			Issue:            "content freshness signal is stale",
			Priority:         models.PriorityMedium,
			Page:             pagePathOf(in.Target.URL),
			RecommendedValue: "update or re-date the page's content",
			Category:         models.DimensionEEAT,
		})
	}
	if in.Target.Technical.MetaRobots != "" && strings.Contains(in.Target.Technical.MetaRobots, "noindex") {
		items = append(items, models.FixItem{
			Issue:            "page is marked noindex",
			Priority:         models.PriorityCritical,
			Page:             pagePathOf(in.Target.URL),
			RecommendedValue: "remove noindex directive if the page should be discoverable",
			Category:         models.DimensionTechnical,
		})
	}
	if !in.Target.Technical.HasCanonical {
		items = append(items, models.FixItem{
			Issue:            "missing canonical tag",
			Priority:         models.PriorityLow,
			Page:             pagePathOf(in.Target.URL),
			RecommendedValue: "add a self-referencing canonical link tag",
			Category:         models.DimensionTechnical,
		})
	}

	if len(items) == 0 {
		items = append(items, models.FixItem{
			Issue:            "no automated findings",
			Priority:         models.PriorityLow,
			Page:             "site",
			RecommendedValue: "manual review recommended",
		})
	}

	return items
}

func pagePathOf(rawURL string) string {
	idx := strings.Index(rawURL, "://")
	if idx == -1 {
		return rawURL
	}
	rest := rawURL[idx+3:]
	slash := strings.IndexByte(rest, '/')
	if slash == -1 {
		return "/"
	}
	return rest[slash:]
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/urlnorm"
)

const classifierSystemPrompt = `You are a classification assistant for a website audit system.
Given a summary of a web page, respond with a single JSON object:
{"is_ymyl": bool, "category": string, "search_queries": [string, ...]}
is_ymyl marks "Your Money or Your Life" content (health, finance, safety, legal).
search_queries are 1-5 short queries useful for finding this page's competitors.
Respond with JSON only, no prose.`

const synthesizerSystemPrompt = `You are a report-writing assistant for a website audit system.
Given scored page data for a target site and its competitors, respond with a single JSON object:
{"report_markdown": string, "fix_plan": [{"issue": string, "priority": "critical"|"high"|"medium"|"low", "page": string, "current_value": string, "recommended_value": string, "category": string}, ...]}
report_markdown must be a Markdown document containing exactly these nine "## " sections, in order:
Executive Summary, Methodology, Content Inventory, Technical & Semantic Diagnostic, Competitive Gaps, Action Plan, RACI, Roadmap, Metrics & KPIs.
Respond with JSON only, no prose.`

// ClassifyTarget runs Agent 1 — External Intelligence Classifier (spec
// §4.5 Agent 1). On any LLM failure it returns the fixed deterministic
// fallback (is_ymyl=false, category="General", search_queries=[host]).
func (c *Client) ClassifyTarget(ctx context.Context, target *models.PageReport) models.ExternalIntelligence {
	host := urlnorm.Host(target.URL)
	fallback := models.ExternalIntelligence{
		IsYMYL:        false,
		Category:      "General",
		SearchQueries: []string{host},
	}

	prompt := classifierPrompt(target)
	response, err := c.Call(ctx, classifierSystemPrompt, prompt, 512, 0.2)
	if err != nil {
		fallback.Unavailable = true
		return fallback
	}

	var parsed struct {
		IsYMYL        bool     `json:"is_ymyl"`
		Category      string   `json:"category"`
		SearchQueries []string `json:"search_queries"`
	}
	if !ExtractJSON(response, &parsed) {
		fallback.Raw = response
		return fallback
	}
	if parsed.Category == "" {
		parsed.Category = "General"
	}
	if len(parsed.SearchQueries) == 0 {
		parsed.SearchQueries = []string{host}
	}
	return models.ExternalIntelligence{
		IsYMYL:        parsed.IsYMYL,
		Category:      parsed.Category,
		SearchQueries: parsed.SearchQueries,
	}
}

func classifierPrompt(target *models.PageReport) string {
	return fmt.Sprintf(
		"URL: %s\nGEO score: %.1f (%s)\nPage kind: %s\nAuthor present: %s\nSchema types: %s\n",
		target.URL, target.GEOScore, target.Grade, target.PageKind,
		target.EEAT.AuthorPresence, strings.Join(target.Schema.SchemaTypes, ", "),
	)
}

// SynthesizerInput bundles everything Agent 2 needs (spec §4.5 Agent
// 2 Inputs).
type SynthesizerInput struct {
	Target      *models.PageReport
	Competitors []models.PageReport
	Intel       models.ExternalIntelligence
	Performance *models.PerformancePair
	Auxiliary   *models.AuxiliaryContext
	Incomplete  bool
}

// Synthesize runs Agent 2 — Report Synthesizer (spec §4.5 Agent 2). On
// any LLM failure, or a response missing a required section, it
// returns the deterministic fallback report built by FallbackReport.
func (c *Client) Synthesize(ctx context.Context, in SynthesizerInput) models.SynthesizerOutput {
	prompt := synthesizerPrompt(in)
	response, err := c.Call(ctx, synthesizerSystemPrompt, prompt, 4096, 0.4)
	if err != nil {
		out := FallbackReport(in)
		out.Unavailable = true
		return out
	}

	var parsed struct {
		ReportMarkdown string `json:"report_markdown"`
		FixPlan        []struct {
			Issue            string `json:"issue"`
			Priority         string `json:"priority"`
			Page             string `json:"page"`
			CurrentValue     string `json:"current_value"`
			RecommendedValue string `json:"recommended_value"`
			Category         string `json:"category"`
		} `json:"fix_plan"`
	}
	if !ExtractJSON(response, &parsed) || !hasAllSections(parsed.ReportMarkdown) {
		out := FallbackReport(in)
		out.Raw = response
		return out
	}

	fixPlan := make([]models.FixItem, 0, len(parsed.FixPlan))
	for _, f := range parsed.FixPlan {
		fixPlan = append(fixPlan, models.FixItem{
			Issue:            f.Issue,
			Priority:         models.Priority(f.Priority),
			Page:             f.Page,
			CurrentValue:     f.CurrentValue,
			RecommendedValue: f.RecommendedValue,
			Category:         models.Dimension(f.Category),
		})
	}
	sort.SliceStable(fixPlan, func(i, j int) bool { return fixPlan[i].Priority.Rank() < fixPlan[j].Priority.Rank() })

	return models.SynthesizerOutput{
		ReportMarkdown: parsed.ReportMarkdown,
		FixPlan:        fixPlan,
	}
}

func hasAllSections(markdown string) bool {
	if markdown == "" {
		return false
	}
	for _, section := range models.RequiredReportSections {
		if !strings.Contains(markdown, section) {
			return false
		}
	}
	return true
}

func synthesizerPrompt(in SynthesizerInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s (GEO score %.1f, grade %s)\n", in.Target.URL, in.Target.GEOScore, in.Target.Grade)
	fmt.Fprintf(&b, "Category: %s, YMYL: %t\n", in.Intel.Category, in.Intel.IsYMYL)
	fmt.Fprintf(&b, "Incomplete data: %t\n", in.Incomplete)
	fmt.Fprintf(&b, "Competitors analyzed: %d\n", len(in.Competitors))
	for _, comp := range in.Competitors {
		fmt.Fprintf(&b, "- %s: GEO score %.1f (%s)\n", comp.URL, comp.GEOScore, comp.Grade)
	}
	if in.Performance != nil && in.Performance.Mobile != nil {
		fmt.Fprintf(&b, "Mobile performance score: %.1f\n", in.Performance.Mobile.PerformanceScore)
	}
	if in.Performance != nil && in.Performance.Desktop != nil {
		fmt.Fprintf(&b, "Desktop performance score: %.1f\n", in.Performance.Desktop.PerformanceScore)
	}
	if in.Auxiliary != nil && len(in.Auxiliary.Keywords) > 0 {
		fmt.Fprintf(&b, "Tracked keywords: %s\n", strings.Join(in.Auxiliary.Keywords, ", "))
	}
	return b.String()
}

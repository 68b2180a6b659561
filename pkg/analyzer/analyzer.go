// Package analyzer implements the Page Analyzer (spec §4.2): turns a
// fetched page's raw bytes into a scored PageReport across six
// dimensions. Grounded on rohmanhakim/docs-crawler's
// internal/extractor/dom.go for the goquery-on-top-of-golang.org/x/net/html
// parsing shape and its "never panic on malformed input" discipline
// (isValidHTML / graceful degrade instead of propagating a parse
// panic), adapted from content-extraction heuristics to GEO-scoring
// heuristics.
package analyzer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

// Analyze scores body as the given contentType fetched from url. It
// never panics: a malformed document yields a PageReport with all
// dimension scores zero and a single content.error note (spec §4.2).
func Analyze(url string, status int, body []byte, contentType string) (report models.PageReport) {
	defer func() {
		if r := recover(); r != nil {
			report = unparseableReport(url, status, contentType, fmt.Sprintf("panic recovered: %v", r))
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil || doc == nil {
		return unparseableReport(url, status, contentType, fmt.Sprintf("failed to parse HTML: %v", err))
	}

	pageKind := inferPageKind(doc)

	report = models.PageReport{
		URL:         url,
		Status:      status,
		ContentType: contentType,
		PageKind:    pageKind,
	}

	report.Structure = analyzeStructure(doc)
	report.Content = analyzeContent(doc)
	report.EEAT = analyzeEEAT(doc, url)
	report.Schema = analyzeSchema(doc, pageKind)
	report.Technical = analyzeTechnical(doc, status, contentType)
	report.Citation = CitationSignalsReport()

	report.GEOScore = models.GEOScoreOf(&report)
	report.Grade = models.GradeFromScore(report.GEOScore)
	return report
}

// unparseableReport builds the degraded PageReport spec §4.2 requires
// for documents that cannot be parsed at all: status preserved, every
// dimension score zero, a single content.error note.
func unparseableReport(url string, status int, contentType, reason string) models.PageReport {
	r := models.PageReport{
		URL:         url,
		Status:      status,
		ContentType: contentType,
		PageKind:    "generic",
		Content:     models.ContentReport{Error: reason},
	}
	r.GEOScore = models.GEOScoreOf(&r)
	r.Grade = models.GradeFromScore(r.GEOScore)
	return r
}

// inferPageKind heuristically classifies the page for Schema
// recommendation purposes (spec §4.2 Schema: "missing types commonly
// expected for the inferred page kind").
func inferPageKind(doc *goquery.Document) string {
	if doc.Find("h1, h2, h3").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), "?")
	}).Length() >= 3 {
		return "faq"
	}
	if doc.Find("article").Length() > 0 || doc.Find("time, [itemprop='datePublished']").Length() > 0 {
		return "article"
	}
	if doc.Find("[itemtype*='Product'], .price, [class*='product']").Length() > 0 {
		return "product"
	}
	return "generic"
}

// CitationSignalsReport returns the reserved citation-signals slot.
// Exported because the orchestrator attaches external data (e.g.
// LLM-visibility probes) after the fact and must re-derive the same
// zero-value contract the analyzer uses when nothing is attached
// (spec §4.2 Citation Signals, §9 Open Questions).
func CitationSignalsReport() models.CitationSignalsReport {
	return models.CitationSignalsReport{Score: 0, Attached: false}
}

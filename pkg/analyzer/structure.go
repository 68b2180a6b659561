package analyzer

import (
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

// semanticTags are the semantic HTML5 landmark elements counted for
// the semantic_html sub-score (spec §4.2 Structure).
var semanticTags = []string{"article", "section", "nav", "main", "aside", "header", "footer"}

func analyzeStructure(doc *goquery.Document) models.StructureReport {
	h1s := doc.Find("h1")
	r := models.StructureReport{H1Count: h1s.Length()}

	switch {
	case r.H1Count == 1:
		r.H1Check = models.CheckPass
	case r.H1Count == 0:
		r.H1Check = models.CheckFail
	default:
		r.H1Check = models.CheckWarn
	}

	r.HeadingHierarchy = headingHierarchyIssues(doc)
	r.ListUsage = doc.Find("ul, ol").Length()
	r.TableUsage = doc.Find("table").Length()

	present := 0
	for _, tag := range semanticTags {
		if doc.Find(tag).Length() > 0 {
			present++
		}
	}
	r.SemanticHTML = 100 * float64(present) / float64(len(semanticTags))

	r.Score = structureScore(r)
	return r
}

// headingHierarchyIssues walks headings in document order and flags
// any jump that skips a level, e.g. H2 -> H4 (spec §4.2 Structure
// heading_hierarchy).
func headingHierarchyIssues(doc *goquery.Document) []string {
	var issues []string
	lastLevel := 0
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level := headingLevel(goquery.NodeName(s))
		if lastLevel != 0 && level > lastLevel+1 {
			issues = append(issues, fmt.Sprintf("skipped H%d -> H%d", lastLevel, level))
		}
		lastLevel = level
	})
	return issues
}

func headingLevel(tag string) int {
	if len(tag) != 2 || tag[0] != 'h' {
		return 0
	}
	n, err := strconv.Atoi(string(tag[1]))
	if err != nil {
		return 0
	}
	return n
}

// structureScore combines the sub-checks into the dimension's 0-100
// score: h1 correctness and heading hierarchy dominate (spec lists
// h1_check first and calls heading skips "an issue"), semantic markup
// and list/table usage round it out.
func structureScore(r models.StructureReport) float64 {
	h1Score := 0.0
	switch r.H1Check {
	case models.CheckPass:
		h1Score = 100
	case models.CheckWarn:
		h1Score = 50
	case models.CheckFail:
		h1Score = 0
	}

	hierarchyScore := 100.0 - float64(len(r.HeadingHierarchy))*20.0
	if hierarchyScore < 0 {
		hierarchyScore = 0
	}

	usageScore := 0.0
	if r.ListUsage > 0 {
		usageScore += 50
	}
	if r.TableUsage > 0 {
		usageScore += 50
	}

	return 0.35*h1Score + 0.30*hierarchyScore + 0.20*r.SemanticHTML + 0.15*usageScore
}

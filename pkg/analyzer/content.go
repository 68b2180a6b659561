package analyzer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+\s*`)

var firstOrSecondPerson = regexp.MustCompile(`(?i)\b(i|we|you|your|our|us|my|me)\b`)

func analyzeContent(doc *goquery.Document) models.ContentReport {
	body := bodyText(doc)
	leadText := leadParagraphBefore300Chars(doc)

	r := models.ContentReport{
		FragmentClarity:      fragmentClarity(leadText),
		ConversationalTone:   conversationalTone(body),
		QuestionTargeting:    questionTargeting(body, doc),
		InvertedPyramidStyle: invertedPyramidStyle(body),
	}
	r.Score = contentScore(r)
	return r
}

func bodyText(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("body").Text())
}

// leadParagraphBefore300Chars returns the text appearing before the
// first sub-heading within the document's first 300 characters (spec
// §4.2 Content fragment_clarity: "inverted-pyramid" check).
func leadParagraphBefore300Chars(doc *goquery.Document) string {
	text := bodyText(doc)
	firstHeading := doc.Find("h2, h3, h4, h5, h6").First()
	cut := len(text)
	if firstHeading.Length() > 0 {
		headingText := strings.TrimSpace(firstHeading.Text())
		if idx := strings.Index(text, headingText); idx > 0 {
			cut = idx
		}
	}
	if cut > 300 {
		cut = 300
	}
	if cut > len(text) {
		cut = len(text)
	}
	return strings.TrimSpace(text[:cut])
}

// fragmentClarity scores 0-10 based on whether a substantive lead
// paragraph precedes any sub-heading (spec §4.2 Content).
func fragmentClarity(lead string) int {
	words := len(strings.Fields(lead))
	switch {
	case words >= 40:
		return 10
	case words >= 20:
		return 7
	case words >= 8:
		return 4
	case words > 0:
		return 2
	default:
		return 0
	}
}

// conversationalTone scores 0-10 based on first/second-person pronoun
// density in the body text (spec §4.2 Content).
func conversationalTone(body string) int {
	words := strings.Fields(body)
	if len(words) == 0 {
		return 0
	}
	matches := firstOrSecondPerson.FindAllString(body, -1)
	density := float64(len(matches)) / float64(len(words))
	score := int(density * 400)
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}
	return score
}

// questionTargeting: pass if the page contains >=3 sentences ending in
// '?' or a recognizable FAQ block (spec §4.2 Content).
func questionTargeting(body string, doc *goquery.Document) models.CheckStatus {
	questionCount := strings.Count(body, "?")
	hasFAQBlock := doc.Find("[itemtype*='FAQPage'], .faq, #faq, [class*='faq']").Length() > 0
	if questionCount >= 3 || hasFAQBlock {
		return models.CheckPass
	}
	return models.CheckFail
}

// invertedPyramidStyle: pass if a direct answer appears in the first
// two sentences (heuristically: the first two sentences are
// substantive, non-question, declarative sentences with reasonable
// length) (spec §4.2 Content).
func invertedPyramidStyle(body string) models.CheckStatus {
	sentences := sentenceSplit.Split(body, -1)
	count := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		count++
		if count > 2 {
			break
		}
		if len(strings.Fields(s)) < 5 {
			return models.CheckFail
		}
	}
	if count == 0 {
		return models.CheckFail
	}
	return models.CheckPass
}

func contentScore(r models.ContentReport) float64 {
	score := float64(r.FragmentClarity)*5 + float64(r.ConversationalTone)*3
	if r.QuestionTargeting == models.CheckPass {
		score += 15
	}
	if r.InvertedPyramidStyle == models.CheckPass {
		score += 15
	}
	if score > 100 {
		score = 100
	}
	return score
}

package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

const defaultMetaRobots = "index, follow"

func analyzeTechnical(doc *goquery.Document, status int, contentType string) models.TechnicalReport {
	r := models.TechnicalReport{
		Status:      status,
		ContentType: contentType,
		MetaRobots:  defaultMetaRobots,
	}

	if content, ok := doc.Find(`meta[name="robots"]`).First().Attr("content"); ok && strings.TrimSpace(content) != "" {
		r.MetaRobots = strings.TrimSpace(content)
	}

	r.HasViewport = doc.Find(`meta[name="viewport"]`).Length() > 0
	r.HasCharset = doc.Find(`meta[charset]`).Length() > 0 || doc.Find(`meta[http-equiv="Content-Type"]`).Length() > 0
	r.HasCanonical = doc.Find(`link[rel="canonical"]`).Length() > 0

	r.Score = technicalScore(r)
	return r
}

func technicalScore(r models.TechnicalReport) float64 {
	score := 0.0
	if !strings.Contains(strings.ToLower(r.MetaRobots), "noindex") {
		score += 30
	}
	if r.HasViewport {
		score += 25
	}
	if r.HasCharset {
		score += 20
	}
	if r.HasCanonical {
		score += 15
	}
	if r.Status >= 200 && r.Status < 300 {
		score += 10
	}
	return score
}

package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

func analyzeSchema(doc *goquery.Document, pageKind string) models.SchemaReport {
	r := models.SchemaReport{SchemaPresence: "absent"}
	typeSet := map[string]bool{}

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			r.ParseErrors = append(r.ParseErrors, fmt.Sprintf("block %d: %v", i, err))
			return
		}
		collectSchemaTypes(payload, typeSet)
	})

	if len(typeSet) > 0 {
		r.SchemaPresence = "present"
	}
	for t := range typeSet {
		r.SchemaTypes = append(r.SchemaTypes, t)
	}

	r.Recommendations = schemaRecommendations(typeSet, pageKind)
	r.Score = schemaScore(r, typeSet)
	return r
}

func collectSchemaTypes(v any, into map[string]bool) {
	switch val := v.(type) {
	case map[string]any:
		if raw, ok := val["@type"]; ok {
			switch t := raw.(type) {
			case string:
				into[t] = true
			case []any:
				for _, item := range t {
					if s, ok := item.(string); ok {
						into[s] = true
					}
				}
			}
		}
		for _, nested := range val {
			collectSchemaTypes(nested, into)
		}
	case []any:
		for _, item := range val {
			collectSchemaTypes(item, into)
		}
	}
}

// schemaRecommendations generates recommendations for missing types
// commonly expected for the inferred page kind (spec §4.2 Schema):
// Article for blog-like pages, FAQPage when Q&A detected, Organization
// always.
func schemaRecommendations(present map[string]bool, pageKind string) []string {
	var recs []string
	if !present["Organization"] {
		recs = append(recs, "Organization")
	}
	switch pageKind {
	case "article":
		if !present["Article"] && !present["BlogPosting"] && !present["NewsArticle"] {
			recs = append(recs, "Article")
		}
	case "faq":
		if !present["FAQPage"] {
			recs = append(recs, "FAQPage")
		}
	case "product":
		if !present["Product"] {
			recs = append(recs, "Product")
		}
	}
	return recs
}

func schemaScore(r models.SchemaReport, present map[string]bool) float64 {
	if r.SchemaPresence == "absent" {
		return 0
	}
	score := 50.0
	score += float64(len(present)) * 10
	missing := len(r.Recommendations)
	score -= float64(missing) * 15
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

package analyzer

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

// authoritativeDomains is the curated allowlist of research/news
// domains counted alongside .edu/.gov for citations_and_sources
// (spec §4.2 E-E-A-T).
var authoritativeDomains = []string{
	"edu", "gov", "nature.com", "nih.gov", "who.int", "reuters.com",
	"apnews.com", "bbc.com", "nytimes.com", "wsj.com", "economist.com",
	"sciencedirect.com", "pubmed.ncbi.nlm.nih.gov",
}

var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

const freshnessWindow = 18 * 30 * 24 * time.Hour // 18 months, approximated in days

func analyzeEEAT(doc *goquery.Document, pageURL string) models.EEATReport {
	r := models.EEATReport{}

	r.AuthorPresence, r.AuthorName = authorPresence(doc)

	r.ExternalLinks, r.AuthoritativeLinks = countLinks(doc, pageURL)

	r.NewestContentDate = newestContentDate(doc)
	if r.NewestContentDate != nil {
		r.ContentStale = time.Since(*r.NewestContentDate) > freshnessWindow
	}

	r.HasAboutLink = hasChromeLink(doc, "about")
	r.HasContactLink = hasChromeLink(doc, "contact")
	r.HasPrivacyLink = hasChromeLink(doc, "privacy")

	r.Score = eeatScore(r)
	return r
}

// authorPresence checks schema author, <meta name="author">, or
// rel="author" links, in that priority order (spec §4.2 E-E-A-T).
func authorPresence(doc *goquery.Document) (models.CheckStatus, string) {
	if name := schemaAuthorName(doc); name != "" {
		return models.CheckPass, name
	}
	if meta, ok := doc.Find(`meta[name="author"]`).First().Attr("content"); ok && strings.TrimSpace(meta) != "" {
		return models.CheckPass, strings.TrimSpace(meta)
	}
	if link := doc.Find(`a[rel="author"]`).First(); link.Length() > 0 {
		if name := strings.TrimSpace(link.Text()); name != "" {
			return models.CheckPass, name
		}
	}
	return models.CheckFail, ""
}

func schemaAuthorName(doc *goquery.Document) string {
	name := ""
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		if n := findSchemaField(payload, "author"); n != "" {
			name = n
			return false
		}
		return true
	})
	return name
}

// findSchemaField walks a decoded JSON-LD value looking for a field
// named key, returning a human-readable name if found. JSON-LD
// "author" can be a string, an object with "name", or an array of
// either.
func findSchemaField(v any, key string) string {
	switch val := v.(type) {
	case map[string]any:
		if raw, ok := val[key]; ok {
			switch r := raw.(type) {
			case string:
				return r
			case map[string]any:
				if n, ok := r["name"].(string); ok {
					return n
				}
			case []any:
				for _, item := range r {
					if n := findSchemaField(map[string]any{key: item}, key); n != "" {
						return n
					}
				}
			}
		}
		for _, nested := range val {
			if n := findSchemaField(nested, key); n != "" {
				return n
			}
		}
	case []any:
		for _, item := range val {
			if n := findSchemaField(item, key); n != "" {
				return n
			}
		}
	}
	return ""
}

func countLinks(doc *goquery.Document, pageURL string) (external, authoritative int) {
	pageHost := ""
	if u, err := url.Parse(pageURL); err == nil {
		pageHost = strings.ToLower(u.Hostname())
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(href)
		if err != nil || u.Hostname() == "" {
			return
		}
		host := strings.ToLower(u.Hostname())
		if host == pageHost {
			return
		}
		external++
		if isAuthoritativeHost(host) {
			authoritative++
		}
	})
	return external, authoritative
}

func isAuthoritativeHost(host string) bool {
	for _, d := range authoritativeDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// newestContentDate extracts the newest ISO-8601/YYYY-MM-DD date found
// in <time> elements or schema datePublished/dateModified (spec §4.2
// E-E-A-T content_freshness).
func newestContentDate(doc *goquery.Document) *time.Time {
	var newest *time.Time

	consider := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		match := isoDatePattern.FindString(raw)
		if match == "" {
			return
		}
		t, err := time.Parse("2006-01-02", match)
		if err != nil {
			return
		}
		if newest == nil || t.After(*newest) {
			newest = &t
		}
	}

	doc.Find("time[datetime]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("datetime")
		consider(v)
	})
	doc.Find("time").Each(func(_ int, s *goquery.Selection) {
		consider(s.Text())
	})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		consider(findSchemaField(payload, "datePublished"))
		consider(findSchemaField(payload, "dateModified"))
	})

	return newest
}

func hasChromeLink(doc *goquery.Document, keyword string) bool {
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		text := strings.ToLower(s.Text())
		if strings.Contains(strings.ToLower(href), keyword) || strings.Contains(text, keyword) {
			found = true
			return false
		}
		return true
	})
	return found
}

func eeatScore(r models.EEATReport) float64 {
	score := 0.0
	if r.AuthorPresence == models.CheckPass {
		score += 30
	}
	if r.ExternalLinks > 0 {
		score += 15
	}
	if r.AuthoritativeLinks > 0 {
		score += 20
	}
	if r.NewestContentDate != nil && !r.ContentStale {
		score += 15
	}
	transparency := 0
	if r.HasAboutLink {
		transparency++
	}
	if r.HasContactLink {
		transparency++
	}
	if r.HasPrivacyLink {
		transparency++
	}
	score += float64(transparency) / 3.0 * 20
	if score > 100 {
		score = 100
	}
	return score
}

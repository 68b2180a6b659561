package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/geoauditlabs/geo-audit-core/pkg/urlnorm"
)

// discoverLinks extracts same-origin, non-skipped, normalized outbound
// links from a fetched page's body for frontier admission (spec §4.3:
// "outbound same-origin links discovered are added to frontier if
// unseen and cap not exceeded").
func discoverLinks(baseURL string, body []byte, originHost string, allowSubdomains bool) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil || doc == nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		normalized, err := urlnorm.Normalize(resolved.String())
		if err != nil {
			return
		}
		if !urlnorm.SameOrigin(originHost, urlnorm.Host(normalized), allowSubdomains) {
			return
		}
		if urlnorm.HasSkippedExtension(normalized) {
			return
		}
		links = append(links, normalized)
	})
	return links
}

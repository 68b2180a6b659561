package search

import (
	"strings"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/urlnorm"
)

// socialHosts are excluded from competitor discovery (spec §4.6 stage
// 5: "filter out social networks").
var socialHosts = map[string]bool{
	"facebook.com":  true,
	"twitter.com":   true,
	"x.com":         true,
	"instagram.com": true,
	"linkedin.com":  true,
	"youtube.com":   true,
	"tiktok.com":    true,
	"pinterest.com": true,
	"reddit.com":    true,
}

// SelectCompetitorHosts filters results from one or more queries down
// to the top N unique, eligible hosts, per spec §4.6 stage 5:
// social networks, the target's own host, and .edu/.gov hosts are
// excluded; order of first appearance is preserved across queries.
func SelectCompetitorHosts(results []models.SearchResult, targetHost string, limit int) []string {
	seen := make(map[string]bool)
	var hosts []string

	for _, r := range results {
		host := urlnorm.Host(r.Link)
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true

		if host == targetHost {
			continue
		}
		if isSocialHost(host) {
			continue
		}
		if strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".gov") {
			continue
		}

		hosts = append(hosts, host)
		if len(hosts) >= limit {
			break
		}
	}

	return hosts
}

func isSocialHost(host string) bool {
	if socialHosts[host] {
		return true
	}
	trimmed := strings.TrimPrefix(host, "www.")
	return socialHosts[trimmed]
}

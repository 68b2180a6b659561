package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoauditlabs/geo-audit-core/pkg/analyzer"
	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/fetcher"
	"github.com/geoauditlabs/geo-audit-core/pkg/ssrf"
)

func newTestSite(t *testing.T, pages map[string]string) *httptest.Server {
	mux := http.NewServeMux()
	for path, body := range pages {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(body))
		})
	}
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func TestCrawlDiscoversSameOriginLinks(t *testing.T) {
	srv := newTestSite(t, map[string]string{
		"/":     `<html><body><h1>Home</h1><a href="/page-a">A</a><a href="https://other.example.com/x">external</a></body></html>`,
		"/page-a": `<html><body><h1>Page A</h1><p>content</p></body></html>`,
	})
	defer srv.Close()

	f := fetcher.New(ssrf.New(true))
	c := New(f, 5, 5*time.Second)

	var ticks int
	results, crawlErrs := c.Crawl(context.Background(), srv.URL+"/", 10, false, "en", func(processed, cap int) {
		ticks++
	})

	assert.Empty(t, crawlErrs)
	assert.Len(t, results, 2)
	assert.Greater(t, ticks, 0)
}

func TestCrawlFatalOnSeedDNSFailure(t *testing.T) {
	f := fetcher.New(ssrf.New(true))
	c := New(f, 5, 500*time.Millisecond)

	results, crawlErrs := c.Crawl(context.Background(), "http://this-host-does-not-exist.invalid/", 10, false, "en", nil)
	assert.Nil(t, results)
	require.Len(t, crawlErrs, 1)
	assert.Equal(t, errs.KindNetwork, crawlErrs[0].Kind)
}

func TestCrawlRecordsNonFatalPerURLErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Home</h1><a href="/broken">broken</a></body></html>`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetcher.New(ssrf.New(true))
	c := New(f, 5, 5*time.Second)

	results, crawlErrs := c.Crawl(context.Background(), srv.URL+"/", 10, false, "en", nil)
	assert.Len(t, results, 1)
	require.Len(t, crawlErrs, 1)
	assert.Equal(t, errs.KindHTTP5xx, crawlErrs[0].Kind)
}

func TestCrawlRespectsCap(t *testing.T) {
	mux := http.NewServeMux()
	for i := 0; i < 20; i++ {
		path := fmt.Sprintf("/p%d", i)
		next := fmt.Sprintf("/p%d", i+1)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(fmt.Sprintf(`<html><body><h1>%s</h1><a href="%s">next</a></body></html>`, r.URL.Path, next)))
		})
	}
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetcher.New(ssrf.New(true))
	c := New(f, 3, 5*time.Second)

	results, _ := c.Crawl(context.Background(), srv.URL+"/p0", 5, false, "en", nil)
	assert.LessOrEqual(t, len(results), 5)
}

func TestCrawlWithPreparedSeedDoesNotRefetchOrReanalyzeSeed(t *testing.T) {
	var seedHits, pageAHits int
	mux := http.NewServeMux()
	seedBody := `<html><body><h1>Home</h1><a href="/page-a">A</a></body></html>`
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		seedHits++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(seedBody))
	})
	mux.HandleFunc("/page-a", func(w http.ResponseWriter, r *http.Request) {
		pageAHits++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Page A</h1></body></html>`))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetcher.New(ssrf.New(true))
	c := New(f, 5, 5*time.Second)

	seedURL := srv.URL + "/"
	seedReport := analyzer.Analyze(seedURL, 200, []byte(seedBody), "text/html")

	results, crawlErrs := c.Crawl(context.Background(), seedURL, 10, false, "en", nil,
		WithPreparedSeed(PreparedSeed{Report: seedReport, Body: []byte(seedBody)}))

	assert.Empty(t, crawlErrs)
	require.Len(t, results, 2)
	assert.Equal(t, 0, seedHits, "the seed URL must not be fetched again when a PreparedSeed is supplied")
	assert.Equal(t, 1, pageAHits, "the link discovered from the prepared seed's body must still be crawled")
}

func TestCrawlRespectsRobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Home</h1><a href="/private">p</a></body></html>`))
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Private</h1></body></html>`))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := fetcher.New(ssrf.New(true))
	c := New(f, 5, 5*time.Second)

	results, crawlErrs := c.Crawl(context.Background(), srv.URL+"/", 10, false, "en", nil)
	assert.Empty(t, crawlErrs)
	assert.Len(t, results, 1)
}

package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/geoauditlabs/geo-audit-core/pkg/analyzer"
	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/fetcher"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/urlnorm"
)

// ProgressFunc reports crawl progress every N = max(1, cap/20) pages
// processed (spec §4.3).
type ProgressFunc func(processed, cap int)

// PreparedSeed is a page already fetched and analyzed by an earlier
// stage, passed to Crawl via WithPreparedSeed so the crawl can expand
// from it without fetching or analyzing the seed URL a second time
// (spec §8: "For all (audit A, URL u), the Page Analyzer is invoked
// at most once during A's initial run"). Body is only used for link
// discovery; it is never re-analyzed.
type PreparedSeed struct {
	Report models.PageReport
	Body   []byte
}

// Option configures optional Crawl behavior.
type Option func(*crawlOptions)

type crawlOptions struct {
	preparedSeed *PreparedSeed
}

// WithPreparedSeed supplies a seed page an earlier stage already
// fetched and analyzed, so Crawl reuses it instead of fetching and
// analyzing the seed URL again.
func WithPreparedSeed(seed PreparedSeed) Option {
	return func(o *crawlOptions) { o.preparedSeed = &seed }
}

// Crawler drives a bounded-concurrency, robots-respecting crawl of a
// single site starting from a seed URL.
type Crawler struct {
	fetcher      *fetcher.Fetcher
	concurrency  int
	fetchTimeout time.Duration
}

// New constructs a Crawler backed by f, fetching at most concurrency
// pages in flight at a time (spec §4.3: "at most 5 concurrent
// fetches per audit"), each bounded by fetchTimeout (spec §4.1/§6
// FETCH_TIMEOUT_SECONDS).
func New(f *fetcher.Fetcher, concurrency int, fetchTimeout time.Duration) *Crawler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Crawler{fetcher: f, concurrency: concurrency, fetchTimeout: fetchTimeout}
}

// state is the mutex-guarded shared crawl state every worker touches;
// the frontier is a pure data structure (see frontier.go), all policy
// decisions (admission, cap enforcement) live here in the Crawler,
// mirroring docs-crawler's scheduler-is-the-sole-admission-authority
// discipline.
type state struct {
	mu         sync.Mutex
	cond       *sync.Cond
	fr         *frontier
	results    []models.PageReport
	errs       []CrawlError
	dispatched int
	pending    int

	// preparedSeed is read-only after Crawl sets it up and before any
	// worker goroutine starts, so it needs no lock of its own.
	preparedSeed *PreparedSeed
}

// Crawl crawls seed to the configured cap, respecting robots.txt and
// same-origin scope, and reports progress via onProgress (spec §4.3).
// A DNS failure resolving the seed itself is fatal and returns early
// with exactly one CrawlError; all other per-URL failures are
// recorded but never abort the crawl.
func (c *Crawler) Crawl(ctx context.Context, seed string, cap int, allowSubdomains bool, language string, onProgress ProgressFunc, opts ...Option) ([]models.PageReport, []CrawlError) {
	var options crawlOptions
	for _, opt := range opts {
		opt(&options)
	}

	normalizedSeed, err := urlnorm.Normalize(seed)
	if err != nil {
		return nil, []CrawlError{{URL: seed, Kind: errs.KindInvalidConfig, Message: err.Error()}}
	}
	originHost := urlnorm.Host(normalizedSeed)

	rules := c.fetcher.Robots(ctx, normalizedSeed, false)

	tickEvery := cap / 20
	if tickEvery < 1 {
		tickEvery = 1
	}

	st := &state{fr: newFrontier(normalizedSeed), preparedSeed: options.preparedSeed}
	st.cond = sync.NewCond(&st.mu)

	sem := semaphore.NewWeighted(int64(c.concurrency))
	var wg sync.WaitGroup

	seedFailed := false

	dispatch := func(pageURL string) {
		if err := sem.Acquire(ctx, 1); err != nil {
			st.mu.Lock()
			st.pending--
			st.cond.Broadcast()
			st.mu.Unlock()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			c.processOne(ctx, st, pageURL, originHost, allowSubdomains, language, rules, cap, pageURL == normalizedSeed, &seedFailed)

			st.mu.Lock()
			st.pending--
			if onProgress != nil && st.dispatched%tickEvery == 0 {
				onProgress(st.dispatched, cap)
			}
			st.cond.Broadcast()
			st.mu.Unlock()
		}()
	}

	st.mu.Lock()
	for {
		if ctx.Err() != nil {
			st.mu.Unlock()
			break
		}
		if st.fr.empty() {
			if st.pending == 0 {
				st.mu.Unlock()
				break
			}
			st.cond.Wait()
			continue
		}
		if st.dispatched >= cap {
			if st.pending == 0 {
				st.mu.Unlock()
				break
			}
			st.cond.Wait()
			continue
		}
		if seedFailed {
			st.mu.Unlock()
			break
		}
		pageURL, ok := st.fr.pop()
		if !ok {
			continue
		}
		st.dispatched++
		st.pending++
		st.mu.Unlock()

		dispatch(pageURL)

		st.mu.Lock()
	}

	wg.Wait()

	if seedFailed {
		return nil, st.errs
	}
	if onProgress != nil {
		onProgress(len(st.results), cap)
	}
	return st.results, st.errs
}

// processOne fetches and analyzes a single URL, records the outcome
// into the shared state, and (if room remains under cap) admits newly
// discovered same-origin links to the frontier.
func (c *Crawler) processOne(ctx context.Context, st *state, pageURL, originHost string, allowSubdomains bool, language string, rules fetcher.RobotsRules, cap int, isSeed bool, seedFailed *bool) {
	if isSeed && st.preparedSeed != nil {
		c.admitPreparedSeed(st, originHost, allowSubdomains, cap)
		return
	}

	if !rules.Allowed(pathOf(pageURL)) {
		return
	}

	result, err := c.fetcher.Fetch(ctx, pageURL, c.fetchTimeout, false, language)
	if err != nil {
		kind, ok := errs.Of(err)
		if !ok {
			kind = errs.KindInternal
		}
		if isSeed && kind == errs.KindNetwork {
			st.mu.Lock()
			*seedFailed = true
			st.errs = append(st.errs, CrawlError{URL: pageURL, Kind: kind, Message: err.Error()})
			st.mu.Unlock()
			return
		}
		st.mu.Lock()
		st.errs = append(st.errs, CrawlError{URL: pageURL, Kind: kind, Message: err.Error()})
		st.mu.Unlock()
		return
	}

	report := analyzer.Analyze(result.FinalURL, result.Status, result.Body, result.ContentType)
	report.Truncated = result.Truncated

	links := discoverLinks(result.FinalURL, result.Body, originHost, allowSubdomains)

	st.mu.Lock()
	st.results = append(st.results, report)
	if st.dispatched < cap {
		for _, link := range links {
			if st.dispatched >= cap {
				break
			}
			st.fr.admit(link)
		}
	}
	st.mu.Unlock()
}

// admitPreparedSeed records the seed's already-computed PageReport
// and discovers links from its already-fetched body, without invoking
// the fetcher or the Page Analyzer again.
func (c *Crawler) admitPreparedSeed(st *state, originHost string, allowSubdomains bool, cap int) {
	report := st.preparedSeed.Report
	links := discoverLinks(report.URL, st.preparedSeed.Body, originHost, allowSubdomains)

	st.mu.Lock()
	st.results = append(st.results, report)
	if st.dispatched < cap {
		for _, link := range links {
			if st.dispatched >= cap {
				break
			}
			st.fr.admit(link)
		}
	}
	st.mu.Unlock()
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoauditlabs/geo-audit-core/pkg/crawler"
	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/fetcher"
	"github.com/geoauditlabs/geo-audit-core/pkg/llm"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/perf"
	"github.com/geoauditlabs/geo-audit-core/pkg/search"
	"github.com/geoauditlabs/geo-audit-core/pkg/ssrf"
	"github.com/geoauditlabs/geo-audit-core/pkg/store/memory"
)

// recorder is a ProgressPublisher that keeps every event it sees, used
// in place of events.Bus so tests can assert on stage ordering without
// pulling in the bus's background heartbeat goroutine.
type recorder struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (r *recorder) Publish(e models.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Stage)
	}
	return out
}

func newTestOrchestrator(t *testing.T, st *memory.Store, allowLoopback bool) (*Orchestrator, *recorder) {
	t.Helper()
	guard := ssrf.New(allowLoopback)
	f := fetcher.New(guard)
	rec := &recorder{}

	o := &Orchestrator{
		Guard:              guard,
		Fetcher:            f,
		PrimaryCrawler:     crawler.New(f, 5, 5*time.Second),
		CompetitorCrawler:  crawler.New(f, 3, 5*time.Second),
		LLM:                llm.New(llm.Backend{}, nil, time.Second),
		Perf:               perf.New("", "", time.Second, time.Hour),
		Search:             search.New("", "", "", time.Second),
		Store:              st,
		Events:             rec,
		CompetitorCount:    3,
		CompetitorCrawlCap: 5,
		PerfStaleness:      time.Hour,
		regen:              make(map[int64]*sync.Mutex),
	}
	return o, rec
}

func newSeedSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Home</title></head><body><h1>Welcome</h1><p>Some content about our product.</p></body></html>`))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func TestRunHappyPathCompletesAndSynthesizesFallbackReport(t *testing.T) {
	srv := newSeedSite(t)
	defer srv.Close()

	st := memory.New()
	o, rec := newTestOrchestrator(t, st, true)

	audit := &models.Audit{
		OwnerSubjectID: "user-1",
		Config: models.AuditConfig{
			SeedURL:      srv.URL + "/",
			CrawlCap:     5,
			FetchTimeout: 5 * time.Second,
		},
	}
	audit.Config.Normalize()
	require.NoError(t, st.Put(context.Background(), audit))

	got, err := o.Run(context.Background(), audit)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Results.TargetAudit)
	assert.NotEmpty(t, got.Results.ReportMarkdown)
	for _, section := range models.RequiredReportSections {
		assert.Contains(t, got.Results.ReportMarkdown, section)
	}
	// The performance oracle is unconfigured in this test, so the
	// Performance stage must have recorded a non-fatal error and the
	// audit must be marked incomplete, never failed outright.
	assert.True(t, got.Results.Incomplete)
	assert.Contains(t, rec.stages(), StageFinalize)
	// Both LLM agents run against an empty backend (total outage), so
	// the warning list must mention llm_unavailable, not a parse error.
	assert.Contains(t, got.Results.Warnings, string(errs.KindLLMUnavailable))
	assert.NotContains(t, got.Results.Warnings, string(errs.KindParseError))

	stored, err := st.Get(context.Background(), audit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestRunFailsFastWhenSeedIsBlockedBySSRFGuard(t *testing.T) {
	srv := newSeedSite(t)
	defer srv.Close()

	st := memory.New()
	o, _ := newTestOrchestrator(t, st, false) // loopback disallowed

	audit := &models.Audit{
		Config: models.AuditConfig{SeedURL: srv.URL + "/", FetchTimeout: time.Second},
	}
	audit.Config.Normalize()
	require.NoError(t, st.Put(context.Background(), audit))

	got, err := o.Run(context.Background(), audit)
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.True(t, errs.IsKind(err, errs.KindSSRFBlocked))
	assert.Equal(t, StageValidate, got.CurrentStage)
}

func TestRunRecordsCompetitorFailureWithoutAbortingAudit(t *testing.T) {
	srv := newSeedSite(t)
	defer srv.Close()

	st := memory.New()
	o, _ := newTestOrchestrator(t, st, true)

	audit := &models.Audit{
		Config: models.AuditConfig{
			SeedURL:      srv.URL + "/",
			CrawlCap:     5,
			FetchTimeout: 5 * time.Second,
			Competitors:  []string{"http://this-competitor-does-not-exist.invalid/"},
		},
	}
	audit.Config.Normalize()
	require.NoError(t, st.Put(context.Background(), audit))

	got, err := o.Run(context.Background(), audit)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Empty(t, got.Results.CompetitorAudits)
	assert.True(t, got.Results.Incomplete)

	found := false
	for _, se := range got.Results.StageErrors {
		if se.Stage == StageCompetitorAudits {
			found = true
		}
	}
	assert.True(t, found, "expected a recorded stage error for the unreachable competitor")
}

// newUnparsableLLMServer answers every chat-completion call with a
// response whose content is plain prose, never valid JSON, forcing
// ClassifyTarget/Synthesize down the Raw partial-parse path rather
// than the total-outage path.
func newUnparsableLLMServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"sorry, I cannot help with that."}}]}`))
	})
	return httptest.NewServer(mux)
}

func TestRunWarnsParseErrorNotLLMUnavailableWhenResponseIsUnparsable(t *testing.T) {
	srv := newSeedSite(t)
	defer srv.Close()
	llmSrv := newUnparsableLLMServer(t)
	defer llmSrv.Close()

	st := memory.New()
	o, _ := newTestOrchestrator(t, st, true)
	o.LLM = llm.New(llm.Backend{URL: llmSrv.URL, Model: "test-model"}, nil, 5*time.Second)

	audit := &models.Audit{
		Config: models.AuditConfig{
			SeedURL:      srv.URL + "/",
			CrawlCap:     5,
			FetchTimeout: 5 * time.Second,
		},
	}
	audit.Config.Normalize()
	require.NoError(t, st.Put(context.Background(), audit))

	got, err := o.Run(context.Background(), audit)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Contains(t, got.Results.Warnings, string(errs.KindParseError))
	assert.NotContains(t, got.Results.Warnings, string(errs.KindLLMUnavailable))
}

func TestRegenerateSkipsPerformanceRefreshWhenDataIsFresh(t *testing.T) {
	st := memory.New()
	o, _ := newTestOrchestrator(t, st, true)

	fresh := models.PerfReport{Strategy: models.StrategyMobile, FetchedAt: time.Now()}
	freshDesktop := models.PerfReport{Strategy: models.StrategyDesktop, FetchedAt: time.Now()}
	audit := &models.Audit{
		Status: models.StatusCompleted,
		Config: models.AuditConfig{SeedURL: "https://example.com"},
		Results: models.AuditResults{
			TargetAudit:    &models.PageReport{URL: "https://example.com"},
			ReportMarkdown: "## Executive Summary\nold report\n",
			PagespeedData:  &models.PerformancePair{Mobile: &fresh, Desktop: &freshDesktop},
		},
	}
	require.NoError(t, st.Put(context.Background(), audit))

	err := o.Regenerate(context.Background(), audit.ID, false)
	require.NoError(t, err)

	got, err := st.Get(context.Background(), audit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, "## Executive Summary\nold report\n", got.Results.PriorReportMarkdown)
	// Performance data must be untouched since it was fresh and forcePerf was false.
	assert.Equal(t, fresh.FetchedAt, got.Results.PagespeedData.Mobile.FetchedAt)
}

func TestRegenerateRejectsConcurrentCallsForSameAudit(t *testing.T) {
	st := memory.New()
	o, _ := newTestOrchestrator(t, st, true)

	audit := &models.Audit{
		Status:  models.StatusCompleted,
		Config:  models.AuditConfig{SeedURL: "https://example.com"},
		Results: models.AuditResults{TargetAudit: &models.PageReport{URL: "https://example.com"}},
	}
	require.NoError(t, st.Put(context.Background(), audit))

	lock := o.lockFor(audit.ID)
	lock.Lock()
	defer lock.Unlock()

	err := o.Regenerate(context.Background(), audit.ID, false)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConflict))
}

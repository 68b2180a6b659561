// Package pipeline is the Pipeline Orchestrator (spec §4.6): it
// sequences the Fetcher, Page Analyzer, Crawler, Performance Client,
// Search client, and LLM Client & Agents through the nine fixed
// stages for one audit, writing a progress event and a persisted
// status update at the end of every stage, and applying spec §7's
// per-stage fatal/non-fatal failure policy.
//
// Grounded on teacher's pkg/agent/orchestrator/runner.go: a fixed
// sequence of named steps run against one record, each step emitting
// a status event and persisting incrementally, with step failures
// captured into the record rather than universally aborting the run
// (tarsy's ReAct iteration loop plays the same "keep going on
// recoverable step failure, synchronous call sites only" role this
// package's stage sequence plays for an audit).
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/analyzer"
	"github.com/geoauditlabs/geo-audit-core/pkg/config"
	"github.com/geoauditlabs/geo-audit-core/pkg/crawler"
	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/fetcher"
	"github.com/geoauditlabs/geo-audit-core/pkg/llm"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/perf"
	"github.com/geoauditlabs/geo-audit-core/pkg/search"
	"github.com/geoauditlabs/geo-audit-core/pkg/ssrf"
	"github.com/geoauditlabs/geo-audit-core/pkg/store"
	"github.com/geoauditlabs/geo-audit-core/pkg/urlnorm"
)

// Stage labels, used both as the ProgressEvent.Stage value and as the
// audit's CurrentStage (spec §4.6).
const (
	StageValidate            = "validate"
	StageSeedFetch           = "seed_fetch"
	StageCrawl               = "crawl"
	StageClassifier          = "classifier"
	StageCompetitorDiscovery = "competitor_discovery"
	StageCompetitorAudits    = "competitor_audits"
	StagePerformance         = "performance"
	StageSynthesize          = "synthesize"
	StageFinalize            = "finalize"
)

// Progress percentages for each stage's completion (spec §4.6).
const (
	PctValidate            = 5
	PctSeedFetch           = 15
	PctCrawl               = 35
	PctClassifier          = 45
	PctCompetitorDiscovery = 55
	PctCompetitorAudits    = 75
	PctPerformance         = 85
	PctSynthesize          = 95
	PctFinalize            = 100
)

// ProgressPublisher is the subset of events.Bus the orchestrator
// depends on, kept as an interface so tests can substitute a recorder
// (spec §9 "Global singletons": explicit dependencies everywhere).
type ProgressPublisher interface {
	Publish(models.ProgressEvent)
}

// Orchestrator runs one audit through the nine fixed stages.
type Orchestrator struct {
	Guard             *ssrf.Guard
	Fetcher           *fetcher.Fetcher
	PrimaryCrawler    *crawler.Crawler
	CompetitorCrawler *crawler.Crawler
	LLM               *llm.Client
	Perf              *perf.Client
	Search            *search.Client
	Store             store.Store
	Events            ProgressPublisher

	CompetitorCount    int
	CompetitorCrawlCap int
	PerfStaleness      time.Duration

	regenMu sync.Mutex
	regen   map[int64]*sync.Mutex
}

// New constructs an Orchestrator from its component dependencies and
// the resolved Config (spec §6 competitor/crawl settings).
func New(guard *ssrf.Guard, f *fetcher.Fetcher, primaryCrawler, competitorCrawler *crawler.Crawler, llmClient *llm.Client, perfClient *perf.Client, searchClient *search.Client, st store.Store, events ProgressPublisher, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		Guard:              guard,
		Fetcher:            f,
		PrimaryCrawler:     primaryCrawler,
		CompetitorCrawler:  competitorCrawler,
		LLM:                llmClient,
		Perf:               perfClient,
		Search:             searchClient,
		Store:              st,
		Events:             events,
		CompetitorCount:    cfg.Crawl.CompetitorCount,
		CompetitorCrawlCap: cfg.Crawl.CompetitorCrawlCap,
		PerfStaleness:      cfg.Perf.StalenessAfter,
		regen:              make(map[int64]*sync.Mutex),
	}
}

// Run executes all nine stages for audit in order, persisting and
// emitting progress after each (spec §4.6). audit.Status is set to
// Running on entry and to exactly one of Completed/Failed on return.
func (o *Orchestrator) Run(ctx context.Context, audit *models.Audit) (*models.Audit, error) {
	now := time.Now()
	audit.StartedAt = &now
	audit.Status = models.StatusRunning

	// Stage 1: Validate (fatal).
	normalizedSeed, err := o.validate(ctx, audit)
	if err != nil {
		return o.fail(ctx, audit, StageValidate, err)
	}
	o.advance(ctx, audit, StageValidate, PctValidate, "seed URL validated")

	if err := o.checkCanceled(ctx); err != nil {
		return o.fail(ctx, audit, StageValidate, err)
	}

	// Stage 2: Seed Fetch & Analyze (fatal).
	target, seedBody, err := o.seedFetchAndAnalyze(ctx, audit, normalizedSeed)
	if err != nil {
		return o.fail(ctx, audit, StageSeedFetch, err)
	}
	audit.Results.TargetAudit = target
	o.advance(ctx, audit, StageSeedFetch, PctSeedFetch, "seed page analyzed")

	if err := o.checkCanceled(ctx); err != nil {
		return o.fail(ctx, audit, StageSeedFetch, err)
	}

	// Stage 3: Crawl (non-fatal).
	o.crawlStage(ctx, audit, seedBody)
	o.advance(ctx, audit, StageCrawl, PctCrawl, "site crawl complete")

	if err := o.checkCanceled(ctx); err != nil {
		return o.fail(ctx, audit, StageCrawl, err)
	}

	// Stage 4: Classifier (non-fatal — always resolves via fallback).
	intel := o.LLM.ClassifyTarget(ctx, audit.Results.TargetAudit)
	audit.Results.ExternalIntel = &intel
	o.warnLLMDegraded(audit, intel.Unavailable, intel.Raw != "")
	o.advance(ctx, audit, StageClassifier, PctClassifier, "external intelligence classified")

	if err := o.checkCanceled(ctx); err != nil {
		return o.fail(ctx, audit, StageClassifier, err)
	}

	// Stage 5: Competitor Discovery (non-fatal).
	competitorHosts := o.discoverCompetitors(ctx, audit, intel)
	o.advance(ctx, audit, StageCompetitorDiscovery, PctCompetitorDiscovery, "competitor hosts discovered")

	if err := o.checkCanceled(ctx); err != nil {
		return o.fail(ctx, audit, StageCompetitorDiscovery, err)
	}

	// Stage 6: Competitor Audits (non-fatal).
	o.auditCompetitors(ctx, audit, competitorHosts)
	o.advance(ctx, audit, StageCompetitorAudits, PctCompetitorAudits, "competitor audits complete")

	if err := o.checkCanceled(ctx); err != nil {
		return o.fail(ctx, audit, StageCompetitorAudits, err)
	}

	// Stage 7: Performance (non-fatal).
	o.performanceStage(ctx, audit)
	o.advance(ctx, audit, StagePerformance, PctPerformance, "performance telemetry collected")

	if err := o.checkCanceled(ctx); err != nil {
		return o.fail(ctx, audit, StagePerformance, err)
	}

	// Stage 8: Synthesize (fatal on hard failure; in practice the LLM
	// client always resolves via its deterministic fallback, so this
	// never actually returns an error — see llm.FallbackReport).
	o.synthesizeStage(ctx, audit)
	o.advance(ctx, audit, StageSynthesize, PctSynthesize, "report synthesized")

	// Stage 9: Finalize. Cancellation after this point no longer
	// aborts the audit (spec §5: "An audit cancelled after the
	// Finalize stage has begun still completes").
	return o.finalize(ctx, audit)
}

func (o *Orchestrator) checkCanceled(ctx context.Context) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.KindCanceled, "audit canceled", ctx.Err())
	}
	return nil
}

func (o *Orchestrator) validate(ctx context.Context, audit *models.Audit) (string, error) {
	normalized, err := urlnorm.Normalize(audit.Config.SeedURL)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidConfig, "seed URL does not parse", err)
	}
	host := urlnorm.Host(normalized)
	if host == "" {
		return "", errs.New(errs.KindInvalidConfig, "seed URL has no host")
	}
	if err := o.Guard.CheckHost(ctx, host); err != nil {
		return "", err
	}
	return normalized, nil
}

// seedFetchAndAnalyze fetches and analyzes the seed URL once (spec §8:
// "the Page Analyzer is invoked at most once during A's initial run
// for a given URL"). It returns the fetched body alongside the report
// so crawlStage can hand both to the Crawler as a PreparedSeed instead
// of fetching and analyzing the seed a second time.
func (o *Orchestrator) seedFetchAndAnalyze(ctx context.Context, audit *models.Audit, seed string) (*models.PageReport, []byte, error) {
	result, err := o.Fetcher.Fetch(ctx, seed, audit.Config.FetchTimeout, false, string(audit.Config.Language))
	if err != nil {
		return nil, nil, err
	}

	if finalHost := urlnorm.Host(result.FinalURL); finalHost != "" && finalHost != urlnorm.Host(seed) {
		o.warn(audit, "seed redirected cross-origin to "+finalHost)
	}

	report := analyzer.Analyze(result.FinalURL, result.Status, result.Body, result.ContentType)
	report.Truncated = result.Truncated
	return &report, result.Body, nil
}

func (o *Orchestrator) crawlStage(ctx context.Context, audit *models.Audit, seedBody []byte) {
	seed := audit.Results.TargetAudit.URL
	pages, crawlErrs := o.PrimaryCrawler.Crawl(ctx, seed, audit.Config.CrawlCap, audit.Config.AllowSubdomains, string(audit.Config.Language), func(processed, cap int) {
		o.Events.Publish(models.ProgressEvent{
			AuditID: audit.ID,
			Stage:   StageCrawl,
			Progress: scaleProgress(processed, cap, PctCrawl, PctSeedFetch),
			Status:  models.StatusRunning,
		})
	}, crawler.WithPreparedSeed(crawler.PreparedSeed{Report: *audit.Results.TargetAudit, Body: seedBody}))

	for _, ce := range crawlErrs {
		o.recordStageError(audit, StageCrawl, ce.URL, ce.Kind, ce.Message)
	}

	if len(pages) == 0 {
		return
	}

	best := audit.Results.TargetAudit
	for i := range pages {
		if pages[i].Structure.Score > best.Structure.Score {
			best = &pages[i]
		}
	}
	if best.URL != audit.Results.TargetAudit.URL {
		audit.Results.TargetAudit = best
	}
}

func (o *Orchestrator) discoverCompetitors(ctx context.Context, audit *models.Audit, intel models.ExternalIntelligence) []string {
	targetHost := urlnorm.Host(audit.Results.TargetAudit.URL)

	var allResults []models.SearchResult
	for _, q := range intel.SearchQueries {
		hits := o.Search.Query(ctx, q)
		allResults = append(allResults, hits...)
		audit.Results.SearchResults = append(audit.Results.SearchResults, hits...)
	}

	hosts := search.SelectCompetitorHosts(allResults, targetHost, o.CompetitorCount)

	seen := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		seen[h] = true
	}
	for _, explicit := range audit.Config.Competitors {
		h := urlnorm.Host(explicit)
		if h == "" || h == targetHost || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	return hosts
}

func (o *Orchestrator) auditCompetitors(ctx context.Context, audit *models.Audit, hosts []string) {
	for _, host := range hosts {
		seed := "https://" + host
		pages, crawlErrs := o.CompetitorCrawler.Crawl(ctx, seed, o.CompetitorCrawlCap, false, string(audit.Config.Language), nil)

		if len(pages) == 0 {
			kind := errs.KindNetwork
			message := "no pages could be audited for " + host
			if len(crawlErrs) > 0 {
				kind = crawlErrs[0].Kind
				message = crawlErrs[0].Message
			}
			o.recordStageError(audit, StageCompetitorAudits, host, kind, message)
			continue
		}

		best := pages[0]
		for i := range pages {
			if pages[i].GEOScore > best.GEOScore {
				best = pages[i]
			}
		}
		audit.Results.CompetitorAudits = append(audit.Results.CompetitorAudits, best)
	}
}

func (o *Orchestrator) performanceStage(ctx context.Context, audit *models.Audit) {
	mobile, desktop, err := o.Perf.FetchPerformance(ctx, audit.Results.TargetAudit.URL)
	if err != nil {
		o.recordStageError(audit, StagePerformance, audit.Results.TargetAudit.URL, errs.KindNetwork, err.Error())
	}
	audit.Results.PagespeedData = &models.PerformancePair{Mobile: &mobile, Desktop: &desktop}
}

func (o *Orchestrator) synthesizeStage(ctx context.Context, audit *models.Audit) {
	out := o.LLM.Synthesize(ctx, llm.SynthesizerInput{
		Target:      audit.Results.TargetAudit,
		Competitors: audit.Results.CompetitorAudits,
		Intel:       valueOrZero(audit.Results.ExternalIntel),
		Performance: audit.Results.PagespeedData,
		Incomplete:  audit.Results.Incomplete,
	})
	o.warnLLMDegraded(audit, out.Unavailable, out.Raw != "")
	audit.Results.ReportMarkdown = out.ReportMarkdown
	audit.Results.FixPlan = out.FixPlan
}

func (o *Orchestrator) finalize(ctx context.Context, audit *models.Audit) (*models.Audit, error) {
	audit.Status = models.StatusCompleted
	now := time.Now()
	audit.FinishedAt = &now
	audit.SetProgress(StageFinalize, PctFinalize)

	if err := o.Store.SetResults(ctx, audit.ID, audit.Results); err != nil {
		return audit, err
	}
	if err := o.Store.UpdateStatus(ctx, audit.ID, models.StatusCompleted, PctFinalize, StageFinalize, ""); err != nil {
		return audit, err
	}
	o.Events.Publish(models.ProgressEvent{
		AuditID:  audit.ID,
		Stage:    StageFinalize,
		Progress: PctFinalize,
		Status:   models.StatusCompleted,
	})
	return audit, nil
}

func (o *Orchestrator) fail(ctx context.Context, audit *models.Audit, stage string, cause error) (*models.Audit, error) {
	audit.Status = models.StatusFailed
	audit.CurrentStage = stage
	audit.ErrorMessage = cause.Error()
	now := time.Now()
	audit.FinishedAt = &now

	_ = o.Store.SetResults(ctx, audit.ID, audit.Results)
	_ = o.Store.UpdateStatus(ctx, audit.ID, models.StatusFailed, audit.Progress, stage, cause.Error())
	o.Events.Publish(models.ProgressEvent{
		AuditID:  audit.ID,
		Stage:    stage,
		Progress: audit.Progress,
		Status:   models.StatusFailed,
		Message:  cause.Error(),
	})
	return audit, cause
}

func (o *Orchestrator) advance(ctx context.Context, audit *models.Audit, stage string, percent int, message string) {
	audit.SetProgress(stage, percent)
	_ = o.Store.UpdateStatus(ctx, audit.ID, models.StatusRunning, audit.Progress, stage, "")
	o.Events.Publish(models.ProgressEvent{
		AuditID:  audit.ID,
		Stage:    stage,
		Progress: audit.Progress,
		Status:   models.StatusRunning,
		Message:  message,
	})
}

func (o *Orchestrator) recordStageError(audit *models.Audit, stage, host string, kind errs.Kind, message string) {
	audit.Results.StageErrors = append(audit.Results.StageErrors, models.StageError{
		Stage:   stage,
		Host:    host,
		Kind:    string(kind),
		Message: message,
	})
	audit.Results.Incomplete = true
}

// warnLLMDegraded records the correct warning for an LLM agent call's
// degraded outcome: unavailable means the call itself failed (spec §8
// S5 "LLM total outage" — warning list must mention
// errs.KindLLMUnavailable); unparsed means the call succeeded but the
// response didn't parse into the expected structured fields (spec §9
// "Dynamic JSON" Raw case), a distinct, less severe condition. At most
// one of the two is ever true for a given agent call.
func (o *Orchestrator) warnLLMDegraded(audit *models.Audit, unavailable, unparsed bool) {
	switch {
	case unavailable:
		o.warn(audit, string(errs.KindLLMUnavailable))
	case unparsed:
		o.warn(audit, string(errs.KindParseError))
	}
}

func (o *Orchestrator) warn(audit *models.Audit, message string) {
	for _, w := range audit.Results.Warnings {
		if w == message {
			return
		}
	}
	audit.Results.Warnings = append(audit.Results.Warnings, message)
}

func valueOrZero(intel *models.ExternalIntelligence) models.ExternalIntelligence {
	if intel == nil {
		return models.ExternalIntelligence{Category: "General"}
	}
	return *intel
}

// scaleProgress maps a sub-stage's own processed/cap ratio onto the
// [floor, ceil] percent range that stage occupies in the overall
// audit (spec §4.3 "emits a progress tick"; spec §4.6 assigns each
// stage a fixed overall percent on completion, so in-stage ticks are
// interpolated between the previous stage's percent and this stage's).
func scaleProgress(processed, cap, ceil, floor int) int {
	if cap <= 0 {
		return ceil
	}
	ratio := float64(processed) / float64(cap)
	if ratio > 1 {
		ratio = 1
	}
	pct := floor + int(ratio*float64(ceil-floor))
	if pct > ceil {
		pct = ceil
	}
	return pct
}

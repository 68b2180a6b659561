// Package models holds the data shapes shared across every component
// of the audit pipeline: Audit, PageReport, FixItem, AuditJob,
// ProgressEvent, and the performance/LLM payload types. Kept dependency
// free (no component imports) so any package may import it without
// cycles, mirroring how teacher's pkg/models sits below pkg/services.
package models

import "time"

// Status is the lifecycle state of an Audit. Once an audit reaches a
// terminal status (Completed or Failed) it never changes again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether s is a terminal status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Language is the audit's content language tag.
type Language string

const (
	LanguageEN Language = "en"
	LanguageES Language = "es"
)

// Market is the audit's target market tag.
type Market string

const (
	MarketUS    Market = "us"
	MarketLatam Market = "latam"
	MarketEMEA  Market = "emea"
	MarketAR    Market = "ar"
	MarketNone  Market = "none"
)

// Default crawl/timeout bounds from spec §3 (overridable via
// config.Config, see pkg/config).
const (
	DefaultCrawlCap     = 50
	MaxCrawlCap         = 500
	DefaultFetchTimeout = 20 * time.Second
)

// AuditConfig is the caller-supplied configuration for one audit.
type AuditConfig struct {
	SeedURL          string
	Language         Language
	Market           Market
	Competitors      []string
	CrawlCap         int
	FetchTimeout     time.Duration
	AllowSubdomains  bool
}

// Normalize fills in defaults and clamps CrawlCap to [1, MaxCrawlCap].
func (c *AuditConfig) Normalize() {
	if c.CrawlCap <= 0 {
		c.CrawlCap = DefaultCrawlCap
	}
	if c.CrawlCap > MaxCrawlCap {
		c.CrawlCap = MaxCrawlCap
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Language == "" {
		c.Language = LanguageEN
	}
	if c.Market == "" {
		c.Market = MarketNone
	}
}

// Audit is the top-level unit of work (spec §3 Audit).
type Audit struct {
	ID int64

	OwnerSubjectID string
	OwnerEmail     string

	Config AuditConfig

	Status        Status
	Progress      int // 0..100
	CurrentStage  string
	ErrorMessage  string

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	Results AuditResults
}

// AuditResults bundles everything produced by a pipeline run.
type AuditResults struct {
	TargetAudit         *PageReport
	CompetitorAudits    []PageReport
	ExternalIntel       *ExternalIntelligence
	SearchResults       []SearchResult
	PagespeedData       *PerformancePair
	ReportMarkdown      string
	FixPlan             []FixItem
	Incomplete          bool     // set when any non-fatal stage recorded an error
	Warnings            []string // e.g. "llm_unavailable"
	StageErrors         []StageError
	PriorReportMarkdown string // snapshot taken before a Regenerate overwrites ReportMarkdown
}

// StageError records a non-fatal, per-stage error (spec §7: stage-local
// recoverable errors are captured into a per-stage error list).
type StageError struct {
	Stage   string
	Host    string
	Kind    string
	Message string
}

// SetProgress advances progress monotonically; it is a no-op (never
// regresses) if newProgress is less than the current value, preserving
// the "progress is monotonic non-decreasing while running" invariant
// (spec §8) even if a caller passes stale data.
func (a *Audit) SetProgress(stage string, newProgress int) {
	if newProgress > a.Progress {
		a.Progress = newProgress
	}
	a.CurrentStage = stage
}

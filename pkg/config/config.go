// Package config is the umbrella configuration object threaded into
// every component at startup (spec §9 "Global singletons": re-architect
// as an explicit configuration struct, no hidden process-wide mutable
// state except the Job Manager itself). Shaped after teacher's
// pkg/config.Config (a struct of sub-configs plus a Validator), but
// populated from the flat environment-variable list in spec §6 instead
// of YAML chain/agent registries — this system has no configurable
// agent chains.
package config

import "time"

// QueueConfig controls the Job Manager's worker pool (spec §4.7, §6).
type QueueConfig struct {
	WorkerPoolSize int
}

// CrawlConfig controls Crawler defaults and limits (spec §4.3, §6).
type CrawlConfig struct {
	CapDefault            int
	CapMax                int
	FetchTimeout          time.Duration
	PrimaryConcurrency    int
	CompetitorConcurrency int
	CompetitorCrawlCap    int
	CompetitorCount       int
}

// SSRFConfig controls the Fetcher's SSRF guard (spec §4.1, §6).
type SSRFConfig struct {
	AllowLoopback bool
}

// PerfConfig controls the Performance Client (spec §4.4, §6).
type PerfConfig struct {
	OracleURL      string
	OracleKey      string
	StalenessAfter time.Duration
	CallTimeout    time.Duration
}

// SearchConfig controls competitor discovery (spec §4.6 stage 5, §6).
type SearchConfig struct {
	OracleURL string
	OracleKey string
	EngineID  string
}

// LLMBackendConfig is one chat-completion backend (primary or
// fallback), spec §4.5 / §9 "Dynamic dispatch over LLM backends".
type LLMBackendConfig struct {
	Name  string
	URL   string
	Key   string
	Model string
}

// LLMConfig bundles the LLM client's backend list (spec §4.5, §6).
type LLMConfig struct {
	Primary  LLMBackendConfig
	Fallback *LLMBackendConfig // nil if no fallback is configured
	Timeout  time.Duration
}

// EventsConfig controls the per-audit progress event bus (spec §4.7).
type EventsConfig struct {
	BufferSize        int
	HeartbeatInterval time.Duration
	SubscriptionTTL   time.Duration
}

// HTTPConfig controls the bare submission/progress HTTP API (out of
// scope per spec §1 for auth/CORS; only the listen address lives here).
type HTTPConfig struct {
	ListenAddr string
}

// DatabaseConfig controls the Postgres persistence implementation
// (out of scope schema per spec §6 Persistence; only the DSN is ours
// to configure).
type DatabaseConfig struct {
	DSN string
}

// Config is the fully-resolved, validated configuration for one
// process. Constructed once at startup (see Load) and threaded by
// pointer into every component — never read from package-level state.
type Config struct {
	Queue    QueueConfig
	Crawl    CrawlConfig
	SSRF     SSRFConfig
	Perf     PerfConfig
	Search   SearchConfig
	LLM      LLMConfig
	Events   EventsConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
}

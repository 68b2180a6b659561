package config

import "time"

// Default values for every recognized environment option (spec §6
// Configuration). Centralized here the way teacher's pkg/config/defaults.go
// centralizes system-wide defaults, so Load and the Validator agree on
// a single source of truth.
const (
	DefaultWorkerPoolSize     = 4
	DefaultCrawlCapDefault    = 50
	DefaultCrawlCapMax        = 500
	DefaultFetchTimeoutSecs   = 20
	DefaultPerfStalenessHours = 24
	DefaultSSRFAllowLoopback  = false

	DefaultCrawlConcurrency      = 5
	DefaultCompetitorConcurrency = 3
	DefaultCompetitorCrawlCap    = 5
	DefaultCompetitorCount       = 3

	DefaultEventBufferSize    = 64
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultSubscriptionTTL    = 10 * time.Minute

	DefaultLLMTimeout  = 120 * time.Second
	DefaultLLMModel    = "gpt-4o-mini"
	DefaultPerfTimeout = 60 * time.Second
)

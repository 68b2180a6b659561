package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the recognized environment options (spec §6 Configuration)
// into a Config, applying defaults for anything unset, expanding any
// ${VAR} references in string values, and validating the result.
// LoadDotenvIfPresent should be called once by the caller (cmd/geoaudit)
// before Load, mirroring teacher's main.go sequencing of
// godotenv.Load() before config.Initialize().
func Load() (*Config, error) {
	cfg := &Config{
		Queue: QueueConfig{
			WorkerPoolSize: envInt("WORKER_POOL_SIZE", DefaultWorkerPoolSize),
		},
		Crawl: CrawlConfig{
			CapDefault:            envInt("CRAWL_CAP_DEFAULT", DefaultCrawlCapDefault),
			CapMax:                envInt("CRAWL_CAP_MAX", DefaultCrawlCapMax),
			FetchTimeout:          time.Duration(envInt("FETCH_TIMEOUT_SECONDS", DefaultFetchTimeoutSecs)) * time.Second,
			PrimaryConcurrency:    DefaultCrawlConcurrency,
			CompetitorConcurrency: DefaultCompetitorConcurrency,
			CompetitorCrawlCap:    DefaultCompetitorCrawlCap,
			CompetitorCount:       DefaultCompetitorCount,
		},
		SSRF: SSRFConfig{
			AllowLoopback: envBool("SSRF_ALLOW_LOOPBACK", DefaultSSRFAllowLoopback),
		},
		Perf: PerfConfig{
			OracleURL:      ExpandEnv(os.Getenv("PERF_ORACLE_URL")),
			OracleKey:      os.Getenv("PERF_ORACLE_KEY"),
			StalenessAfter: time.Duration(envInt("PERF_STALENESS_HOURS", DefaultPerfStalenessHours)) * time.Hour,
			CallTimeout:    DefaultPerfTimeout,
		},
		Search: SearchConfig{
			OracleURL: ExpandEnv(os.Getenv("SEARCH_ORACLE_URL")),
			OracleKey: os.Getenv("SEARCH_ORACLE_KEY"),
			EngineID:  os.Getenv("SEARCH_ENGINE_ID"),
		},
		LLM: LLMConfig{
			Primary: LLMBackendConfig{
				Name:  "primary",
				URL:   ExpandEnv(os.Getenv("LLM_PRIMARY_URL")),
				Key:   os.Getenv("LLM_PRIMARY_KEY"),
				Model: envString("LLM_MODEL", DefaultLLMModel),
			},
			Timeout: DefaultLLMTimeout,
		},
		Events: EventsConfig{
			BufferSize:        DefaultEventBufferSize,
			HeartbeatInterval: DefaultHeartbeatInterval,
			SubscriptionTTL:   DefaultSubscriptionTTL,
		},
		HTTP: HTTPConfig{
			ListenAddr: envString("HTTP_LISTEN_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			DSN: os.Getenv("DATABASE_URL"),
		},
	}

	if fallbackURL := os.Getenv("LLM_FALLBACK_URL"); fallbackURL != "" {
		cfg.LLM.Fallback = &LLMBackendConfig{
			Name:  "fallback",
			URL:   ExpandEnv(fallbackURL),
			Key:   os.Getenv("LLM_FALLBACK_KEY"),
			Model: envString("LLM_MODEL", DefaultLLMModel),
		}
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotenvIfPresent loads a .env file into the process environment if
// one exists in the working directory, matching teacher's main.go use
// of joho/godotenv. It is not an error for the file to be absent.
func LoadDotenvIfPresent() {
	_ = godotenv.Load()
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

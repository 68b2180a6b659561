package config

import (
	"fmt"

	validatorpkg "github.com/go-playground/validator/v10"
)

// Validator validates a Config comprehensively with clear error
// messages, mirroring teacher's pkg/config.Validator: one validateX
// method per concern, fail-fast ValidateAll.
type Validator struct {
	cfg *Config
	v   *validatorpkg.Validate
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg, v: validatorpkg.New()}
}

// ValidateAll performs comprehensive validation, stopping at the first
// error (dependencies are validated before dependents: queue before
// crawl before the external-oracle configs).
func (val *Validator) ValidateAll() error {
	if err := val.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := val.validateCrawl(); err != nil {
		return fmt.Errorf("crawl validation failed: %w", err)
	}
	if err := val.validateLLM(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}
	if err := val.validateOracles(); err != nil {
		return fmt.Errorf("oracle validation failed: %w", err)
	}
	return nil
}

func (val *Validator) validateQueue() error {
	q := val.cfg.Queue
	if q.WorkerPoolSize < 1 || q.WorkerPoolSize > 64 {
		return fmt.Errorf("worker_pool_size must be between 1 and 64, got %d", q.WorkerPoolSize)
	}
	return nil
}

func (val *Validator) validateCrawl() error {
	c := val.cfg.Crawl
	if c.CapDefault < 1 {
		return fmt.Errorf("crawl_cap_default must be at least 1, got %d", c.CapDefault)
	}
	if c.CapMax < c.CapDefault {
		return fmt.Errorf("crawl_cap_max (%d) must be >= crawl_cap_default (%d)", c.CapMax, c.CapDefault)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout_seconds must be positive, got %v", c.FetchTimeout)
	}
	if c.PrimaryConcurrency < 1 {
		return fmt.Errorf("primary crawl concurrency must be at least 1")
	}
	if c.CompetitorConcurrency < 1 {
		return fmt.Errorf("competitor crawl concurrency must be at least 1")
	}
	return nil
}

func (val *Validator) validateLLM() error {
	p := val.cfg.LLM.Primary
	if p.URL != "" {
		if err := val.v.Var(p.URL, "url"); err != nil {
			return fmt.Errorf("llm_primary_url is not a valid URL: %w", err)
		}
	}
	if val.cfg.LLM.Fallback != nil && val.cfg.LLM.Fallback.URL != "" {
		if err := val.v.Var(val.cfg.LLM.Fallback.URL, "url"); err != nil {
			return fmt.Errorf("llm_fallback_url is not a valid URL: %w", err)
		}
	}
	return nil
}

// validateOracles checks the optional performance/search oracle URLs,
// if configured, are well-formed. Both oracles are permitted to be
// entirely absent (spec §6: "optional").
func (val *Validator) validateOracles() error {
	if val.cfg.Perf.OracleURL != "" {
		if err := val.v.Var(val.cfg.Perf.OracleURL, "url"); err != nil {
			return fmt.Errorf("perf_oracle_url is not a valid URL: %w", err)
		}
	}
	if val.cfg.Search.OracleURL != "" {
		if err := val.v.Var(val.cfg.Search.OracleURL, "url"); err != nil {
			return fmt.Errorf("search_oracle_url is not a valid URL: %w", err)
		}
	}
	return nil
}

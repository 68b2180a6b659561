package models

import "time"

// AuditJob is a queue entry (spec §3 AuditJob).
type AuditJob struct {
	AuditID      int64
	SubmittedAt  time.Time
	AttemptCount int
}

// Retry policy constants (spec §3 AuditJob: up to 3 attempts,
// exponential backoff base 2s, max 60s, for infrastructure failures
// only; 0 retries for logical failures).
const (
	MaxJobAttempts  = 3
	RetryBaseDelay  = 2 * time.Second
	RetryMaxDelay   = 60 * time.Second
)

// ExecutionResult is what the orchestrator hands back to the job
// manager worker after running (or failing to run) an audit.
type ExecutionResult struct {
	Status Status
	Error  error
}

// Package jobmanager is the Job Manager component (spec §4.7): it owns
// a bounded FIFO queue of AuditJobs, a fixed-size worker pool that
// dequeues and invokes the Pipeline Orchestrator, the infra-failure
// retry/backoff policy, and the per-audit progress event subscription
// surface backed by pkg/events.
//
// Grounded on teacher's pkg/queue.WorkerPool/Worker: a stopCh+sync.Once
// graceful-shutdown pair, a session (here, audit) cancel-function
// registry keyed by id so an explicit cancel request only affects the
// worker that currently owns that audit, and a worker body that blocks
// on the stop channel, the context and the queue, logging via slog. Adapted from tarsy's DB-backed claim-a-pending-row
// polling loop (AlertSession query + update) to a plain buffered Go
// channel, since this system has no multi-pod deployment to coordinate
// claims across (spec's Non-goals rule out horizontal sharding of the
// worker pool; see DESIGN.md "Dropped teacher dependencies").
package jobmanager

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/events"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/store"
)

// Runner is the subset of pipeline.Orchestrator the Job Manager
// depends on, kept as an interface so tests can substitute a stub
// orchestrator without constructing every downstream client.
type Runner interface {
	Run(ctx context.Context, audit *models.Audit) (*models.Audit, error)
}

// Manager is the Job Manager: a bounded queue plus a fixed worker pool
// (spec §4.7).
type Manager struct {
	store  store.Store
	runner Runner
	events *events.Bus

	queue chan models.AuditJob

	workerCount int
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	mu        sync.Mutex
	accepting bool
	cancels   map[int64]context.CancelFunc
}

// New constructs a Manager. queueCapacity bounds the pending-job queue
// (spec §4.7 "bounded FIFO queue"); workerCount is WORKER_POOL_SIZE
// (default 4, spec §6).
func New(st store.Store, runner Runner, bus *events.Bus, workerCount, queueCapacity int) *Manager {
	if workerCount < 1 {
		workerCount = 4
	}
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	return &Manager{
		store:       st,
		runner:      runner,
		events:      bus,
		queue:       make(chan models.AuditJob, queueCapacity),
		workerCount: workerCount,
		stopCh:      make(chan struct{}),
		accepting:   true,
		cancels:     make(map[int64]context.CancelFunc),
	}
}

// Start spawns the worker pool. ctx governs the lifetime of every
// in-flight audit; cancelling it cancels every worker's current audit.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, i)
	}
}

// Submit enqueues an AuditJob for auditID, blocking until the queue has
// room, the caller's ctx is done, or the Manager is shutting down
// (spec §4.7 "Submit(job) -> ()"; this package names the job by audit
// id since the audit itself is already durably stored via Put before
// Submit is ever called).
func (m *Manager) Submit(ctx context.Context, auditID int64) error {
	m.mu.Lock()
	accepting := m.accepting
	m.mu.Unlock()
	if !accepting {
		return errs.New(errs.KindConflict, "job manager is shutting down, not accepting submissions")
	}

	job := models.AuditJob{AuditID: auditID, SubmittedAt: time.Now()}
	select {
	case m.queue <- job:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.KindCanceled, "submit canceled", ctx.Err())
	case <-m.stopCh:
		return errs.New(errs.KindConflict, "job manager is shutting down, not accepting submissions")
	}
}

// Subscribe returns a live progress channel for auditID, delegating to
// the Job Manager's event bus (spec §4.7 per-audit event channel).
func (m *Manager) Subscribe(auditID int64) (<-chan models.ProgressEvent, func()) {
	return m.events.Subscribe(auditID)
}

// Cancel triggers context cancellation for auditID if it is currently
// owned by a worker in this process, mirroring teacher's
// WorkerPool.CancelSession. Returns false if no worker currently owns
// that audit.
func (m *Manager) Cancel(auditID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.cancels[auditID]
	if ok {
		cancel()
	}
	return ok
}

// Shutdown stops accepting new submissions, lets in-flight audits
// finish up to ctx's deadline, then closes the event bus (spec §4.7
// "Graceful shutdown: stop accepting submissions, let in-flight audits
// finish..., then close all event channels").
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.accepting = false
	m.mu.Unlock()

	m.stopOnce.Do(func() { close(m.stopCh) })

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = errs.Wrap(errs.KindTimeout, "shutdown deadline exceeded with audits still in flight", ctx.Err())
	}

	m.events.Shutdown()
	return err
}

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	log := slog.With("worker", index)

	for {
		select {
		case <-m.stopCh:
			log.Info("job manager worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context canceled, job manager worker shutting down")
			return
		case job, ok := <-m.queue:
			if !ok {
				return
			}
			m.process(ctx, job)
		}
	}
}

func (m *Manager) process(ctx context.Context, job models.AuditJob) {
	executionID := uuid.New().String()
	log := slog.With("audit_id", job.AuditID, "attempt", job.AttemptCount+1, "execution_id", executionID)

	audit, err := m.store.Get(ctx, job.AuditID)
	if err != nil {
		log.Error("failed to load audit for processing", "error", err)
		return
	}

	auditCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels[job.AuditID] = cancel
	m.mu.Unlock()
	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.cancels, job.AuditID)
		m.mu.Unlock()
	}()

	_, runErr := m.runner.Run(auditCtx, audit)
	if runErr == nil {
		return
	}

	if !errs.Retryable(runErr) || job.AttemptCount+1 >= models.MaxJobAttempts {
		log.Warn("audit failed, not retrying", "error", runErr)
		return
	}

	next := job
	next.AttemptCount++
	log.Warn("audit failed with a retryable error, requeuing with backoff", "error", runErr)
	m.requeueWithBackoff(next)
}

// requeueWithBackoff schedules job for redelivery after a full-jitter
// exponential backoff delay (spec §7 "exponential backoff with full
// jitter, capped at 60s"), off the worker goroutine so the retrying
// worker is immediately free to pick up other queued work.
func (m *Manager) requeueWithBackoff(job models.AuditJob) {
	delay := fullJitterBackoff(job.AttemptCount, models.RetryBaseDelay, models.RetryMaxDelay)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-m.stopCh:
			return
		}
		select {
		case m.queue <- job:
		case <-m.stopCh:
		}
	}()
}

// fullJitterBackoff computes a uniformly random delay in [0, cap),
// where cap is base*2^(attempt-1) capped at max (the AWS "full jitter"
// formula spec §7 names explicitly).
func fullJitterBackoff(attempt int, base, max time.Duration) time.Duration {
	ceiling := base
	for i := 1; i < attempt; i++ {
		ceiling *= 2
		if ceiling > max {
			ceiling = max
			break
		}
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling)))
}

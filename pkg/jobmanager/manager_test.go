package jobmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/events"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/store/memory"
)

// stubRunner records every audit it was asked to run and returns the
// next queued result (nil error by default).
type stubRunner struct {
	mu    sync.Mutex
	calls []int64
	next  func(auditID int64) error
}

func (r *stubRunner) Run(_ context.Context, audit *models.Audit) (*models.Audit, error) {
	r.mu.Lock()
	r.calls = append(r.calls, audit.ID)
	fn := r.next
	r.mu.Unlock()

	var err error
	if fn != nil {
		err = fn(audit.ID)
	}
	if err == nil {
		audit.Status = models.StatusCompleted
	}
	return audit, err
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestManager(t *testing.T, runner Runner, workers int) (*Manager, *memory.Store) {
	t.Helper()
	st := memory.New()
	bus := events.New(64, 0, 0) // heartbeat/TTL disabled for deterministic tests
	m := New(st, runner, bus, workers, 8)
	return m, st
}

func TestSubmitProcessesAuditToCompletion(t *testing.T) {
	runner := &stubRunner{}
	m, st := newTestManager(t, runner, 2)
	// The real orchestrator persists its own terminal status; the stub
	// does the same so the stored record reflects a completed run.
	runner.next = func(auditID int64) error {
		return st.UpdateStatus(context.Background(), auditID, models.StatusCompleted, 100, "finalize", "")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	audit := &models.Audit{Config: models.AuditConfig{SeedURL: "https://example.com"}}
	require.NoError(t, st.Put(context.Background(), audit))
	require.NoError(t, m.Submit(context.Background(), audit.ID))

	require.Eventually(t, func() bool {
		got, err := st.Get(context.Background(), audit.ID)
		return err == nil && got.Status == models.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestRetryableFailureIsRequeuedUntilItSucceeds(t *testing.T) {
	var attempts int
	var mu sync.Mutex
	runner := &stubRunner{next: func(int64) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errs.New(errs.KindNetwork, "transient failure")
		}
		return nil
	}}
	m, st := newTestManager(t, runner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	audit := &models.Audit{Config: models.AuditConfig{SeedURL: "https://example.com"}}
	require.NoError(t, st.Put(context.Background(), audit))
	require.NoError(t, m.Submit(context.Background(), audit.ID))

	require.Eventually(t, func() bool {
		return runner.callCount() >= 2
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestNonRetryableFailureIsNotRequeued(t *testing.T) {
	runner := &stubRunner{next: func(int64) error {
		return errs.New(errs.KindInvalidConfig, "bad seed url")
	}}
	m, st := newTestManager(t, runner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	audit := &models.Audit{Config: models.AuditConfig{SeedURL: "https://example.com"}}
	require.NoError(t, st.Put(context.Background(), audit))
	require.NoError(t, m.Submit(context.Background(), audit.ID))

	require.Eventually(t, func() bool {
		return runner.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, runner.callCount(), "a non-retryable failure must never be requeued")

	require.NoError(t, m.Shutdown(context.Background()))
}

func TestSubscribeReceivesOrchestratorProgressEvents(t *testing.T) {
	m, st := newTestManager(t, &stubRunner{}, 1)
	ch, cancel := m.Subscribe(42)
	defer cancel()

	_ = st // store unused directly by this test beyond construction

	m.events.Publish(models.ProgressEvent{AuditID: 42, Stage: "validate", Progress: 5})

	select {
	case e := <-ch:
		assert.Equal(t, "validate", e.Stage)
	case <-time.After(time.Second):
		t.Fatal("expected a progress event")
	}
}

func TestShutdownStopsAcceptingNewSubmissions(t *testing.T) {
	m, _ := newTestManager(t, &stubRunner{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Submit(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConflict))
}

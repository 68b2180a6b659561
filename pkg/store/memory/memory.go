// Package memory is an in-memory store.Store implementation: a
// dependency-free persistence layer for tests and single-process
// deployments that don't need durable storage. Grounded on teacher's
// pkg/events/manager.go ConnectionManager registry shape (a mutex-
// protected map keyed by id), adapted here from connections to audit
// records.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

// Store is an in-memory, mutex-protected store.Store.
type Store struct {
	mu     sync.RWMutex
	audits map[int64]*models.Audit
	nextID int64
}

// New constructs an empty Store.
func New() *Store {
	return &Store{audits: make(map[int64]*models.Audit)}
}

// Put implements store.Store.
func (s *Store) Put(_ context.Context, audit *models.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if audit.ID == 0 {
		audit.ID = atomic.AddInt64(&s.nextID, 1)
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	cp := *audit
	s.audits[cp.ID] = &cp
	return nil
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, auditID int64) (*models.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.audits[auditID]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "audit not found")
	}
	cp := *a
	return &cp, nil
}

// UpdateStatus implements store.Store.
func (s *Store) UpdateStatus(_ context.Context, auditID int64, status models.Status, progress int, stage string, errMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.audits[auditID]
	if !ok {
		return errs.New(errs.KindNotFound, "audit not found")
	}

	a.SetProgress(stage, progress)
	a.Status = status
	a.ErrorMessage = errMessage

	now := time.Now()
	if status == models.StatusRunning && a.StartedAt == nil {
		a.StartedAt = &now
	}
	if status.IsTerminal() && a.FinishedAt == nil {
		a.FinishedAt = &now
	}
	return nil
}

// SetResults implements store.Store. The write replaces the stored
// audit's Results field atomically with respect to concurrent Get
// calls, since both hold s.mu.
func (s *Store) SetResults(_ context.Context, auditID int64, results models.AuditResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.audits[auditID]
	if !ok {
		return errs.New(errs.KindNotFound, "audit not found")
	}
	a.Results = results
	return nil
}

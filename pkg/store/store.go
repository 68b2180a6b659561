// Package store defines the Persistence contract (spec §6 Persistence):
// "a key-value-ish surface: Put(audit), Get(audit_id),
// UpdateStatus(audit_id, status, progress, stage, err), SetResults(
// audit_id, results)... the core does not depend on a specific
// schema; a relational or document store is acceptable." Two
// implementations are provided: pkg/store/memory (dependency-free, used
// by tests and single-process deployments) and pkg/store/postgres
// (jackc/pgx/v5-backed, grounded on teacher's pkg/database client/
// migration shape — see DESIGN.md for why this repo builds directly
// against pgx rather than reusing teacher's generated ent client).
package store

import (
	"context"

	"github.com/geoauditlabs/geo-audit-core/pkg/models"
)

// Store is the persistence surface every component depends on by
// interface, never by concrete implementation (spec §9 "Global
// singletons": explicit dependencies, no hidden process-wide state).
type Store interface {
	// Put creates a new audit record. If audit.ID is zero, the store
	// assigns one and writes it back into audit.ID (spec §6 audit
	// submission "Returns audit id").
	Put(ctx context.Context, audit *models.Audit) error

	// Get retrieves an audit by id. Returns an *errs.Error of Kind
	// KindNotFound if no such audit exists.
	Get(ctx context.Context, auditID int64) (*models.Audit, error)

	// UpdateStatus atomically updates the lifecycle/progress fields
	// only, leaving Results untouched (spec §3 Audit "progress is
	// monotonic non-decreasing while running").
	UpdateStatus(ctx context.Context, auditID int64, status models.Status, progress int, stage string, errMessage string) error

	// SetResults atomically overwrites an audit's AuditResults (spec
	// §6 "implementations must make SetResults atomic w.r.t. readers").
	SetResults(ctx context.Context, auditID int64, results models.AuditResults) error
}

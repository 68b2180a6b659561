package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/perf"
)

// Regenerate re-runs only the Performance and Synthesize stages for an
// already-completed audit (spec §4.6 "Regenerate"). Performance is
// skipped unless forcePerf is set or the stored data is stale (spec
// §4.4 IsStale). A Regenerate already in flight for auditID makes a
// concurrent call fail immediately with errs.KindConflict rather than
// queue behind it (spec §8 S4: "a second Regenerate call while one is
// in flight for the same audit must return a conflict, not queue").
func (o *Orchestrator) Regenerate(ctx context.Context, auditID int64, forcePerf bool) error {
	lock := o.lockFor(auditID)
	if !lock.TryLock() {
		return errs.New(errs.KindConflict, "a regenerate is already in progress for this audit")
	}
	defer lock.Unlock()

	audit, err := o.Store.Get(ctx, auditID)
	if err != nil {
		return err
	}
	if !audit.Status.IsTerminal() {
		return errs.New(errs.KindConflict, "audit must be completed or failed before it can be regenerated")
	}

	audit.Results.PriorReportMarkdown = audit.Results.ReportMarkdown
	audit.Status = models.StatusRunning

	needsPerf := forcePerf || stalePerformance(audit.Results.PagespeedData, o.PerfStaleness)
	if needsPerf {
		o.advance(ctx, audit, StagePerformance, PctPerformance-5, "refreshing performance telemetry")
		o.performanceStage(ctx, audit)
	}
	o.advance(ctx, audit, StagePerformance, PctPerformance, "performance telemetry ready")

	if err := o.checkCanceled(ctx); err != nil {
		return o.failRegenerate(ctx, audit, err)
	}

	o.synthesizeStage(ctx, audit)
	o.advance(ctx, audit, StageSynthesize, PctSynthesize, "report re-synthesized")

	_, err = o.finalize(ctx, audit)
	return err
}

func (o *Orchestrator) failRegenerate(ctx context.Context, audit *models.Audit, cause error) error {
	_, err := o.fail(ctx, audit, StagePerformance, cause)
	return err
}

func stalePerformance(pair *models.PerformancePair, maxAge time.Duration) bool {
	if pair == nil || pair.Mobile == nil || pair.Desktop == nil {
		return true
	}
	return perf.IsStale(*pair.Mobile, maxAge) || perf.IsStale(*pair.Desktop, maxAge)
}

func (o *Orchestrator) lockFor(auditID int64) *sync.Mutex {
	o.regenMu.Lock()
	defer o.regenMu.Unlock()
	lock, ok := o.regen[auditID]
	if !ok {
		lock = &sync.Mutex{}
		o.regen[auditID] = lock
	}
	return lock
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/observability/metrics"
	"github.com/oparadev/personnelbase/internal/reliability/retry"
)

// ReconcileWorker periodically sweeps up what an interrupted tenant cascade
// left behind: personnel records whose tenant is gone, and user allow-list
// entries pointing at deleted tenants. Every sweep step is idempotent, so the
// worker can run against a healthy store for free.
type ReconcileWorker struct {
	personnelRepo domain.PersonnelRepository
	userRepo      domain.UserRepository
	logger        *slog.Logger
	interval      time.Duration
	retryCfg      *retry.Config
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(
	personnelRepo domain.PersonnelRepository,
	userRepo domain.UserRepository,
	logger *slog.Logger,
	interval time.Duration,
) *ReconcileWorker {
	return &ReconcileWorker{
		personnelRepo: personnelRepo,
		userRepo:      userRepo,
		logger:        logger,
		interval:      interval,
		retryCfg:      retry.DefaultConfig(),
	}
}

// Start begins the reconcile loop. It runs one sweep immediately so a
// restart after a crashed cascade converges without waiting a full interval.
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reconcile worker started", slog.Duration("interval", w.interval))
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReconcileWorker) sweep(ctx context.Context) {
	orphans, err := retry.Do(ctx, w.retryCfg, w.logger, "delete orphaned personnel", func(ctx context.Context) (int64, error) {
		return w.personnelRepo.DeleteOrphans(ctx)
	})
	if err != nil {
		w.logger.Error("reconcile sweep failed", slog.String("step", "orphaned personnel"), slog.String("error", err.Error()))
		metrics.ObserveReconcile("orphaned_personnel", "error")
		return
	}
	if orphans > 0 {
		w.logger.Warn("removed orphaned personnel records", slog.Int64("count", orphans))
	}
	metrics.ObserveReconcile("orphaned_personnel", "success")

	pruned, err := retry.Do(ctx, w.retryCfg, w.logger, "prune dangling allow-list refs", func(ctx context.Context) (int64, error) {
		return w.userRepo.PruneDanglingTenantRefs(ctx)
	})
	if err != nil {
		w.logger.Error("reconcile sweep failed", slog.String("step", "allow-list refs"), slog.String("error", err.Error()))
		metrics.ObserveReconcile("allow_list_refs", "error")
		return
	}
	if pruned > 0 {
		w.logger.Warn("pruned dangling allow-list entries", slog.Int64("users", pruned))
	}
	metrics.ObserveReconcile("allow_list_refs", "success")

	notDeleted := false
	total, err := w.personnelRepo.Count(ctx, domain.PersonnelCountFilter{Deleted: &notDeleted})
	if err != nil {
		w.logger.Warn("failed to count personnel records", slog.String("error", err.Error()))
		return
	}
	metrics.SetPersonnelRecords(total)
}

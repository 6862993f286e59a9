package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockroom-backend/internal/reconciliation"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

type reconciler interface {
	Run(ctx context.Context) (*reconciliation.RunSummary, error)
}

// NewReconciliationJob wraps a reconciliation pass as a scheduled job.
func NewReconciliationJob(logg *logger.Logger, svc reconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if svc == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	return &reconciliationJob{logg: logg, svc: svc}, nil
}

type reconciliationJob struct {
	logg *logger.Logger
	svc  reconciler
}

func (j *reconciliationJob) Name() string { return "reconciliation" }

func (j *reconciliationJob) Run(ctx context.Context) error {
	summary, err := j.svc.Run(ctx)
	if summary != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"checked":    summary.Checked,
			"mismatches": summary.Mismatches,
			"flagged":    summary.Flagged,
		})
		j.logg.Info(logCtx, "reconciliation pass finished")
	}
	if err != nil {
		return fmt.Errorf("reconciliation: %w", err)
	}
	return nil
}

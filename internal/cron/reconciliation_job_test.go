package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom-backend/internal/reconciliation"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

type stubReconciler struct {
	summary *reconciliation.RunSummary
	err     error
	calls   int
}

func (s *stubReconciler) Run(context.Context) (*reconciliation.RunSummary, error) {
	s.calls++
	return s.summary, s.err
}

func TestReconciliationJobRunsPass(t *testing.T) {
	stub := &stubReconciler{summary: &reconciliation.RunSummary{Checked: 4, Mismatches: 1, Flagged: 1}}
	job, err := NewReconciliationJob(logger.New(logger.Options{ServiceName: "test"}), stub)
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "reconciliation", job.Name())
}

func TestReconciliationJobSurfacesPartialFailure(t *testing.T) {
	stub := &stubReconciler{
		summary: &reconciliation.RunSummary{Checked: 2},
		err:     errors.New("inventory row locked"),
	}
	job, err := NewReconciliationJob(logger.New(logger.Options{ServiceName: "test"}), stub)
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory row locked")
}

func TestNewReconciliationJobRequiresService(t *testing.T) {
	_, err := NewReconciliationJob(logger.New(logger.Options{ServiceName: "test"}), nil)
	require.Error(t, err)
}

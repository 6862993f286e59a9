package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

func TestOutboxRetentionJobPrunesInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	events := &fakePruner{remaining: 25}
	dlq := &fakePruner{remaining: 3}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{
		Repository:          events,
		DeadLetters:         dlq,
		Retention:           48 * time.Hour,
		DeadLetterRetention: 10 * 24 * time.Hour,
		BatchSize:           10,
	})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, events.calls, "two full batches and one short one")
	assert.Zero(t, events.remaining)
	assert.True(t, events.lastCutoff.Equal(now.Add(-48*time.Hour)), "cutoff %s", events.lastCutoff)
	assert.Equal(t, 1, dlq.calls)
	assert.True(t, dlq.lastCutoff.Equal(now.Add(-240*time.Hour)), "dlq cutoff %s", dlq.lastCutoff)
}

func TestOutboxRetentionJobCapsBatchesPerRun(t *testing.T) {
	events := &fakePruner{remaining: 1_000_000}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: events, BatchSize: 5})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, maxRetentionBatches, events.calls)
}

func TestOutboxRetentionJobDefaults(t *testing.T) {
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: &fakePruner{}})
	assert.Equal(t, defaultOutboxRetention, job.retention)
	assert.Equal(t, defaultDeadLetterRetention, job.dlqRetention)
	assert.Equal(t, defaultRetentionBatch, job.batchSize)
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Repository: &fakePruner{err: errors.New("boom")}})
	require.Error(t, job.Run(context.Background()))

	job = newOutboxRetentionJob(t, OutboxRetentionJobParams{
		Repository:  &fakePruner{},
		DeadLetters: &fakePruner{err: errors.New("boom")},
	})
	require.ErrorContains(t, job.Run(context.Background()), "dead letters")
}

func newOutboxRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test"})
	params.DB = passthroughTx{}
	jobIface, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	job, ok := jobIface.(*outboxRetentionJob)
	require.True(t, ok, "unexpected job type %T", jobIface)
	return job
}

type fakePruner struct {
	remaining  int64
	lastCutoff time.Time
	calls      int
	err        error
}

func (f *fakePruner) delete(cutoff time.Time, limit int) (int64, error) {
	f.calls++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	n := min(f.remaining, int64(limit))
	f.remaining -= n
	return n, nil
}

func (f *fakePruner) DeletePublishedBefore(_ *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	return f.delete(cutoff, limit)
}

func (f *fakePruner) DeleteFailedBefore(_ *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	return f.delete(cutoff, limit)
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

const (
	defaultOutboxRetention     = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
	defaultRetentionBatch      = 1000
	// maxRetentionBatches caps one run; leftovers wait for the next cycle.
	maxRetentionBatches = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedEventPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  publishedEventPruner
	DeadLetters deadLetterPruner
	Retention   time.Duration
	// DeadLetterRetention applies only when DeadLetters is set.
	DeadLetterRetention time.Duration
	BatchSize           int
}

// NewOutboxRetentionJob prunes published outbox rows and old dead letters in
// short batches. Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		events:       params.Repository,
		deadLetters:  params.DeadLetters,
		retention:    params.Retention,
		dlqRetention: params.DeadLetterRetention,
		batchSize:    params.BatchSize,
		now:          time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.dlqRetention <= 0 {
		job.dlqRetention = defaultDeadLetterRetention
	}
	if job.batchSize <= 0 {
		job.batchSize = defaultRetentionBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	events       publishedEventPruner
	deadLetters  deadLetterPruner
	retention    time.Duration
	dlqRetention time.Duration
	batchSize    int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	eventCutoff := now.Add(-j.retention)
	events, err := j.prune(ctx, func(tx *gorm.DB) (int64, error) {
		return j.events.DeletePublishedBefore(tx, eventCutoff, j.batchSize)
	})
	if err != nil {
		return fmt.Errorf("prune published events: %w", err)
	}

	fields := map[string]any{
		"event_cutoff":   eventCutoff,
		"events_deleted": events,
	}
	if j.deadLetters != nil {
		dlqCutoff := now.Add(-j.dlqRetention)
		deadLetters, err := j.prune(ctx, func(tx *gorm.DB) (int64, error) {
			return j.deadLetters.DeleteFailedBefore(tx, dlqCutoff, j.batchSize)
		})
		if err != nil {
			return fmt.Errorf("prune dead letters: %w", err)
		}
		fields["dead_letter_cutoff"] = dlqCutoff
		fields["dead_letters_deleted"] = deadLetters
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention cleanup complete")
	return nil
}

// prune runs deleteBatch in its own transaction until a batch comes back short.
func (j *outboxRetentionJob) prune(ctx context.Context, deleteBatch func(tx *gorm.DB) (int64, error)) (int64, error) {
	var total int64
	for i := 0; i < maxRetentionBatches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := deleteBatch(tx)
			deleted = n
			return err
		})
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < int64(j.batchSize) {
			break
		}
	}
	return total, nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ErrStaleWrite reports a guarded UPDATE that matched no row because the row
// changed after it was read.
var ErrStaleWrite = errors.New("row modified concurrently")

// TxPolicy bounds how long a contended transaction waits and how often it is retried.
type TxPolicy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	LockTimeout time.Duration
}

func DefaultTxPolicy() TxPolicy {
	return TxPolicy{
		MaxRetries:  4,
		BaseDelay:   25 * time.Millisecond,
		MaxDelay:    time.Second,
		LockTimeout: 3 * time.Second,
	}
}

// PolicyFromConfig maps receiving settings onto a TxPolicy.
func PolicyFromConfig(cfg config.ReceivingConfig) TxPolicy {
	policy := DefaultTxPolicy()
	if cfg.MaxRetries >= 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	policy.BaseDelay = cfg.RetryBase()
	policy.LockTimeout = cfg.LockTimeout()
	return policy
}

// Policy exposes the retry policy in effect.
func (c *Client) Policy() TxPolicy {
	return c.policy
}

// WithRetryTx runs fn in a transaction that waits at most LockTimeout for row
// locks. Serialization failures, deadlocks, lock timeouts and stale writes
// roll the transaction back and run fn again with exponential backoff. When
// the retries are spent the caller gets a CodeConcurrency error.
func (c *Client) WithRetryTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	policy := c.policy
	backoff := retry.NewExponential(nonZero(policy.BaseDelay, 25*time.Millisecond))
	backoff = retry.WithCappedDuration(nonZero(policy.MaxDelay, time.Second), backoff)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(max(policy.MaxRetries, 0)), backoff)

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := c.WithTx(ctx, func(tx *gorm.DB) error {
			if err := applyLockTimeout(tx, policy.LockTimeout); err != nil {
				return err
			}
			return fn(tx)
		})
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && IsRetryable(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, fmt.Sprintf("transaction aborted after %d attempts", attempts)).
			WithDetails(pkgerrors.Rejection{
				Reason: pkgerrors.ReasonConcurrentModificationExceeded,
				Retry:  pkgerrors.RetryAsIs,
			})
	}
	return err
}

// ForUpdate adds a row lock to the query on dialects that support one.
// sqlite serializes writers on a single connection instead.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != DialectPostgres {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func applyLockTimeout(tx *gorm.DB, timeout time.Duration) error {
	if timeout <= 0 || tx.Dialector.Name() != DialectPostgres {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())).Error
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

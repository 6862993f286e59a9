package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrMissingCapability is returned when the datastore cannot provide the
// transactional primitives the stock and session writers depend on.
var ErrMissingCapability = errors.New("datastore capability missing")

// lockProbeTables must accept SELECT ... FOR UPDATE at startup.
var lockProbeTables = []string{"inventory", "purchase_orders", "purchase_order_items", "pos_sessions"}

// VerifyCapabilities fails unless transactions, row locks and lock timeouts
// are usable. Callers exit on error; there is no non-atomic fallback.
func (c *Client) VerifyCapabilities(ctx context.Context) error {
	switch name := c.conn.Dialector.Name(); name {
	case DialectPostgres:
		return c.verifyPostgres(ctx)
	case DialectSQLite:
		return c.verifySQLite(ctx)
	default:
		return fmt.Errorf("%w: unsupported dialect %q", ErrMissingCapability, name)
	}
}

func (c *Client) verifyPostgres(ctx context.Context) error {
	return c.WithTx(ctx, func(tx *gorm.DB) error {
		if err := applyLockTimeout(tx, nonZero(c.policy.LockTimeout, DefaultTxPolicy().LockTimeout)); err != nil {
			return fmt.Errorf("%w: lock_timeout: %v", ErrMissingCapability, err)
		}
		var isolation string
		if err := tx.Raw("SHOW transaction_isolation").Scan(&isolation).Error; err != nil {
			return fmt.Errorf("%w: transaction isolation: %v", ErrMissingCapability, err)
		}
		for _, table := range lockProbeTables {
			var ids []string
			if err := tx.Raw(fmt.Sprintf("SELECT id FROM %s LIMIT 0 FOR UPDATE", table)).Scan(&ids).Error; err != nil {
				return fmt.Errorf("%w: row lock on %s: %v", ErrMissingCapability, table, err)
			}
		}
		return nil
	})
}

func (c *Client) verifySQLite(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	if open := sqlDB.Stats().MaxOpenConnections; open != 1 {
		return fmt.Errorf("%w: sqlite needs exactly one connection to serialize writers, pool allows %d", ErrMissingCapability, open)
	}
	return c.WithTx(ctx, func(tx *gorm.DB) error {
		for _, table := range lockProbeTables {
			var count int64
			if err := tx.Table(table).Limit(1).Count(&count).Error; err != nil {
				return fmt.Errorf("%w: table %s: %v", ErrMissingCapability, table, err)
			}
		}
		return nil
	})
}

// Package dbtest opens throwaway sqlite databases carrying the stockroom schema.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db"
)

// schema mirrors the goose migrations with sqlite types.
var schema = []string{
	`CREATE TABLE purchase_orders (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		supplier_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		po_type TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		received_at DATETIME,
		cancelled_at DATETIME
	)`,
	`CREATE TABLE purchase_order_items (
		id TEXT PRIMARY KEY,
		purchase_order_id TEXT NOT NULL REFERENCES purchase_orders(id),
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		quantity_received INTEGER NOT NULL DEFAULT 0,
		quantity_remaining INTEGER NOT NULL,
		unit_price NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK (quantity_remaining >= 0 AND quantity_remaining = quantity - quantity_received)
	)`,
	`CREATE TABLE inventory (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		low_stock_threshold INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (product_id, location_id)
	)`,
	`CREATE TABLE stock_movements (
		id TEXT PRIMARY KEY,
		inventory_id TEXT NOT NULL REFERENCES inventory(id),
		product_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		movement_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		quantity_before INTEGER NOT NULL,
		quantity_after INTEGER NOT NULL,
		reference_type TEXT,
		reference_id TEXT,
		condition TEXT,
		notes TEXT,
		is_correction NUMERIC NOT NULL DEFAULT 0,
		actor_user_id TEXT,
		created_at DATETIME,
		CHECK (quantity <> 0 AND quantity_after = quantity_before + quantity)
	)`,
	`CREATE TRIGGER stock_movements_no_update BEFORE UPDATE ON stock_movements
		BEGIN SELECT RAISE(ABORT, 'stock_movements is append-only'); END`,
	`CREATE TRIGGER stock_movements_no_delete BEFORE DELETE ON stock_movements
		BEGIN SELECT RAISE(ABORT, 'stock_movements is append-only'); END`,
	`CREATE TABLE pricing_tier_blueprints (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price_breaks TEXT NOT NULL,
		applicable_to_categories TEXT,
		is_default NUMERIC NOT NULL DEFAULT 0,
		is_active NUMERIC NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE vendor_pricing_configs (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		blueprint_id TEXT NOT NULL,
		pricing_values TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (vendor_id, blueprint_id)
	)`,
	`CREATE TABLE product_pricing_assignments (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		blueprint_id TEXT NOT NULL,
		product_category TEXT,
		price_overrides TEXT,
		is_active NUMERIC NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE pos_sessions (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		opened_by TEXT NOT NULL,
		walk_in_sales INTEGER NOT NULL DEFAULT 0,
		pickup_orders_fulfilled INTEGER NOT NULL DEFAULT 0,
		delivery_orders_dispatched INTEGER NOT NULL DEFAULT 0,
		total_sales NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME,
		closed_by TEXT,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_pos_sessions_open_location ON pos_sessions (location_id) WHERE status = 'open'`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE reconciliation_flags (
		id TEXT PRIMARY KEY,
		inventory_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		projected_quantity INTEGER NOT NULL,
		ledger_quantity INTEGER NOT NULL,
		status TEXT NOT NULL,
		detected_at DATETIME NOT NULL,
		resolved_at DATETIME,
		resolved_by TEXT,
		resolution_note TEXT
	)`,
	`CREATE UNIQUE INDEX ux_reconciliation_flags_open_inventory ON reconciliation_flags (inventory_id) WHERE status = 'open'`,
}

// Open returns a private in-memory database with the schema applied. The pool
// is pinned to one connection so concurrent callers serialize like they would
// behind row locks.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:stockroom_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// NewClient wraps Open in a db.Client with a fast retry policy.
func NewClient(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromGorm(Open(t), db.TxPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})
}

package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/stockroom-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_inventory_and_stock_movements"), []string{
		"CREATE TABLE IF NOT EXISTS inventory",
		"CONSTRAINT ux_inventory_product_location UNIQUE (product_id, location_id)",
		"CHECK (quantity <> 0 AND quantity_after = quantity_before + quantity)",
		"BEFORE UPDATE OR DELETE ON stock_movements",
		"DROP TABLE IF EXISTS stock_movements",
	})
}

func TestPurchaseOrderMigrationGuardsRemaining(t *testing.T) {
	assertContains(t, readMigration(t, "create_purchase_orders"), []string{
		"CHECK (quantity_remaining >= 0 AND quantity_remaining = quantity - quantity_received)",
		"REFERENCES purchase_orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS purchase_orders",
	})
}

func TestPOSSessionMigrationAllowsOneOpenSessionPerLocation(t *testing.T) {
	assertContains(t, readMigration(t, "create_pos_sessions"), []string{
		"ON pos_sessions (location_id) WHERE status = 'open'",
		"total_sales numeric(14,2) NOT NULL DEFAULT 0",
	})
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

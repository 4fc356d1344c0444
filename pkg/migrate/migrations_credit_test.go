package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreditMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_credit_ledger.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no credit migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS credit_accounts",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_credit_accounts_pair ON credit_accounts (buyer_id, seller_id)",
		"CREATE TABLE IF NOT EXISTS ledger_entries",
		"CREATE TABLE IF NOT EXISTS credit_reservations",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_credit_reservations_order ON credit_reservations (order_id)",
		"CHECK (amount_cents > 0)",
		"DROP TABLE IF EXISTS credit_reservations",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

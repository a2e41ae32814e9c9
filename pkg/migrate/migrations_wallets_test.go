package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vidacare-health/vidacare-backend/pkg/migrate"
)

func TestWalletMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_wallets.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no wallet migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX idx_wallets_user_currency ON wallets (user_id, currency)",
		"version bigint NOT NULL DEFAULT 0",
		"balance_before numeric(12,2) NOT NULL",
		"balance_after numeric(12,2) NOT NULL",
		"CREATE UNIQUE INDEX idx_wallet_txns_reference ON wallet_transactions (wallet_id, reference_id)",
		"DROP TABLE wallet_transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

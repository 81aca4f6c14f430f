package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clouddrivehq/clouddrive-backend/pkg/migrate"
)

const migrationsDir = "../../migrations"

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir(migrationsDir); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}

func TestPaymentIntentsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_payment_intents.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_intents",
		"CONSTRAINT uq_payment_intents_external_reference UNIQUE (external_reference)",
		"FOREIGN KEY (plan_id) REFERENCES storage_plans(id)",
		"CHECK (amount >= 0)",
		"DROP TABLE IF EXISTS payment_intents",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSubscriptionsMigrationEnforcesSingleSubscription(t *testing.T) {
	content := readMigration(t, "*_create_subscriptions.sql")

	checks := []string{
		"CONSTRAINT uq_subscriptions_user_id UNIQUE (user_id)",
		"CHECK (storage_used_bytes >= 0)",
		"is_active BOOLEAN NOT NULL DEFAULT TRUE",
		"last_payment_date TIMESTAMPTZ",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSeedMigrationCoversCatalog(t *testing.T) {
	content := readMigration(t, "*_seed_storage_plans.sql")

	for _, plan := range []string{"'free'", "'lite'", "'plus'", "'basic'", "'pro'", "'standard'", "'premium'"} {
		if !strings.Contains(content, plan) {
			t.Errorf("seed missing plan %s", plan)
		}
	}
	if !strings.Contains(content, "ON CONFLICT (id) DO NOTHING") {
		t.Error("seed must be idempotent")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(migrationsDir, pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

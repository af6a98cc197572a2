package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMigrationsContainCheckoutConstraints(t *testing.T) {
	cases := map[string][]string{
		"*_create_carts.sql": {
			"CONSTRAINT ux_carts_token UNIQUE (token)",
			"WHERE status = 'open' AND user_id IS NOT NULL",
			"DROP TABLE IF EXISTS carts",
		},
		"*_create_cart_items.sql": {
			"REFERENCES carts(id) ON DELETE CASCADE",
			"UNIQUE (cart_id, product_id)",
			"CHECK (quantity >= 1)",
			"numeric(12,2)",
		},
		"*_create_orders.sql": {
			"CONSTRAINT ux_orders_order_number UNIQUE (order_number)",
			"CHECK (total = subtotal + tax + shipping)",
			"REFERENCES orders(id) ON DELETE CASCADE",
		},
		"*_create_payments.sql": {
			"CONSTRAINT ux_payments_order UNIQUE (order_id)",
		},
		"*_create_outbox.sql": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
			"WHERE published_at IS NULL",
		},
	}

	for pattern, checks := range cases {
		t.Run(pattern, func(t *testing.T) {
			matches, err := filepath.Glob(filepath.Join("migrations", pattern))
			if err != nil {
				t.Fatalf("glob migrations: %v", err)
			}
			if len(matches) != 1 {
				t.Fatalf("expected one migration for %s, got %d", pattern, len(matches))
			}
			data, err := os.ReadFile(matches[0])
			if err != nil {
				t.Fatalf("read migration file: %v", err)
			}
			content := string(data)
			for _, sub := range checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Order Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_order_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"20260101000000_down_first.sql": "-- +goose Down\n-- +goose Up\n",
		"20260101000000_no_down.sql":    "-- +goose Up\nSELECT 1;\n",
		"add_things.sql":                "-- +goose Up\n-- +goose Down\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := migrate.ValidateDir(dir); err == nil {
				t.Fatalf("expected %s to fail validation", name)
			}
		})
	}
}

// Package dbtest opens throwaway SQLite databases carrying the production schema
// shape (tables, partial unique indexes, checks) for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		profile_picture TEXT,
		external_customer_ref TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE membership_tiers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		price NUMERIC NOT NULL CHECK (price >= 0),
		external_price_ref TEXT,
		external_product_ref TEXT,
		benefits TEXT NOT NULL DEFAULT '{}',
		billing_interval TEXT NOT NULL DEFAULT 'month',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE memberships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		tier_id TEXT NOT NULL REFERENCES membership_tiers(id),
		external_customer_ref TEXT,
		external_subscription_ref TEXT,
		status TEXT NOT NULL,
		current_period_start DATETIME NOT NULL,
		current_period_end DATETIME NOT NULL,
		cancel_at_period_end BOOLEAN NOT NULL DEFAULT 0,
		last_payment_status TEXT,
		last_payment_date DATETIME,
		failed_payment_attempts INTEGER NOT NULL DEFAULT 0 CHECK (failed_payment_attempts >= 0),
		last_failed_payment_date DATETIME,
		grace_period_end DATETIME,
		refunded_at DATETIME,
		refund_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_memberships_one_current_paid ON memberships (user_id)
		WHERE external_subscription_ref IS NOT NULL AND status IN ('active', 'past_due', 'unpaid')`,
	`CREATE UNIQUE INDEX ux_memberships_one_current_free ON memberships (user_id)
		WHERE external_subscription_ref IS NULL AND status IN ('active', 'past_due', 'unpaid')`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		amount NUMERIC NOT NULL,
		date DATETIME NOT NULL,
		description TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		external_charge_ref TEXT,
		external_invoice_ref TEXT,
		external_subscription_ref TEXT,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_payments_charge_status ON payments (external_charge_ref, status)
		WHERE external_charge_ref IS NOT NULL`,
	`CREATE UNIQUE INDEX ux_payments_invoice_status ON payments (external_invoice_ref, status)
		WHERE external_invoice_ref IS NOT NULL`,
	`CREATE TABLE qr_codes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		code TEXT NOT NULL UNIQUE,
		display_url TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE qr_scans (
		id TEXT PRIMARY KEY,
		qr_code_id TEXT NOT NULL UNIQUE REFERENCES qr_codes(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		scanned_by TEXT NOT NULL,
		store_name TEXT NOT NULL,
		location TEXT,
		scanned_at DATETIME NOT NULL,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE processed_billing_events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		processed_at DATETIME NOT NULL
	)`,
}

// Open returns a private in-memory database named after the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// Package dbtest opens sqlite databases carrying the tip ledger schema for
// package tests.
package dbtest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE merchants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT,
		active BOOLEAN NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE employees (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL REFERENCES merchants(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		active BOOLEAN NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE table_qrs (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL REFERENCES merchants(id) ON DELETE CASCADE,
		table_code VARCHAR(50) NOT NULL,
		location TEXT,
		active BOOLEAN NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT table_qrs_merchant_table_code_key UNIQUE (merchant_id, table_code)
	)`,
	`CREATE TABLE tip_intents (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL REFERENCES merchants(id) ON DELETE CASCADE,
		table_qr_id TEXT REFERENCES table_qrs(id) ON DELETE SET NULL,
		employee_id TEXT REFERENCES employees(id) ON DELETE SET NULL,
		table_code VARCHAR(50) NOT NULL,
		employee_hint VARCHAR(255),
		amount NUMERIC(12,3) NOT NULL CHECK (amount > 0),
		status TEXT NOT NULL CHECK (status IN ('PENDING','CONFIRMED','REVERSED')),
		idempotency_key VARCHAR(255) NOT NULL,
		confirmed_at DATETIME,
		reversed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT tip_intents_idempotency_key_key UNIQUE (idempotency_key)
	)`,
	`CREATE TABLE ledger_entries (
		id TEXT PRIMARY KEY,
		tip_intent_id TEXT NOT NULL REFERENCES tip_intents(id) ON DELETE CASCADE,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		amount NUMERIC(12,3) NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('CREDIT','DEBIT')),
		notes TEXT,
		created_at DATETIME,
		CONSTRAINT ledger_entries_tip_intent_type_key UNIQUE (tip_intent_id, type)
	)`,
	`CREATE TABLE processed_events (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload BLOB,
		processed_at DATETIME,
		CONSTRAINT processed_events_event_id_key UNIQUE (event_id)
	)`,
}

// Open returns a fresh in-memory database with the schema applied. The pool
// is capped at one connection so concurrent tests serialize like row locks.
func Open(t testing.TB, name string) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(name, "/", "_") + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Fixture is a merchant with one active table and one active employee.
type Fixture struct {
	Merchant models.Merchant
	Table    models.TableQR
	Employee models.Employee
}

// Seed inserts a Fixture.
func Seed(t testing.TB, conn *gorm.DB) Fixture {
	t.Helper()
	merchant := CreateMerchant(t, conn, "Cafe Azul")
	return Fixture{
		Merchant: merchant,
		Table:    CreateTable(t, conn, merchant.ID, "T-1", true),
		Employee: CreateEmployee(t, conn, merchant.ID, "Ana", true),
	}
}

func CreateMerchant(t testing.TB, conn *gorm.DB, name string) models.Merchant {
	t.Helper()
	merchant := models.Merchant{Name: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com", Active: true}
	require.NoError(t, conn.Create(&merchant).Error)
	return merchant
}

func CreateTable(t testing.TB, conn *gorm.DB, merchantID uuid.UUID, code string, active bool) models.TableQR {
	t.Helper()
	table := models.TableQR{MerchantID: merchantID, TableCode: code, Active: active}
	require.NoError(t, conn.Create(&table).Error)
	return table
}

func CreateEmployee(t testing.TB, conn *gorm.DB, merchantID uuid.UUID, name string, active bool) models.Employee {
	t.Helper()
	employee := models.Employee{MerchantID: merchantID, Name: name, Active: active}
	require.NoError(t, conn.Create(&employee).Error)
	return employee
}

// CreateTipIntent inserts a tip intent directly in the given status.
func CreateTipIntent(t testing.TB, conn *gorm.DB, fx Fixture, amount string, status enums.TipIntentStatus) models.TipIntent {
	t.Helper()
	tableID := fx.Table.ID
	employeeID := fx.Employee.ID
	intent := models.TipIntent{
		MerchantID:     fx.Merchant.ID,
		TableQRID:      &tableID,
		EmployeeID:     &employeeID,
		TableCode:      fx.Table.TableCode,
		Amount:         decimal.RequireFromString(amount),
		Status:         status,
		IdempotencyKey: uuid.NewString(),
	}
	require.NoError(t, conn.Create(&intent).Error)
	return intent
}

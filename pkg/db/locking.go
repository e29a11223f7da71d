package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const postgresDialect = "postgres"

// SetLockTimeout bounds lock waits for the remainder of the transaction.
// It is a no-op for non-Postgres dialects and non-positive timeouts.
func SetLockTimeout(tx *gorm.DB, timeout time.Duration) error {
	if tx == nil || timeout <= 0 || tx.Dialector == nil || tx.Dialector.Name() != postgresDialect {
		return nil
	}
	if err := tx.Exec(lockTimeoutStatement(timeout)).Error; err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

// lockTimeoutStatement rounds up to whole milliseconds; Postgres reads
// '0ms' as no timeout at all.
func lockTimeoutStatement(timeout time.Duration) string {
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", int64(ms))
}

// ForUpdate scopes a query to take an exclusive row lock.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

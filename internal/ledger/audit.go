package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/enums"
)

// Mismatch is a tip intent whose ledger entries disagree with its status.
type Mismatch struct {
	TipIntentID uuid.UUID             `gorm:"column:tip_intent_id"`
	Status      enums.TipIntentStatus `gorm:"column:status"`
	Credits     int64                 `gorm:"column:credits"`
	Debits      int64                 `gorm:"column:debits"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("tip intent %s is %s with %d credit(s) and %d debit(s)", m.TipIntentID, m.Status, m.Credits, m.Debits)
}

// A PENDING intent owns no entries, CONFIRMED exactly one CREDIT, REVERSED
// one CREDIT and one DEBIT.
const mismatchQuery = `
SELECT tip_intent_id, status, credits, debits FROM (
	SELECT t.id AS tip_intent_id,
		t.status AS status,
		COALESCE(SUM(CASE WHEN e.type = ? THEN 1 ELSE 0 END), 0) AS credits,
		COALESCE(SUM(CASE WHEN e.type = ? THEN 1 ELSE 0 END), 0) AS debits
	FROM tip_intents t
	LEFT JOIN ledger_entries e ON e.tip_intent_id = t.id
	GROUP BY t.id, t.status
) counts
WHERE NOT (
	(status = ? AND credits = 0 AND debits = 0)
	OR (status = ? AND credits = 1 AND debits = 0)
	OR (status = ? AND credits = 1 AND debits = 1)
)
ORDER BY tip_intent_id
LIMIT ?`

// Auditor cross-checks tip intent statuses against the ledger.
type Auditor struct {
	db *gorm.DB
}

func NewAuditor(db *gorm.DB) (*Auditor, error) {
	if db == nil {
		return nil, errors.New("db connection required")
	}
	return &Auditor{db: db}, nil
}

// Inconsistencies returns up to limit mismatched intents.
func (a *Auditor) Inconsistencies(ctx context.Context, limit int) ([]Mismatch, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Mismatch
	err := a.db.WithContext(ctx).Raw(mismatchQuery,
		string(enums.LedgerEntryTypeCredit),
		string(enums.LedgerEntryTypeDebit),
		string(enums.TipIntentStatusPending),
		string(enums.TipIntentStatusConfirmed),
		string(enums.TipIntentStatusReversed),
		limit,
	).Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("audit ledger: %w", err)
	}
	return out, nil
}

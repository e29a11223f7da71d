package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tipledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
)

func TestAuditorFindsMismatchedIntents(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t, t.Name())
	fx := dbtest.Seed(t, conn)

	entry := func(intent models.TipIntent, typ enums.LedgerEntryType) {
		t.Helper()
		require.NoError(t, conn.Create(&models.LedgerEntry{
			TipIntentID: intent.ID,
			EmployeeID:  fx.Employee.ID,
			Amount:      SignedAmount(typ, decimal.RequireFromString("5")),
			Type:        typ,
		}).Error)
	}

	dbtest.CreateTipIntent(t, conn, fx, "5.000", enums.TipIntentStatusPending)
	confirmed := dbtest.CreateTipIntent(t, conn, fx, "5.000", enums.TipIntentStatusConfirmed)
	entry(confirmed, enums.LedgerEntryTypeCredit)
	reversed := dbtest.CreateTipIntent(t, conn, fx, "5.000", enums.TipIntentStatusReversed)
	entry(reversed, enums.LedgerEntryTypeCredit)
	entry(reversed, enums.LedgerEntryTypeDebit)

	missingCredit := dbtest.CreateTipIntent(t, conn, fx, "5.000", enums.TipIntentStatusConfirmed)
	pendingWithCredit := dbtest.CreateTipIntent(t, conn, fx, "5.000", enums.TipIntentStatusPending)
	entry(pendingWithCredit, enums.LedgerEntryTypeCredit)

	auditor, err := NewAuditor(conn)
	require.NoError(t, err)

	mismatches, err := auditor.Inconsistencies(ctx, 10)
	require.NoError(t, err)
	require.Len(t, mismatches, 2)

	byID := map[string]Mismatch{}
	for _, m := range mismatches {
		byID[m.TipIntentID.String()] = m
	}
	assert.Equal(t, Mismatch{TipIntentID: missingCredit.ID, Status: enums.TipIntentStatusConfirmed}, byID[missingCredit.ID.String()])
	assert.EqualValues(t, 1, byID[pendingWithCredit.ID.String()].Credits)
	assert.Contains(t, byID[missingCredit.ID.String()].String(), "CONFIRMED with 0 credit(s)")

	limited, err := auditor.Inconsistencies(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAuditorCleanLedger(t *testing.T) {
	conn := dbtest.Open(t, t.Name())
	fx := dbtest.Seed(t, conn)
	dbtest.CreateTipIntent(t, conn, fx, "1.000", enums.TipIntentStatusPending)

	auditor, err := NewAuditor(conn)
	require.NoError(t, err)
	mismatches, err := auditor.Inconsistencies(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

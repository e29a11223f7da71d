package employees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/internal/ledger"
	"github.com/angelmondragon/tipledger-backend/internal/merchants"
	"github.com/angelmondragon/tipledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
)

func newService(t *testing.T) (Service, *gorm.DB, dbtest.Fixture) {
	t.Helper()
	conn := dbtest.Open(t, t.Name())
	fx := dbtest.Seed(t, conn)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	merchantSvc, err := merchants.NewService(merchants.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), ledgerSvc, merchantSvc)
	require.NoError(t, err)
	return svc, conn, fx
}

func TestEmployeeTipsNewestFirstWithSignedTotal(t *testing.T) {
	svc, conn, fx := newService(t)
	ctx := context.Background()

	reversed := dbtest.CreateTipIntent(t, conn, fx, "12.500", enums.TipIntentStatusReversed)
	confirmed := dbtest.CreateTipIntent(t, conn, fx, "1.245", enums.TipIntentStatusConfirmed)

	base := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	rows := []models.LedgerEntry{
		{TipIntentID: reversed.ID, EmployeeID: fx.Employee.ID, Amount: decimal.RequireFromString("12.500"), Type: enums.LedgerEntryTypeCredit, CreatedAt: base},
		{TipIntentID: reversed.ID, EmployeeID: fx.Employee.ID, Amount: decimal.RequireFromString("-12.500"), Type: enums.LedgerEntryTypeDebit, CreatedAt: base.Add(time.Hour)},
		{TipIntentID: confirmed.ID, EmployeeID: fx.Employee.ID, Amount: decimal.RequireFromString("1.245"), Type: enums.LedgerEntryTypeCredit, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, conn.Create(&rows[i]).Error)
	}

	tips, err := svc.EmployeeTips(ctx, fx.Employee.ID)
	require.NoError(t, err)
	require.Len(t, tips.Entries, 3)
	assert.Equal(t, rows[2].ID, tips.Entries[0].ID)
	assert.Equal(t, "1.245", tips.Entries[0].Amount)
	assert.Equal(t, "-12.500", tips.Entries[1].Amount)
	assert.Equal(t, enums.LedgerEntryTypeDebit, tips.Entries[1].Type)
	assert.Equal(t, "1.245", tips.TotalAmount)
}

func TestEmployeeTipsEmptyAndMissing(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()

	tips, err := svc.EmployeeTips(ctx, fx.Employee.ID)
	require.NoError(t, err)
	assert.Empty(t, tips.Entries)
	assert.Equal(t, "0.000", tips.TotalAmount)

	_, err = svc.EmployeeTips(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestActiveForMerchant(t *testing.T) {
	svc, conn, fx := newService(t)
	ctx := context.Background()

	got, err := svc.ActiveForMerchant(ctx, fx.Merchant.ID, fx.Employee.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.Employee.ID, got.ID)

	inactive := dbtest.CreateEmployee(t, conn, fx.Merchant.ID, "Bea", false)
	_, err = svc.ActiveForMerchant(ctx, fx.Merchant.ID, inactive.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	other := dbtest.CreateMerchant(t, conn, "Elsewhere")
	_, err = svc.ActiveForMerchant(ctx, other.ID, fx.Employee.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListByMerchant(t *testing.T) {
	svc, conn, fx := newService(t)
	ctx := context.Background()
	dbtest.CreateEmployee(t, conn, fx.Merchant.ID, "Zoe", false)
	dbtest.CreateEmployee(t, conn, fx.Merchant.ID, "Bruno", true)

	all, err := svc.ListByMerchant(ctx, fx.Merchant.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Ana", all[0].Name)
	assert.Equal(t, "Zoe", all[2].Name)

	active, err := svc.ListByMerchant(ctx, fx.Merchant.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = svc.ListByMerchant(ctx, uuid.New(), false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

package seed

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/internal/employees"
	"github.com/angelmondragon/tipledger-backend/internal/merchants"
	"github.com/angelmondragon/tipledger-backend/internal/tableqrs"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
)

// DemoMerchantEmail identifies the demo merchant; seeding is skipped when a
// merchant with this email already exists.
const DemoMerchantEmail = "restaurant@example.com"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result lists what the demo data set contains.
type Result struct {
	Merchant  models.Merchant
	Employees []models.Employee
	Tables    []models.TableQR
	Existing  bool
}

type staffMember struct {
	name, email, phone string
}

type table struct {
	code, location string
}

var (
	demoStaff = []staffMember{
		{name: "Ahmed Ali", email: "ahmed@example.com", phone: "+1234567891"},
		{name: "Sara Mohammed", email: "sara@example.com", phone: "+1234567892"},
		{name: "Omar Hassan", email: "omar@example.com", phone: "+1234567893"},
	}
	demoTables = []table{
		{code: "T1", location: "Main dining area - Table 1"},
		{code: "T2", location: "Main dining area - Table 2"},
		{code: "T3", location: "Patio - Table 3"},
		{code: "T4", location: "Bar area - Table 4"},
		{code: "T5", location: "Private room - Table 5"},
	}
)

// Run inserts a demo merchant with staff and table QR codes in one
// transaction.
func Run(ctx context.Context, client txRunner) (*Result, error) {
	res := &Result{}
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.Merchant
		err := tx.WithContext(ctx).Where("email = ?", DemoMerchantEmail).First(&existing).Error
		switch {
		case err == nil:
			res.Existing = true
			res.Merchant = existing
			return loadExisting(ctx, tx, res)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("lookup demo merchant: %w", err)
		}

		res.Merchant = models.Merchant{
			Name:   "Test Restaurant",
			Email:  DemoMerchantEmail,
			Phone:  strPtr("+1234567890"),
			Active: true,
		}
		if err := merchants.NewRepository(tx).Create(ctx, &res.Merchant); err != nil {
			return fmt.Errorf("create merchant: %w", err)
		}

		staffRepo := employees.NewRepository(tx)
		for _, s := range demoStaff {
			employee := models.Employee{
				MerchantID: res.Merchant.ID,
				Name:       s.name,
				Email:      strPtr(s.email),
				Phone:      strPtr(s.phone),
				Active:     true,
			}
			if err := staffRepo.Create(ctx, &employee); err != nil {
				return fmt.Errorf("create employee %s: %w", s.name, err)
			}
			res.Employees = append(res.Employees, employee)
		}

		tableRepo := tableqrs.NewRepository(tx)
		for _, t := range demoTables {
			qr := models.TableQR{
				MerchantID: res.Merchant.ID,
				TableCode:  t.code,
				Location:   strPtr(t.location),
				Active:     true,
			}
			if err := tableRepo.Create(ctx, &qr); err != nil {
				return fmt.Errorf("create table %s: %w", t.code, err)
			}
			res.Tables = append(res.Tables, qr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func loadExisting(ctx context.Context, tx *gorm.DB, res *Result) error {
	staff, err := employees.NewRepository(tx).ListByMerchant(ctx, res.Merchant.ID, false)
	if err != nil {
		return fmt.Errorf("list employees: %w", err)
	}
	tables, err := tableqrs.NewRepository(tx).ListByMerchant(ctx, res.Merchant.ID, false)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	res.Employees = staff
	res.Tables = tables
	return nil
}

func strPtr(s string) *string {
	return &s
}

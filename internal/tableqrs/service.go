package tableqrs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
)

const maxTableCodeLength = 50

type tableRepository interface {
	FindActiveByCode(ctx context.Context, merchantID uuid.UUID, tableCode string) (*models.TableQR, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, activeOnly bool) ([]models.TableQR, error)
}

type merchantLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
}

// Service resolves and lists table QR codes.
type Service interface {
	Resolve(ctx context.Context, merchantID uuid.UUID, tableCode string) (*models.TableQR, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, activeOnly bool) ([]TableQRDTO, error)
}

type service struct {
	repo      tableRepository
	merchants merchantLookup
}

// NewService builds a table QR service.
func NewService(repo tableRepository, merchants merchantLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("table qr repository required")
	}
	if merchants == nil {
		return nil, fmt.Errorf("merchant lookup required")
	}
	return &service{repo: repo, merchants: merchants}, nil
}

// Resolve returns the active table with tableCode under merchantID, or
// NOT_FOUND when it is missing or inactive.
func (s *service) Resolve(ctx context.Context, merchantID uuid.UUID, tableCode string) (*models.TableQR, error) {
	tableCode = strings.TrimSpace(tableCode)
	if tableCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table code is required")
	}
	if len(tableCode) > maxTableCodeLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "table code must be at most %d characters", maxTableCodeLength)
	}
	table, err := s.repo.FindActiveByCode(ctx, merchantID, tableCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "table not found or inactive").
				WithDetails(map[string]any{"merchantId": merchantID, "tableCode": tableCode})
		}
		return nil, db.Classify(err, "resolve table")
	}
	return table, nil
}

func (s *service) ListByMerchant(ctx context.Context, merchantID uuid.UUID, activeOnly bool) ([]TableQRDTO, error) {
	if _, err := s.merchants.Get(ctx, merchantID); err != nil {
		return nil, err
	}
	tables, err := s.repo.ListByMerchant(ctx, merchantID, activeOnly)
	if err != nil {
		return nil, db.Classify(err, "list tables")
	}
	out := make([]TableQRDTO, 0, len(tables))
	for i := range tables {
		out = append(out, *FromModel(&tables[i]))
	}
	return out, nil
}

package merchants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
)

type merchantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	SummarizeTips(ctx context.Context, merchantID uuid.UUID) ([]StatusAggregate, error)
}

// Service exposes merchant level reporting.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	TipSummary(ctx context.Context, merchantID uuid.UUID) (*MerchantTipSummary, error)
}

type service struct {
	repo merchantRepository
}

// NewService builds a merchant service.
func NewService(repo merchantRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("merchant repository required")
	}
	return &service{repo: repo}, nil
}

// Get loads a merchant or fails NOT_FOUND. Other services use it as the
// merchant existence check.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id is required")
	}
	merchant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
		}
		return nil, db.Classify(err, "load merchant")
	}
	return merchant, nil
}

func (s *service) TipSummary(ctx context.Context, merchantID uuid.UUID) (*MerchantTipSummary, error) {
	if _, err := s.Get(ctx, merchantID); err != nil {
		return nil, err
	}
	rows, err := s.repo.SummarizeTips(ctx, merchantID)
	if err != nil {
		return nil, db.Classify(err, "summarize tips")
	}
	return buildSummary(merchantID, rows), nil
}

package tips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/internal/ledger"
	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
	"github.com/angelmondragon/tipledger-backend/pkg/events"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/metrics"
)

const (
	transitionCreate  = "create"
	transitionConfirm = "confirm"
	transitionReverse = "reverse"
	transitionAssign  = "assign"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type tableResolver interface {
	Resolve(ctx context.Context, merchantID uuid.UUID, tableCode string) (*models.TableQR, error)
}

type employeeLookup interface {
	ActiveForMerchant(ctx context.Context, merchantID, employeeID uuid.UUID) (*models.Employee, error)
}

// Service drives the tip intent lifecycle PENDING -> CONFIRMED -> REVERSED.
type Service interface {
	Create(ctx context.Context, input CreateTipIntentInput) (*TipIntentView, error)
	Get(ctx context.Context, id uuid.UUID) (*TipIntentView, error)
	Confirm(ctx context.Context, id uuid.UUID) (*TipIntentView, error)
	Reverse(ctx context.Context, id uuid.UUID) (*TipIntentView, error)
	AssignEmployee(ctx context.Context, id, employeeID uuid.UUID) (*TipIntentView, error)
}

// ServiceParams collects the collaborators of the tip service.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Ledger     ledger.Service
	LedgerRepo ledger.Repository
	Tables     tableResolver
	Employees  employeeLookup
	Publisher  events.Publisher
	Metrics    *metrics.TipMetrics
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	tx         txRunner
	ledger     ledger.Service
	ledgerRepo ledger.Repository
	tables     tableResolver
	employees  employeeLookup
	publisher  events.Publisher
	metrics    *metrics.TipMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService wires the tip service. Metrics may be nil.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("tip intent repository required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Ledger == nil || p.LedgerRepo == nil:
		return nil, fmt.Errorf("ledger service and repository required")
	case p.Tables == nil:
		return nil, fmt.Errorf("table resolver required")
	case p.Employees == nil:
		return nil, fmt.Errorf("employee lookup required")
	case p.Publisher == nil:
		return nil, fmt.Errorf("event publisher required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       p.Repo,
		tx:         p.Tx,
		ledger:     p.Ledger,
		ledgerRepo: p.LedgerRepo,
		tables:     p.Tables,
		employees:  p.Employees,
		publisher:  p.Publisher,
		metrics:    p.Metrics,
		logg:       p.Logger,
		now:        storedNow,
	}, nil
}

// storedNow is truncated to what timestamptz keeps, so the caller that
// applies a transition sees the same timestamp later readers load back.
func storedNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *service) Create(ctx context.Context, input CreateTipIntentInput) (*TipIntentView, error) {
	start := time.Now()
	if err := input.Validate(); err != nil {
		s.metrics.ObserveTransition(transitionCreate, metrics.OutcomeFailed, time.Since(start))
		return nil, err
	}

	// The stored record wins on replay even when the new payload differs.
	existing, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
	switch {
	case err == nil:
		s.metrics.ObserveTransition(transitionCreate, metrics.OutcomeReplay, time.Since(start))
		return FromModel(existing), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.metrics.ObserveTransition(transitionCreate, metrics.OutcomeFailed, time.Since(start))
		return nil, db.Classify(err, "lookup idempotency key")
	}

	intent, err := s.buildIntent(ctx, input)
	if err != nil {
		s.metrics.ObserveTransition(transitionCreate, metrics.OutcomeFailed, time.Since(start))
		return nil, err
	}

	if err := s.repo.Create(ctx, intent); err != nil {
		if !db.IsUniqueViolation(err, "") {
			s.metrics.ObserveTransition(transitionCreate, metrics.OutcomeFailed, time.Since(start))
			return nil, db.Classify(err, "insert tip intent")
		}
		// Lost the race to a concurrent create with the same key.
		winner, findErr := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
		if findErr != nil {
			s.metrics.ObserveTransition(transitionCreate, metrics.OutcomeFailed, time.Since(start))
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tip intent conflicts with an existing record")
			}
			return nil, db.Classify(findErr, "reload tip intent")
		}
		s.metrics.ObserveTransition(transitionCreate, metrics.OutcomeReplay, time.Since(start))
		return FromModel(winner), nil
	}

	s.metrics.ObserveTransition(transitionCreate, metrics.OutcomeApplied, time.Since(start))
	s.logTransition(ctx, intent, "tip intent created")
	s.emit(ctx, enums.TipEventIntentCreated, intent)

	view := FromModel(intent)
	view.Created = true
	return view, nil
}

func (s *service) buildIntent(ctx context.Context, input CreateTipIntentInput) (*models.TipIntent, error) {
	table, err := s.tables.Resolve(ctx, input.MerchantID, input.TableCode)
	if err != nil {
		return nil, err
	}

	var employeeID *uuid.UUID
	if input.EmployeeID != nil {
		employee, err := s.employees.ActiveForMerchant(ctx, input.MerchantID, *input.EmployeeID)
		if err != nil {
			return nil, err
		}
		id := employee.ID
		employeeID = &id
	}

	tableID := table.ID
	return &models.TipIntent{
		MerchantID:     input.MerchantID,
		TableQRID:      &tableID,
		EmployeeID:     employeeID,
		TableCode:      table.TableCode,
		EmployeeHint:   input.EmployeeHint,
		Amount:         input.Amount,
		Status:         enums.TipIntentStatusPending,
		IdempotencyKey: input.IdempotencyKey,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*TipIntentView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip intent id is required")
	}
	intent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load tip intent")
	}
	return FromModel(intent), nil
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID) (*TipIntentView, error) {
	return s.transition(ctx, id, enums.TipIntentStatusConfirmed)
}

func (s *service) Reverse(ctx context.Context, id uuid.UUID) (*TipIntentView, error) {
	return s.transition(ctx, id, enums.TipIntentStatusReversed)
}

// transition moves the locked intent to target and appends the matching
// ledger entry in the same transaction. Calling it again once the intent is
// already in target returns the row untouched.
func (s *service) transition(ctx context.Context, id uuid.UUID, target enums.TipIntentStatus) (*TipIntentView, error) {
	name := transitionConfirm
	if target == enums.TipIntentStatusReversed {
		name = transitionReverse
	}
	start := time.Now()
	if id == uuid.Nil {
		s.metrics.ObserveTransition(name, metrics.OutcomeFailed, time.Since(start))
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip intent id is required")
	}

	var (
		intent  *models.TipIntent
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "lock tip intent")
		}
		intent = locked

		if intent.Status == target {
			return nil
		}
		if !intent.Status.CanTransitionTo(target) {
			return invalidTransition(intent, target, "tip intent cannot move to "+target.String())
		}
		if intent.EmployeeID == nil {
			return invalidTransition(intent, target, "tip intent has no employee assigned")
		}

		from := intent.Status
		now := s.now()
		entry := ledger.RecordEntryInput{
			TipIntentID: intent.ID,
			EmployeeID:  *intent.EmployeeID,
			Amount:      intent.Amount,
		}
		switch target {
		case enums.TipIntentStatusConfirmed:
			intent.ConfirmedAt = &now
			entry.Type = enums.LedgerEntryTypeCredit
			entry.Notes = "Tip confirmed from " + intent.TableCode
		case enums.TipIntentStatusReversed:
			intent.ReversedAt = &now
			entry.Type = enums.LedgerEntryTypeDebit
			entry.Notes = "Tip reversed from " + intent.TableCode
		}
		intent.Status = target

		updated, err := repo.Update(ctx, intent, from)
		if err != nil {
			return db.Classify(err, "update tip intent")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConflict, "tip intent changed concurrently")
		}
		if _, err := s.ledger.WithRepository(s.ledgerRepo.WithTx(tx)).RecordEntry(ctx, entry); err != nil {
			return db.Classify(err, "append ledger entry")
		}
		applied = true
		return nil
	})
	if err != nil {
		s.metrics.ObserveTransition(name, metrics.OutcomeFailed, time.Since(start))
		s.logFailure(ctx, id, name, err)
		return nil, db.Classify(err, name+" tip intent")
	}

	if !applied {
		s.metrics.ObserveTransition(name, metrics.OutcomeReplay, time.Since(start))
		return FromModel(intent), nil
	}

	s.metrics.ObserveTransition(name, metrics.OutcomeApplied, time.Since(start))
	if target == enums.TipIntentStatusReversed {
		s.logTransition(ctx, intent, "tip intent reversed")
		s.emit(ctx, enums.TipEventReversed, intent)
	} else {
		s.logTransition(ctx, intent, "tip intent confirmed")
		s.emit(ctx, enums.TipEventConfirmed, intent)
	}
	return FromModel(intent), nil
}

// AssignEmployee attaches an employee to a PENDING intent so it can be
// confirmed. No ledger entry and no event are produced.
func (s *service) AssignEmployee(ctx context.Context, id, employeeID uuid.UUID) (*TipIntentView, error) {
	start := time.Now()
	fail := func(err error) (*TipIntentView, error) {
		s.metrics.ObserveTransition(transitionAssign, metrics.OutcomeFailed, time.Since(start))
		return nil, err
	}
	if id == uuid.Nil || employeeID == uuid.Nil {
		return fail(pkgerrors.New(pkgerrors.CodeValidation, "tip intent id and employee id are required"))
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fail(notFoundOr(err, "load tip intent"))
	}
	// merchant_id never changes, so the employee check can run before the lock.
	if _, err := s.employees.ActiveForMerchant(ctx, current.MerchantID, employeeID); err != nil {
		return fail(err)
	}

	var (
		intent  *models.TipIntent
		applied bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "lock tip intent")
		}
		intent = locked

		if intent.EmployeeID != nil && *intent.EmployeeID == employeeID {
			return nil
		}
		if intent.Status != enums.TipIntentStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "employee can only be assigned while PENDING").
				WithDetails(map[string]any{
					"tipIntentId":   intent.ID,
					"currentStatus": intent.Status,
				})
		}

		assigned := employeeID
		intent.EmployeeID = &assigned
		updated, err := repo.Update(ctx, intent, enums.TipIntentStatusPending)
		if err != nil {
			return db.Classify(err, "assign employee")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConflict, "tip intent changed concurrently")
		}
		applied = true
		return nil
	})
	if err != nil {
		s.logFailure(ctx, id, transitionAssign, err)
		return fail(db.Classify(err, "assign employee"))
	}

	outcome := metrics.OutcomeReplay
	if applied {
		outcome = metrics.OutcomeApplied
		s.logTransition(ctx, intent, "employee assigned to tip intent")
	}
	s.metrics.ObserveTransition(transitionAssign, outcome, time.Since(start))
	return FromModel(intent), nil
}

// emit publishes after commit, ignoring caller cancellation; the publisher's
// own timeout bounds it. Failures are logged and counted; the committed
// transition stands.
func (s *service) emit(ctx context.Context, eventType enums.TipEventType, intent *models.TipIntent) {
	ctx = context.WithoutCancel(ctx)
	eventID, err := s.publisher.Publish(ctx, eventType, eventData(intent))
	if err == nil {
		return
	}
	logCtx := s.logg.WithTipIntentID(ctx, intent.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_type": eventType,
		"event_id":   eventID,
	})
	logCtx = s.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields())
	s.logg.Error(logCtx, "tip event publish failed", err)
}

func (s *service) logTransition(ctx context.Context, intent *models.TipIntent, msg string) {
	logCtx := s.logg.WithTipIntentID(ctx, intent.ID.String())
	logCtx = s.logg.WithMerchantID(logCtx, intent.MerchantID.String())
	logCtx = s.logg.WithField(logCtx, "status", intent.Status)
	s.logg.Info(logCtx, msg)
}

func (s *service) logFailure(ctx context.Context, id uuid.UUID, transition string, err error) {
	logCtx := s.logg.WithTipIntentID(ctx, id.String())
	logCtx = s.logg.WithField(logCtx, "transition", transition)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		s.logg.Warn(logCtx, err.Error())
		return
	}
	logCtx = s.logg.WithFields(logCtx, pkgerrors.Dump(err).Fields())
	s.logg.Error(logCtx, "tip intent transition failed", err)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "tip intent not found")
	}
	return db.Classify(err, msg)
}

func invalidTransition(intent *models.TipIntent, target enums.TipIntentStatus, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, msg).WithDetails(map[string]any{
		"tipIntentId":   intent.ID,
		"currentStatus": intent.Status,
		"targetStatus":  target,
	})
}

package tips

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tipledger-backend/internal/employees"
	"github.com/angelmondragon/tipledger-backend/internal/ledger"
	"github.com/angelmondragon/tipledger-backend/internal/merchants"
	"github.com/angelmondragon/tipledger-backend/internal/tableqrs"
	"github.com/angelmondragon/tipledger-backend/pkg/db"
	"github.com/angelmondragon/tipledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tipledger-backend/pkg/errors"
	"github.com/angelmondragon/tipledger-backend/pkg/events"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/metrics"
)

type publishedEvent struct {
	eventType enums.TipEventType
	data      events.TipIntentEventData
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
	// cancellable records whether each publish context could be cancelled.
	cancellable []bool
}

func (f *fakePublisher) Publish(ctx context.Context, eventType enums.TipEventType, data events.TipIntentEventData) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType: eventType, data: data})
	f.cancellable = append(f.cancellable, ctx.Done() != nil)
	if f.err != nil {
		return "evt-failed", f.err
	}
	return uuid.NewString(), nil
}

func (f *fakePublisher) types() []enums.TipEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]enums.TipEventType, 0, len(f.events))
	for _, evt := range f.events {
		out = append(out, evt.eventType)
	}
	return out
}

type harness struct {
	svc       Service
	conn      *gorm.DB
	fx        dbtest.Fixture
	publisher *fakePublisher
	registry  *prometheus.Registry
	logs      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t, t.Name())
	fx := dbtest.Seed(t, conn)

	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "tips-test", Level: logger.ParseLevel("debug"), Output: logs})
	registry := prometheus.NewRegistry()

	merchantSvc, err := merchants.NewService(merchants.NewRepository(conn))
	require.NoError(t, err)
	tableSvc, err := tableqrs.NewService(tableqrs.NewRepository(conn), merchantSvc)
	require.NoError(t, err)
	ledgerRepo := ledger.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledgerRepo)
	require.NoError(t, err)
	employeeSvc, err := employees.NewService(employees.NewRepository(conn), ledgerSvc, merchantSvc)
	require.NoError(t, err)

	publisher := &fakePublisher{}
	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(conn),
		Tx:         db.FromConn(conn, 0),
		Ledger:     ledgerSvc,
		LedgerRepo: ledgerRepo,
		Tables:     tableSvc,
		Employees:  employeeSvc,
		Publisher:  publisher,
		Metrics:    metrics.NewTipMetrics(registry),
		Logger:     logg,
	})
	require.NoError(t, err)

	return &harness{svc: svc, conn: conn, fx: fx, publisher: publisher, registry: registry, logs: logs}
}

func (h *harness) input(amount, key string) CreateTipIntentInput {
	employeeID := h.fx.Employee.ID
	return CreateTipIntentInput{
		MerchantID:     h.fx.Merchant.ID,
		TableCode:      h.fx.Table.TableCode,
		Amount:         decimal.RequireFromString(amount),
		IdempotencyKey: key,
		EmployeeID:     &employeeID,
	}
}

func (h *harness) entries(t *testing.T, tipIntentID uuid.UUID) []models.LedgerEntry {
	t.Helper()
	var entries []models.LedgerEntry
	require.NoError(t, h.conn.Where("tip_intent_id = ?", tipIntentID).Order("created_at ASC").Find(&entries).Error)
	return entries
}

func (h *harness) counter(t *testing.T, transition, outcome string) float64 {
	t.Helper()
	families, err := h.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "tip_transitions_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["transition"] == transition && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestCreateConfirmReverseScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, h.input("12.5", "k1"))
	require.NoError(t, err)
	assert.True(t, created.Created)
	assert.Equal(t, enums.TipIntentStatusPending, created.Status)
	assert.Equal(t, "12.500", created.Amount)
	assert.Equal(t, "T-1", created.TableCode)
	require.NotNil(t, created.TableQRID)
	assert.Equal(t, h.fx.Table.ID, *created.TableQRID)

	confirmed, err := h.svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TipIntentStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Nil(t, confirmed.ReversedAt)

	entries := h.entries(t, created.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.LedgerEntryTypeCredit, entries[0].Type)
	assert.Equal(t, "12.500", entries[0].Amount.StringFixed(3))
	assert.Equal(t, h.fx.Employee.ID, entries[0].EmployeeID)
	require.NotNil(t, entries[0].Notes)
	assert.Equal(t, "Tip confirmed from T-1", *entries[0].Notes)

	reversed, err := h.svc.Reverse(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TipIntentStatusReversed, reversed.Status)
	require.NotNil(t, reversed.ReversedAt)
	require.NotNil(t, reversed.ConfirmedAt)
	assert.True(t, confirmed.ConfirmedAt.Equal(*reversed.ConfirmedAt), "confirmedAt is set once")

	entries = h.entries(t, created.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, enums.LedgerEntryTypeDebit, entries[1].Type)
	assert.Equal(t, "-12.500", entries[1].Amount.StringFixed(3))
	assert.Equal(t, "Tip reversed from T-1", *entries[1].Notes)
	assert.True(t, entries[0].Amount.Add(entries[1].Amount).IsZero())

	assert.Equal(t, []enums.TipEventType{
		enums.TipEventIntentCreated,
		enums.TipEventConfirmed,
		enums.TipEventReversed,
	}, h.publisher.types())
	assert.Equal(t, "12.500", h.publisher.events[2].data.Amount)
	assert.Equal(t, enums.TipIntentStatusReversed, h.publisher.events[2].data.Status)
}

func TestCreateReplaysStoredRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Create(ctx, h.input("5.000", "same-key"))
	require.NoError(t, err)

	// A different amount under the same key still returns the original.
	second, err := h.svc.Create(ctx, h.input("9.000", "same-key"))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "5.000", second.Amount)

	var count int64
	require.NoError(t, h.conn.Model(&models.TipIntent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Len(t, h.publisher.types(), 1, "replays do not emit")
	assert.Equal(t, float64(1), h.counter(t, transitionCreate, metrics.OutcomeReplay))
}

func TestConcurrentCreateSameKeyInsertsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const workers = 10
	ids := make([]uuid.UUID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := h.svc.Create(ctx, h.input("3.300", "race-key"))
			if assert.NoError(t, err) {
				ids[i] = view.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	require.NoError(t, h.conn.Model(&models.TipIntent{}).Where("idempotency_key = ?", "race-key").Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Len(t, h.publisher.types(), 1)
}

func TestEventsSurviveCallerCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created, err := h.svc.Create(ctx, h.input("3.300", "detached-publish"))
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	_, err = h.svc.Reverse(ctx, created.ID)
	require.NoError(t, err)

	h.publisher.mu.Lock()
	defer h.publisher.mu.Unlock()
	require.Len(t, h.publisher.cancellable, 3)
	for i, cancellable := range h.publisher.cancellable {
		assert.False(t, cancellable, "publish %d inherited the caller's cancellation", i)
	}
}

// assertSameTimestamp checks every caller saw one timestamp, at the
// microsecond precision Postgres stores.
func assertSameTimestamp(t *testing.T, views []*TipIntentView, pick func(*TipIntentView) *time.Time) {
	t.Helper()
	var want *time.Time
	for _, view := range views {
		require.NotNil(t, view)
		got := pick(view)
		require.NotNil(t, got)
		assert.Zero(t, got.Nanosecond()%int(time.Microsecond), "timestamp finer than microseconds: %s", got)
		if want == nil {
			want = got
			continue
		}
		assert.True(t, want.Equal(*got), "timestamps differ: %s vs %s", want, got)
	}
}

func TestConcurrentConfirmAppliesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, h.input("7.777", "confirm-race"))
	require.NoError(t, err)

	const workers = 10
	views := make([]*TipIntentView, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := h.svc.Confirm(ctx, created.ID)
			if assert.NoError(t, err) {
				assert.Equal(t, enums.TipIntentStatusConfirmed, view.Status)
				views[i] = view
			}
		}()
	}
	wg.Wait()
	assertSameTimestamp(t, views, func(v *TipIntentView) *time.Time { return v.ConfirmedAt })

	entries := h.entries(t, created.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.LedgerEntryTypeCredit, entries[0].Type)
	assert.Equal(t, float64(1), h.counter(t, transitionConfirm, metrics.OutcomeApplied))
	assert.Equal(t, float64(workers-1), h.counter(t, transitionConfirm, metrics.OutcomeReplay))

	confirmedEvents := 0
	for _, evt := range h.publisher.types() {
		if evt == enums.TipEventConfirmed {
			confirmedEvents++
		}
	}
	assert.Equal(t, 1, confirmedEvents)
}

func TestConcurrentReverseAppliesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, h.input("2.000", "reverse-race"))
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, created.ID)
	require.NoError(t, err)

	const workers = 8
	views := make([]*TipIntentView, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := h.svc.Reverse(ctx, created.ID)
			if assert.NoError(t, err) {
				views[i] = view
			}
		}()
	}
	wg.Wait()
	assertSameTimestamp(t, views, func(v *TipIntentView) *time.Time { return v.ReversedAt })

	entries := h.entries(t, created.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, enums.LedgerEntryTypeDebit, entries[1].Type)
}

func TestIllegalTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.svc.Create(ctx, h.input("4.000", "illegal-1"))
	require.NoError(t, err)

	_, err = h.svc.Reverse(ctx, pending.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	assert.Empty(t, h.entries(t, pending.ID))

	_, err = h.svc.Confirm(ctx, pending.ID)
	require.NoError(t, err)
	_, err = h.svc.Reverse(ctx, pending.ID)
	require.NoError(t, err)

	_, err = h.svc.Confirm(ctx, pending.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	assert.Len(t, h.entries(t, pending.ID), 2)

	replay, err := h.svc.Reverse(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TipIntentStatusReversed, replay.Status)
	assert.Len(t, h.entries(t, pending.ID), 2)
}

func TestConfirmRequiresEmployee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	input := h.input("6.000", "no-employee")
	input.EmployeeID = nil
	hint := "the tall waiter"
	input.EmployeeHint = &hint
	created, err := h.svc.Create(ctx, input)
	require.NoError(t, err)
	assert.Nil(t, created.EmployeeID)
	require.NotNil(t, created.EmployeeHint)

	_, err = h.svc.Confirm(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	assigned, err := h.svc.AssignEmployee(ctx, created.ID, h.fx.Employee.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.EmployeeID)
	assert.Equal(t, h.fx.Employee.ID, *assigned.EmployeeID)

	again, err := h.svc.AssignEmployee(ctx, created.ID, h.fx.Employee.ID)
	require.NoError(t, err)
	assert.Equal(t, assigned.EmployeeID, again.EmployeeID)
	assert.Equal(t, float64(1), h.counter(t, transitionAssign, metrics.OutcomeReplay))

	confirmed, err := h.svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TipIntentStatusConfirmed, confirmed.Status)

	other := dbtest.CreateEmployee(t, h.conn, h.fx.Merchant.ID, "Caro", true)
	_, err = h.svc.AssignEmployee(ctx, created.ID, other.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestAssignEmployeeRejectsForeignStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	input := h.input("1.000", "assign-foreign")
	input.EmployeeID = nil
	created, err := h.svc.Create(ctx, input)
	require.NoError(t, err)

	foreignMerchant := dbtest.CreateMerchant(t, h.conn, "Rival Diner")
	foreign := dbtest.CreateEmployee(t, h.conn, foreignMerchant.ID, "Max", true)
	_, err = h.svc.AssignEmployee(ctx, created.ID, foreign.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.AssignEmployee(ctx, uuid.New(), h.fx.Employee.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateValidationAndLookups(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := h.input("1.2345", "")
	bad.TableCode = " "
	_, err := h.svc.Create(ctx, bad)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().([]FieldError)
	require.True(t, ok)
	fields := map[string]bool{}
	for _, d := range details {
		fields[d.Field] = true
	}
	assert.True(t, fields["tableCode"])
	assert.True(t, fields["amount"])
	assert.True(t, fields["idempotencyKey"])

	negative := h.input("-1", "neg")
	_, err = h.svc.Create(ctx, negative)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	// numeric(12,3) cannot hold 1e9; this must fail validation, not the insert.
	tooLarge := h.input("1000000000.000", "too-large")
	_, err = h.svc.Create(ctx, tooLarge)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.False(t, pkgerrors.IsRetryable(err))
	details, ok = pkgerrors.As(err).Details().([]FieldError)
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, "amount", details[0].Field)

	unknownTable := h.input("1", "unknown-table")
	unknownTable.TableCode = "NOPE"
	_, err = h.svc.Create(ctx, unknownTable)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	inactive := dbtest.CreateTable(t, h.conn, h.fx.Merchant.ID, "OLD", false)
	inactiveInput := h.input("1", "inactive-table")
	inactiveInput.TableCode = inactive.TableCode
	_, err = h.svc.Create(ctx, inactiveInput)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	stranger := uuid.New()
	strangerInput := h.input("1", "stranger")
	strangerInput.EmployeeID = &stranger
	_, err = h.svc.Create(ctx, strangerInput)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var count int64
	require.NoError(t, h.conn.Model(&models.TipIntent{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, h.publisher.types())
}

func TestAmountRoundTripKeepsThreeDecimals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, h.input("1.245", "round-trip"))
	require.NoError(t, err)
	assert.Equal(t, "1.245", created.Amount)

	loaded, err := h.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.245", loaded.Amount)

	_, err = h.svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	entries := h.entries(t, created.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.245", entries[0].Amount.StringFixed(3))
}

func TestNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := h.svc.Get(ctx, missing)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.Confirm(ctx, missing)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.Reverse(ctx, missing)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.Get(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPublishFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.Create(ctx, h.input("8.000", "publish-fails"))
	require.NoError(t, err)

	h.publisher.err = errors.New("pubsub unavailable")
	confirmed, err := h.svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TipIntentStatusConfirmed, confirmed.Status)
	assert.Len(t, h.entries(t, created.ID), 1)
	assert.Contains(t, h.logs.String(), "tip event publish failed")
}

type failingTx struct{ err error }

func (f failingTx) WithTx(context.Context, func(tx *gorm.DB) error) error { return f.err }

func TestLockTimeoutIsRetryable(t *testing.T) {
	h := newHarness(t)
	concrete := h.svc.(*service)
	concrete.tx = failingTx{err: errors.New("ERROR: canceling statement due to lock timeout")}

	_, err := h.svc.Confirm(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeLockTimeout))
	assert.True(t, pkgerrors.IsRetryable(err))
}

package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tipledger-backend/internal/ledger"
	"github.com/angelmondragon/tipledger-backend/pkg/db/models"
	"github.com/angelmondragon/tipledger-backend/pkg/logger"
	"github.com/angelmondragon/tipledger-backend/pkg/metrics"
	"github.com/angelmondragon/tipledger-backend/pkg/types"
)

const (
	ProcessedEventsRetentionJob = "processed-events-retention"
	LedgerReconcileJob          = "ledger-reconcile"

	defaultRetention      = 30 * 24 * time.Hour
	defaultReconcileLimit = 100
)

type eventPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RetentionJobParams struct {
	Logger    *logger.Logger
	Purger    eventPurger
	Metrics   *metrics.JobMetrics
	Retention time.Duration
}

// NewRetentionJob drops processed_events rows older than the retention
// window. Redelivery of an event that old is not expected.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Purger == nil {
		return nil, errors.New("processed events purger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &retentionJob{
		logg:      params.Logger,
		purger:    params.Purger,
		metrics:   params.Metrics,
		retention: retention,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	logg      *logger.Logger
	purger    eventPurger
	metrics   *metrics.JobMetrics
	retention time.Duration
	now       func() time.Time
}

func (j *retentionJob) Name() string { return ProcessedEventsRetentionJob }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("processed events retention: %w", err)
	}
	j.metrics.AddDeleted(j.Name(), deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "processed events purged")
	return nil
}

type ledgerAuditor interface {
	Inconsistencies(ctx context.Context, limit int) ([]ledger.Mismatch, error)
}

type ledgerHistory interface {
	ListByTipIntent(ctx context.Context, tipIntentID uuid.UUID) ([]models.LedgerEntry, error)
}

type ReconcileJobParams struct {
	Logger  *logger.Logger
	Auditor ledgerAuditor
	// History is optional; when set each mismatch is logged with the
	// intent's entries.
	History ledgerHistory
	Metrics *metrics.JobMetrics
	Limit   int
}

// NewReconcileJob reports tip intents whose ledger entries do not match
// their status. It never repairs anything; the ledger is append-only and a
// mismatch needs a human.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Auditor == nil {
		return nil, errors.New("ledger auditor required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &reconcileJob{
		logg:    params.Logger,
		auditor: params.Auditor,
		history: params.History,
		metrics: params.Metrics,
		limit:   limit,
	}, nil
}

type reconcileJob struct {
	logg    *logger.Logger
	auditor ledgerAuditor
	history ledgerHistory
	metrics *metrics.JobMetrics
	limit   int
}

func (j *reconcileJob) Name() string { return LedgerReconcileJob }

func (j *reconcileJob) Run(ctx context.Context) error {
	mismatches, err := j.auditor.Inconsistencies(ctx, j.limit)
	if err != nil {
		return err
	}
	j.metrics.SetInconsistencies(len(mismatches))
	if len(mismatches) == 0 {
		j.logg.Info(ctx, "ledger consistent")
		return nil
	}

	var combined error
	for _, m := range mismatches {
		fields := map[string]any{
			"tip_intent_id": m.TipIntentID.String(),
			"status":        m.Status.String(),
			"credits":       m.Credits,
			"debits":        m.Debits,
		}
		if entries := j.entries(ctx, m.TipIntentID); entries != nil {
			fields["entries"] = entries
		}
		j.logg.Warn(j.logg.WithFields(ctx, fields), "ledger mismatch")
		combined = multierr.Append(combined, errors.New(m.String()))
	}
	return fmt.Errorf("%d inconsistent tip intent(s): %w", len(mismatches), combined)
}

// entries renders the intent's ledger history as "TYPE amount id" lines.
// A failed lookup only costs the detail, not the report.
func (j *reconcileJob) entries(ctx context.Context, tipIntentID uuid.UUID) []string {
	if j.history == nil {
		return nil
	}
	rows, err := j.history.ListByTipIntent(ctx, tipIntentID)
	if err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "tip_intent_id", tipIntentID.String()), "ledger history lookup failed: "+err.Error())
		return nil
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, fmt.Sprintf("%s %s %s", row.Type, types.FormatAmount(row.Amount), row.ID))
	}
	return out
}

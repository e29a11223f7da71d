package merchants

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tipledger-backend/pkg/enums"
	"github.com/angelmondragon/tipledger-backend/pkg/types"
)

// StatusSummary is the count and amount total for one tip status.
type StatusSummary struct {
	Count       int64  `json:"count"`
	TotalAmount string `json:"totalAmount"`
}

// MerchantTipSummary is the per-status breakdown of a merchant's tips.
type MerchantTipSummary struct {
	MerchantID uuid.UUID     `json:"merchantId"`
	Pending    StatusSummary `json:"pending"`
	Confirmed  StatusSummary `json:"confirmed"`
	Reversed   StatusSummary `json:"reversed"`
	NetTotal   string        `json:"netTotal"`
}

// buildSummary zero-fills missing statuses. netTotal is confirmed minus
// reversed.
func buildSummary(merchantID uuid.UUID, rows []StatusAggregate) *MerchantTipSummary {
	counts := map[enums.TipIntentStatus]int64{}
	totals := map[enums.TipIntentStatus]decimal.Decimal{}
	for _, row := range rows {
		counts[row.Status] += row.Count
		totals[row.Status] = totals[row.Status].Add(row.Total)
	}

	summaryFor := func(status enums.TipIntentStatus) StatusSummary {
		return StatusSummary{
			Count:       counts[status],
			TotalAmount: types.FormatAmount(types.NormalizeAmount(totals[status])),
		}
	}

	net := types.NormalizeAmount(totals[enums.TipIntentStatusConfirmed]).
		Sub(types.NormalizeAmount(totals[enums.TipIntentStatusReversed]))

	return &MerchantTipSummary{
		MerchantID: merchantID,
		Pending:    summaryFor(enums.TipIntentStatusPending),
		Confirmed:  summaryFor(enums.TipIntentStatusConfirmed),
		Reversed:   summaryFor(enums.TipIntentStatusReversed),
		NetTotal:   types.FormatAmount(net),
	}
}

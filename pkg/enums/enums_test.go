package enums

import "testing"

func TestTipIntentStatusTransitions(t *testing.T) {
	tests := []struct {
		from TipIntentStatus
		to   TipIntentStatus
		want bool
	}{
		{TipIntentStatusPending, TipIntentStatusConfirmed, true},
		{TipIntentStatusConfirmed, TipIntentStatusReversed, true},
		{TipIntentStatusPending, TipIntentStatusReversed, false},
		{TipIntentStatusPending, TipIntentStatusPending, false},
		{TipIntentStatusConfirmed, TipIntentStatusPending, false},
		{TipIntentStatusReversed, TipIntentStatusConfirmed, false},
		{TipIntentStatusReversed, TipIntentStatusPending, false},
		{TipIntentStatus("BOGUS"), TipIntentStatusConfirmed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestParseTipIntentStatus(t *testing.T) {
	for _, status := range TipIntentStatuses() {
		parsed, err := ParseTipIntentStatus(string(status))
		if err != nil || parsed != status {
			t.Fatalf("round trip failed for %s: %v", status, err)
		}
	}
	if _, err := ParseTipIntentStatus("pending"); err == nil {
		t.Fatal("status parsing should be case sensitive")
	}
}

func TestLedgerEntryTypeValidity(t *testing.T) {
	if !LedgerEntryTypeCredit.IsValid() || !LedgerEntryTypeDebit.IsValid() {
		t.Fatal("credit and debit must be valid")
	}
	if LedgerEntryType("REFUND").IsValid() {
		t.Fatal("unexpected ledger entry type accepted")
	}
	if _, err := ParseLedgerEntryType("CREDIT"); err != nil {
		t.Fatalf("parse credit: %v", err)
	}
}

func TestParseTipEventType(t *testing.T) {
	if got, err := ParseTipEventType("TIP_CONFIRMED"); err != nil || got != TipEventConfirmed {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseTipEventType("TIP_REFUNDED"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
}

package accounting

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coreexec/marginsim/internal/store"
)

func TestEvaluateLongUnrealizedPnL(t *testing.T) {
	t.Parallel()

	account := store.Account{Balance: decimal.NewFromInt(7000)}
	positions := []store.Position{
		{Symbol: "BTCUSDT", Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(30000), Margin: decimal.NewFromInt(3000)},
	}
	marks := map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(31000)}

	got := Evaluate(account, positions, marks)

	if !got.TotalUnrealizedPnL.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("unrealized pnl = %s, want 1000", got.TotalUnrealizedPnL)
	}
	if !got.Equity.Equal(decimal.NewFromInt(11000)) {
		t.Errorf("equity = %s, want 11000", got.Equity)
	}
	if !AllMarksKnown(got) {
		t.Error("expected all marks known")
	}
}

func TestEvaluateShortUnrealizedPnLSignCorrect(t *testing.T) {
	t.Parallel()

	account := store.Account{Balance: decimal.NewFromInt(9600)}
	positions := []store.Position{
		{Symbol: "ETHUSDT", Quantity: decimal.NewFromInt(-2), EntryPrice: decimal.NewFromInt(2000), Margin: decimal.NewFromInt(400)},
	}
	marks := map[string]decimal.Decimal{"ETHUSDT": decimal.NewFromInt(2100)}

	got := Evaluate(account, positions, marks)

	// (2100 - 2000) * -2 = -200: price moved against the short.
	if !got.TotalUnrealizedPnL.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("unrealized pnl = %s, want -200", got.TotalUnrealizedPnL)
	}
}

func TestEvaluateMissingMarkTreatedAsZero(t *testing.T) {
	t.Parallel()

	account := store.Account{Balance: decimal.NewFromInt(1000)}
	positions := []store.Position{
		{Symbol: "XYZ", Quantity: decimal.NewFromInt(5), EntryPrice: decimal.NewFromInt(10), Margin: decimal.NewFromInt(50)},
	}

	got := Evaluate(account, positions, map[string]decimal.Decimal{})

	if !got.TotalUnrealizedPnL.IsZero() {
		t.Errorf("expected zero contribution for missing mark, got %s", got.TotalUnrealizedPnL)
	}
	if !got.Equity.Equal(decimal.NewFromInt(1050)) {
		t.Errorf("equity = %s, want 1050", got.Equity)
	}
	if AllMarksKnown(got) {
		t.Error("expected AllMarksKnown to be false")
	}
}

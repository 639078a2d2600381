// Package accounting implements the pure function that turns an account's
// balance, margin and open positions into equity and per-position
// unrealized P&L, given a snapshot of mark prices. It has no side effects
// and touches no store or network client, so it is exercised identically by
// the equity recorder and the HTTP read surface.
package accounting

import (
	"github.com/shopspring/decimal"

	"github.com/coreexec/marginsim/internal/store"
)

// PositionMetrics is one position's contribution to account equity.
type PositionMetrics struct {
	PositionID     uint
	Symbol         string
	UnrealizedPnL  decimal.Decimal
	MarkAvailable  bool
}

// AccountMetrics is the result of evaluating an account against a price
// snapshot.
type AccountMetrics struct {
	Balance           decimal.Decimal
	TotalMargin       decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
	Equity            decimal.Decimal
	Positions         []PositionMetrics
}

// Evaluate computes equity = balance + total margin + total unrealized P&L.
// Unrealized P&L per position is (mark - entry) * signed quantity; if no
// mark is available for a position's symbol, its contribution is treated as
// zero and MarkAvailable is reported as false so callers
// that need all-marks-known (e.g. the Equity Recorder) can detect it.
func Evaluate(account store.Account, positions []store.Position, marks map[string]decimal.Decimal) AccountMetrics {
	result := AccountMetrics{
		Balance:   account.Balance,
		Positions: make([]PositionMetrics, 0, len(positions)),
	}

	for _, pos := range positions {
		result.TotalMargin = result.TotalMargin.Add(pos.Margin)

		pm := PositionMetrics{PositionID: pos.ID, Symbol: pos.Symbol}
		if mark, ok := marks[pos.Symbol]; ok {
			pm.MarkAvailable = true
			pm.UnrealizedPnL = mark.Sub(pos.EntryPrice).Mul(pos.Quantity)
			result.TotalUnrealizedPnL = result.TotalUnrealizedPnL.Add(pm.UnrealizedPnL)
		}
		result.Positions = append(result.Positions, pm)
	}

	result.Equity = result.Balance.Add(result.TotalMargin).Add(result.TotalUnrealizedPnL)
	return result
}

// AllMarksKnown reports whether every position in metrics had a mark price
// available — the gate the Equity Recorder uses to avoid writing a
// zero-P&L spike for an account with a stale symbol.
func AllMarksKnown(metrics AccountMetrics) bool {
	for _, p := range metrics.Positions {
		if !p.MarkAvailable {
			return false
		}
	}
	return true
}

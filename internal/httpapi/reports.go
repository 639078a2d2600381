package httpapi

import (
	"github.com/shopspring/decimal"

	"github.com/coreexec/marginsim/internal/store"
)

// dailyPnLFromHistory buckets closed positions by the UTC calendar day they
// closed on and sums realized P&L within each bucket.
func dailyPnLFromHistory(rows []store.PositionHistory) []DailyPnL {
	byDay := make(map[string]decimal.Decimal)
	order := make([]string, 0)

	for _, row := range rows {
		day := row.ClosedAt.UTC().Format("2006-01-02")
		if _, seen := byDay[day]; !seen {
			order = append(order, day)
			byDay[day] = decimal.Zero
		}
		byDay[day] = byDay[day].Add(row.RealizedPnL)
	}

	result := make([]DailyPnL, 0, len(order))
	for _, day := range order {
		result = append(result, DailyPnL{Date: day, RealizedPnL: byDay[day]})
	}
	return result
}

// statisticsFromHistory aggregates win/loss counts and totals across every
// closed position.
func statisticsFromHistory(rows []store.PositionHistory) Statistics {
	stats := Statistics{}
	for _, row := range rows {
		stats.TotalTrades++
		if row.RealizedPnL.Sign() > 0 {
			stats.Wins++
		} else if row.RealizedPnL.Sign() < 0 {
			stats.Losses++
		}
		stats.TotalRealizedPnL = stats.TotalRealizedPnL.Add(row.RealizedPnL)
		stats.TotalFees = stats.TotalFees.Add(row.TotalFee)
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).Div(decimal.NewFromInt(int64(stats.TotalTrades)))
	}
	return stats
}

package httpapi

import (
	"github.com/shopspring/decimal"

	"github.com/coreexec/marginsim/internal/store"
)

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateAccountRequest is the body of POST /accounts. InitialBalance and
// Leverage are optional; omitting them (or sending a zero value) falls back
// to the server's configured defaults.
type CreateAccountRequest struct {
	UserID         string          `json:"user_id"`
	InitialBalance decimal.Decimal `json:"initial_balance,omitempty"`
	Leverage       int             `json:"leverage,omitempty"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	AccountID       uint             `json:"account_id"`
	Symbol          string           `json:"symbol"`
	Side            store.OrderSide  `json:"side"`
	OrderType       store.OrderType  `json:"order_type"`
	Quantity        decimal.Decimal  `json:"quantity"`
	LimitPrice      *decimal.Decimal `json:"limit_price,omitempty"`
	Leverage        int              `json:"leverage,omitempty"`
	TakeProfitPrice *decimal.Decimal `json:"take_profit_price,omitempty"`
	StopLossPrice   *decimal.Decimal `json:"stop_loss_price,omitempty"`
}

// AmendOrderRequest is the body of PATCH /orders/{id}.
type AmendOrderRequest struct {
	LimitPrice      *decimal.Decimal `json:"limit_price,omitempty"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	TakeProfitPrice *decimal.Decimal `json:"take_profit_price,omitempty"`
	StopLossPrice   *decimal.Decimal `json:"stop_loss_price,omitempty"`
}

// UpdatePositionRequest is the body of PATCH /positions/{id}.
type UpdatePositionRequest struct {
	TakeProfitPrice *decimal.Decimal `json:"take_profit_price,omitempty"`
	StopLossPrice   *decimal.Decimal `json:"stop_loss_price,omitempty"`
}

// AccountSummary is the response shape for GET /accounts/{id}, combining the
// stored account with its live equity evaluation.
type AccountSummary struct {
	Account            store.Account    `json:"account"`
	Positions          []store.Position `json:"positions"`
	Equity             decimal.Decimal  `json:"equity"`
	TotalMargin        decimal.Decimal  `json:"total_margin"`
	TotalUnrealizedPnL decimal.Decimal  `json:"total_unrealized_pnl"`
}

// DailyPnL is one day's realized P&L total, for GET /accounts/{id}/daily-pnl.
type DailyPnL struct {
	Date        string          `json:"date"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// Statistics summarizes an account's closed-trade history, for
// GET /accounts/{id}/statistics.
type Statistics struct {
	TotalTrades      int             `json:"total_trades"`
	Wins             int             `json:"wins"`
	Losses           int             `json:"losses"`
	WinRate          decimal.Decimal `json:"win_rate"`
	TotalRealizedPnL decimal.Decimal `json:"total_realized_pnl"`
	TotalFees        decimal.Decimal `json:"total_fees"`
}

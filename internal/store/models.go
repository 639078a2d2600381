// Package store defines the durable entities of the simulator and the
// transactional operations the matching engine and submission layer use to
// mutate them. Models are persisted with GORM against Postgres (production)
// or SQLite (local/dev and tests), the same dual-driver split as the
// reference codebase.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order or trade.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType distinguishes MARKET from LIMIT orders.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// OrderStatus tracks an order's position in its lifecycle.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
)

// PositionSide labels a closed position's direction in PositionHistory.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// Account is a virtual trading account: one free-cash balance plus a default
// leverage used by new orders that don't specify their own.
type Account struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex"`
	Balance   decimal.Decimal `gorm:"type:decimal(24,12)"`
	Leverage  int             `gorm:"default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Order is a user's (or the engine's own, for synthesized TP/SL closes)
// request to buy or sell a symbol.
type Order struct {
	ID              uint   `gorm:"primaryKey"`
	AccountID       uint   `gorm:"index"`
	Symbol          string `gorm:"index"`
	Side            OrderSide
	OrderType       OrderType
	LimitPrice      *decimal.Decimal `gorm:"type:decimal(24,12)"`
	AvgPrice        decimal.Decimal  `gorm:"type:decimal(24,12)"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(24,12)"`
	FilledQuantity  decimal.Decimal  `gorm:"type:decimal(24,12)"`
	Leverage        int
	TakeProfitPrice *decimal.Decimal `gorm:"type:decimal(24,12)"`
	StopLossPrice   *decimal.Decimal `gorm:"type:decimal(24,12)"`
	Fee             decimal.Decimal  `gorm:"type:decimal(24,12)"`
	Status          OrderStatus      `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Trade is one append-only fill event against an Order.
type Trade struct {
	ID         uint   `gorm:"primaryKey"`
	OrderID    uint   `gorm:"index"`
	Symbol     string `gorm:"index"`
	Side       OrderSide
	Price      decimal.Decimal `gorm:"type:decimal(24,12)"`
	Quantity   decimal.Decimal `gorm:"type:decimal(24,12)"`
	Commission decimal.Decimal `gorm:"type:decimal(24,12)"`
	ExecutedAt time.Time
}

// Position is the single open net position for (account, symbol) in
// one-way mode: positive Quantity is long, negative is short.
type Position struct {
	ID              uint   `gorm:"primaryKey"`
	AccountID       uint   `gorm:"uniqueIndex:idx_account_symbol"`
	Symbol          string `gorm:"uniqueIndex:idx_account_symbol"`
	Quantity        decimal.Decimal `gorm:"type:decimal(24,12)"`
	EntryPrice      decimal.Decimal `gorm:"type:decimal(24,12)"`
	Leverage        int
	Margin          decimal.Decimal `gorm:"type:decimal(24,12)"`
	RealizedPnL     decimal.Decimal `gorm:"type:decimal(24,12)"`
	AccumulatedFees decimal.Decimal `gorm:"type:decimal(24,12)"`
	TakeProfitPrice *decimal.Decimal `gorm:"type:decimal(24,12)"`
	StopLossPrice   *decimal.Decimal `gorm:"type:decimal(24,12)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PositionHistory is the append-only record written when a Position fully
// closes (quantity returns to zero).
type PositionHistory struct {
	ID          uint   `gorm:"primaryKey"`
	AccountID   uint   `gorm:"index"`
	Symbol      string `gorm:"index"`
	Side        PositionSide
	EntryPrice  decimal.Decimal `gorm:"type:decimal(24,12)"`
	ExitPrice   decimal.Decimal `gorm:"type:decimal(24,12)"`
	Leverage    int
	RealizedPnL decimal.Decimal `gorm:"type:decimal(24,12)"`
	TotalFee    decimal.Decimal `gorm:"type:decimal(24,12)"`
	CreatedAt   time.Time
	ClosedAt    time.Time
}

// EquityHistory is an append-only equity snapshot written by the Equity
// Recorder.
type EquityHistory struct {
	ID        uint `gorm:"primaryKey"`
	AccountID uint `gorm:"index"`
	Equity    decimal.Decimal `gorm:"type:decimal(24,12)"`
	Timestamp time.Time
}

// TableName overrides keep the schema names stable
// regardless of GORM's default pluralization rules.
func (Account) TableName() string         { return "accounts" }
func (Order) TableName() string           { return "orders" }
func (Trade) TableName() string           { return "trades" }
func (Position) TableName() string        { return "positions" }
func (PositionHistory) TableName() string { return "position_history" }
func (EquityHistory) TableName() string   { return "equity_history" }

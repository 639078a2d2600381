package matching

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coreexec/marginsim/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	e := &Engine{
		store:         st,
		marketFeeRate: decimal.NewFromFloat(0.001),
		limitFeeRate:  decimal.NewFromFloat(0.0005),
	}
	return e, st
}

func mustCreateAccount(t *testing.T, st *store.Store, balance decimal.Decimal, leverage int) *store.Account {
	t.Helper()
	acc, err := st.CreateAccount(t.Name(), balance, leverage)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acc
}

func mustCreateOrder(t *testing.T, st *store.Store, o store.Order) uint {
	t.Helper()
	if err := st.DB().Create(&o).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o.ID
}

// TestExecuteTradeOpensNewPosition covers Case A: a fill against an account
// with no existing position for the symbol opens one and deducts margin and
// fee from the balance.
func TestExecuteTradeOpensNewPosition(t *testing.T) {
	t.Parallel()
	e, st := newTestEngine(t)
	acc := mustCreateAccount(t, st, decimal.NewFromInt(10000), 10)

	orderID := mustCreateOrder(t, st, store.Order{
		AccountID: acc.ID,
		Symbol:    "BTCUSDT",
		Side:      store.SideBuy,
		OrderType: store.OrderMarket,
		Quantity:  decimal.NewFromInt(1),
		Leverage:  10,
		Status:    store.StatusNew,
	})

	if err := e.executeTrade(orderID, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("execute trade: %v", err)
	}

	order, err := st.GetOrder(orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != store.StatusFilled {
		t.Errorf("status = %s, want FILLED", order.Status)
	}

	positions, err := st.ListPositions(acc.ID)
	if err != nil {
		t.Fatalf("list positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	pos := positions[0]
	if !pos.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("quantity = %s, want 1", pos.Quantity)
	}
	if !pos.EntryPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("entry price = %s, want 100", pos.EntryPrice)
	}
	if !pos.Margin.Equal(decimal.NewFromInt(10)) {
		t.Errorf("margin = %s, want 10", pos.Margin)
	}

	updated, err := st.GetAccount(acc.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	// 10000 - margin(10) - fee(100*1*0.001=0.1)
	want := decimal.NewFromInt(10000).Sub(decimal.NewFromInt(10)).Sub(decimal.NewFromFloat(0.1))
	if !updated.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", updated.Balance, want)
	}
}

// TestExecuteTradeAddsToPositionSameDirection covers Case B: a same-side
// fill grows the position and recomputes a quantity-weighted entry price.
func TestExecuteTradeAddsToPositionSameDirection(t *testing.T) {
	t.Parallel()
	e, st := newTestEngine(t)
	acc := mustCreateAccount(t, st, decimal.NewFromInt(10000), 10)

	position := store.Position{
		AccountID:  acc.ID,
		Symbol:     "BTCUSDT",
		Quantity:   decimal.NewFromInt(1),
		EntryPrice: decimal.NewFromInt(100),
		Leverage:   10,
		Margin:     decimal.NewFromInt(10),
	}
	if err := st.DB().Create(&position).Error; err != nil {
		t.Fatalf("seed position: %v", err)
	}

	orderID := mustCreateOrder(t, st, store.Order{
		AccountID: acc.ID,
		Symbol:    "BTCUSDT",
		Side:      store.SideBuy,
		OrderType: store.OrderMarket,
		Quantity:  decimal.NewFromInt(1),
		Leverage:  10,
		Status:    store.StatusNew,
	})

	if err := e.executeTrade(orderID, decimal.NewFromInt(120)); err != nil {
		t.Fatalf("execute trade: %v", err)
	}

	positions, err := st.ListPositions(acc.ID)
	if err != nil {
		t.Fatalf("list positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	pos := positions[0]
	if !pos.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("quantity = %s, want 2", pos.Quantity)
	}
	wantEntry := decimal.NewFromInt(110) // (1*100 + 1*120) / 2
	if !pos.EntryPrice.Equal(wantEntry) {
		t.Errorf("entry price = %s, want %s", pos.EntryPrice, wantEntry)
	}
	wantMargin := decimal.NewFromInt(10).Add(decimal.NewFromInt(12)) // + 120*1/10
	if !pos.Margin.Equal(wantMargin) {
		t.Errorf("margin = %s, want %s", pos.Margin, wantMargin)
	}
}

// TestExecuteTradeClosesPositionFullyAndRealizesPnL covers Case C where the
// opposing fill exactly matches the existing quantity: the position is
// deleted and a PositionHistory row captures the realized P&L.
func TestExecuteTradeClosesPositionFullyAndRealizesPnL(t *testing.T) {
	t.Parallel()
	e, st := newTestEngine(t)
	acc := mustCreateAccount(t, st, decimal.NewFromInt(10000), 10)

	position := store.Position{
		AccountID:  acc.ID,
		Symbol:     "BTCUSDT",
		Quantity:   decimal.NewFromInt(1),
		EntryPrice: decimal.NewFromInt(100),
		Leverage:   10,
		Margin:     decimal.NewFromInt(10),
	}
	if err := st.DB().Create(&position).Error; err != nil {
		t.Fatalf("seed position: %v", err)
	}

	orderID := mustCreateOrder(t, st, store.Order{
		AccountID: acc.ID,
		Symbol:    "BTCUSDT",
		Side:      store.SideSell,
		OrderType: store.OrderMarket,
		Quantity:  decimal.NewFromInt(1),
		Leverage:  10,
		Status:    store.StatusNew,
	})

	if err := e.executeTrade(orderID, decimal.NewFromInt(110)); err != nil {
		t.Fatalf("execute trade: %v", err)
	}

	positions, err := st.ListPositions(acc.ID)
	if err != nil {
		t.Fatalf("list positions: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected position to be closed, got %d remaining", len(positions))
	}

	history, err := st.ListPositionHistory(acc.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history))
	}
	if !history[0].RealizedPnL.Equal(decimal.NewFromInt(10)) {
		t.Errorf("realized pnl = %s, want 10", history[0].RealizedPnL)
	}

	updated, err := st.GetAccount(acc.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	// 10000 + margin released(10) + pnl(10) - close fee(110*1*0.001=0.11);
	// the position was seeded directly, so no opening fee was charged.
	want := decimal.NewFromInt(10000).
		Add(decimal.NewFromInt(10)).
		Add(decimal.NewFromInt(10)).
		Sub(decimal.NewFromFloat(0.11))
	if !updated.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", updated.Balance, want)
	}
}

// TestExecuteTradeFlipsThroughZeroInOneFill covers Case C where the
// opposing fill overshoots the existing quantity: the long position closes
// and a fresh short opens in the same transaction.
func TestExecuteTradeFlipsThroughZeroInOneFill(t *testing.T) {
	t.Parallel()
	e, st := newTestEngine(t)
	acc := mustCreateAccount(t, st, decimal.NewFromInt(10000), 10)

	position := store.Position{
		AccountID:  acc.ID,
		Symbol:     "BTCUSDT",
		Quantity:   decimal.NewFromInt(1),
		EntryPrice: decimal.NewFromInt(100),
		Leverage:   10,
		Margin:     decimal.NewFromInt(10),
	}
	if err := st.DB().Create(&position).Error; err != nil {
		t.Fatalf("seed position: %v", err)
	}

	orderID := mustCreateOrder(t, st, store.Order{
		AccountID: acc.ID,
		Symbol:    "BTCUSDT",
		Side:      store.SideSell,
		OrderType: store.OrderMarket,
		Quantity:  decimal.NewFromInt(3),
		Leverage:  10,
		Status:    store.StatusNew,
	})

	if err := e.executeTrade(orderID, decimal.NewFromInt(110)); err != nil {
		t.Fatalf("execute trade: %v", err)
	}

	positions, err := st.ListPositions(acc.ID)
	if err != nil {
		t.Fatalf("list positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected exactly 1 flipped position, got %d", len(positions))
	}
	pos := positions[0]
	if !pos.Quantity.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("quantity = %s, want -2 (short)", pos.Quantity)
	}
	if !pos.EntryPrice.Equal(decimal.NewFromInt(110)) {
		t.Errorf("entry price = %s, want 110", pos.EntryPrice)
	}

	history, err := st.ListPositionHistory(acc.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history row for the closed leg, got %d", len(history))
	}
}

// TestExecuteTradeIsNoOpWhenAlreadyFullyFilled guards against re-processing
// an order the engine already finished.
func TestExecuteTradeIsNoOpWhenAlreadyFullyFilled(t *testing.T) {
	t.Parallel()
	e, st := newTestEngine(t)
	acc := mustCreateAccount(t, st, decimal.NewFromInt(10000), 10)

	orderID := mustCreateOrder(t, st, store.Order{
		AccountID:      acc.ID,
		Symbol:         "BTCUSDT",
		Side:           store.SideBuy,
		OrderType:      store.OrderMarket,
		Quantity:       decimal.NewFromInt(1),
		FilledQuantity: decimal.NewFromInt(1),
		Leverage:       10,
		Status:         store.StatusFilled,
	})

	if err := e.executeTrade(orderID, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("execute trade: %v", err)
	}

	positions, err := st.ListPositions(acc.ID)
	if err != nil {
		t.Fatalf("list positions: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected no position to be opened for an already-filled order, got %d", len(positions))
	}
}

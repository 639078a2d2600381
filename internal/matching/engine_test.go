package matching

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coreexec/marginsim/internal/pricecache"
	"github.com/coreexec/marginsim/internal/store"
)

func TestExecutableMarketAlwaysFills(t *testing.T) {
	t.Parallel()
	order := store.Order{OrderType: store.OrderMarket, Side: store.SideBuy}
	if !executable(order, decimal.NewFromInt(1)) {
		t.Error("MARKET order should always be executable")
	}
}

func TestExecutableLimitBuyRequiresMarkAtOrBelowLimit(t *testing.T) {
	t.Parallel()
	limit := decimal.NewFromInt(100)
	order := store.Order{OrderType: store.OrderLimit, Side: store.SideBuy, LimitPrice: &limit}

	if executable(order, decimal.NewFromInt(101)) {
		t.Error("limit buy should not fill above the limit price")
	}
	if !executable(order, decimal.NewFromInt(100)) {
		t.Error("limit buy should fill at the limit price")
	}
	if !executable(order, decimal.NewFromInt(99)) {
		t.Error("limit buy should fill below the limit price")
	}
}

func TestExecutableLimitSellRequiresMarkAtOrAboveLimit(t *testing.T) {
	t.Parallel()
	limit := decimal.NewFromInt(100)
	order := store.Order{OrderType: store.OrderLimit, Side: store.SideSell, LimitPrice: &limit}

	if executable(order, decimal.NewFromInt(99)) {
		t.Error("limit sell should not fill below the limit price")
	}
	if !executable(order, decimal.NewFromInt(100)) {
		t.Error("limit sell should fill at the limit price")
	}
	if !executable(order, decimal.NewFromInt(101)) {
		t.Error("limit sell should fill above the limit price")
	}
}

func TestEvaluateTriggerLongTakeProfitTakesPriorityOverStopLoss(t *testing.T) {
	t.Parallel()
	tp := decimal.NewFromInt(110)
	sl := decimal.NewFromInt(120)
	pos := store.Position{Quantity: decimal.NewFromInt(1), TakeProfitPrice: &tp, StopLossPrice: &sl}

	// mark 110 meets both the TP (>= 110) and the SL (<= 120) condition.
	kind, triggered := evaluateTrigger(pos, decimal.NewFromInt(110))
	if !triggered || kind != "take_profit" {
		t.Errorf("kind=%s triggered=%v, want take_profit/true", kind, triggered)
	}
}

func TestEvaluateTriggerLongStopLoss(t *testing.T) {
	t.Parallel()
	tp := decimal.NewFromInt(110)
	sl := decimal.NewFromInt(90)
	pos := store.Position{Quantity: decimal.NewFromInt(1), TakeProfitPrice: &tp, StopLossPrice: &sl}

	kind, triggered := evaluateTrigger(pos, decimal.NewFromInt(90))
	if !triggered || kind != "stop_loss" {
		t.Errorf("kind=%s triggered=%v, want stop_loss/true", kind, triggered)
	}
}

func TestEvaluateTriggerShortDirectionIsInverted(t *testing.T) {
	t.Parallel()
	tp := decimal.NewFromInt(90)
	sl := decimal.NewFromInt(110)
	pos := store.Position{Quantity: decimal.NewFromInt(-1), TakeProfitPrice: &tp, StopLossPrice: &sl}

	kind, triggered := evaluateTrigger(pos, decimal.NewFromInt(90))
	if !triggered || kind != "take_profit" {
		t.Errorf("kind=%s triggered=%v, want take_profit/true", kind, triggered)
	}

	kind, triggered = evaluateTrigger(pos, decimal.NewFromInt(100))
	if triggered {
		t.Errorf("expected no trigger between tp and sl, got kind=%s", kind)
	}
}

func TestProcessOpenOrdersFillsAgainstCurrentMark(t *testing.T) {
	t.Parallel()
	e, st := newTestEngine(t)
	e.prices = pricecache.New()
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
	e.prices.Put("BTCUSDT", decimal.NewFromInt(100))

	if err := e.processOpenOrders(); err != nil {
		t.Fatalf("process open orders: %v", err)
	}

	order, err := st.GetOrder(orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != store.StatusFilled {
		t.Errorf("status = %s, want FILLED", order.Status)
	}
}

func TestProcessOpenOrdersSkipsSymbolWithNoMark(t *testing.T) {
	t.Parallel()
	e, st := newTestEngine(t)
	e.prices = pricecache.New()
	acc := mustCreateAccount(t, st, decimal.NewFromInt(10000), 10)

	orderID := mustCreateOrder(t, st, store.Order{
		AccountID: acc.ID,
		Symbol:    "ETHUSDT",
		Side:      store.SideBuy,
		OrderType: store.OrderMarket,
		Quantity:  decimal.NewFromInt(1),
		Leverage:  10,
		Status:    store.StatusNew,
	})

	if err := e.processOpenOrders(); err != nil {
		t.Fatalf("process open orders: %v", err)
	}

	order, err := st.GetOrder(orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != store.StatusNew {
		t.Errorf("status = %s, want order to remain NEW with no mark available", order.Status)
	}
}

func TestCheckPositionsTPSLSynthesizesAndExecutesClosingOrder(t *testing.T) {
	t.Parallel()
	e, st := newTestEngine(t)
	e.prices = pricecache.New()
	acc := mustCreateAccount(t, st, decimal.NewFromInt(10000), 10)

	tp := decimal.NewFromInt(110)
	position := store.Position{
		AccountID:       acc.ID,
		Symbol:          "BTCUSDT",
		Quantity:        decimal.NewFromInt(1),
		EntryPrice:      decimal.NewFromInt(100),
		Leverage:        10,
		Margin:          decimal.NewFromInt(10),
		TakeProfitPrice: &tp,
	}
	if err := st.DB().Create(&position).Error; err != nil {
		t.Fatalf("seed position: %v", err)
	}
	e.prices.Put("BTCUSDT", decimal.NewFromInt(111))

	if err := e.checkPositionsTPSL(); err != nil {
		t.Fatalf("check tp/sl: %v", err)
	}

	positions, err := st.ListPositions(acc.ID)
	if err != nil {
		t.Fatalf("list positions: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected take-profit to close the position, got %d remaining", len(positions))
	}
}

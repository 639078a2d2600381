// Package matching implements the core of the simulator: the periodic loop
// that fills resting orders against published marks and mutates account and
// position state accordingly, plus the take-profit/stop-loss scan that
// synthesizes closing orders when a mark crosses a position's trigger.
//
// The loop and TP/SL scan follow a supervised-goroutine shape similar to a
// venue feed's connection loop: one ticker-driven iteration, per-item error
// isolation, and no iteration left half-applied.
package matching

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coreexec/marginsim/internal/config"
	"github.com/coreexec/marginsim/internal/notify"
	"github.com/coreexec/marginsim/internal/pricecache"
	"github.com/coreexec/marginsim/internal/store"
	"github.com/coreexec/marginsim/internal/telemetry"
)

// Engine is the matching engine's cooperative loop.
type Engine struct {
	store  *store.Store
	prices *pricecache.Cache
	hub    *notify.Hub

	marketFeeRate decimal.Decimal
	limitFeeRate  decimal.Decimal
	tickInterval  time.Duration

	running int32
	stopCh  chan struct{}
}

// New constructs an Engine. marketFeeRate and limitFeeRate are the fee
// rates applied to MARKET and LIMIT fills respectively.
func New(st *store.Store, prices *pricecache.Cache, hub *notify.Hub, cfg *config.Config) *Engine {
	return &Engine{
		store:         st,
		prices:        prices,
		hub:           hub,
		marketFeeRate: cfg.MarketFeeRate,
		limitFeeRate:  cfg.LimitFeeRate,
		tickInterval:  cfg.EngineTickInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start runs the engine loop until Stop is called. It blocks, so callers
// typically invoke it in its own goroutine.
func (e *Engine) Start() {
	atomic.StoreInt32(&e.running, 1)
	log.Info().Msg("matching engine started")

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			log.Info().Msg("matching engine stopped")
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// Stop signals the loop to exit at its next iteration.
func (e *Engine) Stop() {
	if atomic.CompareAndSwapInt32(&e.running, 1, 0) {
		close(e.stopCh)
	}
}

func (e *Engine) tick() {
	telemetry.EngineTicksTotal.Inc()

	if err := e.processOpenOrders(); err != nil {
		log.Error().Err(err).Msg("open-order scan failed")
	}
	if err := e.checkPositionsTPSL(); err != nil {
		log.Error().Err(err).Msg("tp/sl scan failed")
	}
}

// processOpenOrders scans NEW/PARTIALLY_FILLED orders and executes the ones
// whose symbol has a current mark satisfying their order-type rule.
func (e *Engine) processOpenOrders() error {
	orders, err := e.store.OpenOrders()
	if err != nil {
		return err
	}

	for _, order := range orders {
		mark, ok := e.prices.Get(order.Symbol)
		if !ok || mark.Sign() <= 0 {
			continue
		}
		if !executable(order, mark) {
			continue
		}

		// Per-order isolation: one bad fill must not abort the tick for
		// the rest of the scan.
		if err := e.executeTrade(order.ID, mark); err != nil {
			telemetry.EngineFillErrorsTotal.Inc()
			log.Error().Err(err).Uint("order_id", order.ID).Msg("execute_trade failed")
		}
	}
	return nil
}

func executable(order store.Order, mark decimal.Decimal) bool {
	switch order.OrderType {
	case store.OrderMarket:
		return true
	case store.OrderLimit:
		if order.LimitPrice == nil {
			return false
		}
		switch order.Side {
		case store.SideBuy:
			return mark.LessThanOrEqual(*order.LimitPrice)
		case store.SideSell:
			return mark.GreaterThanOrEqual(*order.LimitPrice)
		}
	}
	return false
}

// checkPositionsTPSL scans positions carrying a TP or SL, and for ones
// whose trigger fires against the current mark, synthesizes and
// immediately executes a closing MARKET order.
func (e *Engine) checkPositionsTPSL() error {
	positions, err := e.store.OpenPositionsWithTPSL()
	if err != nil {
		return err
	}

	for _, pos := range positions {
		mark, ok := e.prices.Get(pos.Symbol)
		if !ok || mark.Sign() <= 0 {
			continue
		}

		kind, triggered := evaluateTrigger(pos, mark)
		if !triggered {
			continue
		}

		orderID, err := e.synthesizeClosingOrder(pos)
		if err != nil {
			log.Error().Err(err).Uint("position_id", pos.ID).Msg("failed to synthesize closing order")
			continue
		}

		telemetry.EngineTPSLTriggersTotal.WithLabelValues(kind).Inc()

		if err := e.executeTrade(orderID, mark); err != nil {
			telemetry.EngineFillErrorsTotal.Inc()
			log.Error().Err(err).Uint("order_id", orderID).Msg("tp/sl close failed")
		}
	}
	return nil
}

// evaluateTrigger reports which of TP/SL fires for pos at mark, if any. TP
// is evaluated before SL, so the two are mutually exclusive in one tick.
func evaluateTrigger(pos store.Position, mark decimal.Decimal) (kind string, triggered bool) {
	if pos.Quantity.Sign() > 0 { // long
		if pos.TakeProfitPrice != nil && mark.GreaterThanOrEqual(*pos.TakeProfitPrice) {
			return "take_profit", true
		}
		if pos.StopLossPrice != nil && mark.LessThanOrEqual(*pos.StopLossPrice) {
			return "stop_loss", true
		}
		return "", false
	}
	if pos.Quantity.Sign() < 0 { // short
		if pos.TakeProfitPrice != nil && mark.LessThanOrEqual(*pos.TakeProfitPrice) {
			return "take_profit", true
		}
		if pos.StopLossPrice != nil && mark.GreaterThanOrEqual(*pos.StopLossPrice) {
			return "stop_loss", true
		}
		return "", false
	}
	return "", false
}

// synthesizeClosingOrder inserts a MARKET order opposite pos's direction for
// its full quantity and returns its id. The order is committed first; the
// caller executes it immediately afterward in its own transaction.
func (e *Engine) synthesizeClosingOrder(pos store.Position) (uint, error) {
	side := store.SideSell
	if pos.Quantity.Sign() < 0 {
		side = store.SideBuy
	}

	order := store.Order{
		AccountID: pos.AccountID,
		Symbol:    pos.Symbol,
		Side:      side,
		OrderType: store.OrderMarket,
		Quantity:  pos.Quantity.Abs(),
		Leverage:  pos.Leverage,
		Status:    store.StatusNew,
	}

	var orderID uint
	err := e.store.WithTx(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		orderID = order.ID
		return nil
	})
	return orderID, err
}

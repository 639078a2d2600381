// Package submission implements the order/position submission contract: the
// synchronous, validate-then-insert API that the HTTP surface calls. It
// never executes a fill itself — every accepted order lands as NEW and is
// picked up by the matching engine's next tick.
package submission

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/coreexec/marginsim/internal/notify"
	"github.com/coreexec/marginsim/internal/store"
)

// Sentinel errors the HTTP layer maps to 4xx responses.
var (
	ErrInvalidQuantity    = errors.New("submission: quantity must be positive")
	ErrLimitPriceRequired = errors.New("submission: limit price required for LIMIT orders")
	ErrOrderNotCancelable = errors.New("submission: order is not in a cancelable state")
	ErrOrderNotAmendable  = errors.New("submission: field is not amendable in the order's current state")
)

// Service implements order creation, cancellation, amendment, and position
// TP/SL updates.
type Service struct {
	store *store.Store
	hub   *notify.Hub
}

// New constructs a Service.
func New(st *store.Store, hub *notify.Hub) *Service {
	return &Service{store: st, hub: hub}
}

// CreateOrderParams are the caller-supplied fields for a new order; nil
// pointer fields are left unset.
type CreateOrderParams struct {
	AccountID       uint
	Symbol          string
	Side            store.OrderSide
	OrderType       store.OrderType
	Quantity        decimal.Decimal
	LimitPrice      *decimal.Decimal
	Leverage        int
	TakeProfitPrice *decimal.Decimal
	StopLossPrice   *decimal.Decimal
}

// CreateOrder validates and inserts a new order in NEW status. It never
// mutates account balance or positions — that happens only when the
// matching engine fills the order.
func (s *Service) CreateOrder(p CreateOrderParams) (*store.Order, error) {
	if p.Quantity.Sign() <= 0 {
		return nil, ErrInvalidQuantity
	}
	if p.OrderType == store.OrderLimit && p.LimitPrice == nil {
		return nil, ErrLimitPriceRequired
	}

	account, err := s.store.GetAccount(p.AccountID)
	if err != nil {
		return nil, err
	}

	leverage := p.Leverage
	if leverage <= 0 {
		leverage = account.Leverage
	}

	order := store.Order{
		AccountID:       p.AccountID,
		Symbol:          p.Symbol,
		Side:            p.Side,
		OrderType:       p.OrderType,
		LimitPrice:      p.LimitPrice,
		Quantity:        p.Quantity,
		Leverage:        leverage,
		TakeProfitPrice: p.TakeProfitPrice,
		StopLossPrice:   p.StopLossPrice,
		Status:          store.StatusNew,
	}
	if err := s.store.DB().Create(&order).Error; err != nil {
		return nil, err
	}

	log.Info().Uint("order_id", order.ID).Str("symbol", order.Symbol).Str("side", string(order.Side)).Msg("order submitted")
	s.notify(order.AccountID, "order submitted")

	return &order, nil
}

// CancelOrder cancels an order, which is only allowed while it is still
// NEW or PARTIALLY_FILLED.
func (s *Service) CancelOrder(orderID uint) error {
	order, err := s.store.GetOrder(orderID)
	if err != nil {
		return err
	}
	if order.Status != store.StatusNew && order.Status != store.StatusPartiallyFilled {
		return fmt.Errorf("%w: order %d is %s", ErrOrderNotCancelable, orderID, order.Status)
	}

	order.Status = store.StatusCanceled
	if err := s.store.DB().Save(order).Error; err != nil {
		return err
	}

	s.notify(order.AccountID, "order canceled")
	return nil
}

// AmendOrderParams are the fields a caller wants to change; nil means
// leave unchanged.
type AmendOrderParams struct {
	LimitPrice      *decimal.Decimal
	Quantity        *decimal.Decimal
	TakeProfitPrice *decimal.Decimal
	StopLossPrice   *decimal.Decimal
}

// AmendOrder applies a partial update to an order. Take-profit/stop-loss are
// amendable while the order is NEW or PARTIALLY_FILLED; limit price and
// quantity are amendable only while it is still NEW (no fills yet to
// reconcile against a changed size).
func (s *Service) AmendOrder(orderID uint, p AmendOrderParams) error {
	order, err := s.store.GetOrder(orderID)
	if err != nil {
		return err
	}

	isOpen := order.Status == store.StatusNew || order.Status == store.StatusPartiallyFilled
	if !isOpen {
		return fmt.Errorf("%w: order %d is %s", ErrOrderNotAmendable, orderID, order.Status)
	}

	if p.LimitPrice != nil || p.Quantity != nil {
		if order.Status != store.StatusNew {
			return fmt.Errorf("%w: price/quantity only amendable while NEW", ErrOrderNotAmendable)
		}
		if p.LimitPrice != nil {
			order.LimitPrice = p.LimitPrice
		}
		if p.Quantity != nil {
			if p.Quantity.Sign() <= 0 {
				return ErrInvalidQuantity
			}
			order.Quantity = *p.Quantity
		}
	}
	if p.TakeProfitPrice != nil {
		order.TakeProfitPrice = p.TakeProfitPrice
	}
	if p.StopLossPrice != nil {
		order.StopLossPrice = p.StopLossPrice
	}

	if err := s.store.DB().Save(order).Error; err != nil {
		return err
	}

	s.notify(order.AccountID, "order amended")
	return nil
}

// UpdatePositionTPSL sets or clears a position's take-profit and/or
// stop-loss. Either field may be nil to clear it, or left out of the call
// entirely by passing the position's own current value.
func (s *Service) UpdatePositionTPSL(positionID uint, takeProfit, stopLoss *decimal.Decimal) error {
	position, err := s.store.GetPosition(positionID)
	if err != nil {
		return err
	}

	position.TakeProfitPrice = takeProfit
	position.StopLossPrice = stopLoss
	if err := s.store.DB().Save(position).Error; err != nil {
		return err
	}

	s.notify(position.AccountID, "position tp/sl updated")
	return nil
}

func (s *Service) notify(accountID uint, message string) {
	if s.hub == nil {
		return
	}
	s.hub.Notify(accountID, notify.Event{Type: notify.AccountUpdate, AccountID: accountID, Message: message})
}

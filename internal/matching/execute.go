package matching

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coreexec/marginsim/internal/notify"
	"github.com/coreexec/marginsim/internal/store"
	"github.com/coreexec/marginsim/internal/telemetry"
)

// executeTrade performs a single fill for orderID's full remaining quantity
// at price, in one committed transaction: record the Trade, update the
// Order, then apply the fill to the Account and Position.
// There is no partial liquidity in this simulator — every acceptable order
// fills to FILLED in one step.
func (e *Engine) executeTrade(orderID uint, price decimal.Decimal) error {
	return e.store.WithTx(func(tx *gorm.DB) error {
		var order store.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}

		fill := order.Quantity.Sub(order.FilledQuantity)
		if fill.Sign() <= 0 {
			return nil
		}

		feeRate := e.limitFeeRate
		if order.OrderType == store.OrderMarket {
			feeRate = e.marketFeeRate
		}
		fee := price.Mul(fill).Mul(feeRate)

		trade := store.Trade{
			OrderID:    order.ID,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Price:      price,
			Quantity:   fill,
			Commission: fee,
			ExecutedAt: time.Now(),
		}
		if err := tx.Create(&trade).Error; err != nil {
			return err
		}

		newFilled := order.FilledQuantity.Add(fill)
		order.AvgPrice = order.AvgPrice.Mul(order.FilledQuantity).Add(price.Mul(fill)).Div(newFilled)
		order.FilledQuantity = newFilled
		order.Fee = order.Fee.Add(fee)
		if order.FilledQuantity.GreaterThanOrEqual(order.Quantity) {
			order.Status = store.StatusFilled
		} else {
			order.Status = store.StatusPartiallyFilled
		}
		if err := tx.Save(&order).Error; err != nil {
			return err
		}

		if err := e.applyFill(tx, order, price, fill, fee); err != nil {
			return err
		}

		telemetry.EngineOrdersFilledTotal.WithLabelValues(string(order.OrderType), string(order.Side)).Inc()
		if e.hub != nil {
			e.hub.Notify(order.AccountID, notify.Event{
				Type:      notify.AccountUpdate,
				AccountID: order.AccountID,
				Message:   "order " + string(order.Status),
			})
		}

		log.Info().
			Uint("order_id", order.ID).
			Str("symbol", order.Symbol).
			Str("side", string(order.Side)).
			Str("fill_qty", fill.String()).
			Str("price", price.String()).
			Str("fee", fee.String()).
			Msg("executed trade")

		return nil
	})
}

// applyFill implements one-way position accounting: fee is
// always deducted from balance; then, depending on whether an existing
// position exists and its direction relative to the fill, the fill opens a
// new position (Case A), adds to an existing one (Case B), or
// reduces/closes/flips an existing one (Case C). The account row is read
// under the engine's pessimistic lock so a concurrent HTTP-path read of the
// same account cannot race a fill.
func (e *Engine) applyFill(tx *gorm.DB, order store.Order, price, qty, fee decimal.Decimal) error {
	account, err := e.store.LockAccount(tx, order.AccountID)
	if err != nil {
		return err
	}
	account.Balance = account.Balance.Sub(fee)

	var position store.Position
	err = tx.Where("account_id = ? AND symbol = ?", order.AccountID, order.Symbol).First(&position).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		pos := newPosition(account, order, price, qty, fee)
		if err := tx.Create(&pos).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		position.AccumulatedFees = position.AccumulatedFees.Add(fee)

		existingSign := position.Quantity.Sign()
		incomingSign := signOf(order.Side)

		if existingSign == incomingSign {
			addToPosition(account, &position, order, price, qty)
			if err := tx.Save(&position).Error; err != nil {
				return err
			}
		} else {
			if err := reduceOrFlip(tx, account, &position, order, price, qty); err != nil {
				return err
			}
		}
	}

	return tx.Save(account).Error
}

func signOf(side store.OrderSide) int {
	if side == store.SideBuy {
		return 1
	}
	return -1
}

// newPosition handles the case where there is no existing position
// for (account, symbol). It deducts margin from account.Balance and returns
// the new Position, not yet persisted.
func newPosition(account *store.Account, order store.Order, price, qty, fee decimal.Decimal) store.Position {
	margin := price.Mul(qty).Div(decimal.NewFromInt(int64(order.Leverage)))
	account.Balance = account.Balance.Sub(margin)

	signedQty := qty
	if order.Side == store.SideSell {
		signedQty = qty.Neg()
	}

	return store.Position{
		AccountID:       order.AccountID,
		Symbol:          order.Symbol,
		Quantity:        signedQty,
		EntryPrice:      price,
		Leverage:        order.Leverage,
		Margin:          margin,
		AccumulatedFees: fee,
		TakeProfitPrice: order.TakeProfitPrice,
		StopLossPrice:   order.StopLossPrice,
	}
}

// addToPosition handles the case where the fill adds to an existing
// position in the same direction.
func addToPosition(account *store.Account, position *store.Position, order store.Order, price, qty decimal.Decimal) {
	margin := price.Mul(qty).Div(decimal.NewFromInt(int64(order.Leverage)))
	account.Balance = account.Balance.Sub(margin)

	absExisting := position.Quantity.Abs()
	newEntry := absExisting.Mul(position.EntryPrice).Add(price.Mul(qty)).Div(absExisting.Add(qty))

	if position.Quantity.Sign() > 0 {
		position.Quantity = position.Quantity.Add(qty)
	} else {
		position.Quantity = position.Quantity.Sub(qty)
	}
	position.EntryPrice = newEntry
	position.Margin = position.Margin.Add(margin)
	position.Leverage = order.Leverage // most recent add's leverage applies to the whole position
	if order.TakeProfitPrice != nil {
		position.TakeProfitPrice = order.TakeProfitPrice
	}
	if order.StopLossPrice != nil {
		position.StopLossPrice = order.StopLossPrice
	}
}

// reduceOrFlip handles the case where the fill is on the opposite
// side of the existing position, so it reduces, closes, or flips it.
// Close-first-then-flip, in the same transaction, both legs at the same
// fill price; the fee was already attributed to the closed side above.
func reduceOrFlip(tx *gorm.DB, account *store.Account, position *store.Position, order store.Order, price, qty decimal.Decimal) error {
	wasLong := position.Quantity.Sign() > 0
	absExisting := position.Quantity.Abs()

	closeQty := decimal.Min(qty, absExisting)
	remainder := qty.Sub(closeQty)

	var pnl decimal.Decimal
	if wasLong {
		pnl = price.Sub(position.EntryPrice).Mul(closeQty)
	} else {
		pnl = position.EntryPrice.Sub(price).Mul(closeQty)
	}

	marginReleased := closeQty.Div(absExisting).Mul(position.Margin)

	account.Balance = account.Balance.Add(marginReleased).Add(pnl)
	position.Margin = position.Margin.Sub(marginReleased)
	if wasLong {
		position.Quantity = position.Quantity.Sub(closeQty)
	} else {
		position.Quantity = position.Quantity.Add(closeQty)
	}
	position.RealizedPnL = position.RealizedPnL.Add(pnl)

	if position.Quantity.IsZero() {
		side := store.PositionLong
		if !wasLong {
			side = store.PositionShort
		}
		history := store.PositionHistory{
			AccountID:   position.AccountID,
			Symbol:      position.Symbol,
			Side:        side,
			EntryPrice:  position.EntryPrice,
			ExitPrice:   price,
			Leverage:    position.Leverage,
			RealizedPnL: position.RealizedPnL,
			TotalFee:    position.AccumulatedFees,
			CreatedAt:   position.CreatedAt,
			ClosedAt:    time.Now(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		if err := tx.Delete(position).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Save(position).Error; err != nil {
			return err
		}
	}

	if remainder.Sign() > 0 {
		marginFlip := price.Mul(remainder).Div(decimal.NewFromInt(int64(order.Leverage)))
		account.Balance = account.Balance.Sub(marginFlip)

		signedQty := remainder
		if wasLong {
			signedQty = remainder.Neg() // flipping a closed long into a short
		}

		flipped := store.Position{
			AccountID:       order.AccountID,
			Symbol:          order.Symbol,
			Quantity:        signedQty,
			EntryPrice:      price,
			Leverage:        order.Leverage,
			Margin:          marginFlip,
			AccumulatedFees: decimal.Zero,
			TakeProfitPrice: order.TakeProfitPrice,
			StopLossPrice:   order.StopLossPrice,
		}
		if err := tx.Create(&flipped).Error; err != nil {
			return err
		}
	}

	return nil
}

// Package executor turns order intents into confirmed fills. It owns the
// maker-then-taker protocol: rest a passive limit order first, and fall back
// to a market order only after the limit order is confirmed gone from the
// book. Account state is only mutated after the exchange confirms a fill.
package executor

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/internal/exchange"
	"github.com/vcampos/spotkit/internal/logger"
	"github.com/vcampos/spotkit/internal/risk"
	"github.com/vcampos/spotkit/internal/sizing"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
	"go.uber.org/zap"
)

// Config carries the execution parameters for one symbol.
type Config struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	Sizer sizing.SizerParams

	// SafetyMargin divides the free balance before quantization so a
	// concurrent fee or tick of slippage cannot push the order past the
	// real balance. 1.02 reserves about 2%.
	SafetyMargin float64

	// FeeRate estimates the commission recorded on fills.
	FeeRate float64

	UseMakerOrders   bool
	MakerWait        time.Duration
	MakerPriceOffset float64
}

// Executor places sized, normalized orders on the exchange. Not safe for
// concurrent use; the decision loop is its only caller.
type Executor struct {
	ex      exchange.Exchange
	filters types.SymbolFilters
	guard   *risk.StopLossGuard
	cfg     Config
	log     *logger.Logger

	// wait is swapped out in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an executor for one symbol. Filters must already be
// fetched and validated.
func NewExecutor(ex exchange.Exchange, filters types.SymbolFilters, guard *risk.StopLossGuard, cfg Config, log *logger.Logger) *Executor {
	return &Executor{
		ex:      ex,
		filters: filters,
		guard:   guard,
		cfg:     cfg,
		log:     log,
		wait:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Buy runs the full buy pipeline: fetch the quote balance, size the
// position, normalize onto the exchange grid and execute. A confirmed fill
// arms the stop-loss guard at the fill price. Sizing and quantization
// rejections come back as coded errors the caller can skip on.
func (e *Executor) Buy(ctx context.Context, reason types.Reason) (*types.Trade, error) {
	order, price, err := e.prepareBuy(ctx)
	if err != nil {
		return nil, err
	}

	trade, err := e.execute(ctx, order, price, reason, e.prepareBuy)
	if err != nil {
		return nil, err
	}

	e.guard.SetEntry(e.cfg.Symbol, decimal.NewFromFloat(trade.Price))

	return trade, nil
}

// BuyNotional buys a fixed quote amount, bypassing the position sizer. The
// grid runner uses it to commit the same investment at every rung; rung
// exits are keyed to ladder levels, so the stop-loss guard is left alone.
// The amount is still normalized and balance-clamped like any other buy.
func (e *Executor) BuyNotional(ctx context.Context, notional decimal.Decimal, reason types.Reason) (*types.Trade, error) {
	prepare := func(ctx context.Context) (types.NormalizedOrder, decimal.Decimal, error) {
		return e.prepareBuyNotional(ctx, notional)
	}

	order, price, err := prepare(ctx)
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, order, price, reason, prepare)
}

// Sell runs the sell pipeline for the given base quantity. A zero requested
// quantity sells the full holding. A confirmed fill disarms the stop-loss
// guard.
func (e *Executor) Sell(ctx context.Context, requested decimal.Decimal, reason types.Reason) (*types.Trade, error) {
	prepare := func(ctx context.Context) (types.NormalizedOrder, decimal.Decimal, error) {
		return e.prepareSell(ctx, requested)
	}

	order, price, err := prepare(ctx)
	if err != nil {
		return nil, err
	}

	trade, err := e.execute(ctx, order, price, reason, prepare)
	if err != nil {
		return nil, err
	}

	e.guard.ClearEntry(e.cfg.Symbol)

	return trade, nil
}

// prepareBuy sizes and normalizes a buy against the current balance and
// price. It is re-run from scratch on the taker fallback because the balance
// or price may have moved while the limit order rested.
func (e *Executor) prepareBuy(ctx context.Context) (types.NormalizedOrder, decimal.Decimal, error) {
	balance, err := e.ex.GetBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	notional, err := sizing.Size(balance.Free.InexactFloat64(), e.cfg.Sizer)
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	price, err := e.ex.GetPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	available := balance.Free.Div(decimal.NewFromFloat(e.cfg.SafetyMargin))

	order, err := sizing.Normalize(sizing.NormalizeInput{
		Side:      types.PurchaseTypeBuy,
		Requested: decimal.NewFromFloat(notional),
		Price:     price,
		Available: available,
		Filters:   e.filters,
	})
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	return order, price, nil
}

func (e *Executor) prepareBuyNotional(ctx context.Context, notional decimal.Decimal) (types.NormalizedOrder, decimal.Decimal, error) {
	balance, err := e.ex.GetBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	price, err := e.ex.GetPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	available := balance.Free.Div(decimal.NewFromFloat(e.cfg.SafetyMargin))

	order, err := sizing.Normalize(sizing.NormalizeInput{
		Side:      types.PurchaseTypeBuy,
		Requested: notional,
		Price:     price,
		Available: available,
		Filters:   e.filters,
	})
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	return order, price, nil
}

func (e *Executor) prepareSell(ctx context.Context, requested decimal.Decimal) (types.NormalizedOrder, decimal.Decimal, error) {
	balance, err := e.ex.GetBalance(ctx, e.cfg.BaseAsset)
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	if requested.Sign() <= 0 {
		requested = balance.Free
	}

	price, err := e.ex.GetPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	order, err := sizing.Normalize(sizing.NormalizeInput{
		Side:      types.PurchaseTypeSell,
		Requested: requested,
		Price:     price,
		Available: balance.Free,
		Filters:   e.filters,
	})
	if err != nil {
		return types.NormalizedOrder{}, decimal.Zero, err
	}

	return order, price, nil
}

type prepareFunc func(ctx context.Context) (types.NormalizedOrder, decimal.Decimal, error)

// execute runs the maker-then-taker protocol. The taker fallback re-runs the
// whole preparation instead of reusing the stale order.
func (e *Executor) execute(ctx context.Context, order types.NormalizedOrder, price decimal.Decimal, reason types.Reason, prepare prepareFunc) (*types.Trade, error) {
	if !e.cfg.UseMakerOrders {
		return e.placeMarket(ctx, order, price, reason)
	}

	limitPrice := sizing.MakerLimitPrice(order.Side, price, decimal.NewFromFloat(e.cfg.MakerPriceOffset), e.filters)
	order.LimitPrice = optional.Some(limitPrice)

	handle, err := e.ex.PlaceOrder(ctx, order, types.OrderTypeLimit)
	if err != nil {
		// A failed placement never escalates to a market order.
		return nil, err
	}

	e.log.Info("limit order resting",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("quantity", order.Quantity.String()),
		zap.String("limit_price", limitPrice.String()))

	if err := e.wait(ctx, e.cfg.MakerWait); err != nil {
		return nil, err
	}

	status, err := e.ex.GetOrderStatus(ctx, handle)
	if err != nil {
		return nil, err
	}

	switch status {
	case types.OrderStatusFilled:
		return e.recordFill(order, limitPrice, types.OrderTypeLimit, reason), nil

	case types.OrderStatusCancelled, types.OrderStatusRejected:
		// Already off the book, safe to fall through to the taker path.

	case types.OrderStatusPending:
		if cancelErr := e.ex.CancelOrder(ctx, handle); cancelErr != nil {
			// The order may or may not still be live. Placing a market
			// order now risks a double fill, so surface the unknown
			// state and let the next cycle resolve it.
			return nil, errors.Wrapf(errors.ErrCodeUnknownOrderState, cancelErr,
				"cancel of order %d failed, state unknown", handle.OrderID)
		}

	default:
		return nil, errors.Newf(errors.ErrCodeUnknownOrderState,
			"order %d in unexpected status %s", handle.OrderID, status)
	}

	e.log.Info("limit order not filled, falling back to market",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)))

	freshOrder, freshPrice, err := prepare(ctx)
	if err != nil {
		return nil, err
	}

	trade, err := e.placeMarket(ctx, freshOrder, freshPrice, reason)
	if err != nil {
		// The limit order is already off the book and the taker leg
		// failed too, leaving the intent unexecuted. This is a stuck
		// state needing operator attention, not a routine placement
		// failure.
		return nil, errors.Wrapf(errors.ErrCodeUnknownOrderState, err,
			"market fallback after cancelled limit order failed for %s", order.Symbol)
	}

	return trade, nil
}

func (e *Executor) placeMarket(ctx context.Context, order types.NormalizedOrder, price decimal.Decimal, reason types.Reason) (*types.Trade, error) {
	order.LimitPrice = optional.None[decimal.Decimal]()

	if _, err := e.ex.PlaceOrder(ctx, order, types.OrderTypeMarket); err != nil {
		return nil, err
	}

	return e.recordFill(order, price, types.OrderTypeMarket, reason), nil
}

func (e *Executor) recordFill(order types.NormalizedOrder, price decimal.Decimal, orderType types.OrderType, reason types.Reason) *types.Trade {
	notional := order.Quantity.Mul(price)
	fee := notional.Mul(decimal.NewFromFloat(e.cfg.FeeRate))

	e.log.Info("order filled",
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("type", string(orderType)),
		zap.String("quantity", order.Quantity.String()),
		zap.String("price", price.String()))

	trade := &types.Trade{
		Timestamp: time.Now(),
		Symbol:    order.Symbol,
		Side:      order.Side,
		Price:     price.InexactFloat64(),
		Quantity:  order.Quantity.InexactFloat64(),
		Notional:  notional.InexactFloat64(),
		Fee:       fee.InexactFloat64(),
		Reason:    reason,
	}

	if order.Side == types.PurchaseTypeSell {
		if entry, ok := e.guard.Entry(e.cfg.Symbol); ok {
			entryF := entry.InexactFloat64()
			pnl := (trade.Price-entryF)*trade.Quantity - trade.Fee
			pnlPct := 0.0

			if entryF != 0 {
				pnlPct = (trade.Price - entryF) / entryF * 100
			}

			trade.EntryPrice = optional.Some(entryF)
			trade.PnL = optional.Some(pnl)
			trade.PnLPct = optional.Some(pnlPct)
		}
	}

	return trade
}

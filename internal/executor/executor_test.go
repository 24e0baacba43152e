package executor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/vcampos/spotkit/internal/exchange"
	"github.com/vcampos/spotkit/internal/logger"
	"github.com/vcampos/spotkit/internal/risk"
	"github.com/vcampos/spotkit/internal/sizing"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
	"go.uber.org/zap"
)

func newTestLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

type placedOrder struct {
	order     types.NormalizedOrder
	orderType types.OrderType
}

// fakeExchange is a programmable in-memory Exchange.
type fakeExchange struct {
	balances map[string]decimal.Decimal
	price    decimal.Decimal

	placed         []placedOrder
	placeErr       error
	marketPlaceErr error
	status         types.OrderStatus
	statusErr      error
	cancelErr      error
	cancelled      []int64

	nextOrderID int64
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		balances: make(map[string]decimal.Decimal),
		status:   types.OrderStatusFilled,
	}
}

func (f *fakeExchange) GetBalance(_ context.Context, asset string) (exchange.Balance, error) {
	return exchange.Balance{Asset: asset, Free: f.balances[asset], Locked: decimal.Zero}, nil
}

func (f *fakeExchange) GetPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.price, nil
}

func (f *fakeExchange) GetSymbolFilters(_ context.Context, symbol string) (types.SymbolFilters, error) {
	return types.NewSymbolFilters(symbol,
		decimal.RequireFromString("0.00001"),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("10"))
}

func (f *fakeExchange) PlaceOrder(_ context.Context, order types.NormalizedOrder, orderType types.OrderType) (types.OrderHandle, error) {
	if f.placeErr != nil {
		return types.OrderHandle{}, f.placeErr
	}

	if f.marketPlaceErr != nil && orderType == types.OrderTypeMarket {
		return types.OrderHandle{}, f.marketPlaceErr
	}

	f.placed = append(f.placed, placedOrder{order: order, orderType: orderType})
	f.nextOrderID++

	return types.OrderHandle{Symbol: order.Symbol, OrderID: f.nextOrderID}, nil
}

func (f *fakeExchange) GetOrderStatus(_ context.Context, _ types.OrderHandle) (types.OrderStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeExchange) CancelOrder(_ context.Context, handle types.OrderHandle) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}

	f.cancelled = append(f.cancelled, handle.OrderID)

	return nil
}

var _ exchange.Exchange = (*fakeExchange)(nil)

type ExecutorTestSuite struct {
	suite.Suite
	fake  *fakeExchange
	guard *risk.StopLossGuard
}

func (s *ExecutorTestSuite) SetupTest() {
	s.fake = newFakeExchange()
	s.fake.balances["USDT"] = decimal.RequireFromString("10000")
	s.fake.balances["BTC"] = decimal.RequireFromString("0.5")
	s.fake.price = decimal.RequireFromString("30000")
	s.guard = risk.NewStopLossGuard(0.01, nil)
}

func (s *ExecutorTestSuite) newExecutor(useMaker bool) *Executor {
	filters, err := types.NewSymbolFilters("BTCUSDT",
		decimal.RequireFromString("0.00001"),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("10"))
	s.Require().NoError(err)

	cfg := Config{
		Symbol:     "BTCUSDT",
		BaseAsset:  "BTC",
		QuoteAsset: "USDT",
		Sizer: sizing.SizerParams{
			TradeFraction:    0.01,
			FeeRate:          0.001,
			MinBase:          5,
			MinMargin:        1,
			FallbackNotional: 7,
		},
		SafetyMargin:     1.02,
		FeeRate:          0.001,
		UseMakerOrders:   useMaker,
		MakerWait:        5 * time.Second,
		MakerPriceOffset: 0.0005,
	}

	exec := NewExecutor(s.fake, filters, s.guard, cfg, newTestLogger())
	exec.wait = func(_ context.Context, _ time.Duration) error { return nil }

	return exec
}

func (s *ExecutorTestSuite) TestMarketBuyArmsStopLoss() {
	exec := s.newExecutor(false)

	trade, err := exec.Buy(context.Background(), types.Reason{Reason: types.OrderReasonSignal})
	s.Require().NoError(err)

	s.Require().Len(s.fake.placed, 1)
	s.Equal(types.OrderTypeMarket, s.fake.placed[0].orderType)
	s.Equal(types.PurchaseTypeBuy, trade.Side)
	s.InDelta(30000, trade.Price, 1e-9)

	entry, ok := s.guard.Entry("BTCUSDT")
	s.Require().True(ok)
	s.True(entry.Equal(decimal.RequireFromString("30000")))
}

func (s *ExecutorTestSuite) TestBuyNotionalLeavesStopLossUnarmed() {
	exec := s.newExecutor(false)

	trade, err := exec.BuyNotional(context.Background(), decimal.NewFromInt(50),
		types.Reason{Reason: types.OrderReasonGridLevel})
	s.Require().NoError(err)

	s.Require().Len(s.fake.placed, 1)
	s.Equal(types.OrderTypeMarket, s.fake.placed[0].orderType)
	s.InDelta(50.0/30000, trade.Quantity, 1e-5)

	// Rung exits are keyed to ladder levels, not the stop-loss guard.
	_, armed := s.guard.Entry("BTCUSDT")
	s.False(armed)
}

func (s *ExecutorTestSuite) TestMakerBuyFilled() {
	exec := s.newExecutor(true)
	s.fake.status = types.OrderStatusFilled

	trade, err := exec.Buy(context.Background(), types.Reason{Reason: types.OrderReasonSignal})
	s.Require().NoError(err)

	s.Require().Len(s.fake.placed, 1)
	s.Equal(types.OrderTypeLimit, s.fake.placed[0].orderType)
	s.Require().True(s.fake.placed[0].order.LimitPrice.IsSome())

	// Buy limit rests below the observed price: 30000 * 0.9995 = 29985.
	limit := s.fake.placed[0].order.LimitPrice.Unwrap()
	s.True(limit.Equal(decimal.RequireFromString("29985")), limit.String())
	s.InDelta(29985, trade.Price, 1e-9)
	s.Empty(s.fake.cancelled)
}

func (s *ExecutorTestSuite) TestMakerTimeoutFallsBackToMarket() {
	exec := s.newExecutor(true)
	s.fake.status = types.OrderStatusPending

	trade, err := exec.Buy(context.Background(), types.Reason{Reason: types.OrderReasonSignal})
	s.Require().NoError(err)

	// Limit first, then cancel, then a freshly prepared market order.
	s.Require().Len(s.fake.placed, 2)
	s.Equal(types.OrderTypeLimit, s.fake.placed[0].orderType)
	s.Equal(types.OrderTypeMarket, s.fake.placed[1].orderType)
	s.Require().Len(s.fake.cancelled, 1)
	s.Equal(types.PurchaseTypeBuy, trade.Side)
}

func (s *ExecutorTestSuite) TestFailedMarketFallbackSurfacesStuckState() {
	exec := s.newExecutor(true)
	s.fake.status = types.OrderStatusPending
	s.fake.marketPlaceErr = errors.New(errors.ErrCodeOrderFailed, "market fallback rejected")

	_, err := exec.Buy(context.Background(), types.Reason{Reason: types.OrderReasonSignal})
	s.Require().Error(err)

	// The limit leg is already cancelled, so this is a stuck state, not an
	// ordinary placement failure.
	s.True(errors.HasCode(err, errors.ErrCodeUnknownOrderState), "got %v", err)
	s.Require().Len(s.fake.cancelled, 1)
	s.Require().Len(s.fake.placed, 1)
	s.Equal(types.OrderTypeLimit, s.fake.placed[0].orderType)

	_, armed := s.guard.Entry("BTCUSDT")
	s.False(armed)
}

func (s *ExecutorTestSuite) TestCancelFailureLeavesUnknownStateWithoutMarketOrder() {
	exec := s.newExecutor(true)
	s.fake.status = types.OrderStatusPending
	s.fake.cancelErr = errors.New(errors.ErrCodeCancelFailed, "cancel rejected")

	_, err := exec.Buy(context.Background(), types.Reason{Reason: types.OrderReasonSignal})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeUnknownOrderState), "got %v", err)

	// Only the limit order was ever placed.
	s.Require().Len(s.fake.placed, 1)
	s.Equal(types.OrderTypeLimit, s.fake.placed[0].orderType)

	// The guard stays disarmed: no fill was confirmed.
	_, armed := s.guard.Entry("BTCUSDT")
	s.False(armed)
}

func (s *ExecutorTestSuite) TestFailedLimitPlacementDoesNotEscalate() {
	exec := s.newExecutor(true)
	s.fake.placeErr = errors.New(errors.ErrCodeOrderFailed, "placement rejected")

	_, err := exec.Buy(context.Background(), types.Reason{Reason: types.OrderReasonSignal})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeOrderFailed))
	s.Empty(s.fake.placed)
}

func (s *ExecutorTestSuite) TestBuyRejectionWhenBroke() {
	exec := s.newExecutor(false)
	s.fake.balances["USDT"] = decimal.RequireFromString("3")

	_, err := exec.Buy(context.Background(), types.Reason{Reason: types.OrderReasonSignal})
	s.Require().Error(err)
	s.True(errors.IsRejection(err), "got %v", err)
	s.Empty(s.fake.placed)
}

func (s *ExecutorTestSuite) TestSellClearsStopLossAndReportsPnL() {
	exec := s.newExecutor(false)
	s.guard.SetEntry("BTCUSDT", decimal.RequireFromString("29000"))

	trade, err := exec.Sell(context.Background(), decimal.Zero, types.Reason{Reason: types.OrderReasonStopLoss})
	s.Require().NoError(err)

	s.Equal(types.PurchaseTypeSell, trade.Side)
	s.Require().True(trade.PnL.IsSome())
	s.Require().True(trade.PnLPct.IsSome())

	// Sold 0.5 at 30000 against a 29000 entry, minus the 15 USDT fee.
	s.InDelta(485, trade.PnL.Unwrap(), 1e-6)
	s.InDelta(1000.0/29000.0*100, trade.PnLPct.Unwrap(), 1e-6)

	_, armed := s.guard.Entry("BTCUSDT")
	s.False(armed)
}

func (s *ExecutorTestSuite) TestSellWithNothingHeld() {
	exec := s.newExecutor(false)
	s.fake.balances["BTC"] = decimal.Zero

	_, err := exec.Sell(context.Background(), decimal.Zero, types.Reason{Reason: types.OrderReasonSignal})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeNothingToSell), "got %v", err)
	s.Empty(s.fake.placed)
}

func TestExecutorTestSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}

package exchange

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/internal/types"
	"github.com/vcampos/spotkit/pkg/errors"
)

// Service interfaces for mocking the Binance API

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// GetOrderService interface for querying one order.
type GetOrderService interface {
	Symbol(symbol string) GetOrderService
	OrderID(orderID int64) GetOrderService
	Do(ctx context.Context) (*binance.Order, error)
}

// CancelOrderService interface for canceling orders.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*binance.CancelOrderResponse, error)
}

// ListPricesService interface for fetching symbol prices.
type ListPricesService interface {
	Symbol(symbol string) ListPricesService
	Do(ctx context.Context) ([]*binance.SymbolPrice, error)
}

// ExchangeInfoService interface for fetching symbol trading rules.
type ExchangeInfoService interface {
	Symbols(symbols ...string) ExchangeInfoService
	Do(ctx context.Context) (*binance.ExchangeInfo, error)
}

// BinanceClient interface abstracts the Binance client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewGetAccountService() GetAccountService
	NewGetOrderService() GetOrderService
	NewCancelOrderService() CancelOrderService
	NewListPricesService() ListPricesService
	NewExchangeInfoService() ExchangeInfoService
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realBinanceClient) NewGetOrderService() GetOrderService {
	return &realGetOrderService{service: r.client.NewGetOrderService()}
}

func (r *realBinanceClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realBinanceClient) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

func (r *realBinanceClient) NewExchangeInfoService() ExchangeInfoService {
	return &realExchangeInfoService{service: r.client.NewExchangeInfoService()}
}

// Real service wrappers

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

type realGetOrderService struct {
	service *binance.GetOrderService
}

func (s *realGetOrderService) Symbol(symbol string) GetOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realGetOrderService) OrderID(orderID int64) GetOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realGetOrderService) Do(ctx context.Context) (*binance.Order, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *binance.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*binance.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realListPricesService struct {
	service *binance.ListPricesService
}

func (s *realListPricesService) Symbol(symbol string) ListPricesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListPricesService) Do(ctx context.Context) ([]*binance.SymbolPrice, error) {
	return s.service.Do(ctx)
}

type realExchangeInfoService struct {
	service *binance.ExchangeInfoService
}

func (s *realExchangeInfoService) Symbols(symbols ...string) ExchangeInfoService {
	s.service = s.service.Symbols(symbols...)

	return s
}

func (s *realExchangeInfoService) Do(ctx context.Context) (*binance.ExchangeInfo, error) {
	return s.service.Do(ctx)
}

// BinanceExchange implements Exchange using the Binance spot API. It is
// stateless - every call goes to the API.
type BinanceExchange struct {
	client BinanceClient
}

// NewBinanceExchange connects to Binance spot. If useTestnet is true the
// client talks to the Binance Testnet instead of mainnet.
func NewBinanceExchange(apiKey, secretKey string, useTestnet bool) (*BinanceExchange, error) {
	if useTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(apiKey, secretKey)

	return &BinanceExchange{
		client: &realBinanceClient{client: client},
	}, nil
}

// newBinanceExchangeWithClient creates an exchange with a custom client.
// This is used for testing with mock clients.
func newBinanceExchangeWithClient(client BinanceClient) *BinanceExchange {
	return &BinanceExchange{
		client: client,
	}
}

// GetBalance returns one asset's free and locked amounts. An asset absent
// from the account response is reported as zero.
func (b *BinanceExchange) GetBalance(ctx context.Context, asset string) (Balance, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return Balance{}, errors.Wrap(errors.ErrCodeBalanceFetchFailed, "failed to get account info from Binance", err)
	}

	for _, bal := range account.Balances {
		if bal.Asset != asset {
			continue
		}

		free, freeErr := decimal.NewFromString(bal.Free)
		if freeErr != nil {
			return Balance{}, errors.Wrapf(errors.ErrCodeBalanceFetchFailed, freeErr, "unparsable free balance for %s", asset)
		}

		locked, lockedErr := decimal.NewFromString(bal.Locked)
		if lockedErr != nil {
			return Balance{}, errors.Wrapf(errors.ErrCodeBalanceFetchFailed, lockedErr, "unparsable locked balance for %s", asset)
		}

		return Balance{Asset: asset, Free: free, Locked: locked}, nil
	}

	return Balance{Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}, nil
}

// GetPrice returns the latest price for a symbol.
func (b *BinanceExchange) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrCodePriceFetchFailed, err, "failed to get price for %s from Binance", symbol)
	}

	if len(prices) == 0 {
		return decimal.Zero, errors.Newf(errors.ErrCodePriceFetchFailed, "no price returned for %s", symbol)
	}

	price, parseErr := decimal.NewFromString(prices[0].Price)
	if parseErr != nil {
		return decimal.Zero, errors.Wrapf(errors.ErrCodePriceFetchFailed, parseErr, "unparsable price for %s", symbol)
	}

	if price.Sign() <= 0 {
		return decimal.Zero, errors.Newf(errors.ErrCodePriceFetchFailed, "non-positive price %s for %s", price, symbol)
	}

	return price, nil
}

// GetSymbolFilters fetches the symbol's LOT_SIZE, PRICE_FILTER and NOTIONAL
// rules. Any missing filter makes the symbol untradable.
func (b *BinanceExchange) GetSymbolFilters(ctx context.Context, symbol string) (types.SymbolFilters, error) {
	info, err := b.client.NewExchangeInfoService().Symbols(symbol).Do(ctx)
	if err != nil {
		return types.SymbolFilters{}, errors.Wrapf(errors.ErrCodeFilterFetchFailed, err, "failed to get exchange info for %s", symbol)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}

		return parseSymbolFilters(s)
	}

	return types.SymbolFilters{}, errors.Newf(errors.ErrCodeFilterFetchFailed, "symbol %s not in exchange info", symbol)
}

func parseSymbolFilters(s binance.Symbol) (types.SymbolFilters, error) {
	lotSize := s.LotSizeFilter()
	if lotSize == nil {
		return types.SymbolFilters{}, errors.Newf(errors.ErrCodeMissingFilter, "symbol %s has no LOT_SIZE filter", s.Symbol)
	}

	priceFilter := s.PriceFilter()
	if priceFilter == nil {
		return types.SymbolFilters{}, errors.Newf(errors.ErrCodeMissingFilter, "symbol %s has no PRICE_FILTER filter", s.Symbol)
	}

	// Spot symbols carry NOTIONAL; older listings still report MIN_NOTIONAL,
	// which has no typed accessor, so fall back to the raw filter list.
	minNotionalStr := ""
	if notional := s.NotionalFilter(); notional != nil {
		minNotionalStr = notional.MinNotional
	} else {
		for _, f := range s.Filters {
			if f["filterType"] == "MIN_NOTIONAL" {
				if v, ok := f["minNotional"].(string); ok {
					minNotionalStr = v
				}

				break
			}
		}
	}

	if minNotionalStr == "" {
		return types.SymbolFilters{}, errors.Newf(errors.ErrCodeMissingFilter, "symbol %s has no NOTIONAL filter", s.Symbol)
	}

	step, err := decimal.NewFromString(lotSize.StepSize)
	if err != nil {
		return types.SymbolFilters{}, errors.Wrapf(errors.ErrCodeInvalidFilter, err, "unparsable step size for %s", s.Symbol)
	}

	tick, err := decimal.NewFromString(priceFilter.TickSize)
	if err != nil {
		return types.SymbolFilters{}, errors.Wrapf(errors.ErrCodeInvalidFilter, err, "unparsable tick size for %s", s.Symbol)
	}

	minNotional, err := decimal.NewFromString(minNotionalStr)
	if err != nil {
		return types.SymbolFilters{}, errors.Wrapf(errors.ErrCodeInvalidFilter, err, "unparsable min notional for %s", s.Symbol)
	}

	return types.NewSymbolFilters(s.Symbol, step, tick, minNotional)
}

// PlaceOrder submits a normalized order to Binance. Limit orders carry the
// order's tick-aligned limit price and rest GTC.
func (b *BinanceExchange) PlaceOrder(ctx context.Context, order types.NormalizedOrder, orderType types.OrderType) (types.OrderHandle, error) {
	if err := order.Validate(); err != nil {
		return types.OrderHandle{}, err
	}

	var side binance.SideType

	switch order.Side {
	case types.PurchaseTypeBuy:
		side = binance.SideTypeBuy
	case types.PurchaseTypeSell:
		side = binance.SideTypeSell
	default:
		return types.OrderHandle{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", order.Side)
	}

	service := b.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(side).
		Quantity(order.Quantity.String())

	switch orderType {
	case types.OrderTypeMarket:
		service = service.Type(binance.OrderTypeMarket)
	case types.OrderTypeLimit:
		if order.LimitPrice.IsNone() {
			return types.OrderHandle{}, errors.New(errors.ErrCodeInvalidOrder, "limit order has no limit price")
		}

		limitPrice := order.LimitPrice.Unwrap()
		service = service.
			Type(binance.OrderTypeLimit).
			Price(limitPrice.String()).
			TimeInForce(binance.TimeInForceTypeGTC)
	default:
		return types.OrderHandle{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order type: %s", orderType)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return types.OrderHandle{}, errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to place %s %s order on Binance", orderType, order.Side)
	}

	return types.OrderHandle{Symbol: order.Symbol, OrderID: resp.OrderID}, nil
}

// GetOrderStatus queries one order by symbol and id.
func (b *BinanceExchange) GetOrderStatus(ctx context.Context, handle types.OrderHandle) (types.OrderStatus, error) {
	order, err := b.client.NewGetOrderService().
		Symbol(handle.Symbol).
		OrderID(handle.OrderID).
		Do(ctx)
	if err != nil {
		return types.OrderStatusFailed, errors.Wrapf(errors.ErrCodeOrderStatusFailed, err, "failed to get status of order %d", handle.OrderID)
	}

	return mapBinanceOrderStatus(order.Status), nil
}

// CancelOrder cancels a resting order.
func (b *BinanceExchange) CancelOrder(ctx context.Context, handle types.OrderHandle) error {
	_, err := b.client.NewCancelOrderService().
		Symbol(handle.Symbol).
		OrderID(handle.OrderID).
		Do(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeCancelFailed, err, "failed to cancel order %d", handle.OrderID)
	}

	return nil
}

// mapBinanceOrderStatus maps Binance order status to our OrderStatus type.
func mapBinanceOrderStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPending
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired, binance.OrderStatusTypePendingCancel:
		return types.OrderStatusCancelled
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	default:
		return types.OrderStatusFailed
	}
}

// Ensure BinanceExchange implements Exchange.
var _ Exchange = (*BinanceExchange)(nil)

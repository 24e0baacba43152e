package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/vcampos/spotkit/pkg/errors"
)

type PurchaseType string

type OrderType string

type OrderStatus string

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

const (
	OrderReasonSignal     string = "signal"
	OrderReasonStopLoss   string = "stop_loss"
	OrderReasonGridLevel  string = "grid_level"
	OrderReasonForcedExit string = "forced_exit"
)

// Reason records why an order was created or skipped.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason" validate:"required"`
	Message string `yaml:"message" json:"message" csv:"message"`
}

// OrderIntent is the output of the sizing step: the side, the requested
// notional (buy) or quantity (sell), and the reference price at decision time.
// It is consumed by the quantity normalizer.
type OrderIntent struct {
	Symbol    string          `yaml:"symbol" json:"symbol" validate:"required"`
	Side      PurchaseType    `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Requested decimal.Decimal `yaml:"requested" json:"requested"`
	Price     decimal.Decimal `yaml:"price" json:"price"`
	Reason    Reason          `yaml:"reason" json:"reason"`
}

// NormalizedOrder is the terminal sizing artifact: a quantity that is an exact
// multiple of the symbol's step size, satisfies the minimum notional, and does
// not exceed the available balance. LimitPrice is set for maker orders only
// and is aligned to the tick size.
type NormalizedOrder struct {
	Symbol     string                           `yaml:"symbol" json:"symbol" validate:"required"`
	Side       PurchaseType                     `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity   decimal.Decimal                  `yaml:"quantity" json:"quantity"`
	Notional   decimal.Decimal                  `yaml:"notional" json:"notional"`
	LimitPrice optional.Option[decimal.Decimal] `yaml:"limit_price" json:"limit_price"`
}

// OrderHandle identifies an order resting on the exchange.
type OrderHandle struct {
	Symbol  string `yaml:"symbol" json:"symbol" validate:"required"`
	OrderID int64  `yaml:"order_id" json:"order_id"`
}

// ExchangeOrder is the exchange's view of a placed order.
type ExchangeOrder struct {
	Handle    OrderHandle  `yaml:"handle" json:"handle"`
	Side      PurchaseType `yaml:"side" json:"side"`
	OrderType OrderType    `yaml:"order_type" json:"order_type"`
	Status    OrderStatus  `yaml:"status" json:"status"`
	Quantity  string       `yaml:"quantity" json:"quantity"`
	Price     string       `yaml:"price" json:"price"`
	CreatedAt time.Time    `yaml:"created_at" json:"created_at"`
}

// Validate validates the NormalizedOrder struct.
func (o *NormalizedOrder) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid normalized order", err)
	}

	if o.Quantity.Sign() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "normalized order quantity must be positive")
	}

	return nil
}

package types

// Signal is the ternary trade decision supplied by the signal-generation
// collaborator for each time step. The engine consumes it and never computes
// it.
type Signal int

const (
	SignalHold Signal = 0
	SignalBuy  Signal = 1
	SignalSell Signal = -1
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	case SignalHold:
		return "HOLD"
	default:
		return "UNKNOWN"
	}
}

// ParseSignal maps a textual signal to its value. Unknown or empty strings
// parse as hold, matching how signal feeds encode "no action".
func ParseSignal(s string) Signal {
	switch s {
	case "BUY", "buy", "1":
		return SignalBuy
	case "SELL", "sell", "-1":
		return SignalSell
	default:
		return SignalHold
	}
}

// MarketState is the per-step market context handed to the signal source.
// Indicator values are diagnostic only and used purely for logging.
type MarketState struct {
	Symbol     string             `yaml:"symbol" json:"symbol"`
	Price      float64            `yaml:"price" json:"price"`
	Indicators map[string]float64 `yaml:"indicators" json:"indicators"`
}

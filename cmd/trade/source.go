package main

import (
	"context"

	"github.com/vcampos/spotkit/internal/exchange"
	"github.com/vcampos/spotkit/internal/types"
)

// crossoverSource is a rule-threshold signal collaborator: it polls the
// exchange price and emits buy/sell on fast/slow moving average crossovers.
// It stands in for whatever external signal feed drives a real deployment.
type crossoverSource struct {
	ex     exchange.Exchange
	symbol string
	fast   int
	slow   int

	window    []float64
	prevAbove bool
	primed    bool
}

func newCrossoverSource(ex exchange.Exchange, symbol string, fast, slow int) *crossoverSource {
	if fast < 2 {
		fast = 2
	}

	if slow <= fast {
		slow = fast + 1
	}

	return &crossoverSource{
		ex:     ex,
		symbol: symbol,
		fast:   fast,
		slow:   slow,
	}
}

func (c *crossoverSource) Next(ctx context.Context) (types.MarketState, types.Signal, error) {
	price, err := c.ex.GetPrice(ctx, c.symbol)
	if err != nil {
		return types.MarketState{}, types.SignalHold, err
	}

	p := price.InexactFloat64()

	c.window = append(c.window, p)
	if len(c.window) > c.slow {
		c.window = c.window[len(c.window)-c.slow:]
	}

	state := types.MarketState{Symbol: c.symbol, Price: p}

	if len(c.window) < c.slow {
		return state, types.SignalHold, nil
	}

	fastMA := average(c.window[len(c.window)-c.fast:])
	slowMA := average(c.window)
	above := fastMA > slowMA

	state.Indicators = map[string]float64{
		"ma_fast": fastMA,
		"ma_slow": slowMA,
	}

	defer func() {
		c.prevAbove = above
		c.primed = true
	}()

	if !c.primed || above == c.prevAbove {
		return state, types.SignalHold, nil
	}

	if above {
		return state, types.SignalBuy, nil
	}

	return state, types.SignalSell, nil
}

func average(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

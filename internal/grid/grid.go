// Package grid implements a ladder of evenly spaced price levels. Each
// level can hold at most one open lot: the ladder buys when the price
// touches an empty level and takes profit on the lot below when the price
// climbs to the next level up.
package grid

import (
	"math"

	"github.com/vcampos/spotkit/pkg/errors"
)

// toleranceFraction is the proximity band around a level, as a fraction of
// the level price. The price must come within this band to count as
// touching the level.
const toleranceFraction = 0.001

// Level is one rung of the ladder.
type Level struct {
	Price float64
	// HasPosition marks an open lot bought at this level.
	HasPosition bool
	// Quantity of the open lot, zero when HasPosition is false. Tracked
	// for the replay accountant and the simulated dry-run.
	Quantity float64
}

// Action is the ladder's per-tick decision.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Decision is the outcome of one price evaluation. LevelIndex and LevelPrice
// identify the rung the action applies to: the touched level for a buy, the
// rung below the touched level for a sell.
type Decision struct {
	Action     Action
	LevelIndex int
	LevelPrice float64
	Reason     string
}

// Grid is a price ladder with per-level lot state. Not safe for concurrent
// use; the decision loop owns it.
type Grid struct {
	symbol string
	levels []Level
	step   float64
}

// NewGrid builds a ladder of count evenly spaced levels from lower to upper
// inclusive.
func NewGrid(symbol string, lower, upper float64, count int) (*Grid, error) {
	if count < 2 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "grid needs at least 2 levels, got %d", count)
	}

	if lower <= 0 || upper <= lower {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"invalid grid bounds [%f, %f]", lower, upper)
	}

	step := (upper - lower) / float64(count-1)
	levels := make([]Level, count)

	for i := range levels {
		levels[i] = Level{
			Price:       lower + float64(i)*step,
			HasPosition: false,
			Quantity:    0,
		}
	}

	return &Grid{
		symbol: symbol,
		levels: levels,
		step:   step,
	}, nil
}

// NewGridAroundPrice builds a ladder spanning current price plus and minus
// rangePct.
func NewGridAroundPrice(symbol string, price, rangePct float64, count int) (*Grid, error) {
	if price <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "price must be positive, got %f", price)
	}

	if rangePct <= 0 || rangePct >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "range must be in (0, 1), got %f", rangePct)
	}

	return NewGrid(symbol, price*(1-rangePct), price*(1+rangePct), count)
}

// Symbol returns the symbol the ladder trades.
func (g *Grid) Symbol() string {
	return g.symbol
}

// Step returns the spacing between adjacent levels.
func (g *Grid) Step() float64 {
	return g.step
}

// Levels returns a copy of the rungs.
func (g *Grid) Levels() []Level {
	out := make([]Level, len(g.levels))
	copy(out, g.levels)

	return out
}

// Lower returns the bottom rung price.
func (g *Grid) Lower() float64 {
	return g.levels[0].Price
}

// Upper returns the top rung price.
func (g *Grid) Upper() float64 {
	return g.levels[len(g.levels)-1].Price
}

// ActivePositions counts rungs holding an open lot.
func (g *Grid) ActivePositions() int {
	n := 0

	for _, l := range g.levels {
		if l.HasPosition {
			n++
		}
	}

	return n
}

// Decide evaluates one price. Prices outside the band hold. A price
// touching a rung sells the lot below it when one is open; touching an
// empty rung buys it; anything else holds. The sell check runs first so a
// climb to the next rung always realizes the profit before opening a new
// lot there.
func (g *Grid) Decide(price float64) Decision {
	if price < g.Lower() || price > g.Upper() {
		return Decision{
			Action:     ActionHold,
			LevelIndex: -1,
			LevelPrice: 0,
			Reason:     "price outside grid band",
		}
	}

	idx := g.nearestLevel(price)
	level := g.levels[idx]

	if math.Abs(price-level.Price) > level.Price*toleranceFraction {
		return Decision{
			Action:     ActionHold,
			LevelIndex: -1,
			LevelPrice: 0,
			Reason:     "price between grid levels",
		}
	}

	if idx > 0 && g.levels[idx-1].HasPosition {
		return Decision{
			Action:     ActionSell,
			LevelIndex: idx - 1,
			LevelPrice: g.levels[idx-1].Price,
			Reason:     "profit target reached for lot below",
		}
	}

	if !level.HasPosition {
		return Decision{
			Action:     ActionBuy,
			LevelIndex: idx,
			LevelPrice: level.Price,
			Reason:     "touched empty grid level",
		}
	}

	return Decision{
		Action:     ActionHold,
		LevelIndex: -1,
		LevelPrice: 0,
		Reason:     "level already holds a lot",
	}
}

func (g *Grid) nearestLevel(price float64) int {
	best := 0
	bestDist := math.Abs(price - g.levels[0].Price)

	for i := 1; i < len(g.levels); i++ {
		dist := math.Abs(price - g.levels[i].Price)
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}

	return best
}

// MarkBought records an open lot at the rung after a confirmed buy fill.
func (g *Grid) MarkBought(idx int, quantity float64) error {
	if idx < 0 || idx >= len(g.levels) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "level index %d out of range", idx)
	}

	g.levels[idx].HasPosition = true
	g.levels[idx].Quantity = quantity

	return nil
}

// MarkSold clears the rung's lot after a confirmed sell fill.
func (g *Grid) MarkSold(idx int) error {
	if idx < 0 || idx >= len(g.levels) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "level index %d out of range", idx)
	}

	g.levels[idx].HasPosition = false
	g.levels[idx].Quantity = 0

	return nil
}

// Status is a loggable snapshot of the ladder.
type Status struct {
	Symbol          string  `yaml:"symbol" json:"symbol"`
	Lower           float64 `yaml:"lower" json:"lower"`
	Upper           float64 `yaml:"upper" json:"upper"`
	Step            float64 `yaml:"step" json:"step"`
	TotalLevels     int     `yaml:"total_levels" json:"total_levels"`
	ActivePositions int     `yaml:"active_positions" json:"active_positions"`
}

// Snapshot summarizes the ladder for logging.
func (g *Grid) Snapshot() Status {
	return Status{
		Symbol:          g.symbol,
		Lower:           g.Lower(),
		Upper:           g.Upper(),
		Step:            g.step,
		TotalLevels:     len(g.levels),
		ActivePositions: g.ActivePositions(),
	}
}

// Package sizing turns available capital into executable, exchange-legal
// order quantities. The position sizer decides how much quote currency to
// commit; the quantity normalizer fits that amount onto the exchange's
// quantization grid without ever exceeding the available balance.
package sizing

import (
	"github.com/vcampos/spotkit/pkg/errors"
)

// SizerParams are the capital-commitment knobs. All values are in quote
// currency except TradeFraction and FeeRate, which are fractions.
type SizerParams struct {
	// TradeFraction is the share of the balance tried first.
	TradeFraction float64
	// FeeRate estimates the commission charged on the candidate amount.
	FeeRate float64
	// MinBase and MinMargin build the acceptance threshold together with
	// the estimated commission.
	MinBase   float64
	MinMargin float64
	// FallbackNotional is the fixed amount tried when the fraction-based
	// candidate falls short.
	FallbackNotional float64
}

// Size computes the notional amount to spend on a buy. Pure function: it
// determines capital exposure and must stay free of side effects.
//
// The fraction-based candidate is accepted unchanged when it clears the
// threshold minBase + candidate*feeRate + minMargin; it is never shrunk to
// the threshold. When it falls short, the fixed fallback is retested against
// its own threshold. Rejections carry a coded, human-diagnosable reason.
func Size(balance float64, p SizerParams) (float64, error) {
	if balance <= 0 {
		return 0, errors.Newf(errors.ErrCodeInsufficientBalance,
			"quote balance %.2f is not positive", balance)
	}

	candidate := balance * p.TradeFraction
	threshold := p.MinBase + candidate*p.FeeRate + p.MinMargin

	if candidate >= threshold {
		return candidate, nil
	}

	if balance < p.FallbackNotional {
		return 0, errors.Newf(errors.ErrCodeFractionBelowThreshold,
			"fraction candidate %.2f < threshold %.2f and balance %.2f < fallback %.2f",
			candidate, threshold, balance, p.FallbackNotional)
	}

	// The fallback pays its own commission, so the threshold is recomputed.
	fallbackThreshold := p.MinBase + p.FallbackNotional*p.FeeRate + p.MinMargin
	if p.FallbackNotional < fallbackThreshold {
		return 0, errors.Newf(errors.ErrCodeFallbackBelowThreshold,
			"fallback %.2f does not clear threshold %.2f",
			p.FallbackNotional, fallbackThreshold)
	}

	return p.FallbackNotional, nil
}

package types

import "strings"

// knownQuoteAssets are checked longest-suffix-first when splitting a pair
// symbol into its base and quote assets.
var knownQuoteAssets = []string{
	"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "DAI",
	"BTC", "ETH", "BNB", "EUR", "TRY", "GBP",
}

// SplitSymbol splits a concatenated pair symbol like "BTCUSDT" into base and
// quote assets. Unrecognized quotes fall back to treating the last four
// characters as the quote.
func SplitSymbol(symbol string) (base, quote string) {
	for _, q := range knownQuoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)], q
		}
	}

	if len(symbol) > 4 {
		return symbol[:len(symbol)-4], symbol[len(symbol)-4:]
	}

	return symbol, ""
}

package models

import "strings"

// PairKey canonicalizes an unordered asset pair: sides are lowercased and
// sorted so PairKey(a, b) == PairKey(b, a). Used for volatility and liquidity
// state, where direction does not matter.
func PairKey(assetA, assetB string) string {
	a := strings.ToLower(strings.TrimSpace(assetA))
	b := strings.ToLower(strings.TrimSpace(assetB))
	if a > b {
		a, b = b, a
	}
	return a + "/" + b
}

// DirectionalPairKey preserves direction: "in>out". Used where the side
// matters, such as order bookkeeping.
func DirectionalPairKey(assetIn, assetOut string) string {
	return strings.ToLower(strings.TrimSpace(assetIn)) + ">" + strings.ToLower(strings.TrimSpace(assetOut))
}

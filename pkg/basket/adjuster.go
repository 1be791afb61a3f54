package basket

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var bpsDenominator = decimal.NewFromInt(10_000)

// Adjust applies leverage clamping and slippage to allocated orders.
//
// Leverage clamping is advisory: a request above a market's maximum is clamped
// to that maximum with a warning naming the old and new values, never an
// error. Slippage moves the reference price of market orders against the
// trader (buys up, sells down by slippageBps/10000) so the downstream USD
// estimate reflects the expected worse fill; the adjusted price is never sent
// to the venue. Limit orders keep their caller-supplied price untouched and
// slippage does not apply to them.
//
// The input slice is not mutated; adjusted copies are returned in order.
func Adjust(orders []PreparedOrder, leverage, slippageBps int, metas map[string]MarketMeta) ([]PreparedOrder, []string) {
	out := make([]PreparedOrder, len(orders))
	var warnings []string

	for i, o := range orders {
		meta, ok := metas[o.Symbol]

		if leverage > 0 {
			o.Leverage = leverage
			if ok && meta.MaxLeverage > 0 && leverage > meta.MaxLeverage {
				o.Leverage = meta.MaxLeverage
				warnings = append(warnings, fmt.Sprintf(
					"%s: requested leverage %dx exceeds maximum %dx, clamped to %dx",
					o.Symbol, leverage, meta.MaxLeverage, meta.MaxLeverage))
			}
		}

		if o.Type == Market && slippageBps > 0 && ok {
			offset := decimal.NewFromInt(int64(slippageBps)).Div(bpsDenominator)
			ref := meta.MarkPrice
			if o.Side == Buy {
				ref = ref.Mul(decimal.NewFromInt(1).Add(offset))
			} else {
				ref = ref.Mul(decimal.NewFromInt(1).Sub(offset))
			}
			o.EstUsd = o.Size.Mul(ref)
		}

		out[i] = o
	}

	return out, warnings
}

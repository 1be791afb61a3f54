package basket

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinOrderPolicy decides what happens to a symbol whose equal-weight share is
// below its effective minimum order size.
type MinOrderPolicy int

const (
	// DropAndRedistribute drops the symbol and redistributes its share across
	// the surviving symbols in a single pass. This is the default policy.
	DropAndRedistribute MinOrderPolicy = iota

	// RaiseToMinimum raises the symbol's share to its minimum instead,
	// consuming more than its equal-weight share. No redistribution happens
	// under this policy, so the estimated total can exceed the requested
	// total; the allocator surfaces that as a warning.
	RaiseToMinimum
)

func (p MinOrderPolicy) String() string {
	switch p {
	case DropAndRedistribute:
		return "drop-and-redistribute"
	case RaiseToMinimum:
		return "raise-to-minimum"
	default:
		return "unknown"
	}
}

// AllocationResult is the allocator's output before leverage/slippage
// adjustment and risk scoring.
type AllocationResult struct {
	Prepared         []PreparedOrder
	Skipped          []SkipReason
	EstimatedUsedUsd decimal.Decimal
	Warnings         []string
}

// Allocate splits input.TotalUsd equally across input.Symbols, rounds each
// size down to the market's legal increment, and applies the minimum-order
// policy. Equal weighting is the only split supported: per-symbol weights are
// a product decision this engine deliberately does not take.
//
// The function is pure: identical inputs produce identical results. Every
// symbol lands in exactly one of Prepared or Skipped. Structurally invalid
// input (empty symbol set, non-positive total) returns an error and no result.
//
// Redistribution is single-pass: shares freed by unusable or dropped symbols
// are spread over the survivors once, and any residual imbalance becomes a
// warning rather than an iterative fixed point.
func Allocate(input BasketInput, metas map[string]MarketMeta, policy MinOrderPolicy) (*AllocationResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res := &AllocationResult{EstimatedUsedUsd: decimal.Zero}

	// Usability pass: decide once per symbol whether it can participate, so
	// no zero-default price ever enters the arithmetic below.
	type candidate struct {
		symbol string
		meta   MarketMeta
	}
	var usable []candidate
	for _, sym := range input.Symbols {
		meta, ok := metas[sym]
		switch {
		case !ok:
			res.Skipped = append(res.Skipped, SkipReason{
				Symbol: sym,
				Code:   SkipMetadataMissing,
				Detail: "no market metadata for symbol",
			})
		case !meta.Usable():
			res.Skipped = append(res.Skipped, SkipReason{
				Symbol: sym,
				Code:   SkipNoPrice,
				Detail: fmt.Sprintf("mark price unavailable (got %s)", meta.MarkPrice),
			})
		case input.OrderType == Limit && !hasLimitPrice(input, sym):
			res.Skipped = append(res.Skipped, SkipReason{
				Symbol: sym,
				Code:   SkipNoLimitPrice,
				Detail: "limit basket without a limit price for symbol",
			})
		default:
			usable = append(usable, candidate{symbol: sym, meta: meta})
		}
	}

	if len(usable) == 0 {
		res.Warnings = append(res.Warnings, "no usable symbols in basket")
		return res, nil
	}

	// Equal-weight base share over ALL requested symbols. Minimum-order
	// filtering works off this base share; redistribution then recomputes
	// shares over the survivors only.
	count := decimal.NewFromInt(int64(len(input.Symbols)))
	baseShare := input.TotalUsd.Div(count)

	survivors := usable
	if policy == DropAndRedistribute {
		survivors = make([]candidate, 0, len(usable))
		for _, c := range usable {
			min := c.meta.EffectiveMinOrderUsd()
			if baseShare.LessThan(min) {
				res.Skipped = append(res.Skipped, SkipReason{
					Symbol: c.symbol,
					Code:   SkipBelowMinimum,
					Detail: fmt.Sprintf("share %s below minimum order %s", baseShare.StringFixed(2), min.StringFixed(2)),
				})
				continue
			}
			survivors = append(survivors, c)
		}
		if len(survivors) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"all symbols below minimum order size at %s per symbol", baseShare.StringFixed(2)))
			return res, nil
		}
		if len(survivors) < len(input.Symbols) {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"redistributed %s across %d remaining symbols",
				input.TotalUsd.Sub(baseShare.Mul(decimal.NewFromInt(int64(len(survivors))))).StringFixed(2),
				len(survivors)))
		}
	}

	// Effective per-symbol share after redistribution. Shares only grow here,
	// so a survivor that met its minimum at baseShare still meets it.
	share := input.TotalUsd.Div(decimal.NewFromInt(int64(len(survivors))))
	raised := 0

	for _, c := range survivors {
		min := c.meta.EffectiveMinOrderUsd()

		var alloc decimal.Decimal
		switch policy {
		case RaiseToMinimum:
			// Raise-to-minimum keeps the equal-weight base share and lifts it
			// to the minimum where needed. No redistribution.
			alloc = baseShare
			if alloc.LessThan(min) {
				alloc = min
				raised++
			}
		default:
			alloc = share
		}

		// Floor to the legal increment so the realized notional never exceeds
		// what was asked for this symbol. A single increment tops the size
		// back up when flooring dipped the notional below the minimum.
		size := alloc.Div(c.meta.MarkPrice).RoundDown(c.meta.SizeDecimals)
		if size.IsZero() {
			res.Skipped = append(res.Skipped, SkipReason{
				Symbol: c.symbol,
				Code:   SkipZeroSize,
				Detail: fmt.Sprintf("allocation %s rounds to zero at price %s", alloc.StringFixed(2), c.meta.MarkPrice),
			})
			continue
		}
		if size.Mul(c.meta.MarkPrice).LessThan(min) {
			size = size.Add(c.meta.SizeIncrement())
		}

		notional := size.Mul(c.meta.MarkPrice)
		order := PreparedOrder{
			Symbol: c.symbol,
			Side:   input.Side,
			Type:   input.OrderType,
			Size:   size,
			EstUsd: notional,
		}
		if input.OrderType == Limit {
			order.Price = input.LimitPrice[c.symbol]
		}
		res.Prepared = append(res.Prepared, order)
		res.EstimatedUsedUsd = res.EstimatedUsedUsd.Add(notional)
	}

	if raised > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"raised %d symbol(s) to minimum order size; estimated total %s may exceed requested %s",
			raised, res.EstimatedUsedUsd.StringFixed(2), input.TotalUsd.StringFixed(2)))
	}

	return res, nil
}

func hasLimitPrice(input BasketInput, symbol string) bool {
	px, ok := input.LimitPrice[symbol]
	return ok && px.IsPositive()
}

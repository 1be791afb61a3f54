package basket

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the direction of every order in a basket. Two-sided baskets are two
// separate calls.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType selects market or limit execution for the whole basket.
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// DefaultMinOrderUsd is the hard safety floor applied when a market's own
// minimum is unknown or lower. Matches the venue's $5 minimum order size.
var DefaultMinOrderUsd = decimal.NewFromInt(5)

// MarketMeta is a read-only snapshot of per-symbol market metadata supplied by
// the caller for one allocation call. A zero MarkPrice marks the symbol
// unusable.
type MarketMeta struct {
	Symbol       string
	MarkPrice    decimal.Decimal // current mark price; zero/negative = unusable
	SizeDecimals int32           // size rounding precision (10^-SizeDecimals lots)
	MinOrderUsd  decimal.Decimal // venue minimum notional; zero = unknown
	MaxLeverage  int             // maximum leverage; 0 = unbounded
}

// Usable reports whether the metadata can participate in allocation math.
// Evaluated once per symbol at the top of the allocator so a zero-default
// price never silently enters arithmetic.
func (m MarketMeta) Usable() bool {
	return m.MarkPrice.IsPositive()
}

// EffectiveMinOrderUsd returns max(MinOrderUsd, DefaultMinOrderUsd).
func (m MarketMeta) EffectiveMinOrderUsd() decimal.Decimal {
	if m.MinOrderUsd.GreaterThan(DefaultMinOrderUsd) {
		return m.MinOrderUsd
	}
	return DefaultMinOrderUsd
}

// SizeIncrement returns the smallest legal size step, 10^-SizeDecimals.
func (m MarketMeta) SizeIncrement() decimal.Decimal {
	return decimal.New(1, -m.SizeDecimals)
}

// BasketInput describes one basket request. Immutable once passed to the
// allocator; build a fresh one per user action.
type BasketInput struct {
	OrderType OrderType
	Side      Side
	TotalUsd  decimal.Decimal
	Symbols   []string // distinct, non-empty; iteration order is submission order

	Leverage    int // requested leverage across the basket; 0 = venue default
	SlippageBps int // market orders only, [0,1000]

	// LimitPrice maps symbol to limit price. Required when OrderType is Limit;
	// a symbol missing from the map is skipped with SkipNoLimitPrice.
	LimitPrice map[string]decimal.Decimal
}

// Validate checks structural validity. Failures here block plan construction
// entirely; per-symbol problems are reported as skip reasons instead and
// never reach this path.
func (in BasketInput) Validate() error {
	if len(in.Symbols) == 0 {
		return fmt.Errorf("basket has no symbols")
	}
	seen := make(map[string]struct{}, len(in.Symbols))
	for _, s := range in.Symbols {
		if s == "" {
			return fmt.Errorf("basket contains an empty symbol")
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("duplicate symbol in basket: %s", s)
		}
		seen[s] = struct{}{}
	}
	if !in.TotalUsd.IsPositive() {
		return fmt.Errorf("total USD must be positive, got %s", in.TotalUsd)
	}
	switch in.Side {
	case Buy, Sell:
	default:
		return fmt.Errorf("invalid side: %q", in.Side)
	}
	switch in.OrderType {
	case Market, Limit:
	default:
		return fmt.Errorf("invalid order type: %q", in.OrderType)
	}
	if in.OrderType == Limit && in.LimitPrice == nil {
		return fmt.Errorf("limit basket requires a limit price map")
	}
	if in.SlippageBps < 0 || in.SlippageBps > 1000 {
		return fmt.Errorf("slippage must be in [0,1000] bps, got %d", in.SlippageBps)
	}
	if in.Leverage < 0 {
		return fmt.Errorf("leverage must be non-negative, got %d", in.Leverage)
	}
	return nil
}

// SkipCode enumerates why a symbol was excluded from a basket.
type SkipCode string

const (
	SkipNoPrice         SkipCode = "no-price"
	SkipBelowMinimum    SkipCode = "below-minimum"
	SkipZeroSize        SkipCode = "zero-size-after-rounding"
	SkipNoLimitPrice    SkipCode = "no-limit-price"
	SkipMetadataMissing SkipCode = "metadata-missing"
)

// SkipReason records a per-symbol exclusion. Informational: a skip never
// blocks the other symbols.
type SkipReason struct {
	Symbol string
	Code   SkipCode
	Detail string // human-readable explanation, always non-empty
}

func (s SkipReason) String() string {
	return fmt.Sprintf("%s: %s (%s)", s.Symbol, s.Code, s.Detail)
}

// PreparedOrder is one exchange-legal order produced by the allocator and
// adjuster. Price is set only for limit orders; market orders carry their
// slippage-adjusted reference in EstUsd, never a price.
type PreparedOrder struct {
	Symbol string
	Side   Side
	Type   OrderType

	Size  decimal.Decimal // > 0, rounded to the market's SizeDecimals
	Price decimal.Decimal // limit price; zero for market orders

	EstUsd   decimal.Decimal // estimated notional at the (slippage-adjusted) reference price
	Leverage int             // effective leverage after clamping; 0 = venue default
}

// BasketPlan is the outcome of one preview. Immutable; a new preview builds a
// new plan rather than mutating this one.
type BasketPlan struct {
	Prepared []PreparedOrder
	Skipped  []SkipReason

	EstimatedUsedUsd decimal.Decimal
	TotalLongUsd     decimal.Decimal
	TotalShortUsd    decimal.Decimal

	Warnings  []string
	Errors    []string // risk violations; non-empty blocks submission
	RiskScore decimal.Decimal

	// CanSubmit is true when the plan has at least one prepared order and no
	// risk violations. Callers must check it before handing the plan to the
	// submission orchestrator.
	CanSubmit bool
}

package basket

import (
	"testing"

	"github.com/shopspring/decimal"
)

func usd(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// testMetas mirrors a realistic metadata snapshot: majors with fine size
// precision, an alt with coarse precision.
func testMetas() map[string]MarketMeta {
	return map[string]MarketMeta{
		"BTC": {Symbol: "BTC", MarkPrice: usd(50_000), SizeDecimals: 5, MinOrderUsd: usd(10), MaxLeverage: 50},
		"ETH": {Symbol: "ETH", MarkPrice: usd(3_000), SizeDecimals: 4, MinOrderUsd: usd(10), MaxLeverage: 50},
		"SOL": {Symbol: "SOL", MarkPrice: usd(150), SizeDecimals: 2, MinOrderUsd: usd(10), MaxLeverage: 20},
	}
}

func marketBuy(total float64, symbols ...string) BasketInput {
	return BasketInput{
		OrderType: Market,
		Side:      Buy,
		TotalUsd:  usd(total),
		Symbols:   symbols,
	}
}

func TestAllocate_EqualSplitAcrossThreeSymbols(t *testing.T) {
	metas := testMetas()
	res, err := Allocate(marketBuy(1000, "BTC", "ETH", "SOL"), metas, DropAndRedistribute)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}

	if len(res.Prepared) != 3 {
		t.Fatalf("prepared = %d, want 3 (skipped: %v)", len(res.Prepared), res.Skipped)
	}
	if len(res.Skipped) != 0 {
		t.Fatalf("skipped = %v, want none", res.Skipped)
	}

	// Conservation under floor rounding: never overspends, undershoots by at
	// most one size increment's USD value per surviving symbol.
	total := usd(1000)
	if res.EstimatedUsedUsd.GreaterThan(total) {
		t.Errorf("estimated %s exceeds requested %s", res.EstimatedUsedUsd, total)
	}
	epsilon := decimal.Zero
	for _, o := range res.Prepared {
		m := metas[o.Symbol]
		epsilon = epsilon.Add(m.SizeIncrement().Mul(m.MarkPrice))
	}
	if res.EstimatedUsedUsd.LessThan(total.Sub(epsilon)) {
		t.Errorf("estimated %s undershoots %s by more than epsilon %s",
			res.EstimatedUsedUsd, total, epsilon)
	}

	// Sizes respect each market's precision.
	for _, o := range res.Prepared {
		m := metas[o.Symbol]
		if !o.Size.Equal(o.Size.RoundDown(m.SizeDecimals)) {
			t.Errorf("%s: size %s not aligned to %d decimals", o.Symbol, o.Size, m.SizeDecimals)
		}
		if !o.Size.IsPositive() {
			t.Errorf("%s: non-positive size %s", o.Symbol, o.Size)
		}
	}
}

func TestAllocate_PartitionProperty(t *testing.T) {
	metas := testMetas()
	tests := []struct {
		name   string
		input  BasketInput
		policy MinOrderPolicy
	}{
		{"all usable", marketBuy(1000, "BTC", "ETH", "SOL"), DropAndRedistribute},
		{"one unknown", marketBuy(1000, "BTC", "UNKNOWN"), DropAndRedistribute},
		{"all below minimum", marketBuy(6, "BTC", "ETH", "SOL"), DropAndRedistribute},
		{"raise policy", marketBuy(6, "BTC", "ETH", "SOL"), RaiseToMinimum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Allocate(tt.input, metas, tt.policy)
			if err != nil {
				t.Fatalf("Allocate() error: %v", err)
			}
			if got, want := len(res.Prepared)+len(res.Skipped), len(tt.input.Symbols); got != want {
				t.Errorf("|prepared|+|skipped| = %d, want %d", got, want)
			}
			seen := map[string]int{}
			for _, o := range res.Prepared {
				seen[o.Symbol]++
			}
			for _, s := range res.Skipped {
				seen[s.Symbol]++
			}
			for _, sym := range tt.input.Symbols {
				if seen[sym] != 1 {
					t.Errorf("symbol %s appears %d times across prepared+skipped, want exactly 1", sym, seen[sym])
				}
			}
		})
	}
}

func TestAllocate_IdempotentPreview(t *testing.T) {
	metas := testMetas()
	input := marketBuy(1234.56, "BTC", "ETH", "SOL")

	first, err := Allocate(input, metas, DropAndRedistribute)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	second, err := Allocate(input, metas, DropAndRedistribute)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}

	if !first.EstimatedUsedUsd.Equal(second.EstimatedUsedUsd) {
		t.Errorf("estimated differs across identical calls: %s vs %s",
			first.EstimatedUsedUsd, second.EstimatedUsedUsd)
	}
	if len(first.Prepared) != len(second.Prepared) {
		t.Fatalf("prepared count differs: %d vs %d", len(first.Prepared), len(second.Prepared))
	}
	for i := range first.Prepared {
		a, b := first.Prepared[i], second.Prepared[i]
		if a.Symbol != b.Symbol || !a.Size.Equal(b.Size) {
			t.Errorf("prepared[%d] differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestAllocate_BelowMinimum_DropPolicy(t *testing.T) {
	// Scenario: $10 basket, single symbol whose minimum order is $50.
	metas := map[string]MarketMeta{
		"BTC": {Symbol: "BTC", MarkPrice: usd(50_000), SizeDecimals: 5, MinOrderUsd: usd(50)},
	}

	res, err := Allocate(marketBuy(10, "BTC"), metas, DropAndRedistribute)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if len(res.Prepared) != 0 {
		t.Fatalf("prepared = %v, want none", res.Prepared)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Code != SkipBelowMinimum {
		t.Fatalf("skipped = %v, want one below-minimum", res.Skipped)
	}
	if res.Skipped[0].Detail == "" {
		t.Error("skip reason has empty detail")
	}
}

func TestAllocate_BelowMinimum_RaisePolicy(t *testing.T) {
	metas := map[string]MarketMeta{
		"BTC": {Symbol: "BTC", MarkPrice: usd(50_000), SizeDecimals: 5, MinOrderUsd: usd(50)},
	}

	res, err := Allocate(marketBuy(10, "BTC"), metas, RaiseToMinimum)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if len(res.Prepared) != 1 {
		t.Fatalf("prepared = %v, want one raised order", res.Prepared)
	}

	// Raised to the $50 minimum: notional must meet it even after rounding.
	got := res.Prepared[0].EstUsd
	if got.LessThan(usd(50)) {
		t.Errorf("raised notional %s below minimum 50", got)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a raised-to-minimum warning")
	}
}

func TestAllocate_MinimumOrderEnforcement(t *testing.T) {
	// Property: no prepared order's notional is below the market minimum,
	// under either policy.
	metas := testMetas()
	for _, policy := range []MinOrderPolicy{DropAndRedistribute, RaiseToMinimum} {
		t.Run(policy.String(), func(t *testing.T) {
			res, err := Allocate(marketBuy(47, "BTC", "ETH", "SOL"), metas, policy)
			if err != nil {
				t.Fatalf("Allocate() error: %v", err)
			}
			for _, o := range res.Prepared {
				min := metas[o.Symbol].EffectiveMinOrderUsd()
				if o.EstUsd.LessThan(min) {
					t.Errorf("%s: notional %s below minimum %s", o.Symbol, o.EstUsd, min)
				}
			}
		})
	}
}

func TestAllocate_MissingMetadata_Redistributes(t *testing.T) {
	// Scenario: $1000 across BTC and an unknown symbol. Under the default
	// drop-and-redistribute policy the full amount lands on BTC.
	metas := testMetas()
	res, err := Allocate(marketBuy(1000, "BTC", "UNKNOWN"), metas, DropAndRedistribute)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}

	if len(res.Prepared) != 1 || res.Prepared[0].Symbol != "BTC" {
		t.Fatalf("prepared = %v, want only BTC", res.Prepared)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Code != SkipMetadataMissing {
		t.Fatalf("skipped = %v, want one metadata-missing", res.Skipped)
	}

	// BTC gets the redistributed full $1000 (modulo one size increment).
	increment := metas["BTC"].SizeIncrement().Mul(metas["BTC"].MarkPrice)
	if res.EstimatedUsedUsd.LessThan(usd(1000).Sub(increment)) || res.EstimatedUsedUsd.GreaterThan(usd(1000)) {
		t.Errorf("estimated = %s, want within one increment below 1000", res.EstimatedUsedUsd)
	}
}

func TestAllocate_ZeroPriceSkips(t *testing.T) {
	metas := map[string]MarketMeta{
		"DEAD": {Symbol: "DEAD", MarkPrice: decimal.Zero, SizeDecimals: 2},
		"BTC":  {Symbol: "BTC", MarkPrice: usd(50_000), SizeDecimals: 5},
	}
	res, err := Allocate(marketBuy(100, "DEAD", "BTC"), metas, DropAndRedistribute)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Code != SkipNoPrice {
		t.Fatalf("skipped = %v, want one no-price", res.Skipped)
	}
	if len(res.Prepared) != 1 {
		t.Fatalf("prepared = %v, want BTC only", res.Prepared)
	}
}

func TestAllocate_ZeroSizeAfterRounding(t *testing.T) {
	// Coarse size precision and a high price: $20 buys 0.0004 of a $50k
	// asset, which floors to zero at 2 decimals.
	metas := map[string]MarketMeta{
		"BTC": {Symbol: "BTC", MarkPrice: usd(50_000), SizeDecimals: 2, MinOrderUsd: usd(5)},
	}
	res, err := Allocate(marketBuy(20, "BTC"), metas, DropAndRedistribute)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Code != SkipZeroSize {
		t.Fatalf("skipped = %v, want one zero-size-after-rounding", res.Skipped)
	}
}

func TestAllocate_LimitRequiresPrice(t *testing.T) {
	metas := testMetas()
	input := BasketInput{
		OrderType: Limit,
		Side:      Buy,
		TotalUsd:  usd(1000),
		Symbols:   []string{"BTC", "ETH"},
		LimitPrice: map[string]decimal.Decimal{
			"BTC": usd(49_000),
			// ETH intentionally absent
		},
	}
	res, err := Allocate(input, metas, DropAndRedistribute)
	if err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if len(res.Prepared) != 1 || res.Prepared[0].Symbol != "BTC" {
		t.Fatalf("prepared = %v, want BTC only", res.Prepared)
	}
	if !res.Prepared[0].Price.Equal(usd(49_000)) {
		t.Errorf("limit price = %s, want caller-supplied 49000", res.Prepared[0].Price)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Code != SkipNoLimitPrice {
		t.Fatalf("skipped = %v, want one no-limit-price", res.Skipped)
	}
}

func TestAllocate_StructurallyInvalidInput(t *testing.T) {
	metas := testMetas()
	tests := []struct {
		name  string
		input BasketInput
	}{
		{"empty symbols", BasketInput{OrderType: Market, Side: Buy, TotalUsd: usd(100)}},
		{"zero total", marketBuy(0, "BTC")},
		{"negative total", marketBuy(-5, "BTC")},
		{"duplicate symbols", marketBuy(100, "BTC", "BTC")},
		{"bad slippage", func() BasketInput {
			in := marketBuy(100, "BTC")
			in.SlippageBps = 2000
			return in
		}()},
		{"limit without price map", BasketInput{OrderType: Limit, Side: Buy, TotalUsd: usd(100), Symbols: []string{"BTC"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Allocate(tt.input, metas, DropAndRedistribute); err == nil {
				t.Error("Allocate() accepted structurally invalid input")
			}
		})
	}
}

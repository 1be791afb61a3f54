package basket

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Limits are the hard risk limits a plan is validated against before
// submission. Zero values are replaced by DefaultLimits' entries.
type Limits struct {
	MaxGrossExposureUsd  decimal.Decimal // sum of |long| + |short| notional
	MaxPerAssetUsd       decimal.Decimal // single-position notional ceiling
	MinPerAssetUsd       decimal.Decimal // single-position notional floor
	MaxLongPositions     int
	MaxShortPositions    int
	MaxTotalPositions    int
	MaxEffectiveLeverage int
}

// DefaultLimits returns conservative retail-desk defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxGrossExposureUsd:  decimal.NewFromInt(100_000),
		MaxPerAssetUsd:       decimal.NewFromInt(25_000),
		MinPerAssetUsd:       decimal.NewFromInt(5),
		MaxLongPositions:     20,
		MaxShortPositions:    20,
		MaxTotalPositions:    30,
		MaxEffectiveLeverage: 20,
	}
}

// Assessment is the scorer's verdict on a plan.
type Assessment struct {
	OK       bool
	Errors   []string // hard-limit violations; all collected, never truncated
	Warnings []string // advisory, non-blocking
	Score    decimal.Decimal
}

// Score weights. Each factor is a ratio clamped to [0,1], then weighted;
// the sum is the 0..100 risk score. The weights are part of the public
// contract (tests pin them):
//
//	exposure / MaxGrossExposureUsd        → up to 30
//	positions / MaxTotalPositions         → up to 20
//	largest position / gross exposure     → up to 25
//	effective leverage / MaxEffective     → up to 25
var (
	weightExposure      = decimal.NewFromInt(30)
	weightPositionCount = decimal.NewFromInt(20)
	weightConcentration = decimal.NewFromInt(25)
	weightLeverage      = decimal.NewFromInt(25)
)

// Warning thresholds.
var (
	warnUtilization   = decimal.NewFromFloat(0.8) // of exposure / count limits
	warnConcentration = decimal.NewFromFloat(0.5) // of gross exposure
	warnImbalance     = decimal.NewFromFloat(0.3) // long/short ratio floor
)

// ScorePlan validates a plan against hard limits and computes its risk score.
//
// All checks run and all violations are collected so the caller sees the full
// list; the only short circuit is a plan with zero valid positions, which
// fails immediately. Effective leverage is approximated as gross exposure over
// net exposure (a fully hedged book scores as maximally levered).
func ScorePlan(plan *BasketPlan, limits Limits) Assessment {
	limits = fillLimits(limits)
	a := Assessment{Score: decimal.Zero}

	longUsd, shortUsd := decimal.Zero, decimal.Zero
	longCount, shortCount := 0, 0
	largest := decimal.Zero
	for _, o := range plan.Prepared {
		if !o.Size.IsPositive() {
			continue
		}
		if o.Side == Buy {
			longUsd = longUsd.Add(o.EstUsd)
			longCount++
		} else {
			shortUsd = shortUsd.Add(o.EstUsd)
			shortCount++
		}
		if o.EstUsd.GreaterThan(largest) {
			largest = o.EstUsd
		}
	}
	total := longCount + shortCount

	if total == 0 {
		a.Errors = append(a.Errors, "no valid positions: every order has zero size after rounding")
		return a
	}

	gross := longUsd.Add(shortUsd)
	net := longUsd.Sub(shortUsd).Abs()

	if gross.GreaterThan(limits.MaxGrossExposureUsd) {
		a.Errors = append(a.Errors, fmt.Sprintf(
			"gross exposure %s exceeds limit %s",
			gross.StringFixed(2), limits.MaxGrossExposureUsd.StringFixed(2)))
	}

	for _, o := range plan.Prepared {
		if !o.Size.IsPositive() {
			continue
		}
		if o.EstUsd.GreaterThan(limits.MaxPerAssetUsd) {
			a.Errors = append(a.Errors, fmt.Sprintf(
				"%s: position %s exceeds per-asset limit %s",
				o.Symbol, o.EstUsd.StringFixed(2), limits.MaxPerAssetUsd.StringFixed(2)))
		}
		if o.EstUsd.LessThan(limits.MinPerAssetUsd) {
			a.Errors = append(a.Errors, fmt.Sprintf(
				"%s: position %s below per-asset minimum %s",
				o.Symbol, o.EstUsd.StringFixed(2), limits.MinPerAssetUsd.StringFixed(2)))
		}
	}

	if longCount > limits.MaxLongPositions {
		a.Errors = append(a.Errors, fmt.Sprintf(
			"%d long positions exceed limit %d", longCount, limits.MaxLongPositions))
	}
	if shortCount > limits.MaxShortPositions {
		a.Errors = append(a.Errors, fmt.Sprintf(
			"%d short positions exceed limit %d", shortCount, limits.MaxShortPositions))
	}
	if total > limits.MaxTotalPositions {
		a.Errors = append(a.Errors, fmt.Sprintf(
			"%d total positions exceed limit %d", total, limits.MaxTotalPositions))
	}

	// Effective leverage = gross / net. Net of zero (perfect hedge) is treated
	// as the worst case rather than dividing by zero.
	levRatio := decimal.NewFromInt(1)
	maxLev := decimal.NewFromInt(int64(limits.MaxEffectiveLeverage))
	if net.IsPositive() {
		effLev := gross.Div(net)
		if effLev.GreaterThan(maxLev) {
			a.Errors = append(a.Errors, fmt.Sprintf(
				"effective leverage %s exceeds limit %d",
				effLev.StringFixed(1), limits.MaxEffectiveLeverage))
		}
		levRatio = clampRatio(effLev.Div(maxLev))
	}

	// Warnings: advisory proximity to limits, never blocking.
	exposureRatio := clampRatio(gross.Div(limits.MaxGrossExposureUsd))
	if exposureRatio.GreaterThan(warnUtilization) {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"gross exposure at %s%% of limit", exposureRatio.Mul(decimal.NewFromInt(100)).StringFixed(0)))
	}
	countRatio := clampRatio(decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(limits.MaxTotalPositions))))
	if countRatio.GreaterThan(warnUtilization) {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"position count at %s%% of limit", countRatio.Mul(decimal.NewFromInt(100)).StringFixed(0)))
	}
	concentration := decimal.Zero
	if gross.IsPositive() {
		concentration = largest.Div(gross)
	}
	if concentration.GreaterThan(warnConcentration) {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"largest position is %s%% of gross exposure",
			concentration.Mul(decimal.NewFromInt(100)).StringFixed(0)))
	}
	if longUsd.IsPositive() && shortUsd.IsPositive() {
		smaller, bigger := longUsd, shortUsd
		if smaller.GreaterThan(bigger) {
			smaller, bigger = bigger, smaller
		}
		if smaller.Div(bigger).LessThan(warnImbalance) {
			a.Warnings = append(a.Warnings, "long/short books are heavily imbalanced")
		}
	}

	a.Score = exposureRatio.Mul(weightExposure).
		Add(countRatio.Mul(weightPositionCount)).
		Add(clampRatio(concentration).Mul(weightConcentration)).
		Add(levRatio.Mul(weightLeverage))
	if a.Score.GreaterThan(decimal.NewFromInt(100)) {
		a.Score = decimal.NewFromInt(100)
	}

	a.OK = len(a.Errors) == 0
	return a
}

func clampRatio(r decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if r.GreaterThan(one) {
		return one
	}
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func fillLimits(l Limits) Limits {
	def := DefaultLimits()
	if l.MaxGrossExposureUsd.IsZero() {
		l.MaxGrossExposureUsd = def.MaxGrossExposureUsd
	}
	if l.MaxPerAssetUsd.IsZero() {
		l.MaxPerAssetUsd = def.MaxPerAssetUsd
	}
	if l.MinPerAssetUsd.IsZero() {
		l.MinPerAssetUsd = def.MinPerAssetUsd
	}
	if l.MaxLongPositions == 0 {
		l.MaxLongPositions = def.MaxLongPositions
	}
	if l.MaxShortPositions == 0 {
		l.MaxShortPositions = def.MaxShortPositions
	}
	if l.MaxTotalPositions == 0 {
		l.MaxTotalPositions = def.MaxTotalPositions
	}
	if l.MaxEffectiveLeverage == 0 {
		l.MaxEffectiveLeverage = def.MaxEffectiveLeverage
	}
	return l
}

package basket

import (
	"github.com/shopspring/decimal"
)

// PlanOptions bundles the policy knobs for one preview.
type PlanOptions struct {
	Policy MinOrderPolicy // zero value = DropAndRedistribute
	Limits Limits         // zero fields fall back to DefaultLimits
}

// Preview runs the full pipeline: allocate → adjust → score. It returns an
// error only for structurally invalid input; everything else is expressed on
// the plan itself (skips, warnings, risk errors, CanSubmit).
//
// Preview is pure with respect to its inputs: calling it twice with the same
// input and metadata snapshot yields an identical plan.
func Preview(input BasketInput, metas map[string]MarketMeta, opts PlanOptions) (*BasketPlan, error) {
	alloc, err := Allocate(input, metas, opts.Policy)
	if err != nil {
		return nil, err
	}

	prepared, levWarnings := Adjust(alloc.Prepared, input.Leverage, input.SlippageBps, metas)

	plan := &BasketPlan{
		Prepared:         prepared,
		Skipped:          alloc.Skipped,
		EstimatedUsedUsd: alloc.EstimatedUsedUsd,
		TotalLongUsd:     decimal.Zero,
		TotalShortUsd:    decimal.Zero,
	}
	plan.Warnings = append(plan.Warnings, alloc.Warnings...)
	plan.Warnings = append(plan.Warnings, levWarnings...)
	for _, s := range alloc.Skipped {
		plan.Warnings = append(plan.Warnings, "skipped "+s.String())
	}

	for _, o := range prepared {
		if o.Side == Buy {
			plan.TotalLongUsd = plan.TotalLongUsd.Add(o.EstUsd)
		} else {
			plan.TotalShortUsd = plan.TotalShortUsd.Add(o.EstUsd)
		}
	}

	assessment := ScorePlan(plan, opts.Limits)
	plan.RiskScore = assessment.Score
	plan.Errors = assessment.Errors
	plan.Warnings = append(plan.Warnings, assessment.Warnings...)
	plan.CanSubmit = assessment.OK && len(plan.Prepared) > 0

	return plan, nil
}

package sizing

import (
	"github.com/shopspring/decimal"

	"tradeengine/src/connectors"
)

// FormatQuantity rounds a raw desired quantity down to the nearest valid lot
// step and enforces the min/max bounds:
//
//   - result is a multiple of StepSize
//   - below MinQty the result is zero (the order cannot be placed)
//   - above MaxQty the result is capped at the largest valid step under MaxQty
func FormatQuantity(raw decimal.Decimal, constraints *connectors.SymbolConstraints) decimal.Decimal {
	if raw.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	step := constraints.StepSize
	if step.LessThanOrEqual(decimal.Zero) {
		// No lot filter on this symbol; only the bounds apply.
		step = decimal.Zero
	}

	qty := raw
	if constraints.MaxQty.IsPositive() && qty.GreaterThan(constraints.MaxQty) {
		qty = constraints.MaxQty
	}

	if step.IsPositive() {
		qty = qty.Div(step).Floor().Mul(step)
	}

	if qty.LessThan(constraints.MinQty) {
		return decimal.Zero
	}

	return qty
}

// WithinStepTolerance reports whether available is within tolSteps lot steps
// below target. Used to absorb rounding drift between a computed sell size
// and the balance actually held.
func WithinStepTolerance(target, available, step decimal.Decimal, tolSteps int64) bool {
	if available.GreaterThanOrEqual(target) {
		return true
	}
	if step.LessThanOrEqual(decimal.Zero) {
		return false
	}

	gap := target.Sub(available)
	return gap.LessThanOrEqual(step.Mul(decimal.NewFromInt(tolSteps)))
}

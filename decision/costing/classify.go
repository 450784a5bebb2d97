package costing

import "process-capex/pkg/equipment"

// FanPressureRiseLimitBar is the largest pressure rise a fan can deliver.
// Anything above it is a compressor.
const FanPressureRiseLimitBar = 0.16

// pressureRise returns outlet minus inlet pressure in bar, preferring the
// explicit delta when both are available.
func pressureRise(in CostInputs) (float64, bool) {
	if in.PressureDeltaBar != nil {
		return *in.PressureDeltaBar, true
	}
	if in.PressureBar != nil && in.InletPressureBar != nil {
		return *in.PressureBar - *in.InletPressureBar, true
	}
	return 0, false
}

// ClassifyPressureChanger decides whether a pressure-changing device is a
// turbine (pressure falls), a fan (rise up to 0.16 bar) or a compressor.
// Without pressure data the declared category stands.
func ClassifyPressureChanger(declared equipment.Category, in CostInputs) equipment.Category {
	rise, ok := pressureRise(in)
	switch {
	case !ok:
		return declared
	case rise < 0:
		return equipment.Turbine
	case rise <= FanPressureRiseLimitBar:
		return equipment.Fan
	default:
		return equipment.Compressor
	}
}

// autoClassifiable reports whether pressure data may reassign the category.
func autoClassifiable(c equipment.Category) bool {
	return c == equipment.Compressor || c == equipment.Fan || c == equipment.Turbine
}

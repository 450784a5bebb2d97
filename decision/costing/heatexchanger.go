package costing

import (
	"math"
	"strings"

	costerrors "process-capex/pkg/errors"
)

// HeatExchangerArea returns the area in m2, either as given or from
// A = |Q| / (U * LMTD).
func HeatExchangerArea(in CostInputs) (float64, error) {
	if in.AreaM2 != nil {
		return *in.AreaM2, nil
	}

	var missing []string
	if in.HeatDutyW == nil {
		missing = append(missing, "heat duty")
	}
	if in.HeatTransferCoefficient == nil {
		missing = append(missing, "heat-transfer coefficient")
	}
	if in.LMTDK == nil {
		missing = append(missing, "LMTD")
	}
	if len(missing) > 0 {
		return 0, costerrors.NewInputValidationError(
			"heat exchanger needs an area or duty, U and LMTD (missing: %s)", strings.Join(missing, ", "))
	}
	return areaFromDuty(*in.HeatDutyW, *in.HeatTransferCoefficient, *in.LMTDK)
}

func areaFromDuty(dutyW, u, lmtd float64) (float64, error) {
	if !(u > 0) || !(lmtd > 0) {
		return 0, costerrors.NewInputValidationError(
			"heat-transfer coefficient and LMTD must be positive (U=%g W/m2K, LMTD=%g K)", u, lmtd)
	}
	// coolers report negative duty
	return math.Abs(dutyW) / (u * lmtd), nil
}

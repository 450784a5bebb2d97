package costing

import (
	"bytes"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"process-capex/pkg/confidence"
	"process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
)

func f64(v float64) *float64 { return &v }

func neutralIndex() CostIndexOptions {
	return CostIndexOptions{BaseYear: 2017, BaseIndex: 567.5, TargetIndex: 567.5}
}

func TestCentrifugalPumpScenario(t *testing.T) {
	ev := NewDefaultEvaluator()

	res, err := ev.Evaluate(Request{
		Name:     "P-101",
		Category: equipment.Pump,
		Subtype:  equipment.PumpCentrifugal,
		Material: equipment.CS,
		Inputs:   CostInputs{PowerKW: f64(50)},
		Index:    neutralIndex(),
	})
	require.NoError(t, err)

	l := math.Log10(50)
	want := math.Pow(10, 3.3892+0.0536*l+0.1538*l*l)

	assert.Equal(t, "P-101", res.Name)
	assert.Equal(t, 1, res.Units)
	assert.Equal(t, want, res.Costs.Purchased)
	assert.Equal(t, res.Costs.Purchased, res.Costs.PurchasedAdj)
	assert.InEpsilon(t, res.Costs.PurchasedAdj*(1.89+1.35*1.6), res.Costs.BareModule, 1e-12)
	assert.Equal(t, res.Costs.BareModule, res.Costs.Installed)
	assert.Equal(t, confidence.Validated, res.Confidence)
	assert.NotEmpty(t, res.Formula)
}

func TestEvaluationIsPure(t *testing.T) {
	ev := NewDefaultEvaluator()
	req := Request{Category: equipment.Fan, Inputs: CostInputs{VolumetricFlowM3S: f64(12), PressureDeltaBar: f64(0.05)}}

	a, err := ev.Evaluate(req)
	require.NoError(t, err)
	b, err := ev.Evaluate(req)
	require.NoError(t, err)
	assert.Equal(t, a.Costs, b.Costs)
}

func TestCapacitySplitConservation(t *testing.T) {
	ev := NewDefaultEvaluator()
	const total = 750.0 // centrifugal pump maximum is 300 kW

	split, err := ev.Evaluate(Request{Category: equipment.Pump, Inputs: CostInputs{PowerKW: f64(total)}})
	require.NoError(t, err)
	require.Equal(t, 3, split.Units)
	assert.Equal(t, total/3, split.UnitSize)

	var sum Costs
	for i := 0; i < 3; i++ {
		one, err := ev.Evaluate(Request{Category: equipment.Pump, Inputs: CostInputs{PowerKW: f64(total / 3)}})
		require.NoError(t, err)
		require.Equal(t, 1, one.Units)
		sum = sum.Add(one.Costs)
	}
	assert.Equal(t, sum, split.Costs)
}

func TestCostIndexNeutralityAndScaling(t *testing.T) {
	ev := NewDefaultEvaluator()

	for _, idx := range []float64{397, 567.5, 816} {
		res, err := ev.Evaluate(Request{
			Category: equipment.Compressor,
			Inputs:   CostInputs{PowerKW: f64(1234.5)},
			Index:    CostIndexOptions{BaseIndex: idx, TargetIndex: idx},
		})
		require.NoError(t, err)
		assert.Equal(t, res.Costs.Purchased, res.Costs.PurchasedAdj, "index %g", idx)
	}

	res, err := ev.Evaluate(Request{
		Category: equipment.Compressor,
		Inputs:   CostInputs{PowerKW: f64(1234.5)},
		Index:    CostIndexOptions{BaseIndex: 567.5, TargetIndex: 797.9},
	})
	require.NoError(t, err)
	assert.InEpsilon(t, res.Costs.Purchased*797.9/567.5, res.Costs.PurchasedAdj, 1e-12)

	unadjusted, err := ev.Evaluate(Request{Category: equipment.Compressor, Inputs: CostInputs{PowerKW: f64(1234.5)}})
	require.NoError(t, err)
	assert.Equal(t, unadjusted.Costs.Purchased, unadjusted.Costs.PurchasedAdj)
	assert.Equal(t, 1.0, unadjusted.IndexRatio)
}

func TestNonPositiveSizeRejected(t *testing.T) {
	ev := NewDefaultEvaluator()
	cases := []Request{
		{Category: equipment.Pump, Inputs: CostInputs{PowerKW: f64(0)}},
		{Category: equipment.Pump, Inputs: CostInputs{PowerKW: f64(-3)}},
		{Category: equipment.Compressor, Inputs: CostInputs{PowerKW: f64(-900)}},
		{Category: equipment.Turbine, Inputs: CostInputs{PowerKW: f64(0)}},
		{Category: equipment.Fan, Inputs: CostInputs{VolumetricFlowM3S: f64(0)}},
		{Category: equipment.HeatExchanger, Inputs: CostInputs{AreaM2: f64(-1)}},
		{Category: equipment.MultiStageCompressor, Inputs: CostInputs{PowerKW: f64(0)}},
	}
	for _, req := range cases {
		t.Run(string(req.Category), func(t *testing.T) {
			req.AllowBelowMinimum = true
			res, err := ev.Evaluate(req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, costerrors.IsInputValidation(err), err.Error())
		})
	}
}

func TestBelowMinimumIsRejectedNotClamped(t *testing.T) {
	ev := NewDefaultEvaluator()

	_, err := ev.Evaluate(Request{Name: "K-1", Category: equipment.Compressor, Inputs: CostInputs{PowerKW: f64(100)}})
	require.Error(t, err)
	assert.True(t, costerrors.IsBelowMinimum(err))
	assert.Contains(t, err.Error(), "K-1")
	assert.Contains(t, err.Error(), "450")

	res, err := ev.Evaluate(Request{
		Category:          equipment.Compressor,
		Inputs:            CostInputs{PowerKW: f64(100)},
		AllowBelowMinimum: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Extrapolated)
	assert.Equal(t, confidence.Extrapolated, res.Confidence)
	assert.NotEmpty(t, res.Warnings)
}

func TestTurbineUsesAbsolutePower(t *testing.T) {
	ev := NewDefaultEvaluator()

	neg, err := ev.Evaluate(Request{Category: equipment.Turbine, Inputs: CostInputs{PowerKW: f64(-120)}})
	require.NoError(t, err)
	pos, err := ev.Evaluate(Request{Category: equipment.Turbine, Inputs: CostInputs{PowerKW: f64(120)}})
	require.NoError(t, err)

	assert.Equal(t, 120.0, neg.Size)
	assert.Equal(t, pos.Costs, neg.Costs)
}

func TestFanRequiresFlow(t *testing.T) {
	ev := NewDefaultEvaluator()

	_, err := ev.Evaluate(Request{Category: equipment.Fan, Inputs: CostInputs{PowerKW: f64(30)}})
	require.Error(t, err)
	assert.True(t, costerrors.IsInputValidation(err))
	assert.Contains(t, err.Error(), "volumetric flow")
}

func TestFanPressureFactorScalesPurchased(t *testing.T) {
	ev := NewDefaultEvaluator()

	low, err := ev.Evaluate(Request{Category: equipment.Fan, Inputs: CostInputs{VolumetricFlowM3S: f64(20), PressureDeltaBar: f64(0.005)}})
	require.NoError(t, err)
	high, err := ev.Evaluate(Request{Category: equipment.Fan, Inputs: CostInputs{VolumetricFlowM3S: f64(20), PressureDeltaBar: f64(0.1)}})
	require.NoError(t, err)

	assert.Equal(t, 1.0, low.Factors.Pressure)
	assert.Greater(t, high.Factors.Pressure, 1.0)
	assert.InEpsilon(t, low.Costs.Purchased*high.Factors.Pressure, high.Costs.Purchased, 1e-12)
	assert.Equal(t, 2.7, high.Factors.BareModule)
}

func TestAutoClassificationScenarios(t *testing.T) {
	ev := NewDefaultEvaluator()

	fan, err := ev.Evaluate(Request{
		Category:     equipment.Compressor,
		AutoClassify: true,
		Inputs: CostInputs{
			InletPressureBar:  f64(1.0),
			PressureBar:       f64(1.1),
			VolumetricFlowM3S: f64(5),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, equipment.Fan, fan.Category)
	assert.Equal(t, equipment.FanCentrifugalRadial, fan.Subtype)

	turbine, err := ev.Evaluate(Request{
		Category:     equipment.Compressor,
		Subtype:      equipment.CompressorAxial,
		AutoClassify: true,
		Inputs:       CostInputs{InletPressureBar: f64(20), PressureBar: f64(3), PowerKW: f64(-800)},
	})
	require.NoError(t, err)
	assert.Equal(t, equipment.Turbine, turbine.Category)
	assert.Equal(t, equipment.TurbineAxial, turbine.Subtype)

	// overridden category is left alone
	comp, err := ev.Evaluate(Request{
		Category: equipment.Compressor,
		Inputs:   CostInputs{InletPressureBar: f64(1.0), PressureBar: f64(1.1), PowerKW: f64(600)},
	})
	require.NoError(t, err)
	assert.Equal(t, equipment.Compressor, comp.Category)
}

func TestFanCompressorBoundary(t *testing.T) {
	ev := NewDefaultEvaluator()

	tests := []struct {
		name     string
		declared equipment.Category
		in       CostInputs
		want     equipment.Category
	}{
		{"rise of 0.16 bar is a fan", equipment.Compressor, CostInputs{PressureDeltaBar: f64(0.16), VolumetricFlowM3S: f64(5)}, equipment.Fan},
		{"rise of 0.1601 bar is a compressor", equipment.Fan, CostInputs{PressureDeltaBar: f64(0.1601), PowerKW: f64(600)}, equipment.Compressor},
		{"declared turbine without pressures", equipment.Turbine, CostInputs{PowerKW: f64(-120)}, equipment.Turbine},
		{"declared fan without pressures", equipment.Fan, CostInputs{VolumetricFlowM3S: f64(12)}, equipment.Fan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ev.Evaluate(Request{Category: tt.declared, AutoClassify: true, Inputs: tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Category)
		})
	}
}

func TestHeatExchangerFromDuty(t *testing.T) {
	ev := NewDefaultEvaluator()

	res, err := ev.Evaluate(Request{
		Category: equipment.HeatExchanger,
		Subtype:  equipment.HXFloatingHead,
		Inputs: CostInputs{
			HeatDutyW:               f64(-2.0e6),
			HeatTransferCoefficient: f64(500),
			LMTDK:                   f64(40),
			ShellMaterial:           equipment.CS,
			TubeMaterial:            equipment.SS,
			PressureBar:             f64(21.01325),
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.Size, 1e-9)
	assert.Equal(t, 1.81, res.Factors.Material)
	assert.Greater(t, res.Factors.Pressure, 1.0)
	assert.True(t, res.Factors.Linear)
	assert.InEpsilon(t, 1.63+1.66*1.81*res.Factors.Pressure, res.Factors.BareModule, 1e-12)

	_, err = ev.Evaluate(Request{Category: equipment.HeatExchanger, Inputs: CostInputs{HeatDutyW: f64(1e5)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heat-transfer coefficient, LMTD")
}

func TestHeatExchangerInvalidPairing(t *testing.T) {
	ev := NewDefaultEvaluator()

	res, err := ev.Evaluate(Request{
		Category: equipment.HeatExchanger,
		Subtype:  equipment.HXDoublePipe,
		Inputs:   CostInputs{AreaM2: f64(5), ShellMaterial: equipment.Cu, TubeMaterial: equipment.SS},
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, costerrors.IsUnsupportedConfiguration(err))
	assert.Contains(t, err.Error(), "valid tubes for Cu shell: Cu")
}

func TestUnknownSubtypeIsNotRegistered(t *testing.T) {
	ev := NewDefaultEvaluator()
	_, err := ev.Evaluate(Request{Category: equipment.Pump, Subtype: "gear", Inputs: CostInputs{PowerKW: f64(10)}})
	assert.Equal(t, costerrors.ErrCodeNotRegistered, costerrors.Code(err))
}

func TestFactorOverridesWin(t *testing.T) {
	ev := NewDefaultEvaluator()
	res, err := ev.Evaluate(Request{
		Category: equipment.Turbine,
		Inputs:   CostInputs{PowerKW: f64(500), BareModuleFactor: f64(4.2)},
	})
	require.NoError(t, err)
	assert.Equal(t, 4.2, res.Factors.BareModule)
	assert.InEpsilon(t, res.Costs.PurchasedAdj*4.2, res.Costs.BareModule, 1e-12)
}

func TestInvalidIndexRejected(t *testing.T) {
	ev := NewDefaultEvaluator()
	_, err := ev.Evaluate(Request{
		Category: equipment.Pump,
		Inputs:   CostInputs{PowerKW: f64(10)},
		Index:    CostIndexOptions{BaseIndex: -1},
	})
	assert.True(t, costerrors.IsInputValidation(err))
}

func TestEvaluatorLogsSteps(t *testing.T) {
	var buf bytes.Buffer
	ev := NewDefaultEvaluator(WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	_, err := ev.Evaluate(Request{Category: equipment.Pump, Inputs: CostInputs{PowerKW: f64(10)}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"category":"pump"`)
}

package costing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"process-capex/pkg/equipment"
)

func TestClassifyPressureChanger(t *testing.T) {
	tests := []struct {
		name     string
		declared equipment.Category
		in       CostInputs
		want     equipment.Category
	}{
		{"small rise is a fan", equipment.Compressor, CostInputs{InletPressureBar: f64(1.0), PressureBar: f64(1.1)}, equipment.Fan},
		{"rise at the fan limit", equipment.Compressor, CostInputs{PressureDeltaBar: f64(0.16)}, equipment.Fan},
		{"rise just over the fan limit", equipment.Fan, CostInputs{PressureDeltaBar: f64(0.1601)}, equipment.Compressor},
		{"large rise is a compressor", equipment.Fan, CostInputs{InletPressureBar: f64(1), PressureBar: f64(5)}, equipment.Compressor},
		{"pressure drop is a turbine", equipment.Compressor, CostInputs{PressureDeltaBar: f64(-4)}, equipment.Turbine},
		{"explicit delta wins", equipment.Compressor, CostInputs{PressureDeltaBar: f64(0.05), InletPressureBar: f64(1), PressureBar: f64(9)}, equipment.Fan},
		{"no pressure data keeps compressor", equipment.Compressor, CostInputs{PowerKW: f64(300)}, equipment.Compressor},
		{"no pressure data keeps turbine", equipment.Turbine, CostInputs{PowerKW: f64(-120)}, equipment.Turbine},
		{"no pressure data keeps fan", equipment.Fan, CostInputs{VolumetricFlowM3S: f64(12)}, equipment.Fan},
		{"outlet only keeps declared", equipment.Turbine, CostInputs{PressureBar: f64(3)}, equipment.Turbine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPressureChanger(tt.declared, tt.in))
		})
	}
}

func TestResolveType(t *testing.T) {
	drop := CostInputs{PressureDeltaBar: f64(-2)}

	c, s := ResolveType(equipment.Compressor, equipment.CompressorAxial, drop, true)
	assert.Equal(t, equipment.Turbine, c)
	assert.Equal(t, equipment.TurbineAxial, s)

	c, s = ResolveType(equipment.Compressor, equipment.CompressorReciprocating, drop, false)
	assert.Equal(t, equipment.Compressor, c)
	assert.Equal(t, equipment.CompressorReciprocating, s)

	// pumps are never reclassified
	c, s = ResolveType(equipment.Pump, "", drop, true)
	assert.Equal(t, equipment.Pump, c)
	assert.Equal(t, equipment.PumpCentrifugal, s)
}

func TestHeatExchangerArea(t *testing.T) {
	a, err := HeatExchangerArea(CostInputs{AreaM2: f64(12)})
	assert.NoError(t, err)
	assert.Equal(t, 12.0, a)

	a, err = HeatExchangerArea(CostInputs{HeatDutyW: f64(-1e6), HeatTransferCoefficient: f64(250), LMTDK: f64(8)})
	assert.NoError(t, err)
	assert.InDelta(t, 500.0, a, 1e-9)

	_, err = HeatExchangerArea(CostInputs{HeatDutyW: f64(1e6), HeatTransferCoefficient: f64(0), LMTDK: f64(8)})
	assert.Error(t, err)
}

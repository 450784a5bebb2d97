package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	costerrors "process-capex/pkg/errors"
)

func TestToKilowatt(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		unit  string
		want  float64
	}{
		{"kilowatt passthrough", 50, "kW", 50},
		{"watt", 2500, "W", 2.5},
		{"megawatt", 1.2, "MW", 1200},
		{"horsepower", 100, "hp", 74.57},
		{"case folded", 3, "KW", 3},
		{"simulator long form", 1, "Gcal/hr", 1162.22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToKilowatt(tt.value, tt.unit)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestUnknownAndMissingUnitsFailLoudly(t *testing.T) {
	_, err := ToKilowatt(10, "furlongs/fortnight")
	require.Error(t, err)
	assert.True(t, costerrors.IsUnitConversion(err))
	assert.ErrorIs(t, err, ErrUnknownUnit)

	_, err = ToCubicMetersPerSecond(10, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingUnit)
	assert.NotErrorIs(t, err, ErrUnknownUnit)
}

func TestPressureGaugeAndAbsolute(t *testing.T) {
	abs, err := ToBarAbsolute(5, "barg")
	require.NoError(t, err)
	assert.InDelta(t, 6.01325, abs, 1e-12)

	abs, err = ToBarAbsolute(100, "kPa")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, abs, 1e-12)

	abs, err = ToBarAbsolute(0, "psig")
	require.NoError(t, err)
	assert.InDelta(t, AtmosphericBar, abs, 1e-12)

	delta, err := ToBarDelta(10, "kPag")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, delta, 1e-12)

	assert.True(t, IsGauge("PSIG"))
	assert.False(t, IsGauge("psia"))
	assert.InDelta(t, 4.0, GaugeBar(5.01325), 1e-12)
}

func TestOtherFamilies(t *testing.T) {
	flow, err := ToCubicMetersPerSecond(3600, "m3/h")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, flow, 1e-12)

	duty, err := ToWatt(2, "MW")
	require.NoError(t, err)
	assert.InDelta(t, 2e6, duty, 1e-6)

	dt, err := ToKelvinDelta(18, "DELTA-F")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, dt, 1e-12)

	u, err := ToWattPerSqmK(1, "Btu/hr-sqft-F")
	require.NoError(t, err)
	assert.InDelta(t, 5.67826, u, 1e-12)

	area, err := ToSquareMeters(100, "sqft")
	require.NoError(t, err)
	assert.InDelta(t, 9.2903, area, 1e-9)

	hp, err := FromKilowatt(74.57, "hp")
	require.NoError(t, err)
	assert.InDelta(t, 100, hp, 1e-9)
}

func TestConvertDispatch(t *testing.T) {
	v, err := Convert(FamilyPressure, 1, "atm")
	require.NoError(t, err)
	assert.InDelta(t, AtmosphericBar, v, 1e-12)

	_, err = Convert(Family("viscosity"), 1, "cP")
	assert.True(t, costerrors.IsUnitConversion(err))
}

func TestSymbolsSorted(t *testing.T) {
	syms := Symbols(FamilyPressure)
	assert.Contains(t, syms, "barg")
	assert.Contains(t, syms, "psia")
	assert.IsIncreasing(t, syms)
}

package factors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eq "process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
)

func ptr(v float64) *float64 { return &v }

func TestMaterialFactor(t *testing.T) {
	r := NewResolver()

	fm, err := r.MaterialFactor(eq.Pump, eq.PumpCentrifugal, eq.CS)
	require.NoError(t, err)
	assert.Equal(t, 1.6, fm)

	fm, err = r.MaterialFactor(eq.Pump, eq.PumpCentrifugal, "")
	require.NoError(t, err)
	assert.Equal(t, 1.6, fm, "empty material means CS")

	_, err = r.MaterialFactor(eq.Pump, eq.PumpCentrifugal, eq.Ti)
	require.Error(t, err)
	assert.True(t, costerrors.IsUnsupportedConfiguration(err))
	assert.Contains(t, err.Error(), "CS, Cl, Ni, SS")

	for _, c := range []eq.Category{eq.Compressor, eq.Turbine, eq.Fan} {
		fm, err = r.MaterialFactor(c, eq.DefaultSubtype(c), eq.SS)
		require.NoError(t, err)
		assert.Equal(t, 1.0, fm, "%s embeds material in F_BM", c)
	}
}

func TestHeatExchangerMaterialPairing(t *testing.T) {
	r := NewResolver()

	fm, err := r.HeatExchangerMaterialFactor(eq.HXFixedTube, eq.CS, eq.SS)
	require.NoError(t, err)
	assert.Equal(t, 1.81, fm)

	_, err = r.HeatExchangerMaterialFactor(eq.HXDoublePipe, eq.Cu, eq.SS)
	require.Error(t, err)
	assert.True(t, costerrors.IsUnsupportedConfiguration(err))
	assert.Contains(t, err.Error(), "valid tubes for Cu shell: Cu")

	_, err = r.HeatExchangerMaterialFactor(eq.HXFloatingHead, eq.Al, eq.Al)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid shells")
}

func TestHeatExchangerSingleSidedTables(t *testing.T) {
	r := NewResolver()

	fm, err := r.HeatExchangerMaterialFactor(eq.HXTeflonTube, eq.Ni, eq.CS)
	require.NoError(t, err)
	assert.Equal(t, 1.60, fm, "teflon tube is keyed by shell")

	fm, err = r.HeatExchangerMaterialFactor(eq.HXAirCooler, eq.CS, eq.Al)
	require.NoError(t, err)
	assert.Equal(t, 1.42, fm, "air cooler is keyed by tube")

	_, err = r.HeatExchangerMaterialFactor(eq.HXAirCooler, eq.CS, eq.Ti)
	assert.True(t, costerrors.IsUnsupportedConfiguration(err))

	fm, err = r.HeatExchangerMaterialFactor(eq.HXFlatPlate, eq.SS, eq.SS)
	require.NoError(t, err)
	assert.Equal(t, 2.45, fm)
	_, err = r.HeatExchangerMaterialFactor(eq.HXFlatPlate, eq.CS, eq.SS)
	assert.Error(t, err, "plates are single material")
}

func TestPressureFactor(t *testing.T) {
	r := NewResolver()

	assert.Equal(t, 1.0, r.PressureFactor(eq.Pump, eq.PumpCentrifugal, nil))
	assert.Equal(t, 1.0, r.PressureFactor(eq.Pump, eq.PumpCentrifugal, ptr(5)))
	assert.Equal(t, 1.0, r.PressureFactor(eq.Compressor, eq.CompressorCentrifugal, ptr(50)))
	assert.Equal(t, 1.0, r.PressureFactor(eq.Pump, eq.PumpCentrifugal, ptr(-0.5)))

	l := math.Log10(50)
	want := math.Pow(10, -0.3935+0.3957*l-0.00226*l*l)
	assert.InDelta(t, want, r.PressureFactor(eq.Pump, eq.PumpCentrifugal, ptr(50)), 1e-12)

	atMax := r.PressureFactor(eq.Pump, eq.PumpCentrifugal, ptr(100))
	assert.Equal(t, atMax, r.PressureFactor(eq.Pump, eq.PumpCentrifugal, ptr(250)), "clamped to last segment")

	fan := r.PressureFactor(eq.Fan, eq.FanCentrifugalRadial, ptr(10))
	l = 1.0
	assert.InDelta(t, math.Pow(10, 0.20899*l-0.0328*l*l), fan, 1e-12)
	assert.Equal(t,
		r.PressureFactor(eq.Fan, eq.FanAxialVaneless, ptr(4)),
		r.PressureFactor(eq.Fan, eq.FanAxialVaneless, ptr(12)))
}

func TestPressureModelNeverBelowOne(t *testing.T) {
	for k, m := range pressureModels {
		for _, p := range []float64{0.01, 1, 5, 10, 39.9, 40, 99, 150, 1000} {
			assert.GreaterOrEqual(t, m.Factor(p), 1.0, "%s/%s at %g", k.category, k.subtype, p)
		}
	}
}

func TestBareModuleFactor(t *testing.T) {
	r := NewResolver()

	bm, err := r.BareModuleFactor(eq.Pump, eq.PumpCentrifugal, eq.CS, 1.6)
	require.NoError(t, err)
	assert.InDelta(t, 1.89+1.35*1.6, bm, 1e-12)

	bm, err = r.BareModuleFactor(eq.Compressor, eq.CompressorAxial, eq.SS, 1)
	require.NoError(t, err)
	assert.Equal(t, 8.0, bm)

	_, err = r.BareModuleFactor(eq.Category("reactor"), "jacketed", eq.CS, 1)
	assert.True(t, costerrors.IsUnsupportedConfiguration(err))
}

func TestBareModuleFallsBackToCS(t *testing.T) {
	r := NewResolver()
	for k, tbl := range fixedBareModule {
		bm, err := r.BareModuleFactor(k.category, k.subtype, eq.Ti, 1)
		require.NoError(t, err)
		assert.Equal(t, tbl[eq.CS], bm, "%s/%s", k.category, k.subtype)
	}

	f, err := r.Resolve(Query{Category: eq.Turbine, Subtype: eq.TurbineRadial, Material: eq.Cu})
	require.NoError(t, err)
	assert.True(t, f.BareModuleFallback)
	assert.Equal(t, 3.5, f.BareModule)
}

func TestResolve(t *testing.T) {
	r := NewResolver()

	f, err := r.Resolve(Query{Category: eq.Pump, Subtype: eq.PumpCentrifugal, Material: eq.SS, Pressure: ptr(50)})
	require.NoError(t, err)
	assert.True(t, f.Linear)
	assert.Equal(t, 2.3, f.Material)
	assert.Greater(t, f.Pressure, 1.0)
	assert.InDelta(t, 1.89+1.35*2.3*f.Pressure, f.BareModule, 1e-12)

	f, err = r.Resolve(Query{
		Category:         eq.HeatExchanger,
		Subtype:          eq.HXFixedTube,
		Material:         eq.CS,
		TubeMaterial:     eq.Ti,
		PressureOverride: ptr(1.2),
	})
	require.NoError(t, err)
	assert.Equal(t, 4.63, f.Material)
	assert.Equal(t, 1.2, f.Pressure)

	f, err = r.Resolve(Query{
		Category:           eq.Fan,
		Subtype:            eq.FanCentrifugalRadial,
		MaterialOverride:   ptr(1.1),
		BareModuleOverride: ptr(3.0),
	})
	require.NoError(t, err)
	assert.False(t, f.Linear)
	assert.Equal(t, 1.1, f.Material)
	assert.Equal(t, 3.0, f.BareModule)

	_, err = r.Resolve(Query{Category: eq.HeatExchanger, Subtype: eq.HXDoublePipe, ShellMaterial: eq.Cu, TubeMaterial: eq.SS})
	assert.True(t, costerrors.IsUnsupportedConfiguration(err))
}

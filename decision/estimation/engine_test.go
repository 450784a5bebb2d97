package estimation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"process-capex/decision/costing"
	"process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
)

func f64(v float64) *float64 { return &v }

func sampleRequest() EstimationRequest {
	return EstimationRequest{
		Devices: NewDeviceList(map[string]equipment.Category{
			"P-101": equipment.Pump,
			"K-201": equipment.Compressor,
			"B-301": equipment.Compressor,
			"K-100": equipment.Compressor,
			"E-401": equipment.HeatExchanger,
		}),
		Inputs: map[string]costing.CostInputs{
			"P-101": {PowerKW: f64(50)},
			"K-201": {PowerKW: f64(1200), InletPressureBar: f64(1), PressureBar: f64(4)},
			"B-301": {VolumetricFlowM3S: f64(8), InletPressureBar: f64(1), PressureBar: f64(1.1)},
			"K-100": {PowerKW: f64(40), InletPressureBar: f64(1), PressureBar: f64(3)},
			"E-401": {AreaM2: f64(5), ShellMaterial: equipment.Cu, TubeMaterial: equipment.SS},
		},
		SubtypeOverrides: map[string]equipment.Subtype{"E-401": equipment.HXDoublePipe},
	}
}

func TestNewDeviceListIsOrdered(t *testing.T) {
	devs := NewDeviceList(map[string]equipment.Category{"b": equipment.Fan, "a": equipment.Pump, "c": equipment.Turbine})
	require.Len(t, devs, 3)
	assert.Equal(t, "a", devs[0].Name)
	assert.Equal(t, "b", devs[1].Name)
	assert.Equal(t, "c", devs[2].Name)
}

func TestEstimatePartialFailure(t *testing.T) {
	var logs bytes.Buffer
	engine := NewEngine(costing.NewDefaultEvaluator(), WithLogger(zerolog.New(&logs)))

	res, err := engine.Estimate(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 5, res.DevicesProcessed)
	assert.Equal(t, 3, res.DevicesEstimated)
	assert.Equal(t, 2, res.DevicesFailed)
	assert.True(t, res.IsIncomplete)

	names := make([]string, 0, len(res.Devices))
	for _, d := range res.Devices {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"B-301", "K-201", "P-101"}, names)
	assert.Equal(t, equipment.Fan, res.Devices[0].Category)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, "E-401", res.Errors[0].Device)
	assert.Equal(t, costerrors.ErrCodeUnsupportedConfiguration, res.Errors[0].Code)
	assert.Contains(t, res.Errors[0].Message, "valid tubes for Cu shell")

	assert.Equal(t, "K-100", res.Errors[1].Device)
	assert.Equal(t, "compressor (under limit)", res.Errors[1].Type)
	assert.True(t, res.Errors[1].Recoverable)

	assert.Contains(t, logs.String(), `"device":"K-100"`)
	assert.Contains(t, logs.String(), `"code":"BELOW_MINIMUM"`)
}

func TestEstimateKeepsDeclaredCategoryWithoutPressures(t *testing.T) {
	engine := NewEngine(costing.NewDefaultEvaluator())

	tests := []struct {
		name     string
		category equipment.Category
		inputs   costing.CostInputs
		size     float64
	}{
		{"turbine with negative power", equipment.Turbine, costing.CostInputs{PowerKW: f64(-120)}, 120},
		{"fan with flow only", equipment.Fan, costing.CostInputs{VolumetricFlowM3S: f64(12)}, 12},
		{"compressor with power only", equipment.Compressor, costing.CostInputs{PowerKW: f64(600)}, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Estimate(context.Background(), EstimationRequest{
				Devices: []Device{{Name: "X-101", Category: tt.category}},
				Inputs:  map[string]costing.CostInputs{"X-101": tt.inputs},
			})
			require.NoError(t, err)
			require.Empty(t, res.Errors)
			require.Len(t, res.Devices, 1)
			assert.Equal(t, tt.category, res.Devices[0].Category)
			assert.Equal(t, tt.size, res.Devices[0].Size)
		})
	}
}

func TestEstimateTotalsMatchDevices(t *testing.T) {
	engine := NewEngine(costing.NewDefaultEvaluator())
	res, err := engine.Estimate(context.Background(), sampleRequest())
	require.NoError(t, err)

	sum := decimal.Zero
	for _, d := range res.Devices {
		sum = sum.Add(decimal.NewFromFloat(d.Costs.BareModule))
	}
	assert.True(t, sum.Equal(res.Totals.BareModule), "%s != %s", sum, res.Totals.BareModule)
	assert.Equal(t, 3, res.Totals.Devices)

	assert.Equal(t, []equipment.Category{equipment.Pump, equipment.Compressor, equipment.Fan}, res.Categories())
	assert.Equal(t, 1, res.ByCategory[equipment.Fan].Devices)
	assert.InDelta(t, 0.9, res.Confidence, 1e-12)
	assert.InDelta(t, 0.9, res.CostConfidence, 1e-12)
}

func TestEstimateIsReproducible(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	engine := NewEngine(costing.NewDefaultEvaluator(), WithClock(func() time.Time { return fixed }))

	a, err := engine.Estimate(context.Background(), sampleRequest())
	require.NoError(t, err)
	b, err := engine.Estimate(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.True(t, a.Totals.Purchased.Equal(b.Totals.Purchased))
	assert.Equal(t, fixed, a.AuditTrail.EstimatedAt)
	assert.Equal(t, 1, a.AuditTrail.Overrides)
}

func TestOverrides(t *testing.T) {
	engine := NewEngine(costing.NewDefaultEvaluator())
	req := sampleRequest()
	req.TypeOverrides = map[string]equipment.Category{"B-301": equipment.Compressor}
	req.Inputs["B-301"] = costing.CostInputs{PowerKW: f64(700), InletPressureBar: f64(1), PressureBar: f64(1.1)}
	req.MaterialOverrides = map[string]equipment.Material{"P-101": equipment.SS}
	req.AllowBelowMinimum = true

	res, err := engine.Estimate(context.Background(), req)
	require.NoError(t, err)

	byName := map[string]costing.CostResult{}
	for _, d := range res.Devices {
		byName[d.Name] = d
	}
	assert.Equal(t, equipment.Compressor, byName["B-301"].Category)
	assert.Equal(t, equipment.SS, byName["P-101"].Material)
	assert.Equal(t, 2.3, byName["P-101"].Factors.Material)
	assert.True(t, byName["K-100"].Extrapolated)
	assert.Equal(t, 1, res.Extrapolated)
}

func TestEstimateRejectsBadIndex(t *testing.T) {
	engine := NewEngine(costing.NewDefaultEvaluator())
	req := sampleRequest()
	req.Index = costing.CostIndexOptions{BaseIndex: 500, TargetIndex: -1}

	_, err := engine.Estimate(context.Background(), req)
	assert.True(t, costerrors.IsInputValidation(err))
}

func TestEstimateHonorsCancellation(t *testing.T) {
	engine := NewEngine(costing.NewDefaultEvaluator())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Estimate(ctx, sampleRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTopDevices(t *testing.T) {
	engine := NewEngine(costing.NewDefaultEvaluator())
	res, err := engine.Estimate(context.Background(), sampleRequest())
	require.NoError(t, err)

	top := res.TopDevices(2)
	require.Len(t, top, 2)
	assert.GreaterOrEqual(t, top[0].Costs.BareModule, top[1].Costs.BareModule)
	assert.Len(t, res.TopDevices(-1), 3)
}

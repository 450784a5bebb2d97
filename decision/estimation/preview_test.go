package estimation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"process-capex/decision/costing"
	"process-capex/pkg/equipment"
)

func TestPreview(t *testing.T) {
	engine := NewEngine(costing.NewDefaultEvaluator())
	req := sampleRequest()
	req.TypeOverrides = map[string]equipment.Category{"K-201": equipment.MultiStageCompressor}
	req.DefaultMaterial = equipment.SS
	req.Devices = append(req.Devices, Device{Name: "X-1", Category: equipment.Pump})

	entries := engine.Preview(req)
	require.Len(t, entries, 6)

	byName := map[string]PreviewEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	fan := byName["B-301"]
	assert.Equal(t, equipment.Compressor, fan.Declared)
	assert.Equal(t, equipment.Fan, fan.Category)
	assert.Equal(t, equipment.FanCentrifugalRadial, fan.Subtype)
	assert.True(t, fan.Reclassified)

	ms := byName["K-201"]
	assert.Equal(t, equipment.MultiStageCompressor, ms.Category)
	assert.True(t, ms.Overridden)
	assert.False(t, ms.Reclassified)

	assert.Equal(t, equipment.HXDoublePipe, byName["E-401"].Subtype)
	assert.Equal(t, equipment.SS, byName["P-101"].Material)
	assert.False(t, byName["X-1"].HasInputs)
}

func TestTypeOptions(t *testing.T) {
	engine := NewEngine(costing.NewDefaultEvaluator())

	opts := engine.TypeOptions(equipment.Fan)
	require.Len(t, opts, 4)
	assert.Equal(t, equipment.Compressor, opts[0].Category)
	assert.Contains(t, opts[0].Subtypes, equipment.CompressorRotary)
	assert.Equal(t, []equipment.Subtype{equipment.CompressorCentrifugal}, opts[1].Subtypes)

	hx := engine.TypeOptions(equipment.HeatExchanger)
	require.Len(t, hx, 1)
	assert.Len(t, hx[0].Subtypes, 12)
}

package equipment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	costerrors "process-capex/pkg/errors"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"pump", Pump},
		{"Compr", Compressor},
		{"MCompr", MultiStageCompressor},
		{"multi-stage compressor", MultiStageCompressor},
		{" Heat Exchanger ", HeatExchanger},
		{"blower", Fan},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCategory("distillation column")
	assert.True(t, costerrors.IsUnsupportedConfiguration(err))
}

func TestParseMaterial(t *testing.T) {
	m, err := ParseMaterial("ss")
	require.NoError(t, err)
	assert.Equal(t, SS, m)

	m, err = ParseMaterial("Titanium")
	require.NoError(t, err)
	assert.Equal(t, Ti, m)

	_, err = ParseMaterial("unobtainium")
	assert.Error(t, err)
}

func TestDefaultSubtype(t *testing.T) {
	assert.Equal(t, PumpCentrifugal, DefaultSubtype(Pump))
	assert.Equal(t, FanCentrifugalRadial, DefaultSubtype(Fan))
	assert.Equal(t, TurbineAxial, DefaultSubtype(Turbine))
	assert.Equal(t, CompressorCentrifugal, DefaultSubtype(MultiStageCompressor))
	assert.Equal(t, Subtype(""), DefaultSubtype(Category("reactor")))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "heat exchanger", HeatExchanger.Label())
}

package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	assert.Equal(t, 0.0, Aggregate(nil))
	assert.InDelta(t, Validated, Aggregate([]float64{Validated, Validated}), 1e-12)
	assert.InDelta(t, 0.6, Aggregate([]float64{0.9, 0.4}), 1e-12)
	assert.Equal(t, 0.0, Aggregate([]float64{0.9, 0}))
}

func TestCostWeighted(t *testing.T) {
	assert.InDelta(t, 0.8, CostWeighted([]float64{0.9, 0.4}, []float64{80, 20}), 1e-12)
	assert.Equal(t, 0.0, CostWeighted([]float64{0.9}, []float64{1, 2}))
	assert.Equal(t, 0.0, CostWeighted([]float64{0.9}, []float64{0}))
}

func TestDecayAndClamp(t *testing.T) {
	assert.Equal(t, 0.9, Decay(0.9, 0))
	assert.InDelta(t, 0.729, Decay(0.9, 2), 1e-12)
	assert.Equal(t, 1.0, Clamp(1.3))
	assert.Equal(t, 0.0, Clamp(-0.1))
}

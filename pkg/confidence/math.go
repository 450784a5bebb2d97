// Package confidence scores how far a cost figure can be trusted.
package confidence

import "math"

// Scores attached to cost results and classifications.
const (
	// Validated is a published correlation evaluated inside its size range.
	Validated = 0.9
	// Extrapolated is a correlation evaluated below its validated minimum.
	Extrapolated = 0.6
	// Provisional is a placeholder heuristic with no published basis.
	Provisional = 0.4
	// Unknown is used for blocks whose category could not be recognized.
	Unknown = 0.3
)

// Aggregate combines scores with a geometric mean so one weak figure
// pulls the whole batch down.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	logSum := 0.0
	for _, s := range scores {
		if s <= 0 {
			return 0
		}
		logSum += math.Log(Clamp(s))
	}

	return math.Exp(logSum / float64(len(scores)))
}

// CostWeighted averages scores weighted by the cost each one qualifies.
func CostWeighted(scores, costs []float64) float64 {
	if len(scores) == 0 || len(scores) != len(costs) {
		return 0
	}

	var sum, weightSum float64
	for i, s := range scores {
		sum += s * costs[i]
		weightSum += costs[i]
	}

	if weightSum == 0 {
		return 0
	}
	return Clamp(sum / weightSum)
}

// Decay lowers a score by 10% per compounding uncertainty.
func Decay(base float64, factors int) float64 {
	if factors <= 0 {
		return base
	}
	return base * math.Pow(0.9, float64(factors))
}

// Clamp keeps a score in [0, 1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

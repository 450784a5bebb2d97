package costing

import (
	"fmt"
	"sort"

	costerrors "process-capex/pkg/errors"
)

// Default reference point of the correlation table.
const (
	DefaultBaseYear  = 2017
	DefaultBaseIndex = 567.5
)

// CEPCIByYear holds annual Chemical Engineering Plant Cost Index averages.
var CEPCIByYear = map[int]float64{
	2001: 397.0,
	2005: 468.2,
	2006: 499.6,
	2007: 525.4,
	2008: 575.4,
	2009: 521.9,
	2010: 550.8,
	2011: 585.7,
	2012: 584.6,
	2013: 567.3,
	2014: 576.1,
	2015: 556.8,
	2016: 541.7,
	2017: 567.5,
	2018: 603.1,
	2019: 607.5,
	2020: 596.2,
	2021: 708.8,
	2022: 816.0,
	2023: 797.9,
	2024: 799.0,
}

// CostIndexOptions scales correlation costs from the base index to a target
// index. A zero TargetIndex leaves costs at the base index.
type CostIndexOptions struct {
	BaseYear    int     `json:"base_year"`
	BaseIndex   float64 `json:"base_index"`
	TargetYear  int     `json:"target_year,omitempty"`
	TargetIndex float64 `json:"target_index,omitempty"`
}

// DefaultIndexOptions reports at the correlation base without adjustment.
func DefaultIndexOptions() CostIndexOptions {
	return CostIndexOptions{BaseYear: DefaultBaseYear, BaseIndex: DefaultBaseIndex}
}

// IndexForYear looks up the CEPCI of a year.
func IndexForYear(year int) (float64, error) {
	idx, ok := CEPCIByYear[year]
	if !ok {
		return 0, costerrors.NewInputValidationError("no CEPCI value for %d (available: %s)", year, availableYears())
	}
	return idx, nil
}

// IndexOptionsForYears builds options from two table years. A zero target
// year means no adjustment.
func IndexOptionsForYears(baseYear, targetYear int) (CostIndexOptions, error) {
	base, err := IndexForYear(baseYear)
	if err != nil {
		return CostIndexOptions{}, err
	}
	opts := CostIndexOptions{BaseYear: baseYear, BaseIndex: base}
	if targetYear == 0 {
		return opts, nil
	}
	target, err := IndexForYear(targetYear)
	if err != nil {
		return CostIndexOptions{}, err
	}
	opts.TargetYear, opts.TargetIndex = targetYear, target
	return opts, nil
}

// Normalize fills the default base when none is set.
func (o CostIndexOptions) Normalize() CostIndexOptions {
	if o.BaseIndex == 0 {
		o.BaseIndex = DefaultBaseIndex
		if o.BaseYear == 0 {
			o.BaseYear = DefaultBaseYear
		}
	}
	return o
}

// Validate rejects negative or unusable indices.
func (o CostIndexOptions) Validate() error {
	if o.BaseIndex <= 0 {
		return costerrors.NewInputValidationError("base cost index must be positive, got %g", o.BaseIndex)
	}
	if o.TargetIndex < 0 {
		return costerrors.NewInputValidationError("target cost index must not be negative, got %g", o.TargetIndex)
	}
	return nil
}

// Ratio is target/base, or 1 when no target is set.
func (o CostIndexOptions) Ratio() float64 {
	if o.TargetIndex == 0 || o.TargetIndex == o.BaseIndex {
		return 1
	}
	return o.TargetIndex / o.BaseIndex
}

// Adjust scales a base-index cost to the target index. Equal indices return
// cost unchanged.
func (o CostIndexOptions) Adjust(cost float64) float64 {
	if o.TargetIndex == 0 || o.TargetIndex == o.BaseIndex {
		return cost
	}
	return cost * o.TargetIndex / o.BaseIndex
}

func availableYears() string {
	years := make([]int, 0, len(CEPCIByYear))
	for y := range CEPCIByYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return fmt.Sprintf("%d-%d", years[0], years[len(years)-1])
}

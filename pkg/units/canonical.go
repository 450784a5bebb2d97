// Package units converts simulator quantities into the canonical units used by
// the cost correlations: kW, m3/s, W, K, bar (absolute), W/m2K and m2.
package units

import (
	"errors"
	"sort"
	"strings"

	costerrors "process-capex/pkg/errors"
)

// Family identifies a physical quantity with its own unit table.
type Family string

const (
	FamilyPower        Family = "power"
	FamilyVolumeFlow   Family = "volumetric flow"
	FamilyHeatDuty     Family = "heat duty"
	FamilyDeltaT       Family = "temperature difference"
	FamilyPressure     Family = "pressure"
	FamilyHeatTransfer Family = "heat-transfer coefficient"
	FamilyArea         Family = "area"
)

// AtmosphericBar is the reference added to gauge readings.
const AtmosphericBar = 1.01325

var (
	// ErrUnknownUnit means the symbol is not in the family's table.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrMissingUnit means no symbol was supplied; callers that want to assume
	// the canonical unit must do so explicitly.
	ErrMissingUnit = errors.New("missing unit")
)

// Factors to W.
var powerToWatt = newTable(FamilyPower, map[string]float64{
	"Watt":       1,
	"W":          1,
	"kW":         1e3,
	"MW":         1e6,
	"GW":         1e9,
	"hp":         745.7,
	"Btu/hr":     0.293071,
	"cal/sec":    4.184,
	"ft-lbf/sec": 1.35582,
	"MJ/hr":      277.778,
	"kcal/hr":    1.16222,
	"Gcal/hr":    1162220,
	"MMBtu/hr":   293071,
	"MBtu/hr":    293.071,
})

// Factors to m3/s.
var flowToCubicMeterPerSec = newTable(FamilyVolumeFlow, map[string]float64{
	"cum/sec":  1,
	"m3/s":     1,
	"m^3/s":    1,
	"cum/hr":   1.0 / 3600,
	"cum/h":    1.0 / 3600,
	"m3/h":     1.0 / 3600,
	"Nm3/h":    1.0 / 3600,
	"cum/min":  1.0 / 60,
	"cum/day":  1.0 / 86400,
	"l/sec":    1e-3,
	"L/s":      1e-3,
	"l/min":    1e-3 / 60,
	"l/hr":     1e-3 / 3600,
	"cuft/sec": 0.0283168,
	"ft3/s":    0.0283168,
	"cuft/min": 0.000471947,
	"ft3/min":  0.000471947,
	"cfm":      0.000471947,
	"cuft/hr":  7.86579e-6,
	"gal/min":  6.30902e-5,
	"gal/hr":   1.0515e-6,
	"bbl/day":  1.84013e-6,
	"bbl/hr":   4.41631e-5,
})

// Factors to W.
var dutyToWatt = newTable(FamilyHeatDuty, map[string]float64{
	"Watt":      1,
	"W":         1,
	"J/sec":     1,
	"kW":        1e3,
	"kJ/sec":    1e3,
	"MW":        1e6,
	"GW":        1e9,
	"Btu/hr":    0.293071,
	"MBtu/hr":   293.071,
	"MMBtu/hr":  293071,
	"cal/sec":   4.184,
	"kcal/hr":   1.16222,
	"Mcal/hr":   1162.22,
	"Gcal/hr":   1162220,
	"MMkcal/hr": 1162220,
	"kJ/hr":     0.277778,
	"MJ/hr":     277.778,
	"GJ/hr":     277778,
})

// Factors to K. Differences only, so no offsets.
var deltaTToKelvin = newTable(FamilyDeltaT, map[string]float64{
	"K":       1,
	"Kelvin":  1,
	"delta-K": 1,
	"C":       1,
	"degC":    1,
	"DELTA-C": 1,
	"F":       5.0 / 9,
	"degF":    5.0 / 9,
	"DELTA-F": 5.0 / 9,
	"R":       5.0 / 9,
	"degR":    5.0 / 9,
	"DELTA-R": 5.0 / 9,
})

// Factors to bar for absolute units.
var pressureToBar = newTable(FamilyPressure, map[string]float64{
	"bar":   1,
	"bara":  1,
	"Pa":    1e-5,
	"N/sqm": 1e-5,
	"kPa":   1e-2,
	"MPa":   10,
	"atm":   AtmosphericBar,
	"psi":   0.0689476,
	"psia":  0.0689476,
	"mbar":  1e-3,
	"torr":  0.00133322,
	"mmHg":  0.00133322,
})

// Factors to bar for gauge units; the atmospheric reference is added after.
var gaugePressureToBar = newTable(FamilyPressure, map[string]float64{
	"barg":  1,
	"psig":  0.0689476,
	"atmg":  AtmosphericBar,
	"Pag":   1e-5,
	"kPag":  1e-2,
	"MPag":  10,
	"mbarg": 1e-3,
})

// Factors to W/m2K.
var heatTransferToSI = newTable(FamilyHeatTransfer, map[string]float64{
	"Watt/sqm-K":    1,
	"W/m2K":         1,
	"kW/sqm-K":      1000,
	"Btu/hr-sqft-F": 5.67826,
	"kcal/hr-sqm-K": 1.16222,
})

// Factors to m2.
var areaToSqm = newTable(FamilyArea, map[string]float64{
	"sqm":  1,
	"m2":   1,
	"sqft": 0.092903,
	"sqcm": 1e-4,
	"sqin": 0.00064516,
	"sqmm": 1e-6,
})

type table struct {
	family Family
	exact  map[string]float64
	folded map[string]float64
}

// newTable indexes the symbols case-insensitively as well, so "KW" resolves like "kW".
func newTable(family Family, m map[string]float64) *table {
	t := &table{family: family, exact: m, folded: make(map[string]float64, len(m))}
	for k, v := range m {
		t.folded[strings.ToLower(k)] = v
	}
	return t
}

func (t *table) has(unit string) bool {
	_, ok := t.folded[strings.ToLower(strings.TrimSpace(unit))]
	return ok
}

func (t *table) factor(unit string) (float64, error) {
	u := strings.TrimSpace(unit)
	if u == "" {
		return 0, costerrors.NewUnitConversionError(string(t.family), unit, ErrMissingUnit)
	}
	if f, ok := t.exact[u]; ok {
		return f, nil
	}
	if f, ok := t.folded[strings.ToLower(u)]; ok {
		return f, nil
	}
	return 0, costerrors.NewUnitConversionError(string(t.family), unit, ErrUnknownUnit)
}

// ToKilowatt converts a power reading to kW.
func ToKilowatt(value float64, unit string) (float64, error) {
	f, err := powerToWatt.factor(unit)
	if err != nil {
		return 0, err
	}
	return value * f / 1e3, nil
}

// FromKilowatt expresses a kW value in another power unit.
func FromKilowatt(kw float64, unit string) (float64, error) {
	f, err := powerToWatt.factor(unit)
	if err != nil {
		return 0, err
	}
	return kw * 1e3 / f, nil
}

// ToCubicMetersPerSecond converts a volumetric flow to m3/s.
func ToCubicMetersPerSecond(value float64, unit string) (float64, error) {
	f, err := flowToCubicMeterPerSec.factor(unit)
	if err != nil {
		return 0, err
	}
	return value * f, nil
}

// ToWatt converts a heat duty to W.
func ToWatt(value float64, unit string) (float64, error) {
	f, err := dutyToWatt.factor(unit)
	if err != nil {
		return 0, err
	}
	return value * f, nil
}

// ToKelvinDelta converts a temperature difference to K.
func ToKelvinDelta(value float64, unit string) (float64, error) {
	f, err := deltaTToKelvin.factor(unit)
	if err != nil {
		return 0, err
	}
	return value * f, nil
}

// ToBarAbsolute converts a pressure to absolute bar. Gauge units get the
// atmospheric reference added.
func ToBarAbsolute(value float64, unit string) (float64, error) {
	if IsGauge(unit) {
		f, _ := gaugePressureToBar.factor(unit)
		return value*f + AtmosphericBar, nil
	}
	f, err := pressureToBar.factor(unit)
	if err != nil {
		return 0, err
	}
	return value * f, nil
}

// ToBarDelta converts a pressure difference to bar. Gauge and absolute
// symbols are equivalent for differences.
func ToBarDelta(value float64, unit string) (float64, error) {
	if IsGauge(unit) {
		f, _ := gaugePressureToBar.factor(unit)
		return value * f, nil
	}
	f, err := pressureToBar.factor(unit)
	if err != nil {
		return 0, err
	}
	return value * f, nil
}

// IsGauge reports whether unit is a gauge pressure symbol.
func IsGauge(unit string) bool {
	return gaugePressureToBar.has(unit)
}

// GaugeBar converts absolute bar to gauge bar.
func GaugeBar(absolute float64) float64 {
	return absolute - AtmosphericBar
}

// ToWattPerSqmK converts a heat-transfer coefficient to W/m2K.
func ToWattPerSqmK(value float64, unit string) (float64, error) {
	f, err := heatTransferToSI.factor(unit)
	if err != nil {
		return 0, err
	}
	return value * f, nil
}

// ToSquareMeters converts an area to m2.
func ToSquareMeters(value float64, unit string) (float64, error) {
	f, err := areaToSqm.factor(unit)
	if err != nil {
		return 0, err
	}
	return value * f, nil
}

// Convert dispatches to the family converter. Pressure converts to absolute bar.
func Convert(family Family, value float64, unit string) (float64, error) {
	switch family {
	case FamilyPower:
		return ToKilowatt(value, unit)
	case FamilyVolumeFlow:
		return ToCubicMetersPerSecond(value, unit)
	case FamilyHeatDuty:
		return ToWatt(value, unit)
	case FamilyDeltaT:
		return ToKelvinDelta(value, unit)
	case FamilyPressure:
		return ToBarAbsolute(value, unit)
	case FamilyHeatTransfer:
		return ToWattPerSqmK(value, unit)
	case FamilyArea:
		return ToSquareMeters(value, unit)
	}
	return 0, costerrors.NewUnitConversionError(string(family), unit, ErrUnknownUnit)
}

// Symbols lists the recognized unit symbols of a family, sorted.
func Symbols(family Family) []string {
	var tables []*table
	switch family {
	case FamilyPower:
		tables = append(tables, powerToWatt)
	case FamilyVolumeFlow:
		tables = append(tables, flowToCubicMeterPerSec)
	case FamilyHeatDuty:
		tables = append(tables, dutyToWatt)
	case FamilyDeltaT:
		tables = append(tables, deltaTToKelvin)
	case FamilyPressure:
		tables = append(tables, pressureToBar, gaugePressureToBar)
	case FamilyHeatTransfer:
		tables = append(tables, heatTransferToSI)
	case FamilyArea:
		tables = append(tables, areaToSqm)
	}
	var out []string
	for _, tbl := range tables {
		for k := range tbl.exact {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

package factors

import eq "process-capex/pkg/equipment"

type catSub struct {
	category eq.Category
	subtype  eq.Subtype
}

// Segment is one piece of a pressure-factor model, valid for Lower <= P <= Upper:
// log10(F_P) = C1 + C2*log10(P) + C3*log10(P)^2.
type Segment struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	C1    float64 `json:"c1"`
	C2    float64 `json:"c2"`
	C3    float64 `json:"c3"`
}

// PressureModel is an ordered list of segments over one pressure unit.
type PressureModel struct {
	Unit     string    `json:"unit"`
	Segments []Segment `json:"segments"`
}

// LinearModel is F_BM = B1 + B2*F_M*F_P.
type LinearModel struct {
	B1 float64 `json:"b1"`
	B2 float64 `json:"b2"`
}

// ===== MATERIAL FACTORS =====

var pumpMaterials = map[eq.Subtype]map[eq.Material]float64{
	eq.PumpCentrifugal:          {eq.Cl: 1.0, eq.CS: 1.6, eq.SS: 2.3, eq.Ni: 4.4},
	eq.PumpReciprocating:        {eq.Cl: 1.0, eq.CS: 1.5, eq.Cu: 1.3, eq.SS: 2.4, eq.Ni: 4.0, eq.Ti: 6.4},
	eq.PumpPositiveDisplacement: {eq.Cl: 1.0, eq.CS: 1.4, eq.Cu: 1.3, eq.SS: 2.7, eq.Ni: 4.7, eq.Ti: 10.7},
}

// Shell material -> tube material -> F_M.
var shellTubeMatrix = map[eq.Material]map[eq.Material]float64{
	eq.CS: {eq.CS: 1.00, eq.Cu: 1.35, eq.SS: 1.81, eq.Ni: 2.68, eq.Ti: 4.63},
	eq.Cu: {eq.Cu: 1.69},
	eq.SS: {eq.SS: 2.73},
	eq.Ni: {eq.Ni: 3.73},
	eq.Ti: {eq.Ti: 11.38},
}

// Plate exchangers are built from a single material.
var plateMatrix = map[eq.Material]map[eq.Material]float64{
	eq.CS: {eq.CS: 1.00},
	eq.Cu: {eq.Cu: 1.35},
	eq.SS: {eq.SS: 2.45},
	eq.Ni: {eq.Ni: 2.68},
	eq.Ti: {eq.Ti: 4.63},
}

type sidedTable struct {
	side    string // "shell" or "tube"
	factors map[eq.Material]float64
}

var singleSided = map[eq.Subtype]sidedTable{
	eq.HXTeflonTube: {"shell", map[eq.Material]float64{eq.CS: 1.00, eq.Cu: 1.20, eq.SS: 1.30, eq.Ni: 1.60, eq.Ti: 3.30}},
	eq.HXAirCooler:  {"tube", map[eq.Material]float64{eq.CS: 1.00, eq.Al: 1.42, eq.SS: 2.93}},
}

// ===== PRESSURE FACTORS =====

// flatPressure has no pressure effect up to upper.
func flatPressure(unit string, upper float64) PressureModel {
	return PressureModel{Unit: unit, Segments: []Segment{{Lower: 0, Upper: upper}}}
}

var (
	pumpCentrifugalPressure = PressureModel{Unit: "barg", Segments: []Segment{
		{Lower: 0, Upper: 10},
		{Lower: 10, Upper: 100, C1: -0.3935, C2: 0.3957, C3: -0.00226},
	}}
	pumpPositivePressure = PressureModel{Unit: "barg", Segments: []Segment{
		{Lower: 0, Upper: 10},
		{Lower: 10, Upper: 100, C1: -0.245382, C2: 0.259016, C3: -0.01363},
	}}

	fanCentrifugalPressure = PressureModel{Unit: "kPa", Segments: []Segment{
		{Lower: 0, Upper: 1},
		{Lower: 1, Upper: 16, C2: 0.20899, C3: -0.0328},
	}}
	fanAxialPressure = PressureModel{Unit: "kPa", Segments: []Segment{
		{Lower: 0, Upper: 1},
		{Lower: 1, Upper: 4, C2: 0.20899, C3: -0.0328},
	}}

	doublePipePressure = PressureModel{Unit: "barg", Segments: []Segment{
		{Lower: 0, Upper: 40},
		{Lower: 40, Upper: 100, C1: 0.6072, C2: -0.9120, C3: 0.3327},
		{Lower: 100, Upper: 300, C1: 13.1467, C2: -12.6574, C3: 3.0705},
	}}
	shellTubePressure = PressureModel{Unit: "barg", Segments: []Segment{
		{Lower: 0, Upper: 5},
		{Lower: 5, Upper: 140, C1: -0.00164, C2: -0.00627, C3: 0.0123},
	}}
	airCoolerPressure = PressureModel{Unit: "barg", Segments: []Segment{
		{Lower: 0, Upper: 10},
		{Lower: 10, Upper: 100, C1: -0.1250, C2: 0.15361, C3: -0.02861},
	}}
	spiralTubePressure = PressureModel{Unit: "barg", Segments: []Segment{
		{Lower: 0, Upper: 150},
		{Lower: 150, Upper: 400, C1: -0.4045, C2: 0.1859},
	}}
)

var pressureModels = map[catSub]PressureModel{
	{eq.Pump, eq.PumpCentrifugal}:          pumpCentrifugalPressure,
	{eq.Pump, eq.PumpReciprocating}:        pumpPositivePressure,
	{eq.Pump, eq.PumpPositiveDisplacement}: pumpPositivePressure,

	{eq.Fan, eq.FanCentrifugalRadial}:         fanCentrifugalPressure,
	{eq.Fan, eq.FanCentrifugalBackwardCurved}: fanCentrifugalPressure,
	{eq.Fan, eq.FanAxialTubeaxial}:            fanAxialPressure,
	{eq.Fan, eq.FanAxialVaneless}:             fanAxialPressure,

	{eq.HeatExchanger, eq.HXDoublePipe}:      doublePipePressure,
	{eq.HeatExchanger, eq.HXMultiplePipe}:    doublePipePressure,
	{eq.HeatExchanger, eq.HXScrapedWall}:     doublePipePressure,
	{eq.HeatExchanger, eq.HXFixedTube}:       shellTubePressure,
	{eq.HeatExchanger, eq.HXFloatingHead}:    shellTubePressure,
	{eq.HeatExchanger, eq.HXBayonet}:         shellTubePressure,
	{eq.HeatExchanger, eq.HXKettleReboiler}:  shellTubePressure,
	{eq.HeatExchanger, eq.HXTeflonTube}:      flatPressure("barg", 15),
	{eq.HeatExchanger, eq.HXAirCooler}:       airCoolerPressure,
	{eq.HeatExchanger, eq.HXSpiralTubeShell}: spiralTubePressure,
	{eq.HeatExchanger, eq.HXSpiralPlate}:     flatPressure("barg", 19),
	{eq.HeatExchanger, eq.HXFlatPlate}:       flatPressure("barg", 19),
}

// ===== BARE-MODULE FACTORS =====

var (
	doublePipeBM = LinearModel{B1: 1.74, B2: 1.55}
	shellTubeBM  = LinearModel{B1: 1.63, B2: 1.66}
	plateBM      = LinearModel{B1: 0.96, B2: 1.21}
)

var linearBareModule = map[catSub]LinearModel{
	{eq.Pump, eq.PumpCentrifugal}:          {B1: 1.89, B2: 1.35},
	{eq.Pump, eq.PumpReciprocating}:        {B1: 1.89, B2: 1.35},
	{eq.Pump, eq.PumpPositiveDisplacement}: {B1: 1.89, B2: 1.35},

	{eq.HeatExchanger, eq.HXDoublePipe}:      doublePipeBM,
	{eq.HeatExchanger, eq.HXMultiplePipe}:    doublePipeBM,
	{eq.HeatExchanger, eq.HXScrapedWall}:     doublePipeBM,
	{eq.HeatExchanger, eq.HXSpiralTubeShell}: doublePipeBM,
	{eq.HeatExchanger, eq.HXFixedTube}:       shellTubeBM,
	{eq.HeatExchanger, eq.HXFloatingHead}:    shellTubeBM,
	{eq.HeatExchanger, eq.HXBayonet}:         shellTubeBM,
	{eq.HeatExchanger, eq.HXKettleReboiler}:  shellTubeBM,
	{eq.HeatExchanger, eq.HXTeflonTube}:      shellTubeBM,
	{eq.HeatExchanger, eq.HXAirCooler}:       plateBM,
	{eq.HeatExchanger, eq.HXSpiralPlate}:     plateBM,
	{eq.HeatExchanger, eq.HXFlatPlate}:       plateBM,
}

var (
	fanBM     = map[eq.Material]float64{eq.CS: 2.7, eq.Fiberglass: 5.0, eq.SS: 5.8, eq.Ni: 11.5}
	turbineBM = map[eq.Material]float64{eq.CS: 3.5, eq.SS: 6.1, eq.Ni: 11.7}
)

var fixedBareModule = map[catSub]map[eq.Material]float64{
	{eq.Compressor, eq.CompressorCentrifugal}:   {eq.CS: 2.7, eq.SS: 5.8, eq.Ni: 11.5},
	{eq.Compressor, eq.CompressorAxial}:         {eq.CS: 3.8, eq.SS: 8.0, eq.Ni: 15.9},
	{eq.Compressor, eq.CompressorReciprocating}: {eq.CS: 3.4, eq.SS: 7.0, eq.Ni: 13.9},
	{eq.Compressor, eq.CompressorRotary}:        {eq.CS: 2.4, eq.SS: 5.0, eq.Ni: 9.9},

	{eq.Turbine, eq.TurbineAxial}:  turbineBM,
	{eq.Turbine, eq.TurbineRadial}: turbineBM,

	{eq.Fan, eq.FanCentrifugalRadial}:         fanBM,
	{eq.Fan, eq.FanCentrifugalBackwardCurved}: fanBM,
	{eq.Fan, eq.FanAxialTubeaxial}:            fanBM,
	{eq.Fan, eq.FanAxialVaneless}:             fanBM,
}

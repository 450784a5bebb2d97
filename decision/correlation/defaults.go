package correlation

import eq "process-capex/pkg/equipment"

type row struct {
	category eq.Category
	subtype  eq.Subtype
	k1       float64
	k2       float64
	k3       float64
	basis    SizeBasis
	min, max float64
}

// Purchased-cost correlations at CEPCI 567.5 (2017), with validated size ranges.
var defaultTable = []row{
	// Pumps, shaft power
	{eq.Pump, eq.PumpCentrifugal, 3.3892, 0.0536, 0.1538, BasisKilowatt, 1, 300},
	{eq.Pump, eq.PumpReciprocating, 3.8696, 0.3161, 0.1220, BasisKilowatt, 0.1, 200},
	{eq.Pump, eq.PumpPositiveDisplacement, 3.4771, 0.1350, 0.1438, BasisKilowatt, 1, 100},

	// Compressors, fluid power
	{eq.Compressor, eq.CompressorCentrifugal, 2.2897, 1.3604, -0.1027, BasisKilowatt, 450, 3000},
	{eq.Compressor, eq.CompressorAxial, 2.2897, 1.3604, -0.1027, BasisKilowatt, 450, 3000},
	{eq.Compressor, eq.CompressorReciprocating, 2.2897, 1.3604, -0.1027, BasisKilowatt, 450, 3000},
	{eq.Compressor, eq.CompressorRotary, 5.0355, -1.8002, 0.8253, BasisKilowatt, 18, 950},

	// Turbines, fluid power
	{eq.Turbine, eq.TurbineAxial, 2.7051, 1.4398, -0.1776, BasisKilowatt, 100, 4000},
	{eq.Turbine, eq.TurbineRadial, 2.2476, 1.4965, -0.1618, BasisKilowatt, 100, 1500},

	// Fans, gas flow
	{eq.Fan, eq.FanCentrifugalRadial, 3.5391, -0.3533, 0.4477, BasisCubicMPerS, 1, 100},
	{eq.Fan, eq.FanCentrifugalBackwardCurved, 3.3471, -0.0734, 0.3090, BasisCubicMPerS, 1, 100},
	{eq.Fan, eq.FanAxialTubeaxial, 3.0414, -0.3375, 0.4722, BasisCubicMPerS, 1, 100},
	{eq.Fan, eq.FanAxialVaneless, 3.1761, -0.1373, 0.3414, BasisCubicMPerS, 1, 100},

	// Heat exchangers, heat-transfer area
	{eq.HeatExchanger, eq.HXDoublePipe, 3.3444, 0.2745, -0.0472, BasisSquareMeter, 0.07, 10.5},
	{eq.HeatExchanger, eq.HXMultiplePipe, 2.7652, 0.7282, 0.0783, BasisSquareMeter, 0.07, 10.5},
	{eq.HeatExchanger, eq.HXFixedTube, 4.3247, -0.3030, 0.1634, BasisSquareMeter, 0.07, 520},
	{eq.HeatExchanger, eq.HXFloatingHead, 4.8306, -0.8509, 0.3187, BasisSquareMeter, 0.07, 520},
	{eq.HeatExchanger, eq.HXBayonet, 4.2768, -0.0495, 0.1431, BasisSquareMeter, 0.07, 520},
	{eq.HeatExchanger, eq.HXKettleReboiler, 4.4646, -0.5277, 0.3955, BasisSquareMeter, 0.07, 520},
	{eq.HeatExchanger, eq.HXScrapedWall, 3.7803, 0.8569, 0.0349, BasisSquareMeter, 0.07, 10.5},
	{eq.HeatExchanger, eq.HXTeflonTube, 3.8062, 0.8924, -0.1671, BasisSquareMeter, 0.07, 520},
	{eq.HeatExchanger, eq.HXAirCooler, 4.0336, 0.2341, 0.0497, BasisSquareMeter, 0.07, 520},
	{eq.HeatExchanger, eq.HXSpiralTubeShell, 3.9912, 0.0668, 0.2430, BasisSquareMeter, 0.07, 10.5},
	{eq.HeatExchanger, eq.HXSpiralPlate, 4.6561, -0.2947, 0.2207, BasisSquareMeter, 0.07, 10.5},
	{eq.HeatExchanger, eq.HXFlatPlate, 4.6656, -0.1557, 0.1547, BasisSquareMeter, 0.07, 10.5},
}

// RegisterDefaults loads the published table into r.
func RegisterDefaults(r *Registry) {
	for _, d := range defaultTable {
		r.Register(d.category, d.subtype, Coefficients{K1: d.k1, K2: d.k2, K3: d.k3, SizeBasis: d.basis})
		// cannot fail: registered on the line above
		_ = r.SetLimits(d.category, d.subtype, Limits{Min: d.min, Max: d.max})
	}
}

// Package costing evaluates purchased and bare-module costs for single
// devices: size validation, capacity splitting, correlation evaluation,
// factor application and cost-index adjustment.
package costing

import (
	"process-capex/decision/factors"
	"process-capex/pkg/equipment"
)

// CostInputs is the sizing bundle of one device in canonical units.
// Nil fields are unknown.
type CostInputs struct {
	PowerKW           *float64 `json:"power_kw,omitempty"`
	VolumetricFlowM3S *float64 `json:"flow_m3s,omitempty"`
	// Absolute pressure; the outlet pressure for rotating equipment and the
	// operating pressure for pumps and heat exchangers.
	PressureBar      *float64 `json:"pressure_bar,omitempty"`
	InletPressureBar *float64 `json:"inlet_pressure_bar,omitempty"`
	PressureDeltaBar *float64 `json:"pressure_delta_bar,omitempty"`

	MaterialFactor   *float64 `json:"material_factor,omitempty"`
	PressureFactor   *float64 `json:"pressure_factor,omitempty"`
	BareModuleFactor *float64 `json:"bare_module_factor,omitempty"`

	HeatDutyW               *float64           `json:"heat_duty_w,omitempty"`
	HeatTransferCoefficient *float64           `json:"u_w_m2k,omitempty"`
	LMTDK                   *float64           `json:"lmtd_k,omitempty"`
	AreaM2                  *float64           `json:"area_m2,omitempty"`
	ShellMaterial           equipment.Material `json:"shell_material,omitempty"`
	TubeMaterial            equipment.Material `json:"tube_material,omitempty"`

	Stages []Stage `json:"stages,omitempty"`
}

// Stage is one compression stage of a multi-stage compressor.
type Stage struct {
	Index             int      `json:"index"`
	PowerKW           *float64 `json:"power_kw,omitempty"`
	OutletPressureBar *float64 `json:"outlet_pressure_bar,omitempty"`
	// Optional intercooler sizing after this stage.
	CoolerDutyW *float64 `json:"cooler_duty_w,omitempty"`
	CoolerLMTDK *float64 `json:"cooler_lmtd_k,omitempty"`
}

// Request asks for the cost of one device.
type Request struct {
	Name     string             `json:"name"`
	Category equipment.Category `json:"category"`
	Subtype  equipment.Subtype  `json:"subtype,omitempty"`
	Material equipment.Material `json:"material,omitempty"`
	Inputs   CostInputs         `json:"inputs"`
	Index    CostIndexOptions   `json:"index"`

	// AutoClassify lets pressure readings decide between compressor, fan
	// and turbine.
	AutoClassify bool `json:"auto_classify,omitempty"`
	// AllowBelowMinimum evaluates undersized devices anyway and marks the
	// result extrapolated instead of failing.
	AllowBelowMinimum bool `json:"allow_below_minimum,omitempty"`
}

// Costs are the cost fields carried by every result.
type Costs struct {
	Purchased    float64 `json:"purchased"`
	PurchasedAdj float64 `json:"purchased_adj"`
	BareModule   float64 `json:"bare_module"`
	// Deprecated: Installed equals BareModule and is kept for report
	// compatibility.
	Installed float64 `json:"installed"`
}

// Add returns the field-wise sum.
func (c Costs) Add(o Costs) Costs {
	return Costs{
		Purchased:    c.Purchased + o.Purchased,
		PurchasedAdj: c.PurchasedAdj + o.PurchasedAdj,
		BareModule:   c.BareModule + o.BareModule,
		Installed:    c.Installed + o.Installed,
	}
}

// IntercoolerResult is the cooler estimate between two compression stages.
type IntercoolerResult struct {
	AfterStage  int     `json:"after_stage"`
	Method      string  `json:"method"`
	AreaM2      float64 `json:"area_m2,omitempty"`
	Costs       Costs   `json:"costs"`
	Provisional bool    `json:"provisional"`
}

// CostResult is the cost breakdown of one device.
type CostResult struct {
	Name     string             `json:"name"`
	Category equipment.Category `json:"category"`
	Subtype  equipment.Subtype  `json:"subtype"`
	Material equipment.Material `json:"material"`

	Size     float64 `json:"size"`
	SizeUnit string  `json:"size_unit"`
	Units    int     `json:"units"`
	UnitSize float64 `json:"unit_size"`

	Factors    factors.Factors `json:"factors"`
	IndexRatio float64         `json:"index_ratio"`
	Costs      Costs           `json:"costs"`

	Stages       []CostResult        `json:"stages,omitempty"`
	Intercoolers []IntercoolerResult `json:"intercoolers,omitempty"`

	// Provisional is set when any part of the figure comes from a
	// placeholder heuristic.
	Provisional  bool     `json:"provisional"`
	Extrapolated bool     `json:"extrapolated"`
	Confidence   float64  `json:"confidence"`
	Formula      string   `json:"formula,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

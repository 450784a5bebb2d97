// Package factors resolves the material (F_M), pressure (F_P) and bare-module
// (F_BM) factors applied to purchased-cost correlations.
package factors

import (
	"math"
	"sort"
	"strings"

	eq "process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
)

// Factor computes F_P for pressure p in the model's unit. Pressures at or
// below zero, and pressures inside a zero-coefficient segment, give 1.0.
// Out-of-range pressures are clamped into the nearest segment, and F_P is
// never below 1.0.
func (m PressureModel) Factor(p float64) float64 {
	if len(m.Segments) == 0 || !(p > 0) {
		return 1.0
	}

	seg := m.Segments[len(m.Segments)-1]
	for _, s := range m.Segments {
		if p <= s.Upper {
			seg = s
			break
		}
	}
	if seg.C1 == 0 && seg.C2 == 0 && seg.C3 == 0 {
		return 1.0
	}

	pc := math.Min(math.Max(p, seg.Lower), seg.Upper)
	if pc <= 0 {
		return 1.0
	}
	l := math.Log10(pc)
	return math.Max(math.Pow(10, seg.C1+seg.C2*l+seg.C3*l*l), 1.0)
}

// Resolver looks factors up in the published tables. The tables are
// read-only, so one Resolver can serve concurrent evaluations.
type Resolver struct{}

// NewResolver creates a resolver over the default tables
func NewResolver() *Resolver {
	return &Resolver{}
}

func orCS(m eq.Material) eq.Material {
	if m == "" {
		return eq.CS
	}
	return m
}

// MaterialFactor returns F_M. Categories without a material table
// (compressors, turbines, fans) carry material in F_BM and get 1.0.
// Heat exchangers use the same material on both sides here; see
// HeatExchangerMaterialFactor for distinct shell and tube materials.
func (r *Resolver) MaterialFactor(category eq.Category, subtype eq.Subtype, material eq.Material) (float64, error) {
	material = orCS(material)

	switch category {
	case eq.Pump:
		tbl, ok := pumpMaterials[subtype]
		if !ok {
			return 1.0, nil
		}
		f, ok := tbl[material]
		if !ok {
			return 0, costerrors.NewUnsupportedConfigurationError(
				"material %s is not available for %s/%s (valid: %s)",
				material, category, subtype, joinMaterials(tbl))
		}
		return f, nil
	case eq.HeatExchanger:
		return r.HeatExchangerMaterialFactor(subtype, material, material)
	}
	return 1.0, nil
}

// HeatExchangerMaterialFactor returns F_M for a shell/tube pairing.
// teflon_tube is looked up by shell material only and air_cooler by tube
// material only. Every other subtype needs a valid pair; an invalid pair is
// an error naming the tube materials the shell material accepts.
func (r *Resolver) HeatExchangerMaterialFactor(subtype eq.Subtype, shell, tube eq.Material) (float64, error) {
	shell, tube = orCS(shell), orCS(tube)

	if sided, ok := singleSided[subtype]; ok {
		m := shell
		if sided.side == "tube" {
			m = tube
		}
		f, ok := sided.factors[m]
		if !ok {
			return 0, costerrors.NewUnsupportedConfigurationError(
				"%s material %s is not available for heat exchanger %s (valid: %s)",
				sided.side, m, subtype, joinMaterials(sided.factors))
		}
		return f, nil
	}

	matrix := shellTubeMatrix
	if subtype == eq.HXSpiralPlate || subtype == eq.HXFlatPlate {
		matrix = plateMatrix
	}

	tubes, ok := matrix[shell]
	if !ok {
		shells := make(map[eq.Material]float64, len(matrix))
		for s := range matrix {
			shells[s] = 0
		}
		return 0, costerrors.NewUnsupportedConfigurationError(
			"shell material %s is not available for heat exchanger %s (valid shells: %s)",
			shell, subtype, joinMaterials(shells))
	}
	f, ok := tubes[tube]
	if !ok {
		return 0, costerrors.NewUnsupportedConfigurationError(
			"shell %s / tube %s is not a valid pairing for heat exchanger %s (valid tubes for %s shell: %s)",
			shell, tube, subtype, shell, joinMaterials(tubes))
	}
	return f, nil
}

// PressureModel returns the pressure-factor model of a category/subtype.
func (r *Resolver) PressureModel(category eq.Category, subtype eq.Subtype) (PressureModel, bool) {
	m, ok := pressureModels[catSub{category, subtype}]
	return m, ok
}

// PressureFactor returns F_P for p, which must be in the model's unit
// (gauge bar for pumps and heat exchangers, kPa rise for fans). A nil
// pressure or a category without a model gives 1.0.
func (r *Resolver) PressureFactor(category eq.Category, subtype eq.Subtype, p *float64) float64 {
	if p == nil {
		return 1.0
	}
	m, ok := r.PressureModel(category, subtype)
	if !ok {
		return 1.0
	}
	return m.Factor(*p)
}

// IsLinear reports whether F_BM follows B1 + B2*F_M*F_P for this subtype.
func (r *Resolver) IsLinear(category eq.Category, subtype eq.Subtype) bool {
	_, ok := linearBareModule[catSub{category, subtype}]
	return ok
}

// BareModuleFactor returns F_BM. For linear models fm is the combined
// material and pressure factor. Fixed tables fall back to the CS row when
// the material has no entry.
func (r *Resolver) BareModuleFactor(category eq.Category, subtype eq.Subtype, material eq.Material, fm float64) (float64, error) {
	f, _, err := r.bareModule(category, subtype, material, fm)
	return f, err
}

func (r *Resolver) bareModule(category eq.Category, subtype eq.Subtype, material eq.Material, fm float64) (float64, bool, error) {
	k := catSub{category, subtype}
	if lin, ok := linearBareModule[k]; ok {
		return lin.B1 + lin.B2*fm, false, nil
	}
	tbl, ok := fixedBareModule[k]
	if !ok {
		return 0, false, costerrors.NewUnsupportedConfigurationError(
			"no bare-module model for %s/%s", category, subtype)
	}
	if f, ok := tbl[orCS(material)]; ok {
		return f, false, nil
	}
	return tbl[eq.CS], true, nil
}

// LinearModel exposes the B1/B2 pair of a linear-model subtype.
func (r *Resolver) LinearModel(category eq.Category, subtype eq.Subtype) (LinearModel, bool) {
	m, ok := linearBareModule[catSub{category, subtype}]
	return m, ok
}

// Query is everything needed to resolve the factors of one device.
type Query struct {
	Category eq.Category
	Subtype  eq.Subtype
	Material eq.Material
	// Heat exchangers only; empty sides take Material.
	ShellMaterial eq.Material
	TubeMaterial  eq.Material
	// Pressure in the subtype model's unit, nil when unknown.
	Pressure *float64

	MaterialOverride   *float64
	PressureOverride   *float64
	BareModuleOverride *float64
}

// Factors is a resolved factor set.
type Factors struct {
	Material   float64 `json:"f_m"`
	Pressure   float64 `json:"f_p"`
	BareModule float64 `json:"f_bm"`
	// Linear means F_M and F_P enter through F_BM and do not scale the
	// purchased cost.
	Linear bool `json:"linear"`
	// BareModuleFallback means the material had no F_BM row and CS was used.
	BareModuleFallback bool `json:"bm_fallback,omitempty"`
}

// Resolve resolves F_M, F_P and F_BM, honoring explicit overrides.
func (r *Resolver) Resolve(q Query) (Factors, error) {
	out := Factors{Linear: r.IsLinear(q.Category, q.Subtype)}

	switch {
	case q.MaterialOverride != nil:
		out.Material = *q.MaterialOverride
	case q.Category == eq.HeatExchanger:
		shell, tube := q.ShellMaterial, q.TubeMaterial
		if shell == "" {
			shell = q.Material
		}
		if tube == "" {
			tube = q.Material
		}
		f, err := r.HeatExchangerMaterialFactor(q.Subtype, shell, tube)
		if err != nil {
			return Factors{}, err
		}
		out.Material = f
	default:
		f, err := r.MaterialFactor(q.Category, q.Subtype, q.Material)
		if err != nil {
			return Factors{}, err
		}
		out.Material = f
	}

	if q.PressureOverride != nil {
		out.Pressure = *q.PressureOverride
	} else {
		out.Pressure = r.PressureFactor(q.Category, q.Subtype, q.Pressure)
	}

	if q.BareModuleOverride != nil {
		out.BareModule = *q.BareModuleOverride
		return out, nil
	}
	bm, fellBack, err := r.bareModule(q.Category, q.Subtype, q.Material, out.Material*out.Pressure)
	if err != nil {
		return Factors{}, err
	}
	out.BareModule, out.BareModuleFallback = bm, fellBack
	return out, nil
}

func joinMaterials(tbl map[eq.Material]float64) string {
	names := make([]string, 0, len(tbl))
	for m := range tbl {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

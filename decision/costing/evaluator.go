package costing

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"process-capex/decision/correlation"
	"process-capex/decision/factors"
	"process-capex/pkg/confidence"
	"process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
	"process-capex/pkg/units"
)

// Evaluator produces a CostResult for one device. It holds no per-call
// state and is safe for concurrent use.
type Evaluator struct {
	registry *correlation.Registry
	resolver *factors.Resolver
	logger   zerolog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the debug logger for pipeline steps.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an evaluator over a registry and factor resolver
func NewEvaluator(registry *correlation.Registry, resolver *factors.Resolver, opts ...Option) *Evaluator {
	e := &Evaluator{
		registry: registry,
		resolver: resolver,
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewDefaultEvaluator uses the published correlation and factor tables.
func NewDefaultEvaluator(opts ...Option) *Evaluator {
	return NewEvaluator(correlation.NewDefaultRegistry(), factors.NewResolver(), opts...)
}

// Registry exposes the correlation registry.
func (e *Evaluator) Registry() *correlation.Registry {
	return e.registry
}

// Evaluate costs one device. Errors are CostErrors attributed to req.Name.
func (e *Evaluator) Evaluate(req Request) (*CostResult, error) {
	res, err := e.evaluate(req)
	if err != nil {
		return nil, attribute(err, req.Name)
	}
	res.Name = req.Name
	return res, nil
}

func (e *Evaluator) evaluate(req Request) (*CostResult, error) {
	req.Index = req.Index.Normalize()
	if err := req.Index.Validate(); err != nil {
		return nil, err
	}

	category, subtype := ResolveType(req.Category, req.Subtype, req.Inputs, req.AutoClassify)
	material := req.Material
	if material == "" {
		material = equipment.CS
	}

	if category == equipment.MultiStageCompressor {
		return e.evaluateMultiStage(req, material)
	}

	job, err := sizeDevice(category, subtype, req.Inputs)
	if err != nil {
		return nil, err
	}
	job.material = material
	job.inputs = req.Inputs
	job.index = req.Index
	job.allowBelowMinimum = req.AllowBelowMinimum
	return e.evaluateSized(job)
}

// ResolveType applies auto classification and the default subtype. A
// category change discards the requested subtype, which belonged to the
// old category.
func ResolveType(category equipment.Category, subtype equipment.Subtype, in CostInputs, auto bool) (equipment.Category, equipment.Subtype) {
	if auto && autoClassifiable(category) {
		if c := ClassifyPressureChanger(category, in); c != category {
			category, subtype = c, ""
		}
	}
	if subtype == "" {
		subtype = equipment.DefaultSubtype(category)
	}
	return category, subtype
}

// sizedJob is a device reduced to one sizing value in native units.
type sizedJob struct {
	category equipment.Category
	subtype  equipment.Subtype
	material equipment.Material
	size     float64
	unit     correlation.SizeBasis
	// pressure in the unit of the subtype's pressure-factor model
	pressure *float64

	inputs            CostInputs
	index             CostIndexOptions
	allowBelowMinimum bool
	bareModuleScale   float64
}

func sizeDevice(category equipment.Category, subtype equipment.Subtype, in CostInputs) (sizedJob, error) {
	job := sizedJob{category: category, subtype: subtype}

	switch category {
	case equipment.Pump, equipment.Compressor, equipment.Turbine:
		if in.PowerKW == nil {
			return job, costerrors.NewInputValidationError("%s/%s requires shaft power", category, subtype)
		}
		job.size, job.unit = *in.PowerKW, correlation.BasisKilowatt
		// simulators report turbine power as negative (produced)
		if category == equipment.Turbine {
			job.size = math.Abs(job.size)
		}
		if category == equipment.Pump && in.PressureBar != nil {
			g := units.GaugeBar(*in.PressureBar)
			job.pressure = &g
		}

	case equipment.Fan:
		if in.VolumetricFlowM3S == nil {
			return job, costerrors.NewInputValidationError("fan/%s requires volumetric flow; fans are never sized by power", subtype)
		}
		job.size, job.unit = *in.VolumetricFlowM3S, correlation.BasisCubicMPerS
		if rise, ok := pressureRise(in); ok {
			kPa := rise * 100
			job.pressure = &kPa
		}

	case equipment.HeatExchanger:
		area, err := HeatExchangerArea(in)
		if err != nil {
			return job, err
		}
		job.size, job.unit = area, correlation.BasisSquareMeter
		if in.PressureBar != nil {
			g := units.GaugeBar(*in.PressureBar)
			job.pressure = &g
		}

	default:
		return job, costerrors.NewUnsupportedConfigurationError("category %q cannot be costed", category)
	}
	return job, nil
}

// toBasis converts a native size into the correlation's size basis.
func toBasis(size float64, native, basis correlation.SizeBasis) (float64, error) {
	if native == basis {
		return size, nil
	}
	if native == correlation.BasisKilowatt && basis == correlation.BasisHorsepower {
		return units.FromKilowatt(size, string(basis))
	}
	return 0, costerrors.NewUnsupportedConfigurationError(
		"cannot express a %s size in the correlation basis %s", native, basis)
}

func (e *Evaluator) evaluateSized(job sizedJob) (*CostResult, error) {
	entry, err := e.registry.Entry(job.category, job.subtype)
	if err != nil {
		return nil, err
	}
	coeff := entry.Coefficients

	size, err := toBasis(job.size, job.unit, coeff.SizeBasis)
	if err != nil {
		return nil, err
	}
	if !(size > 0) {
		return nil, costerrors.NewInputValidationError(
			"%s/%s size must be strictly positive, got %g %s", job.category, job.subtype, size, coeff.SizeBasis)
	}

	res := &CostResult{
		Category:   job.category,
		Subtype:    job.subtype,
		Material:   job.material,
		Size:       size,
		SizeUnit:   string(coeff.SizeBasis),
		Units:      1,
		IndexRatio: job.index.Ratio(),
		Confidence: confidence.Validated,
	}

	if entry.Limits.Min > 0 && size < entry.Limits.Min {
		if !job.allowBelowMinimum {
			return nil, costerrors.NewBelowMinimumError(
				string(job.category), string(job.subtype), size, entry.Limits.Min, string(coeff.SizeBasis))
		}
		res.Extrapolated = true
		res.Confidence = confidence.Extrapolated
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"size %.4g %s is below the validated minimum %.4g; correlation extrapolated",
			size, coeff.SizeBasis, entry.Limits.Min))
	}

	f, err := e.resolver.Resolve(factors.Query{
		Category:           job.category,
		Subtype:            job.subtype,
		Material:           job.material,
		ShellMaterial:      job.inputs.ShellMaterial,
		TubeMaterial:       job.inputs.TubeMaterial,
		Pressure:           job.pressure,
		MaterialOverride:   job.inputs.MaterialFactor,
		PressureOverride:   job.inputs.PressureFactor,
		BareModuleOverride: job.inputs.BareModuleFactor,
	})
	if err != nil {
		return nil, err
	}
	if job.bareModuleScale > 0 {
		f.BareModule *= job.bareModuleScale
	}
	if f.BareModuleFallback {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"no bare-module factor for material %s; using the CS value", job.material))
	}
	res.Factors = f

	if entry.Limits.Max > 0 && size > entry.Limits.Max {
		res.Units = int(math.Ceil(size / entry.Limits.Max))
	}
	res.UnitSize = size / float64(res.Units)

	base, err := coeff.PurchasedCost(res.UnitSize)
	if err != nil {
		return nil, err
	}
	purchased := base
	if !f.Linear {
		purchased *= f.Material * f.Pressure
	}
	adj := job.index.Adjust(purchased)
	bm := adj * f.BareModule
	unit := Costs{Purchased: purchased, PurchasedAdj: adj, BareModule: bm, Installed: bm}

	// n identical parallel units
	for i := 0; i < res.Units; i++ {
		res.Costs = res.Costs.Add(unit)
	}

	res.Formula = fmt.Sprintf(
		"%d x [log10(Cp) = %.4f %+.4f*log10(%.4g) %+.4f*log10(%.4g)^2 -> Cp = %.2f; F_M=%.3f F_P=%.3f; index x%.4f; F_BM=%.3f]",
		res.Units, coeff.K1, coeff.K2, res.UnitSize, coeff.K3, res.UnitSize, base,
		f.Material, f.Pressure, res.IndexRatio, f.BareModule)

	e.logger.Debug().
		Str("category", string(job.category)).
		Str("subtype", string(job.subtype)).
		Str("material", string(job.material)).
		Float64("size", size).
		Str("size_unit", string(coeff.SizeBasis)).
		Int("units", res.Units).
		Float64("f_m", f.Material).
		Float64("f_p", f.Pressure).
		Float64("f_bm", f.BareModule).
		Float64("bare_module", res.Costs.BareModule).
		Msg("Evaluated correlation")

	return res, nil
}

func attribute(err error, device string) error {
	if device == "" {
		return err
	}
	if ce, ok := err.(*costerrors.CostError); ok {
		return ce.WithDevice(device)
	}
	return fmt.Errorf("device %s: %w", device, err)
}

package costing

import (
	"fmt"
	"math"
	"sort"

	"process-capex/decision/correlation"
	"process-capex/pkg/confidence"
	"process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
)

const (
	// IntercoolerBareModule is the F_BM of the pressure-based intercooler estimate.
	IntercoolerBareModule = 2.5
	// IntercoolerU sizes duty-based intercoolers, W/m2K.
	IntercoolerU = 850.0
	// MultiStageComplexity inflates F_BM when no stage data exists, for the
	// piping between stages.
	MultiStageComplexity = 1.2
)

const (
	methodExchanger = "fixed_tube exchanger from duty"
	methodPressure  = "pressure heuristic 10000*(P/10)^0.6"
)

// evaluateMultiStage costs each stage as a standalone centrifugal
// compressor and adds one intercooler between consecutive stages.
func (e *Evaluator) evaluateMultiStage(req Request, material equipment.Material) (*CostResult, error) {
	stages := make([]Stage, 0, len(req.Inputs.Stages))
	for _, st := range req.Inputs.Stages {
		if st.PowerKW != nil {
			stages = append(stages, st)
		}
	}
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Index < stages[j].Index })

	if len(stages) == 0 {
		return e.evaluateMultiStageFallback(req, material)
	}

	res := &CostResult{
		Category:   equipment.MultiStageCompressor,
		Subtype:    equipment.CompressorCentrifugal,
		Material:   material,
		SizeUnit:   string(correlation.BasisKilowatt),
		Units:      len(stages),
		IndexRatio: req.Index.Ratio(),
	}
	scores := make([]float64, 0, 2*len(stages))

	for i, st := range stages {
		sr, err := e.evaluateSized(sizedJob{
			category:          equipment.Compressor,
			subtype:           equipment.CompressorCentrifugal,
			material:          material,
			size:              *st.PowerKW,
			unit:              correlation.BasisKilowatt,
			inputs:            CostInputs{PressureBar: st.OutletPressureBar},
			index:             req.Index,
			allowBelowMinimum: true,
		})
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", st.Index, err)
		}
		sr.Name = fmt.Sprintf("Stage %d", st.Index)
		res.Stages = append(res.Stages, *sr)
		res.Costs = res.Costs.Add(sr.Costs)
		res.Size += sr.Size
		res.Extrapolated = res.Extrapolated || sr.Extrapolated
		scores = append(scores, sr.Confidence)

		if i == len(stages)-1 {
			break
		}
		ic, ok, err := e.intercooler(st, req.Index)
		if err != nil {
			return nil, fmt.Errorf("intercooler after stage %d: %w", st.Index, err)
		}
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"no intercooler estimate after stage %d: outlet pressure unknown", st.Index))
			continue
		}
		res.Intercoolers = append(res.Intercoolers, ic)
		res.Costs = res.Costs.Add(ic.Costs)
		if ic.Provisional {
			res.Provisional = true
			scores = append(scores, confidence.Provisional)
		} else {
			scores = append(scores, confidence.Validated)
		}
	}

	res.UnitSize = res.Size / float64(len(stages))
	res.Confidence = confidence.Aggregate(scores)
	if len(res.Stages) > 0 {
		res.Factors = res.Stages[0].Factors
	}
	res.Formula = fmt.Sprintf("sum of %d centrifugal stages + %d intercoolers", len(res.Stages), len(res.Intercoolers))
	return res, nil
}

// intercooler estimates the cooler after a stage. ok is false when the stage
// carries nothing to size it from.
func (e *Evaluator) intercooler(st Stage, index CostIndexOptions) (IntercoolerResult, bool, error) {
	ic := IntercoolerResult{AfterStage: st.Index}

	if st.CoolerDutyW != nil && st.CoolerLMTDK != nil {
		area, err := areaFromDuty(*st.CoolerDutyW, IntercoolerU, *st.CoolerLMTDK)
		if err != nil {
			return ic, false, err
		}
		hx, err := e.evaluateSized(sizedJob{
			category:          equipment.HeatExchanger,
			subtype:           equipment.HXFixedTube,
			material:          equipment.CS,
			size:              area,
			unit:              correlation.BasisSquareMeter,
			index:             index,
			allowBelowMinimum: true,
		})
		if err != nil {
			return ic, false, err
		}
		ic.Method, ic.AreaM2, ic.Costs = methodExchanger, area, hx.Costs
		return ic, true, nil
	}

	if st.OutletPressureBar == nil || !(*st.OutletPressureBar > 0) {
		return ic, false, nil
	}
	purchased := 10000 * math.Pow(*st.OutletPressureBar/10, 0.6)
	adj := index.Adjust(purchased)
	bm := adj * IntercoolerBareModule
	ic.Method = methodPressure
	ic.Costs = Costs{Purchased: purchased, PurchasedAdj: adj, BareModule: bm, Installed: bm}
	ic.Provisional = true
	return ic, true, nil
}

// evaluateMultiStageFallback prices the machine as one centrifugal
// compressor on total power with F_BM raised by MultiStageComplexity.
func (e *Evaluator) evaluateMultiStageFallback(req Request, material equipment.Material) (*CostResult, error) {
	if req.Inputs.PowerKW == nil {
		return nil, costerrors.NewInputValidationError(
			"multistage compressor requires stage data or total shaft power")
	}
	res, err := e.evaluateSized(sizedJob{
		category:          equipment.Compressor,
		subtype:           equipment.CompressorCentrifugal,
		material:          material,
		size:              *req.Inputs.PowerKW,
		unit:              correlation.BasisKilowatt,
		inputs:            req.Inputs,
		index:             req.Index,
		allowBelowMinimum: true,
		bareModuleScale:   MultiStageComplexity,
	})
	if err != nil {
		return nil, err
	}
	res.Category = equipment.MultiStageCompressor
	res.Warnings = append(res.Warnings, "no stage data; costed as one compressor on total power")
	return res, nil
}

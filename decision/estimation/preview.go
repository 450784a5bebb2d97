package estimation

import (
	"process-capex/decision/costing"
	"process-capex/pkg/equipment"
)

// PreviewEntry shows how a device will be costed before the batch runs.
type PreviewEntry struct {
	Name     string             `json:"name"`
	Declared equipment.Category `json:"declared"`
	Category equipment.Category `json:"category"`
	Subtype  equipment.Subtype  `json:"subtype"`
	Material equipment.Material `json:"material"`
	// Reclassified is set when pressure data moved the device to another
	// category.
	Reclassified bool `json:"reclassified"`
	Overridden   bool `json:"overridden"`
	HasInputs    bool `json:"has_inputs"`
}

// Preview resolves type, subtype and material of every device with the same
// rules Estimate applies, without costing anything.
func (e *Engine) Preview(req EstimationRequest) []PreviewEntry {
	defaultMaterial := req.DefaultMaterial
	if defaultMaterial == "" {
		defaultMaterial = equipment.CS
	}

	out := make([]PreviewEntry, 0, len(req.Devices))
	for _, dev := range req.Devices {
		cr := e.request(dev, req, req.Index, defaultMaterial)
		category, subtype := costing.ResolveType(cr.Category, cr.Subtype, cr.Inputs, cr.AutoClassify)
		_, hasInputs := req.Inputs[dev.Name]
		out = append(out, PreviewEntry{
			Name:         dev.Name,
			Declared:     dev.Category,
			Category:     category,
			Subtype:      subtype,
			Material:     cr.Material,
			Reclassified: cr.AutoClassify && category != dev.Category,
			Overridden:   !cr.AutoClassify,
			HasInputs:    hasInputs,
		})
	}
	return out
}

// TypeOption is one category a device may be switched to, with its subtypes.
type TypeOption struct {
	Category equipment.Category  `json:"category"`
	Subtypes []equipment.Subtype `json:"subtypes"`
}

// TypeOptions lists the types a device declared as category may be
// overridden to. Pressure changers can become any other pressure changer.
func (e *Engine) TypeOptions(category equipment.Category) []TypeOption {
	var cats []equipment.Category
	switch category {
	case equipment.Compressor, equipment.Fan, equipment.Turbine, equipment.MultiStageCompressor:
		cats = []equipment.Category{equipment.Compressor, equipment.MultiStageCompressor, equipment.Fan, equipment.Turbine}
	default:
		cats = []equipment.Category{category}
	}

	reg := e.evaluator.Registry()
	out := make([]TypeOption, 0, len(cats))
	for _, c := range cats {
		if c == equipment.MultiStageCompressor {
			// stages are centrifugal compressors
			out = append(out, TypeOption{Category: c, Subtypes: []equipment.Subtype{equipment.CompressorCentrifugal}})
			continue
		}
		out = append(out, TypeOption{Category: c, Subtypes: reg.Subtypes(c)})
	}
	return out
}

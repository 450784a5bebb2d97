package acquisition

import (
	"context"
	"fmt"

	"process-capex/decision/blocks"
	"process-capex/decision/costing"
	"process-capex/decision/estimation"
	"process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
)

// Batch is a device file resolved into an engine request.
type Batch struct {
	Project string
	Request estimation.EstimationRequest
	// Detections covers devices whose category came from block
	// classification rather than the file.
	Detections []blocks.Detection
	// Skipped are blocks that exist in the file but cannot be costed.
	Skipped []blocks.Detection
}

// Build resolves categories, normalizes every reading and applies the
// file's overrides. Per-device problems become InputErrors so the batch
// still runs; only file-level problems fail.
func Build(ctx context.Context, df *DeviceFile, x *Extractor) (*Batch, error) {
	index, err := df.Index.Options()
	if err != nil {
		return nil, err
	}

	b := &Batch{
		Project: df.Project,
		Request: estimation.EstimationRequest{
			Inputs:            make(map[string]costing.CostInputs, len(df.Devices)),
			MaterialOverrides: make(map[string]equipment.Material),
			TypeOverrides:     make(map[string]equipment.Category),
			SubtypeOverrides:  make(map[string]equipment.Subtype),
			Index:             index,
			InputErrors:       make(map[string]error),
		},
	}
	if df.DefaultMaterial != "" {
		if b.Request.DefaultMaterial, err = equipment.ParseMaterial(df.DefaultMaterial); err != nil {
			return nil, fmt.Errorf("default material: %w", err)
		}
	}

	for _, spec := range df.Devices {
		category, ok, err := b.category(spec)
		if err != nil {
			b.Request.Devices = append(b.Request.Devices, estimation.Device{Name: spec.Name})
			b.Request.InputErrors[spec.Name] = err
			continue
		}
		if !ok {
			continue
		}
		b.Request.Devices = append(b.Request.Devices, estimation.Device{Name: spec.Name, Category: category})
		if err := checkStages(spec); err != nil {
			b.Request.InputErrors[spec.Name] = err
			continue
		}

		if spec.Subtype != "" {
			b.Request.SubtypeOverrides[spec.Name] = equipment.Subtype(spec.Subtype)
		}
		if spec.Material != "" {
			m, err := equipment.ParseMaterial(spec.Material)
			if err != nil {
				b.Request.InputErrors[spec.Name] = err
				continue
			}
			b.Request.MaterialOverrides[spec.Name] = m
		}

		in, err := x.Inputs(ctx, spec)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			x.forget(spec.Name)
			b.Request.InputErrors[spec.Name] = err
			continue
		}
		b.Request.Inputs[spec.Name] = in
	}

	x.logStats()

	if err := b.applyOverrides(df.Overrides); err != nil {
		return nil, err
	}
	return b, nil
}

// category takes the declared category, or classifies the block. ok is
// false for blocks that are not costed.
func (b *Batch) category(spec DeviceSpec) (equipment.Category, bool, error) {
	if spec.Category != "" {
		c, err := equipment.ParseCategory(spec.Category)
		return c, err == nil, err
	}
	d := blocks.Classify(blocks.Block{Name: spec.Name, RecordType: spec.RecordType})
	if !d.Costable {
		b.Skipped = append(b.Skipped, d)
		return "", false, nil
	}
	b.Detections = append(b.Detections, d)
	return d.Category, true, nil
}

// applyOverrides layers the file's override section over per-device values.
func (b *Batch) applyOverrides(o Overrides) error {
	for name, s := range o.Material {
		m, err := equipment.ParseMaterial(s)
		if err != nil {
			return fmt.Errorf("material override for %s: %w", name, err)
		}
		b.Request.MaterialOverrides[name] = m
	}
	for name, s := range o.Type {
		c, err := equipment.ParseCategory(s)
		if err != nil {
			return fmt.Errorf("type override for %s: %w", name, err)
		}
		b.Request.TypeOverrides[name] = c
	}
	for name, s := range o.Subtype {
		b.Request.SubtypeOverrides[name] = equipment.Subtype(s)
	}
	return nil
}

// Options resolves the index section. Explicit values win over years; an
// empty section means the correlation base without adjustment.
func (s IndexSpec) Options() (costing.CostIndexOptions, error) {
	if s.BaseIndex < 0 || s.TargetIndex < 0 {
		return costing.DefaultIndexOptions(), costerrors.NewInputValidationError("cost indices must not be negative")
	}

	baseYear, targetYear := costing.DefaultBaseYear, 0
	if s.BaseIndex == 0 && s.BaseYear != 0 {
		baseYear = s.BaseYear
	}
	if s.TargetIndex == 0 {
		targetYear = s.TargetYear
	}
	opts, err := costing.IndexOptionsForYears(baseYear, targetYear)
	if err != nil {
		return costing.DefaultIndexOptions(), err
	}

	if s.BaseIndex > 0 {
		opts.BaseYear, opts.BaseIndex = s.BaseYear, s.BaseIndex
	}
	if s.TargetIndex > 0 {
		opts.TargetYear, opts.TargetIndex = s.TargetYear, s.TargetIndex
	}
	return opts, nil
}

package acquisition

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"process-capex/decision/costing"
	"process-capex/pkg/equipment"
	"process-capex/pkg/units"
)

// Conversion names the canonical unit a reading is normalized to.
type Conversion struct {
	Family units.Family
	Unit   string
	// Delta converts pressure as a difference, without the gauge offset.
	Delta bool
}

// Canonical conversions of the cost engine.
var (
	ToKilowatt     = Conversion{Family: units.FamilyPower, Unit: "kW"}
	ToCubicMPerS   = Conversion{Family: units.FamilyVolumeFlow, Unit: "m3/s"}
	ToBarAbsolute  = Conversion{Family: units.FamilyPressure, Unit: "bar"}
	ToBarDelta     = Conversion{Family: units.FamilyPressure, Unit: "bar", Delta: true}
	ToWatt         = Conversion{Family: units.FamilyHeatDuty, Unit: "W"}
	ToWattPerSqmK  = Conversion{Family: units.FamilyHeatTransfer, Unit: "W/m2K"}
	ToKelvin       = Conversion{Family: units.FamilyDeltaT, Unit: "K"}
	ToSquareMeters = Conversion{Family: units.FamilyArea, Unit: "m2"}
)

func (c Conversion) key() string {
	if c.Delta {
		return "delta " + c.Unit
	}
	return c.Unit
}

func (c Conversion) apply(q Quantity) (float64, error) {
	if c.Delta {
		return units.ToBarDelta(q.Value, q.Unit)
	}
	return units.Convert(c.Family, q.Value, q.Unit)
}

// Extractor normalizes readings from a Reader, memoizing them in an
// optional caller-owned Cache.
type Extractor struct {
	reader Reader
	cache  *Cache
	logger zerolog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithCache memoizes readings in c.
func WithCache(c *Cache) ExtractorOption {
	return func(x *Extractor) { x.cache = c }
}

// WithLogger sets the extractor logger.
func WithLogger(l zerolog.Logger) ExtractorOption {
	return func(x *Extractor) { x.logger = l }
}

// NewExtractor creates an extractor over r.
func NewExtractor(r Reader, opts ...ExtractorOption) *Extractor {
	x := &Extractor{reader: r, logger: zerolog.Nop()}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Value returns the normalized reading at path, or nil when the device has
// none. Unknown or missing units fail with a UNIT_CONVERSION error.
func (x *Extractor) Value(ctx context.Context, device, path string, conv Conversion) (*float64, error) {
	key := Key{Device: device, Path: path, Unit: conv.key()}
	if x.cache != nil {
		if v, ok := x.cache.Get(key); ok {
			return &v, nil
		}
	}

	q, ok, err := x.reader.Read(ctx, device, path)
	if err != nil {
		return nil, fmt.Errorf("read %s of %s: %w", path, device, err)
	}
	if !ok {
		return nil, nil
	}
	v, err := conv.apply(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	x.logger.Debug().
		Str("device", device).
		Str("path", path).
		Float64("raw", q.Value).
		Str("raw_unit", q.Unit).
		Float64("value", v).
		Str("unit", conv.Unit).
		Msg("Normalized reading")

	if x.cache != nil {
		x.cache.Put(key, v)
	}
	return &v, nil
}

// forget drops the cached readings of a device that could not be sized, so
// a corrected file read through the same cache starts clean.
func (x *Extractor) forget(device string) {
	if x.cache != nil {
		x.cache.Invalidate(device)
	}
}

func (x *Extractor) logStats() {
	if x.cache == nil {
		return
	}
	hits, misses := x.cache.Stats()
	x.logger.Debug().
		Int("hits", hits).
		Int("misses", misses).
		Int("entries", x.cache.Len()).
		Msg("Reading cache")
}

// Inputs builds the sizing bundle of one device. Readings come through the
// Reader; materials, factor overrides and the stage list come from spec.
func (x *Extractor) Inputs(ctx context.Context, spec DeviceSpec) (costing.CostInputs, error) {
	var in costing.CostInputs
	var err error

	fields := []struct {
		path string
		conv Conversion
		dst  **float64
	}{
		{PathPower, ToKilowatt, &in.PowerKW},
		{PathFlow, ToCubicMPerS, &in.VolumetricFlowM3S},
		{PathPressure, ToBarAbsolute, &in.PressureBar},
		{PathInletPressure, ToBarAbsolute, &in.InletPressureBar},
		{PathPressureDelta, ToBarDelta, &in.PressureDeltaBar},
		{PathDuty, ToWatt, &in.HeatDutyW},
		{PathU, ToWattPerSqmK, &in.HeatTransferCoefficient},
		{PathLMTD, ToKelvin, &in.LMTDK},
		{PathArea, ToSquareMeters, &in.AreaM2},
	}
	for _, f := range fields {
		if *f.dst, err = x.Value(ctx, spec.Name, f.path, f.conv); err != nil {
			return in, err
		}
	}

	if in.ShellMaterial, err = optionalMaterial(spec.ShellMaterial); err != nil {
		return in, err
	}
	if in.TubeMaterial, err = optionalMaterial(spec.TubeMaterial); err != nil {
		return in, err
	}
	in.MaterialFactor = spec.MaterialFactor
	in.PressureFactor = spec.PressureFactor
	in.BareModuleFactor = spec.BareModuleFactor

	for _, st := range spec.Stages {
		stage := costing.Stage{Index: st.Index}
		stageFields := []struct {
			field string
			conv  Conversion
			dst   **float64
		}{
			{StagePower, ToKilowatt, &stage.PowerKW},
			{StageOutletPressure, ToBarAbsolute, &stage.OutletPressureBar},
			{StageCoolerDuty, ToWatt, &stage.CoolerDutyW},
			{StageCoolerLMTD, ToKelvin, &stage.CoolerLMTDK},
		}
		for _, f := range stageFields {
			if *f.dst, err = x.Value(ctx, spec.Name, StagePath(st.Index, f.field), f.conv); err != nil {
				return in, err
			}
		}
		in.Stages = append(in.Stages, stage)
	}
	return in, nil
}

func optionalMaterial(s string) (equipment.Material, error) {
	if s == "" {
		return "", nil
	}
	return equipment.ParseMaterial(s)
}

// Package equipment defines the equipment categories, subtypes and materials
// understood by the costing engine.
package equipment

import (
	"sort"
	"strings"

	costerrors "process-capex/pkg/errors"
)

// Category is the costing family of a device.
type Category string

const (
	Pump                 Category = "pump"
	Compressor           Category = "compressor"
	Turbine              Category = "turbine"
	Fan                  Category = "fan"
	MultiStageCompressor Category = "multistage_compressor"
	HeatExchanger        Category = "heat_exchanger"
)

// Categories lists every costable category in report order.
var Categories = []Category{Pump, Compressor, Turbine, Fan, MultiStageCompressor, HeatExchanger}

var categoryAliases = map[string]Category{
	"pump":                   Pump,
	"compressor":             Compressor,
	"compr":                  Compressor,
	"turbine":                Turbine,
	"fan":                    Fan,
	"blower":                 Fan,
	"multistage_compressor":  MultiStageCompressor,
	"multi-stage compressor": MultiStageCompressor,
	"multistage compressor":  MultiStageCompressor,
	"mcompr":                 MultiStageCompressor,
	"heat_exchanger":         HeatExchanger,
	"heat exchanger":         HeatExchanger,
	"heatx":                  HeatExchanger,
}

// ParseCategory accepts canonical names and common simulator spellings.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", costerrors.NewUnsupportedConfigurationError("unknown equipment category %q", s)
}

// Label is the human readable name used in reports.
func (c Category) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// Subtype selects a correlation within a category.
type Subtype string

const (
	// pumps
	PumpCentrifugal          Subtype = "centrifugal"
	PumpReciprocating        Subtype = "reciprocating"
	PumpPositiveDisplacement Subtype = "positive_displacement"

	// compressors
	CompressorCentrifugal   Subtype = "centrifugal"
	CompressorAxial         Subtype = "axial"
	CompressorReciprocating Subtype = "reciprocating"
	CompressorRotary        Subtype = "rotary"

	// turbines
	TurbineAxial  Subtype = "axial"
	TurbineRadial Subtype = "radial"

	// fans
	FanCentrifugalRadial         Subtype = "centrifugal_radial"
	FanCentrifugalBackwardCurved Subtype = "centrifugal_backward_curved"
	FanAxialTubeaxial            Subtype = "axial_tubeaxial"
	FanAxialVaneless             Subtype = "axial_vaneless"

	// heat exchangers
	HXDoublePipe      Subtype = "double_pipe"
	HXMultiplePipe    Subtype = "multiple_pipe"
	HXFixedTube       Subtype = "fixed_tube"
	HXFloatingHead    Subtype = "floating_head"
	HXBayonet         Subtype = "bayonet"
	HXKettleReboiler  Subtype = "kettle_reboiler"
	HXScrapedWall     Subtype = "scraped_wall"
	HXTeflonTube      Subtype = "teflon_tube"
	HXAirCooler       Subtype = "air_cooler"
	HXSpiralTubeShell Subtype = "spiral_tube_shell"
	HXSpiralPlate     Subtype = "spiral_plate"
	HXFlatPlate       Subtype = "flat_plate"
)

// DefaultSubtype is used when neither the caller nor an override names one.
func DefaultSubtype(c Category) Subtype {
	switch c {
	case Pump:
		return PumpCentrifugal
	case Compressor, MultiStageCompressor:
		return CompressorCentrifugal
	case Turbine:
		return TurbineAxial
	case Fan:
		return FanCentrifugalRadial
	case HeatExchanger:
		return HXFixedTube
	}
	return ""
}

// Material is a material of construction.
type Material string

const (
	CS         Material = "CS"
	SS         Material = "SS"
	Ni         Material = "Ni"
	Cu         Material = "Cu"
	Cl         Material = "Cl"
	Ti         Material = "Ti"
	Fiberglass Material = "Fiberglass"
	Al         Material = "Al"
)

// Materials lists every known material.
var Materials = []Material{CS, SS, Ni, Cu, Cl, Ti, Fiberglass, Al}

// ParseMaterial is case-insensitive and accepts a few long names.
func ParseMaterial(s string) (Material, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "carbon steel":
		return CS, nil
	case "stainless", "stainless steel":
		return SS, nil
	case "nickel":
		return Ni, nil
	case "copper":
		return Cu, nil
	case "cast iron":
		return Cl, nil
	case "titanium":
		return Ti, nil
	case "aluminum", "aluminium":
		return Al, nil
	}
	for _, m := range Materials {
		if strings.ToLower(string(m)) == key {
			return m, nil
		}
	}
	return "", costerrors.NewUnsupportedConfigurationError("unknown material %q", s)
}

// SortedMaterials returns materials in lexical order.
func SortedMaterials(ms []Material) []Material {
	out := append([]Material(nil), ms...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

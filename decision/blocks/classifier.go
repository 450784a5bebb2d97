// Package blocks detects equipment categories of simulator blocks from their
// declared record type, falling back to naming conventions.
package blocks

import (
	"sort"
	"strings"
	"unicode"

	"process-capex/pkg/confidence"
	"process-capex/pkg/equipment"
)

// Kind is the detected kind of a block. Only some kinds can be costed.
type Kind string

const (
	KindPump                 Kind = "pump"
	KindCompressor           Kind = "compressor"
	KindMultiStageCompressor Kind = "multistage_compressor"
	KindTurbine              Kind = "turbine"
	KindFan                  Kind = "fan"
	KindHeatExchanger        Kind = "heat_exchanger"
	KindColumn               Kind = "column"
	KindReactor              Kind = "reactor"
	KindVacuum               Kind = "vacuum_system"
	KindEvaporator           Kind = "evaporator"
	KindSeparator            Kind = "separator"
	KindMixer                Kind = "mixer"
	KindSplitter             Kind = "splitter"
	KindValve                Kind = "valve"
	KindUtility              Kind = "utility"
	KindUnknown              Kind = "unknown"
)

var costable = map[Kind]equipment.Category{
	KindPump:                 equipment.Pump,
	KindCompressor:           equipment.Compressor,
	KindMultiStageCompressor: equipment.MultiStageCompressor,
	KindTurbine:              equipment.Turbine,
	KindFan:                  equipment.Fan,
	KindHeatExchanger:        equipment.HeatExchanger,
}

// Category returns the costing category of k, if it has one.
func (k Kind) Category() (equipment.Category, bool) {
	c, ok := costable[k]
	return c, ok
}

// Detection methods.
const (
	MethodRecordType = "record_type"
	MethodNamePrefix = "name_prefix"
	MethodNone       = "none"
)

// Detection confidences.
const (
	RecordTypeConfidence    = 0.9
	HeatExchangerConfidence = 0.95
	NamePrefixConfidence    = 0.6
)

var recordTypes = map[string]Kind{
	"heatx":      KindHeatExchanger,
	"heater":     KindHeatExchanger,
	"cooler":     KindHeatExchanger,
	"condenser":  KindHeatExchanger,
	"reboiler":   KindHeatExchanger,
	"radfrac":    KindColumn,
	"distl":      KindColumn,
	"dwstu":      KindColumn,
	"column":     KindColumn,
	"tower":      KindColumn,
	"rstoic":     KindReactor,
	"rplug":      KindReactor,
	"rcstr":      KindReactor,
	"rbatch":     KindReactor,
	"requil":     KindReactor,
	"ryield":     KindReactor,
	"pump":       KindPump,
	"compr":      KindCompressor,
	"mcompr":     KindMultiStageCompressor,
	"vacuum":     KindVacuum,
	"ejector":    KindVacuum,
	"flash":      KindEvaporator,
	"flash2":     KindEvaporator,
	"flash3":     KindEvaporator,
	"evaporator": KindEvaporator,
	"evap1":      KindEvaporator,
	"evap2":      KindEvaporator,
	"evap3":      KindEvaporator,
	"sep":        KindSeparator,
	"sep2":       KindSeparator,
	"decanter":   KindSeparator,
	"filter":     KindSeparator,
	"centrifuge": KindSeparator,
	"mixer":      KindMixer,
	"blender":    KindMixer,
	"fsplit":     KindSplitter,
	"splitter":   KindSplitter,
	"valve":      KindValve,
	"utility":    KindUtility,
}

type prefixRule struct {
	prefix string
	kind   Kind
}

// Longest prefixes first.
var namePrefixes = []prefixRule{
	{"SPLIT", KindSplitter},
	{"EVAP", KindEvaporator},
	{"UTIL", KindUtility},
	{"COL", KindColumn},
	{"VAC", KindVacuum},
	{"SEP", KindSeparator},
	{"MIX", KindMixer},
	{"MC", KindMultiStageCompressor},
	{"P", KindPump},
	{"C", KindCompressor},
	{"K", KindCompressor},
	{"E", KindHeatExchanger},
	{"T", KindTurbine},
	{"F", KindFan},
	{"R", KindReactor},
	{"V", KindValve},
}

// Block is one simulator block. RecordType may be empty.
type Block struct {
	Name       string `json:"name"`
	RecordType string `json:"record_type,omitempty"`
}

// Detection is the classification of one block.
type Detection struct {
	Name       string             `json:"name"`
	RecordType string             `json:"record_type,omitempty"`
	Kind       Kind               `json:"kind"`
	Category   equipment.Category `json:"category,omitempty"`
	Costable   bool               `json:"costable"`
	Method     string             `json:"method"`
	Confidence float64            `json:"confidence"`
	// Conflict is set when record type and name prefix disagree.
	Conflict bool `json:"conflict,omitempty"`
}

// Classify detects the kind of one block. A recognized record type wins over
// the name; a disagreeing name lowers the confidence.
func Classify(b Block) Detection {
	d := Detection{Name: b.Name, RecordType: b.RecordType, Kind: KindUnknown, Method: MethodNone, Confidence: confidence.Unknown}

	byName, nameOK := KindFromName(b.Name)
	if k, ok := KindFromRecordType(b.RecordType); ok {
		d.Kind, d.Method = k, MethodRecordType
		d.Confidence = RecordTypeConfidence
		if k == KindHeatExchanger {
			d.Confidence = HeatExchangerConfidence
		}
		if nameOK && !compatible(byName, k) {
			d.Conflict = true
			d.Confidence = confidence.Decay(d.Confidence, 1)
		}
	} else if nameOK {
		d.Kind, d.Method, d.Confidence = byName, MethodNamePrefix, NamePrefixConfidence
	}

	d.Category, d.Costable = d.Kind.Category()
	return d
}

// compatible treats the pressure changers as one family, since pressure data
// reclassifies them at costing time.
func compatible(a, b Kind) bool {
	if a == b {
		return true
	}
	return pressureChanger(a) && pressureChanger(b)
}

func pressureChanger(k Kind) bool {
	switch k {
	case KindCompressor, KindMultiStageCompressor, KindTurbine, KindFan:
		return true
	}
	return false
}

// KindFromRecordType maps a simulator record type such as "HeatX" or
// "Compr-1" to a kind. Matching ignores case and a trailing "-N" suffix.
func KindFromRecordType(recordType string) (Kind, bool) {
	rt := strings.ToLower(strings.TrimSpace(recordType))
	if i := strings.LastIndexByte(rt, '-'); i > 0 && isDigits(rt[i+1:]) {
		rt = rt[:i]
	}
	k, ok := recordTypes[rt]
	return k, ok
}

// KindFromName applies plant naming conventions: P-101 is a pump, E01 a heat
// exchanger, MC1 a multistage compressor. The prefix must be followed by a
// digit or a separator.
func KindFromName(name string) (Kind, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for _, r := range namePrefixes {
		if !strings.HasPrefix(n, r.prefix) {
			continue
		}
		rest := n[len(r.prefix):]
		if rest == "" {
			continue
		}
		if c := rune(rest[0]); unicode.IsDigit(c) || c == '-' || c == '_' {
			return r.kind, true
		}
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

// ClassifyAll classifies blocks in order.
func ClassifyAll(blocks []Block) []Detection {
	out := make([]Detection, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, Classify(b))
	}
	return out
}

// Group returns block names per kind, each list sorted.
func Group(ds []Detection) map[Kind][]string {
	out := make(map[Kind][]string)
	for _, d := range ds {
		out[d.Kind] = append(out[d.Kind], d.Name)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

// DeviceMap returns name -> category for costable detections. Other blocks
// are left out of the batch.
func DeviceMap(ds []Detection) map[string]equipment.Category {
	out := make(map[string]equipment.Category)
	for _, d := range ds {
		if d.Costable {
			out[d.Name] = d.Category
		}
	}
	return out
}

// Package acquisition turns device data files into typed batch requests.
// Raw readings carry their own unit symbols and are normalized through
// pkg/units before they reach the cost engine.
package acquisition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	costerrors "process-capex/pkg/errors"
)

// Quantity is a raw reading with its unit symbol. In files it is written
// either as a mapping {value: 50, unit: kW} or as the string "50 kW".
type Quantity struct {
	Value float64 `yaml:"value" json:"value"`
	Unit  string  `yaml:"unit" json:"unit"`
}

// ParseQuantity parses "50 kW" or "50".
func ParseQuantity(s string) (Quantity, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return Quantity{}, fmt.Errorf("quantity %q: want \"<value> <unit>\"", s)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("quantity %q: %w", s, err)
	}
	q := Quantity{Value: v}
	if len(fields) == 2 {
		q.Unit = fields[1]
	}
	return q, nil
}

// UnmarshalYAML accepts the mapping and the string form.
func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := ParseQuantity(node.Value)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}
	type plain Quantity
	return node.Decode((*plain)(q))
}

// UnmarshalJSON accepts the object and the string form.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseQuantity(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}
	type plain Quantity
	return json.Unmarshal(data, (*plain)(q))
}

// StageSpec is one compression stage of a multistage compressor.
type StageSpec struct {
	Index          int       `yaml:"index" json:"index"`
	Power          *Quantity `yaml:"power,omitempty" json:"power,omitempty"`
	OutletPressure *Quantity `yaml:"outlet_pressure,omitempty" json:"outlet_pressure,omitempty"`
	CoolerDuty     *Quantity `yaml:"cooler_duty,omitempty" json:"cooler_duty,omitempty"`
	CoolerLMTD     *Quantity `yaml:"cooler_lmtd,omitempty" json:"cooler_lmtd,omitempty"`
}

// DeviceSpec is one device as written in a data file.
type DeviceSpec struct {
	Name       string `yaml:"name" json:"name"`
	Category   string `yaml:"category,omitempty" json:"category,omitempty"`
	RecordType string `yaml:"record_type,omitempty" json:"record_type,omitempty"`
	Subtype    string `yaml:"subtype,omitempty" json:"subtype,omitempty"`
	Material   string `yaml:"material,omitempty" json:"material,omitempty"`

	Power         *Quantity `yaml:"power,omitempty" json:"power,omitempty"`
	Flow          *Quantity `yaml:"flow,omitempty" json:"flow,omitempty"`
	Pressure      *Quantity `yaml:"pressure,omitempty" json:"pressure,omitempty"`
	InletPressure *Quantity `yaml:"inlet_pressure,omitempty" json:"inlet_pressure,omitempty"`
	PressureDelta *Quantity `yaml:"pressure_delta,omitempty" json:"pressure_delta,omitempty"`

	Duty          *Quantity `yaml:"duty,omitempty" json:"duty,omitempty"`
	U             *Quantity `yaml:"u,omitempty" json:"u,omitempty"`
	LMTD          *Quantity `yaml:"lmtd,omitempty" json:"lmtd,omitempty"`
	Area          *Quantity `yaml:"area,omitempty" json:"area,omitempty"`
	ShellMaterial string    `yaml:"shell_material,omitempty" json:"shell_material,omitempty"`
	TubeMaterial  string    `yaml:"tube_material,omitempty" json:"tube_material,omitempty"`

	MaterialFactor   *float64 `yaml:"material_factor,omitempty" json:"material_factor,omitempty"`
	PressureFactor   *float64 `yaml:"pressure_factor,omitempty" json:"pressure_factor,omitempty"`
	BareModuleFactor *float64 `yaml:"bare_module_factor,omitempty" json:"bare_module_factor,omitempty"`

	Stages []StageSpec `yaml:"stages,omitempty" json:"stages,omitempty"`
}

// IndexSpec selects the cost index by year or by value. Values win.
type IndexSpec struct {
	BaseYear    int     `yaml:"base_year,omitempty" json:"base_year,omitempty"`
	BaseIndex   float64 `yaml:"base_index,omitempty" json:"base_index,omitempty"`
	TargetYear  int     `yaml:"target_year,omitempty" json:"target_year,omitempty"`
	TargetIndex float64 `yaml:"target_index,omitempty" json:"target_index,omitempty"`
}

// Overrides are per-device corrections keyed by device name.
type Overrides struct {
	Material map[string]string `yaml:"material,omitempty" json:"material,omitempty"`
	Type     map[string]string `yaml:"type,omitempty" json:"type,omitempty"`
	Subtype  map[string]string `yaml:"subtype,omitempty" json:"subtype,omitempty"`
}

// DeviceFile is a project data file.
type DeviceFile struct {
	Project         string       `yaml:"project,omitempty" json:"project,omitempty"`
	DefaultMaterial string       `yaml:"default_material,omitempty" json:"default_material,omitempty"`
	Index           IndexSpec    `yaml:"index,omitempty" json:"index,omitempty"`
	Devices         []DeviceSpec `yaml:"devices" json:"devices"`
	Overrides       Overrides    `yaml:"overrides,omitempty" json:"overrides,omitempty"`
}

// Load reads a device file. JSON is accepted as well since it is valid YAML.
func Load(path string) (*DeviceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading device file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a device file and checks device names and stage indexes.
func Parse(r io.Reader) (*DeviceFile, error) {
	var df DeviceFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&df); err != nil {
		return nil, fmt.Errorf("parsing device file: %w", err)
	}

	seen := make(map[string]bool, len(df.Devices))
	for i, d := range df.Devices {
		if d.Name == "" {
			return nil, fmt.Errorf("device %d has no name", i)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate device %q", d.Name)
		}
		seen[d.Name] = true
		if err := checkStages(d); err != nil {
			return nil, err
		}
	}
	return &df, nil
}

// checkStages rejects a stage index listed twice; readings are looked up
// by index, so the later stage would be lost.
func checkStages(d DeviceSpec) error {
	seen := make(map[int]bool, len(d.Stages))
	for _, st := range d.Stages {
		if seen[st.Index] {
			return costerrors.NewInputValidationError("stage %d is listed more than once", st.Index).WithDevice(d.Name)
		}
		seen[st.Index] = true
	}
	return nil
}

package acquisition

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Reading paths understood by every Reader.
const (
	PathPower         = "power"
	PathFlow          = "flow"
	PathPressure      = "pressure"
	PathInletPressure = "inlet_pressure"
	PathPressureDelta = "pressure_delta"
	PathDuty          = "duty"
	PathU             = "u"
	PathLMTD          = "lmtd"
	PathArea          = "area"

	StagePower          = "power"
	StageOutletPressure = "outlet_pressure"
	StageCoolerDuty     = "cooler_duty"
	StageCoolerLMTD     = "cooler_lmtd"
)

// StagePath addresses a reading of one compression stage.
func StagePath(stage int, field string) string {
	return fmt.Sprintf("stages/%d/%s", stage, field)
}

// Reader is the data-acquisition collaborator. It returns the raw reading
// at path for a device; ok is false when the device has no such reading.
type Reader interface {
	Read(ctx context.Context, device, path string) (q Quantity, ok bool, err error)
}

// FileSource serves readings from a parsed device file.
type FileSource struct {
	devices map[string]*DeviceSpec
	reads   atomic.Int64
}

// NewFileSource indexes the devices of df by name.
func NewFileSource(df *DeviceFile) *FileSource {
	s := &FileSource{devices: make(map[string]*DeviceSpec, len(df.Devices))}
	for i := range df.Devices {
		s.devices[df.Devices[i].Name] = &df.Devices[i]
	}
	return s
}

// Reads counts Read calls, for checking cache effectiveness.
func (s *FileSource) Reads() int {
	return int(s.reads.Load())
}

// Read implements Reader.
func (s *FileSource) Read(ctx context.Context, device, path string) (Quantity, bool, error) {
	if err := ctx.Err(); err != nil {
		return Quantity{}, false, err
	}
	s.reads.Add(1)

	d, ok := s.devices[device]
	if !ok {
		return Quantity{}, false, fmt.Errorf("device %q not found", device)
	}

	var q *Quantity
	switch path {
	case PathPower:
		q = d.Power
	case PathFlow:
		q = d.Flow
	case PathPressure:
		q = d.Pressure
	case PathInletPressure:
		q = d.InletPressure
	case PathPressureDelta:
		q = d.PressureDelta
	case PathDuty:
		q = d.Duty
	case PathU:
		q = d.U
	case PathLMTD:
		q = d.LMTD
	case PathArea:
		q = d.Area
	default:
		q = stageReading(d, path)
	}
	if q == nil {
		return Quantity{}, false, nil
	}
	return *q, true, nil
}

func stageReading(d *DeviceSpec, path string) *Quantity {
	for i := range d.Stages {
		st := &d.Stages[i]
		switch path {
		case StagePath(st.Index, StagePower):
			return st.Power
		case StagePath(st.Index, StageOutletPressure):
			return st.OutletPressure
		case StagePath(st.Index, StageCoolerDuty):
			return st.CoolerDuty
		case StagePath(st.Index, StageCoolerLMTD):
			return st.CoolerLMTD
		}
	}
	return nil
}

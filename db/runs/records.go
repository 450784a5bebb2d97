// Package runs maps batch results to the rows persisted by the run stores
package runs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"process-capex/decision/estimation"
)

// RunRecord is one batch run
type RunRecord struct {
	ID              uuid.UUID       `ch:"id" db:"id" json:"id"`
	Project         string          `ch:"project" db:"project" json:"project"`
	EstimatedAt     time.Time       `ch:"estimated_at" db:"estimated_at" json:"estimated_at"`
	BaseYear        int64           `ch:"base_year" db:"base_year" json:"base_year"`
	BaseIndex       float64         `ch:"base_index" db:"base_index" json:"base_index"`
	TargetYear      int64           `ch:"target_year" db:"target_year" json:"target_year"`
	TargetIndex     float64         `ch:"target_index" db:"target_index" json:"target_index"`
	DefaultMaterial string          `ch:"default_material" db:"default_material" json:"default_material"`
	Purchased       decimal.Decimal `ch:"purchased" db:"purchased" json:"purchased"`
	PurchasedAdj    decimal.Decimal `ch:"purchased_adj" db:"purchased_adj" json:"purchased_adj"`
	BareModule      decimal.Decimal `ch:"bare_module" db:"bare_module" json:"bare_module"`
	Devices         int64           `ch:"devices" db:"devices" json:"devices"`
	Failed          int64           `ch:"failed" db:"failed" json:"failed"`
	Confidence      float64         `ch:"confidence" db:"confidence" json:"confidence"`
	Incomplete      bool            `ch:"incomplete" db:"incomplete" json:"incomplete"`
	ResultHash      string          `ch:"result_hash" db:"result_hash" json:"result_hash"`
}

// DeviceRecord is one device of a run, costed or failed
type DeviceRecord struct {
	RunID        uuid.UUID       `ch:"run_id" db:"run_id" json:"run_id"`
	Position     int64           `ch:"position" db:"position" json:"position"`
	Name         string          `ch:"name" db:"name" json:"name"`
	Category     string          `ch:"category" db:"category" json:"category"`
	Subtype      string          `ch:"subtype" db:"subtype" json:"subtype"`
	Material     string          `ch:"material" db:"material" json:"material"`
	Size         float64         `ch:"size" db:"size" json:"size"`
	SizeUnit     string          `ch:"size_unit" db:"size_unit" json:"size_unit"`
	Units        int64           `ch:"units" db:"units" json:"units"`
	FM           float64         `ch:"f_m" db:"f_m" json:"f_m"`
	FP           float64         `ch:"f_p" db:"f_p" json:"f_p"`
	FBM          float64         `ch:"f_bm" db:"f_bm" json:"f_bm"`
	Purchased    decimal.Decimal `ch:"purchased" db:"purchased" json:"purchased"`
	PurchasedAdj decimal.Decimal `ch:"purchased_adj" db:"purchased_adj" json:"purchased_adj"`
	BareModule   decimal.Decimal `ch:"bare_module" db:"bare_module" json:"bare_module"`
	Provisional  bool            `ch:"provisional" db:"provisional" json:"provisional"`
	Extrapolated bool            `ch:"extrapolated" db:"extrapolated" json:"extrapolated"`
	Confidence   float64         `ch:"confidence" db:"confidence" json:"confidence"`
	ErrorCode    string          `ch:"error_code" db:"error_code" json:"error_code,omitempty"`
	ErrorMessage string          `ch:"error_message" db:"error_message" json:"error_message,omitempty"`
}

// CategoryHistory is the bare-module total of one category on one day
type CategoryHistory struct {
	Day        time.Time `db:"day" json:"day"`
	Category   string    `db:"category" json:"category"`
	BareModule float64   `db:"bare_module" json:"bare_module"`
	Devices    uint64    `db:"devices" json:"devices"`
}

// Recorder persists runs. Both run stores implement it.
type Recorder interface {
	SaveRun(ctx context.Context, run RunRecord, devices []DeviceRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	ListProjectRuns(ctx context.Context, project string, limit int) ([]RunRecord, error)
	GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error)
	// FindRunByHash returns the latest run of a project with the given
	// result hash, or nil.
	FindRunByHash(ctx context.Context, project, hash string) (*RunRecord, error)
	DeviceRows(ctx context.Context, runID uuid.UUID) ([]DeviceRecord, error)
	CategoryTrend(ctx context.Context, project string, since time.Time) ([]CategoryHistory, error)
	Close() error
}

// FromResult builds the rows of a batch result. Costed devices come first in
// batch order, then failed devices.
func FromResult(project string, res *estimation.EstimationResult) (RunRecord, []DeviceRecord) {
	idx := res.AuditTrail.Index
	run := RunRecord{
		ID:              res.RunID,
		Project:         project,
		EstimatedAt:     res.AuditTrail.EstimatedAt,
		BaseYear:        int64(idx.BaseYear),
		BaseIndex:       idx.BaseIndex,
		TargetYear:      int64(idx.TargetYear),
		TargetIndex:     idx.TargetIndex,
		DefaultMaterial: string(res.AuditTrail.DefaultMaterial),
		Purchased:       res.Totals.Purchased.Round(2),
		PurchasedAdj:    res.Totals.PurchasedAdj.Round(2),
		BareModule:      res.Totals.BareModule.Round(2),
		Devices:         int64(res.DevicesProcessed),
		Failed:          int64(res.DevicesFailed),
		Confidence:      res.Confidence,
		Incomplete:      res.IsIncomplete,
	}

	devices := make([]DeviceRecord, 0, len(res.Devices)+len(res.Errors))
	for _, d := range res.Devices {
		devices = append(devices, DeviceRecord{
			RunID:        res.RunID,
			Position:     int64(len(devices)),
			Name:         d.Name,
			Category:     string(d.Category),
			Subtype:      string(d.Subtype),
			Material:     string(d.Material),
			Size:         d.Size,
			SizeUnit:     d.SizeUnit,
			Units:        int64(d.Units),
			FM:           d.Factors.Material,
			FP:           d.Factors.Pressure,
			FBM:          d.Factors.BareModule,
			Purchased:    decimal.NewFromFloat(d.Costs.Purchased).Round(2),
			PurchasedAdj: decimal.NewFromFloat(d.Costs.PurchasedAdj).Round(2),
			BareModule:   decimal.NewFromFloat(d.Costs.BareModule).Round(2),
			Provisional:  d.Provisional,
			Extrapolated: d.Extrapolated,
			Confidence:   d.Confidence,
		})
	}
	for _, e := range res.Errors {
		devices = append(devices, DeviceRecord{
			RunID:        res.RunID,
			Position:     int64(len(devices)),
			Name:         e.Device,
			Category:     string(e.Category),
			Subtype:      string(e.Subtype),
			Purchased:    decimal.Zero,
			PurchasedAdj: decimal.Zero,
			BareModule:   decimal.Zero,
			ErrorCode:    e.Code,
			ErrorMessage: e.Message,
		})
	}

	run.ResultHash = hashDevices(devices)
	return run, devices
}

// hashDevices fingerprints the device rows so identical reruns can be found.
func hashDevices(devices []DeviceRecord) string {
	lines := make([]string, 0, len(devices))
	for _, d := range devices {
		lines = append(lines, fmt.Sprintf("%s|%s|%s|%s|%g|%s|%s",
			d.Name, d.Category, d.Subtype, d.Material, d.Size, d.BareModule.StringFixed(2), d.ErrorCode))
	}
	sort.Strings(lines)

	h := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h[:])
}

// Saved is the outcome of Save.
type Saved struct {
	Run RunRecord `json:"run"`
	// RerunOf is the latest earlier run of the project with the same
	// result hash, if any.
	RerunOf *RunRecord `json:"rerun_of,omitempty"`
}

// Save builds the rows of res and stores them through r. The run is stored
// even when it repeats an earlier one.
func Save(ctx context.Context, r Recorder, project string, res *estimation.EstimationResult) (Saved, error) {
	run, devices := FromResult(project, res)
	saved := Saved{Run: run}

	prev, err := r.FindRunByHash(ctx, project, run.ResultHash)
	if err != nil {
		return saved, fmt.Errorf("look up reruns of %s: %w", project, err)
	}
	saved.RerunOf = prev

	if err := r.SaveRun(ctx, run, devices); err != nil {
		return saved, fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return saved, nil
}

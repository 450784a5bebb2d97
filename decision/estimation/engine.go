// Package estimation runs batches of devices through the cost evaluator.
// One failing device never aborts the batch; it becomes an error entry and
// the totals cover the devices that were costed.
package estimation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"process-capex/decision/costing"
	"process-capex/pkg/confidence"
	"process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
)

// Engine is the batch orchestrator.
type Engine struct {
	evaluator *costing.Evaluator
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-device failures.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now in the audit trail.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a new batch engine
func NewEngine(evaluator *costing.Evaluator, opts ...Option) *Engine {
	e := &Engine{
		evaluator: evaluator,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluator returns the single-device evaluator behind the engine.
func (e *Engine) Evaluator() *costing.Evaluator {
	return e.evaluator
}

// Device is one entry of the batch in evaluation order.
type Device struct {
	Name     string             `json:"name"`
	Category equipment.Category `json:"category"`
}

// NewDeviceList turns a name -> category map into a batch ordered by name,
// so that repeated runs produce identical ordering and totals.
func NewDeviceList(m map[string]equipment.Category) []Device {
	out := make([]Device, 0, len(m))
	for name, c := range m {
		out = append(out, Device{Name: name, Category: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EstimationRequest contains inputs for a batch
type EstimationRequest struct {
	Devices []Device                      `json:"devices"`
	Inputs  map[string]costing.CostInputs `json:"inputs"`

	// Per-device overrides keyed by device name.
	MaterialOverrides map[string]equipment.Material `json:"material_overrides,omitempty"`
	TypeOverrides     map[string]equipment.Category `json:"type_overrides,omitempty"`
	SubtypeOverrides  map[string]equipment.Subtype  `json:"subtype_overrides,omitempty"`

	DefaultMaterial equipment.Material       `json:"default_material,omitempty"`
	Index           costing.CostIndexOptions `json:"index"`

	// AllowBelowMinimum extrapolates undersized devices instead of
	// reporting them under limit.
	AllowBelowMinimum bool `json:"allow_below_minimum,omitempty"`

	// InputErrors are failures of data acquisition, reported as device
	// errors without evaluating the device.
	InputErrors map[string]error `json:"-"`
}

// Totals are the summed cost fields of a set of devices.
type Totals struct {
	Purchased    decimal.Decimal `json:"purchased"`
	PurchasedAdj decimal.Decimal `json:"purchased_adj"`
	BareModule   decimal.Decimal `json:"bare_module"`
	Installed    decimal.Decimal `json:"installed"`
	Devices      int             `json:"devices"`
}

func (t Totals) add(c costing.Costs) Totals {
	return Totals{
		Purchased:    t.Purchased.Add(decimal.NewFromFloat(c.Purchased)),
		PurchasedAdj: t.PurchasedAdj.Add(decimal.NewFromFloat(c.PurchasedAdj)),
		BareModule:   t.BareModule.Add(decimal.NewFromFloat(c.BareModule)),
		Installed:    t.Installed.Add(decimal.NewFromFloat(c.Installed)),
		Devices:      t.Devices + 1,
	}
}

// Round rounds every cost field to places decimals.
func (t Totals) Round(places int32) Totals {
	t.Purchased = t.Purchased.Round(places)
	t.PurchasedAdj = t.PurchasedAdj.Round(places)
	t.BareModule = t.BareModule.Round(places)
	t.Installed = t.Installed.Round(places)
	return t
}

// EstimationResult contains the complete batch output
type EstimationResult struct {
	RunID uuid.UUID `json:"run_id"`

	// Successful devices in batch order.
	Devices []costing.CostResult `json:"devices"`
	Errors  []DeviceError        `json:"errors"`

	Totals     Totals                        `json:"totals"`
	ByCategory map[equipment.Category]Totals `json:"by_category"`

	// Quality metrics
	Confidence     float64 `json:"confidence"`
	CostConfidence float64 `json:"cost_weighted_confidence"`
	IsIncomplete   bool    `json:"is_incomplete"`
	Provisional    int     `json:"provisional_devices"`
	Extrapolated   int     `json:"extrapolated_devices"`

	Warnings   []string   `json:"warnings"`
	AuditTrail AuditTrail `json:"audit_trail"`

	// Statistics
	DevicesProcessed int `json:"devices_processed"`
	DevicesEstimated int `json:"devices_estimated"`
	DevicesFailed    int `json:"devices_failed"`
}

// DeviceError is the report entry of a device that could not be costed.
type DeviceError struct {
	Device   string             `json:"device"`
	Category equipment.Category `json:"category"`
	Subtype  equipment.Subtype  `json:"subtype,omitempty"`
	// Type is the category label shown in reports, "<category> (under limit)"
	// for undersized devices.
	Type        string `json:"type"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// AuditTrail provides reproducibility information
type AuditTrail struct {
	EstimatedAt     time.Time                `json:"estimated_at"`
	Index           costing.CostIndexOptions `json:"index"`
	DefaultMaterial equipment.Material       `json:"default_material"`
	Overrides       int                      `json:"overrides"`
}

// Estimate costs every device of the batch in order.
func (e *Engine) Estimate(ctx context.Context, req EstimationRequest) (*EstimationResult, error) {
	index := req.Index.Normalize()
	if err := index.Validate(); err != nil {
		return nil, err
	}
	defaultMaterial := req.DefaultMaterial
	if defaultMaterial == "" {
		defaultMaterial = equipment.CS
	}

	result := &EstimationResult{
		RunID:      uuid.New(),
		Devices:    make([]costing.CostResult, 0, len(req.Devices)),
		Errors:     make([]DeviceError, 0),
		Totals:     Totals{},
		ByCategory: make(map[equipment.Category]Totals),
		Warnings:   make([]string, 0),
		AuditTrail: AuditTrail{
			EstimatedAt:     e.now().UTC(),
			Index:           index,
			DefaultMaterial: defaultMaterial,
			Overrides:       len(req.MaterialOverrides) + len(req.TypeOverrides) + len(req.SubtypeOverrides),
		},
	}

	var scores, weights []float64

	for _, dev := range req.Devices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.DevicesProcessed++

		costReq := e.request(dev, req, index, defaultMaterial)
		err := req.InputErrors[dev.Name]
		var res *costing.CostResult
		if err == nil {
			res, err = e.evaluator.Evaluate(costReq)
		}
		if err != nil {
			derr := newDeviceError(dev.Name, costReq, err)
			result.Errors = append(result.Errors, derr)
			result.DevicesFailed++
			e.logger.Warn().
				Str("device", dev.Name).
				Str("category", string(costReq.Category)).
				Str("code", derr.Code).
				Msg(derr.Message)
			continue
		}

		result.Devices = append(result.Devices, *res)
		result.DevicesEstimated++
		result.Totals = result.Totals.add(res.Costs)
		result.ByCategory[res.Category] = result.ByCategory[res.Category].add(res.Costs)

		if res.Provisional {
			result.Provisional++
		}
		if res.Extrapolated {
			result.Extrapolated++
		}
		for _, w := range res.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", dev.Name, w))
		}
		scores = append(scores, res.Confidence)
		weights = append(weights, res.Costs.BareModule)
	}

	result.Confidence = confidence.Aggregate(scores)
	result.CostConfidence = confidence.CostWeighted(scores, weights)

	if result.DevicesFailed > 0 {
		result.IsIncomplete = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d of %d devices could not be costed; totals cover the rest", result.DevicesFailed, result.DevicesProcessed))
	}

	return result, nil
}

// request builds the single-device request, applying overrides. A type
// override fixes the category; otherwise pressure data may reclassify it.
func (e *Engine) request(dev Device, req EstimationRequest, index costing.CostIndexOptions, defaultMaterial equipment.Material) costing.Request {
	cr := costing.Request{
		Name:              dev.Name,
		Category:          dev.Category,
		Material:          defaultMaterial,
		Inputs:            req.Inputs[dev.Name],
		Index:             index,
		AutoClassify:      true,
		AllowBelowMinimum: req.AllowBelowMinimum,
	}
	if c, ok := req.TypeOverrides[dev.Name]; ok && c != "" {
		cr.Category = c
		cr.AutoClassify = false
	}
	if s, ok := req.SubtypeOverrides[dev.Name]; ok {
		cr.Subtype = s
	}
	if m, ok := req.MaterialOverrides[dev.Name]; ok && m != "" {
		cr.Material = m
	}
	return cr
}

func newDeviceError(name string, req costing.Request, err error) DeviceError {
	category, subtype := costing.ResolveType(req.Category, req.Subtype, req.Inputs, req.AutoClassify)
	derr := DeviceError{
		Device:   name,
		Category: category,
		Subtype:  subtype,
		Type:     category.Label(),
		Code:     costerrors.Code(err),
		Message:  err.Error(),
	}
	if costerrors.IsBelowMinimum(err) {
		derr.Type = category.Label() + " (under limit)"
		derr.Recoverable = true
	}
	return derr
}

// TopDevices returns up to n successful devices by bare-module cost,
// highest first. Batch order breaks ties.
func (r *EstimationResult) TopDevices(n int) []costing.CostResult {
	out := append([]costing.CostResult(nil), r.Devices...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Costs.BareModule > out[j].Costs.BareModule
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Categories returns the categories present in ByCategory in report order.
func (r *EstimationResult) Categories() []equipment.Category {
	out := make([]equipment.Category, 0, len(r.ByCategory))
	for _, c := range equipment.Categories {
		if _, ok := r.ByCategory[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

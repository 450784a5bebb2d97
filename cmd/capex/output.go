package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"process-capex/db/runs"
	"process-capex/decision/blocks"
	"process-capex/decision/correlation"
	"process-capex/decision/costing"
	"process-capex/decision/estimation"
	"process-capex/decision/policy"
	"process-capex/internal/acquisition"
	"process-capex/pkg/equipment"
)

// report is everything an estimate prints.
type report struct {
	Project  string
	Result   *estimation.EstimationResult
	Policy   *policy.EvaluationResult
	Skipped  []blocks.Detection
	Formulas bool
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

type JSONOutput struct {
	RunID          string                        `json:"run_id"`
	Project        string                        `json:"project,omitempty"`
	Purchased      string                        `json:"purchased"`
	PurchasedAdj   string                        `json:"purchased_adj"`
	BareModule     string                        `json:"bare_module"`
	ByCategory     map[equipment.Category]string `json:"by_category"`
	Confidence     float64                       `json:"confidence"`
	CostConfidence float64                       `json:"cost_weighted_confidence"`
	IsIncomplete   bool                          `json:"is_incomplete"`
	Index          costing.CostIndexOptions      `json:"index"`
	PolicyResult   string                        `json:"policy_result,omitempty"`
	Violations     []policy.Violation            `json:"violations,omitempty"`
	Devices        []costing.CostResult          `json:"devices"`
	Errors         []estimation.DeviceError      `json:"errors"`
	Warnings       []string                      `json:"warnings"`
	Skipped        []blocks.Detection            `json:"skipped,omitempty"`
}

func writeJSON(w io.Writer, r report) error {
	res := r.Result
	devices := res.Devices
	if !r.Formulas {
		devices = make([]costing.CostResult, len(res.Devices))
		for i, d := range res.Devices {
			d.Formula = ""
			devices[i] = d
		}
	}
	byCategory := make(map[equipment.Category]string, len(res.ByCategory))
	for c, t := range res.ByCategory {
		byCategory[c] = t.BareModule.StringFixed(2)
	}

	output := JSONOutput{
		RunID:          res.RunID.String(),
		Project:        r.Project,
		Purchased:      res.Totals.Purchased.StringFixed(2),
		PurchasedAdj:   res.Totals.PurchasedAdj.StringFixed(2),
		BareModule:     res.Totals.BareModule.StringFixed(2),
		ByCategory:     byCategory,
		Confidence:     res.Confidence,
		CostConfidence: res.CostConfidence,
		IsIncomplete:   res.IsIncomplete,
		Index:          res.AuditTrail.Index,
		Devices:        devices,
		Errors:         res.Errors,
		Warnings:       res.Warnings,
		Skipped:        r.Skipped,
	}
	if r.Policy != nil {
		output.PolicyResult = string(r.Policy.Decision)
		output.Violations = r.Policy.Violations
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

const rule = "╠══════════════════════════════════════════════════════════════════════════╣"

func writeTable(w io.Writer, r report) error {
	res := r.Result
	idx := res.AuditTrail.Index

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                       💰 EQUIPMENT COST ESTIMATE                          ║")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "║  Purchased (base):      $%-49s ║\n", res.Totals.Purchased.StringFixed(2))
	fmt.Fprintf(w, "║  Purchased (adjusted):  $%-49s ║\n", res.Totals.PurchasedAdj.StringFixed(2))
	fmt.Fprintf(w, "║  Bare module:           $%-49s ║\n", res.Totals.BareModule.StringFixed(2))
	fmt.Fprintf(w, "║  CEPCI:                 %-50s ║\n", fmt.Sprintf("%.1f -> %.1f (x%.4f)", idx.BaseIndex, targetIndex(idx), idx.Ratio()))
	fmt.Fprintf(w, "║  Confidence:            %-50s ║\n", fmt.Sprintf("%.0f%%", res.Confidence*100))
	fmt.Fprintf(w, "║  Devices:               %-50s ║\n", fmt.Sprintf("%d costed, %d failed", res.DevicesEstimated, res.DevicesFailed))
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w, "║  DEVICE        TYPE                    SIZE             BARE MODULE      ║")
	fmt.Fprintln(w, rule)
	for _, d := range res.Devices {
		size := fmt.Sprintf("%.4g %s", d.Size, d.SizeUnit)
		if d.Units > 1 {
			size = fmt.Sprintf("%s x%d", size, d.Units)
		}
		mark := " "
		if d.Provisional || d.Extrapolated {
			mark = "*"
		}
		fmt.Fprintf(w, "║  %-12s  %-22s  %-15s  $%-15s%s ║\n",
			truncate(d.Name, 12), truncate(string(d.Category)+"/"+string(d.Subtype), 22), truncate(size, 15), money(d.Costs.BareModule), mark)
		if r.Formulas {
			fmt.Fprintf(w, "║      %-67s ║\n", truncate(d.Formula, 67))
		}
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "║  %-12s  %-22s  %-33s ║\n", truncate(e.Device, 12), truncate(e.Type, 22), truncate(e.Code, 33))
	}

	if len(res.ByCategory) > 0 {
		fmt.Fprintln(w, rule)
		for _, c := range res.Categories() {
			t := res.ByCategory[c]
			fmt.Fprintf(w, "║  %-36s  $%-34s ║\n", fmt.Sprintf("%s (%d)", c.Label(), t.Devices), t.BareModule.StringFixed(2))
		}
	}

	if r.Policy != nil {
		fmt.Fprintln(w, rule)
		var policyIcon string
		switch r.Policy.Decision {
		case policy.DecisionPass:
			policyIcon = "✅ PASS"
		case policy.DecisionWarn:
			policyIcon = "⚠️  WARN"
		case policy.DecisionDeny:
			policyIcon = "❌ DENY"
		}
		fmt.Fprintf(w, "║  Policy Result:         %-50s ║\n", policyIcon)
		for _, v := range r.Policy.Violations {
			fmt.Fprintf(w, "║  - %-70s ║\n", truncate(v.Message, 70))
		}
	}
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════════════════╝")

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warn)
	}
	if res.Provisional+res.Extrapolated > 0 {
		fmt.Fprintln(w, "* provisional or extrapolated figure")
	}
	return nil
}

func writeMarkdown(w io.Writer, r report) error {
	res := r.Result
	title := "Equipment Cost Estimate"
	if r.Project != "" {
		title += ": " + r.Project
	}
	fmt.Fprintf(w, "## 💰 %s\n\n", title)
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	fmt.Fprintf(w, "| **Purchased (adjusted)** | $%s |\n", res.Totals.PurchasedAdj.StringFixed(2))
	fmt.Fprintf(w, "| **Bare Module** | $%s |\n", res.Totals.BareModule.StringFixed(2))
	fmt.Fprintf(w, "| **CEPCI** | %.1f -> %.1f |\n", res.AuditTrail.Index.BaseIndex, targetIndex(res.AuditTrail.Index))
	fmt.Fprintf(w, "| **Confidence** | %.0f%% |\n", res.Confidence*100)
	if r.Policy != nil {
		fmt.Fprintf(w, "| **Policy Result** | %s |\n", r.Policy.Decision)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### 📊 Cost Breakdown")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Device | Type | Material | Size | Units | Purchased | Bare Module |")
	fmt.Fprintln(w, "|--------|------|----------|------|-------|-----------|-------------|")
	for _, d := range res.Devices {
		name := d.Name
		if d.Provisional || d.Extrapolated {
			name += " ⚠️"
		}
		fmt.Fprintf(w, "| %s | %s/%s | %s | %.4g %s | %d | $%s | $%s |\n",
			name, d.Category, d.Subtype, d.Material, d.Size, d.SizeUnit, d.Units,
			money(d.Costs.PurchasedAdj), money(d.Costs.BareModule))
	}

	if len(res.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### ❌ Not Costed")
		fmt.Fprintln(w)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "- **%s** (%s): %s\n", e.Device, e.Type, e.Message)
		}
	}

	if r.Policy != nil && len(r.Policy.Violations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### Policy Violations")
		fmt.Fprintln(w)
		for _, v := range r.Policy.Violations {
			fmt.Fprintf(w, "- **%s** (%s): %s\n", v.PolicyName, v.Severity, v.Message)
		}
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### ⚠️ Warnings")
		fmt.Fprintln(w)
		for _, warn := range res.Warnings {
			fmt.Fprintf(w, "- %s\n", warn)
		}
	}
	return nil
}

func targetIndex(o costing.CostIndexOptions) float64 {
	if o.TargetIndex == 0 {
		return o.BaseIndex
	}
	return o.TargetIndex
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// =============================================================================
// LISTINGS
// =============================================================================

func writePreview(w io.Writer, entries []estimation.PreviewEntry, batch *acquisition.Batch) error {
	fmt.Fprintf(w, "%-14s %-22s %-22s %-10s %s\n", "DEVICE", "DECLARED", "RESOLVED", "MATERIAL", "NOTES")
	for _, p := range entries {
		var notes []string
		if p.Reclassified {
			notes = append(notes, "reclassified")
		}
		if p.Overridden {
			notes = append(notes, "type override")
		}
		if err, ok := batch.Request.InputErrors[p.Name]; ok {
			notes = append(notes, "input error: "+err.Error())
		} else if !p.HasInputs {
			notes = append(notes, "no inputs")
		}
		fmt.Fprintf(w, "%-14s %-22s %-22s %-10s %s\n",
			p.Name, p.Declared, string(p.Category)+"/"+string(p.Subtype), p.Material, strings.Join(notes, ", "))
	}
	for _, d := range batch.Skipped {
		fmt.Fprintf(w, "%-14s %-22s %-22s %-10s %s\n", d.Name, d.RecordType, d.Kind, "-", "not costed")
	}
	return nil
}

func writeDetections(w io.Writer, ds []blocks.Detection) error {
	fmt.Fprintf(w, "%-14s %-12s %-20s %-12s %-6s %s\n", "BLOCK", "RECORD TYPE", "KIND", "METHOD", "CONF", "COSTED")
	for _, d := range ds {
		costed := "no"
		if d.Costable {
			costed = "yes"
		}
		if d.Conflict {
			costed += " (name conflict)"
		}
		fmt.Fprintf(w, "%-14s %-12s %-20s %-12s %-6s %s\n",
			d.Name, d.RecordType, d.Kind, d.Method, fmt.Sprintf("%.0f%%", d.Confidence*100), costed)
	}
	return nil
}

func writeCorrelations(w io.Writer, entries []correlation.Entry, only equipment.Category) error {
	fmt.Fprintf(w, "%-22s %-24s %9s %9s %9s %-6s %10s %10s\n", "CATEGORY", "SUBTYPE", "K1", "K2", "K3", "BASIS", "MIN", "MAX")
	for _, e := range entries {
		if only != "" && e.Category != only {
			continue
		}
		k := e.Coefficients
		fmt.Fprintf(w, "%-22s %-24s %9.4f %9.4f %9.4f %-6s %10.4g %10.4g\n",
			e.Category, e.Subtype, k.K1, k.K2, k.K3, k.SizeBasis, e.Limits.Min, e.Limits.Max)
	}
	return nil
}

func writeCEPCI(w io.Writer, table map[int]float64) error {
	years := make([]int, 0, len(table))
	for y := range table {
		years = append(years, y)
	}
	sort.Ints(years)
	fmt.Fprintf(w, "%-6s %s\n", "YEAR", "CEPCI")
	for _, y := range years {
		fmt.Fprintf(w, "%-6d %.1f\n", y, table[y])
	}
	return nil
}

func writePolicies(w io.Writer, ps []policy.Policy) error {
	fmt.Fprintf(w, "%-24s %-22s %-8s %10s %s\n", "ID", "TYPE", "SEVERITY", "THRESHOLD", "ENABLED")
	for _, p := range ps {
		fmt.Fprintf(w, "%-24s %-22s %-8s %10g %t\n", p.ID, p.Type, p.Severity, p.Threshold, p.Enabled)
	}
	return nil
}

func writeRuns(w io.Writer, list []runs.RunRecord) error {
	fmt.Fprintf(w, "%-36s %-16s %-20s %16s %5s\n", "RUN", "PROJECT", "ESTIMATED", "BARE MODULE", "CONF")
	for _, r := range list {
		fmt.Fprintf(w, "%-36s %-16s %-20s %16s %4.0f%%\n",
			r.ID, truncate(r.Project, 16), r.EstimatedAt.Format("2006-01-02 15:04:05"), r.BareModule.StringFixed(2), r.Confidence*100)
	}
	return nil
}

func writeTrend(w io.Writer, trend []runs.CategoryHistory) error {
	if len(trend) == 0 {
		fmt.Fprintln(w, "No stored runs in range")
		return nil
	}
	fmt.Fprintf(w, "%-10s %-22s %16s %7s\n", "DAY", "CATEGORY", "BARE MODULE", "DEVICES")
	for _, h := range trend {
		fmt.Fprintf(w, "%-10s %-22s %16s %7d\n",
			h.Day.Format("2006-01-02"), h.Category, money(h.BareModule), h.Devices)
	}
	return nil
}

func writeRun(w io.Writer, run runs.RunRecord, devices []runs.DeviceRecord) error {
	fmt.Fprintf(w, "Run %s (%s) at %s\n", run.ID, run.Project, run.EstimatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "CEPCI %.1f -> %.1f, bare module $%s, %d devices, %d failed\n\n",
		run.BaseIndex, run.TargetIndex, run.BareModule.StringFixed(2), run.Devices, run.Failed)
	for _, d := range devices {
		if d.ErrorCode != "" {
			fmt.Fprintf(w, "%-14s %-22s %s\n", d.Name, d.Category, d.ErrorCode)
			continue
		}
		fmt.Fprintf(w, "%-14s %-22s %10.4g %-6s $%s\n", d.Name, d.Category+"/"+d.Subtype, d.Size, d.SizeUnit, d.BareModule.StringFixed(2))
	}
	return nil
}

// Package policy evaluates capital budget policies against batch results
package policy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"process-capex/decision/estimation"
	"process-capex/pkg/equipment"
)

// PolicyType defines the type of policy
type PolicyType string

const (
	// PolicyTypeCostLimit caps the total bare-module cost, or the total of
	// one category when Category is set.
	PolicyTypeCostLimit           PolicyType = "cost_limit"
	PolicyTypeConfidenceThreshold PolicyType = "confidence_threshold"
	PolicyTypeIncompleteEstimate  PolicyType = "incomplete_estimate"
	// PolicyTypeProvisionalShare caps the percentage of bare-module cost
	// coming from provisional or extrapolated devices.
	PolicyTypeProvisionalShare PolicyType = "provisional_share"
)

// Severity defines policy violation severity
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Decision is the policy evaluation outcome
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionDeny Decision = "deny"
)

// Policy defines a capital budget rule
type Policy struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Type        PolicyType         `json:"type" yaml:"type"`
	Severity    Severity           `json:"severity" yaml:"severity"`
	Threshold   float64            `json:"threshold" yaml:"threshold"`
	Category    equipment.Category `json:"category,omitempty" yaml:"category,omitempty"`
	Enabled     bool               `json:"enabled" yaml:"enabled"`
}

// Violation represents a policy violation
type Violation struct {
	PolicyID   string   `json:"policy_id"`
	PolicyName string   `json:"policy_name"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
}

// EvaluationResult contains the policy evaluation outcome
type EvaluationResult struct {
	Decision    Decision    `json:"decision"`
	Violations  []Violation `json:"violations"`
	PoliciesRan int         `json:"policies_ran"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Engine evaluates policies against batch results
type Engine struct {
	policies []Policy
}

// NewEngine creates a policy engine with the default policies
func NewEngine() *Engine {
	return &Engine{policies: DefaultPolicies()}
}

// AddPolicy adds a custom policy
func (e *Engine) AddPolicy(p Policy) {
	e.policies = append(e.policies, p)
}

// Policies returns the configured policies.
func (e *Engine) Policies() []Policy {
	return append([]Policy(nil), e.policies...)
}

// Evaluate runs all enabled policies. Warnings turn a pass into warn; any
// error-severity violation denies.
func (e *Engine) Evaluate(est *estimation.EstimationResult) *EvaluationResult {
	result := &EvaluationResult{
		Decision:    DecisionPass,
		Violations:  make([]Violation, 0),
		EvaluatedAt: time.Now().UTC(),
	}

	for _, p := range e.policies {
		if !p.Enabled {
			continue
		}
		result.PoliciesRan++

		msg, violated := evaluatePolicy(p, est)
		if !violated {
			continue
		}
		result.Violations = append(result.Violations, Violation{
			PolicyID:   p.ID,
			PolicyName: p.Name,
			Message:    msg,
			Severity:   p.Severity,
		})
		if p.Severity == SeverityError {
			result.Decision = DecisionDeny
		} else if result.Decision != DecisionDeny {
			result.Decision = DecisionWarn
		}
	}

	return result
}

func evaluatePolicy(p Policy, est *estimation.EstimationResult) (string, bool) {
	switch p.Type {
	case PolicyTypeCostLimit:
		total, scope := est.Totals.BareModule, "Total bare-module cost"
		if p.Category != "" {
			total = est.ByCategory[p.Category].BareModule
			scope = fmt.Sprintf("Bare-module cost of %s devices", p.Category.Label())
		}
		limit := decimal.NewFromFloat(p.Threshold)
		if total.GreaterThan(limit) {
			return fmt.Sprintf("%s ($%s) exceeds limit ($%s)", scope, total.StringFixed(2), limit.StringFixed(2)), true
		}

	case PolicyTypeConfidenceThreshold:
		if est.DevicesEstimated > 0 && est.Confidence < p.Threshold/100 {
			return fmt.Sprintf("Batch confidence (%.0f%%) below threshold (%.0f%%)", est.Confidence*100, p.Threshold), true
		}

	case PolicyTypeIncompleteEstimate:
		if est.IsIncomplete {
			return fmt.Sprintf("%d of %d devices could not be costed", est.DevicesFailed, est.DevicesProcessed), true
		}

	case PolicyTypeProvisionalShare:
		share := provisionalShare(est)
		if share > p.Threshold {
			return fmt.Sprintf("%.1f%% of bare-module cost is provisional or extrapolated (limit %.0f%%)", share, p.Threshold), true
		}
	}

	return "", false
}

// provisionalShare is the percentage of bare-module cost carried by devices
// whose figure is provisional or extrapolated.
func provisionalShare(est *estimation.EstimationResult) float64 {
	if est.Totals.BareModule.IsZero() {
		return 0
	}
	weak := decimal.Zero
	for _, d := range est.Devices {
		if d.Provisional || d.Extrapolated {
			weak = weak.Add(decimal.NewFromFloat(d.Costs.BareModule))
		}
	}
	return weak.Div(est.Totals.BareModule).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// DefaultPolicies warns on weak or incomplete batches.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			ID:          "default-confidence",
			Name:        "Minimum Confidence",
			Description: "Warn when batch confidence is below 70%",
			Type:        PolicyTypeConfidenceThreshold,
			Severity:    SeverityWarning,
			Threshold:   70,
			Enabled:     true,
		},
		{
			ID:          "default-incomplete",
			Name:        "Complete Batch",
			Description: "Warn when any device could not be costed",
			Type:        PolicyTypeIncompleteEstimate,
			Severity:    SeverityWarning,
			Enabled:     true,
		},
		{
			ID:          "default-provisional",
			Name:        "Provisional Share",
			Description: "Warn when more than 25% of the cost rests on provisional or extrapolated figures",
			Type:        PolicyTypeProvisionalShare,
			Severity:    SeverityWarning,
			Threshold:   25,
			Enabled:     true,
		},
	}
}

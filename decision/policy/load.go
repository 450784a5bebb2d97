package policy

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type policyFile struct {
	Policies []Policy `yaml:"policies"`
}

// LoadPolicies reads a YAML policy list:
//
//	policies:
//	  - id: plant-budget
//	    type: cost_limit
//	    severity: error
//	    threshold: 2500000
//	    enabled: true
func LoadPolicies(r io.Reader) ([]Policy, error) {
	var f policyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode policies: %w", err)
	}

	for i, p := range f.Policies {
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("policy %d (%s): %w", i, p.ID, err)
		}
		if f.Policies[i].Name == "" {
			f.Policies[i].Name = p.ID
		}
	}
	return f.Policies, nil
}

func validate(p Policy) error {
	if p.ID == "" {
		return errors.New("missing id")
	}
	switch p.Type {
	case PolicyTypeCostLimit, PolicyTypeConfidenceThreshold, PolicyTypeIncompleteEstimate, PolicyTypeProvisionalShare:
	default:
		return fmt.Errorf("unknown policy type %q", p.Type)
	}
	switch p.Severity {
	case SeverityError, SeverityWarning:
	default:
		return fmt.Errorf("unknown severity %q", p.Severity)
	}
	if p.Threshold < 0 {
		return errors.New("threshold must not be negative")
	}
	return nil
}

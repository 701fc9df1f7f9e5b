package fees

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Percent is a decimal percentage that decodes from a YAML scalar without
// going through float64.
type Percent struct {
	decimal.Decimal
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Percent) UnmarshalYAML(value *yaml.Node) error {
	d, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid percentage %q: %w", value.Line, value.Value, err)
	}
	p.Decimal = d
	return nil
}

type ruleFile struct {
	DefaultRatePercent *Percent `yaml:"default_rate_percent"`
	Rules              []struct {
		ID          string  `yaml:"id"`
		MinAmount   int64   `yaml:"min_amount"`
		MaxAmount   *int64  `yaml:"max_amount"`
		RatePercent Percent `yaml:"rate_percent"`
		Priority    int     `yaml:"priority"`
		Active      *bool   `yaml:"active"`
	} `yaml:"rules"`
}

// ParseRules decodes a fee rule document:
//
//	default_rate_percent: 5
//	rules:
//	  - id: small
//	    min_amount: 0
//	    max_amount: 500000
//	    rate_percent: 10
//	    priority: 10
//
// Rules are active unless "active: false" is given. The returned default rate is
// nil when the document does not set one.
func ParseRules(data []byte) ([]Rule, *decimal.Decimal, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse fee rules: %w", err)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		if r.ID == "" {
			return nil, nil, fmt.Errorf("fee rule %d has no id", i)
		}
		active := r.Active == nil || *r.Active
		rules = append(rules, Rule{
			ID:          r.ID,
			MinAmount:   r.MinAmount,
			MaxAmount:   r.MaxAmount,
			RatePercent: r.RatePercent.Decimal,
			Priority:    r.Priority,
			Active:      active,
		})
	}

	var defaultRate *decimal.Decimal
	if doc.DefaultRatePercent != nil {
		d := doc.DefaultRatePercent.Decimal
		defaultRate = &d
	}
	return rules, defaultRate, nil
}

// LoadRules reads and parses a fee rule file.
func LoadRules(path string) ([]Rule, *decimal.Decimal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read fee rules file: %w", err)
	}
	return ParseRules(data)
}

package metrics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CostTable maps endpoint and depth to the provider's billing units.
// Keys are "endpoint" for flat-cost endpoints and "endpoint:depth" where
// depth matters.
type CostTable map[string]float64

// DefaultCosts mirrors the provider's published pricing: advanced search
// and extraction bill double the basic tier.
func DefaultCosts() CostTable {
	return CostTable{
		"search:basic":     1,
		"search:advanced":  2,
		"extract:basic":    1,
		"extract:advanced": 2,
		"map":              1,
		"crawl:basic":      1,
		"crawl:advanced":   2,
	}
}

// Cost looks up the estimate for an endpoint at a given depth. Unknown
// combinations fall back to the endpoint's flat cost, then to 1.
func (t CostTable) Cost(endpoint, depth string) float64 {
	if depth != "" {
		if c, ok := t[endpoint+":"+depth]; ok {
			return c
		}
	}
	if c, ok := t[endpoint+":basic"]; ok {
		return c
	}
	if c, ok := t[endpoint]; ok {
		return c
	}
	return 1
}

// LoadCosts reads a YAML override file and merges it over the defaults,
// so a pricing change does not require a rebuild.
func LoadCosts(path string) (CostTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cost table: %w", err)
	}

	var override map[string]float64
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse cost table: %w", err)
	}

	table := DefaultCosts()
	for k, v := range override {
		table[k] = v
	}
	return table, nil
}

package models

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Plan captures the operator inputs for one analysis run: which stores,
// which window, and the subjective rankings and adjustments to apply.
type Plan struct {
	City        string  `json:"city"`
	From        string  `json:"from,omitempty"`
	To          string  `json:"to,omitempty"`
	Subject     Store   `json:"subject"`
	Competitors []Store `json:"competitors"`

	Rankings         Rankings           `json:"rankings"`
	AdjustmentsPct   map[Factor]float64 `json:"adjustments_pct"`
	Names            map[StoreID]string `json:"names"`
	FeatureOverrides []FeatureOverride  `json:"feature_overrides"`
}

// LoadPlan reads a JSON plan from disk.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %q: %w", path, err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: decode %q: %w", path, err)
	}
	return &p, nil
}

// Stores returns the subject followed by its competitors. Competitors
// repeating the subject's ID are dropped.
func (p *Plan) Stores() []Store {
	if p.Subject.ID == "" {
		return nil
	}
	stores := []Store{p.Subject}
	seen := map[StoreID]struct{}{p.Subject.ID: {}}
	for _, c := range p.Competitors {
		if _, dup := seen[c.ID]; dup || c.ID == "" {
			continue
		}
		seen[c.ID] = struct{}{}
		stores = append(stores, c)
	}
	return stores
}

// Window resolves the analysis window. Missing ends default to a trailing
// twelve-month window ending today.
func (p *Plan) Window(today time.Time) (DateWindow, error) {
	to := DateOnly(today)
	if strings.TrimSpace(p.To) != "" {
		parsed, err := ParseDate(strings.TrimSpace(p.To))
		if err != nil {
			return DateWindow{}, fmt.Errorf("%w: to: %v", ErrInvalidWindow, err)
		}
		to = parsed
	}
	from := to.AddDate(-1, 0, 1)
	if strings.TrimSpace(p.From) != "" {
		parsed, err := ParseDate(strings.TrimSpace(p.From))
		if err != nil {
			return DateWindow{}, fmt.Errorf("%w: from: %v", ErrInvalidWindow, err)
		}
		from = parsed
	}
	return NewDateWindow(from, to)
}

// Factors converts the plan's percentages into fractions.
func (p *Plan) Factors() AdjustmentFactors {
	return FactorsFromPercent(p.AdjustmentsPct)
}

// Overrides returns the feature overrides keyed by normalised FeatureKey.
// A later entry for the same key wins.
func (p *Plan) Overrides() map[FeatureKey]string {
	out := make(map[FeatureKey]string, len(p.FeatureOverrides))
	for _, o := range p.FeatureOverrides {
		out[o.FeatureKey.Normalised()] = o.Code
	}
	return out
}

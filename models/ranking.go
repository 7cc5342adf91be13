package models

import "fmt"

// Category is one of the subjective ranking dimensions.
type Category string

const (
	CategoryLocation    Category = "Location"
	CategoryVisibility  Category = "Visibility"
	CategoryAccess      Category = "Access"
	CategoryCurbAppeal  Category = "Curb Appeal"
	CategoryCompetition Category = "Competition"
	CategorySignage     Category = "Signage"
	CategorySecurity    Category = "Security"
	CategoryTechnology  Category = "Technology"
)

// Categories lists the ranking categories in report column order.
var Categories = []Category{
	CategoryLocation,
	CategoryVisibility,
	CategoryAccess,
	CategoryCurbAppeal,
	CategoryCompetition,
	CategorySignage,
	CategorySecurity,
	CategoryTechnology,
}

// Factor names a global adjustment percentage. Every Category is also a Factor.
type Factor string

const (
	FactorSize  Factor = "Size"
	FactorAge   Factor = "Age"
	FactorOther Factor = "Other"
)

// FlatFactors are applied as-is to competitors, independent of rankings.
var FlatFactors = []Factor{FactorSize, FactorAge, FactorOther}

// Factors lists all eleven adjustment factors.
func Factors() []Factor {
	out := make([]Factor, 0, len(Categories)+len(FlatFactors))
	for _, c := range Categories {
		out = append(out, Factor(c))
	}
	return append(out, FlatFactors...)
}

const (
	MinRank     = 1
	MaxRank     = 5
	DefaultRank = 3
)

// Rankings holds per-store, per-category ranks in [1,5].
type Rankings map[StoreID]map[Category]int

// Rank returns the store's rank for c, or DefaultRank when none was given.
func (r Rankings) Rank(id StoreID, c Category) int {
	if byCat, ok := r[id]; ok {
		if v, ok := byCat[c]; ok {
			return v
		}
	}
	return DefaultRank
}

// Validate checks every rank is in range and every category is known.
func (r Rankings) Validate() error {
	known := make(map[Category]struct{}, len(Categories))
	for _, c := range Categories {
		known[c] = struct{}{}
	}
	for id, byCat := range r {
		for c, v := range byCat {
			if _, ok := known[c]; !ok {
				return fmt.Errorf("%w: store %s: unknown category %q", ErrInvalidRanking, id, c)
			}
			if v < MinRank || v > MaxRank {
				return fmt.Errorf("%w: store %s: %s=%d outside [%d,%d]",
					ErrInvalidRanking, id, c, v, MinRank, MaxRank)
			}
		}
	}
	return nil
}

// AdjustmentFactors maps a factor to a signed fraction (percent / 100).
type AdjustmentFactors map[Factor]float64

// FactorsFromPercent converts operator-entered percentages into fractions.
func FactorsFromPercent(pct map[Factor]float64) AdjustmentFactors {
	out := make(AdjustmentFactors, len(pct))
	for f, v := range pct {
		out[f] = v / 100.0
	}
	return out
}

// Validate checks every factor is known and within [-1, 1].
func (a AdjustmentFactors) Validate() error {
	known := make(map[Factor]struct{})
	for _, f := range Factors() {
		known[f] = struct{}{}
	}
	for f, v := range a {
		if _, ok := known[f]; !ok {
			return fmt.Errorf("%w: unknown factor %q", ErrInvalidFactor, f)
		}
		if v < -1 || v > 1 {
			return fmt.Errorf("%w: %s=%.4f outside [-1,1]", ErrInvalidFactor, f, v)
		}
	}
	return nil
}

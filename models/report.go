package models

import "time"

// Aggregation selects how several observations collapse into one rate.
type Aggregation string

const (
	AggregateMean   Aggregation = "mean"
	AggregateMedian Aggregation = "median"
	AggregateLatest Aggregation = "latest"
)

// ParseAggregation maps a config value to an Aggregation, defaulting to mean.
func ParseAggregation(s string) (Aggregation, bool) {
	switch Aggregation(s) {
	case AggregateMean, AggregateMedian, AggregateLatest:
		return Aggregation(s), true
	case "":
		return AggregateMean, true
	}
	return AggregateMean, false
}

// SummaryRow is one (store, size, feature code) line of the adjusted report.
type SummaryRow struct {
	StoreID       StoreID
	StoreName     string
	IsSubject     bool
	Distance      float64
	YearBuilt     *int
	SquareFootage *int

	Size              string
	FeatureCode       string
	ClimateControlled bool
	DriveUp           bool

	Observations    int
	DBObservations  int
	APIObservations int
	FirstCollected  time.Time
	LastCollected   time.Time

	RegularRate *float64
	OnlineRate  *float64

	// Ranks follows the order of Categories.
	Ranks []int

	RankingAdjustment float64
	FlatAdjustment    float64
	TotalAdjustment   float64

	AdjustedRegularRate *float64
	AdjustedOnlineRate  *float64
}

// SummaryReport is the adjusted comparison across all analysed stores.
type SummaryReport struct {
	SubjectID   StoreID
	Aggregation Aggregation
	Factors     AdjustmentFactors
	Rows        []SummaryRow
}

// FeatureKeyInfo is one distinct size/amenity combination offered for
// operator review, with the code that will be applied unless overridden.
type FeatureKeyInfo struct {
	Key       FeatureKey
	Suggested string
	Count     int

	// Code and Overridden are filled once overrides are applied.
	Code       string
	Overridden bool
}

// StoreGap describes local data coverage for one store.
type StoreGap struct {
	StoreID       StoreID
	StoreName     string
	WindowDays    int
	MissingDays   int
	Ranges        []DateRange
	CoveragePct   float64
	EstimatedCost float64
}

// GapReport is the per-store coverage table shown before any paid fetch.
type GapReport struct {
	Window           DateWindow
	Stores           []StoreGap
	TotalMissingDays int
	TotalRanges      int
	EstimatedCost    float64
}

// MissingRanges lists every store's ranges in store order.
func (r GapReport) MissingRanges() []MissingRange {
	var out []MissingRange
	for _, g := range r.Stores {
		for _, rng := range g.Ranges {
			out = append(out, MissingRange{StoreID: g.StoreID, DateRange: rng})
		}
	}
	return out
}

// RunStats is the closing tally of a pipeline run.
type RunStats struct {
	RunID          string
	StoresAnalysed int
	TotalRecords   int
	DBRecords      int
	APIRecords     int
	DroppedNonUnit int
	RangesFetched  int
	RangesFailed   int
	RangesSkipped  int
	PartialFetch   bool
}

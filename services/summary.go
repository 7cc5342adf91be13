package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"rca-rates/models"
	"rca-rates/utils"
)

// SummaryBuilder collapses the reconciled dataset into one adjusted row per
// store and unit combination.
type SummaryBuilder struct {
	aggregation models.Aggregation
	logger      *utils.Logger
	out         io.Writer
}

// NewSummaryBuilder creates a SummaryBuilder using the given statistic.
func NewSummaryBuilder(aggregation models.Aggregation, logger *utils.Logger) *SummaryBuilder {
	return &SummaryBuilder{aggregation: aggregation, logger: logger}
}

type groupKey struct {
	store models.StoreID
	key   models.FeatureKey
}

type group struct {
	records []models.CanonicalRateRecord
}

// Build produces the adjusted summary. stores[0] is the subject store and the
// baseline every competitor's rankings are compared against.
//
// For a store s the adjustment is
//
//	Σ factor[c] × (rank[subject][c] − rank[s][c])   over the ranking categories
//	+ factor[Size] + factor[Age] + factor[Other]     for competitors only
//
// and adjusted = aggregated × (1 + adjustment), rounded to cents.
func (b *SummaryBuilder) Build(records []models.CanonicalRateRecord, stores []models.Store, rankings models.Rankings, factors models.AdjustmentFactors) (*models.SummaryReport, error) {
	if len(stores) == 0 {
		return nil, models.ErrNoStores
	}
	if len(records) == 0 {
		return nil, models.ErrNoRecords
	}

	subject := stores[0]
	storeIdx := models.StoreIndex(stores)

	groups := make(map[groupKey]*group)
	var order []groupKey
	for _, r := range records {
		k := groupKey{store: r.StoreID, key: r.Key()}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			order = append(order, k)
		}
		g.records = append(g.records, r)
	}

	report := &models.SummaryReport{
		SubjectID:   subject.ID,
		Aggregation: b.aggregation,
		Factors:     factors,
		Rows:        make([]models.SummaryRow, 0, len(order)),
	}

	for _, k := range order {
		g := groups[k]
		first := g.records[0]

		store, known := storeIdx[k.store]
		if !known {
			store = models.Store{ID: first.StoreID, Name: first.StoreName, Distance: first.Distance}
		}
		isSubject := k.store == subject.ID

		row := models.SummaryRow{
			StoreID:           k.store,
			StoreName:         first.StoreName,
			IsSubject:         isSubject,
			Distance:          store.Distance,
			YearBuilt:         store.Metadata.YearBuilt,
			SquareFootage:     store.Metadata.SquareFootage,
			Size:              k.key.Size,
			FeatureCode:       first.FeatureCode,
			ClimateControlled: k.key.ClimateControlled,
			DriveUp:           k.key.DriveUp,
			Observations:      len(g.records),
		}

		for _, r := range g.records {
			if r.Provenance == models.ProvenanceAPI {
				row.APIObservations++
			} else {
				row.DBObservations++
			}
			if r.DateCollected.IsZero() {
				continue
			}
			if row.FirstCollected.IsZero() || r.DateCollected.Before(row.FirstCollected) {
				row.FirstCollected = r.DateCollected
			}
			if r.DateCollected.After(row.LastCollected) {
				row.LastCollected = r.DateCollected
			}
		}

		row.RegularRate = b.aggregate(g.records, func(r models.CanonicalRateRecord) *float64 { return r.RegularRate })
		row.OnlineRate = b.aggregate(g.records, func(r models.CanonicalRateRecord) *float64 { return r.OnlineRate })

		row.Ranks = make([]int, len(models.Categories))
		for i, c := range models.Categories {
			row.Ranks[i] = rankings.Rank(k.store, c)
		}
		row.RankingAdjustment = RankingAdjustment(rankings, factors, subject.ID, k.store)
		if !isSubject {
			row.FlatAdjustment = FlatAdjustment(factors)
		}
		row.TotalAdjustment = row.RankingAdjustment + row.FlatAdjustment
		row.AdjustedRegularRate = applyAdjustment(row.RegularRate, row.TotalAdjustment)
		row.AdjustedOnlineRate = applyAdjustment(row.OnlineRate, row.TotalAdjustment)

		report.Rows = append(report.Rows, row)
	}

	sortRows(report.Rows)
	b.logger.Info("[summary] Built %d rows from %d records (%s)", len(report.Rows), len(records), b.aggregation)
	return report, nil
}

// RankingAdjustment sums factor × (subject rank − store rank) over the
// ranking categories. It is zero for the subject itself.
func RankingAdjustment(rankings models.Rankings, factors models.AdjustmentFactors, subject, store models.StoreID) float64 {
	var adj float64
	for _, c := range models.Categories {
		gap := rankings.Rank(subject, c) - rankings.Rank(store, c)
		adj += factors[models.Factor(c)] * float64(gap)
	}
	return adj
}

// FlatAdjustment sums the factors that do not depend on rankings.
func FlatAdjustment(factors models.AdjustmentFactors) float64 {
	var adj float64
	for _, f := range models.FlatFactors {
		adj += factors[f]
	}
	return adj
}

func applyAdjustment(rate *float64, adj float64) *float64 {
	if rate == nil {
		return nil
	}
	v := round2(*rate * (1 + adj))
	return &v
}

func (b *SummaryBuilder) aggregate(records []models.CanonicalRateRecord, field func(models.CanonicalRateRecord) *float64) *float64 {
	var values []float64
	var latest time.Time
	var latestValues []float64

	for _, r := range records {
		v := field(r)
		if v == nil {
			continue
		}
		values = append(values, *v)
		switch {
		case latestValues == nil || r.DateCollected.After(latest):
			latest = r.DateCollected
			latestValues = []float64{*v}
		case r.DateCollected.Equal(latest):
			latestValues = append(latestValues, *v)
		}
	}
	if len(values) == 0 {
		return nil
	}

	var out float64
	switch b.aggregation {
	case models.AggregateMedian:
		out = median(values)
	case models.AggregateLatest:
		// several observations on the latest day are averaged
		out = mean(latestValues)
	default:
		out = mean(values)
	}
	out = round2(out)
	return &out
}

func mean(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func sortRows(rows []models.SummaryRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.IsSubject != b.IsSubject {
			return a.IsSubject
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		if aa, ba := sizeArea(a.Size), sizeArea(b.Size); aa != ba {
			return aa < ba
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.FeatureCode < b.FeatureCode
	})
}

// sizeArea reads "10x15" as 150 square feet. Unparseable sizes sort last.
func sizeArea(size string) float64 {
	parts := strings.Split(size, "x")
	if len(parts) != 2 {
		return 1e9
	}
	w, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	l, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 1e9
	}
	return w * l
}

// SetOutput redirects the printed tables; the default is stdout.
func (b *SummaryBuilder) SetOutput(w io.Writer) {
	b.out = w
}

func (b *SummaryBuilder) printf(format string, args ...any) {
	w := b.out
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, format, args...)
}

// Print writes the run overview, the coverage table, the feature codes and
// the adjusted rates.
func (b *SummaryBuilder) Print(r *models.SummaryReport, gaps *models.GapReport, keys []models.FeatureKeyInfo, unmatched []models.FeatureKey, stats models.RunStats) {
	sep := strings.Repeat("═", 78)
	thin := strings.Repeat("─", 78)

	b.printf("\n\033[1;35m%s\033[0m\n", sep)
	b.printf("\033[1;35m  RATE COMPARISON SUMMARY (%s)\033[0m\n", r.Aggregation)
	b.printf("\033[1;35m%s\033[0m\n\n", sep)

	b.printf("\033[1;33m  Overview\033[0m\n")
	b.printf("  %s\n", thin)
	b.printf("  Run ID            : %s\n", stats.RunID)
	b.printf("  Stores analysed   : \033[1m%d\033[0m\n", stats.StoresAnalysed)
	b.printf("  Total records     : \033[1m%d\033[0m (db %d, api %d)\n",
		stats.TotalRecords, stats.DBRecords, stats.APIRecords)
	if stats.PartialFetch {
		b.printf("  \033[1;31mAPI fetch was interrupted; results are partial\033[0m\n")
	}
	b.printf("\n")

	if gaps != nil {
		b.PrintGaps(*gaps)
	}
	b.PrintFeatureKeys(keys, unmatched)

	b.printf("\033[1;33m  Adjusted Rates\033[0m\n")
	b.printf("  %s\n", thin)
	b.printf("  %-24s %-8s %-6s %9s %9s %7s %9s\n", "Store", "Size", "Code", "Regular", "Online", "Adj", "Adj Reg")
	for _, row := range r.Rows {
		name := truncate(row.StoreName, 22)
		if row.IsSubject {
			name = "*" + name
		}
		b.printf("  %-24s %-8s %-6s %9s %9s %6.1f%% %9s\n",
			name, truncate(row.Size, 8), row.FeatureCode,
			money(row.RegularRate), money(row.OnlineRate),
			row.TotalAdjustment*100, money(row.AdjustedRegularRate))
	}

	b.printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

// PrintGaps writes the per-store coverage table and the fetch estimate.
func (b *SummaryBuilder) PrintGaps(gaps models.GapReport) {
	b.printf("\033[1;33m  Data Coverage %s\033[0m\n", gaps.Window)
	b.printf("  %s\n", strings.Repeat("─", 78))
	for _, g := range gaps.Stores {
		b.printf("  %-34s missing %4d  ranges %3d  coverage %5.1f%%  cost %s\n",
			truncate(g.StoreName, 32), g.MissingDays, len(g.Ranges), g.CoveragePct, money(&g.EstimatedCost))
	}
	b.printf("  Total missing days: %d, estimated API cost %s\n\n", gaps.TotalMissingDays, money(&gaps.EstimatedCost))
}

// PrintFeatureKeys writes one line per distinct size and amenity
// combination with the code applied to it, followed by any overrides that
// matched nothing.
func (b *SummaryBuilder) PrintFeatureKeys(keys []models.FeatureKeyInfo, unmatched []models.FeatureKey) {
	b.printf("\033[1;33m  Feature Codes\033[0m\n")
	b.printf("  %s\n", strings.Repeat("─", 78))
	b.printf("  %-12s %-4s %-4s %-10s %-10s %7s\n", "Size", "CC", "DU", "Suggested", "Code", "Records")
	for _, k := range keys {
		code := k.Code
		if k.Overridden {
			code += "*"
		}
		b.printf("  %-12s %-4s %-4s %-10s %-10s %7d\n",
			truncate(k.Key.Size, 12), yesNo(k.Key.ClimateControlled), yesNo(k.Key.DriveUp),
			dash(k.Suggested), dash(code), k.Count)
	}
	for _, k := range unmatched {
		b.printf("  \033[33munused override: %s CC=%s DU=%s\033[0m\n",
			k.Size, yesNo(k.ClimateControlled), yesNo(k.DriveUp))
	}
	b.printf("\n")
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func yesNo(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

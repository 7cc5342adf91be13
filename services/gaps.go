package services

import (
	"math"
	"time"

	"rca-rates/models"
)

// MissingDays returns, in ascending order, every day of the window that has
// no entry in available. Dates outside the window are ignored.
func MissingDays(available []time.Time, window models.DateWindow) []time.Time {
	have := make(map[time.Time]struct{}, len(available))
	for _, d := range available {
		have[models.DateOnly(d)] = struct{}{}
	}

	var missing []time.Time
	end := models.DateOnly(window.To)
	for d := models.DateOnly(window.From); !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, ok := have[d]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}

// Compact groups sorted days into the fewest maximal runs of consecutive
// days. Duplicates in the input are tolerated.
func Compact(days []time.Time) []models.DateRange {
	if len(days) == 0 {
		return nil
	}

	var ranges []models.DateRange
	cur := models.DateRange{Start: models.DateOnly(days[0]), End: models.DateOnly(days[0])}
	for _, raw := range days[1:] {
		d := models.DateOnly(raw)
		switch gap := models.DaysBetween(cur.End, d); {
		case gap <= 0:
			// duplicate
		case gap == 1:
			cur.End = d
		default:
			ranges = append(ranges, cur)
			cur = models.DateRange{Start: d, End: d}
		}
	}
	return append(ranges, cur)
}

// FlattenRanges expands ranges back into the individual days they cover.
func FlattenRanges(ranges []models.DateRange) []time.Time {
	var days []time.Time
	for _, r := range ranges {
		for d := models.DateOnly(r.Start); !d.After(models.DateOnly(r.End)); d = d.AddDate(0, 0, 1) {
			days = append(days, d)
		}
	}
	return days
}

// AnalyzeGaps computes the missing days for every selected store. Stores
// without any local dates are missing the whole window.
func AnalyzeGaps(datesByStore map[models.StoreID][]time.Time, storeIDs []models.StoreID, window models.DateWindow) map[models.StoreID][]time.Time {
	out := make(map[models.StoreID][]time.Time, len(storeIDs))
	for _, id := range storeIDs {
		out[id] = MissingDays(datesByStore[id], window)
	}
	return out
}

// BuildGapReport turns per-store missing days into the coverage table shown
// to the operator under their mapped store names, with the estimated cost of filling every gap.
func BuildGapReport(stores []models.Store, names map[models.StoreID]string, gaps map[models.StoreID][]time.Time, window models.DateWindow, costPerDay float64) models.GapReport {
	report := models.GapReport{Window: window}
	windowDays := window.Days()

	for _, s := range stores {
		missing := gaps[s.ID]
		ranges := Compact(missing)
		g := models.StoreGap{
			StoreID:       s.ID,
			StoreName:     displayName(s, names),
			WindowDays:    windowDays,
			MissingDays:   len(missing),
			Ranges:        ranges,
			CoveragePct:   round1(float64(windowDays-len(missing)) / float64(windowDays) * 100),
			EstimatedCost: round2(float64(len(missing)) * costPerDay),
		}
		report.Stores = append(report.Stores, g)
		report.TotalMissingDays += g.MissingDays
		report.TotalRanges += len(ranges)
	}
	report.EstimatedCost = round2(float64(report.TotalMissingDays) * costPerDay)
	return report
}

// displayName prefers the operator's mapped name, as Merge does.
func displayName(s models.Store, names map[models.StoreID]string) string {
	if name, ok := names[s.ID]; ok && name != "" {
		return name
	}
	return s.Name
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

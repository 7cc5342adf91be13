package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rca-rates/models"
)

// OutputPaths names the artifacts of one run. Names carry the search city
// and a second-resolution timestamp.
type OutputPaths struct {
	DataCSV    string
	SummaryCSV string
	Workbook   string
}

// NewOutputPaths builds RCA_<city>_<YYYYMMDD_HHMMSS>_* paths under dir.
func NewOutputPaths(dir, city string, now time.Time) OutputPaths {
	slug := strings.ToLower(strings.Join(strings.Fields(city), "_"))
	if slug == "" {
		slug = "unknown"
	}
	base := fmt.Sprintf("RCA_%s_%s", slug, now.Format("20060102_150405"))
	return OutputPaths{
		DataCSV:    filepath.Join(dir, base+"_data.csv"),
		SummaryCSV: filepath.Join(dir, base+"_summary.csv"),
		Workbook:   filepath.Join(dir, base+".xlsx"),
	}
}

// DumpHeader is the column set of the full data dump.
var DumpHeader = []string{
	"Store Name", "Store ID", "Address", "City", "State", "ZIP", "Distance",
	"Size", "Feature Code", "Regular Rate", "Online Rate", "Date Collected",
	"Climate Controlled", "Drive Up", "Promo",
}

// DumpRow renders one record in DumpHeader order.
func DumpRow(r models.CanonicalRateRecord) []string {
	return []string{
		r.StoreName,
		string(r.StoreID),
		r.Address,
		r.City,
		r.State,
		r.ZIP,
		formatFloat(r.Distance),
		r.Size,
		r.FeatureCode,
		formatRate(r.RegularRate),
		formatRate(r.OnlineRate),
		formatDate(r.DateCollected),
		formatBool(r.ClimateControlled),
		formatBool(r.DriveUp),
		formatText(r.Promo),
	}
}

// SummaryHeader is the column set of the adjusted summary.
func SummaryHeader(agg models.Aggregation) []string {
	h := []string{
		"Store Name", "Store ID", "Subject", "Distance", "Year Built", "Square Footage",
		"Size", "Feature Code", "Climate Controlled", "Drive Up",
		"Observations", "DB Observations", "API Observations", "First Collected", "Last Collected",
		fmt.Sprintf("Regular Rate (%s)", agg), fmt.Sprintf("Online Rate (%s)", agg),
	}
	for _, c := range models.Categories {
		h = append(h, "Rank "+string(c))
	}
	return append(h,
		"Ranking Adjustment %", "Flat Adjustment %", "Total Adjustment %",
		"Adjusted Regular Rate", "Adjusted Online Rate",
	)
}

// SummaryRow renders one summary row in SummaryHeader order.
func SummaryRow(r models.SummaryRow) []string {
	row := []string{
		r.StoreName,
		string(r.StoreID),
		formatBool(r.IsSubject),
		formatFloat(r.Distance),
		formatInt(r.YearBuilt),
		formatInt(r.SquareFootage),
		r.Size,
		r.FeatureCode,
		formatBool(r.ClimateControlled),
		formatBool(r.DriveUp),
		strconv.Itoa(r.Observations),
		strconv.Itoa(r.DBObservations),
		strconv.Itoa(r.APIObservations),
		formatDate(r.FirstCollected),
		formatDate(r.LastCollected),
		formatRate(r.RegularRate),
		formatRate(r.OnlineRate),
	}
	for i := range models.Categories {
		rank := ""
		if i < len(r.Ranks) {
			rank = strconv.Itoa(r.Ranks[i])
		}
		row = append(row, rank)
	}
	return append(row,
		formatPct(r.RankingAdjustment),
		formatPct(r.FlatAdjustment),
		formatPct(r.TotalAdjustment),
		formatRate(r.AdjustedRegularRate),
		formatRate(r.AdjustedOnlineRate),
	)
}

// WriteDumpCSV writes one line per record.
func WriteDumpCSV(path string, records []models.CanonicalRateRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, DumpRow(r))
	}
	return writeCSV(path, DumpHeader, rows)
}

// WriteSummaryCSV writes the adjusted summary.
func WriteSummaryCSV(path string, report *models.SummaryReport) error {
	rows := make([][]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, SummaryRow(r))
	}
	return writeCSV(path, SummaryHeader(report.Aggregation), rows)
}

// writeCSV creates (or truncates) path, creating parent directories.
func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("csv: write rows: %w", err)
	}
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func formatRate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatText(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

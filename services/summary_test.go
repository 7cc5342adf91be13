package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"rca-rates/models"
	"rca-rates/utils"
)

func ptr(v float64) *float64 { return &v }

func rec(store models.StoreID, size string, cc bool, regular *float64, collected string) models.CanonicalRateRecord {
	return models.CanonicalRateRecord{
		StoreID:           store,
		StoreName:         "Store " + string(store),
		UnitType:          models.UnitTypeUnit,
		Size:              size,
		ClimateControlled: cc,
		RegularRate:       regular,
		DateCollected:     day(collected),
		Provenance:        models.ProvenanceDatabase,
	}
}

func testStores() []models.Store {
	return []models.Store{
		{ID: "S", Name: "Subject", Distance: 0},
		{ID: "C", Name: "Competitor", Distance: 1.5},
	}
}

func TestBuildRankingAdjustment(t *testing.T) {
	b := NewSummaryBuilder(models.AggregateMean, utils.Nop())
	rankings := models.Rankings{
		"S": {models.CategoryLocation: 5},
		"C": {models.CategoryLocation: 3},
	}
	factors := models.AdjustmentFactors{models.Factor(models.CategoryLocation): 0.05}
	records := []models.CanonicalRateRecord{
		rec("S", "10x10", false, ptr(120), "2024-12-01"),
		rec("C", "10x10", false, ptr(100), "2024-12-01"),
	}

	report, err := b.Build(records, testStores(), rankings, factors)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(report.Rows))
	}

	subj, comp := report.Rows[0], report.Rows[1]
	if !subj.IsSubject || subj.StoreID != "S" {
		t.Fatalf("first row should be the subject, got %+v", subj)
	}
	if subj.TotalAdjustment != 0 {
		t.Errorf("subject adjustment: got %v, want 0", subj.TotalAdjustment)
	}
	if *subj.AdjustedRegularRate != 120 {
		t.Errorf("subject adjusted: got %v, want 120", *subj.AdjustedRegularRate)
	}
	if *comp.AdjustedRegularRate != 110.00 {
		t.Errorf("competitor adjusted: got %.2f, want 110.00", *comp.AdjustedRegularRate)
	}
	if comp.Ranks[0] != 3 || comp.Ranks[1] != models.DefaultRank {
		t.Errorf("competitor ranks: got %v", comp.Ranks)
	}
}

func TestBuildFlatFactorsCompetitorsOnly(t *testing.T) {
	b := NewSummaryBuilder(models.AggregateMean, utils.Nop())
	factors := models.AdjustmentFactors{models.FactorAge: -0.10, models.FactorSize: 0.02}
	records := []models.CanonicalRateRecord{
		rec("S", "10x10", false, ptr(100), "2024-12-01"),
		rec("C", "10x10", false, ptr(100), "2024-12-01"),
	}

	report, err := b.Build(records, testStores(), nil, factors)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := *report.Rows[0].AdjustedRegularRate; got != 100 {
		t.Errorf("subject: got %.2f, want 100.00", got)
	}
	if got := *report.Rows[1].AdjustedRegularRate; got != 92 {
		t.Errorf("competitor: got %.2f, want 92.00", got)
	}
}

func TestBuildAggregation(t *testing.T) {
	records := []models.CanonicalRateRecord{
		rec("S", "10x10", false, ptr(100), "2024-12-01"),
		rec("S", "10x10", false, ptr(110), "2024-12-02"),
		rec("S", "10x10", false, nil, "2024-12-03"),
		rec("S", "10x10", false, ptr(150), "2024-12-04"),
		rec("S", "10x10", false, ptr(160), "2024-12-04"),
	}

	tests := []struct {
		agg  models.Aggregation
		want float64
	}{
		{models.AggregateMean, 130},
		{models.AggregateMedian, 130},
		{models.AggregateLatest, 155},
	}
	for _, tt := range tests {
		b := NewSummaryBuilder(tt.agg, utils.Nop())
		report, err := b.Build(records, testStores()[:1], nil, nil)
		if err != nil {
			t.Fatalf("%s: %v", tt.agg, err)
		}
		row := report.Rows[0]
		if row.RegularRate == nil || *row.RegularRate != tt.want {
			t.Errorf("%s: got %v, want %v", tt.agg, row.RegularRate, tt.want)
		}
		if row.OnlineRate != nil {
			t.Errorf("%s: online rate should stay null, got %v", tt.agg, *row.OnlineRate)
		}
		if row.Observations != 5 {
			t.Errorf("%s: observations: got %d, want 5", tt.agg, row.Observations)
		}
	}
}

func TestBuildGroupsByFeatureKey(t *testing.T) {
	b := NewSummaryBuilder(models.AggregateMean, utils.Nop())
	records := []models.CanonicalRateRecord{
		rec("C", "10x20", false, ptr(200), "2024-12-01"),
		rec("C", "5x5", true, ptr(50), "2024-12-01"),
		rec("C", "5x5", false, ptr(40), "2024-12-01"),
		rec("S", "10x10", false, ptr(100), "2024-12-01"),
	}

	report, err := b.Build(records, testStores(), nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []struct {
		store models.StoreID
		size  string
	}{{"S", "10x10"}, {"C", "5x5"}, {"C", "5x5"}, {"C", "10x20"}}
	if len(report.Rows) != len(want) {
		t.Fatalf("rows: got %d, want %d", len(report.Rows), len(want))
	}
	for i, w := range want {
		if report.Rows[i].StoreID != w.store || report.Rows[i].Size != w.size {
			t.Errorf("row %d: got %s/%s, want %s/%s", i, report.Rows[i].StoreID, report.Rows[i].Size, w.store, w.size)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	b := NewSummaryBuilder(models.AggregateMean, utils.Nop())

	if _, err := b.Build([]models.CanonicalRateRecord{rec("S", "5x5", false, ptr(1), "2024-12-01")}, nil, nil, nil); !errors.Is(err, models.ErrNoStores) {
		t.Errorf("no stores: got %v, want ErrNoStores", err)
	}
	_, err := b.Build(nil, testStores(), nil, nil)
	if !errors.Is(err, models.ErrNoRecords) {
		t.Errorf("no records: got %v, want ErrNoRecords", err)
	}
	if !errors.Is(err, models.ErrReport) {
		t.Errorf("no records should be a report error, got %v", err)
	}
}

func TestRankingAdjustmentSubjectIsZero(t *testing.T) {
	rankings := models.Rankings{"S": {models.CategorySecurity: 1}}
	factors := models.AdjustmentFactors{models.Factor(models.CategorySecurity): 0.5}
	if got := RankingAdjustment(rankings, factors, "S", "S"); got != 0 {
		t.Errorf("RankingAdjustment(subject): got %v, want 0", got)
	}
	if got := RankingAdjustment(rankings, factors, "S", "C"); got != -1 {
		t.Errorf("RankingAdjustment(competitor): got %v, want -1", got)
	}
}

func TestSizeArea(t *testing.T) {
	tests := []struct {
		size string
		want float64
	}{
		{"10x10", 100},
		{"5x15", 75},
		{"Unknown", 1e9},
		{"10xabc", 1e9},
	}
	for _, tt := range tests {
		if got := sizeArea(tt.size); got != tt.want {
			t.Errorf("sizeArea(%q): got %v, want %v", tt.size, got, tt.want)
		}
	}
}

func TestTruncateMultiByte(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"Ünïcödé Störage Ĉentre", 10, "Ünïcödé..."},
		{"Ünïcödé", 7, "Ünïcödé"},
		{"Ünïcödé", 2, "Ün"},
		{"plain", 10, "plain"},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.max)
		if got != tt.want {
			t.Errorf("truncate(%q, %d): got %q, want %q", tt.input, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d): invalid UTF-8 %q", tt.input, tt.max, got)
		}
	}
}

func TestPrintFeatureKeys(t *testing.T) {
	var buf bytes.Buffer
	b := NewSummaryBuilder(models.AggregateMean, utils.Nop())
	b.SetOutput(&buf)

	b.PrintFeatureKeys([]models.FeatureKeyInfo{
		{Key: models.FeatureKey{Size: "10x10", ClimateControlled: true}, Suggested: "CC", Code: "CC-INT", Overridden: true, Count: 4},
		{Key: models.FeatureKey{Size: "5x5"}, Count: 2},
	}, []models.FeatureKey{{Size: "20x20", DriveUp: true}})

	out := buf.String()
	for _, want := range []string{"Feature Codes", "10x10", "CC-INT*", "5x5", "unused override: 20x20 CC=N DU=Y"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintIncludesGapsAndFeatureKeys(t *testing.T) {
	var buf bytes.Buffer
	b := NewSummaryBuilder(models.AggregateMean, utils.Nop())
	b.SetOutput(&buf)

	report := &models.SummaryReport{
		Aggregation: models.AggregateMean,
		Rows:        []models.SummaryRow{{StoreID: "1", StoreName: "Ünïcödé Störage Ĉentre of the North", Size: "10x10"}},
	}
	gaps := &models.GapReport{Stores: []models.StoreGap{{StoreID: "1", StoreName: "Rival Downtown", MissingDays: 3}}}
	keys := []models.FeatureKeyInfo{{Key: models.FeatureKey{Size: "10x10"}, Code: "STD", Count: 1}}

	b.Print(report, gaps, keys, nil, models.RunStats{RunID: "run-9"})

	out := buf.String()
	if !utf8.ValidString(out) {
		t.Error("output is not valid UTF-8")
	}
	for _, want := range []string{"run-9", "Rival Downtown", "Feature Codes", "STD", "Ünïcödé Störage Ĉen..."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

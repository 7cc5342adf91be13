package models

import (
	"errors"
	"testing"
)

func TestRankDefaults(t *testing.T) {
	r := Rankings{"1": {CategoryAccess: 4}}
	if got := r.Rank("1", CategoryAccess); got != 4 {
		t.Errorf("Rank: got %d, want 4", got)
	}
	if got := r.Rank("1", CategorySignage); got != DefaultRank {
		t.Errorf("missing category: got %d, want %d", got, DefaultRank)
	}
	if got := r.Rank("2", CategoryAccess); got != DefaultRank {
		t.Errorf("missing store: got %d, want %d", got, DefaultRank)
	}
	var empty Rankings
	if got := empty.Rank("1", CategoryAccess); got != DefaultRank {
		t.Errorf("nil rankings: got %d, want %d", got, DefaultRank)
	}
}

func TestRankingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       Rankings
		wantErr bool
	}{
		{"empty", nil, false},
		{"bounds", Rankings{"1": {CategoryLocation: 1, CategorySecurity: 5}}, false},
		{"too low", Rankings{"1": {CategoryLocation: 0}}, true},
		{"too high", Rankings{"1": {CategoryLocation: 6}}, true},
		{"unknown category", Rankings{"1": {Category("Vibes"): 3}}, true},
	}
	for _, tt := range tests {
		err := tt.r.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: got err=%v, wantErr=%v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidRanking) {
			t.Errorf("%s: got %v, want ErrInvalidRanking", tt.name, err)
		}
	}
}

func TestFactorsValidate(t *testing.T) {
	tests := []struct {
		name    string
		f       AdjustmentFactors
		wantErr bool
	}{
		{"empty", nil, false},
		{"bounds", AdjustmentFactors{FactorOther: -1, FactorSize: 1}, false},
		{"too large", AdjustmentFactors{FactorAge: 1.01}, true},
		{"unknown", AdjustmentFactors{Factor("Weather"): 0.1}, true},
	}
	for _, tt := range tests {
		err := tt.f.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: got err=%v, wantErr=%v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInput) {
			t.Errorf("%s: error should wrap ErrInput, got %v", tt.name, err)
		}
	}
}

func TestFactorsList(t *testing.T) {
	if got := len(Factors()); got != 11 {
		t.Errorf("Factors: got %d, want 11", got)
	}
	if got := FactorsFromPercent(map[Factor]float64{FactorSize: 12.5})[FactorSize]; got != 0.125 {
		t.Errorf("FactorsFromPercent: got %v, want 0.125", got)
	}
}

func TestParseAggregation(t *testing.T) {
	tests := []struct {
		in     string
		want   Aggregation
		wantOK bool
	}{
		{"", AggregateMean, true},
		{"median", AggregateMedian, true},
		{"latest", AggregateLatest, true},
		{"mode", AggregateMean, false},
	}
	for _, tt := range tests {
		got, ok := ParseAggregation(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseAggregation(%q): got (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

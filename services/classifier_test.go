package services

import (
	"testing"

	"rca-rates/models"
)

func TestSuggestFeatureCode(t *testing.T) {
	tests := []struct {
		cc, du bool
		want   string
	}{
		{true, true, "CC-DU"},
		{true, false, "CC"},
		{false, true, "DU"},
		{false, false, ""},
	}
	for _, tt := range tests {
		k := models.FeatureKey{Size: "10x10", ClimateControlled: tt.cc, DriveUp: tt.du}
		if got := SuggestFeatureCode(k); got != tt.want {
			t.Errorf("SuggestFeatureCode(cc=%v, du=%v): got %q, want %q", tt.cc, tt.du, got, tt.want)
		}
	}
}

func TestDistinctFeatureKeysIdenticalRecords(t *testing.T) {
	r := models.CanonicalRateRecord{StoreID: "1", Size: "10x10", ClimateControlled: true}
	keys := DistinctFeatureKeys([]models.CanonicalRateRecord{r, r})

	if len(keys) != 1 {
		t.Fatalf("keys: got %d, want 1", len(keys))
	}
	if keys[0].Count != 2 || keys[0].Suggested != "CC" {
		t.Errorf("key info: got %+v", keys[0])
	}

	assigned := AssignFeatureCodes([]models.CanonicalRateRecord{r, r}, nil)
	if assigned[0].FeatureCode != "CC" || assigned[1].FeatureCode != "CC" {
		t.Errorf("codes: got %q and %q, want CC for both", assigned[0].FeatureCode, assigned[1].FeatureCode)
	}
}

func TestDistinctFeatureKeysOrder(t *testing.T) {
	records := []models.CanonicalRateRecord{
		{Size: "10x20"},
		{Size: "5x5", DriveUp: true},
		{Size: "10x20"},
		{Size: "5x5"},
	}
	keys := DistinctFeatureKeys(records)
	want := []models.FeatureKey{
		{Size: "10x20"},
		{Size: "5x5", DriveUp: true},
		{Size: "5x5"},
	}
	if len(keys) != len(want) {
		t.Fatalf("keys: got %d, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i].Key != want[i] {
			t.Errorf("key %d: got %+v, want %+v", i, keys[i].Key, want[i])
		}
	}
}

func TestAssignFeatureCodes(t *testing.T) {
	records := []models.CanonicalRateRecord{
		{StoreID: "1", Size: "10x10", ClimateControlled: true},
		{StoreID: "2", Size: "10x10", ClimateControlled: true},
		{StoreID: "1", Size: "5x5", DriveUp: true},
		{StoreID: "2", Size: "5x5"},
	}
	overrides := map[models.FeatureKey]string{
		{Size: "5x5", DriveUp: true}: " EXT ",
	}

	got := AssignFeatureCodes(records, overrides)
	if len(got) != len(records) {
		t.Fatalf("records: got %d, want %d", len(got), len(records))
	}
	want := []string{"CC", "CC", "EXT", ""}
	for i, w := range want {
		if got[i].FeatureCode != w {
			t.Errorf("record %d: got %q, want %q", i, got[i].FeatureCode, w)
		}
	}
	for i := range records {
		if records[i].FeatureCode != "" {
			t.Errorf("input record %d was modified", i)
		}
	}
}

func TestAssignFeatureCodesOverrideSizeSpelling(t *testing.T) {
	records := []models.CanonicalRateRecord{
		{StoreID: "1", Size: "10x10", ClimateControlled: true},
		{StoreID: "2", Size: "10x10"},
	}
	overrides := map[models.FeatureKey]string{
		{Size: "10X10", ClimateControlled: true}: "CC-INT",
		{Size: "10 x 10"}:                        "STD",
	}

	got := AssignFeatureCodes(records, overrides)
	if got[0].FeatureCode != "CC-INT" {
		t.Errorf("record 0: got %q, want CC-INT", got[0].FeatureCode)
	}
	if got[1].FeatureCode != "STD" {
		t.Errorf("record 1: got %q, want STD", got[1].FeatureCode)
	}
}

func TestApplyOverrides(t *testing.T) {
	keys := []models.FeatureKeyInfo{
		{Key: models.FeatureKey{Size: "10x10", ClimateControlled: true}, Suggested: "CC", Count: 3},
		{Key: models.FeatureKey{Size: "5x5"}, Suggested: "", Count: 1},
	}
	overrides := map[models.FeatureKey]string{{Size: "10X10", ClimateControlled: true}: " CC-INT "}

	got := ApplyOverrides(keys, overrides)
	if got[0].Code != "CC-INT" || !got[0].Overridden {
		t.Errorf("overridden key: got code=%q overridden=%v", got[0].Code, got[0].Overridden)
	}
	if got[1].Code != "" || got[1].Overridden {
		t.Errorf("plain key: got code=%q overridden=%v", got[1].Code, got[1].Overridden)
	}
	if got[0].Count != 3 {
		t.Errorf("count: got %d, want 3", got[0].Count)
	}
	if keys[0].Code != "" {
		t.Error("input keys were modified")
	}
}

func TestUnmatchedOverrides(t *testing.T) {
	keys := []models.FeatureKeyInfo{{Key: models.FeatureKey{Size: "10x10", ClimateControlled: true}}}
	overrides := map[models.FeatureKey]string{
		{Size: "10X10", ClimateControlled: true}: "CC-INT",
		{Size: "5x5", DriveUp: true}:             "EXT",
		{Size: "5x5"}:                            "STD",
		{Size: "10x10"}:                          "STD",
	}

	got := UnmatchedOverrides(keys, overrides)
	want := []models.FeatureKey{
		{Size: "10x10"},
		{Size: "5x5"},
		{Size: "5x5", DriveUp: true},
	}
	if len(got) != len(want) {
		t.Fatalf("unmatched: got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("unmatched %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

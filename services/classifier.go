package services

import (
	"sort"
	"strings"

	"rca-rates/models"
)

// DistinctFeatureKeys lists every FeatureKey present in records, in order of
// first appearance.
func DistinctFeatureKeys(records []models.CanonicalRateRecord) []models.FeatureKeyInfo {
	pos := make(map[models.FeatureKey]int)
	var out []models.FeatureKeyInfo
	for _, r := range records {
		k := r.Key()
		if i, ok := pos[k]; ok {
			out[i].Count++
			continue
		}
		pos[k] = len(out)
		out = append(out, models.FeatureKeyInfo{Key: k, Suggested: SuggestFeatureCode(k), Count: 1})
	}
	return out
}

// SuggestFeatureCode joins "CC" and "DU" with a hyphen for the amenities the
// key has. A key with neither gets the empty code.
func SuggestFeatureCode(k models.FeatureKey) string {
	var parts []string
	if k.ClimateControlled {
		parts = append(parts, "CC")
	}
	if k.DriveUp {
		parts = append(parts, "DU")
	}
	return strings.Join(parts, "-")
}

// ResolveFeatureCodes decides the code for every distinct key: the operator
// override when one exists, the suggestion otherwise.
func ResolveFeatureCodes(keys []models.FeatureKeyInfo, overrides map[models.FeatureKey]string) map[models.FeatureKey]string {
	normalised := normaliseOverrides(overrides)
	codes := make(map[models.FeatureKey]string, len(keys))
	for _, info := range keys {
		code := info.Suggested
		if o, ok := normalised[info.Key]; ok {
			code = strings.TrimSpace(o)
		}
		codes[info.Key] = code
	}
	return codes
}

// UnmatchedOverrides returns the override keys that match no key in the
// dataset, sorted by size then amenities. Such overrides have no effect.
func UnmatchedOverrides(keys []models.FeatureKeyInfo, overrides map[models.FeatureKey]string) []models.FeatureKey {
	present := make(map[models.FeatureKey]struct{}, len(keys))
	for _, info := range keys {
		present[info.Key] = struct{}{}
	}
	var out []models.FeatureKey
	for k := range normaliseOverrides(overrides) {
		if _, ok := present[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		if a.ClimateControlled != b.ClimateControlled {
			return !a.ClimateControlled
		}
		return !a.DriveUp && b.DriveUp
	})
	return out
}

// ApplyOverrides returns a copy of keys with Code and Overridden filled in,
// ready to be shown to the operator.
func ApplyOverrides(keys []models.FeatureKeyInfo, overrides map[models.FeatureKey]string) []models.FeatureKeyInfo {
	normalised := normaliseOverrides(overrides)
	out := make([]models.FeatureKeyInfo, len(keys))
	for i, info := range keys {
		info.Code = info.Suggested
		if o, ok := normalised[info.Key]; ok {
			info.Code = strings.TrimSpace(o)
			info.Overridden = true
		}
		out[i] = info
	}
	return out
}

func normaliseOverrides(overrides map[models.FeatureKey]string) map[models.FeatureKey]string {
	out := make(map[models.FeatureKey]string, len(overrides))
	for k, code := range overrides {
		out[k.Normalised()] = code
	}
	return out
}

// AssignFeatureCodes returns a copy of records with FeatureCode set. Codes are
// resolved once per distinct key across the whole dataset, so the same
// combination carries the same code for every store. No record is dropped.
func AssignFeatureCodes(records []models.CanonicalRateRecord, overrides map[models.FeatureKey]string) []models.CanonicalRateRecord {
	codes := ResolveFeatureCodes(DistinctFeatureKeys(records), overrides)

	out := make([]models.CanonicalRateRecord, len(records))
	for i, r := range records {
		r.FeatureCode = codes[r.Key()]
		out[i] = r
	}
	return out
}

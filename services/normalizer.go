package services

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"rca-rates/models"
	"rca-rates/utils"
)

var (
	// rateRegexp captures the first numeric amount in a rate string.
	rateRegexp = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	// ccRegexp and duRegexp recognise amenities in a free-text features field.
	ccRegexp = regexp.MustCompile(`(?i)\bclimate\b|\bcc\b|temperature`)
	duRegexp = regexp.MustCompile(`(?i)drive[\s-]?up|\bdu\b`)
)

// Normalizer maps warehouse rows and API payloads into CanonicalRateRecords.
// A field that cannot be parsed becomes null; the record is still emitted.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// FromDatabaseRow converts one warehouse row. Store identity comes from the
// caller-supplied store rather than the row.
func (n *Normalizer) FromDatabaseRow(row models.DBRateRow, store models.Store) models.CanonicalRateRecord {
	rec := baseRecord(store, models.ProvenanceDatabase)
	rec.UnitType = normaliseText(row.UnitType)
	rec.Size = models.NormaliseSize(row.Size)
	rec.ClimateControlled = row.ClimateControlled != nil && *row.ClimateControlled
	rec.DriveUp = row.DriveUp != nil && *row.DriveUp
	if row.RegularRate != nil {
		rec.RegularRate = n.parseRate(*row.RegularRate)
	}
	if row.OnlineRate != nil {
		rec.OnlineRate = n.parseRate(*row.OnlineRate)
	}
	if row.Promo != nil {
		rec.Promo = optionalText(*row.Promo)
	}
	rec.DateCollected = models.DateOnly(row.DateCollected)
	return rec
}

// FromDatabaseRows converts all rows for one store.
func (n *Normalizer) FromDatabaseRows(rows []models.DBRateRow, store models.Store) []models.CanonicalRateRecord {
	out := make([]models.CanonicalRateRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, n.FromDatabaseRow(row, store))
	}
	return out
}

// FromAPIPayload converts every rate in an API payload. A nil payload yields
// no records.
func (n *Normalizer) FromAPIPayload(payload *models.APIRatePayload, store models.Store) []models.CanonicalRateRecord {
	if payload == nil {
		return nil
	}

	out := make([]models.CanonicalRateRecord, 0, len(payload.Rates))
	for _, r := range payload.Rates {
		rec := baseRecord(store, models.ProvenanceAPI)
		rec.UnitType = normaliseText(string(r.UnitType))
		rec.Size = models.NormaliseSize(string(r.Size))

		cc, ok := parseFlag(r.ClimateControlled)
		if !ok {
			cc = ccRegexp.MatchString(string(r.Features))
		}
		du, ok := parseFlag(r.DriveUp)
		if !ok {
			du = duRegexp.MatchString(string(r.Features))
		}
		rec.ClimateControlled = cc
		rec.DriveUp = du

		rec.RegularRate = n.parseRawRate(r.RegularRate)
		rec.OnlineRate = n.parseRawRate(r.OnlineRate)
		rec.Promo = optionalText(string(r.Promo))

		if d := strings.TrimSpace(string(r.DateCollected)); d != "" {
			parsed, err := models.ParseDate(d)
			if err != nil {
				n.logger.Debug("[normalizer] store %s: %v", store.ID, err)
			} else {
				rec.DateCollected = parsed
			}
		}
		out = append(out, rec)
	}
	return out
}

// FilterUnitType keeps records whose unit type equals unitType, ignoring
// case. It returns the kept records and the number dropped.
func FilterUnitType(records []models.CanonicalRateRecord, unitType string) ([]models.CanonicalRateRecord, int) {
	kept := make([]models.CanonicalRateRecord, 0, len(records))
	for _, r := range records {
		if strings.EqualFold(r.UnitType, unitType) {
			kept = append(kept, r)
		}
	}
	return kept, len(records) - len(kept)
}

func baseRecord(store models.Store, p models.Provenance) models.CanonicalRateRecord {
	return models.CanonicalRateRecord{
		StoreID:    store.ID,
		StoreName:  store.Name,
		Address:    store.Address,
		City:       store.City,
		State:      store.State,
		ZIP:        store.ZIP,
		Distance:   store.Distance,
		Provenance: p,
	}
}

// parseRate extracts a non-negative amount from strings such as "$129.00",
// "1,049" or "89 /mo". Anything else is null.
func (n *Normalizer) parseRate(raw string) *float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	match := rateRegexp.FindString(cleaned)
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || v < 0 {
		n.logger.Debug("[normalizer] unparseable rate %q", raw)
		return nil
	}
	return &v
}

// parseRawRate accepts a JSON number, a numeric string or null.
func (n *Normalizer) parseRawRate(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		if num < 0 {
			return nil
		}
		return &num
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return n.parseRate(s)
	}
	n.logger.Debug("[normalizer] unparseable rate %s", string(raw))
	return nil
}

// parseFlag reads booleans the API sends as true, 1, "Y", "yes" or "true".
// ok is false when the field is absent or unrecognised.
func parseFlag(raw json.RawMessage) (value bool, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num != 0, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return true, true
	case "n", "no", "false", "0":
		return false, true
	}
	return false, false
}

func optionalText(s string) *string {
	s = normaliseText(s)
	if s == "" {
		return nil
	}
	return &s
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

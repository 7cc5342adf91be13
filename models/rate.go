package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Provenance records where a rate observation came from.
type Provenance string

const (
	ProvenanceDatabase Provenance = "database"
	ProvenanceAPI      Provenance = "api"
)

// UnitTypeUnit is the only rentable asset type that reaches the reports.
const UnitTypeUnit = "Unit"

// DBRateRow is a warehouse row as scanned, before normalization.
type DBRateRow struct {
	StoreID           string
	UnitType          string
	Size              string
	ClimateControlled *bool
	DriveUp           *bool
	RegularRate       *string
	OnlineRate        *string
	Promo             *string
	DateCollected     time.Time
}

// APIRatePayload is the body returned by the remote historical-rates call.
// Field types are loose: the API emits numbers, numeric strings and blanks
// for the same field depending on the store.
type APIRatePayload struct {
	StoreID json.RawMessage `json:"storeid"`
	Rates   []APIRate       `json:"rates"`
}

// APIRate is one unit observation inside APIRatePayload.
type APIRate struct {
	Size              LooseString     `json:"size"`
	UnitType          LooseString     `json:"unittype"`
	Features          LooseString     `json:"features"`
	ClimateControlled json.RawMessage `json:"climatecontrolled"`
	DriveUp           json.RawMessage `json:"driveup"`
	RegularRate       json.RawMessage `json:"regularrate"`
	OnlineRate        json.RawMessage `json:"onlinerate"`
	Promo             LooseString     `json:"promo"`
	DateCollected     LooseString     `json:"datecollected"`

	// Store copies may be missing or stale; normalization ignores them.
	StoreName LooseString `json:"storename"`
	Address   LooseString `json:"address"`
}

// LooseString is a text field the API sometimes sends as a number, a bool
// or null. Scalars keep their JSON text; null, objects and arrays decode to
// the empty string. Decoding never fails, so one odd field cannot cost the
// rest of the observation.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			*s = ""
			return nil
		}
		*s = LooseString(v)
	case '{', '[', 'n':
		*s = ""
	default:
		*s = LooseString(data)
	}
	return nil
}

// CanonicalRateRecord is the unit of the reconciled dataset.
type CanonicalRateRecord struct {
	StoreID   StoreID
	StoreName string
	Address   string
	City      string
	State     string
	ZIP       string
	Distance  float64

	UnitType          string
	Size              string
	ClimateControlled bool
	DriveUp           bool
	RegularRate       *float64
	OnlineRate        *float64
	Promo             *string
	DateCollected     time.Time

	// FeatureCode is empty until feature codes are assigned.
	FeatureCode string
	Provenance  Provenance
}

// Key returns the classification grouping key of the record.
func (r CanonicalRateRecord) Key() FeatureKey {
	return FeatureKey{Size: r.Size, ClimateControlled: r.ClimateControlled, DriveUp: r.DriveUp}
}

// FeatureKey groups records for feature-code assignment. It is comparable
// and used directly as a map key.
type FeatureKey struct {
	Size              string `json:"size"`
	ClimateControlled bool   `json:"climate_controlled"`
	DriveUp           bool   `json:"drive_up"`
}

// Normalised returns k with its size in canonical form, so keys typed by
// an operator compare equal to keys derived from records.
func (k FeatureKey) Normalised() FeatureKey {
	k.Size = NormaliseSize(k.Size)
	return k
}

// NormaliseSize turns "10 X 10", "10x10 " and "10 x 10" into "10x10".
// A blank size becomes "Unknown".
func NormaliseSize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	s = strings.ReplaceAll(s, " x ", "x")
	s = strings.ReplaceAll(s, "×", "x")
	if s == "" {
		return "Unknown"
	}
	return s
}

// FeatureOverride lets the operator replace the suggested code for a key.
type FeatureOverride struct {
	FeatureKey
	Code string `json:"code"`
}

package services

import "rca-rates/models"

// Merge concatenates database and API records and applies the operator's
// display names. Both provenances are kept even when they describe the same
// store, day and size: API ranges are only requested for days the database
// does not have. Inputs are not modified.
func Merge(dbRecords, apiRecords []models.CanonicalRateRecord, nameMapping map[models.StoreID]string) []models.CanonicalRateRecord {
	out := make([]models.CanonicalRateRecord, 0, len(dbRecords)+len(apiRecords))
	out = append(out, dbRecords...)
	out = append(out, apiRecords...)

	for i := range out {
		if name, ok := nameMapping[out[i].StoreID]; ok && name != "" {
			out[i].StoreName = name
		}
	}
	return out
}

package storage

import (
	"context"
	"time"

	"rca-rates/models"
)

// RateSource is the local rate warehouse.
type RateSource interface {
	// RatesInWindow returns the raw rows per store and the distinct days each
	// store has at least one observation for.
	RatesInWindow(ctx context.Context, storeIDs []models.StoreID, from, to time.Time) (map[models.StoreID][]models.DBRateRow, map[models.StoreID][]time.Time, error)
	Close() error
}

// RateWriter persists normalized observations back into the warehouse.
type RateWriter interface {
	Write(ctx context.Context, records []models.CanonicalRateRecord) error
	Close() error
}

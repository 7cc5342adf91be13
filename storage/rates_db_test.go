package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rca-rates/models"
)

func openTestStore(t *testing.T) *RateStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "rates.db")
	rs, err := OpenRateStore(context.Background(), DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func rate(v float64) *float64 { return &v }

func TestRateStoreRoundTrip(t *testing.T) {
	rs := openTestStore(t)
	ctx := context.Background()
	promo := "First month $1"

	records := []models.CanonicalRateRecord{
		{StoreID: "A", UnitType: "Unit", Size: "10x10", ClimateControlled: true,
			RegularRate: rate(129.5), OnlineRate: rate(119), Promo: &promo,
			DateCollected: mustDay(t, "2024-12-01"), Provenance: models.ProvenanceAPI},
		{StoreID: "A", UnitType: "Unit", Size: "5x5", DriveUp: true,
			RegularRate: rate(49), DateCollected: mustDay(t, "2024-12-01"), Provenance: models.ProvenanceAPI},
		{StoreID: "A", UnitType: "Unit", Size: "5x5",
			DateCollected: mustDay(t, "2024-12-03"), Provenance: models.ProvenanceAPI},
		{StoreID: "B", UnitType: "Unit", Size: "10x20",
			RegularRate: rate(210), DateCollected: mustDay(t, "2024-11-15"), Provenance: models.ProvenanceAPI},
	}
	require.NoError(t, rs.Write(ctx, records))

	rows, dates, err := rs.RatesInWindow(ctx, []models.StoreID{"A", "B", "C"},
		mustDay(t, "2024-12-01"), mustDay(t, "2024-12-10"))
	require.NoError(t, err)

	require.Len(t, rows["A"], 3)
	assert.Empty(t, rows["B"], "rows outside the window are excluded")
	assert.Empty(t, rows["C"])
	assert.Equal(t, []time.Time{mustDay(t, "2024-12-01"), mustDay(t, "2024-12-03")}, dates["A"])

	first := rows["A"][0]
	assert.Equal(t, "A", first.StoreID)
	assert.Equal(t, mustDay(t, "2024-12-01"), first.DateCollected)
	require.NotNil(t, first.Promo)
	assert.Equal(t, promo, *first.Promo)

	var sawCC, sawNullRate bool
	for _, r := range rows["A"] {
		if r.ClimateControlled != nil && *r.ClimateControlled {
			sawCC = true
			require.NotNil(t, r.RegularRate)
			assert.Contains(t, *r.RegularRate, "129.5")
		}
		if r.DateCollected.Equal(mustDay(t, "2024-12-03")) {
			sawNullRate = r.RegularRate == nil && r.OnlineRate == nil && r.Promo == nil
		}
	}
	assert.True(t, sawCC, "climate-controlled flag should survive the round trip")
	assert.True(t, sawNullRate, "null rates should scan back as nil")
}

func TestRateStoreWriteBatches(t *testing.T) {
	rs := openTestStore(t)
	ctx := context.Background()

	start := mustDay(t, "2024-01-01")
	var records []models.CanonicalRateRecord
	for i := 0; i < 120; i++ {
		records = append(records, models.CanonicalRateRecord{
			StoreID: "A", UnitType: "Unit", Size: "10x10",
			RegularRate: rate(100), DateCollected: start.AddDate(0, 0, i),
			Provenance: models.ProvenanceDatabase,
		})
	}
	require.NoError(t, rs.Write(ctx, records))

	rows, dates, err := rs.RatesInWindow(ctx, []models.StoreID{"A"}, start, start.AddDate(0, 0, 119))
	require.NoError(t, err)
	assert.Len(t, rows["A"], 120)
	assert.Len(t, dates["A"], 120)
}

func TestRatesInWindowNoStores(t *testing.T) {
	rs := openTestStore(t)
	rows, dates, err := rs.RatesInWindow(context.Background(), nil, mustDay(t, "2024-01-01"), mustDay(t, "2024-01-02"))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, dates)
}

func TestOpenRateStoreUnknownDriver(t *testing.T) {
	_, err := OpenRateStore(context.Background(), "mysql", "")
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a IN (?,?) AND b BETWEEN ? AND ?"
	assert.Equal(t, "SELECT * FROM t WHERE a IN ($1,$2) AND b BETWEEN $3 AND $4", rebind(DriverPostgres, q))
	assert.Equal(t, "SELECT * FROM t WHERE a IN ($1,$2) AND b BETWEEN $3 AND $4", rebind(DriverPgx, q))
	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, "?,?,?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}

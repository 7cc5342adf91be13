package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rca-rates/models"
)

// RateStore reads historical unit rates from the warehouse and can append
// API-sourced observations to it.
type RateStore struct {
	db     *sql.DB
	driver string
}

// OpenRateStore opens the warehouse with the named driver, waits for it to
// answer, and makes sure the rate table exists.
func OpenRateStore(ctx context.Context, driver, dsn string) (*RateStore, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("storage: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping failed after retries: %w", err)
	}

	rs := &RateStore{db: db, driver: driver}
	if err := rs.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return rs, nil
}

func (rs *RateStore) migrate(ctx context.Context) error {
	stmts := []string{`
		CREATE TABLE IF NOT EXISTS rate_observations (
			store_id           VARCHAR(64)   NOT NULL,
			unit_type          VARCHAR(32)   NOT NULL DEFAULT 'Unit',
			size               VARCHAR(32)   NOT NULL,
			climate_controlled BOOLEAN,
			drive_up           BOOLEAN,
			regular_rate       NUMERIC(10,2),
			online_rate        NUMERIC(10,2),
			promo              TEXT,
			date_collected     DATE          NOT NULL,
			source             VARCHAR(16)   NOT NULL DEFAULT 'database'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_obs_store_date ON rate_observations(store_id, date_collected)`,
	}
	for _, stmt := range stmts {
		if _, err := rs.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RatesInWindow implements RateSource.
func (rs *RateStore) RatesInWindow(ctx context.Context, storeIDs []models.StoreID, from, to time.Time) (map[models.StoreID][]models.DBRateRow, map[models.StoreID][]time.Time, error) {
	rowsByStore := make(map[models.StoreID][]models.DBRateRow)
	datesByStore := make(map[models.StoreID][]time.Time)
	if len(storeIDs) == 0 {
		return rowsByStore, datesByStore, nil
	}

	args := make([]any, 0, len(storeIDs)+2)
	for _, id := range storeIDs {
		args = append(args, string(id))
	}
	args = append(args, from.Format(models.DateLayout), to.Format(models.DateLayout))

	query := rebind(rs.driver, fmt.Sprintf(`
		SELECT store_id, unit_type, size, climate_controlled, drive_up,
		       regular_rate, online_rate, promo, date_collected
		FROM rate_observations
		WHERE store_id IN (%s)
		  AND date_collected BETWEEN ? AND ?
		ORDER BY store_id, date_collected
	`, placeholders(len(storeIDs))))

	rows, err := rs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: rates in window: %w", err)
	}
	defer rows.Close()

	seenDay := make(map[models.StoreID]map[time.Time]struct{})
	for rows.Next() {
		var (
			storeID, unitType, size string
			cc, du                  sql.NullBool
			regular, online, promo  sql.NullString
			collected               dateValue
		)
		if err := rows.Scan(&storeID, &unitType, &size, &cc, &du,
			&regular, &online, &promo, &collected); err != nil {
			return nil, nil, fmt.Errorf("storage: scan row: %w", err)
		}

		id := models.StoreID(storeID)
		row := models.DBRateRow{
			StoreID:           storeID,
			UnitType:          unitType,
			Size:              size,
			ClimateControlled: nullBool(cc),
			DriveUp:           nullBool(du),
			RegularRate:       nullString(regular),
			OnlineRate:        nullString(online),
			Promo:             nullString(promo),
			DateCollected:     collected.Time,
		}
		rowsByStore[id] = append(rowsByStore[id], row)

		if seenDay[id] == nil {
			seenDay[id] = make(map[time.Time]struct{})
		}
		if _, dup := seenDay[id][collected.Time]; !dup {
			seenDay[id][collected.Time] = struct{}{}
			datesByStore[id] = append(datesByStore[id], collected.Time)
		}
	}
	return rowsByStore, datesByStore, rows.Err()
}

// Write batch-inserts records, tagging each with its provenance.
func (rs *RateStore) Write(ctx context.Context, records []models.CanonicalRateRecord) error {
	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := rs.insertBatch(ctx, records[i:end]); err != nil {
			return fmt.Errorf("storage: write batch at %d: %w", i, err)
		}
	}
	return nil
}

func (rs *RateStore) insertBatch(ctx context.Context, batch []models.CanonicalRateRecord) error {
	const cols = 10
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*cols)

	for _, r := range batch {
		valueStrings = append(valueStrings, "("+placeholders(cols)+")")
		valueArgs = append(valueArgs,
			string(r.StoreID), r.UnitType, r.Size, r.ClimateControlled, r.DriveUp,
			rateArg(r.RegularRate), rateArg(r.OnlineRate), textArg(r.Promo),
			r.DateCollected.Format(models.DateLayout), string(r.Provenance))
	}

	query := rebind(rs.driver, fmt.Sprintf(`
		INSERT INTO rate_observations (
			store_id, unit_type, size, climate_controlled, drive_up,
			regular_rate, online_rate, promo, date_collected, source
		) VALUES %s
	`, strings.Join(valueStrings, ",")))

	_, err := rs.db.ExecContext(ctx, query, valueArgs...)
	return err
}

// Close releases the connection pool.
func (rs *RateStore) Close() error {
	return rs.db.Close()
}

// dateValue scans DATE columns from every supported driver: Postgres hands
// back time.Time, SQLite may hand back the stored text.
type dateValue struct {
	Time time.Time
}

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = models.DateOnly(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		return fmt.Errorf("null date_collected")
	}
	return fmt.Errorf("unsupported date type %T", src)
}

func (d *dateValue) parse(s string) error {
	s = strings.TrimSpace(s)
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	t, err := models.ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func rateArg(v *float64) any {
	if v == nil {
		return nil
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func textArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

package storage

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

func checkDriver(driver string) error {
	switch driver {
	case DriverPostgres, DriverPgx, DriverSQLite:
		return nil
	}
	return fmt.Errorf("storage: unsupported driver %q (want %s, %s or %s)",
		driver, DriverPostgres, DriverPgx, DriverSQLite)
}

// rebind rewrites ? placeholders to $1..$n for the Postgres drivers.
// Queries in this package never contain a literal question mark.
func rebind(driver, query string) string {
	if driver == DriverSQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// constraint describes a constraint failure reported by a driver.
type constraint struct {
	Code    string
	Column  string
	Message string
}

// Dialect adapts SQL text and driver errors to one database.
type Dialect struct {
	Name       string
	driverName string
	// placeholder returns the bind marker of the n-th argument, 1-based.
	placeholder func(n int) string
	constraint  func(err error) (constraint, bool)
}

// Postgres uses pgx through database/sql.
var Postgres = Dialect{
	Name:        DriverPostgres,
	driverName:  "pgx",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	constraint: func(err error) (constraint, bool) {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || !strings.HasPrefix(pgErr.Code, "23") {
			return constraint{}, false
		}
		column := pgErr.ColumnName
		if column == "" {
			column = pgErr.ConstraintName
		}
		return constraint{Code: pgErr.Code, Column: column, Message: pgErr.Message}, true
	},
}

// SQLite uses the pure Go modernc driver.
var SQLite = Dialect{
	Name:        DriverSQLite,
	driverName:  "sqlite",
	placeholder: func(int) string { return "?" },
	constraint: func(err error) (constraint, bool) {
		var sqlErr *sqlite.Error
		if !errors.As(err, &sqlErr) || sqlErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
			return constraint{}, false
		}
		msg := sqlErr.Error()
		return constraint{
			Code:    strconv.Itoa(sqlErr.Code()),
			Column:  failedColumn(msg),
			Message: msg,
		}, true
	},
}

// failedColumn extracts "slug" from "UNIQUE constraint failed: articles.slug".
func failedColumn(msg string) string {
	i := strings.LastIndex(msg, "failed: ")
	if i < 0 {
		return ""
	}
	rest, _, _ := strings.Cut(msg[i+len("failed: "):], ",")
	rest, _, _ = strings.Cut(rest, " ")
	if i = strings.LastIndex(rest, "."); i >= 0 {
		rest = rest[i+1:]
	}
	return strings.TrimSuffix(rest, ")")
}

// DialectFor returns the dialect of driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return Postgres, nil
	case DriverSQLite:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// Open opens and pings a database for driver.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	conn, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s: %w", driver, err)
	}
	if d.Name == DriverSQLite {
		// one connection keeps ":memory:" databases shared
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s: %w", driver, err)
	}
	return conn, d, nil
}

func (d Dialect) placeholders(from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = d.placeholder(from + i)
	}
	return out
}

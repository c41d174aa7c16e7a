package querysql

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Driver names accepted by ForDriver and store.Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DateLayout is the storage form of dates on SQLite.
const DateLayout = "2006-01-02"

// Dialect captures every difference between storage backends that the
// compiler and the write statements care about.
type Dialect interface {
	// Name returns the driver name (DriverSQLite, DriverPostgres).
	Name() string

	// Placeholder returns the n-th (1-based) parameter placeholder.
	Placeholder(n int) string

	// Contains returns a case-insensitive match of column against the LIKE
	// pattern bound at placeholder, using '\' as the escape character.
	Contains(column, placeholder string) string

	// LockClause returns the suffix locking the rows of alias, or "".
	LockClause(alias string) string

	// Param converts a Go value into the form the driver stores.
	Param(v any) any

	// PlaceholderFormat returns the squirrel placeholder format.
	PlaceholderFormat() sq.PlaceholderFormat
}

// SQLite is the dialect of github.com/mattn/go-sqlite3.
//
// SQLite's LIKE folds ASCII only, so Contains passes both sides through
// CaseFoldFunc. SQLite has no row locks; the store opens immediate
// transactions so the database write lock is taken at BEGIN, which
// serializes writers the same way a row lock would.
type SQLite struct{}

func (SQLite) Name() string                            { return DriverSQLite }
func (SQLite) Placeholder(int) string                  { return "?" }
func (SQLite) LockClause(string) string                { return "" }
func (SQLite) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

// CaseFoldFunc is the SQL function folding text for Contains. The store
// registers it on every SQLite connection.
const CaseFoldFunc = "casefold"

func (SQLite) Contains(column, placeholder string) string {
	return fmt.Sprintf(`%s(%s) LIKE %s(%s) ESCAPE '\'`, CaseFoldFunc, column, CaseFoldFunc, placeholder)
}

// Param stores dates as YYYY-MM-DD text so that range comparisons are
// lexicographic and exact.
func (SQLite) Param(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(DateLayout)
	}
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil
		}
		return t.UTC().Format(DateLayout)
	}
	return v
}

// Postgres is the dialect of github.com/jackc/pgx/v5/stdlib.
type Postgres struct{}

func (Postgres) Name() string                            { return DriverPostgres }
func (Postgres) Placeholder(n int) string                { return fmt.Sprintf("$%d", n) }
func (Postgres) Param(v any) any                         { return v }
func (Postgres) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }

// Contains uses ILIKE, which folds case by the database collation.
func (Postgres) Contains(column, placeholder string) string {
	return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, column, placeholder)
}

// LockClause restricts the lock to the root alias; PostgreSQL refuses to lock
// the nullable side of an outer join.
func (Postgres) LockClause(alias string) string {
	return " FOR UPDATE OF " + alias
}

// ForDriver returns the dialect for a driver name.
func ForDriver(name string) (Dialect, error) {
	switch name {
	case DriverSQLite, "sqlite3":
		return SQLite{}, nil
	case DriverPostgres, "postgresql", "pgx":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q (want %s or %s)", name, DriverSQLite, DriverPostgres)
	}
}

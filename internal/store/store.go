package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"

	"github.com/roach88/libris/internal/querysql"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Schema version tracking (SQLite):
// 0 - Initial schema (pre-migration)
// 1 - Added index on book_authors.author_id
const currentSchemaVersion = 1

// sqliteDriverName is the mattn driver with casefold registered on every
// connection.
const sqliteDriverName = "sqlite3_libris"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(querysql.CaseFoldFunc, caseFold, true)
		},
	})
}

// caseFold applies Unicode full case folding to text and passes other values
// (NULL included) through unchanged.
func caseFold(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return cases.Fold().String(s)
}

// DefaultBusyTimeout is how long SQLite waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// Options selects and configures a backend.
type Options struct {
	// Driver is "sqlite" or "postgres" (aliases accepted by querysql.ForDriver).
	Driver string

	// DSN is a file path (or ":memory:") for SQLite, a connection URL for PostgreSQL.
	DSN string

	// BusyTimeout applies to SQLite only. Zero means DefaultBusyTimeout.
	BusyTimeout time.Duration

	// MaxOpenConns applies to PostgreSQL only. Zero leaves the pool unbounded.
	MaxOpenConns int

	// Logger receives statement logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Store provides durable storage for authors and books.
type Store struct {
	db       *sql.DB
	dialect  querysql.Dialect
	compiler *querysql.SQLCompiler
	logger   *slog.Logger
}

// Open connects to the configured backend and applies the schema.
//
// This function is idempotent - safe to call multiple times on the same database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = querysql.DriverSQLite
	}
	dialect, err := querysql.ForDriver(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, errors.New("open store: empty DSN")
	}

	var db *sql.DB
	switch dialect.Name() {
	case querysql.DriverSQLite:
		db, err = openSQLite(ctx, opts)
	case querysql.DriverPostgres:
		db, err = openPostgres(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:       db,
		dialect:  dialect,
		compiler: querysql.NewSQLCompiler(dialect),
		logger:   logger,
	}, nil
}

// OpenSQLite opens a SQLite database at path with default options.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	return Open(ctx, Options{Driver: querysql.DriverSQLite, DSN: path})
}

func openSQLite(ctx context.Context, opts Options) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, sqliteDSN(opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// A single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	timeout := opts.BusyTimeout
	if timeout == 0 {
		timeout = DefaultBusyTimeout
	}
	if err := applyPragmas(ctx, db, timeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(ctx, db, schemaSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// sqliteDSN makes every transaction BEGIN IMMEDIATE.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + "_txlock=immediate"
}

func openPostgres(ctx context.Context, opts Options) (*sql.DB, error) {
	db, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applySchema(ctx, db, schemaPostgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Tx methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend dialect.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// WithTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = sqlTx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, dialect: s.dialect, compiler: s.compiler, logger: s.logger}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, busyTimeout time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist.
// Statements are executed one at a time. This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB, schema string) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}
	return nil
}

// splitStatements splits a schema file on semicolons, dropping empty chunks.
func splitStatements(schema string) []string {
	var stmts []string
	for _, chunk := range strings.Split(schema, ";") {
		if strings.TrimSpace(stripComments(chunk)) == "" {
			continue
		}
		stmts = append(stmts, strings.TrimSpace(chunk))
	}
	return stmts
}

func stripComments(chunk string) string {
	var b strings.Builder
	for _, line := range strings.Split(chunk, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes the link table by author so author-side relation
// loads and cascades do not scan it.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_book_authors_author
		ON book_authors(author_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

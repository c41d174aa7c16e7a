package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/querysql"
)

// createTestStore creates a new file-backed SQLite store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createPostgresStore opens the database named by LIBRIS_TEST_POSTGRES_URL,
// skipping the test when it is unset. Tables are emptied first.
func createPostgresStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LIBRIS_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("LIBRIS_TEST_POSTGRES_URL not set")
	}
	s, err := Open(context.Background(), Options{Driver: querysql.DriverPostgres, DSN: dsn})
	require.NoError(t, err)
	_, err = s.DB().Exec("TRUNCATE book_authors, books, authors RESTART IDENTITY")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testDay = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func authorValues(first, last string) map[string]any {
	return map[string]any{
		"first_name":  first,
		"middle_name": (*string)(nil),
		"last_name":   last,
		"created_by":  "tester",
		"created_on":  testDay,
	}
}

func bookValues(title string, year int64) map[string]any {
	return map[string]any{
		"title":            title,
		"publication_year": year,
		"language":         model.LanguageEN,
		"created_by":       "tester",
		"created_on":       testDay,
	}
}

// insertAuthor inserts an author inside its own transaction.
func insertAuthor(t *testing.T, s *Store, first, last string) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		id, err = tx.Insert(context.Background(), model.AuthorEntity, authorValues(first, last))
		return err
	})
	require.NoError(t, err)
	return id
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

package querysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/libris/internal/queryir"
)

func authorsByLastName() queryir.Select {
	return queryir.Select{
		From: queryir.Source{Table: "authors", Alias: "t0"},
		Columns: []queryir.Column{
			{ColumnRef: queryir.Col("t0", "id"), As: "id"},
			{ColumnRef: queryir.Col("t0", "last_name"), As: "last_name"},
		},
		Filter:  queryir.Contains{Column: queryir.Col("t0", "last_name"), Value: "co"},
		OrderBy: []queryir.ColumnRef{queryir.Col("t0", "id")},
	}
}

func TestCompile_SimpleSelect(t *testing.T) {
	compiler := NewSQLCompiler(SQLite{})

	sql, params, err := compiler.Compile(authorsByLastName())
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT t0.id AS id, t0.last_name AS last_name FROM authors AS t0 WHERE casefold(t0.last_name) LIKE casefold(?) ESCAPE '\' ORDER BY t0.id ASC`,
		sql)
	assert.Equal(t, []any{"%co%"}, params)
}

func TestCompile_PostgresDialect(t *testing.T) {
	compiler := NewSQLCompiler(Postgres{})

	q := authorsByLastName()
	q.Filter = queryir.And{Predicates: []queryir.Predicate{
		queryir.Contains{Column: queryir.Col("t0", "last_name"), Value: "co"},
		queryir.Equals{Column: queryir.Col("t0", "id"), Value: int64(3)},
	}}
	q.Lock = true

	sql, params, err := compiler.Compile(q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT t0.id AS id, t0.last_name AS last_name FROM authors AS t0 WHERE t0.last_name ILIKE $1 ESCAPE '\' AND t0.id = $2 ORDER BY t0.id ASC FOR UPDATE OF t0`,
		sql)
	assert.Equal(t, []any{"%co%", int64(3)}, params)
}

func TestCompile_SQLiteIgnoresLock(t *testing.T) {
	q := authorsByLastName()
	q.Lock = true

	sql, _, err := NewSQLCompiler(SQLite{}).Compile(q)
	require.NoError(t, err)
	assert.NotContains(t, sql, "FOR UPDATE")
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	compiler := NewSQLCompiler(SQLite{})

	// Use a value that would be dangerous if interpolated
	dangerousValue := "'; DROP TABLE authors; --"

	q := authorsByLastName()
	q.Filter = queryir.Equals{Column: queryir.Col("t0", "last_name"), Value: dangerousValue}

	sql, params, err := compiler.Compile(q)
	require.NoError(t, err)

	assert.NotContains(t, sql, dangerousValue,
		"Value MUST NOT be interpolated into SQL (SQL injection risk)")
	assert.Contains(t, params, dangerousValue)
	assert.Contains(t, sql, "t0.last_name = ?")
}

func TestCompile_ContainsEscapesWildcards(t *testing.T) {
	q := authorsByLastName()
	q.Filter = queryir.Contains{Column: queryir.Col("t0", "last_name"), Value: `100%_\`}

	_, params, err := NewSQLCompiler(SQLite{}).Compile(q)
	require.NoError(t, err)

	assert.Equal(t, []any{`%100\%\_\\%`}, params)
}

func TestCompile_BetweenDatesOnSQLite(t *testing.T) {
	q := authorsByLastName()
	q.Filter = queryir.Between{
		Column: queryir.Col("t0", "created_on"),
		From:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	sql, params, err := NewSQLCompiler(SQLite{}).Compile(q)
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE t0.created_on BETWEEN ? AND ?")
	assert.Equal(t, []any{"2024-03-01", "2024-03-31"}, params)
}

func TestCompile_BetweenDatesOnPostgres(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	q := authorsByLastName()
	q.Filter = queryir.Between{Column: queryir.Col("t0", "created_on"), From: from, To: to}

	sql, params, err := NewSQLCompiler(Postgres{}).Compile(q)
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE t0.created_on BETWEEN $1 AND $2")
	assert.Equal(t, []any{from, to}, params)
}

func TestCompile_Joins(t *testing.T) {
	q := queryir.Select{
		From: queryir.Source{Table: "books", Alias: "t0"},
		Columns: []queryir.Column{
			{ColumnRef: queryir.Col("t0", "id"), As: "id"},
			{ColumnRef: queryir.Col("l_authors", "id"), As: "authors__id"},
		},
		Joins: []queryir.Join{
			{
				Kind:   queryir.LeftJoin,
				Source: queryir.Source{Table: "book_authors", Alias: "lk_authors"},
				On:     queryir.ColumnEquals{Left: queryir.Col("lk_authors", "book_id"), Right: queryir.Col("t0", "id")},
			},
			{
				Kind:   queryir.LeftJoin,
				Source: queryir.Source{Table: "authors", Alias: "l_authors"},
				On:     queryir.ColumnEquals{Left: queryir.Col("l_authors", "id"), Right: queryir.Col("lk_authors", "author_id")},
			},
		},
		OrderBy: []queryir.ColumnRef{queryir.Col("t0", "id"), queryir.Col("l_authors", "id")},
	}

	sql, params, err := NewSQLCompiler(SQLite{}).Compile(q)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT t0.id AS id, l_authors.id AS authors__id FROM books AS t0"+
			" LEFT JOIN book_authors AS lk_authors ON lk_authors.book_id = t0.id"+
			" LEFT JOIN authors AS l_authors ON l_authors.id = lk_authors.author_id"+
			" ORDER BY t0.id ASC, l_authors.id ASC",
		sql)
	assert.Empty(t, params)
}

func TestCompile_NestedAndIsParenthesized(t *testing.T) {
	q := authorsByLastName()
	q.Filter = queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Column: queryir.Col("t0", "id"), Value: int64(1)},
		queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Column: queryir.Col("t0", "last_name"), Value: "a"},
			queryir.Equals{Column: queryir.Col("t0", "last_name"), Value: "b"},
		}},
		queryir.And{},
	}}

	sql, params, err := NewSQLCompiler(Postgres{}).Compile(q)
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE t0.id = $1 AND (t0.last_name = $2 AND t0.last_name = $3) AND (1 = 1)")
	assert.Equal(t, []any{int64(1), "a", "b"}, params)
}

func TestCompile_DefaultOrder(t *testing.T) {
	q := authorsByLastName()
	q.OrderBy = nil

	sql, _, err := NewSQLCompiler(SQLite{}).Compile(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY t0.id ASC")
}

func TestCompile_RejectsInvalidQuery(t *testing.T) {
	q := authorsByLastName()
	q.Columns = nil

	_, _, err := NewSQLCompiler(SQLite{}).Compile(q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty projection")
}

func TestForDriver(t *testing.T) {
	for name, want := range map[string]string{
		"sqlite":     DriverSQLite,
		"sqlite3":    DriverSQLite,
		"postgres":   DriverPostgres,
		"postgresql": DriverPostgres,
		"pgx":        DriverPostgres,
	} {
		d, err := ForDriver(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name())
	}

	_, err := ForDriver("mysql")
	assert.Error(t, err)
}

func TestSQLiteParam(t *testing.T) {
	d := SQLite{}
	day := time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-05-06", d.Param(day))
	assert.Equal(t, "2024-05-06", d.Param(&day))
	assert.Nil(t, d.Param((*time.Time)(nil)))
	assert.Equal(t, int64(4), d.Param(int64(4)))
}

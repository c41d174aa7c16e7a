package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/queryir"
	"github.com/roach88/libris/internal/querysql"
)

// Querier is the statement surface shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Tx is one open transaction. It is only valid inside the WithTx callback.
type Tx struct {
	tx       Querier
	dialect  querysql.Dialect
	compiler *querysql.SQLCompiler
	logger   *slog.Logger
}

// Dialect returns the backend dialect.
func (t *Tx) Dialect() querysql.Dialect {
	return t.dialect
}

// WithLogger returns a view of the same transaction that logs to logger.
func (t *Tx) WithLogger(logger *slog.Logger) *Tx {
	c := *t
	c.logger = logger
	return &c
}

// Select compiles q and runs it.
// Callers are responsible for closing the returned rows.
func (t *Tx) Select(ctx context.Context, q queryir.Select) (*sql.Rows, error) {
	query, params, err := t.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile select on %s: %w", q.From.Table, err)
	}
	t.logger.Debug("select compiled", "table", q.From.Table, "sql", query, "params", len(params))
	rows, err := t.tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.From.Table, err)
	}
	return rows, nil
}

// LinkMembers returns the ids linked to owner through rel, ascending.
// Returns an empty slice (not nil) when there are none.
func (t *Tx) LinkMembers(ctx context.Context, rel model.Relation, owner int64) ([]int64, error) {
	query, args, err := sq.Select(rel.TargetColumn).
		From(rel.LinkTable).
		Where(sq.Eq{rel.OwnerColumn: owner}).
		OrderBy(rel.TargetColumn + " ASC").
		PlaceholderFormat(t.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s members query: %w", rel.Name, err)
	}
	return t.queryIDs(ctx, query, args, rel.LinkTable)
}

// MissingIDs returns the ids in ids without a row in e's table, in input order.
func (t *Tx) MissingIDs(ctx context.Context, e *model.Entity, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sq.Select(e.PrimaryKey).
		From(e.Table).
		Where(sq.Eq{e.PrimaryKey: ids}).
		OrderBy(e.PrimaryKey + " ASC").
		PlaceholderFormat(t.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s existence query: %w", e.Table, err)
	}
	found, err := t.queryIDs(ctx, query, args, e.Table)
	if err != nil {
		return nil, err
	}

	present := make(map[int64]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []int64
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Count returns the number of rows in e's table.
func (t *Tx) Count(ctx context.Context, e *model.Entity) (int64, error) {
	query, args, err := sq.Select("COUNT(*)").From(e.Table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s count: %w", e.Table, err)
	}
	var n int64
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", e.Table, err)
	}
	return n, nil
}

func (t *Tx) queryIDs(ctx context.Context, query string, args []any, table string) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return ids, nil
}

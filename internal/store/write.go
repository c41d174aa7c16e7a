package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/libris/internal/model"
)

// Insert adds one row to e's table and returns its generated primary key.
// Values are keyed by column name; dates are converted by the dialect.
func (t *Tx) Insert(ctx context.Context, e *model.Entity, values map[string]any) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("insert %s: no values", e.Table)
	}
	query, args, err := sq.Insert(e.Table).
		SetMap(t.params(values)).
		Suffix("RETURNING " + e.PrimaryKey).
		PlaceholderFormat(t.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert %s: %w", e.Table, err)
	}

	var id int64
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", e.Table, err)
	}
	return id, nil
}

// Update sets the given columns on the row with primary key id.
// Returns false when no such row exists.
func (t *Tx) Update(ctx context.Context, e *model.Entity, id int64, values map[string]any) (bool, error) {
	if len(values) == 0 {
		return false, errors.New("update " + e.Table + ": no values")
	}
	query, args, err := sq.Update(e.Table).
		SetMap(t.params(values)).
		Where(sq.Eq{e.PrimaryKey: id}).
		PlaceholderFormat(t.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update %s: %w", e.Table, err)
	}
	return t.exec(ctx, "update "+e.Table, query, args)
}

// Delete removes the row with primary key id. Link rows cascade.
// Returns false when no such row exists.
func (t *Tx) Delete(ctx context.Context, e *model.Entity, id int64) (bool, error) {
	query, args, err := sq.Delete(e.Table).
		Where(sq.Eq{e.PrimaryKey: id}).
		PlaceholderFormat(t.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete %s: %w", e.Table, err)
	}
	return t.exec(ctx, "delete "+e.Table, query, args)
}

// Link adds one link row per target. Existing pairs are left untouched
// (ON CONFLICT DO NOTHING), so linking is idempotent.
// Returns the number of pairs actually added.
func (t *Tx) Link(ctx context.Context, rel model.Relation, owner int64, targets []int64) (int64, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	b := sq.Insert(rel.LinkTable).Columns(rel.OwnerColumn, rel.TargetColumn)
	for _, target := range targets {
		b = b.Values(owner, target)
	}
	query, args, err := b.
		Suffix("ON CONFLICT DO NOTHING").
		PlaceholderFormat(t.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build link %s: %w", rel.LinkTable, err)
	}
	return t.execCount(ctx, "link "+rel.LinkTable, query, args)
}

// Unlink removes the link rows between owner and targets.
// Pairs that do not exist are ignored. Returns the number of pairs removed.
func (t *Tx) Unlink(ctx context.Context, rel model.Relation, owner int64, targets []int64) (int64, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	query, args, err := sq.Delete(rel.LinkTable).
		Where(sq.Eq{rel.OwnerColumn: owner}).
		Where(sq.Eq{rel.TargetColumn: targets}).
		PlaceholderFormat(t.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build unlink %s: %w", rel.LinkTable, err)
	}
	return t.execCount(ctx, "unlink "+rel.LinkTable, query, args)
}

// params converts values into the form the driver stores.
func (t *Tx) params(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = t.dialect.Param(v)
	}
	return out
}

func (t *Tx) exec(ctx context.Context, op, query string, args []any) (bool, error) {
	n, err := t.execCount(ctx, op, query, args)
	return n > 0, err
}

func (t *Tx) execCount(ctx context.Context, op, query string, args []any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n, nil
}

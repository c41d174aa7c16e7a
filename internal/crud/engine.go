package crud

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/roach88/libris/internal/dataerr"
	"github.com/roach88/libris/internal/filter"
	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/querybuild"
	"github.com/roach88/libris/internal/selection"
	"github.com/roach88/libris/internal/store"
)

// Engine performs the data-access operations of one entity.
//
// Engine is parameterized by the entity descriptor passed at construction
// and by R, the typed row the entity's reads produce. Operations take the
// enclosing transaction so callers can compose several of them into one unit
// of work; the engine itself never commits.
//
// Thread-safety: Engine holds no per-call state and is safe for concurrent use.
type Engine[R model.Row] struct {
	entity   *model.Entity
	registry *model.Registry
	builder  *querybuild.Builder
	newRow   func() R
	clock    Clock
	logger   *slog.Logger
}

// NewEngine creates the engine for entity. newRow allocates an empty row.
// A nil clock means SystemClock; a nil logger means slog.Default().
func NewEngine[R model.Row](entity *model.Entity, registry *model.Registry, newRow func() R, clock Clock, logger *slog.Logger) *Engine[R] {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine[R]{
		entity:   entity,
		registry: registry,
		builder:  querybuild.New(registry),
		newRow:   newRow,
		clock:    clock,
		logger:   logger,
	}
}

// Entity returns the engine's entity descriptor.
func (e *Engine[R]) Entity() *model.Entity {
	return e.entity
}

// Create inserts a row built from values and returns its generated key.
// created_by and created_on are stamped; values must not carry audit fields.
//
// Errors: PERSISTENCE when storage rejects the row.
func (e *Engine[R]) Create(ctx context.Context, tx *store.Tx, values map[string]any, user string) (int64, error) {
	row := make(map[string]any, len(values)+2)
	for k, v := range values {
		row[k] = v
	}
	row["created_by"] = user
	row["created_on"] = e.clock.Today()

	id, err := tx.Insert(ctx, e.entity, row)
	if err != nil {
		return 0, dataerr.Persistence(e.entity.Name, "create", err)
	}
	e.logger.Debug("row created", "entity", e.entity.Name, "id", id)
	return id, nil
}

// FetchOne reads the row with the given key, loading what tree names.
// lock holds a write lock on the row until the transaction ends.
//
// Errors: NOT_FOUND, MULTIPLE_ROWS, and the query builder's errors.
func (e *Engine[R]) FetchOne(ctx context.Context, tx *store.Tx, id int64, tree selection.Tree, lock bool) (R, error) {
	var zero R
	opts := []querybuild.Option{querybuild.Identity(id)}
	if lock {
		opts = append(opts, querybuild.ForUpdate())
	}
	plan, err := e.builder.Build(e.entity, tree, opts...)
	if err != nil {
		return zero, err
	}

	rows, err := e.execute(ctx, tx, plan)
	if err != nil {
		return zero, err
	}
	switch len(rows) {
	case 0:
		return zero, dataerr.NotFound(e.entity.Name, id)
	case 1:
		return rows[0], nil
	default:
		return zero, dataerr.MultipleRows(e.entity.Name, id, len(rows))
	}
}

// FetchMany reads every row matching spec, loading what tree names.
// Rows come back ordered by primary key. No locks are taken.
func (e *Engine[R]) FetchMany(ctx context.Context, tx *store.Tx, tree selection.Tree, spec filter.Spec) ([]R, error) {
	plan, err := e.builder.Build(e.entity, tree, querybuild.Filter(spec))
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, tx, plan)
}

// UpdateOne locks the row, sets the columns in values, stamps
// last_updated_by and last_updated_on, and returns the row as tree selects it.
// Columns absent from values keep their stored value.
//
// Errors: NOT_FOUND when the row does not exist, PERSISTENCE on write failure.
func (e *Engine[R]) UpdateOne(ctx context.Context, tx *store.Tx, id int64, values map[string]any, user string, tree selection.Tree) (R, error) {
	var zero R
	if _, err := e.FetchOne(ctx, tx, id, keyOnly(e.entity), true); err != nil {
		return zero, err
	}

	changes := make(map[string]any, len(values)+2)
	for k, v := range values {
		changes[k] = v
	}
	changes["last_updated_by"] = user
	changes["last_updated_on"] = e.clock.Today()

	found, err := tx.Update(ctx, e.entity, id, changes)
	if err != nil {
		return zero, dataerr.Persistence(e.entity.Name, "update", err)
	}
	if !found {
		return zero, dataerr.NotFound(e.entity.Name, id)
	}
	e.logger.Debug("row updated", "entity", e.entity.Name, "id", id, "columns", len(values))

	return e.FetchOne(ctx, tx, id, tree, false)
}

// DeleteOne removes the row with the given key and returns the number of
// rows removed (0 or 1). A missing row is not an error.
//
// Link rows cascade, so deleting is refused with RELATION_CARDINALITY when it
// would leave a related row below its own relation minimum.
func (e *Engine[R]) DeleteOne(ctx context.Context, tx *store.Tx, id int64) (int64, error) {
	for _, rel := range e.entity.Relations {
		members, err := tx.LinkMembers(ctx, rel, id)
		if err != nil {
			return 0, dataerr.Persistence(e.entity.Name, "delete", err)
		}
		if err := e.checkInverse(ctx, tx, rel, members); err != nil {
			return 0, err
		}
	}

	deleted, err := tx.Delete(ctx, e.entity, id)
	if err != nil {
		return 0, dataerr.Persistence(e.entity.Name, "delete", err)
	}
	if !deleted {
		return 0, nil
	}
	e.logger.Debug("row deleted", "entity", e.entity.Name, "id", id)
	return 1, nil
}

// AddRelationMembers links owner to every id in ids through relation.
// Members already present are skipped, so adding is idempotent.
//
// Errors: NOT_FOUND naming the first id without a related row; nothing is
// linked in that case.
func (e *Engine[R]) AddRelationMembers(ctx context.Context, tx *store.Tx, owner int64, relation string, ids []int64) error {
	rel, target, err := e.relation(relation)
	if err != nil {
		return err
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	missing, err := tx.MissingIDs(ctx, target, ids)
	if err != nil {
		return dataerr.Persistence(e.entity.Name, "add "+relation, err)
	}
	if len(missing) > 0 {
		return dataerr.NotFound(target.Name, missing[0])
	}

	added, err := tx.Link(ctx, rel, owner, ids)
	if err != nil {
		return dataerr.Persistence(e.entity.Name, "add "+relation, err)
	}
	e.logger.Debug("relation members added",
		"entity", e.entity.Name,
		"id", owner,
		"relation", relation,
		"requested", len(ids),
		"added", added,
	)
	return nil
}

// RemoveRelationMembers unlinks owner from the ids in ids through relation.
// Ids with no related row, or not currently members, are silently skipped:
// removal is a best-effort set difference.
//
// Errors: RELATION_CARDINALITY when the removal would leave owner (or a
// removed member, through the inverse relation) below the relation minimum;
// nothing is unlinked in that case.
func (e *Engine[R]) RemoveRelationMembers(ctx context.Context, tx *store.Tx, owner int64, relation string, ids []int64) error {
	rel, _, err := e.relation(relation)
	if err != nil {
		return err
	}

	current, err := tx.LinkMembers(ctx, rel, owner)
	if err != nil {
		return dataerr.Persistence(e.entity.Name, "remove "+relation, err)
	}
	isMember := make(map[int64]bool, len(current))
	for _, id := range current {
		isMember[id] = true
	}
	var removing []int64
	for _, id := range uniqueIDs(ids) {
		if isMember[id] {
			removing = append(removing, id)
		}
	}
	if len(removing) == 0 {
		return nil
	}

	remaining := len(current) - len(removing)
	if rel.MinMembers > 0 && remaining < rel.MinMembers {
		return dataerr.RelationCardinality(e.entity.Name, owner, rel.Name, rel.MinMembers, remaining)
	}
	if err := e.checkInverse(ctx, tx, rel, removing); err != nil {
		return err
	}

	removed, err := tx.Unlink(ctx, rel, owner, removing)
	if err != nil {
		return dataerr.Persistence(e.entity.Name, "remove "+relation, err)
	}
	e.logger.Debug("relation members removed",
		"entity", e.entity.Name,
		"id", owner,
		"relation", relation,
		"requested", len(ids),
		"removed", removed,
	)
	return nil
}

// Members returns the keys linked to owner through relation, ascending.
func (e *Engine[R]) Members(ctx context.Context, tx *store.Tx, owner int64, relation string) ([]int64, error) {
	rel, _, err := e.relation(relation)
	if err != nil {
		return nil, err
	}
	members, err := tx.LinkMembers(ctx, rel, owner)
	if err != nil {
		return nil, dataerr.Persistence(e.entity.Name, "read "+relation, err)
	}
	return members, nil
}

// checkInverse verifies that each target unlinked through rel keeps at least
// the inverse relation's minimum number of members.
func (e *Engine[R]) checkInverse(ctx context.Context, tx *store.Tx, rel model.Relation, targets []int64) error {
	if rel.Inverse == "" || len(targets) == 0 {
		return nil
	}
	target, err := e.registry.Target(rel)
	if err != nil {
		return err
	}
	inverse, ok := target.Relation(rel.Inverse)
	if !ok || inverse.MinMembers == 0 {
		return nil
	}
	for _, id := range targets {
		members, err := tx.LinkMembers(ctx, inverse, id)
		if err != nil {
			return dataerr.Persistence(target.Name, "read "+inverse.Name, err)
		}
		if remaining := len(members) - 1; remaining < inverse.MinMembers {
			return dataerr.RelationCardinality(target.Name, id, inverse.Name, inverse.MinMembers, remaining)
		}
	}
	return nil
}

func (e *Engine[R]) relation(name string) (model.Relation, *model.Entity, error) {
	rel, ok := e.entity.Relation(name)
	if !ok {
		return model.Relation{}, nil, dataerr.UnknownField(e.entity.Name, name)
	}
	target, err := e.registry.Target(rel)
	if err != nil {
		return model.Relation{}, nil, err
	}
	return rel, target, nil
}

// execute runs a plan and assembles its rows.
func (e *Engine[R]) execute(ctx context.Context, tx *store.Tx, plan *querybuild.Plan) ([]R, error) {
	rows, err := tx.Select(ctx, plan.Query)
	if err != nil {
		return nil, dataerr.Persistence(e.entity.Name, "read", err)
	}
	defer rows.Close()

	a := newAssembler(plan, e.newRow)
	if err := a.scan(rows); err != nil {
		return nil, dataerr.Persistence(e.entity.Name, "read", err)
	}
	return a.roots, nil
}

// keyOnly selects nothing beyond the primary key.
func keyOnly(e *model.Entity) selection.Tree {
	return selection.Fields(e.PrimaryKey)
}

// uniqueIDs drops duplicates and sorts ascending.
func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// asDataError wraps any error that is not already a *dataerr.Error as a
// PERSISTENCE error for entity.
func asDataError(entity, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *dataerr.Error
	if errors.As(err, &de) {
		return err
	}
	return dataerr.Persistence(entity, op, err)
}

package crud

import (
	"context"
	"log/slog"

	"github.com/roach88/libris/internal/filter"
	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/selection"
	"github.com/roach88/libris/internal/store"
	"github.com/roach88/libris/internal/validate"
)

// Authors serves Author operations.
type Authors struct {
	*runner
	engine    *Engine[*model.Author]
	validator *validate.Validator
}

// Engine exposes the underlying Author engine.
func (s *Authors) Engine() *Engine[*model.Author] {
	return s.engine
}

// Create validates p, inserts the author on behalf of user, and returns it
// as tree selects it.
func (s *Authors) Create(ctx context.Context, user string, p validate.AuthorCreate, tree selection.Tree) (*model.Author, error) {
	p, err := s.validator.AuthorCreate(p, user)
	if err != nil {
		return nil, s.failed(model.AuthorName, "create", err)
	}
	user = validate.Normalize(user)

	var out *model.Author
	err = s.run(ctx, model.AuthorName, "create", func(tx *store.Tx, log *slog.Logger) error {
		id, err := s.engine.Create(ctx, tx, authorCreateValues(p), user)
		if err != nil {
			return err
		}
		log.Debug("author inserted", "id", id)
		out, err = s.engine.FetchOne(ctx, tx, id, tree, false)
		return err
	})
	return out, err
}

// Get returns the author with the given id.
func (s *Authors) Get(ctx context.Context, id int64, tree selection.Tree) (*model.Author, error) {
	var out *model.Author
	err := s.run(ctx, model.AuthorName, "get", func(tx *store.Tx, _ *slog.Logger) error {
		var err error
		out, err = s.engine.FetchOne(ctx, tx, id, tree, false)
		return err
	})
	return out, err
}

// List returns every author matching spec.
func (s *Authors) List(ctx context.Context, tree selection.Tree, spec filter.Spec) ([]*model.Author, error) {
	var out []*model.Author
	err := s.run(ctx, model.AuthorName, "list", func(tx *store.Tx, log *slog.Logger) error {
		var err error
		out, err = s.engine.FetchMany(ctx, tx, tree, spec)
		log.Debug("authors listed", "count", len(out))
		return err
	})
	return out, err
}

// Update applies the fields present in p on behalf of user.
func (s *Authors) Update(ctx context.Context, user string, id int64, p validate.AuthorUpdate, tree selection.Tree) (*model.Author, error) {
	p, err := s.validator.AuthorUpdate(p, user)
	if err != nil {
		return nil, s.failed(model.AuthorName, "update", err)
	}
	user = validate.Normalize(user)

	var out *model.Author
	err = s.run(ctx, model.AuthorName, "update", func(tx *store.Tx, _ *slog.Logger) error {
		var err error
		out, err = s.engine.UpdateOne(ctx, tx, id, authorUpdateValues(p), user, tree)
		return err
	})
	return out, err
}

// Delete removes the author. It reports false when no such author exists.
// Deleting the only author of a book is refused.
func (s *Authors) Delete(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := s.run(ctx, model.AuthorName, "delete", func(tx *store.Tx, _ *slog.Logger) error {
		var err error
		n, err = s.engine.DeleteOne(ctx, tx, id)
		return err
	})
	return n > 0, err
}

func authorCreateValues(p validate.AuthorCreate) map[string]any {
	return map[string]any{
		"first_name":  p.FirstName,
		"middle_name": p.MiddleName,
		"last_name":   p.LastName,
	}
}

func authorUpdateValues(p validate.AuthorUpdate) map[string]any {
	values := map[string]any{}
	if p.FirstName != nil {
		values["first_name"] = *p.FirstName
	}
	if p.MiddleName != nil {
		values["middle_name"] = *p.MiddleName
	}
	if p.LastName != nil {
		values["last_name"] = *p.LastName
	}
	return values
}

package crud

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/libris/internal/dataerr"
	"github.com/roach88/libris/internal/filter"
	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/selection"
	"github.com/roach88/libris/internal/store"
	"github.com/roach88/libris/internal/validate"
)

// authorsRelation is the Book relation holding its authors.
const authorsRelation = "authors"

// Books serves Book operations.
type Books struct {
	*runner
	engine    *Engine[*model.Book]
	validator *validate.Validator
}

// Engine exposes the underlying Book engine.
func (s *Books) Engine() *Engine[*model.Book] {
	return s.engine
}

// Create validates p and inserts the book with its authors on behalf of user.
//
// Errors:
//   - VALIDATION: p breaks its contract
//   - RELATED_OBJECT_MISSING: p names no author (nothing is written)
//   - NOT_FOUND: an author id does not exist (the book row is rolled back)
func (s *Books) Create(ctx context.Context, user string, p validate.BookCreate, tree selection.Tree) (*model.Book, error) {
	p, err := s.validator.BookCreate(p, user)
	if err != nil {
		return nil, s.failed(model.BookName, "create", err)
	}
	if len(p.AuthorIDs) == 0 {
		return nil, s.failed(model.BookName, "create", dataerr.RelatedObjectMissing(model.BookName, model.AuthorName))
	}
	user = validate.Normalize(user)

	var out *model.Book
	err = s.run(ctx, model.BookName, "create", func(tx *store.Tx, log *slog.Logger) error {
		id, err := s.engine.Create(ctx, tx, bookCreateValues(p), user)
		if err != nil {
			return err
		}
		if err := s.engine.AddRelationMembers(ctx, tx, id, authorsRelation, p.AuthorIDs); err != nil {
			return err
		}
		log.Debug("book inserted", "id", id, "authors", len(p.AuthorIDs))
		out, err = s.engine.FetchOne(ctx, tx, id, tree, false)
		return err
	})
	return out, err
}

// Get returns the book with the given id.
func (s *Books) Get(ctx context.Context, id int64, tree selection.Tree) (*model.Book, error) {
	var out *model.Book
	err := s.run(ctx, model.BookName, "get", func(tx *store.Tx, _ *slog.Logger) error {
		var err error
		out, err = s.engine.FetchOne(ctx, tx, id, tree, false)
		return err
	})
	return out, err
}

// List returns every book matching spec.
func (s *Books) List(ctx context.Context, tree selection.Tree, spec filter.Spec) ([]*model.Book, error) {
	var out []*model.Book
	err := s.run(ctx, model.BookName, "list", func(tx *store.Tx, log *slog.Logger) error {
		var err error
		out, err = s.engine.FetchMany(ctx, tx, tree, spec)
		log.Debug("books listed", "count", len(out))
		return err
	})
	return out, err
}

// Update applies p to the book on behalf of user: authors in AddAuthors are
// linked first, then authors in RemoveAuthors are unlinked, then the fields
// present in p are written and the audit fields stamped.
//
// The book row is locked before its authors are counted, so concurrent
// updates of one book serialize. Any failure leaves the book unchanged.
func (s *Books) Update(ctx context.Context, user string, id int64, p validate.BookUpdate, tree selection.Tree) (*model.Book, error) {
	user = validate.Normalize(user)
	var out *model.Book
	err := s.run(ctx, model.BookName, "update", func(tx *store.Tx, log *slog.Logger) error {
		if _, err := s.engine.FetchOne(ctx, tx, id, keyOnly(model.BookEntity), true); err != nil {
			return err
		}
		current, err := s.engine.Members(ctx, tx, id, authorsRelation)
		if err != nil {
			return err
		}

		p, err := s.validator.BookUpdate(p, user, len(current))
		if err != nil {
			var de *dataerr.Error
			if errors.As(err, &de) && de.Code == dataerr.CodeRelationCardinality {
				de.ID = id
			}
			return err
		}

		if err := s.engine.AddRelationMembers(ctx, tx, id, authorsRelation, p.AddAuthors); err != nil {
			return err
		}
		if err := s.engine.RemoveRelationMembers(ctx, tx, id, authorsRelation, p.RemoveAuthors); err != nil {
			return err
		}
		log.Debug("book authors reconciled",
			"id", id,
			"before", len(current),
			"added", len(p.AddAuthors),
			"removed", len(p.RemoveAuthors),
		)

		out, err = s.engine.UpdateOne(ctx, tx, id, bookUpdateValues(p), user, tree)
		return err
	})
	return out, err
}

// AddAuthors links authors to the book on behalf of user.
func (s *Books) AddAuthors(ctx context.Context, user string, id int64, authorIDs []int64, tree selection.Tree) (*model.Book, error) {
	return s.Update(ctx, user, id, validate.BookUpdate{AddAuthors: authorIDs}, tree)
}

// RemoveAuthors unlinks authors from the book on behalf of user.
// Ids that are not authors of the book are skipped.
//
// Unlike Update, only the acting user is validated, so only the authors
// actually removed count against the book's minimum.
func (s *Books) RemoveAuthors(ctx context.Context, user string, id int64, authorIDs []int64, tree selection.Tree) (*model.Book, error) {
	user, err := s.validator.Actor(model.BookName, "last_updated_by", user)
	if err != nil {
		return nil, s.failed(model.BookName, "remove authors", err)
	}

	var out *model.Book
	err = s.run(ctx, model.BookName, "remove authors", func(tx *store.Tx, _ *slog.Logger) error {
		if _, err := s.engine.FetchOne(ctx, tx, id, keyOnly(model.BookEntity), true); err != nil {
			return err
		}
		if err := s.engine.RemoveRelationMembers(ctx, tx, id, authorsRelation, authorIDs); err != nil {
			return err
		}
		var err error
		out, err = s.engine.UpdateOne(ctx, tx, id, nil, user, tree)
		return err
	})
	return out, err
}

// Delete removes the book and its author links. It reports false when no
// such book exists.
func (s *Books) Delete(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := s.run(ctx, model.BookName, "delete", func(tx *store.Tx, _ *slog.Logger) error {
		var err error
		n, err = s.engine.DeleteOne(ctx, tx, id)
		return err
	})
	return n > 0, err
}

func bookCreateValues(p validate.BookCreate) map[string]any {
	values := map[string]any{
		"title":            p.Title,
		"publication_year": p.PublicationYear,
		"category":         p.Category,
	}
	if p.Language != nil {
		values["language"] = *p.Language
	}
	return values
}

func bookUpdateValues(p validate.BookUpdate) map[string]any {
	values := map[string]any{}
	if p.Title != nil {
		values["title"] = *p.Title
	}
	if p.PublicationYear != nil {
		values["publication_year"] = *p.PublicationYear
	}
	if p.Language != nil {
		values["language"] = *p.Language
	}
	if p.Category != nil {
		values["category"] = *p.Category
	}
	return values
}

package crud

import (
	"context"
	"log/slog"

	"github.com/roach88/libris/internal/dataerr"
	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/store"
	"github.com/roach88/libris/internal/validate"
)

// Options configures a Library. Zero values select the defaults.
type Options struct {
	Clock     Clock               // default SystemClock
	Logger    *slog.Logger        // default slog.Default()
	IDs       IDGenerator         // default UUIDv7Generator
	Validator *validate.Validator // default validate.MustNew()
}

// Library is the public surface of libris: one service per entity.
//
// Every service call is one unit of work: payloads are validated first, then
// one transaction runs every read and write of the call and either commits
// or leaves storage unchanged.
type Library struct {
	Authors *Authors
	Books   *Books
}

// New wires the services over st.
func New(st *store.Store, opts Options) *Library {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	if opts.Validator == nil {
		opts.Validator = validate.MustNew()
	}

	r := &runner{store: st, ids: opts.IDs, logger: opts.Logger}
	authors := NewEngine(model.AuthorEntity, model.Catalog, func() *model.Author { return &model.Author{} }, opts.Clock, opts.Logger)
	books := NewEngine(model.BookEntity, model.Catalog, func() *model.Book { return &model.Book{} }, opts.Clock, opts.Logger)

	return &Library{
		Authors: &Authors{runner: r, engine: authors, validator: opts.Validator},
		Books:   &Books{runner: r, engine: books, validator: opts.Validator},
	}
}

// runner executes one service call inside one transaction with a logger
// carrying the call's operation id.
type runner struct {
	store  *store.Store
	ids    IDGenerator
	logger *slog.Logger
}

func (r *runner) run(ctx context.Context, entity, op string, fn func(tx *store.Tx, log *slog.Logger) error) error {
	log := r.logger.With("op_id", r.ids.Generate(), "op", op, "entity", entity)
	log.Debug("operation started")

	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		return fn(tx.WithLogger(log), log)
	})
	if err != nil {
		err = asDataError(entity, op, err)
		log.Warn("operation failed", "code", dataerr.CodeOf(err), "error", err)
		return err
	}

	log.Info("operation completed")
	return nil
}

// failed logs an error raised before a transaction was opened.
func (r *runner) failed(entity, op string, err error) error {
	r.logger.Warn("operation rejected",
		"op_id", r.ids.Generate(),
		"op", op,
		"entity", entity,
		"code", dataerr.CodeOf(err),
		"error", err,
	)
	return err
}

package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/libris/internal/config"
	"github.com/roach88/libris/internal/crud"
	"github.com/roach88/libris/internal/store"
)

// session is the state one command runs with: the logger, an open store and
// the services over it.
type session struct {
	out    *OutputFormatter
	lib    *crud.Library
	store  *store.Store
	logger *slog.Logger
	user   string
}

// withSession opens the configured store, runs fn and closes the store.
// Errors returned by fn are reported through the output formatter.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	logger, err := newLogger(cmd.ErrOrStderr(), opts.Config, opts.Verbose)
	if err != nil {
		return out.Report(WrapExitError(ExitCommandError, "invalid log configuration", err))
	}
	slog.SetDefault(logger)

	// Use command's context if available (for testing), otherwise create one
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out.VerboseLog("Opening %s database as %s", opts.Config.Database.Driver, opts.Config.User)
	storeOpts := opts.Config.StoreOptions()
	storeOpts.Logger = logger
	st, err := store.Open(ctx, storeOpts)
	if err != nil {
		return out.Report(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	lib := crud.New(st, crud.Options{
		Clock:  opts.Clock,
		Logger: logger,
		IDs:    opts.IDs,
	})

	s := &session{out: out, lib: lib, store: st, logger: logger, user: opts.Config.User}
	if err := fn(ctx, s); err != nil {
		return out.Report(err)
	}
	return nil
}

// newLogger builds the process logger on w. Verbose forces debug level.
func newLogger(w io.Writer, cfg config.Config, verbose bool) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), nil
}

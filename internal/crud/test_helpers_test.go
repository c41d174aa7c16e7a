package crud

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/selection"
	"github.com/roach88/libris/internal/store"
	"github.com/roach88/libris/internal/testutil"
	"github.com/roach88/libris/internal/validate"
)

const testUser = "admin"

// fixture bundles a library over a fresh SQLite file with a settable clock.
type fixture struct {
	lib   *Library
	store *store.Store
	clock *testutil.DeterministicClock
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "libris.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logs := &bytes.Buffer{}
	clock := testutil.NewDeterministicClock(time.Time{})
	lib := New(st, Options{
		Clock:  clock,
		Logger: slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		IDs:    testutil.NewFixedOpIDGenerator("op-test"),
	})
	return &fixture{lib: lib, store: st, clock: clock, logs: logs}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) author(t *testing.T, first, last string) *model.Author {
	t.Helper()
	a, err := f.lib.Authors.Create(context.Background(), testUser, validate.AuthorCreate{
		FirstName: first,
		LastName:  last,
	}, nil)
	require.NoError(t, err)
	return a
}

func (f *fixture) book(t *testing.T, title string, authors ...int64) *model.Book {
	t.Helper()
	b, err := f.lib.Books.Create(context.Background(), testUser, validate.BookCreate{
		Title:           title,
		PublicationYear: 1954,
		AuthorIDs:       authors,
	}, nil)
	require.NoError(t, err)
	return b
}

// count returns the number of rows stored for e.
func (f *fixture) count(t *testing.T, e *model.Entity) int64 {
	t.Helper()
	var n int64
	err := f.store.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		n, err = tx.Count(context.Background(), e)
		return err
	})
	require.NoError(t, err)
	return n
}

// authorIDsOf reloads a book's author ids.
func (f *fixture) authorIDsOf(t *testing.T, bookID int64) []int64 {
	t.Helper()
	b, err := f.lib.Books.Get(context.Background(), bookID, selection.Tree{
		selection.Branch("authors", selection.Leaf("id")),
	})
	require.NoError(t, err)
	return b.AuthorIDs()
}

func ids[R model.Row](rows []R) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.Key()
	}
	return out
}

package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/libris/internal/crud"
	"github.com/roach88/libris/internal/dataerr"
	"github.com/roach88/libris/internal/filter"
	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/selection"
	"github.com/roach88/libris/internal/store"
	"github.com/roach88/libris/internal/testutil"
	"github.com/roach88/libris/internal/validate"
)

// DefaultUser acts for scenarios and steps that name no user.
const DefaultUser = "harness"

// OpID is the operation id every scenario call logs.
const OpID = "op-harness"

var authorIDsTree = selection.MustParse("authors { id }")

// Harness runs scenarios against a library.
type Harness struct {
	lib   *crud.Library
	clock *testutil.DeterministicClock
}

// New creates a harness over lib. clock must be the clock lib stamps audit
// dates with; advance_clock steps move it.
func New(lib *crud.Library, clock *testutil.DeterministicClock) *Harness {
	return &Harness{lib: lib, clock: clock}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// deterministic clock starting on testutil.DefaultDate and a fixed
// operation id, so identical scenarios produce identical results.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock(time.Time{})
	lib := crud.New(st, crud.Options{
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		IDs:    testutil.NewFixedOpIDGenerator(OpID),
	})
	return New(lib, clock).Run(ctx, scenario)
}

// Run executes the scenario's steps in order.
//
// A step failing with an unexpected error code, or not failing when an
// error was expected, is recorded in Result.Errors and execution moves on.
// A returned error means the scenario itself is broken: an argument that
// does not decode, an unknown reference, or an error that is not a data
// error.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult(scenario.Name)
	saved := map[string]int64{}

	for i := range scenario.Steps {
		st := &scenario.Steps[i]
		user := st.User
		if user == "" {
			user = scenario.User
		}
		if user == "" {
			user = DefaultUser
		}

		sr, err := h.execute(ctx, st, user, saved)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, st.Op, err)
		}
		sr.Step = i
		stepErr := sr.err
		if stepErr != nil {
			code := dataerr.CodeOf(stepErr)
			if code == "" {
				return nil, fmt.Errorf("steps[%d] (%s): %w", i, st.Op, stepErr)
			}
			sr.Error = string(code)
		}
		if st.SaveAs != "" && sr.ID != 0 {
			saved[st.SaveAs] = sr.ID
		}

		if err := checkExpect(result, i, st, &sr, stepErr, saved); err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, st.Op, err)
		}
		result.Steps = append(result.Steps, sr)
	}
	return result, nil
}

// execute runs one step. The service failure the step may expect is kept
// in the result; a returned error means the step could not be run.
func (h *Harness) execute(ctx context.Context, st *Step, user string, saved map[string]int64) (StepResult, error) {
	sr := StepResult{Op: st.Op, Entity: st.Entity}

	tree, err := parseFields(st.Fields)
	if err != nil {
		return sr, err
	}
	var id int64
	if st.ID != "" {
		if id, err = resolveID(st.ID, saved); err != nil {
			return sr, err
		}
		sr.ID = id
	}

	switch st.Op {
	case OpCreateAuthor:
		sr.Entity = EntityAuthor
		var p validate.AuthorCreate
		if err := decodeArgs(st.Args, saved, &p); err != nil {
			return sr, err
		}
		a, stepErr := h.lib.Authors.Create(ctx, user, p, tree)
		if stepErr == nil {
			sr.ID, sr.row = a.ID, a
		}
		return done(sr, stepErr)

	case OpCreateBook:
		sr.Entity = EntityBook
		var p validate.BookCreate
		if err := decodeArgs(st.Args, saved, &p); err != nil {
			return sr, err
		}
		b, stepErr := h.lib.Books.Create(ctx, user, p, tree)
		if stepErr == nil {
			sr.ID, sr.row = b.ID, b
		}
		return h.withAuthors(ctx, sr, stepErr)

	case OpUpdateAuthor:
		sr.Entity = EntityAuthor
		var p validate.AuthorUpdate
		if err := decodeArgs(st.Args, saved, &p); err != nil {
			return sr, err
		}
		a, stepErr := h.lib.Authors.Update(ctx, user, id, p, tree)
		if stepErr == nil {
			sr.row = a
		}
		return done(sr, stepErr)

	case OpUpdateBook:
		sr.Entity = EntityBook
		var p validate.BookUpdate
		if err := decodeArgs(st.Args, saved, &p); err != nil {
			return sr, err
		}
		b, stepErr := h.lib.Books.Update(ctx, user, id, p, tree)
		if stepErr == nil {
			sr.row = b
		}
		return h.withAuthors(ctx, sr, stepErr)

	case OpAddMembers, OpRemoveMembers:
		sr.Entity = EntityBook
		var p struct {
			AuthorIDs []int64 `yaml:"author_ids"`
		}
		if err := decodeArgs(st.Args, saved, &p); err != nil {
			return sr, err
		}
		var b *model.Book
		var stepErr error
		if st.Op == OpAddMembers {
			b, stepErr = h.lib.Books.AddAuthors(ctx, user, id, p.AuthorIDs, tree)
		} else {
			b, stepErr = h.lib.Books.RemoveAuthors(ctx, user, id, p.AuthorIDs, tree)
		}
		if stepErr == nil {
			sr.row = b
		}
		return h.withAuthors(ctx, sr, stepErr)

	case OpDelete:
		var deleted bool
		var stepErr error
		if st.Entity == EntityAuthor {
			deleted, stepErr = h.lib.Authors.Delete(ctx, id)
		} else {
			deleted, stepErr = h.lib.Books.Delete(ctx, id)
		}
		if stepErr == nil {
			sr.Deleted = &deleted
		}
		return done(sr, stepErr)

	case OpFetchOne:
		var row any
		var stepErr error
		if st.Entity == EntityAuthor {
			row, stepErr = h.lib.Authors.Get(ctx, id, tree)
		} else {
			row, stepErr = h.lib.Books.Get(ctx, id, tree)
		}
		if stepErr == nil {
			sr.row = row
		}
		return done(sr, stepErr)

	case OpFetchMany:
		e := model.AuthorEntity
		if st.Entity == EntityBook {
			e = model.BookEntity
		}
		spec, err := filter.ParseArgs(e, model.Catalog, filterArgs(st.Filter))
		if err != nil {
			return sr, err
		}
		var keys []int64
		var stepErr error
		if st.Entity == EntityAuthor {
			var rows []*model.Author
			rows, stepErr = h.lib.Authors.List(ctx, tree, spec)
			for _, r := range rows {
				keys = append(keys, r.ID)
			}
		} else {
			var rows []*model.Book
			rows, stepErr = h.lib.Books.List(ctx, tree, spec)
			for _, r := range rows {
				keys = append(keys, r.ID)
			}
		}
		if stepErr == nil {
			n := len(keys)
			sr.IDs, sr.Count = keys, &n
		}
		return done(sr, stepErr)

	case OpAdvanceClock:
		h.clock.Advance(st.Days)
		return sr, nil
	}
	return sr, fmt.Errorf("unknown op %q", st.Op)
}

// withAuthors reads back the book's authors after a book step, failed or
// not. A book that does not exist leaves Authors empty.
func (h *Harness) withAuthors(ctx context.Context, sr StepResult, stepErr error) (StepResult, error) {
	sr.err = stepErr
	if sr.ID == 0 {
		return sr, nil
	}
	b, err := h.lib.Books.Get(ctx, sr.ID, authorIDsTree)
	if err != nil {
		if dataerr.IsNotFound(err) {
			return sr, nil
		}
		return sr, fmt.Errorf("failed to read back authors: %w", err)
	}
	sr.Authors = b.AuthorIDs()
	return sr, nil
}

// done records the service outcome of a step.
func done(sr StepResult, stepErr error) (StepResult, error) {
	sr.err = stepErr
	return sr, nil
}

// parseFields parses a step's selection. Blank selects every scalar field.
func parseFields(src string) (selection.Tree, error) {
	if src == "" {
		return nil, nil
	}
	tree, err := selection.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid fields: %w", err)
	}
	return tree, nil
}

// resolveID turns a literal id or a "$name" reference into a row id.
func resolveID(s string, saved map[string]int64) (int64, error) {
	if name, ok := refName(s); ok {
		id, found := saved[name]
		if !found {
			return 0, fmt.Errorf("reference %q is not saved", s)
		}
		return id, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// resolveIDs resolves every entry of refs.
func resolveIDs(refs []string, saved map[string]int64) ([]int64, error) {
	out := make([]int64, 0, len(refs))
	for _, r := range refs {
		id, err := resolveID(r, saved)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// resolveRefs replaces "$name" strings anywhere in v with saved ids.
func resolveRefs(v any, saved map[string]int64) (any, error) {
	switch t := v.(type) {
	case string:
		if _, ok := refName(t); ok {
			return resolveID(t, saved)
		}
		return t, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			r, err := resolveRefs(e, saved)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			r, err := resolveRefs(e, saved)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	}
	return v, nil
}

// decodeArgs resolves references in args and decodes them into a payload.
// Keys the payload does not declare are rejected.
func decodeArgs(args map[string]any, saved map[string]int64, out any) error {
	if len(args) == 0 {
		return nil
	}
	resolved, err := resolveRefs(args, saved)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("failed to encode args: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}

// filterArgs renders a filter map as sorted "key=value" arguments.
func filterArgs(m map[string]string) []string {
	args := make([]string, 0, len(m))
	for k, v := range m {
		args = append(args, k+"="+v)
	}
	sort.Strings(args)
	return args
}

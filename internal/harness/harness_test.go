package harness

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/libris/internal/crud"
	"github.com/roach88/libris/internal/selection"
	"github.com/roach88/libris/internal/store"
	"github.com/roach88/libris/internal/testutil"
)

func mustParse(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := mustParse(t, `
name: minimal
description: "Create one author"
steps:
  - op: create_author
    args: { first_name: Dale, last_name: Cooper }
    expect:
      fields: { id: 1, first_name: Dale, created_by: harness }
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "minimal", result.Scenario)
	assert.Equal(t, StepResult{Step: 0, Op: OpCreateAuthor, Entity: EntityAuthor, ID: 1}, stripped(result.Steps[0]))
}

// stripped drops the unexported fields so results compare by their JSON form.
func stripped(sr StepResult) StepResult {
	sr.row, sr.err = nil, nil
	return sr
}

func TestRun_ScenarioFiles(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Steps, len(s.Steps))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/author_swap.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	require.Len(t, second.Steps, len(first.Steps))
	for i := range first.Steps {
		assert.Equal(t, stripped(first.Steps[i]), stripped(second.Steps[i]))
	}
}

func TestRun_RecordsUnmetExpectations(t *testing.T) {
	scenario := mustParse(t, `
name: unmet
description: "Every expectation here is wrong"
steps:
  - op: create_author
    args: { first_name: Dale, last_name: Cooper }
    save_as: cooper
    expect: { error: VALIDATION }
  - op: create_book
    args: { title: Orphan, publication_year: 2000, author_ids: [] }
  - op: fetch_many
    entity: author
    expect: { count: 5, ids: [7] }
  - op: delete
    entity: author
    id: 99
    expect: { deleted: true }
  - op: fetch_one
    entity: author
    id: $cooper
    expect:
      fields: { last_name: Cole, nickname: Coop }
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Steps, 5, "execution continues after a failed expectation")
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], "steps[0] (create_author): error")
	assert.Contains(t, result.Errors[0], "Expected: VALIDATION")
	assert.Contains(t, result.Errors[1], "steps[1] (create_book): error")
	assert.Contains(t, result.Errors[1], "Expected: success")
	assert.Contains(t, result.Errors[2], "count")
	assert.Contains(t, result.Errors[3], "ids")
	assert.Contains(t, result.Errors[4], "deleted")
	assert.Contains(t, result.Errors[5], "last_name=Cole")
	assert.Contains(t, result.Errors[6], "nickname missing")

	// The failed create still saved its id.
	assert.Equal(t, int64(1), result.Steps[4].ID)
	assert.Equal(t, "RELATED_OBJECT_MISSING", result.Steps[1].Error)
}

func TestRun_WrongErrorCode(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_code
description: "Fetching a missing author is NOT_FOUND, not VALIDATION"
steps:
  - op: fetch_one
    entity: author
    id: 1
    expect: { error: VALIDATION }
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: VALIDATION")
	assert.Equal(t, "NOT_FOUND", result.Steps[0].Error)
}

func TestRun_BrokenScenario(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr string
	}{
		{
			name:    "unknown arg",
			step:    Step{Op: OpCreateAuthor, Args: map[string]any{"nickname": "x"}},
			wantErr: "invalid args",
		},
		{
			name:    "bad fields",
			step:    Step{Op: OpFetchOne, Entity: EntityAuthor, ID: "1", Fields: "books {"},
			wantErr: "invalid fields",
		},
		{
			name:    "bad filter",
			step:    Step{Op: OpFetchMany, Entity: EntityBook, Filter: map[string]string{"isbn": "1"}},
			wantErr: "isbn",
		},
		{
			name:    "bad id",
			step:    Step{Op: OpFetchOne, Entity: EntityBook, ID: "one"},
			wantErr: `invalid id "one"`,
		},
		{
			name:    "unsaved reference",
			step:    Step{Op: OpFetchOne, Entity: EntityBook, ID: "$ghost"},
			wantErr: "is not saved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := &Scenario{Name: "broken", Description: "d", Steps: []Step{tt.step}}
			_, err := Run(context.Background(), scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "steps[0]")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHarness_SharesLibraryAndClock(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewDeterministicClock(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	lib := crud.New(st, crud.Options{
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	scenario := mustParse(t, `
name: clocked
description: "advance_clock moves the library's audit date"
user: archivist
steps:
  - op: create_author
    args: { first_name: Dale, last_name: Cooper }
    save_as: cooper
  - op: advance_clock
    days: 10
  - op: update_author
    id: $cooper
    args: { last_name: Coop }
    expect:
      fields: { last_updated_by: archivist, last_updated_on: "2023-06-11T00:00:00Z" }
`)

	result, err := New(lib, clock).Run(ctx, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	// The scenario's writes are visible through the library afterwards.
	a, err := lib.Authors.Get(ctx, 1, selection.Fields("last_name"))
	require.NoError(t, err)
	assert.Equal(t, "Coop", a.LastName)
	assert.Equal(t, time.Date(2023, 6, 11, 0, 0, 0, 0, time.UTC), clock.Today())
}

func TestResolveRefs(t *testing.T) {
	saved := map[string]int64{"a": 3, "b": 5}

	got, err := resolveRefs(map[string]any{
		"title":      "T",
		"author_ids": []any{"$a", "$b", 9},
		"nested":     map[string]any{"id": "$a"},
	}, saved)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title":      "T",
		"author_ids": []any{int64(3), int64(5), 9},
		"nested":     map[string]any{"id": int64(3)},
	}, got)

	_, err = resolveRefs([]any{"$c"}, saved)
	require.Error(t, err)
}

func TestFilterArgs_Sorted(t *testing.T) {
	assert.Equal(t,
		[]string{"author_last_name=co", "title=dune"},
		filterArgs(map[string]string{"title": "dune", "author_last_name": "co"}))
	assert.Empty(t, filterArgs(nil))
}

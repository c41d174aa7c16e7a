package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to a scenario file in a temp dir.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
user: librarian
steps:
  - op: create_author
    args:
      first_name: Dale
      last_name: Cooper
    save_as: cooper
  - op: fetch_many
    entity: author
    filter: { last_name: co }
    expect:
      count: 1
      ids: [$cooper]
  - op: delete
    entity: author
    id: 1
    expect: { deleted: true }
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "librarian", scenario.User)
	require.Len(t, scenario.Steps, 3)

	first := scenario.Steps[0]
	assert.Equal(t, OpCreateAuthor, first.Op)
	assert.Equal(t, "cooper", first.SaveAs)
	assert.Equal(t, "Dale", first.Args["first_name"])
	assert.Nil(t, first.Expect)

	second := scenario.Steps[1]
	assert.Equal(t, map[string]string{"last_name": "co"}, second.Filter)
	require.NotNil(t, second.Expect)
	require.NotNil(t, second.Expect.Count)
	assert.Equal(t, 1, *second.Expect.Count)
	assert.Equal(t, []string{"$cooper"}, second.Expect.IDs)

	third := scenario.Steps[2]
	assert.Equal(t, "1", third.ID)
	require.NotNil(t, third.Expect.Deleted)
	assert.True(t, *third.Expect.Deleted)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, "name: [unclosed\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "expects instead of expect"
steps:
  - op: create_author
    args: { first_name: A, last_name: B }
    expects: { error: VALIDATION }
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps:\n  - op: create_author\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsteps:\n  - op: create_author\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "missing op",
			content: "name: n\ndescription: d\nsteps:\n  - args: {}\n",
			wantErr: "steps[0]: op is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nsteps:\n  - op: upsert_author\n",
			wantErr: `unknown op "upsert_author"`,
		},
		{
			name:    "update without id",
			content: "name: n\ndescription: d\nsteps:\n  - op: update_book\n",
			wantErr: "id is required for update_book",
		},
		{
			name:    "delete without entity",
			content: "name: n\ndescription: d\nsteps:\n  - op: delete\n    id: 1\n",
			wantErr: "entity must be",
		},
		{
			name:    "fetch_many of unknown entity",
			content: "name: n\ndescription: d\nsteps:\n  - op: fetch_many\n    entity: publisher\n",
			wantErr: "entity must be",
		},
		{
			name:    "filter outside fetch_many",
			content: "name: n\ndescription: d\nsteps:\n  - op: fetch_one\n    entity: book\n    id: 1\n    filter: { title: x }\n",
			wantErr: "filter is only valid for fetch_many",
		},
		{
			name:    "save_as outside create",
			content: "name: n\ndescription: d\nsteps:\n  - op: fetch_one\n    entity: book\n    id: 1\n    save_as: b\n",
			wantErr: "save_as is only valid for create ops",
		},
		{
			name:    "advance_clock without days",
			content: "name: n\ndescription: d\nsteps:\n  - op: advance_clock\n",
			wantErr: "days must be positive",
		},
		{
			name:    "reference before save",
			content: "name: n\ndescription: d\nsteps:\n  - op: update_author\n    id: $later\n",
			wantErr: `reference "$later" is not saved by an earlier step`,
		},
		{
			name: "reference in args before save",
			content: `name: n
description: d
steps:
  - op: create_book
    args: { title: T, publication_year: 1, author_ids: [$ghost] }
`,
			wantErr: `reference "$ghost"`,
		},
		{
			name: "reference in expectation before save",
			content: `name: n
description: d
steps:
  - op: fetch_many
    entity: author
    expect: { ids: [$nobody] }
`,
			wantErr: `reference "$nobody"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	// Sorted by file name.
	assert.Equal(t, []string{"audit_and_delete", "author_swap", "book_create_failures", "contains_filter"}, names)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files found")
}

func TestLoadDir_NamesBrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: x\n"), 0644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestRefName(t *testing.T) {
	name, ok := refName("$book")
	assert.True(t, ok)
	assert.Equal(t, "book", name)

	for _, s := range []string{"book", "$", "", "12"} {
		_, ok := refName(s)
		assert.False(t, ok, s)
	}
}

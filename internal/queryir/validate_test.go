package queryir

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSelect() Select {
	return Select{
		From: Source{Table: "authors", Alias: "t0"},
		Columns: []Column{
			{ColumnRef: Col("t0", "id"), As: "id"},
			{ColumnRef: Col("t0", "last_name"), As: "last_name"},
		},
		Joins: []Join{
			{
				Kind:   InnerJoin,
				Source: Source{Table: "book_authors", Alias: "fk_books"},
				On:     ColumnEquals{Left: Col("fk_books", "author_id"), Right: Col("t0", "id")},
			},
			{
				Kind:   InnerJoin,
				Source: Source{Table: "books", Alias: "f_books"},
				On:     ColumnEquals{Left: Col("f_books", "id"), Right: Col("fk_books", "book_id")},
			},
		},
		Filter: And{Predicates: []Predicate{
			Contains{Column: Col("t0", "last_name"), Value: "co"},
			Equals{Column: Col("f_books", "publication_year"), Value: int64(1954)},
			Between{
				Column: Col("t0", "created_on"),
				From:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				To:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		}},
		OrderBy: []ColumnRef{Col("t0", "id")},
	}
}

func TestValidate_WellFormed(t *testing.T) {
	result := Validate(validSelect())

	assert.True(t, result.Valid, "problems: %v", result.Problems)
	assert.Empty(t, result.Problems)
	assert.NoError(t, result.Err())
}

func TestValidate_Problems(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Select)
		want   string
	}{
		{
			name:   "empty projection",
			mutate: func(s *Select) { s.Columns = nil },
			want:   "empty projection",
		},
		{
			name:   "undeclared alias",
			mutate: func(s *Select) { s.OrderBy = []ColumnRef{Col("t9", "id")} },
			want:   `undeclared alias "t9"`,
		},
		{
			name:   "duplicate alias",
			mutate: func(s *Select) { s.Joins[1].Source.Alias = "fk_books" },
			want:   `alias "fk_books" declared twice`,
		},
		{
			name:   "join without on",
			mutate: func(s *Select) { s.Joins[0].On = nil },
			want:   "has no ON condition",
		},
		{
			name: "float value",
			mutate: func(s *Select) {
				s.Filter = Equals{Column: Col("t0", "id"), Value: 1.5}
			},
			want: "is not string, int64 or time.Time",
		},
		{
			name: "mixed range",
			mutate: func(s *Select) {
				s.Filter = Between{Column: Col("t0", "created_on"), From: "2024-01-01", To: int64(3)}
			},
			want: "mixes string and int64",
		},
		{
			name: "duplicate label",
			mutate: func(s *Select) {
				s.Columns = append(s.Columns, Column{ColumnRef: Col("t0", "first_name"), As: "id"})
			},
			want: `output label "id" used twice`,
		},
		{
			name:   "missing root alias",
			mutate: func(s *Select) { s.From.Alias = "" },
			want:   `table "authors" has no alias`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel := validSelect()
			tc.mutate(&sel)

			result := Validate(sel)
			require.False(t, result.Valid)
			assert.Error(t, result.Err())

			found := false
			for _, p := range result.Problems {
				if strings.Contains(p, tc.want) {
					found = true
				}
			}
			assert.True(t, found, "expected a problem containing %q, got %v", tc.want, result.Problems)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	sel := Select{
		From:    Source{Table: "authors", Alias: "t0"},
		Filter:  Contains{Column: Col("x", "a"), Value: "v"},
		OrderBy: []ColumnRef{Col("y", "id")},
	}

	result := Validate(sel)
	assert.False(t, result.Valid)
	assert.Len(t, result.Problems, 3)
}

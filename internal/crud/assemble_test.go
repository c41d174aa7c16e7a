package crud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/querybuild"
	"github.com/roach88/libris/internal/selection"
)

func bookAssembler(t *testing.T, tree selection.Tree) *assembler[*model.Book] {
	t.Helper()
	plan, err := querybuild.New(model.Catalog).Build(model.BookEntity, tree)
	require.NoError(t, err)
	return newAssembler(plan, func() *model.Book { return &model.Book{} })
}

func TestAssembler_FoldsJoinedRows(t *testing.T) {
	// Outputs: id, title, authors__id, authors__last_name
	a := bookAssembler(t, selection.MustParse("title authors { last_name }"))

	rows := [][]any{
		{int64(1), "Good Omens", int64(10), "Pratchett"},
		{int64(1), "Good Omens", int64(11), "Gaiman"},
		{int64(1), "Good Omens", int64(11), "Gaiman"},
		{int64(2), []byte("Solo"), int64(10), []byte("Pratchett")},
	}
	for _, r := range rows {
		require.NoError(t, a.add(r))
	}

	require.Len(t, a.roots, 2)
	assert.Equal(t, "Good Omens", a.roots[0].Title)
	assert.Equal(t, []int64{10, 11}, a.roots[0].AuthorIDs())
	assert.Equal(t, "Gaiman", a.roots[0].Authors[1].LastName)
	assert.Equal(t, "Solo", a.roots[1].Title)
	assert.Equal(t, []int64{10}, a.roots[1].AuthorIDs())
}

func TestAssembler_SkipsNullRelatedKey(t *testing.T) {
	a := bookAssembler(t, selection.MustParse("title authors { last_name }"))

	require.NoError(t, a.add([]any{int64(3), "Orphan", nil, nil}))

	require.Len(t, a.roots, 1)
	assert.Empty(t, a.roots[0].Authors)
}

func TestAssembler_ConvertsColumnTypes(t *testing.T) {
	a := bookAssembler(t, nil)

	// Outputs follow the field order of the entity descriptor.
	lastUpdated := time.Date(2024, 4, 1, 13, 0, 0, 0, time.UTC)
	raw := []any{
		int64(7),     // id
		"Dune",       // title
		int64(1965),  // publication_year
		"EN",         // language
		nil,          // category
		"admin",      // created_by
		"2024-03-05", // created_on as SQLite text
		"editor",     // last_updated_by
		lastUpdated,  // last_updated_on as a native value
	}
	require.NoError(t, a.add(raw))

	b := a.roots[0]
	assert.Equal(t, int64(1965), b.PublicationYear)
	assert.Equal(t, model.LanguageEN, b.Language)
	assert.Nil(t, b.Category)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), b.CreatedOn)
	require.NotNil(t, b.LastUpdatedBy)
	assert.Equal(t, "editor", *b.LastUpdatedBy)
	require.NotNil(t, b.LastUpdatedOn)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *b.LastUpdatedOn)
}

func TestAssembler_RejectsUnknownLanguage(t *testing.T) {
	a := bookAssembler(t, selection.Fields("language"))

	err := a.add([]any{int64(1), "XX"})
	assert.Error(t, err)
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{in: int64(5), want: 5},
		{in: int32(6), want: 6},
		{in: []byte("42"), want: 42},
		{in: "43", want: 43},
		{in: nil, wantErr: true},
		{in: 1.5, wantErr: true},
	}
	for _, tt := range tests {
		got, err := toInt64(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%#v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseDate_AcceptsTimestampText(t *testing.T) {
	got, err := parseDate("2024-02-29 00:00:00+00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
}

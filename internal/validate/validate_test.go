package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/libris/internal/dataerr"
)

func ptr[T any](v T) *T { return &v }

// fieldNames returns the fields named by a VALIDATION error.
func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, dataerr.CodeValidation, dataerr.CodeOf(err))

	var de *dataerr.Error
	require.ErrorAs(t, err, &de)
	names := make([]string, len(de.Fields))
	for i, f := range de.Fields {
		names[i] = f.Field
	}
	return names
}

func TestNew_CompilesContracts(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestAuthorCreate_Valid(t *testing.T) {
	v := MustNew()

	got, err := v.AuthorCreate(AuthorCreate{
		FirstName:  "  Adam ",
		MiddleName: ptr("Péter"),
		LastName:   "Mickiewicz",
	}, "admin")
	require.NoError(t, err)

	assert.Equal(t, "Adam", got.FirstName)
	assert.Equal(t, "Péter", *got.MiddleName)
	assert.Equal(t, "Mickiewicz", got.LastName)
}

func TestAuthorCreate_CollectsEveryViolation(t *testing.T) {
	v := MustNew()

	_, err := v.AuthorCreate(AuthorCreate{
		FirstName:  "   ",
		MiddleName: ptr(strings.Repeat("x", 121)),
		LastName:   "",
	}, strings.Repeat("u", 21))

	assert.Equal(t, []string{"created_by", "first_name", "last_name", "middle_name"}, fieldNames(t, err))
}

func TestAuthorCreate_LengthBoundary(t *testing.T) {
	v := MustNew()

	_, err := v.AuthorCreate(AuthorCreate{
		FirstName: strings.Repeat("a", 120),
		LastName:  strings.Repeat("é", 120), // runes, not bytes
	}, strings.Repeat("u", 20))
	assert.NoError(t, err)
}

func TestAuthorUpdate(t *testing.T) {
	v := MustNew()

	got, err := v.AuthorUpdate(AuthorUpdate{LastName: ptr(" King ")}, "editor")
	require.NoError(t, err)
	assert.Nil(t, got.FirstName)
	assert.Equal(t, "King", *got.LastName)

	_, err = v.AuthorUpdate(AuthorUpdate{FirstName: ptr("")}, "")
	assert.Equal(t, []string{"first_name", "last_updated_by"}, fieldNames(t, err))
}

func TestBookCreate_DefaultsLanguage(t *testing.T) {
	v := MustNew()

	got, err := v.BookCreate(BookCreate{
		Title:           "Pan Tadeusz",
		PublicationYear: 1834,
		AuthorIDs:       []int64{1},
	}, "admin")
	require.NoError(t, err)
	require.NotNil(t, got.Language)
	assert.Equal(t, "OTHER", *got.Language)
}

func TestBookCreate_AcceptsLanguageLabel(t *testing.T) {
	v := MustNew()

	got, err := v.BookCreate(BookCreate{
		Title:           "Pan Tadeusz",
		PublicationYear: 1834,
		Language:        ptr("polish"),
		AuthorIDs:       []int64{1},
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "PL", *got.Language)
}

func TestBookCreate_EmptyAuthorsPassContract(t *testing.T) {
	v := MustNew()

	_, err := v.BookCreate(BookCreate{Title: "Orphan", PublicationYear: 2000}, "admin")
	assert.NoError(t, err)
}

func TestBookCreate_Violations(t *testing.T) {
	v := MustNew()

	_, err := v.BookCreate(BookCreate{
		Title:           strings.Repeat("t", 121),
		PublicationYear: 10000,
		Language:        ptr("Klingon"),
		Category:        ptr(strings.Repeat("c", 21)),
		AuthorIDs:       []int64{0},
	}, "admin")

	assert.Equal(t,
		[]string{"author_ids.0", "category", "language", "publication_year", "title"},
		fieldNames(t, err))
}

func TestBookUpdate_Cardinality(t *testing.T) {
	v := MustNew()

	tests := []struct {
		name    string
		current int
		add     []int64
		remove  []int64
		wantErr bool
	}{
		{name: "remove last author", current: 1, remove: []int64{1}, wantErr: true},
		{name: "remove all of two", current: 2, remove: []int64{1, 2}, wantErr: true},
		{name: "remove one of two", current: 2, remove: []int64{1}},
		{name: "swap single author", current: 1, add: []int64{2}, remove: []int64{1}},
		{name: "add only", current: 1, add: []int64{2}},
		{name: "no membership change", current: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.BookUpdate(BookUpdate{AddAuthors: tt.add, RemoveAuthors: tt.remove}, "editor", tt.current)
			if tt.wantErr {
				assert.Equal(t, dataerr.CodeRelationCardinality, dataerr.CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBookUpdate_CombinesContractAndCardinality(t *testing.T) {
	v := MustNew()

	_, err := v.BookUpdate(BookUpdate{
		PublicationYear: ptr(int64(-1)),
		RemoveAuthors:   []int64{1},
	}, "editor", 1)

	assert.Equal(t, []string{"publication_year", "remove_authors"}, fieldNames(t, err))
}

func TestFieldErrors_NameFieldsFromPayloadRoot(t *testing.T) {
	v := MustNew()

	errs := []error{}
	_, err := v.AuthorCreate(AuthorCreate{}, "")
	errs = append(errs, err)
	_, err = v.AuthorUpdate(AuthorUpdate{LastName: ptr("")}, "")
	errs = append(errs, err)
	_, err = v.BookCreate(BookCreate{PublicationYear: -1}, "")
	errs = append(errs, err)
	_, err = v.BookUpdate(BookUpdate{Title: ptr("")}, "", 1)
	errs = append(errs, err)

	for _, err := range errs {
		for _, name := range fieldNames(t, err) {
			assert.NotContains(t, name, "#")
		}
	}
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "title", fieldPath([]string{"#BookCreate", "title"}))
	assert.Equal(t, "author_ids.0", fieldPath([]string{"#BookCreate", "author_ids", "0"}))
	assert.Equal(t, "first_name", fieldPath([]string{"first_name"}))
	assert.Equal(t, "", fieldPath([]string{"#AuthorCreate"}))
}

func TestBookUpdate_NormalizesLanguage(t *testing.T) {
	v := MustNew()

	got, err := v.BookUpdate(BookUpdate{Language: ptr(" french ")}, "editor", 1)
	require.NoError(t, err)
	assert.Equal(t, "FR", *got.Language)
}

func TestActor(t *testing.T) {
	v := MustNew()

	got, err := v.Actor("Book", "last_updated_by", "  editor\n")
	require.NoError(t, err)
	assert.Equal(t, "editor", got)

	_, err = v.Actor("Book", "last_updated_by", "  ")
	assert.Equal(t, []string{"last_updated_by"}, fieldNames(t, err))

	_, err = v.Actor("Author", "created_by", strings.Repeat("u", 21))
	assert.Equal(t, []string{"created_by"}, fieldNames(t, err))
}

func TestExpectedMembers(t *testing.T) {
	assert.Equal(t, 2, ExpectedMembers(1, 2, 1))
	assert.Equal(t, 0, ExpectedMembers(1, 0, 1))
}

func TestValidator_ConcurrentUse(t *testing.T) {
	v := MustNew()
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := v.AuthorCreate(AuthorCreate{FirstName: "A", LastName: "B"}, "u")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
}

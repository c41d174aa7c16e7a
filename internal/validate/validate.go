// Package validate holds the create and update payload contracts.
//
// The contracts are CUE definitions embedded at build time. A payload is
// normalized (Unicode NFC, surrounding whitespace trimmed), encoded into CUE,
// unified with its definition and checked for concreteness. Every violated
// field is reported in one VALIDATION error; nothing is written on failure.
package validate

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/libris/internal/dataerr"
	"github.com/roach88/libris/internal/model"
)

//go:embed contracts.cue
var contractsCUE string

// Contract definition names.
const (
	defAuthorCreate = "#AuthorCreate"
	defAuthorUpdate = "#AuthorUpdate"
	defBookCreate   = "#BookCreate"
	defBookUpdate   = "#BookUpdate"
	defActor        = "#Actor"
)

// AuthorCreate is the payload creating an Author.
type AuthorCreate struct {
	FirstName  string  `json:"first_name" yaml:"first_name"`
	MiddleName *string `json:"middle_name,omitempty" yaml:"middle_name"`
	LastName   string  `json:"last_name" yaml:"last_name"`
}

// AuthorUpdate is a partial Author update. Nil fields are left untouched.
type AuthorUpdate struct {
	FirstName  *string `json:"first_name,omitempty" yaml:"first_name"`
	MiddleName *string `json:"middle_name,omitempty" yaml:"middle_name"`
	LastName   *string `json:"last_name,omitempty" yaml:"last_name"`
}

// BookCreate is the payload creating a Book with its initial authors.
// Language accepts an enum name or label and defaults to OTHER.
type BookCreate struct {
	Title           string  `json:"title" yaml:"title"`
	PublicationYear int64   `json:"publication_year" yaml:"publication_year"`
	Language        *string `json:"language,omitempty" yaml:"language"`
	Category        *string `json:"category,omitempty" yaml:"category"`
	AuthorIDs       []int64 `json:"author_ids" yaml:"author_ids"`
}

// BookUpdate is a partial Book update plus author membership changes.
// Additions are applied before removals.
type BookUpdate struct {
	Title           *string `json:"title,omitempty" yaml:"title"`
	PublicationYear *int64  `json:"publication_year,omitempty" yaml:"publication_year"`
	Language        *string `json:"language,omitempty" yaml:"language"`
	Category        *string `json:"category,omitempty" yaml:"category"`
	AddAuthors      []int64 `json:"add_authors,omitempty" yaml:"add_authors"`
	RemoveAuthors   []int64 `json:"remove_authors,omitempty" yaml:"remove_authors"`
}

// Validator checks payloads against the compiled contracts.
// It is safe for concurrent use.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// New compiles the embedded contracts.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(contractsCUE, cue.Filename("contracts.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile contracts: %w", err)
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// MustNew is New for package-level initialization.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// AuthorCreate validates p for creation by user and returns the normalized payload.
func (v *Validator) AuthorCreate(p AuthorCreate, user string) (AuthorCreate, error) {
	p.FirstName = Normalize(p.FirstName)
	p.MiddleName = normalizePtr(p.MiddleName)
	p.LastName = Normalize(p.LastName)

	doc := map[string]any{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"created_by": Normalize(user),
	}
	putString(doc, "middle_name", p.MiddleName)

	if _, fields := v.check(defAuthorCreate, doc); len(fields) > 0 {
		return AuthorCreate{}, dataerr.Validation(model.AuthorName, fields)
	}
	return p, nil
}

// AuthorUpdate validates a partial update by user and returns the normalized payload.
func (v *Validator) AuthorUpdate(p AuthorUpdate, user string) (AuthorUpdate, error) {
	p.FirstName = normalizePtr(p.FirstName)
	p.MiddleName = normalizePtr(p.MiddleName)
	p.LastName = normalizePtr(p.LastName)

	doc := map[string]any{"last_updated_by": Normalize(user)}
	putString(doc, "first_name", p.FirstName)
	putString(doc, "middle_name", p.MiddleName)
	putString(doc, "last_name", p.LastName)

	if _, fields := v.check(defAuthorUpdate, doc); len(fields) > 0 {
		return AuthorUpdate{}, dataerr.Validation(model.AuthorName, fields)
	}
	return p, nil
}

// BookCreate validates p for creation by user and returns the normalized
// payload with Language resolved to an enum name.
//
// An empty author list passes: the engine reports it as RELATED_OBJECT_MISSING.
func (v *Validator) BookCreate(p BookCreate, user string) (BookCreate, error) {
	p.Title = Normalize(p.Title)
	p.Language = normalizeLanguage(p.Language)
	p.Category = normalizePtr(p.Category)

	doc := map[string]any{
		"title":            p.Title,
		"publication_year": p.PublicationYear,
		"created_by":       Normalize(user),
	}
	putString(doc, "language", p.Language)
	putString(doc, "category", p.Category)
	if len(p.AuthorIDs) > 0 {
		doc["author_ids"] = p.AuthorIDs
	}

	unified, fields := v.check(defBookCreate, doc)
	if len(fields) > 0 {
		return BookCreate{}, dataerr.Validation(model.BookName, fields)
	}
	if p.Language == nil {
		lang, err := unified.LookupPath(cue.ParsePath("language")).String()
		if err != nil {
			return BookCreate{}, fmt.Errorf("resolve default language: %w", err)
		}
		p.Language = &lang
	}
	return p, nil
}

// BookUpdate validates a partial update by user. currentAuthors is the
// number of authors the book has before the update.
//
// The expected author count is currentAuthors + |AddAuthors| - |RemoveAuthors|.
// When the update removes authors and the expected count is not positive the
// payload is rejected: with RELATION_CARDINALITY when that is the only
// problem, otherwise as a remove_authors entry of the VALIDATION error.
// The returned error carries no book id; callers fill it in.
func (v *Validator) BookUpdate(p BookUpdate, user string, currentAuthors int) (BookUpdate, error) {
	p.Title = normalizePtr(p.Title)
	p.Language = normalizeLanguage(p.Language)
	p.Category = normalizePtr(p.Category)

	doc := map[string]any{"last_updated_by": Normalize(user)}
	putString(doc, "title", p.Title)
	putString(doc, "language", p.Language)
	putString(doc, "category", p.Category)
	if p.PublicationYear != nil {
		doc["publication_year"] = *p.PublicationYear
	}
	if len(p.AddAuthors) > 0 {
		doc["add_authors"] = p.AddAuthors
	}
	if len(p.RemoveAuthors) > 0 {
		doc["remove_authors"] = p.RemoveAuthors
	}

	_, fields := v.check(defBookUpdate, doc)
	if len(p.RemoveAuthors) > 0 {
		expected := ExpectedMembers(currentAuthors, len(p.AddAuthors), len(p.RemoveAuthors))
		if expected <= 0 {
			if len(fields) == 0 {
				return BookUpdate{}, dataerr.RelationCardinality(model.BookName, 0, "authors", 1, expected)
			}
			fields = append(fields, dataerr.FieldError{
				Field:   "remove_authors",
				Message: fmt.Sprintf("a book must keep at least one author (would have %d)", expected),
			})
		}
	}
	if len(fields) > 0 {
		return BookUpdate{}, dataerr.Validation(model.BookName, fields)
	}
	return p, nil
}

// Actor validates the acting user stamped into the audit field (created_by
// or last_updated_by) and returns it normalized.
func (v *Validator) Actor(entity, field, user string) (string, error) {
	user = Normalize(user)
	if _, fields := v.check(defActor, map[string]any{field: user}); len(fields) > 0 {
		return "", dataerr.Validation(entity, fields)
	}
	return user, nil
}

// ExpectedMembers is the member count a relation update is expected to leave.
func ExpectedMembers(current, added, removed int) int {
	return current + added - removed
}

// check unifies doc with the named definition and collects every violation.
func (v *Validator) check(def string, doc map[string]any) (cue.Value, []dataerr.FieldError) {
	v.mu.Lock()
	defer v.mu.Unlock()

	contract := v.schema.LookupPath(cue.ParsePath(def))
	unified := contract.Unify(v.ctx.Encode(doc))
	err := unified.Validate(cue.Concrete(true), cue.All())
	if err == nil {
		return unified, nil
	}
	return unified, fieldErrors(err)
}

// fieldErrors flattens a CUE error list into one entry per field.
// A field failing several constraints keeps its first message.
func fieldErrors(err error) []dataerr.FieldError {
	seen := map[string]bool{}
	var fields []dataerr.FieldError
	for _, e := range cueerrors.Errors(err) {
		field := fieldPath(e.Path())
		if field == "" {
			field = "payload"
		}
		if seen[field] {
			continue
		}
		seen[field] = true
		fields = append(fields, dataerr.FieldError{Field: field, Message: message(e)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields
}

// fieldPath joins a CUE error path relative to the payload root, dropping
// the definition the payload was unified with.
func fieldPath(path []string) string {
	for len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	return strings.Join(path, ".")
}

func message(e cueerrors.Error) string {
	format, args := e.Msg()
	msg := fmt.Sprintf(format, args...)
	if strings.HasPrefix(msg, "incomplete value") {
		return "required"
	}
	return msg
}

// Normalize trims surrounding whitespace and converts s to Unicode NFC.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	n := Normalize(*s)
	return &n
}

// normalizeLanguage maps labels to enum names. Unknown values pass through
// unchanged so the contract reports them.
func normalizeLanguage(s *string) *string {
	s = normalizePtr(s)
	if s == nil {
		return nil
	}
	if lang, err := model.ParseLanguage(*s); err == nil {
		name := string(lang)
		return &name
	}
	return s
}

func putString(doc map[string]any, key string, s *string) {
	if s != nil {
		doc[key] = *s
	}
}

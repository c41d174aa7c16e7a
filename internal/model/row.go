package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Row is implemented by every typed entity row.
//
// Ref returns a pointer to the Go field backing the named scalar field, or nil
// when the row has no such field. NewRelated allocates an empty row of the
// related entity; AppendRelated attaches a loaded related row.
type Row interface {
	Key() int64
	Ref(field string) any
	NewRelated(relation string) Row
	AppendRelated(relation string, r Row)
}

// Audit holds the audit fields every entity carries.
// LastUpdatedBy and LastUpdatedOn stay nil until the first update.
type Audit struct {
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedOn     time.Time  `json:"created_on,omitzero"`
	LastUpdatedBy *string    `json:"last_updated_by,omitempty"`
	LastUpdatedOn *time.Time `json:"last_updated_on,omitempty"`
}

func (a *Audit) ref(field string) any {
	switch field {
	case "created_by":
		return &a.CreatedBy
	case "created_on":
		return &a.CreatedOn
	case "last_updated_by":
		return &a.LastUpdatedBy
	case "last_updated_on":
		return &a.LastUpdatedOn
	}
	return nil
}

// Author is a row of the authors table.
type Author struct {
	ID         int64   `json:"id"`
	FirstName  string  `json:"first_name,omitempty"`
	MiddleName *string `json:"middle_name,omitempty"`
	LastName   string  `json:"last_name,omitempty"`
	Books      []*Book `json:"books,omitempty"`
	Audit
}

var _ Row = (*Author)(nil)

func (a *Author) Key() int64 { return a.ID }

func (a *Author) Ref(field string) any {
	switch field {
	case "id":
		return &a.ID
	case "first_name":
		return &a.FirstName
	case "middle_name":
		return &a.MiddleName
	case "last_name":
		return &a.LastName
	}
	return a.Audit.ref(field)
}

func (a *Author) NewRelated(relation string) Row {
	if relation == "books" {
		return &Book{}
	}
	return nil
}

func (a *Author) AppendRelated(relation string, r Row) {
	if b, ok := r.(*Book); ok && relation == "books" {
		a.Books = append(a.Books, b)
	}
}

// Book is a row of the books table.
type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title,omitempty"`
	PublicationYear int64     `json:"publication_year,omitempty"`
	Language        Language  `json:"language,omitempty"`
	Category        *string   `json:"category,omitempty"`
	Authors         []*Author `json:"authors,omitempty"`
	Audit
}

var _ Row = (*Book)(nil)

func (b *Book) Key() int64 { return b.ID }

func (b *Book) Ref(field string) any {
	switch field {
	case "id":
		return &b.ID
	case "title":
		return &b.Title
	case "publication_year":
		return &b.PublicationYear
	case "language":
		return &b.Language
	case "category":
		return &b.Category
	}
	return b.Audit.ref(field)
}

func (b *Book) NewRelated(relation string) Row {
	if relation == "authors" {
		return &Author{}
	}
	return nil
}

func (b *Book) AppendRelated(relation string, r Row) {
	if a, ok := r.(*Author); ok && relation == "authors" {
		b.Authors = append(b.Authors, a)
	}
}

// AuthorIDs returns the ids of the loaded authors.
func (b *Book) AuthorIDs() []int64 {
	ids := make([]int64, len(b.Authors))
	for i, a := range b.Authors {
		ids[i] = a.ID
	}
	return ids
}

// Scan implements sql.Scanner.
func (l *Language) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*l = Language(v)
	case []byte:
		*l = Language(v)
	default:
		return fmt.Errorf("cannot scan %T into Language", src)
	}
	if !l.Valid() {
		return fmt.Errorf("stored language %q is not enumerated", string(*l))
	}
	return nil
}

// Value implements driver.Valuer.
func (l Language) Value() (driver.Value, error) {
	return string(l), nil
}

package model

// Entity names.
const (
	AuthorName = "Author"
	BookName   = "Book"
)

// Link table joining books and authors. It carries no attributes of its own.
const BookAuthorsTable = "book_authors"

// Column length limits enforced by the schema and the validation contracts.
const (
	MaxNameLength     = 120
	MaxTitleLength    = 120
	MaxCategoryLength = 20
	MaxUserLength     = 20
)

var auditFields = []Field{
	{Name: "created_by", Kind: KindString},
	{Name: "created_on", Kind: KindDate},
	{Name: "last_updated_by", Kind: KindString, Nullable: true},
	{Name: "last_updated_on", Kind: KindDate, Nullable: true},
}

func auditFilters() []FilterKey {
	return []FilterKey{
		{Key: "created_by", Field: "created_by", Predicate: Contains},
		{Key: "created_between", Field: "created_on", Predicate: Between},
		{Key: "last_updated_by", Field: "last_updated_by", Predicate: Contains},
		{Key: "last_updated_between", Field: "last_updated_on", Predicate: Between},
	}
}

// AuthorEntity describes the authors table.
var AuthorEntity = &Entity{
	Name:       AuthorName,
	Table:      "authors",
	PrimaryKey: "id",
	Fields: append([]Field{
		{Name: "id", Kind: KindInt},
		{Name: "first_name", Kind: KindString},
		{Name: "middle_name", Kind: KindString, Nullable: true},
		{Name: "last_name", Kind: KindString},
	}, auditFields...),
	Relations: []Relation{
		{
			Name:         "books",
			Target:       BookName,
			LinkTable:    BookAuthorsTable,
			OwnerColumn:  "author_id",
			TargetColumn: "book_id",
			Inverse:      "authors",
		},
	},
	Filters: append([]FilterKey{
		{Key: "first_name", Field: "first_name", Predicate: Contains},
		{Key: "middle_name", Field: "middle_name", Predicate: Contains},
		{Key: "last_name", Field: "last_name", Predicate: Contains},
		{Key: "book_title", Relation: "books", Field: "title", Predicate: Contains},
		{Key: "book_publication_year", Relation: "books", Field: "publication_year", Predicate: Exact},
	}, auditFilters()...),
}

// BookEntity describes the books table.
var BookEntity = &Entity{
	Name:       BookName,
	Table:      "books",
	PrimaryKey: "id",
	Fields: append([]Field{
		{Name: "id", Kind: KindInt},
		{Name: "title", Kind: KindString},
		{Name: "publication_year", Kind: KindInt},
		{Name: "language", Kind: KindEnum},
		{Name: "category", Kind: KindString, Nullable: true},
	}, auditFields...),
	Relations: []Relation{
		{
			Name:         "authors",
			Target:       AuthorName,
			LinkTable:    BookAuthorsTable,
			OwnerColumn:  "book_id",
			TargetColumn: "author_id",
			Inverse:      "books",
			MinMembers:   1,
		},
	},
	Filters: append([]FilterKey{
		{Key: "title", Field: "title", Predicate: Contains},
		{Key: "publication_year", Field: "publication_year", Predicate: Exact},
		{Key: "language", Field: "language", Predicate: Exact},
		{Key: "category", Field: "category", Predicate: Contains},
		{Key: "author_first_name", Relation: "authors", Field: "first_name", Predicate: Contains},
		{Key: "author_middle_name", Relation: "authors", Field: "middle_name", Predicate: Contains},
		{Key: "author_last_name", Relation: "authors", Field: "last_name", Predicate: Contains},
	}, auditFilters()...),
}

// BasicFilterKeys lists the filter keys offered to non-admin callers.
// Admin callers may use every key of the entity's filter schema.
var BasicFilterKeys = map[string][]string{
	AuthorName: {"first_name", "middle_name", "last_name", "book_title"},
	BookName:   {"title", "publication_year", "author_first_name", "author_middle_name", "author_last_name"},
}

// Catalog is the registry of every entity libris serves.
var Catalog = NewRegistry(AuthorEntity, BookEntity)

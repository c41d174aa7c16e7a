package queryir

import "fmt"

// Predicate represents a filter condition in the IR.
//
// This is a sealed interface - only types in this package implement it.
// Predicates are used in Select.Filter and Join.On.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Source is a table reference with the alias used throughout the query.
type Source struct {
	Table string
	Alias string
}

// ColumnRef names a column through its source alias.
type ColumnRef struct {
	Source string
	Name   string
}

func (c ColumnRef) String() string {
	return c.Source + "." + c.Name
}

// Col is shorthand for ColumnRef construction.
func Col(source, name string) ColumnRef {
	return ColumnRef{Source: source, Name: name}
}

// Column is one projected output column. As is the result label.
type Column struct {
	ColumnRef
	As string
}

// JoinKind selects the join semantics.
type JoinKind int

const (
	// InnerJoin keeps only rows with a match. Used to test related columns.
	InnerJoin JoinKind = iota
	// LeftJoin keeps rows without a match. Used to eagerly load relations.
	LeftJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "INNER JOIN"
	case LeftJoin:
		return "LEFT JOIN"
	default:
		return fmt.Sprintf("JoinKind(%d)", int(k))
	}
}

// Join attaches another source to the query.
type Join struct {
	Kind   JoinKind
	Source Source
	On     Predicate // required
}

// Select represents a query over one root table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> <joins> WHERE <filter> ORDER BY <order> [lock]
//
// Example (conceptual SQL translation):
//
//	Select{
//	  From:    Source{Table: "authors", Alias: "t0"},
//	  Columns: []Column{{ColumnRef: Col("t0", "id"), As: "id"}},
//	  Filter:  Contains{Column: Col("t0", "last_name"), Value: "co"},
//	  OrderBy: []ColumnRef{Col("t0", "id")},
//	}
//
// Translates to SQL:
//
//	SELECT t0.id AS id FROM authors AS t0
//	WHERE casefold(t0.last_name) LIKE casefold(?) ESCAPE '\' ORDER BY t0.id ASC
//
// Lock requests a row-level write lock on the root rows for the duration of
// the enclosing transaction.
type Select struct {
	From    Source
	Columns []Column
	Joins   []Join
	Filter  Predicate // nil = no filter
	OrderBy []ColumnRef
	Lock    bool
}

// Aliases returns every alias declared by the query, root first.
func (s Select) Aliases() []string {
	aliases := make([]string, 0, 1+len(s.Joins))
	aliases = append(aliases, s.From.Alias)
	for _, j := range s.Joins {
		aliases = append(aliases, j.Source.Alias)
	}
	return aliases
}

// HasJoin reports whether a join with the given alias exists.
func (s Select) HasJoin(alias string) bool {
	for _, j := range s.Joins {
		if j.Source.Alias == alias {
			return true
		}
	}
	return false
}

// Equals represents a column-equals-literal predicate.
//
//	<column> = <value>
type Equals struct {
	Column ColumnRef
	Value  any
}

func (Equals) predicateNode() {}

// Contains represents a case-insensitive substring match.
//
//	<column> contains <value>, ignoring case
//
// Value is the raw substring; the compiler adds wildcards and escapes.
type Contains struct {
	Column ColumnRef
	Value  string
}

func (Contains) predicateNode() {}

// Between represents an inclusive range match.
//
//	<from> <= <column> AND <column> <= <to>
type Between struct {
	Column ColumnRef
	From   any
	To     any
}

func (Between) predicateNode() {}

// ColumnEquals represents an equi-join condition between two columns.
//
//	<left> = <right>
type ColumnEquals struct {
	Left  ColumnRef
	Right ColumnRef
}

func (ColumnEquals) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Conjoin folds predicates into one: nil for none, the predicate itself for
// one, an And otherwise.
func Conjoin(preds ...Predicate) Predicate {
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return And{Predicates: preds}
	}
}

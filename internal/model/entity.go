package model

import (
	"fmt"
	"sort"
)

// Kind is the semantic type of a scalar field.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindEnum
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// PredicateKind is the tagged variant attached to every filter key.
// One generic routine in the query builder interprets it.
type PredicateKind int

const (
	// Contains is a case-insensitive substring match.
	Contains PredicateKind = iota
	// Exact is an equality match.
	Exact
	// Between is an inclusive range match on both ends.
	Between
)

func (p PredicateKind) String() string {
	switch p {
	case Contains:
		return "contains"
	case Exact:
		return "exact"
	case Between:
		return "between"
	default:
		return fmt.Sprintf("PredicateKind(%d)", int(p))
	}
}

// Field describes a scalar attribute. The column name equals Name.
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Relation describes a many-to-many relationship through a link table.
//
// OwnerColumn references the owning entity's primary key, TargetColumn the
// related entity's. MinMembers is the relation cardinality invariant that
// must hold after every write (0 = unconstrained).
type Relation struct {
	Name         string
	Target       string
	LinkTable    string
	OwnerColumn  string
	TargetColumn string
	Inverse      string
	MinMembers   int
}

// FilterKey maps one filter specification key to a predicate.
// Relation is empty when the key targets the entity itself.
type FilterKey struct {
	Key       string
	Relation  string
	Field     string
	Predicate PredicateKind
}

// Entity is the descriptor of a relational record type.
type Entity struct {
	Name       string
	Table      string
	PrimaryKey string
	Fields     []Field
	Relations  []Relation
	Filters    []FilterKey
}

// Field returns the scalar field with the given name.
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relation returns the relation with the given name.
func (e *Entity) Relation(name string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// Filter returns the filter schema entry for key.
func (e *Entity) Filter(key string) (FilterKey, bool) {
	for _, f := range e.Filters {
		if f.Key == key {
			return f, true
		}
	}
	return FilterKey{}, false
}

// FieldNames returns every scalar field name in declaration order.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// FilterKeys returns the filter schema keys sorted alphabetically.
func (e *Entity) FilterKeys() []string {
	keys := make([]string, len(e.Filters))
	for i, f := range e.Filters {
		keys[i] = f.Key
	}
	sort.Strings(keys)
	return keys
}

// Registry resolves entity descriptors by name.
type Registry struct {
	entities map[string]*Entity
}

// NewRegistry creates a registry holding the given descriptors.
func NewRegistry(entities ...*Entity) *Registry {
	r := &Registry{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		r.entities[e.Name] = e
	}
	return r
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Target returns the descriptor on the far side of rel.
func (r *Registry) Target(rel Relation) (*Entity, error) {
	e, ok := r.entities[rel.Target]
	if !ok {
		return nil, fmt.Errorf("relation %q targets unregistered entity %q", rel.Name, rel.Target)
	}
	return e, nil
}

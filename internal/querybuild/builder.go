// Package querybuild turns a Field Selection Tree plus either an identity or a
// Filter Specification into one query IR value.
//
// The builder loads only the columns the tree names (the primary key is always
// loaded to identify rows), eagerly joins only the relations the tree
// traverses, and joins only the relations the filter tests. It holds no state
// beyond one Build call and has no side effects.
package querybuild

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/libris/internal/dataerr"
	"github.com/roach88/libris/internal/filter"
	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/queryir"
	"github.com/roach88/libris/internal/selection"
)

// RootAlias is the alias of the entity being queried.
const RootAlias = "t0"

// Alias prefixes for joined sources. Load joins eagerly fetch a selected
// relation; filter joins test related columns. A relation that is both
// selected and filtered gets one of each, so the loaded relation holds every
// member rather than only the matching ones.
const (
	loadLinkPrefix   = "lk_"
	loadTargetPrefix = "l_"
	filterLinkPrefix = "fk_"
	filterPrefix     = "f_"
)

// LabelSeparator joins a relation name and a field name in output labels.
const LabelSeparator = "__"

// Output describes one projected column, in the same order as Query.Columns.
type Output struct {
	Relation string // "" for the root entity
	Field    model.Field
	Label    string
}

// Plan is the result of a Build call.
type Plan struct {
	Entity    *model.Entity
	Query     queryir.Select
	Outputs   []Output
	Relations []string // loaded relations, in selection order
	Identity  *int64
}

// Option configures one Build call.
type Option func(*request)

type request struct {
	identity  *int64
	spec      filter.Spec
	filterSet bool
	lock      bool
}

// Identity restricts the query to the row with the given primary key.
func Identity(id int64) Option {
	return func(r *request) { r.identity = &id }
}

// Filter restricts the query with a filter specification.
// Passing Filter together with Identity is a caller error even when the
// specification is empty.
func Filter(spec filter.Spec) Option {
	return func(r *request) {
		r.spec = spec
		r.filterSet = true
	}
}

// ForUpdate locks the selected row until the enclosing transaction ends.
// Only valid for identity lookups.
func ForUpdate() Option {
	return func(r *request) { r.lock = true }
}

// Builder builds queries against the entities of one registry.
type Builder struct {
	registry *model.Registry
}

// New creates a builder resolving relation targets through reg.
func New(reg *model.Registry) *Builder {
	return &Builder{registry: reg}
}

// Build produces the query for entity e.
//
// Errors:
//   - INVALID_QUERY_ARGUMENTS: identity and filter both given, or a lock without identity
//   - UNKNOWN_FIELD: the tree names a field or relation e lacks
//   - UNSUPPORTED_FILTER_KEY: a filter key outside e's filter schema
//   - INVALID_FILTER_VALUE: a filter value whose shape does not fit its key
func (b *Builder) Build(e *model.Entity, tree selection.Tree, opts ...Option) (*Plan, error) {
	req := &request{}
	for _, opt := range opts {
		opt(req)
	}
	if req.identity != nil && req.filterSet {
		return nil, dataerr.InvalidQueryArguments(e.Name)
	}
	if req.lock && req.identity == nil {
		return nil, &dataerr.Error{
			Code:    dataerr.CodeInvalidQueryArguments,
			Message: "row locks require an identity lookup",
			Entity:  e.Name,
		}
	}

	bc := &buildContext{
		builder: b,
		entity:  e,
		plan: &Plan{
			Entity:   e,
			Identity: req.identity,
			Query: queryir.Select{
				From: queryir.Source{Table: e.Table, Alias: RootAlias},
				Lock: req.lock,
			},
		},
	}

	if err := bc.project(tree); err != nil {
		return nil, err
	}

	var preds []queryir.Predicate
	if req.identity != nil {
		preds = append(preds, queryir.Equals{
			Column: queryir.Col(RootAlias, e.PrimaryKey),
			Value:  *req.identity,
		})
	} else if !req.spec.Empty() {
		filterPreds, err := bc.translate(req.spec)
		if err != nil {
			return nil, err
		}
		preds = filterPreds
	}
	bc.plan.Query.Filter = queryir.Conjoin(preds...)

	return bc.plan, nil
}

// buildContext carries the state of one Build call.
type buildContext struct {
	builder *Builder
	entity  *model.Entity
	plan    *Plan
}

// project decomposes the selection tree against the entity's field registry.
func (bc *buildContext) project(tree selection.Tree) error {
	e := bc.entity
	q := &bc.plan.Query

	if len(tree) == 0 {
		tree = selection.Fields(e.FieldNames()...)
	}

	// Root columns: primary key first, then the requested leaves.
	rootFields, err := fieldsFor(e, tree.Leaves())
	if err != nil {
		return err
	}
	for _, f := range rootFields {
		bc.addOutput("", RootAlias, f)
	}
	q.OrderBy = append(q.OrderBy, queryir.Col(RootAlias, e.PrimaryKey))

	// Relation branches: one eager LEFT join each, restricted to the
	// children's columns.
	for _, branch := range tree.Branches() {
		rel, ok := e.Relation(branch.Name)
		if !ok {
			return dataerr.UnknownField(e.Name, branch.Name)
		}
		target, err := bc.builder.registry.Target(rel)
		if err != nil {
			return err
		}
		for _, child := range branch.Children {
			if !child.IsLeaf() {
				return &dataerr.Error{
					Code:    dataerr.CodeInvalidQueryArguments,
					Message: fmt.Sprintf("%s.%s.%s: only one level of relation nesting is supported", e.Name, branch.Name, child.Name),
					Entity:  e.Name,
				}
			}
		}
		names := make([]string, len(branch.Children))
		for i, child := range branch.Children {
			names[i] = child.Name
		}
		relFields, err := fieldsFor(target, names)
		if err != nil {
			return err
		}

		linkAlias := loadLinkPrefix + rel.Name
		targetAlias := loadTargetPrefix + rel.Name
		q.Joins = append(q.Joins, linkJoins(queryir.LeftJoin, e, rel, target, linkAlias, targetAlias)...)
		for _, f := range relFields {
			bc.addOutput(rel.Name, targetAlias, f)
		}
		q.OrderBy = append(q.OrderBy, queryir.Col(targetAlias, target.PrimaryKey))
		bc.plan.Relations = append(bc.plan.Relations, rel.Name)
	}
	return nil
}

func (bc *buildContext) addOutput(relation, alias string, f model.Field) {
	label := f.Name
	if relation != "" {
		label = relation + LabelSeparator + f.Name
	}
	bc.plan.Query.Columns = append(bc.plan.Query.Columns, queryir.Column{
		ColumnRef: queryir.Col(alias, f.Name),
		As:        label,
	})
	bc.plan.Outputs = append(bc.plan.Outputs, Output{Relation: relation, Field: f, Label: label})
}

// fieldsFor resolves names to fields, primary key first and duplicates dropped.
// A relation named as a leaf is an unknown field: relations need children.
func fieldsFor(e *model.Entity, names []string) ([]model.Field, error) {
	pk, ok := e.Field(e.PrimaryKey)
	if !ok {
		return nil, fmt.Errorf("%s: primary key %q is not a registered field", e.Name, e.PrimaryKey)
	}
	fields := []model.Field{pk}
	seen := map[string]bool{pk.Name: true}
	for _, name := range names {
		if seen[name] {
			continue
		}
		f, ok := e.Field(name)
		if !ok {
			return nil, dataerr.UnknownField(e.Name, name)
		}
		seen[name] = true
		fields = append(fields, f)
	}
	return fields, nil
}

// linkJoins joins the link table and the related table of rel.
func linkJoins(kind queryir.JoinKind, owner *model.Entity, rel model.Relation, target *model.Entity, linkAlias, targetAlias string) []queryir.Join {
	return []queryir.Join{
		{
			Kind:   kind,
			Source: queryir.Source{Table: rel.LinkTable, Alias: linkAlias},
			On: queryir.ColumnEquals{
				Left:  queryir.Col(linkAlias, rel.OwnerColumn),
				Right: queryir.Col(RootAlias, owner.PrimaryKey),
			},
		},
		{
			Kind:   kind,
			Source: queryir.Source{Table: target.Table, Alias: targetAlias},
			On: queryir.ColumnEquals{
				Left:  queryir.Col(targetAlias, target.PrimaryKey),
				Right: queryir.Col(linkAlias, rel.TargetColumn),
			},
		},
	}
}

// translate turns the filter specification into predicates, registering one
// INNER join per related entity the filter tests.
func (bc *buildContext) translate(spec filter.Spec) ([]queryir.Predicate, error) {
	e := bc.entity
	var preds []queryir.Predicate

	for _, key := range spec.Keys() {
		fk, ok := e.Filter(key)
		if !ok {
			return nil, dataerr.UnsupportedFilterKey(e.Name, key)
		}

		owner := e
		alias := RootAlias
		if fk.Relation != "" {
			rel, ok := e.Relation(fk.Relation)
			if !ok {
				return nil, dataerr.UnsupportedFilterKey(e.Name, key)
			}
			target, err := bc.builder.registry.Target(rel)
			if err != nil {
				return nil, err
			}
			owner = target
			alias = filterPrefix + rel.Name
			if !bc.plan.Query.HasJoin(alias) {
				bc.plan.Query.Joins = append(bc.plan.Query.Joins,
					linkJoins(queryir.InnerJoin, e, rel, target, filterLinkPrefix+rel.Name, alias)...)
			}
		}

		field, ok := owner.Field(fk.Field)
		if !ok {
			return nil, dataerr.UnsupportedFilterKey(e.Name, key)
		}

		pred, err := predicateFor(e.Name, fk, field, queryir.Col(alias, field.Name), spec[key])
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

// predicateFor is the one generic routine interpreting a filter key's
// predicate kind. The value's shape must agree with the kind.
func predicateFor(entity string, fk model.FilterKey, field model.Field, col queryir.ColumnRef, v filter.Value) (queryir.Predicate, error) {
	switch fk.Predicate {
	case model.Contains:
		text, ok := v.(filter.Text)
		if !ok {
			return nil, dataerr.InvalidFilterValue(entity, fk.Key, fmt.Sprintf("expected text, got %T", v))
		}
		return queryir.Contains{Column: col, Value: norm.NFC.String(string(text))}, nil

	case model.Exact:
		switch val := v.(type) {
		case filter.Int:
			if field.Kind != model.KindInt {
				break
			}
			return queryir.Equals{Column: col, Value: int64(val)}, nil
		case filter.Enum:
			if field.Kind != model.KindEnum {
				break
			}
			return enumEquals(entity, fk, col, string(val))
		case filter.Text:
			switch field.Kind {
			case model.KindEnum:
				return enumEquals(entity, fk, col, string(val))
			case model.KindString:
				return queryir.Equals{Column: col, Value: norm.NFC.String(string(val))}, nil
			}
		}
		return nil, dataerr.InvalidFilterValue(entity, fk.Key, fmt.Sprintf("%T does not match %s field %s", v, field.Kind, field.Name))

	case model.Between:
		r, ok := v.(filter.DateRange)
		if !ok {
			return nil, dataerr.InvalidFilterValue(entity, fk.Key, fmt.Sprintf("expected {from, to} range, got %T", v))
		}
		if r.From.After(r.To) {
			return nil, dataerr.InvalidFilterValue(entity, fk.Key, "range start is after range end")
		}
		return queryir.Between{Column: col, From: r.From, To: r.To}, nil
	}
	return nil, dataerr.InvalidFilterValue(entity, fk.Key, fmt.Sprintf("unsupported predicate %s", fk.Predicate))
}

// enumEquals matches the stored enum name. Labels are accepted on input.
func enumEquals(entity string, fk model.FilterKey, col queryir.ColumnRef, raw string) (queryir.Predicate, error) {
	lang, err := model.ParseLanguage(raw)
	if err != nil {
		return nil, dataerr.InvalidFilterValue(entity, fk.Key, err.Error())
	}
	return queryir.Equals{Column: col, Value: string(lang)}, nil
}

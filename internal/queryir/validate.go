package queryir

import (
	"fmt"
	"time"
)

// ValidationResult contains the structural analysis of a query.
type ValidationResult struct {
	// Valid indicates the query can be compiled by every backend.
	Valid bool

	// Problems lists every structural defect found. Empty when Valid is true.
	Problems []string
}

// Err returns the problems as one error, or nil when the query is valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid query: %v", r.Problems)
}

// Validate checks that a query is well formed.
//
// Rules:
//  1. Every alias is non-empty and unique
//  2. Every column reference names a declared alias
//  3. Joins carry an On predicate
//  4. The projection is explicit (no SELECT *)
//  5. Literal values are string, int64 or time.Time
//
// Validate is a pure function with no side effects. It collects every problem
// rather than stopping at the first.
func Validate(q Select) ValidationResult {
	v := &validator{
		problems: []string{},
		aliases:  map[string]bool{},
	}
	v.validateSelect(q)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
	aliases  map[string]bool
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) declare(src Source) {
	if src.Table == "" {
		v.addProblem("source with alias %q has no table", src.Alias)
	}
	if src.Alias == "" {
		v.addProblem("table %q has no alias", src.Table)
		return
	}
	if v.aliases[src.Alias] {
		v.addProblem("alias %q declared twice", src.Alias)
	}
	v.aliases[src.Alias] = true
}

func (v *validator) validateSelect(q Select) {
	// Rule 1: aliases are declared before any reference is checked.
	v.declare(q.From)
	for _, j := range q.Joins {
		v.declare(j.Source)
	}

	// Rule 4: explicit projection
	if len(q.Columns) == 0 {
		v.addProblem("empty projection - explicit columns are required")
	}
	labels := map[string]bool{}
	for _, c := range q.Columns {
		v.validateRef(c.ColumnRef)
		if c.As != "" {
			if labels[c.As] {
				v.addProblem("output label %q used twice", c.As)
			}
			labels[c.As] = true
		}
	}

	for _, j := range q.Joins {
		// Rule 3: joins need a condition
		if j.On == nil {
			v.addProblem("join %q has no ON condition", j.Source.Alias)
			continue
		}
		v.validatePredicate(j.On)
	}

	if q.Filter != nil {
		v.validatePredicate(q.Filter)
	}
	for _, o := range q.OrderBy {
		v.validateRef(o)
	}
}

func (v *validator) validateRef(c ColumnRef) {
	if c.Name == "" {
		v.addProblem("column reference on %q has no name", c.Source)
	}
	if !v.aliases[c.Source] {
		v.addProblem("column %s references undeclared alias %q", c, c.Source)
	}
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		return
	case Equals:
		v.validateRef(pred.Column)
		v.validateValue(pred.Column, pred.Value)
	case Contains:
		v.validateRef(pred.Column)
	case Between:
		v.validateRef(pred.Column)
		v.validateValue(pred.Column, pred.From)
		v.validateValue(pred.Column, pred.To)
		if fmt.Sprintf("%T", pred.From) != fmt.Sprintf("%T", pred.To) {
			v.addProblem("range on %s mixes %T and %T", pred.Column, pred.From, pred.To)
		}
	case ColumnEquals:
		v.validateRef(pred.Left)
		v.validateRef(pred.Right)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

// Rule 5: constrained literal types.
func (v *validator) validateValue(c ColumnRef, val any) {
	switch val.(type) {
	case string, int64, time.Time:
	default:
		v.addProblem("value %v (%T) on %s is not string, int64 or time.Time", val, val, c)
	}
}

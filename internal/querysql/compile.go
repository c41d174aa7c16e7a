package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/libris/internal/queryir"
)

// likeEscaper escapes the LIKE wildcards so substrings match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQLCompiler compiles the query IR to parameterized SQL for one dialect.
//
// CRITICAL: All values are parameterized (never interpolated).
// CRITICAL: Every query carries an ORDER BY so results are stable within an execution.
type SQLCompiler struct {
	dialect Dialect
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *SQLCompiler) Dialect() Dialect {
	return c.dialect
}

// Compile converts a query to SQL. Returns (sql, params, error).
//
// The query is validated first; structurally invalid queries are refused.
// Compile is safe for concurrent use.
func (c *SQLCompiler) Compile(q queryir.Select) (string, []any, error) {
	if err := queryir.Validate(q).Err(); err != nil {
		return "", nil, err
	}

	st := &compileState{dialect: c.dialect}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(compileColumns(q.Columns))
	fmt.Fprintf(&b, " FROM %s AS %s", q.From.Table, q.From.Alias)

	for _, j := range q.Joins {
		on, err := st.predicate(j.On)
		if err != nil {
			return "", nil, fmt.Errorf("compile join %s: %w", j.Source.Alias, err)
		}
		fmt.Fprintf(&b, " %s %s AS %s ON %s", j.Kind, j.Source.Table, j.Source.Alias, on)
	}

	if q.Filter != nil {
		where, err := st.predicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	// MANDATORY: stable order
	order := q.OrderBy
	if len(order) == 0 {
		order = []queryir.ColumnRef{queryir.Col(q.From.Alias, "id")}
	}
	parts := make([]string, len(order))
	for i, o := range order {
		parts[i] = o.String() + " ASC"
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(parts, ", "))

	if q.Lock {
		b.WriteString(c.dialect.LockClause(q.From.Alias))
	}

	return b.String(), st.params, nil
}

// compileColumns converts the projection to a SELECT column list.
// Example: {t0.last_name AS last_name} → "t0.last_name AS last_name"
func compileColumns(cols []queryir.Column) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		if col.As == "" {
			parts[i] = col.String()
			continue
		}
		parts[i] = col.String() + " AS " + col.As
	}
	return strings.Join(parts, ", ")
}

// compileState numbers placeholders and collects params for one compilation.
type compileState struct {
	dialect Dialect
	params  []any
}

// bind records a parameter and returns its placeholder.
// CRITICAL: Values are NEVER interpolated - always placeholders.
func (s *compileState) bind(v any) string {
	s.params = append(s.params, s.dialect.Param(v))
	return s.dialect.Placeholder(len(s.params))
}

func (s *compileState) predicate(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil // Always true
	case queryir.Equals:
		return fmt.Sprintf("%s = %s", pred.Column, s.bind(pred.Value)), nil
	case queryir.Contains:
		pattern := "%" + likeEscaper.Replace(pred.Value) + "%"
		return s.dialect.Contains(pred.Column.String(), s.bind(pattern)), nil
	case queryir.Between:
		from := s.bind(pred.From)
		to := s.bind(pred.To)
		return fmt.Sprintf("%s BETWEEN %s AND %s", pred.Column, from, to), nil
	case queryir.ColumnEquals:
		return fmt.Sprintf("%s = %s", pred.Left, pred.Right), nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil // Vacuous truth
		}
		parts := make([]string, 0, len(pred.Predicates))
		for _, sub := range pred.Predicates {
			sql, err := s.predicate(sub)
			if err != nil {
				return "", err
			}
			if _, nested := sub.(queryir.And); nested {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
		}
		return strings.Join(parts, " AND "), nil
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

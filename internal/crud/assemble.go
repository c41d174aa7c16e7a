package crud

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/libris/internal/model"
	"github.com/roach88/libris/internal/querybuild"
	"github.com/roach88/libris/internal/querysql"
)

// assembler folds the flat result rows of a plan into typed rows.
//
// Joined relations repeat the root columns once per member. Root rows are
// deduplicated by primary key in first-seen order; related rows are
// deduplicated per root, and a NULL related key (a root with no members)
// adds nothing.
type assembler[R model.Row] struct {
	plan    *querybuild.Plan
	newRow  func() R
	rootIdx []int
	relIdx  map[string][]int // first index of each group is the related key

	roots   []R
	byKey   map[int64]R
	members map[int64]map[string]map[int64]bool
}

func newAssembler[R model.Row](plan *querybuild.Plan, newRow func() R) *assembler[R] {
	a := &assembler[R]{
		plan:    plan,
		newRow:  newRow,
		relIdx:  map[string][]int{},
		byKey:   map[int64]R{},
		members: map[int64]map[string]map[int64]bool{},
	}
	for i, out := range plan.Outputs {
		if out.Relation == "" {
			a.rootIdx = append(a.rootIdx, i)
			continue
		}
		a.relIdx[out.Relation] = append(a.relIdx[out.Relation], i)
	}
	return a
}

// scan reads every row of rows. Callers close rows.
func (a *assembler[R]) scan(rows *sql.Rows) error {
	n := len(a.plan.Outputs)
	for rows.Next() {
		raw := make([]any, n)
		dest := make([]any, n)
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s row: %w", a.plan.Entity.Name, err)
		}
		if err := a.add(raw); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s rows: %w", a.plan.Entity.Name, err)
	}
	return nil
}

func (a *assembler[R]) add(raw []any) error {
	key, err := toInt64(raw[a.rootIdx[0]])
	if err != nil {
		return fmt.Errorf("%s key: %w", a.plan.Entity.Name, err)
	}

	root, seen := a.byKey[key]
	if !seen {
		root = a.newRow()
		for _, i := range a.rootIdx {
			if err := assign(root, a.plan.Outputs[i], raw[i]); err != nil {
				return err
			}
		}
		a.byKey[key] = root
		a.roots = append(a.roots, root)
		a.members[key] = map[string]map[int64]bool{}
	}

	for _, rel := range a.plan.Relations {
		idx := a.relIdx[rel]
		if raw[idx[0]] == nil {
			continue
		}
		relKey, err := toInt64(raw[idx[0]])
		if err != nil {
			return fmt.Errorf("%s.%s key: %w", a.plan.Entity.Name, rel, err)
		}
		seenRel := a.members[key][rel]
		if seenRel == nil {
			seenRel = map[int64]bool{}
			a.members[key][rel] = seenRel
		}
		if seenRel[relKey] {
			continue
		}
		seenRel[relKey] = true

		child := root.NewRelated(rel)
		if child == nil {
			return fmt.Errorf("%s has no related row type for %q", a.plan.Entity.Name, rel)
		}
		for _, i := range idx {
			if err := assign(child, a.plan.Outputs[i], raw[i]); err != nil {
				return err
			}
		}
		root.AppendRelated(rel, child)
	}
	return nil
}

// assign converts a scanned driver value into the row field backing out.
func assign(row model.Row, out querybuild.Output, v any) error {
	ref := row.Ref(out.Field.Name)
	if ref == nil {
		return fmt.Errorf("row has no field %q", out.Field.Name)
	}

	var err error
	switch dest := ref.(type) {
	case *int64:
		*dest, err = toInt64(v)
	case *string:
		*dest, err = toString(v)
	case **string:
		if v == nil {
			*dest = nil
			break
		}
		var s string
		if s, err = toString(v); err == nil {
			*dest = &s
		}
	case *time.Time:
		*dest, err = toDate(v)
	case **time.Time:
		if v == nil {
			*dest = nil
			break
		}
		var t time.Time
		if t, err = toDate(v); err == nil {
			*dest = &t
		}
	case sql.Scanner:
		err = dest.Scan(v)
	default:
		err = fmt.Errorf("unsupported destination %T", ref)
	}
	if err != nil {
		return fmt.Errorf("column %s: %w", out.Label, err)
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, fmt.Errorf("unexpected NULL integer")
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", v)
	}
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", v)
	}
}

// toDate accepts native dates (PostgreSQL) and YYYY-MM-DD text (SQLite).
func toDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return Date(d), nil
	case string:
		return parseDate(d)
	case []byte:
		return parseDate(string(d))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to date", v)
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(querysql.DateLayout) {
		s = s[:len(querysql.DateLayout)]
	}
	return time.Parse(querysql.DateLayout, s)
}

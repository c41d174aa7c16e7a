package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError describes one unmet expectation.
type AssertionError struct {
	Step     int    // Index of the step
	Op       string // Operation of the step
	Type     string // Expectation that failed
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "steps[%d] (%s): %s\n", e.Step, e.Op, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// checkExpect compares a step's outcome with its expectation and records
// every mismatch in result. A returned error means the expectation itself
// could not be evaluated.
func checkExpect(result *Result, index int, st *Step, sr *StepResult, stepErr error, saved map[string]int64) error {
	fail := func(typ, expected, actual string) {
		e := &AssertionError{Step: index, Op: st.Op, Type: typ, Expected: expected, Actual: actual}
		result.AddError(e.Error())
	}

	exp := st.Expect
	if exp == nil {
		exp = &Expect{}
	}

	switch {
	case exp.Error == "" && stepErr != nil:
		fail("error", "success", stepErr.Error())
		return nil
	case exp.Error != "" && stepErr == nil:
		fail("error", exp.Error, "success")
	case exp.Error != "" && sr.Error != exp.Error:
		fail("error", exp.Error, stepErr.Error())
	}

	if exp.Count != nil && (sr.Count == nil || *sr.Count != *exp.Count) {
		fail("count", fmt.Sprint(*exp.Count), formatCount(sr.Count))
	}
	if exp.IDs != nil {
		want, err := resolveIDs(exp.IDs, saved)
		if err != nil {
			return err
		}
		if !sameIDs(want, sr.IDs) {
			fail("ids", fmt.Sprint(want), fmt.Sprint(sr.IDs))
		}
	}
	if exp.Authors != nil {
		want, err := resolveIDs(exp.Authors, saved)
		if err != nil {
			return err
		}
		got := append([]int64(nil), sr.Authors...)
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
		if !sameIDs(want, got) {
			fail("authors", fmt.Sprint(want), fmt.Sprint(got))
		}
	}
	if exp.Deleted != nil && (sr.Deleted == nil || *sr.Deleted != *exp.Deleted) {
		actual := "no result"
		if sr.Deleted != nil {
			actual = fmt.Sprint(*sr.Deleted)
		}
		fail("deleted", fmt.Sprint(*exp.Deleted), actual)
	}
	if len(exp.Fields) > 0 {
		mismatches, err := matchFields(sr.row, exp.Fields)
		if err != nil {
			return err
		}
		for _, m := range mismatches {
			fail("fields", m[0], m[1])
		}
	}
	return nil
}

// matchFields checks that every expected field has the given value in the
// row's JSON form (subset semantics). It returns expected/actual pairs for
// the mismatches, ordered by field name.
func matchFields(row any, expected map[string]any) ([][2]string, error) {
	actual, err := jsonMap(row)
	if err != nil {
		return nil, err
	}
	want, err := jsonMap(expected)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out [][2]string
	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			out = append(out, [2]string{fmt.Sprintf("%s=%v", k, want[k]), k + " missing"})
			continue
		}
		if !reflect.DeepEqual(got, want[k]) {
			out = append(out, [2]string{fmt.Sprintf("%s=%v", k, want[k]), fmt.Sprintf("%s=%v", k, got)})
		}
	}
	return out, nil
}

// jsonMap normalizes v through JSON so YAML-decoded expectations and typed
// rows compare alike (numbers become float64).
func jsonMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatCount(n *int) string {
	if n == nil {
		return "no result"
	}
	return fmt.Sprint(*n)
}

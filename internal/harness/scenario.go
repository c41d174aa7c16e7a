package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines an end-to-end scenario run against the Author and Book
// services. Steps run in order against a fresh database.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// User is the acting user of every step that does not name one.
	// Defaults to DefaultUser.
	User string `yaml:"user,omitempty"`

	// Steps are the operations to run.
	Steps []Step `yaml:"steps"`
}

// Step is one service call plus its expected outcome.
type Step struct {
	// Op is the operation (see the Op* constants).
	Op string `yaml:"op"`

	// Entity is "author" or "book" for delete, fetch_one and fetch_many.
	Entity string `yaml:"entity,omitempty"`

	// ID is the target row: a number or a "$name" reference to a saved id.
	ID string `yaml:"id,omitempty"`

	// Args is the operation payload. Values may be "$name" references.
	Args map[string]any `yaml:"args,omitempty"`

	// Fields is the selection to load, e.g. "last_name books { title }".
	Fields string `yaml:"fields,omitempty"`

	// Filter maps filter keys to their textual values (fetch_many).
	Filter map[string]string `yaml:"filter,omitempty"`

	// Days moves the audit clock forward (advance_clock).
	Days int `yaml:"days,omitempty"`

	// User overrides the scenario's acting user for this step.
	User string `yaml:"user,omitempty"`

	// SaveAs stores the id of the created row under a name for later steps.
	SaveAs string `yaml:"save_as,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected error code (e.g. RELATION_CARDINALITY).
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of rows returned (fetch_many).
	Count *int `yaml:"count,omitempty"`

	// IDs are the expected row ids in order (fetch_many).
	IDs []string `yaml:"ids,omitempty"`

	// Authors are the expected author ids of the step's book after the step,
	// read back from storage whether or not the step failed.
	Authors []string `yaml:"authors,omitempty"`

	// Deleted is the expected delete outcome.
	Deleted *bool `yaml:"deleted,omitempty"`

	// Fields contains expected attribute values of the returned row.
	// This is a subset match on the row's JSON form.
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Operation names.
const (
	OpCreateAuthor  = "create_author"
	OpCreateBook    = "create_book"
	OpUpdateAuthor  = "update_author"
	OpUpdateBook    = "update_book"
	OpRemoveMembers = "remove_members"
	OpAddMembers    = "add_members"
	OpDelete        = "delete"
	OpFetchOne      = "fetch_one"
	OpFetchMany     = "fetch_many"
	OpAdvanceClock  = "advance_clock"
)

// Entity names used by steps.
const (
	EntityAuthor = "author"
	EntityBook   = "book"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "expects:" vs "expect:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	saved := map[string]bool{}
	for i, step := range s.Steps {
		if err := validateStep(i, &step, saved); err != nil {
			return err
		}
		if step.SaveAs != "" {
			saved[step.SaveAs] = true
		}
	}
	return nil
}

// validateStep validates a single step based on its op. saved holds the
// names saved by earlier steps.
func validateStep(index int, st *Step, saved map[string]bool) error {
	needsID := false
	needsEntity := false

	switch st.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpCreateAuthor, OpCreateBook:
	case OpUpdateAuthor, OpUpdateBook, OpRemoveMembers, OpAddMembers:
		needsID = true
	case OpDelete, OpFetchOne:
		needsID = true
		needsEntity = true
	case OpFetchMany:
		needsEntity = true
	case OpAdvanceClock:
		if st.Days <= 0 {
			return fmt.Errorf("steps[%d]: days must be positive for advance_clock", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if needsID && st.ID == "" {
		return fmt.Errorf("steps[%d]: id is required for %s", index, st.Op)
	}
	if needsEntity && st.Entity != EntityAuthor && st.Entity != EntityBook {
		return fmt.Errorf("steps[%d]: entity must be %q or %q for %s", index, EntityAuthor, EntityBook, st.Op)
	}
	if len(st.Filter) > 0 && st.Op != OpFetchMany {
		return fmt.Errorf("steps[%d]: filter is only valid for fetch_many", index)
	}
	if st.SaveAs != "" && st.Op != OpCreateAuthor && st.Op != OpCreateBook {
		return fmt.Errorf("steps[%d]: save_as is only valid for create ops", index)
	}

	// References must name ids saved by earlier steps.
	refs := append([]string{st.ID}, collectRefs(st.Args)...)
	if st.Expect != nil {
		refs = append(refs, st.Expect.IDs...)
		refs = append(refs, st.Expect.Authors...)
	}
	for _, r := range refs {
		if name, ok := refName(r); ok && !saved[name] {
			return fmt.Errorf("steps[%d]: reference %q is not saved by an earlier step", index, r)
		}
	}
	return nil
}

// refName reports whether s is a "$name" reference.
func refName(s string) (string, bool) {
	if !strings.HasPrefix(s, "$") || len(s) < 2 {
		return "", false
	}
	return s[1:], true
}

// collectRefs returns every string value of v, recursively.
func collectRefs(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		out = append(out, t)
	case []any:
		for _, e := range t {
			out = append(out, collectRefs(e)...)
		}
	case map[string]any:
		for _, e := range t {
			out = append(out, collectRefs(e)...)
		}
	}
	return out
}

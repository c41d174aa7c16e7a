package harness

// StepResult records what one step did.
type StepResult struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	Entity string `json:"entity,omitempty"`

	// ID is the row the step created or addressed.
	ID int64 `json:"id,omitempty"`

	// IDs and Count describe the rows a fetch_many returned.
	IDs   []int64 `json:"ids,omitempty"`
	Count *int    `json:"count,omitempty"`

	// Authors are the book's author ids read back after a book step.
	Authors []int64 `json:"authors,omitempty"`

	Deleted *bool `json:"deleted,omitempty"`

	// Error is the error code the step failed with.
	Error string `json:"error,omitempty"`

	// row is the returned row, kept for field expectations.
	row any
	err error
}

// Result is the outcome of a scenario execution.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass indicates overall test success.
	// True if every step matched its expectation.
	Pass bool `json:"pass"`

	// Steps holds one entry per executed step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Steps:    []StepResult{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Package harness runs end-to-end scenarios against the Author and Book
// services.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: author_swap
//	description: "What this scenario validates"
//	user: librarian
//	steps:
//	  - op: create_author
//	    args: { first_name: Susan, last_name: Cooper }
//	    save_as: cooper
//	  - op: create_book
//	    args: { title: The Dark Is Rising, publication_year: 1973, author_ids: [$cooper] }
//	    save_as: dark
//	  - op: remove_members
//	    id: $dark
//	    args: { author_ids: [$cooper] }
//	    expect:
//	      error: RELATION_CARDINALITY
//	      authors: [$cooper]
//	  - op: fetch_many
//	    entity: author
//	    filter: { last_name: co }
//	    expect: { count: 1, ids: [$cooper] }
//
// Unknown keys are rejected, in the scenario document and in step args.
// "$name" strings refer to the id a previous step saved with save_as.
//
// # Operations
//
//   - create_author, create_book: args are the create payload
//   - update_author, update_book: args are the partial update payload
//   - add_members, remove_members: args.author_ids on book id
//   - delete, fetch_one: entity and id
//   - fetch_many: entity and filter ("key: value" pairs of filter arguments)
//   - advance_clock: moves the audit date forward by days
//
// A step with no expect block must succeed. Book steps read back the book's
// authors afterwards, so expect.authors also checks that a failed step left
// the relation untouched.
//
// # Deterministic Testing
//
// Run executes every scenario in a fresh in-memory SQLite database with a
// deterministic clock (testutil.DeterministicClock) and a fixed operation
// id, so results compare byte for byte against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/author_swap.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness

package testutil

// FixedOpIDGenerator generates the same operation id every time.
//
// Log output of a scenario then carries identical op ids on every run.
// Unlike crud.FixedGenerator which returns ids in sequence, this generator
// always returns the same id.
//
// Thread-safety: FixedOpIDGenerator is stateless and safe for concurrent use.
type FixedOpIDGenerator struct {
	id string
}

// NewFixedOpIDGenerator creates a new fixed id generator.
// If id is empty, Generate() returns "op-default".
func NewFixedOpIDGenerator(id string) *FixedOpIDGenerator {
	if id == "" {
		id = "op-default"
	}
	return &FixedOpIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements crud.IDGenerator.
func (g *FixedOpIDGenerator) Generate() string {
	return g.id
}

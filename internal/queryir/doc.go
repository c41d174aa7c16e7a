// Package queryir provides the query intermediate representation (IR) that
// the query builder produces and the SQL compiler consumes.
//
// ARCHITECTURE:
//
//	[selection tree + identity/filter] → [querybuild] → [Query IR] → [querysql] → SQLite
//	                                                                            → PostgreSQL
//
// The IR is a single Select over one root table with an explicit column
// projection, zero or more joins, a predicate tree and a stable ordering.
// Keeping the shape dialect-free lets one builder serve every storage backend;
// dialect differences (placeholders, case-insensitive matching, row locks)
// live in the compiler only.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only types
// in this package implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Contains:
//	case Between:
//	case ColumnEquals:
//	case And:
//	}
//
// VALUES:
//
// Literal values are limited to string, int64 and time.Time. Values are never
// interpolated into SQL; the compiler always emits placeholders.
package queryir

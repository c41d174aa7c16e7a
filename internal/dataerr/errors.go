// Package dataerr defines the error taxonomy shared by the query builder, the
// CRUD engine and the validation layer.
//
// Every failure surfaced to a caller is a *Error carrying a machine-readable
// Code plus a human-readable Message. Wrapped storage errors stay reachable
// through errors.Unwrap.
package dataerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes data-access errors.
type Code string

const (
	// CodeNotFound indicates an identity lookup found no row.
	CodeNotFound Code = "NOT_FOUND"

	// CodeMultipleRows indicates an identity lookup found more than one row.
	CodeMultipleRows Code = "MULTIPLE_ROWS"

	// CodeInvalidQueryArguments indicates identity and filter were both supplied.
	CodeInvalidQueryArguments Code = "INVALID_QUERY_ARGUMENTS"

	// CodeUnsupportedFilterKey indicates a filter key outside the entity's schema.
	CodeUnsupportedFilterKey Code = "UNSUPPORTED_FILTER_KEY"

	// CodeInvalidFilterValue indicates a filter value of the wrong shape for its key.
	CodeInvalidFilterValue Code = "INVALID_FILTER_VALUE"

	// CodeUnknownField indicates a selection names a field the entity lacks.
	CodeUnknownField Code = "UNKNOWN_FIELD"

	// CodeRelatedObjectMissing indicates a required related entity was not supplied.
	CodeRelatedObjectMissing Code = "RELATED_OBJECT_MISSING"

	// CodeRelationCardinality indicates a write would leave a relation below its minimum.
	CodeRelationCardinality Code = "RELATION_CARDINALITY"

	// CodePersistence indicates the storage layer rejected an operation.
	CodePersistence Code = "PERSISTENCE"

	// CodeValidation indicates one or more payload fields failed validation.
	CodeValidation Code = "VALIDATION"
)

// FieldError is a single violated field or rule inside a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Error is the structured error returned by every data-access operation.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Entity names the entity involved, when there is one.
	Entity string

	// ID is the identity involved (NotFound, cardinality errors).
	ID int64

	// Fields lists every violation of a validation failure.
	Fields []FieldError

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause (driver errors for CodePersistence).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.String()
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the Code of err, or "" when err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// IsValidation reports whether err is an aggregated validation failure.
func IsValidation(err error) bool {
	return Is(err, CodeValidation)
}

// NotFound creates an error for an identity lookup that matched no row.
func NotFound(entity string, id int64) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s object with id '%d' could not be found", entity, id),
		Entity:  entity,
		ID:      id,
	}
}

// MultipleRows creates an error for an identity lookup that matched several rows.
func MultipleRows(entity string, id int64, n int) *Error {
	return &Error{
		Code:    CodeMultipleRows,
		Message: fmt.Sprintf("%s lookup by id '%d' returned %d rows", entity, id, n),
		Entity:  entity,
		ID:      id,
		Details: map[string]string{"rows": fmt.Sprintf("%d", n)},
	}
}

// InvalidQueryArguments creates an error for a query given both an identity and a filter.
func InvalidQueryArguments(entity string) *Error {
	return &Error{
		Code:    CodeInvalidQueryArguments,
		Message: "only one of identity or filter can be passed when building a query",
		Entity:  entity,
	}
}

// UnsupportedFilterKey creates an error for a filter key the entity does not define.
func UnsupportedFilterKey(entity, key string) *Error {
	return &Error{
		Code:    CodeUnsupportedFilterKey,
		Message: fmt.Sprintf("filter key %q is not supported for %s", key, entity),
		Entity:  entity,
		Details: map[string]string{"key": key},
	}
}

// InvalidFilterValue creates an error for a filter value whose shape does not fit its key.
func InvalidFilterValue(entity, key, reason string) *Error {
	return &Error{
		Code:    CodeInvalidFilterValue,
		Message: fmt.Sprintf("filter %q: %s", key, reason),
		Entity:  entity,
		Details: map[string]string{"key": key},
	}
}

// UnknownField creates an error for a selection naming a field the entity lacks.
func UnknownField(entity, field string) *Error {
	return &Error{
		Code:    CodeUnknownField,
		Message: fmt.Sprintf("%s has no field %q", entity, field),
		Entity:  entity,
		Details: map[string]string{"field": field},
	}
}

// RelatedObjectMissing creates an error for a write that needs at least one related entity.
func RelatedObjectMissing(entity, related string) *Error {
	return &Error{
		Code:    CodeRelatedObjectMissing,
		Message: fmt.Sprintf("%s requires at least one related %s", entity, related),
		Entity:  entity,
		Details: map[string]string{"related": related},
	}
}

// RelationCardinality creates an error for a write that would leave a relation below min members.
func RelationCardinality(entity string, id int64, relation string, min, remaining int) *Error {
	return &Error{
		Code:    CodeRelationCardinality,
		Message: fmt.Sprintf("%s must keep at least %d %s (would have %d)", entity, min, relation, remaining),
		Entity:  entity,
		ID:      id,
		Details: map[string]string{
			"relation":  relation,
			"min":       fmt.Sprintf("%d", min),
			"remaining": fmt.Sprintf("%d", remaining),
		},
	}
}

// Persistence wraps a storage error.
func Persistence(entity, op string, err error) *Error {
	return &Error{
		Code:    CodePersistence,
		Message: fmt.Sprintf("%s %s failed", op, entity),
		Entity:  entity,
		Err:     err,
	}
}

// Validation creates an aggregated validation failure.
// Fields are sorted by name so the message is stable.
func Validation(entity string, fields []FieldError) *Error {
	sorted := append([]FieldError(nil), fields...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf("invalid %s payload", entity),
		Entity:  entity,
		Fields:  sorted,
	}
}

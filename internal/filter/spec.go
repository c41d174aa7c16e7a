// Package filter provides the Filter Specification: an optional-field bag of
// predicates over an entity and its directly related entities.
//
// Keys come from the entity's static filter schema (model.Entity.Filters).
// Values are a sealed set of shapes; the query builder checks that each value
// fits the predicate kind its key declares.
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/libris/internal/model"
)

// DateLayout is the textual form of dates in filter arguments and storage.
const DateLayout = "2006-01-02"

// RangeSeparator separates the ends of a textual range ("from..to").
const RangeSeparator = ".."

// Value is a filter value. This is a sealed interface.
type Value interface {
	filterValue()
}

// Text is a string value, matched as a case-insensitive substring.
type Text string

func (Text) filterValue() {}

// Int is an integer value, matched exactly.
type Int int64

func (Int) filterValue() {}

// Enum is an enumerated value, matched exactly.
type Enum string

func (Enum) filterValue() {}

// DateRange is an inclusive {from, to} range.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (DateRange) filterValue() {}

// Spec maps filter keys to values. A nil or empty Spec means no filtering.
type Spec map[string]Value

// Keys returns the keys holding a value, sorted for deterministic output.
func (s Spec) Keys() []string {
	keys := make([]string, 0, len(s))
	for k, v := range s {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether the spec filters nothing.
func (s Spec) Empty() bool {
	return len(s.Keys()) == 0
}

// Range builds a DateRange from two dates in DateLayout.
func Range(from, to string) (DateRange, error) {
	f, err := time.Parse(DateLayout, strings.TrimSpace(from))
	if err != nil {
		return DateRange{}, fmt.Errorf("range start: %w", err)
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(to))
	if err != nil {
		return DateRange{}, fmt.Errorf("range end: %w", err)
	}
	return DateRange{From: f, To: t}, nil
}

// ParseValue converts a textual argument into the Value shape the filter key
// expects. fieldKind is the kind of the field the key targets.
func ParseValue(fk model.FilterKey, fieldKind model.Kind, raw string) (Value, error) {
	switch fk.Predicate {
	case model.Contains:
		return Text(raw), nil
	case model.Between:
		from, to, ok := strings.Cut(raw, RangeSeparator)
		if !ok {
			return nil, fmt.Errorf("filter %q: expected range as from%sto", fk.Key, RangeSeparator)
		}
		r, err := Range(from, to)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", fk.Key, err)
		}
		return r, nil
	case model.Exact:
		switch fieldKind {
		case model.KindInt:
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("filter %q: expected integer: %w", fk.Key, err)
			}
			return Int(n), nil
		case model.KindEnum:
			return Enum(strings.TrimSpace(raw)), nil
		default:
			return Text(raw), nil
		}
	}
	return nil, fmt.Errorf("filter %q: unsupported predicate %s", fk.Key, fk.Predicate)
}

// ParseArg parses a "key=value" argument against the entity's filter schema.
func ParseArg(e *model.Entity, reg *model.Registry, arg string) (string, Value, error) {
	key, raw, ok := strings.Cut(arg, "=")
	if !ok {
		return "", nil, fmt.Errorf("filter %q: expected key=value", arg)
	}
	key = strings.TrimSpace(key)
	fk, ok := e.Filter(key)
	if !ok {
		return "", nil, fmt.Errorf("filter key %q is not supported for %s", key, e.Name)
	}

	owner := e
	if fk.Relation != "" {
		rel, ok := e.Relation(fk.Relation)
		if !ok {
			return "", nil, fmt.Errorf("filter %q: unknown relation %q", key, fk.Relation)
		}
		target, err := reg.Target(rel)
		if err != nil {
			return "", nil, err
		}
		owner = target
	}
	field, ok := owner.Field(fk.Field)
	if !ok {
		return "", nil, fmt.Errorf("filter %q: unknown field %s.%s", key, owner.Name, fk.Field)
	}

	v, err := ParseValue(fk, field.Kind, raw)
	if err != nil {
		return "", nil, err
	}
	return key, v, nil
}

// ParseArgs parses repeated "key=value" arguments into a Spec.
// A later argument for the same key replaces an earlier one.
func ParseArgs(e *model.Entity, reg *model.Registry, args []string) (Spec, error) {
	spec := make(Spec, len(args))
	for _, arg := range args {
		k, v, err := ParseArg(e, reg, arg)
		if err != nil {
			return nil, err
		}
		spec[k] = v
	}
	return spec, nil
}

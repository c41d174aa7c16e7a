// Package model provides the relational shapes served by libris and the
// descriptor metadata every other package works from.
//
// An Entity descriptor is an explicit field registry: the fields a caller may
// select, the relations that may be traversed one level deep, and the static
// filter schema mapping each filter key to a predicate kind. Typed rows
// (Author, Book) expose scan destinations by field name through the Row
// interface, so query assembly never relies on reflection.
//
// This package contains types only. It imports nothing internal.
package model

package selection

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
)

// MaxDepth is the deepest tree accepted: scalars plus one relation level.
const MaxDepth = 2

// documentKeywords open GraphQL definitions. A source starting with one is a
// full document, never a bare field list.
var documentKeywords = map[string]bool{
	"query":        true,
	"mutation":     true,
	"subscription": true,
	"fragment":     true,
}

// Parse reads a GraphQL selection set such as
//
//	{ id firstName books { title } }
//
// into a Tree. The outer braces are optional. Names are converted to
// snake_case. Aliases are ignored; arguments, directives and fragments are
// rejected, as is nesting deeper than one relation.
func Parse(src string) (Tree, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return Tree{}, nil
	}
	if !strings.HasPrefix(src, "{") {
		if kw := leadingName(src); documentKeywords[kw] {
			return nil, fmt.Errorf("parse selection: %q definitions are not supported, pass a bare selection set", kw)
		}
		src = "{ " + src + " }"
	}

	doc, err := parser.Parse(parser.ParseParams{Source: src})
	if err != nil {
		return nil, fmt.Errorf("parse selection: %w", err)
	}
	if len(doc.Definitions) != 1 {
		return nil, fmt.Errorf("parse selection: expected one selection set, got %d definitions", len(doc.Definitions))
	}
	op, ok := doc.Definitions[0].(*ast.OperationDefinition)
	if !ok || op.SelectionSet == nil {
		return nil, fmt.Errorf("parse selection: expected a selection set")
	}

	nodes, err := convertSelectionSet(op.SelectionSet)
	if err != nil {
		return nil, err
	}
	tree := merge(nodes)
	if d := tree.Depth(); d > MaxDepth {
		return nil, fmt.Errorf("parse selection: depth %d exceeds one level of relation nesting", d)
	}
	return tree, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level defaults.
func MustParse(src string) Tree {
	t, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

func convertSelectionSet(set *ast.SelectionSet) ([]Node, error) {
	nodes := make([]Node, 0, len(set.Selections))
	for _, sel := range set.Selections {
		field, ok := sel.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("parse selection: fragments are not supported (%T)", sel)
		}
		name := field.Name.Value
		if len(field.Arguments) > 0 {
			return nil, fmt.Errorf("parse selection: field %q: arguments are not supported", name)
		}
		if len(field.Directives) > 0 {
			return nil, fmt.Errorf("parse selection: field %q: directives are not supported", name)
		}
		node := Node{Name: ToSnakeCase(name)}
		if field.SelectionSet != nil && len(field.SelectionSet.Selections) > 0 {
			children, err := convertSelectionSet(field.SelectionSet)
			if err != nil {
				return nil, err
			}
			node.Children = children
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// leadingName returns the GraphQL name at the start of src.
func leadingName(src string) string {
	end := strings.IndexFunc(src, func(r rune) bool {
		return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if end < 0 {
		return src
	}
	return src[:end]
}

// ToSnakeCase converts camelCase or PascalCase names to snake_case.
// Names already in snake_case are returned unchanged.
func ToSnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

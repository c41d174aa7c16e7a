// Package selection holds the Field Selection Tree: the caller-declared
// description of which attributes, and which attributes of directly related
// entities, a read must load.
package selection

import (
	"strings"
)

// Node is one requested name. A node without children is a scalar field; a
// node with children traverses a relation and loads only the children.
type Node struct {
	Name     string
	Children []Node
}

// IsLeaf reports whether n names a scalar field.
func (n Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Tree is an ordered sequence of top-level nodes.
// An empty tree selects every scalar field of the entity and no relations.
type Tree []Node

// Leaf returns a scalar node.
func Leaf(name string) Node {
	return Node{Name: name}
}

// Branch returns a relation node loading the given children.
func Branch(name string, children ...Node) Node {
	return Node{Name: name, Children: children}
}

// Fields builds a tree of leaves.
func Fields(names ...string) Tree {
	t := make(Tree, len(names))
	for i, n := range names {
		t[i] = Leaf(n)
	}
	return t
}

// Leaves returns the names of the top-level scalar nodes in order.
func (t Tree) Leaves() []string {
	var names []string
	for _, n := range t {
		if n.IsLeaf() {
			names = append(names, n.Name)
		}
	}
	return names
}

// Branches returns the top-level relation nodes in order.
func (t Tree) Branches() []Node {
	var out []Node
	for _, n := range t {
		if !n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// Depth returns the number of levels in the tree (0 for an empty tree).
func (t Tree) Depth() int {
	max := 0
	for _, n := range t {
		d := 1 + Tree(n.Children).Depth()
		if d > max {
			max = d
		}
	}
	return max
}

// String renders the tree in selection-set syntax.
func (t Tree) String() string {
	var b strings.Builder
	b.WriteString("{")
	for _, n := range t {
		b.WriteString(" ")
		b.WriteString(n.Name)
		if !n.IsLeaf() {
			b.WriteString(" ")
			b.WriteString(Tree(n.Children).String())
		}
	}
	b.WriteString(" }")
	return b.String()
}

// merge folds duplicate names together, keeping first-occurrence order.
// Relation nodes with the same name union their children.
// Leaves keep nil children.
func merge(nodes []Node) Tree {
	if len(nodes) == 0 {
		return nil
	}
	out := make(Tree, 0, len(nodes))
	index := make(map[string]int, len(nodes))
	for _, n := range nodes {
		i, seen := index[n.Name]
		if !seen {
			index[n.Name] = len(out)
			out = append(out, Node{Name: n.Name, Children: merge(n.Children)})
			continue
		}
		if len(n.Children) > 0 {
			out[i].Children = merge(append(out[i].Children, n.Children...))
		}
	}
	return out
}

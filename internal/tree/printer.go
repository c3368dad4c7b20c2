package tree

import (
	"io"
	"strings"
)

// Branch markers used by the snapshot renderer.
const (
	markerMiddle = "├── "
	markerLast   = "└── "
	prefixMiddle = "│   "
	prefixLast   = "    "
)

// Render returns the indented hierarchical rendering of the tree rooted at
// root: a pre-order, depth-first traversal with children in stored order.
// The root renders bare; every descendant gets a branch marker, with
// continuation prefixes contributed by each ancestor that has a later
// sibling.
//
// Render takes a consistent snapshot only if the tree is not mutated
// concurrently; callers invoke it after construction has fully returned.
// Re-rendering an unchanged tree is byte-identical.
func Render(root *Node) string {
	if root == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(root.Label())
	b.WriteByte('\n')
	renderChildren(&b, root, "")
	return b.String()
}

// Fprint writes the rendering of root to w.
func Fprint(w io.Writer, root *Node) error {
	_, err := io.WriteString(w, Render(root))
	return err
}

func renderChildren(b *strings.Builder, node *Node, prefix string) {
	children := node.Children()
	for i, child := range children {
		marker, continuation := markerMiddle, prefixMiddle
		if i == len(children)-1 {
			marker, continuation = markerLast, prefixLast
		}
		b.WriteString(prefix)
		b.WriteString(marker)
		b.WriteString(child.Label())
		b.WriteByte('\n')
		renderChildren(b, child, prefix+continuation)
	}
}

// Package tree provides the node data structure, the store that owns node
// allocation and structural links, and the snapshot printer for a worker tree.
package tree

import (
	"fmt"
	"sync"
)

// MaxChildren is the branching factor of the tree. Every node holds at most
// this many children.
const MaxChildren = 2

// RootName is the name assigned to the depth-zero node.
const RootName = "root"

// State represents the lifecycle state of a node.
type State int

const (
	// StateBuilding indicates the node is allocated but its worker has not
	// yet reported readiness.
	StateBuilding State = iota

	// StateRunning indicates the node's worker is running and the node id
	// is valid.
	StateRunning

	// StateStopRequested indicates a stop signal has been delivered to the
	// node's worker.
	StateStopRequested

	// StateStopped indicates the node's worker has fully exited.
	StateStopped
)

// String returns a human-readable string for the state.
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop requested"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Node represents one position in the worker tree. The id and state fields
// are written by the worker goroutine concurrently with reads from the
// builder, so all field access goes through the accessors.
type Node struct {
	mu       sync.Mutex
	id       uint64
	name     string
	level    int
	index    int
	state    State
	parent   *Node
	children []*Node
}

// NodeName returns the positional name for a node: RootName at level 0,
// otherwise thread_<level>_<index>.
func NodeName(level, index int) string {
	if level == 0 {
		return RootName
	}
	return fmt.Sprintf("thread_%d_%d", level, index)
}

// ID returns the scheduler-assigned worker id. It is only meaningful while
// the node is in StateRunning or StateStopRequested.
func (n *Node) ID() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.id
}

// SetID records the scheduler-assigned worker id. Called by the worker
// goroutine before it signals readiness.
func (n *Node) SetID(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.id = id
}

// Name returns the positional name of the node.
func (n *Node) Name() string {
	return n.name
}

// Level returns the depth of the node from the root (root is 0).
func (n *Node) Level() int {
	return n.level
}

// Index returns the node's 0-based position among its siblings.
func (n *Node) Index() int {
	return n.index
}

// State returns the current lifecycle state of the node.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SetState transitions the node to the given state.
func (n *Node) SetState(state State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = state
}

// Parent returns the node's parent, or nil for the root.
func (n *Node) Parent() *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.parent
}

// Children returns a copy of the node's children in stored order.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	children := make([]*Node, len(n.children))
	copy(children, n.children)
	return children
}

// IsRoot reports whether the node is the depth-zero node.
func (n *Node) IsRoot() bool {
	return n.level == 0
}

// Label returns the node's rendered form: name(id).
func (n *Node) Label() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fmt.Sprintf("%s(%d)", n.name, n.id)
}

// appendChild links child into n.children. Caller is the store, which
// enforces the branching factor before calling.
func (n *Node) appendChild(child *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = append(n.children, child)
}

// removeChild unlinks child from n.children. No-op if child is not present.
func (n *Node) removeChild(child *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// childCount returns the number of linked children.
func (n *Node) childCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.children)
}

// setParent updates the node's parent back-reference.
func (n *Node) setParent(parent *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parent = parent
}

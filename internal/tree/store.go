package tree

import (
	"fmt"
	"sync"

	"github.com/Iron-Ham/arbor/internal/errors"
)

// Store owns node allocation and the tree's structural links. Creating and
// detaching nodes is safe under concurrent access.
type Store struct {
	mu       sync.Mutex
	capacity int
	count    int
}

// NewStore creates a Store. A capacity of 0 means unbounded; otherwise
// CreateNode fails with an AllocationError once capacity nodes are live.
func NewStore(capacity int) *Store {
	return &Store{capacity: capacity}
}

// CreateNode allocates a node in Building state and, when parent is non-nil,
// atomically appends it to the parent's children. On an AllocationError no
// partially-linked node is left behind: capacity is checked before the node
// is allocated or linked.
//
// A nil parent creates the root; level and index are then ignored in the
// node's name, which is always RootName.
func (s *Store) CreateNode(parent *Node, level, index int) (*Node, error) {
	if parent != nil {
		if level != parent.Level()+1 {
			panic(fmt.Sprintf("tree: child level %d under parent level %d", level, parent.Level()))
		}
		if parent.childCount() >= MaxChildren {
			panic(fmt.Sprintf("tree: node %s already has %d children", parent.Name(), MaxChildren))
		}
	}

	s.mu.Lock()
	if s.capacity > 0 && s.count >= s.capacity {
		s.mu.Unlock()
		return nil, errors.NewAllocationError("cannot create node", errors.ErrStoreExhausted).WithLevel(level)
	}
	s.count++
	s.mu.Unlock()

	node := &Node{
		name:   NodeName(level, index),
		level:  level,
		index:  index,
		state:  StateBuilding,
		parent: parent,
	}

	if parent != nil {
		parent.appendChild(node)
	}

	return node, nil
}

// DetachAndFree removes node from its parent's children sequence (a no-op
// for the root) and releases it. The node must have no children and no live
// worker: its state must be StateStopped, or StateBuilding for a node whose
// worker never started. Violating the precondition is a programming error
// and panics.
func (s *Store) DetachAndFree(node *Node) {
	if node == nil {
		panic("tree: DetachAndFree of nil node")
	}
	if n := node.childCount(); n != 0 {
		panic(fmt.Sprintf("tree: DetachAndFree of node %s with %d live children", node.Name(), n))
	}
	switch state := node.State(); state {
	case StateStopped, StateBuilding:
	default:
		panic(fmt.Sprintf("tree: DetachAndFree of node %s in state %q", node.Name(), state))
	}

	if parent := node.Parent(); parent != nil {
		parent.removeChild(node)
		node.setParent(nil)
	}

	s.mu.Lock()
	s.count--
	s.mu.Unlock()
}

// Len returns the number of live nodes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

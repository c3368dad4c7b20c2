package session

import (
	"fmt"
	"strconv"

	"github.com/Iron-Ham/arbor/internal/tree"
)

// build recursively constructs the binary subtree under parent, depth-first.
// Each child is created, spawned, and logged before its own subtree is
// built, so the construction log is emitted in stable pre-order and a
// parent's entire subtree is Running by the time build returns.
//
// On failure the error propagates up and halts further construction;
// everything already built stays linked and running.
func (s *Session) build(parent *tree.Node, level, maxDepth int) error {
	if level > maxDepth {
		return nil
	}

	for index := 0; index < tree.MaxChildren; index++ {
		node, err := s.store.CreateNode(parent, level, index)
		if err != nil {
			return fmt.Errorf("building %s: %w", tree.NodeName(level, index), err)
		}

		if err := s.workers.Spawn(node); err != nil {
			// The node never ran and has no children; drop it so the
			// failed branch is absent from the tree.
			s.store.DetachAndFree(node)
			return fmt.Errorf("building %s: %w", node.Name(), err)
		}

		s.logCreated(node)

		if err := s.build(node, level+1, maxDepth); err != nil {
			return err
		}
	}

	return nil
}

// logCreated emits one construction event line for a node whose spawn
// handshake has completed.
func (s *Session) logCreated(node *tree.Node) {
	parentID := "none"
	if parent := node.Parent(); parent != nil {
		parentID = strconv.FormatUint(parent.ID(), 10)
	}

	fmt.Fprintf(s.events, "Created thread: PID=%d, Parent PID=%s, Level=%d\n",
		node.ID(), parentID, node.Level())

	s.logger.Debug("node created",
		"node", node.Name(),
		"pid", node.ID(),
		"parent_pid", parentID,
		"level", node.Level())
}

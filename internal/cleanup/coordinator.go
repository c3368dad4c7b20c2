// Package cleanup terminates every worker in a tree and reclaims every node
// without dangling references: children are fully torn down before their
// parent, and a node is never freed before its worker has been joined.
package cleanup

import (
	"github.com/Iron-Ham/arbor/internal/errors"
	"github.com/Iron-Ham/arbor/internal/logging"
	"github.com/Iron-Ham/arbor/internal/tree"
)

// WorkerStopper is the slice of the worker manager the coordinator needs.
type WorkerStopper interface {
	// RequestStop delivers the stop signal to the worker bound to node.
	RequestStop(node *tree.Node)

	// Join blocks until the worker bound to node has exited, bounded by the
	// manager's join timeout.
	Join(node *tree.Node) error
}

// NodeFreer is the slice of the node store the coordinator needs.
type NodeFreer interface {
	// DetachAndFree unlinks node from its parent and releases it.
	DetachAndFree(node *tree.Node)
}

// Coordinator tears down a worker tree in post-order: all of a node's
// children are stopped, joined, and freed before the node itself.
type Coordinator struct {
	workers WorkerStopper
	store   NodeFreer
	logger  *logging.Logger
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(workers WorkerStopper, store NodeFreer, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		workers: workers,
		store:   store,
		logger:  logger,
	}
}

// Teardown stops and reclaims the tree rooted at root. A nil root is a
// no-op.
//
// Teardown is best-effort: a join timeout is recorded and the affected node
// and its ancestors are left allocated, but teardown of the rest of the tree
// continues. All recorded errors are returned joined together.
func (c *Coordinator) Teardown(root *tree.Node) error {
	if root == nil {
		return nil
	}

	var errs []error
	c.teardown(root, &errs)
	return errors.Join(errs...)
}

// teardown reclaims one subtree and reports whether its root node was freed.
// A node is freed only once all of its children have been freed and its own
// worker has been joined; anything less would leave a child holding a parent
// back-reference to released memory.
func (c *Coordinator) teardown(node *tree.Node, errs *[]error) bool {
	childrenFreed := true
	for _, child := range node.Children() {
		if !c.teardown(child, errs) {
			childrenFreed = false
		}
	}

	// A node whose spawn never succeeded has no worker to stop or join.
	if node.State() == tree.StateBuilding {
		if !childrenFreed {
			return false
		}
		c.store.DetachAndFree(node)
		return true
	}

	c.workers.RequestStop(node)
	if err := c.workers.Join(node); err != nil {
		if c.logger != nil {
			c.logger.Warn("worker did not exit in time",
				"node", node.Name(),
				"error", err.Error())
		}
		*errs = append(*errs, err)
		return false
	}

	if !childrenFreed {
		return false
	}

	c.store.DetachAndFree(node)
	if c.logger != nil {
		c.logger.Debug("node reclaimed", "node", node.Name())
	}
	return true
}

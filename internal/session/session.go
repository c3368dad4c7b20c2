// Package session owns the lifecycle of one worker tree run: Start builds
// and prints the tree, Stop tears it down. A Session replaces any notion of
// process-wide tree state; the host creates one per run and discards it
// after Stop.
package session

import (
	"io"
	"sync"

	"github.com/Iron-Ham/arbor/internal/cleanup"
	"github.com/Iron-Ham/arbor/internal/config"
	"github.com/Iron-Ham/arbor/internal/errors"
	"github.com/Iron-Ham/arbor/internal/logging"
	"github.com/Iron-Ham/arbor/internal/tree"
	"github.com/Iron-Ham/arbor/internal/worker"
)

// Session owns the root node, the node store, and the worker manager for a
// single run. It is safe for concurrent use, though Start and Stop are each
// expected to be called once.
type Session struct {
	logger      *logging.Logger
	events      io.Writer
	store       *tree.Store
	workers     *worker.Manager
	coordinator *cleanup.Coordinator

	mu      sync.Mutex
	root    *tree.Node
	started bool
	stopped bool
}

// Snapshot is a point-in-time view of the session's tree for host
// introspection.
type Snapshot struct {
	// Nodes is the number of live nodes in the store.
	Nodes int
	// Rendered is the indented hierarchy rendering of the tree.
	Rendered string
}

// New creates a Session from the given configuration. The events writer
// receives the plain-text construction log and the tree rendering; nil
// discards them. A nil logger disables structured logging.
func New(cfg *config.Config, logger *logging.Logger, events io.Writer) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if events == nil {
		events = io.Discard
	}

	store := tree.NewStore(cfg.Tree.MaxNodes)
	workers := worker.NewManager(logger.WithComponent("worker"))
	workers.SetMaxWorkers(cfg.Worker.MaxWorkers)
	workers.SetJoinTimeout(cfg.Worker.JoinTimeout())
	workers.SetIdleInterval(cfg.Worker.IdleInterval())

	return &Session{
		logger:      logger,
		events:      events,
		store:       store,
		workers:     workers,
		coordinator: cleanup.NewCoordinator(workers, store, logger.WithComponent("cleanup")),
	}
}

// Start builds the full binary tree of the given depth and renders it to the
// events writer. It returns once every node in the tree is Running.
//
// A construction failure (AllocationError, SpawnError) is a partial success:
// the error is returned, but everything built up to the failure stays alive
// in the session — the partial tree is rendered, and Stop tears it down
// normally.
func (s *Session) Start(maxDepth int) error {
	if maxDepth < 0 {
		return errors.New("max depth must be non-negative")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.ErrSessionStarted
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("starting session", "max_depth", maxDepth)

	root, err := s.store.CreateNode(nil, 0, 0)
	if err != nil {
		return err
	}
	if err := s.workers.Spawn(root); err != nil {
		// Root never ran; nothing to print or tear down.
		s.store.DetachAndFree(root)
		return err
	}

	s.mu.Lock()
	s.root = root
	s.mu.Unlock()

	s.logCreated(root)
	buildErr := s.build(root, 1, maxDepth)

	// Render whatever was built. On the success path this is the stable
	// snapshot the construction log promised; on failure it is the partial
	// tree the caller keeps.
	if err := tree.Fprint(s.events, root); err != nil {
		s.logger.Warn("failed to render tree", "error", err.Error())
	}

	if buildErr != nil {
		s.logger.Error("tree construction incomplete",
			"max_depth", maxDepth,
			"nodes", s.store.Len(),
			"error", buildErr.Error())
		return buildErr
	}

	s.logger.Info("tree constructed", "nodes", s.store.Len())
	return nil
}

// Stop terminates every worker and reclaims every node, bottom-up. It
// returns once all workers have exited; join timeouts are surfaced but do
// not abort teardown of the rest of the tree. Stop on a never-started or
// already-stopped session is a no-op returning nil.
func (s *Session) Stop() error {
	s.mu.Lock()
	root := s.root
	if root == nil || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info("stopping session", "nodes", s.store.Len())

	err := s.coordinator.Teardown(root)
	if err != nil {
		s.logger.Warn("teardown incomplete", "error", err.Error())
		return err
	}

	s.mu.Lock()
	s.root = nil
	s.mu.Unlock()

	// All workers were joined; Wait only surfaces a panicked worker.
	if err := s.workers.Wait(); err != nil {
		return err
	}

	s.logger.Info("session stopped")
	return nil
}

// Root returns the session's root node, or nil before Start and after a
// fully successful Stop.
func (s *Session) Root() *tree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Snapshot returns the current node count and tree rendering.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Nodes:    s.store.Len(),
		Rendered: tree.Render(s.Root()),
	}
}

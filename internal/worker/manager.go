// Package worker starts and stops the concurrent unit of execution bound to
// a tree node. A worker is a long-lived goroutine that claims a scheduler
// id, hands readiness back to the spawner, then idles until a stop signal
// arrives.
package worker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/arbor/internal/errors"
	"github.com/Iron-Ham/arbor/internal/logging"
	"github.com/Iron-Ham/arbor/internal/tree"
	"github.com/sourcegraph/conc"
)

// Common errors returned by Manager operations.
var (
	// ErrNilNode is returned when an operation is called with a nil node.
	ErrNilNode = errors.New("invalid node: nil")
)

const (
	// DefaultJoinTimeout bounds how long Join waits for a worker to exit.
	DefaultJoinTimeout = 5 * time.Second

	// DefaultIdleInterval is the heartbeat period of the worker idle loop.
	DefaultIdleInterval = 100 * time.Millisecond
)

// handle tracks a single spawned worker: its stop signal and its join
// channel, closed when the goroutine exits.
type handle struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Manager spawns workers bound to tree nodes and tracks their running state.
// It is safe for concurrent use.
type Manager struct {
	logger *logging.Logger
	mu     sync.Mutex

	// handles maps each spawned node to its worker handle. Entries survive
	// worker exit so that Join stays idempotent.
	handles map[*tree.Node]*handle

	// running counts workers that have not yet exited, enforced against
	// maxWorkers at spawn time.
	running int

	wg     *conc.WaitGroup
	nextID atomic.Uint64

	// maxWorkers caps concurrently running workers; 0 means unlimited.
	maxWorkers int

	joinTimeout  time.Duration
	idleInterval time.Duration
}

// NewManager creates a new worker manager.
func NewManager(logger *logging.Logger) *Manager {
	return &Manager{
		logger:       logger,
		handles:      make(map[*tree.Node]*handle),
		wg:           conc.NewWaitGroup(),
		joinTimeout:  DefaultJoinTimeout,
		idleInterval: DefaultIdleInterval,
	}
}

// SetMaxWorkers caps the number of concurrently running workers.
// Zero removes the cap.
func (m *Manager) SetMaxWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxWorkers = n
}

// SetJoinTimeout sets the bounded wait used by Join.
func (m *Manager) SetJoinTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d <= 0 {
		m.joinTimeout = DefaultJoinTimeout
		return
	}
	m.joinTimeout = d
}

// SetIdleInterval sets the heartbeat period of the worker idle loop.
func (m *Manager) SetIdleInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d <= 0 {
		m.idleInterval = DefaultIdleInterval
		return
	}
	m.idleInterval = d
}

// Running returns the number of workers that have not yet exited.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Spawn starts a new worker bound to node. It blocks until the worker has
// claimed its scheduler-assigned id and written it into the node, then marks
// the node Running and returns. This synchronous hand-back keeps
// construction order deterministic: a parent observes its child's id the
// moment Spawn returns.
//
// Spawn fails with a SpawnError when the worker cap is reached or the node
// was already spawned; the node then stays in Building state and is not
// registered.
func (m *Manager) Spawn(node *tree.Node) error {
	if node == nil {
		return ErrNilNode
	}

	m.mu.Lock()
	if _, ok := m.handles[node]; ok {
		m.mu.Unlock()
		return errors.NewSpawnError("worker already spawned", errors.ErrAlreadySpawned).WithNode(node.Name())
	}
	if m.maxWorkers > 0 && m.running >= m.maxWorkers {
		m.mu.Unlock()
		return errors.NewSpawnError("scheduler refused worker", errors.ErrWorkerLimit).WithNode(node.Name())
	}
	h := &handle{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	m.handles[node] = h
	m.running++
	interval := m.idleInterval
	m.mu.Unlock()

	ready := make(chan uint64, 1)
	m.wg.Go(func() {
		m.run(node, h, ready, interval)
	})

	// Readiness handshake: block until the worker has published its id.
	id := <-ready
	node.SetState(tree.StateRunning)

	if m.logger != nil {
		m.logger.Debug("worker running",
			"node", node.Name(),
			"pid", id,
			"level", node.Level())
	}

	return nil
}

// run is the worker body. It claims an id, signals readiness, then idles
// interruptibly: the heartbeat tick is a spurious wake that re-checks and
// keeps idling until the stop signal arrives.
func (m *Manager) run(node *tree.Node, h *handle, ready chan<- uint64, interval time.Duration) {
	defer close(h.doneCh)
	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
	}()

	id := m.nextID.Add(1)
	node.SetID(id)
	ready <- id

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			node.SetState(tree.StateStopped)
			if m.logger != nil {
				m.logger.Debug("worker exiting",
					"node", node.Name(),
					"pid", id)
			}
			return
		case <-ticker.C:
			// Spurious wake: no stop signal yet, keep idling.
		}
	}
}

// RequestStop marks node as StopRequested and delivers the stop signal to
// its worker. Non-blocking and idempotent; a no-op for a node that was
// never spawned.
func (m *Manager) RequestStop(node *tree.Node) {
	if node == nil {
		return
	}

	m.mu.Lock()
	h := m.handles[node]
	m.mu.Unlock()
	if h == nil {
		return
	}

	if node.State() == tree.StateRunning {
		node.SetState(tree.StateStopRequested)
	}
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}

// Join blocks until the worker bound to node has fully exited, up to the
// configured join timeout. It returns a TimeoutError on expiry and nil
// immediately when called after the worker already exited.
func (m *Manager) Join(node *tree.Node) error {
	if node == nil {
		return ErrNilNode
	}

	m.mu.Lock()
	h := m.handles[node]
	timeout := m.joinTimeout
	m.mu.Unlock()
	if h == nil {
		return fmt.Errorf("joining %s: %w", node.Name(), errors.ErrWorkerNotFound)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.doneCh:
		return nil
	case <-timer.C:
		return errors.NewTimeoutError(fmt.Sprintf("joining worker %s", node.Name()), timeout)
	}
}

// Wait blocks until every spawned worker goroutine has exited. If a worker
// panicked, the recovered panic is logged and returned as an error.
// Callers only invoke Wait after a teardown pass has stopped all workers.
func (m *Manager) Wait() error {
	recovered := m.wg.WaitAndRecover()
	if recovered == nil {
		return nil
	}
	if m.logger != nil {
		m.logger.Error("worker panicked", "panic", recovered.String())
	}
	return recovered.AsError()
}

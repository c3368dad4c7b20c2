package worker

import (
	"testing"
	"time"

	"github.com/Iron-Ham/arbor/internal/errors"
	"github.com/Iron-Ham/arbor/internal/tree"
)

func newTestNode(t *testing.T) (*tree.Store, *tree.Node) {
	t.Helper()
	store := tree.NewStore(0)
	node, err := store.CreateNode(nil, 0, 0)
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	return store, node
}

// stopAndJoin tears down a spawned worker so tests don't leak goroutines.
func stopAndJoin(t *testing.T, mgr *Manager, node *tree.Node) {
	t.Helper()
	mgr.RequestStop(node)
	if err := mgr.Join(node); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
}

func TestNewManager(t *testing.T) {
	mgr := NewManager(nil)
	if mgr == nil {
		t.Fatal("NewManager returned nil")
	}
	if mgr.handles == nil {
		t.Error("handles map should be initialized")
	}
	if mgr.joinTimeout != DefaultJoinTimeout {
		t.Errorf("joinTimeout = %v, want %v", mgr.joinTimeout, DefaultJoinTimeout)
	}
	if mgr.idleInterval != DefaultIdleInterval {
		t.Errorf("idleInterval = %v, want %v", mgr.idleInterval, DefaultIdleInterval)
	}
}

func TestManager_Spawn_Handshake(t *testing.T) {
	mgr := NewManager(nil)
	_, node := newTestNode(t)

	if err := mgr.Spawn(node); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	// The handshake guarantees id and state are settled before Spawn returns.
	if node.ID() == 0 {
		t.Error("node id should be assigned when Spawn returns")
	}
	if node.State() != tree.StateRunning {
		t.Errorf("State() = %v, want %v", node.State(), tree.StateRunning)
	}
	if mgr.Running() != 1 {
		t.Errorf("Running() = %d, want 1", mgr.Running())
	}

	stopAndJoin(t, mgr, node)
}

func TestManager_Spawn_SequentialIDs(t *testing.T) {
	mgr := NewManager(nil)
	store := tree.NewStore(0)
	root, _ := store.CreateNode(nil, 0, 0)
	if err := mgr.Spawn(root); err != nil {
		t.Fatalf("Spawn(root) error = %v", err)
	}
	child, _ := store.CreateNode(root, 1, 0)
	if err := mgr.Spawn(child); err != nil {
		t.Fatalf("Spawn(child) error = %v", err)
	}

	if root.ID() != 1 || child.ID() != 2 {
		t.Errorf("ids = %d, %d; want 1, 2", root.ID(), child.ID())
	}

	stopAndJoin(t, mgr, child)
	stopAndJoin(t, mgr, root)
}

func TestManager_Spawn_NilNode(t *testing.T) {
	mgr := NewManager(nil)
	if err := mgr.Spawn(nil); !errors.Is(err, ErrNilNode) {
		t.Errorf("Spawn(nil) error = %v, want ErrNilNode", err)
	}
}

func TestManager_Spawn_AlreadySpawned(t *testing.T) {
	mgr := NewManager(nil)
	_, node := newTestNode(t)
	if err := mgr.Spawn(node); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	err := mgr.Spawn(node)
	if !errors.Is(err, errors.ErrAlreadySpawned) {
		t.Errorf("second Spawn() error = %v, want ErrAlreadySpawned", err)
	}

	stopAndJoin(t, mgr, node)
}

func TestManager_Spawn_WorkerLimit(t *testing.T) {
	mgr := NewManager(nil)
	mgr.SetMaxWorkers(1)

	store := tree.NewStore(0)
	root, _ := store.CreateNode(nil, 0, 0)
	if err := mgr.Spawn(root); err != nil {
		t.Fatalf("Spawn(root) error = %v", err)
	}

	child, _ := store.CreateNode(root, 1, 0)
	err := mgr.Spawn(child)
	if err == nil {
		t.Fatal("Spawn() should fail at the worker limit")
	}

	var spawnErr *errors.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Errorf("error should be *SpawnError, got %T", err)
	}
	if !errors.Is(err, errors.ErrWorkerLimit) {
		t.Error("error should wrap ErrWorkerLimit")
	}

	// The refused node stays in Building state with no worker registered.
	if child.State() != tree.StateBuilding {
		t.Errorf("refused node state = %v, want %v", child.State(), tree.StateBuilding)
	}
	if child.ID() != 0 {
		t.Errorf("refused node id = %d, want 0", child.ID())
	}

	stopAndJoin(t, mgr, root)
}

func TestManager_IdleLoopSurvivesTicks(t *testing.T) {
	mgr := NewManager(nil)
	mgr.SetIdleInterval(5 * time.Millisecond)
	_, node := newTestNode(t)
	if err := mgr.Spawn(node); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	// Several heartbeat ticks pass without a stop signal; the worker must
	// keep idling in Running state.
	time.Sleep(50 * time.Millisecond)
	if node.State() != tree.StateRunning {
		t.Errorf("State() = %v, want %v", node.State(), tree.StateRunning)
	}

	stopAndJoin(t, mgr, node)
}

func TestManager_RequestStopAndJoin(t *testing.T) {
	mgr := NewManager(nil)
	_, node := newTestNode(t)
	if err := mgr.Spawn(node); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	mgr.RequestStop(node)
	if err := mgr.Join(node); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if node.State() != tree.StateStopped {
		t.Errorf("State() = %v, want %v", node.State(), tree.StateStopped)
	}
	if mgr.Running() != 0 {
		t.Errorf("Running() = %d, want 0", mgr.Running())
	}
}

func TestManager_Join_IdempotentAfterExit(t *testing.T) {
	mgr := NewManager(nil)
	_, node := newTestNode(t)
	if err := mgr.Spawn(node); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	stopAndJoin(t, mgr, node)

	// A second Join after exit returns immediately with no error.
	if err := mgr.Join(node); err != nil {
		t.Errorf("repeated Join() error = %v", err)
	}
}

func TestManager_RequestStop_Idempotent(t *testing.T) {
	mgr := NewManager(nil)
	_, node := newTestNode(t)
	if err := mgr.Spawn(node); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	mgr.RequestStop(node)
	mgr.RequestStop(node)

	if err := mgr.Join(node); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
}

func TestManager_RequestStop_NeverSpawned(t *testing.T) {
	mgr := NewManager(nil)
	_, node := newTestNode(t)

	// Must not panic or mutate the node.
	mgr.RequestStop(node)
	if node.State() != tree.StateBuilding {
		t.Errorf("State() = %v, want %v", node.State(), tree.StateBuilding)
	}
}

func TestManager_Join_Timeout(t *testing.T) {
	mgr := NewManager(nil)
	mgr.SetJoinTimeout(20 * time.Millisecond)
	_, node := newTestNode(t)
	if err := mgr.Spawn(node); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	// Join without a stop request: the worker keeps idling and the bounded
	// wait expires.
	err := mgr.Join(node)
	var timeoutErr *errors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Join() error = %v, want *TimeoutError", err)
	}
	if timeoutErr.Duration != 20*time.Millisecond {
		t.Errorf("timeout duration = %v, want 20ms", timeoutErr.Duration)
	}

	stopAndJoin(t, mgr, node)
}

func TestManager_Join_NeverSpawned(t *testing.T) {
	mgr := NewManager(nil)
	_, node := newTestNode(t)

	if err := mgr.Join(node); !errors.Is(err, errors.ErrWorkerNotFound) {
		t.Errorf("Join() error = %v, want ErrWorkerNotFound", err)
	}
}

func TestManager_Wait(t *testing.T) {
	mgr := NewManager(nil)
	store := tree.NewStore(0)
	root, _ := store.CreateNode(nil, 0, 0)
	if err := mgr.Spawn(root); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	stopAndJoin(t, mgr, root)

	if err := mgr.Wait(); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

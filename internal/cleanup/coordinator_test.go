package cleanup

import (
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/arbor/internal/errors"
	"github.com/Iron-Ham/arbor/internal/tree"
	"github.com/Iron-Ham/arbor/internal/worker"
)

// recorder collects the teardown call sequence across the fakes so ordering
// guarantees can be asserted.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) index(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Index(r.events, event)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// fakeWorkers implements WorkerStopper, recording calls and simulating
// worker exit on Join.
type fakeWorkers struct {
	rec      *recorder
	failJoin map[string]error
}

func (f *fakeWorkers) RequestStop(node *tree.Node) {
	f.rec.add("stop " + node.Name())
	node.SetState(tree.StateStopRequested)
}

func (f *fakeWorkers) Join(node *tree.Node) error {
	f.rec.add("join " + node.Name())
	if err := f.failJoin[node.Name()]; err != nil {
		return err
	}
	node.SetState(tree.StateStopped)
	return nil
}

// fakeStore implements NodeFreer, recording frees.
type fakeStore struct {
	rec *recorder
}

func (f *fakeStore) DetachAndFree(node *tree.Node) {
	f.rec.add("free " + node.Name())
}

// buildRunningTree creates a full tree of the given depth with every node in
// Running state. Names repeat across subtrees at depth ≥ 2, so ordering
// tests use depth 1 and deeper trees assert on event counts.
func buildRunningTree(t *testing.T, maxDepth int) *tree.Node {
	t.Helper()
	store := tree.NewStore(0)
	root, err := store.CreateNode(nil, 0, 0)
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	root.SetState(tree.StateRunning)

	var build func(parent *tree.Node, level int)
	build = func(parent *tree.Node, level int) {
		if level > maxDepth {
			return
		}
		for index := 0; index < tree.MaxChildren; index++ {
			node, err := store.CreateNode(parent, level, index)
			if err != nil {
				t.Fatalf("CreateNode() error = %v", err)
			}
			node.SetState(tree.StateRunning)
			build(node, level+1)
		}
	}
	build(root, 1)
	return root
}

func TestCoordinator_Teardown_NilRoot(t *testing.T) {
	coord := NewCoordinator(&fakeWorkers{rec: &recorder{}}, &fakeStore{rec: &recorder{}}, nil)
	if err := coord.Teardown(nil); err != nil {
		t.Errorf("Teardown(nil) error = %v", err)
	}
}

func TestCoordinator_Teardown_JoinBeforeFree(t *testing.T) {
	rec := &recorder{}
	root := buildRunningTree(t, 1)
	coord := NewCoordinator(&fakeWorkers{rec: rec}, &fakeStore{rec: rec}, nil)

	if err := coord.Teardown(root); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}

	for _, name := range []string{"thread_1_0", "thread_1_1", "root"} {
		join := rec.index("join " + name)
		free := rec.index("free " + name)
		if join == -1 || free == -1 {
			t.Fatalf("missing events for %s in %v", name, rec.all())
		}
		if join > free {
			t.Errorf("%s freed before its worker was joined: %v", name, rec.all())
		}
	}
}

func TestCoordinator_Teardown_ChildrenFreedBeforeParent(t *testing.T) {
	rec := &recorder{}
	root := buildRunningTree(t, 1)
	coord := NewCoordinator(&fakeWorkers{rec: rec}, &fakeStore{rec: rec}, nil)

	if err := coord.Teardown(root); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}

	freeRoot := rec.index("free root")
	for _, name := range []string{"thread_1_0", "thread_1_1"} {
		if rec.index("free "+name) > freeRoot {
			t.Errorf("%s freed after root: %v", name, rec.all())
		}
	}
	// Root must not even be stop-requested before both children are freed:
	// teardown is strictly post-order.
	if rec.index("stop root") < rec.index("free thread_1_1") {
		t.Errorf("root stopped before last child freed: %v", rec.all())
	}
}

func TestCoordinator_Teardown_EventCounts(t *testing.T) {
	rec := &recorder{}
	root := buildRunningTree(t, 2)
	coord := NewCoordinator(&fakeWorkers{rec: rec}, &fakeStore{rec: rec}, nil)

	if err := coord.Teardown(root); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}

	events := rec.all()
	if got, want := len(events), 3*7; got != want {
		t.Fatalf("recorded %d events, want %d: %v", got, want, events)
	}
	counts := map[string]int{}
	for _, e := range events {
		counts[strings.Fields(e)[0]]++
	}
	for _, kind := range []string{"stop", "join", "free"} {
		if counts[kind] != 7 {
			t.Errorf("%s count = %d, want 7", kind, counts[kind])
		}
	}
}

func TestCoordinator_Teardown_BuildingNodeFreedDirectly(t *testing.T) {
	rec := &recorder{}
	store := tree.NewStore(0)
	root, _ := store.CreateNode(nil, 0, 0)
	root.SetState(tree.StateRunning)
	// Child whose spawn never succeeded.
	_, _ = store.CreateNode(root, 1, 0)

	coord := NewCoordinator(&fakeWorkers{rec: rec}, &fakeStore{rec: rec}, nil)
	if err := coord.Teardown(root); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}

	if rec.index("stop thread_1_0") != -1 || rec.index("join thread_1_0") != -1 {
		t.Errorf("building node should skip stop/join: %v", rec.all())
	}
	if rec.index("free thread_1_0") == -1 {
		t.Errorf("building node should still be freed: %v", rec.all())
	}
}

func TestCoordinator_Teardown_JoinTimeoutLeavesAncestorsAllocated(t *testing.T) {
	rec := &recorder{}
	root := buildRunningTree(t, 1)
	timeout := errors.NewTimeoutError("joining worker thread_1_0", time.Second)
	workers := &fakeWorkers{
		rec:      rec,
		failJoin: map[string]error{"thread_1_0": timeout},
	}
	coord := NewCoordinator(workers, &fakeStore{rec: rec}, nil)

	err := coord.Teardown(root)
	var timeoutErr *errors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Teardown() error = %v, want to contain *TimeoutError", err)
	}

	if rec.index("free thread_1_0") != -1 {
		t.Errorf("timed-out node must not be freed: %v", rec.all())
	}
	if rec.index("free root") != -1 {
		t.Errorf("ancestor of a timed-out node must not be freed: %v", rec.all())
	}
	// The sibling subtree is torn down best-effort.
	if rec.index("free thread_1_1") == -1 {
		t.Errorf("sibling should still be freed: %v", rec.all())
	}
	// Root's own worker is still stopped and joined.
	if rec.index("join root") == -1 {
		t.Errorf("root worker should still be joined: %v", rec.all())
	}
}

func TestCoordinator_Teardown_RealManagerAndStore(t *testing.T) {
	// End-to-end against the real worker manager and store rather than
	// fakes: every node reclaimed, every worker exited.
	store := tree.NewStore(0)
	mgr := worker.NewManager(nil)

	root, err := store.CreateNode(nil, 0, 0)
	if err != nil {
		t.Fatalf("CreateNode() error = %v", err)
	}
	if err := mgr.Spawn(root); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	for index := 0; index < tree.MaxChildren; index++ {
		node, err := store.CreateNode(root, 1, index)
		if err != nil {
			t.Fatalf("CreateNode() error = %v", err)
		}
		if err := mgr.Spawn(node); err != nil {
			t.Fatalf("Spawn() error = %v", err)
		}
	}

	coord := NewCoordinator(mgr, store, nil)
	if err := coord.Teardown(root); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
	if mgr.Running() != 0 {
		t.Errorf("Running() = %d, want 0", mgr.Running())
	}
	if got := len(root.Children()); got != 0 {
		t.Errorf("root still has %d children", got)
	}
}

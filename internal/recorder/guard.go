package recorder

import "sync"

// maxTrackedLoads bounds how many page loads the guard remembers at once.
// The oldest load is evicted first; a view arriving for an evicted load is
// treated as that load's first view again.
const maxTrackedLoads = 64

// Guard is the per-load view dedup filter: it remembers, in process memory
// only, which paths have already produced a recorded view during each page
// load. Re-navigating to a seen path within the same load is a no-op; a
// new load starts with a clean slate for every path. Loads are tracked
// independently, so interleaved requests from concurrent loads never clear
// each other's state. This deliberately under-counts repeat in-load views;
// downstream totals are defined relative to that semantics.
type Guard struct {
	mu    sync.Mutex
	loads map[string]map[string]struct{}
	order []string
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{loads: make(map[string]map[string]struct{})}
}

// MarkSeen records the path for the given load if it has not been seen
// there yet. It returns true when the caller should record the view.
func (g *Guard) MarkSeen(loadID, path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen, ok := g.loads[loadID]
	if !ok {
		seen = make(map[string]struct{})
		g.loads[loadID] = seen
		g.order = append(g.order, loadID)
		for len(g.order) > maxTrackedLoads {
			delete(g.loads, g.order[0])
			g.order = g.order[1:]
		}
	}

	if _, dup := seen[path]; dup {
		return false
	}
	seen[path] = struct{}{}
	return true
}

// Seen reports whether the path already produced a view during the given
// load.
func (g *Guard) Seen(loadID, path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.loads[loadID][path]
	return ok
}

// Reset drops all tracked loads. The guard is never persisted.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads = make(map[string]map[string]struct{})
	g.order = nil
}

package pluggable

import (
	"slices"
	"sync"
)

// DependencyGraph maintains forward and reverse adjacency sets between
// module ids. Edges are added as modules register and pruned on removal.
// The graph is not required to be acyclic at rest; a cycle is only rejected
// the moment load is attempted on a node inside it.
//
// Invariant: reverse[d] contains m iff forward[m] contains d.
type DependencyGraph struct {
	mu      sync.RWMutex
	forward map[string]map[string]struct{}
	reverse map[string]map[string]struct{}
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		forward: make(map[string]map[string]struct{}),
		reverse: make(map[string]map[string]struct{}),
	}
}

// AddModule records a node and its declared dependency edges. Edges may
// point at ids that are not registered yet; registration order is free.
func (g *DependencyGraph) AddModule(id string, dependencies []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.forward[id] == nil {
		g.forward[id] = make(map[string]struct{})
	}
	for _, dep := range dependencies {
		g.forward[id][dep] = struct{}{}
		if g.reverse[dep] == nil {
			g.reverse[dep] = make(map[string]struct{})
		}
		g.reverse[dep][id] = struct{}{}
	}
}

// RemoveModule deletes the node and prunes it out of every other node's
// edge sets, in both directions.
func (g *DependencyGraph) RemoveModule(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for dep := range g.forward[id] {
		delete(g.reverse[dep], id)
	}
	for dependent := range g.reverse[id] {
		delete(g.forward[dependent], id)
	}
	delete(g.forward, id)
	delete(g.reverse, id)
}

// Dependencies returns the sorted forward adjacency of id.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.forward[id])
}

// Dependents returns the sorted reverse adjacency of id.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.reverse[id])
}

// DetectCycle runs a depth-first search rooted at id, tracking the active
// path. If a node reappears in its own active path, the full cycle is
// returned as a CircularDependencyError; otherwise nil.
func (g *DependencyGraph) DetectCycle(id string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	var path []string

	var visit func(node string) error
	visit = func(node string) error {
		if onPath[node] {
			// Slice the active path down to the cycle members and close it.
			start := slices.Index(path, node)
			cycle := append(slices.Clone(path[start:]), node)
			return &CircularDependencyError{Cycle: cycle}
		}
		if visited[node] {
			return nil
		}
		onPath[node] = true
		path = append(path, node)

		for _, dep := range sortedKeys(g.forward[node]) {
			if err := visit(dep); err != nil {
				return err
			}
		}

		onPath[node] = false
		path = path[:len(path)-1]
		visited[node] = true
		return nil
	}

	return visit(id)
}

// ActivationOrder computes a topological ordering of everything reachable
// from id via a post-order depth-first traversal: every dependency appears
// before its dependents, id comes last, and no node appears twice.
//
// Callers are expected to have run DetectCycle first; on a cyclic graph the
// visited set still guarantees termination, but the order is meaningless.
func (g *DependencyGraph) ActivationOrder(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var order []string
	visited := make(map[string]bool)

	var visit func(node string)
	visit = func(node string) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, dep := range sortedKeys(g.forward[node]) {
			visit(dep)
		}
		order = append(order, node)
	}

	visit(id)
	return order
}

// sortedKeys keeps traversal order deterministic across runs.
func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

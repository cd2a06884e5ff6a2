package dag

import (
	"fmt"
	"sort"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/scheduler"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID and tie-break priority. If a
// node with the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string, priority int) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		priority:   priority,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist. A self-referential edge is recorded as-is so
// that DetectCycles can report it.
func (g *Graph) AddEdge(fromID, toID string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Dependencies returns the IDs the given node depends on, in priority order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.deps)), nil
}

// Dependents returns the IDs of nodes that depend on the given node, in
// priority order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.dependents)), nil
}

// DetectCycles checks the graph for cycles. The returned error is a
// *builderr.CyclicDependencyError carrying the shortest cycle through the
// first offending node found, listed in dependency direction.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.detectCycles()
}

func (g *Graph) detectCycles() error {
	// Classic depth-first search over dependency edges:
	// permanent: fully visited, not part of a cycle.
	// temporary: on the current recursion stack.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) *node
	visit = func(n *node) *node {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return n
		}
		temporary[n.id] = true
		for _, dep := range sorted(n.deps) {
			if hit := visit(dep); hit != nil {
				return hit
			}
		}
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, n := range g.sortedNodes() {
		if hit := visit(n); hit != nil {
			return &builderr.CyclicDependencyError{Cycle: shortestCycle(hit)}
		}
	}
	return nil
}

// shortestCycle finds the shortest path from start back to itself following
// dependency edges, using breadth-first search. The result starts and ends
// with start.
func shortestCycle(start *node) []string {
	prev := map[string]*node{}
	queue := []*node{start}
	visited := map[string]bool{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range sorted(cur.deps) {
			if dep == start {
				path := []string{start.id}
				for n := cur; n != start; n = prev[n.id] {
					path = append(path, n.id)
				}
				// path is start, then the chain walked backwards; reverse the tail.
				tail := path[1:]
				for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
					tail[i], tail[j] = tail[j], tail[i]
				}
				return append(path, start.id)
			}
			if visited[dep.id] {
				continue
			}
			visited[dep.id] = true
			prev[dep.id] = cur
			queue = append(queue, dep)
		}
	}
	return []string{start.id, start.id}
}

// TopologicalOrder returns every node ID with dependencies before their
// dependents. Among nodes that are ready at the same time the one with the
// lowest priority comes first.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if err := g.detectCycles(); err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(g.nodes))
	ready := scheduler.New(func(a, b *node) bool {
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.id < b.id
	})
	for _, n := range g.nodes {
		remaining[n.id] = len(n.deps)
		if len(n.deps) == 0 {
			ready.Push(n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for {
		n, ok := ready.Pop()
		if !ok {
			break
		}
		order = append(order, n.id)
		for _, dependent := range n.dependents {
			remaining[dependent.id]--
			if remaining[dependent.id] == 0 {
				ready.Push(dependent)
			}
		}
	}
	return order, nil
}

func (g *Graph) sortedNodes() []*node {
	return sorted(g.nodes)
}

func sorted(m map[string]*node) []*node {
	out := make([]*node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].id < out[j].id
	})
	return out
}

func ids(nodes []*node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}

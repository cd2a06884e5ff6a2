package dag

import (
	"encoding/hex"
	"strings"

	"github.com/specialistvlad/buildgrid/internal/task"
	"github.com/zeebo/blake3"
)

// Node is one task in a Plan.
type Node struct {
	// Index is the node's position in the plan's topological order and the
	// engine's dispatch priority.
	Index int
	Task  *task.Task
	// Deps and Dependents are ordered by Index.
	Deps       []*Node
	Dependents []*Node
	// Requested marks tasks named directly in the request.
	Requested bool
}

// ID returns the task path.
func (n *Node) ID() string { return n.Task.Path() }

// Plan is the immutable reachable subgraph for one invocation.
type Plan struct {
	nodes     []*Node
	byID      map[string]*Node
	requested []string
	excluded  []string
}

// Nodes returns every node in topological order.
func (p *Plan) Nodes() []*Node {
	out := make([]*Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// Node looks up a node by task path.
func (p *Plan) Node(id string) (*Node, bool) {
	n, ok := p.byID[id]
	return n, ok
}

// Len returns the number of planned tasks.
func (p *Plan) Len() int { return len(p.nodes) }

// Requested returns the task paths selected by the request, in request order.
func (p *Plan) Requested() []string { return append([]string(nil), p.requested...) }

// Excluded returns the task paths removed from the plan by the request.
func (p *Plan) Excluded() []string { return append([]string(nil), p.excluded...) }

// Order returns the task paths in topological order.
func (p *Plan) Order() []string {
	out := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		out[i] = n.ID()
	}
	return out
}

// Fingerprint is a stable digest of the plan's nodes and edges. Two
// invocations with the same configuration and request share a fingerprint.
func (p *Plan) Fingerprint() string {
	h := blake3.New()
	for _, n := range p.nodes {
		deps := make([]string, len(n.Deps))
		for i, d := range n.Deps {
			deps[i] = d.ID()
		}
		_, _ = h.Write([]byte(n.ID()))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(strings.Join(deps, ",")))
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

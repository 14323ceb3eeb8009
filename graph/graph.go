// Package graph provides the core execution engine for stategraph: a
// runtime for stateful, graph-structured agents with checkpoint-backed
// resumability, interrupt/resume pausing, and incremental event streaming.
package graph

import "sync"

// Predicate evaluates state to decide whether an edge should be taken.
//
// Predicates should be pure functions of the state. Common patterns:
// slot equality (s.Values["route"] == "a"), presence checks, thresholds.
type Predicate func(state State) bool

// Edge is one outgoing transition of a node. A nil When predicate is
// unconditional. Edges are evaluated in declaration order; the first match
// wins.
type Edge struct {
	To   string
	When Predicate
}

// node pairs a capability with its ordered outgoing edges. A node with no
// edges is terminal.
type node struct {
	id    string
	cap   Capability
	edges []Edge
}

// Graph is a static description of nodes and edges with one designated
// start node. Build it with Add/Connect/StartAt, then freeze it with
// Compile; a compiled graph is immutable and safe to share across engines
// and concurrent executions.
type Graph struct {
	mu       sync.Mutex
	nodes    map[string]*node
	start    string
	compiled bool
}

// NewGraph creates an empty graph definition.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// Add registers a node. Node IDs must be unique and non-empty.
func (g *Graph) Add(nodeID string, cap Capability) error {
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}
	if cap == nil {
		return &EngineError{Message: "capability cannot be nil"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compiled {
		return &EngineError{Message: "graph is compiled and immutable", Code: "GRAPH_COMPILED"}
	}
	if _, exists := g.nodes[nodeID]; exists {
		return &EngineError{Message: "duplicate node ID: " + nodeID, Code: "DUPLICATE_NODE"}
	}

	g.nodes[nodeID] = &node{id: nodeID, cap: cap}
	return nil
}

// StartAt designates the entry node. The node must already be registered.
func (g *Graph) StartAt(nodeID string) error {
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compiled {
		return &EngineError{Message: "graph is compiled and immutable", Code: "GRAPH_COMPILED"}
	}
	if _, exists := g.nodes[nodeID]; !exists {
		return &EngineError{Message: "start node does not exist: " + nodeID, Code: "NODE_NOT_FOUND"}
	}

	g.start = nodeID
	return nil
}

// Connect appends an outgoing edge to the source node. A nil predicate is
// unconditional. Edge order is declaration order and decides routing
// priority.
func (g *Graph) Connect(from, to string, when Predicate) error {
	if from == "" || to == "" {
		return &EngineError{Message: "edge endpoints cannot be empty"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compiled {
		return &EngineError{Message: "graph is compiled and immutable", Code: "GRAPH_COMPILED"}
	}
	src, exists := g.nodes[from]
	if !exists {
		return &EngineError{Message: "edge source does not exist: " + from, Code: "NODE_NOT_FOUND"}
	}

	src.edges = append(src.edges, Edge{To: to, When: when})
	return nil
}

// Compile validates the definition and freezes it. After Compile the graph
// rejects further mutation.
//
// Validation requires a start node and that every edge target is a
// registered node.
func (g *Graph) Compile() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.compiled {
		return nil
	}
	if g.start == "" {
		return &EngineError{Message: "start node not set (call StartAt before Compile)", Code: "NO_START_NODE"}
	}
	for _, n := range g.nodes {
		for _, e := range n.edges {
			if _, exists := g.nodes[e.To]; !exists {
				return &EngineError{
					Message: "edge from " + n.id + " targets unknown node: " + e.To,
					Code:    "NODE_NOT_FOUND",
				}
			}
		}
	}

	g.compiled = true
	return nil
}

// Start returns the designated start node ID.
func (g *Graph) Start() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.start
}

// lookup returns the node by ID. Only called on compiled graphs, where the
// node set is immutable.
func (g *Graph) lookup(nodeID string) (*node, bool) {
	n, ok := g.nodes[nodeID]
	return n, ok
}

// route evaluates n's outgoing edges against state in declaration order
// and returns the first matching target, or "" when none match.
func route(n *node, state State) string {
	for _, e := range n.edges {
		if e.When == nil || e.When(state) {
			return e.To
		}
	}
	return ""
}

// ValueIs returns a predicate that matches when the named slot equals want.
// Convenience for router-driven graphs:
//
//	g.Connect("router", "toolA", graph.ValueIs("route", "use-tool-a"))
func ValueIs(slot string, want any) Predicate {
	return func(s State) bool {
		v, ok := s.Values[slot]
		return ok && v == want
	}
}

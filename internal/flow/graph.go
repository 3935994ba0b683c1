package flow

import "slices"

// Graph stores nodes and edges keyed by id, in insertion order.
type Graph struct {
	nodes     map[string]Node
	nodeOrder []string
	edges     map[string]Edge
	edgeOrder []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[string]Edge),
	}
}

// AddNode inserts n. The id must be unique and the kind known; a nil Config
// is replaced by the kind's default configuration.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return structural(StructInvalidNode, "node id must not be empty")
	}
	if !n.Kind.Valid() {
		return structural(StructInvalidNode, "node %q has unknown type %q", n.ID, n.Kind)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return structural(StructDuplicateID, "duplicate node ID: %q", n.ID)
	}
	if n.Config == nil {
		n.Config, _ = DefaultConfig(n.Kind)
	}
	if n.Config.Kind() != n.Kind {
		return structural(StructInvalidNode, "node %q of type %q carries %s configuration", n.ID, n.Kind, n.Config.Kind())
	}
	g.nodes[n.ID] = n.clone()
	g.nodeOrder = append(g.nodeOrder, n.ID)
	return nil
}

// RemoveNode deletes a node and every edge touching it. The start node
// cannot be removed.
func (g *Graph) RemoveNode(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return structural(StructUnknownNode, "node %q not found", id)
	}
	if n.Kind == KindStart {
		return structural(StructStartProtected, "the start node %q cannot be deleted", id)
	}
	for _, e := range g.Edges() {
		if e.Source == id || e.Target == id {
			g.dropEdge(e.ID)
		}
	}
	delete(g.nodes, id)
	g.nodeOrder = slices.DeleteFunc(g.nodeOrder, func(candidate string) bool { return candidate == id })
	return nil
}

// UpdateNodeConfig shallow-merges patch into the node's configuration.
func (g *Graph) UpdateNodeConfig(id string, patch ConfigPatch) error {
	n, ok := g.nodes[id]
	if !ok {
		return structural(StructUnknownNode, "node %q not found", id)
	}
	merged, err := patch.Merge(n.Config)
	if err != nil {
		return err
	}
	n.Config = merged
	g.nodes[id] = n
	return nil
}

// SetLabel changes the display label of a node.
func (g *Graph) SetLabel(id, label string) error {
	n, ok := g.nodes[id]
	if !ok {
		return structural(StructUnknownNode, "node %q not found", id)
	}
	n.Label = label
	g.nodes[id] = n
	return nil
}

// AddEdgeRaw inserts e without consulting any connection rule. Both
// endpoints must exist.
func (g *Graph) AddEdgeRaw(e Edge) error {
	if e.ID == "" {
		return structural(StructInvalidEdge, "edge id must not be empty")
	}
	if _, exists := g.edges[e.ID]; exists {
		return structural(StructDuplicateID, "duplicate edge ID: %q", e.ID)
	}
	if _, ok := g.nodes[e.Source]; !ok {
		return structural(StructDanglingEdge, "edge %q references unknown node: %q", e.ID, e.Source)
	}
	if _, ok := g.nodes[e.Target]; !ok {
		return structural(StructDanglingEdge, "edge %q references unknown node: %q", e.ID, e.Target)
	}
	g.edges[e.ID] = e.clone()
	g.edgeOrder = append(g.edgeOrder, e.ID)
	return nil
}

// RemoveEdge deletes the edge with the given id.
func (g *Graph) RemoveEdge(id string) error {
	if _, ok := g.edges[id]; !ok {
		return structural(StructUnknownEdge, "edge %q not found", id)
	}
	g.dropEdge(id)
	return nil
}

func (g *Graph) dropEdge(id string) {
	delete(g.edges, id)
	g.edgeOrder = slices.DeleteFunc(g.edgeOrder, func(candidate string) bool { return candidate == id })
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Edge returns a copy of the edge with the given id.
func (g *Graph) Edge(id string) (Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return Edge{}, false
	}
	return e.clone(), true
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id].clone())
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodeOrder) }

// OutgoingEdges returns every edge leaving the node, on any handle.
func (g *Graph) OutgoingEdges(id string) []Edge {
	return g.filterEdges(func(e Edge) bool { return e.Source == id })
}

// OutgoingEdgesOn returns the edges leaving the node through handle h.
func (g *Graph) OutgoingEdgesOn(id string, h Handle) []Edge {
	return g.filterEdges(func(e Edge) bool { return e.Source == id && e.SourceHandle == h })
}

// IncomingEdges returns every edge entering the node.
func (g *Graph) IncomingEdges(id string) []Edge {
	return g.filterEdges(func(e Edge) bool { return e.Target == id })
}

func (g *Graph) filterEdges(keep func(Edge) bool) []Edge {
	var out []Edge
	for _, id := range g.edgeOrder {
		if e := g.edges[id]; keep(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

// StartNode returns the first start node in insertion order.
func (g *Graph) StartNode() (Node, bool) {
	for _, id := range g.nodeOrder {
		if n := g.nodes[id]; n.Kind == KindStart {
			return n.clone(), true
		}
	}
	return Node{}, false
}

// CountKind returns how many nodes of kind k the graph holds.
func (g *Graph) CountKind(k Kind) int {
	count := 0
	for _, n := range g.nodes {
		if n.Kind == k {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:     make(map[string]Node, len(g.nodes)),
		nodeOrder: slices.Clone(g.nodeOrder),
		edges:     make(map[string]Edge, len(g.edges)),
		edgeOrder: slices.Clone(g.edgeOrder),
	}
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
	}
	for id, e := range g.edges {
		c.edges[id] = e.clone()
	}
	return c
}

// Package session binds a flow graph to the connection rule engine and the
// validator. A Session is the single owner of its graph: every mutation goes
// through it, runs to completion, and is followed by a synchronous
// validation pass whose result is pushed to the registered observers before
// the call returns.
//
// A Session is not safe for concurrent use.
package session

import (
	"context"
	"fmt"

	"github.com/specialistvlad/dripflow/internal/ctxlog"
	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/rules"
	"github.com/specialistvlad/dripflow/internal/snapshot"
	"github.com/specialistvlad/dripflow/internal/validate"
)

// StartNodeID is the id of the entry point seeded into an empty session.
const StartNodeID = "start"

// Observer receives the validation result of every completed mutation.
type Observer interface {
	FlowValidated(ctx context.Context, res validate.Result)
}

// DecisionObserver is implemented by observers that also want every rule
// engine decision, accepted or not.
type DecisionObserver interface {
	ConnectionDecided(ctx context.Context, p rules.Proposal, d rules.Decision)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res validate.Result)

// FlowValidated calls f.
func (f ObserverFunc) FlowValidated(ctx context.Context, res validate.Result) { f(ctx, res) }

// Session is an editing session over one flow.
type Session struct {
	graph      *flow.Graph
	engine     *rules.Engine
	descriptor *snapshot.Descriptor
	result     validate.Result
	observers  []Observer
	seq        int
}

// New opens a session over g. A nil graph starts a new flow holding only the
// entry point. The graph is owned by the session from now on.
func New(ctx context.Context, g *flow.Graph, engine *rules.Engine, observers ...Observer) *Session {
	if g == nil {
		g = flow.New()
		start, _ := flow.NewNode(StartNodeID, flow.KindStart, DefaultLabel(flow.KindStart))
		_ = g.AddNode(start)
	}
	s := &Session{graph: g, engine: engine, observers: observers}
	s.revalidate(ctx)
	return s
}

// Subscribe registers another observer. It is not called for past mutations.
func (s *Session) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// Validation returns the result of the last validation pass.
func (s *Session) Validation() validate.Result { return s.result }

// Graph returns a copy of the current graph.
func (s *Session) Graph() *flow.Graph { return s.graph.Clone() }

// Descriptor returns the attached recipient data descriptor, or nil.
func (s *Session) Descriptor() *snapshot.Descriptor {
	if s.descriptor == nil {
		return nil
	}
	d := *s.descriptor
	return &d
}

// DefaultLabel is the label a freshly dropped node of kind k gets.
func DefaultLabel(k flow.Kind) string {
	switch k {
	case flow.KindStart:
		return "Start"
	case flow.KindSendEmail:
		return "Send Email"
	case flow.KindWait:
		return "Wait"
	case flow.KindCondition:
		return "Condition"
	case flow.KindEnd:
		return "End"
	}
	return string(k)
}

// Drop creates a node of kind k at pos with a generated id, the kind's
// default label, and its default configuration.
func (s *Session) Drop(ctx context.Context, k flow.Kind, pos flow.Position) (flow.Node, error) {
	n, err := flow.NewNode(s.nextNodeID(k), k, DefaultLabel(k))
	if err != nil {
		return flow.Node{}, &flow.StructuralError{Kind: flow.StructInvalidNode, Msg: err.Error()}
	}
	n.Position = pos
	if err := s.AddNode(ctx, n); err != nil {
		return flow.Node{}, err
	}
	return n, nil
}

func (s *Session) nextNodeID(k flow.Kind) string {
	for {
		s.seq++
		id := fmt.Sprintf("%s-%d", k, s.seq)
		if _, taken := s.graph.Node(id); !taken {
			return id
		}
	}
}

// AddNode inserts n. A second entry point is refused.
func (s *Session) AddNode(ctx context.Context, n flow.Node) error {
	return s.apply(ctx, "add node", func(g *flow.Graph) error {
		if n.Kind == flow.KindStart && g.CountKind(flow.KindStart) > 0 {
			return &flow.StructuralError{Kind: flow.StructStartCount, Msg: "the flow already has an entry point"}
		}
		return g.AddNode(n)
	}, "node", n.ID, "kind", n.Kind)
}

// RemoveNode deletes a node and every edge touching it.
func (s *Session) RemoveNode(ctx context.Context, id string) error {
	return s.apply(ctx, "remove node", func(g *flow.Graph) error {
		return g.RemoveNode(id)
	}, "node", id)
}

// UpdateNodeConfig shallow-merges patch into a node configuration.
func (s *Session) UpdateNodeConfig(ctx context.Context, id string, patch flow.ConfigPatch) error {
	return s.apply(ctx, "update node config", func(g *flow.Graph) error {
		return g.UpdateNodeConfig(id, patch)
	}, "node", id)
}

// SetLabel renames a node.
func (s *Session) SetLabel(ctx context.Context, id, label string) error {
	return s.apply(ctx, "set label", func(g *flow.Graph) error {
		return g.SetLabel(id, label)
	}, "node", id)
}

// Connect asks the rule engine about p and applies an accepted decision:
// replaced edges are removed and the new edge is inserted. A rejected
// proposal leaves the graph untouched and is not an error.
func (s *Session) Connect(ctx context.Context, p rules.Proposal) (rules.Decision, error) {
	logger := ctxlog.FromContext(ctx)

	d, err := s.engine.Evaluate(s.graph, p)
	if err != nil {
		logger.Debug("Connection refused structurally.", "source", p.Source, "target", p.Target, "error", err)
		return rules.Decision{}, fmt.Errorf("connect: %w", err)
	}
	if !d.Accepted {
		logger.Info("Connection rejected.", "source", p.Source, "target", p.Target, "handle", p.SourceHandle.String(), "rule", d.Rule, "reason", d.Message)
		s.notifyDecision(ctx, p, d)
		return d, nil
	}

	edge := flow.Edge{
		ID:           s.edgeID(p, d.RemovedEdgeIDs),
		Source:       p.Source,
		Target:       p.Target,
		SourceHandle: p.SourceHandle,
		Type:         snapshot.DefaultEdgeType,
		Animated:     snapshot.DefaultEdgeAnimated,
		Style:        map[string]any{},
		Label:        flow.DefaultEdgeLabel(p.SourceHandle),
	}
	err = s.apply(ctx, "connect", func(g *flow.Graph) error {
		for _, id := range d.RemovedEdgeIDs {
			if err := g.RemoveEdge(id); err != nil {
				return err
			}
		}
		return g.AddEdgeRaw(edge)
	}, "edge", edge.ID, "replaced", d.RemovedEdgeIDs)
	if err != nil {
		return rules.Decision{}, err
	}
	d.EdgeID = edge.ID
	s.notifyDecision(ctx, p, d)
	return d, nil
}

// edgeID picks flow.DefaultEdgeID unless another edge holds it. Ids of
// edges about to be replaced may be reused.
func (s *Session) edgeID(p rules.Proposal, replaced []string) string {
	base := flow.DefaultEdgeID(p.Source, p.SourceHandle, p.Target)
	free := func(id string) bool {
		if _, taken := s.graph.Edge(id); !taken {
			return true
		}
		for _, r := range replaced {
			if r == id {
				return true
			}
		}
		return false
	}
	id := base
	for i := 2; !free(id); i++ {
		id = fmt.Sprintf("%s-%d", base, i)
	}
	return id
}

// Disconnect removes an edge.
func (s *Session) Disconnect(ctx context.Context, edgeID string) error {
	return s.apply(ctx, "disconnect", func(g *flow.Graph) error {
		return g.RemoveEdge(edgeID)
	}, "edge", edgeID)
}

// AttachData records the recipient data descriptor, satisfying the
// validation precondition.
func (s *Session) AttachData(ctx context.Context, d snapshot.Descriptor) {
	s.descriptor = &d
	ctxlog.FromContext(ctx).Debug("Recipient data attached.", "name", d.Name, "size", d.Size)
	s.revalidate(ctx)
}

// DetachData forgets the recipient data descriptor.
func (s *Session) DetachData(ctx context.Context) {
	s.descriptor = nil
	ctxlog.FromContext(ctx).Debug("Recipient data detached.")
	s.revalidate(ctx)
}

// Import replaces the graph and the descriptor wholesale with the contents
// of p. On error the session keeps its previous state.
func (s *Session) Import(ctx context.Context, p snapshot.Payload) error {
	g, desc, err := snapshot.Import(p)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("Import refused.", "error", err)
		return fmt.Errorf("import: %w", err)
	}
	s.graph = g
	s.descriptor = desc
	ctxlog.FromContext(ctx).Debug("Flow imported.", "nodes", len(p.Nodes), "edges", len(p.Edges))
	s.revalidate(ctx)
	return nil
}

// Export renders the current graph and descriptor.
func (s *Session) Export() (snapshot.Payload, error) {
	return snapshot.Export(s.graph, s.descriptor)
}

// apply runs fn on a copy of the graph and swaps it in only on success, so
// a failed mutation never leaves a half-applied change behind.
func (s *Session) apply(ctx context.Context, op string, fn func(g *flow.Graph) error, attrs ...any) error {
	logger := ctxlog.FromContext(ctx).With(attrs...)
	next := s.graph.Clone()
	if err := fn(next); err != nil {
		logger.Debug("Mutation refused.", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	s.graph = next
	logger.Debug("Mutation applied.", "op", op)
	s.revalidate(ctx)
	return nil
}

func (s *Session) revalidate(ctx context.Context) {
	s.result = validate.Validate(s.graph, s.descriptor != nil, s.engine.Table())
	logger := ctxlog.FromContext(ctx)
	if s.result.IsValid {
		logger.Debug("Flow is valid.", "messages", len(s.result.Errors))
	} else {
		logger.Info("Flow is invalid.", "errors", len(s.result.Blocking()))
	}
	for _, o := range s.observers {
		o.FlowValidated(ctx, s.result)
	}
}

func (s *Session) notifyDecision(ctx context.Context, p rules.Proposal, d rules.Decision) {
	for _, o := range s.observers {
		if do, ok := o.(DecisionObserver); ok {
			do.ConnectionDecided(ctx, p, d)
		}
	}
}

package rules

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/timing"
)

// Proposal is a connection the user is trying to draw.
type Proposal struct {
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	SourceHandle flow.Handle `json:"sourceHandle"`
}

// Decision is the outcome of evaluating a Proposal. RemovedEdgeIDs lists the
// edges that must be dropped before the new edge is inserted so that the
// source handle keeps a single outgoing edge.
type Decision struct {
	Accepted       bool     `json:"accepted"`
	RemovedEdgeIDs []string `json:"removedEdgeIds"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	// Rule names the rule that produced the message, if any.
	Rule string `json:"rule"`
	// EdgeID is the id of the inserted edge, filled in by whoever applies
	// an accepted decision.
	EdgeID string `json:"edgeId"`
}

// TimeoutRuleName identifies rejections caused by a condition timeout.
const TimeoutRuleName = "condition-timeout"

// Engine evaluates proposals against a Table. It never mutates the graph.
type Engine struct {
	table Table
}

// NewEngine returns an engine backed by table.
func NewEngine(table Table) *Engine {
	return &Engine{table: table}
}

// Table returns the rule table the engine evaluates.
func (e *Engine) Table() Table { return e.table }

// Evaluate decides whether p may be added to g. Unknown endpoints and handles
// the source kind does not offer are structural errors.
func (e *Engine) Evaluate(g *flow.Graph, p Proposal) (Decision, error) {
	src, ok := g.Node(p.Source)
	if !ok {
		return Decision{}, &flow.StructuralError{Kind: flow.StructUnknownNode, Msg: fmt.Sprintf("connection source %q not found", p.Source)}
	}
	dst, ok := g.Node(p.Target)
	if !ok {
		return Decision{}, &flow.StructuralError{Kind: flow.StructUnknownNode, Msg: fmt.Sprintf("connection target %q not found", p.Target)}
	}
	if !src.Kind.HasHandle(p.SourceHandle) {
		return Decision{}, &flow.StructuralError{
			Kind: flow.StructInvalidHandle,
			Msg:  fmt.Sprintf("%s node %q has no %q output handle", src.Kind, src.ID, p.SourceHandle.String()),
		}
	}

	blocking, advisories := e.table.Check(src.Kind, dst.Kind, p.SourceHandle)
	if blocking != nil {
		return reject(blocking.Name, blocking.Message), nil
	}

	replaced := g.OutgoingEdgesOn(src.ID, p.SourceHandle)
	removed := make([]string, 0, len(replaced))
	for _, edge := range replaced {
		removed = append(removed, edge.ID)
	}

	if src.Kind == flow.KindCondition {
		if msg, violated := TimeoutViolation(withProposal(g, p, removed), src.ID); violated {
			return reject(TimeoutRuleName, msg), nil
		}
	}

	d := Decision{Accepted: true, RemovedEdgeIDs: removed, Severity: SeverityNone}
	if len(advisories) > 0 {
		messages := make([]string, 0, len(advisories))
		for _, r := range advisories {
			messages = append(messages, r.Message)
		}
		d.Severity = SeverityAdvisory
		d.Message = strings.Join(messages, "; ")
		d.Rule = advisories[0].Name
	}
	return d, nil
}

func reject(rule, msg string) Decision {
	return Decision{
		Accepted:       false,
		RemovedEdgeIDs: []string{},
		Severity:       SeverityBlocking,
		Message:        msg,
		Rule:           rule,
	}
}

// withProposal returns a copy of g with the replaced edges removed and the
// proposed edge inserted.
func withProposal(g *flow.Graph, p Proposal, removed []string) *flow.Graph {
	probe := g.Clone()
	for _, id := range removed {
		_ = probe.RemoveEdge(id)
	}
	id := "rules.probe"
	for i := 1; ; i++ {
		if _, taken := probe.Edge(id); !taken {
			break
		}
		id = fmt.Sprintf("rules.probe.%d", i)
	}
	_ = probe.AddEdgeRaw(flow.Edge{ID: id, Source: p.Source, Target: p.Target, SourceHandle: p.SourceHandle})
	return probe
}

// TimeoutViolation checks the cumulative wait on both branches of a
// condition against its timeout window. It reports false when the node is
// not a condition, has no timeout, or both branches fit.
func TimeoutViolation(g *flow.Graph, conditionID string) (string, bool) {
	n, ok := g.Node(conditionID)
	if !ok || n.Kind != flow.KindCondition {
		return "", false
	}
	cfg, ok := n.Config.(flow.ConditionConfig)
	if !ok || !cfg.HasTimeout() || !cfg.TimeoutUnit.Valid() {
		return "", false
	}

	limit := cfg.TimeoutMinutes()
	var offending []string
	for _, h := range flow.KindCondition.Handles() {
		minutes := timing.BranchMinutes(g, conditionID, h)
		if minutes > limit {
			offending = append(offending, fmt.Sprintf("the '%s' branch waits %s (%d min)", h, timing.Format(minutes), minutes))
		}
	}
	if len(offending) == 0 {
		return "", false
	}
	return fmt.Sprintf("%s, longer than the %s (%d min) timeout of %s",
		strings.Join(offending, " and "), timing.Format(limit), limit, n.DisplayName()), true
}

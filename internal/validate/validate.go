// Package validate checks a whole flow graph against the invariants an
// execution backend relies on. Validation is a pure function of the graph,
// the recipient-data precondition and the connection rule table; it never
// mutates the graph and always terminates, cycles included.
package validate

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/rules"
)

// MissingDataMessage is reported when no recipient data is attached.
const MissingDataMessage = "recipient data must be attached before the campaign can run."

// Validate runs every check against g in a fixed order and collects the
// resulting messages. Advisory messages are reported but leave IsValid set.
func Validate(g *flow.Graph, dataAttached bool, table rules.Table) Result {
	c := newCollector()
	checkPrecondition(c, dataAttached)
	checkOrphans(c, g)
	checkConfiguration(c, g)
	checkEdges(c, g, table)
	checkCoverage(c, g)
	checkReachability(c, g)
	return c.res
}

func checkPrecondition(c *collector, dataAttached bool) {
	if !dataAttached {
		c.add(CategoryPrecondition, MissingDataMessage)
	}
}

func checkOrphans(c *collector, g *flow.Graph) {
	connected := make(map[string]bool, g.Len())
	for _, e := range g.Edges() {
		connected[e.Source] = true
		connected[e.Target] = true
	}
	for _, n := range g.Nodes() {
		if n.Kind == flow.KindStart || connected[n.ID] {
			continue
		}
		c.add(CategoryCoverage, fmt.Sprintf("%s is not connected to the flow", n.DisplayName()))
	}
}

func checkConfiguration(c *collector, g *flow.Graph) {
	for _, n := range g.Nodes() {
		name := n.DisplayName()
		switch cfg := n.Config.(type) {
		case flow.SendEmailConfig:
			if strings.TrimSpace(cfg.Subject) == "" {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: email subject is required", name))
			}
			if strings.TrimSpace(cfg.Body) == "" {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: email body is required", name))
			}
			if feedsLinkCondition(g, n.ID) && !hasWellFormedLink(cfg.Links) {
				c.add(CategoryConfigurationIncomplete,
					fmt.Sprintf("%s: at least one link with text and url is required because a following condition checks link clicks", name))
			}
		case flow.WaitConfig:
			if cfg.Duration <= 0 {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: wait duration must be greater than zero", name))
			}
			if !cfg.Unit.Valid() {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: wait unit must be selected", name))
			}
			if _, ok := cfg.Unit.ToMinutes(cfg.Duration); !ok {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: wait duration must not exceed %d minutes", name, flow.MaxMinutes))
			}
		case flow.ConditionConfig:
			if !cfg.ConditionType.Valid() {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: condition type must be selected", name))
			}
			if cfg.Timeout < 0 {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: condition timeout must not be negative", name))
			}
			if cfg.HasTimeout() && !cfg.TimeoutUnit.Valid() {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: condition timeout unit must be selected", name))
			}
			if _, ok := cfg.TimeoutUnit.ToMinutes(cfg.Timeout); !ok {
				c.add(CategoryConfigurationIncomplete, fmt.Sprintf("%s: condition timeout must not exceed %d minutes", name, flow.MaxMinutes))
			}
		case flow.StartConfig, flow.EndConfig:
		}
	}
}

// feedsLinkCondition reports whether a linkClicked condition sits directly
// after the email or further along a run of conditions that follows it.
func feedsLinkCondition(g *flow.Graph, emailID string) bool {
	visited := make(map[string]bool)
	var walk func(id string) bool
	walk = func(id string) bool {
		for _, e := range g.OutgoingEdges(id) {
			next, ok := g.Node(e.Target)
			if !ok || next.Kind != flow.KindCondition || visited[next.ID] {
				continue
			}
			visited[next.ID] = true
			if cfg, ok := next.Config.(flow.ConditionConfig); ok && cfg.ConditionType == flow.ConditionLinkClicked {
				return true
			}
			if walk(next.ID) {
				return true
			}
		}
		return false
	}
	return walk(emailID)
}

func hasWellFormedLink(links []flow.Link) bool {
	for _, l := range links {
		if l.WellFormed() {
			return true
		}
	}
	return false
}

func checkEdges(c *collector, g *flow.Graph, table rules.Table) {
	for _, e := range g.Edges() {
		src, ok := g.Node(e.Source)
		if !ok {
			continue
		}
		dst, ok := g.Node(e.Target)
		if !ok {
			continue
		}
		blocking, advisories := table.Check(src.Kind, dst.Kind, e.SourceHandle)
		prefix := fmt.Sprintf("connection from %s to %s", src.DisplayName(), dst.DisplayName())
		if blocking != nil {
			c.add(CategoryRuleViolation, prefix+": "+blocking.Message)
		}
		for _, r := range advisories {
			c.add(CategoryAdvisory, prefix+": "+r.Message)
		}
	}
	for _, n := range g.Nodes() {
		if n.Kind != flow.KindCondition {
			continue
		}
		if msg, violated := rules.TimeoutViolation(g, n.ID); violated {
			c.add(CategoryRuleViolation, msg)
		}
	}
}

func checkCoverage(c *collector, g *flow.Graph) {
	if starts := g.CountKind(flow.KindStart); starts != 1 {
		c.add(CategoryCoverage, fmt.Sprintf("flow must have exactly one entry point, found %d", starts))
	}
	conditions := g.CountKind(flow.KindCondition)
	required := max(1, 2*conditions)
	if ends := g.CountKind(flow.KindEnd); ends < required {
		c.add(CategoryCoverage, fmt.Sprintf(
			"flow needs at least %d end node(s) for %d condition(s) but has %d; add %d more",
			required, conditions, ends, required-ends))
	}
}

func checkReachability(c *collector, g *flow.Graph) {
	var stuck []string
	for _, n := range g.Nodes() {
		if len(g.OutgoingEdges(n.ID)) == 0 {
			continue
		}
		if !reachesEnd(g, n.ID, make(map[string]bool)) {
			stuck = append(stuck, n.DisplayName())
		}
	}
	if len(stuck) > 0 {
		c.add(CategoryCoverage, "no path to an end node from: "+strings.Join(stuck, ", "))
	}
}

// reachesEnd is a depth-first search; a node already on the visited set
// counts as no path.
func reachesEnd(g *flow.Graph, id string, visited map[string]bool) bool {
	n, ok := g.Node(id)
	if !ok {
		return false
	}
	if n.Kind == flow.KindEnd {
		return true
	}
	if visited[id] {
		return false
	}
	visited[id] = true
	for _, e := range g.OutgoingEdges(id) {
		if reachesEnd(g, e.Target, visited) {
			return true
		}
	}
	return false
}

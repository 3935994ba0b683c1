// Package timing computes how much configured waiting a recipient goes
// through along one branch of a condition.
package timing

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/dripflow/internal/flow"
)

// BranchMinutes returns the cumulative wait, in minutes, along the branch
// that leaves the condition node through handle h, clamped at
// flow.MaxMinutes.
//
// The walk follows single-successor chains: from each node it continues
// along the first outgoing edge in insertion order. Wait nodes add their
// duration; every other step passes through. The walk stops at a node with
// no successor, at an end node, at another condition (its branches are not
// part of this sum), or at a node it has already visited.
func BranchMinutes(g *flow.Graph, conditionID string, h flow.Handle) int {
	edges := g.OutgoingEdgesOn(conditionID, h)
	if len(edges) == 0 {
		return 0
	}

	visited := map[string]struct{}{conditionID: {}}
	total := 0
	current := edges[0].Target
	for {
		if _, seen := visited[current]; seen {
			return total
		}
		visited[current] = struct{}{}

		n, ok := g.Node(current)
		if !ok {
			return total
		}
		switch n.Kind {
		case flow.KindEnd, flow.KindCondition:
			return total
		case flow.KindWait:
			if cfg, ok := n.Config.(flow.WaitConfig); ok && cfg.Duration > 0 {
				total = flow.AddMinutes(total, cfg.Minutes())
			}
		case flow.KindStart, flow.KindSendEmail:
		}

		next := g.OutgoingEdges(current)
		if len(next) == 0 {
			return total
		}
		current = next[0].Target
	}
}

// Format renders a minute count as a compact duration such as "2d 3h" or
// "45m". Zero renders as "0m".
func Format(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	var parts []string
	if d := minutes / flow.UnitDays.Minutes(); d > 0 {
		parts = append(parts, fmt.Sprintf("%dd", d))
		minutes %= flow.UnitDays.Minutes()
	}
	if h := minutes / flow.UnitHours.Minutes(); h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
		minutes %= flow.UnitHours.Minutes()
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}

package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/dripflow/internal/flow"
)

// Severity grades the outcome of a rule.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityAdvisory
	SeverityBlocking
)

func (s Severity) String() string {
	switch s {
	case SeverityAdvisory:
		return "advisory"
	case SeverityBlocking:
		return "blocking"
	}
	return "none"
}

// MarshalText renders the severity as its wire name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a wire name.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*s = SeverityNone
	case "advisory":
		*s = SeverityAdvisory
	case "blocking":
		*s = SeverityBlocking
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// KindMatch selects a set of node kinds.
type KindMatch struct {
	kinds  []flow.Kind
	except bool
}

// AnyKind matches every kind.
func AnyKind() KindMatch { return KindMatch{except: true} }

// Only matches the listed kinds.
func Only(kinds ...flow.Kind) KindMatch { return KindMatch{kinds: kinds} }

// AnyExcept matches every kind but the listed ones.
func AnyExcept(kinds ...flow.Kind) KindMatch { return KindMatch{kinds: kinds, except: true} }

// Matches reports whether k is selected.
func (m KindMatch) Matches(k flow.Kind) bool {
	return slices.Contains(m.kinds, k) != m.except
}

// HandleMatch selects the source handle a rule applies to.
type HandleMatch struct {
	handle flow.Handle
	any    bool
}

// AnyHandle matches every handle.
var AnyHandle = HandleMatch{any: true}

// OnHandle matches exactly h.
func OnHandle(h flow.Handle) HandleMatch { return HandleMatch{handle: h} }

// Matches reports whether h is selected.
func (m HandleMatch) Matches(h flow.Handle) bool {
	return m.any || m.handle == h
}

// Rule is one row of the connection table.
type Rule struct {
	Name     string
	Source   KindMatch
	Target   KindMatch
	Handle   HandleMatch
	Severity Severity
	Message  string
}

// Matches reports whether the rule applies to an edge from a src node to a
// dst node leaving through handle h.
func (r Rule) Matches(src, dst flow.Kind, h flow.Handle) bool {
	return r.Source.Matches(src) && r.Target.Matches(dst) && r.Handle.Matches(h)
}

// Table is an ordered list of rules.
type Table []Rule

// Check evaluates the table for one edge. The first matching blocking rule
// is returned; advisory rules are independent and all of them are collected.
func (t Table) Check(src, dst flow.Kind, h flow.Handle) (*Rule, []Rule) {
	var advisories []Rule
	for i := range t {
		r := t[i]
		if !r.Matches(src, dst, h) {
			continue
		}
		switch r.Severity {
		case SeverityBlocking:
			return &r, advisories
		case SeverityAdvisory:
			advisories = append(advisories, r)
		case SeverityNone:
		}
	}
	return nil, advisories
}

// Policy holds the configurable part of the connection table.
type Policy struct {
	Name string
	// ConditionFeeders lists the kinds whose output may enter a condition.
	ConditionFeeders []flow.Kind
}

var (
	// ChainedPolicy lets a condition be fed by an email or by another condition.
	ChainedPolicy = Policy{Name: "chained", ConditionFeeders: []flow.Kind{flow.KindSendEmail, flow.KindCondition}}
	// StrictPolicy lets only an email feed a condition.
	StrictPolicy = Policy{Name: "strict", ConditionFeeders: []flow.Kind{flow.KindSendEmail}}
)

// PolicyByName looks up one of the built-in policies.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case ChainedPolicy.Name:
		return ChainedPolicy, nil
	case StrictPolicy.Name:
		return StrictPolicy, nil
	}
	return Policy{}, fmt.Errorf("unknown condition feeder policy %q: must be %q or %q", name, ChainedPolicy.Name, StrictPolicy.Name)
}

// Table builds the connection table for the policy.
func (p Policy) Table() Table {
	feederHandle := AnyHandle
	if slices.Contains(p.ConditionFeeders, flow.KindCondition) {
		// Condition outputs are named, so restricting the row to the default
		// handle exempts chained conditions.
		feederHandle = OnHandle(flow.HandleDefault)
	}
	return Table{
		{
			Name:     "wait-to-wait",
			Source:   Only(flow.KindWait),
			Target:   Only(flow.KindWait),
			Handle:   AnyHandle,
			Severity: SeverityBlocking,
			Message:  "cannot connect two wait nodes; merge into a single longer wait",
		},
		{
			Name:     "start-to-condition",
			Source:   Only(flow.KindStart),
			Target:   Only(flow.KindCondition),
			Handle:   AnyHandle,
			Severity: SeverityBlocking,
			Message:  "entry point cannot connect directly to a condition; insert a send-email step",
		},
		{
			Name:     "no-branch-starts-with-wait",
			Source:   Only(flow.KindCondition),
			Target:   AnyExcept(flow.KindWait),
			Handle:   OnHandle(flow.HandleNo),
			Severity: SeverityBlocking,
			Message:  "the 'no' branch must begin with a wait node",
		},
		{
			Name:     "condition-feeder",
			Source:   AnyExcept(p.ConditionFeeders...),
			Target:   Only(flow.KindCondition),
			Handle:   feederHandle,
			Severity: SeverityBlocking,
			Message:  "a condition can only be fed by " + feederPhrase(p.ConditionFeeders),
		},
		{
			Name:     "instant-double-send",
			Source:   Only(flow.KindSendEmail),
			Target:   Only(flow.KindSendEmail),
			Handle:   AnyHandle,
			Severity: SeverityAdvisory,
			Message:  "both emails fire instantly; consider inserting a wait",
		},
	}
}

// DefaultTable is the table of ChainedPolicy.
func DefaultTable() Table { return ChainedPolicy.Table() }

func feederPhrase(kinds []flow.Kind) string {
	phrases := make([]string, 0, len(kinds))
	for _, k := range kinds {
		switch k {
		case flow.KindStart:
			phrases = append(phrases, "the entry point")
		case flow.KindSendEmail:
			phrases = append(phrases, "a send-email step")
		case flow.KindWait:
			phrases = append(phrases, "a wait node")
		case flow.KindCondition:
			phrases = append(phrases, "another condition")
		case flow.KindEnd:
			phrases = append(phrases, "an end node")
		}
	}
	if len(phrases) == 0 {
		return "nothing"
	}
	return strings.Join(phrases, " or ")
}

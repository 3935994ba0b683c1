package flow

import (
	"fmt"
	"slices"
)

// Position is the canvas coordinate of a node. The core never reads it.
type Position struct {
	X float64
	Y float64
}

// Node is a single step of the automation.
type Node struct {
	ID          string
	Kind        Kind
	Position    Position
	Label       string
	Description string
	Config      Config
}

// NewNode returns a node of kind k carrying the kind's default configuration.
func NewNode(id string, k Kind, label string) (Node, error) {
	cfg, err := DefaultConfig(k)
	if err != nil {
		return Node{}, err
	}
	return Node{ID: id, Kind: k, Label: label, Config: cfg}, nil
}

// DisplayName is the label used in user-facing messages, falling back to
// the id when the node has no label.
func (n Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a directed connection leaving Source through SourceHandle.
// Type, Animated, Style and Label are cosmetic and round-trip untouched.
type Edge struct {
	ID           string
	Source       string
	Target       string
	SourceHandle Handle
	Type         string
	Animated     bool
	Style        map[string]any
	Label        string
}

// DefaultEdgeID is the id given to an edge drawn from source through h to
// target.
func DefaultEdgeID(source string, h Handle, target string) string {
	if h == HandleDefault {
		return fmt.Sprintf("edge-%s-%s", source, target)
	}
	return fmt.Sprintf("edge-%s-%s-%s", source, h, target)
}

// DefaultEdgeLabel is the label of a freshly drawn edge: the branch name for
// condition outputs, nothing otherwise.
func DefaultEdgeLabel(h Handle) string {
	if h == HandleDefault {
		return ""
	}
	return string(h)
}

func (e Edge) clone() Edge {
	if e.Style != nil {
		e.Style = cloneStyle(e.Style)
	}
	return e
}

// cloneStyle copies a decoded style map together with any nested maps and
// slices it holds.
func cloneStyle(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneStyleValue(v)
	}
	return out
}

func cloneStyleValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneStyle(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneStyleValue(item)
		}
		return out
	default:
		return v
	}
}

func (n Node) clone() Node {
	if c, ok := n.Config.(SendEmailConfig); ok && c.Links != nil {
		c.Links = slices.Clone(c.Links)
		n.Config = c
	}
	return n
}

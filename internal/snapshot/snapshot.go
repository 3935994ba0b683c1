package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/dripflow/internal/flow"
)

// ErrInvalidPayload is returned when a payload fails shape validation.
var ErrInvalidPayload = errors.New("invalid snapshot payload")

// Export renders g and the attached data descriptor as a payload.
func Export(g *flow.Graph, desc *Descriptor) (Payload, error) {
	p := Payload{
		Nodes: make([]Node, 0, g.Len()),
		Edges: []Edge{},
	}
	for _, n := range g.Nodes() {
		cfg := n.Config
		if c, ok := cfg.(flow.SendEmailConfig); ok && c.Links == nil {
			c.Links = []flow.Link{}
			cfg = c
		}
		raw, err := json.Marshal(cfg)
		if err != nil {
			return Payload{}, fmt.Errorf("encoding configuration of node %q: %w", n.ID, err)
		}
		p.Nodes = append(p.Nodes, Node{
			ID:       n.ID,
			Type:     n.Kind.String(),
			Position: Position{X: n.Position.X, Y: n.Position.Y},
			Data: NodeData{
				Label:       n.Label,
				Description: n.Description,
				Config:      raw,
			},
		})
	}
	for _, e := range g.Edges() {
		p.Edges = append(p.Edges, exportEdge(e))
	}
	if desc != nil {
		d := *desc
		p.ExternalDataDescriptor = &d
	}
	return p, nil
}

func exportEdge(e flow.Edge) Edge {
	var handle *string
	if e.SourceHandle != flow.HandleDefault {
		h := string(e.SourceHandle)
		handle = &h
	}
	style := e.Style
	if style == nil {
		style = map[string]any{}
	}
	typ, animated := e.Type, e.Animated
	return Edge{
		ID:           e.ID,
		Source:       e.Source,
		Target:       e.Target,
		SourceHandle: handle,
		Type:         &typ,
		Animated:     &animated,
		Style:        style,
		Label:        e.Label,
	}
}

// Import builds a new graph from p, replacing nothing in place. It returns
// ErrInvalidPayload for malformed documents and a *flow.StructuralError when
// the graph itself is inconsistent: duplicate ids, dangling edges, a start
// node count other than one, a handle the source kind does not offer, or
// two edges on the same source handle.
func Import(p Payload) (*flow.Graph, *Descriptor, error) {
	if err := payloadValidate.Struct(p); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	g := flow.New()
	for _, wn := range p.Nodes {
		kind := flow.Kind(wn.Type)
		cfg, err := flow.DecodeConfig(kind, wn.Data.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: node %q: %w", ErrInvalidPayload, wn.ID, err)
		}
		n := flow.Node{
			ID:          wn.ID,
			Kind:        kind,
			Position:    flow.Position{X: wn.Position.X, Y: wn.Position.Y},
			Label:       wn.Data.Label,
			Description: wn.Data.Description,
			Config:      cfg,
		}
		if err := g.AddNode(n); err != nil {
			return nil, nil, err
		}
	}
	if starts := g.CountKind(flow.KindStart); starts != 1 {
		return nil, nil, &flow.StructuralError{
			Kind: flow.StructStartCount,
			Msg:  fmt.Sprintf("a flow needs exactly one start node, found %d", starts),
		}
	}

	type port struct {
		node   string
		handle flow.Handle
	}
	taken := make(map[port]string, len(p.Edges))
	for _, we := range p.Edges {
		e := importEdge(we)
		if src, ok := g.Node(e.Source); ok && !src.Kind.HasHandle(e.SourceHandle) {
			return nil, nil, &flow.StructuralError{
				Kind: flow.StructInvalidHandle,
				Msg:  fmt.Sprintf("edge %q leaves %s node %q through unknown handle %q", e.ID, src.Kind, src.ID, e.SourceHandle.String()),
			}
		}
		key := port{node: e.Source, handle: e.SourceHandle}
		if other, dup := taken[key]; dup {
			return nil, nil, &flow.StructuralError{
				Kind: flow.StructHandleConflict,
				Msg:  fmt.Sprintf("edges %q and %q both leave node %q through the %s handle", other, e.ID, e.Source, e.SourceHandle),
			}
		}
		if err := g.AddEdgeRaw(e); err != nil {
			return nil, nil, err
		}
		taken[key] = e.ID
	}

	var desc *Descriptor
	if p.ExternalDataDescriptor != nil {
		d := *p.ExternalDataDescriptor
		desc = &d
	}
	return g, desc, nil
}

func importEdge(we Edge) flow.Edge {
	e := flow.Edge{
		ID:       we.ID,
		Source:   we.Source,
		Target:   we.Target,
		Type:     DefaultEdgeType,
		Animated: DefaultEdgeAnimated,
		Style:    we.Style,
		Label:    we.Label,
	}
	if we.SourceHandle != nil {
		e.SourceHandle = flow.Handle(*we.SourceHandle)
	}
	if we.Type != nil {
		e.Type = *we.Type
	}
	if we.Animated != nil {
		e.Animated = *we.Animated
	}
	if e.Style == nil {
		e.Style = map[string]any{}
	}
	return e
}

// Encode writes p as indented JSON.
func Encode(w io.Writer, p Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Decode reads a payload. Fields it does not know, such as transient canvas
// selection state, are ignored.
func Decode(r io.Reader) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return p, nil
}

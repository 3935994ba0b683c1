package hclflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/dripflow/internal/ctxlog"
	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/fsutil"
	"github.com/specialistvlad/dripflow/internal/snapshot"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Extension is the file extension of flow files.
const Extension = ".hcl"

// Load reads every flow file found under paths, merges them, and builds the
// graph they describe. Directories are searched recursively.
func Load(ctx context.Context, paths ...string) (*flow.Graph, *snapshot.Descriptor, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindFilesByExtension(Extension, paths...)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no %s files found in %s", Extension, strings.Join(paths, ", "))
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	roots := make([]*fileRoot, 0, len(files))
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		root, err := decodeRoot(file, hclFile.Body)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, root)
	}
	return build(ctx, roots)
}

// Parse builds the graph described by a single HCL document.
func Parse(ctx context.Context, filename string, src []byte) (*flow.Graph, *snapshot.Descriptor, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	root, err := decodeRoot(filename, hclFile.Body)
	if err != nil {
		return nil, nil, err
	}
	return build(ctx, []*fileRoot{root})
}

func decodeRoot(filename string, body hcl.Body) (*fileRoot, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return &root, nil
}

func build(ctx context.Context, roots []*fileRoot) (*flow.Graph, *snapshot.Descriptor, error) {
	p, err := toPayload(roots)
	if err != nil {
		return nil, nil, err
	}
	g, desc, err := snapshot.Import(p)
	if err != nil {
		return nil, nil, err
	}
	ctxlog.FromContext(ctx).Debug("HCL loading complete.", "nodes", len(p.Nodes), "edges", len(p.Edges))
	return g, desc, nil
}

// toPayload translates the decoded blocks into a snapshot payload so that
// both formats share the same import checks.
func toPayload(roots []*fileRoot) (snapshot.Payload, error) {
	p := snapshot.Payload{Nodes: []snapshot.Node{}, Edges: []snapshot.Edge{}}
	var explicit []*edgeBlock

	for _, root := range roots {
		for _, nb := range root.Nodes {
			node, edges, err := translateNode(nb)
			if err != nil {
				return snapshot.Payload{}, err
			}
			p.Nodes = append(p.Nodes, node)
			p.Edges = append(p.Edges, edges...)
		}
		explicit = append(explicit, root.Edges...)
		for _, rb := range root.Recipients {
			if p.ExternalDataDescriptor != nil {
				return snapshot.Payload{}, fmt.Errorf("recipients %q: only one recipients block is allowed, %q was declared first",
					rb.Name, p.ExternalDataDescriptor.Name)
			}
			p.ExternalDataDescriptor = &snapshot.Descriptor{
				Name:         rb.Name,
				Size:         rb.Size,
				Type:         rb.Type,
				LastModified: rb.LastModified,
			}
		}
	}

	for _, eb := range explicit {
		edge, err := translateEdge(eb)
		if err != nil {
			return snapshot.Payload{}, err
		}
		p.Edges = append(p.Edges, edge)
	}
	return p, nil
}

func translateNode(nb *nodeBlock) (snapshot.Node, []snapshot.Edge, error) {
	kind, err := flow.ParseKind(nb.Kind)
	if err != nil {
		return snapshot.Node{}, nil, fmt.Errorf("node %q: %w", nb.ID, err)
	}
	cfg, err := decodeConfig(kind, nb.Config)
	if err != nil {
		return snapshot.Node{}, nil, fmt.Errorf("node %q: %w", nb.ID, err)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return snapshot.Node{}, nil, fmt.Errorf("node %q: %w", nb.ID, err)
	}
	pos, err := decodePosition(nb.Position)
	if err != nil {
		return snapshot.Node{}, nil, fmt.Errorf("node %q: %w", nb.ID, err)
	}

	node := snapshot.Node{
		ID:       nb.ID,
		Type:     kind.String(),
		Position: pos,
		Data: snapshot.NodeData{
			Label:       nb.Label,
			Description: nb.Description,
			Config:      raw,
		},
	}

	var edges []snapshot.Edge
	outputs := []struct {
		attr   string
		target string
		handle flow.Handle
	}{
		{"next", nb.Next, flow.HandleDefault},
		{"yes", nb.Yes, flow.HandleYes},
		{"no", nb.No, flow.HandleNo},
	}
	for _, out := range outputs {
		if out.target == "" {
			continue
		}
		if !kind.HasHandle(out.handle) {
			return snapshot.Node{}, nil, fmt.Errorf("node %q: %s nodes do not support %q", nb.ID, kind, out.attr)
		}
		edges = append(edges, plainEdge(nb.ID, out.handle, out.target))
	}
	return node, edges, nil
}

func plainEdge(source string, h flow.Handle, target string) snapshot.Edge {
	typ, animated := snapshot.DefaultEdgeType, snapshot.DefaultEdgeAnimated
	return snapshot.Edge{
		ID:           flow.DefaultEdgeID(source, h, target),
		Source:       source,
		Target:       target,
		SourceHandle: handleRef(h),
		Type:         &typ,
		Animated:     &animated,
		Style:        map[string]any{},
		Label:        flow.DefaultEdgeLabel(h),
	}
}

func translateEdge(eb *edgeBlock) (snapshot.Edge, error) {
	style, err := decodeStyle(eb.Style)
	if err != nil {
		return snapshot.Edge{}, fmt.Errorf("edge %q: %w", eb.ID, err)
	}
	animated := eb.Animated
	return snapshot.Edge{
		ID:           eb.ID,
		Source:       eb.From,
		Target:       eb.To,
		SourceHandle: handleRef(flow.Handle(eb.Handle)),
		Type:         eb.Type,
		Animated:     &animated,
		Style:        style,
		Label:        eb.Label,
	}, nil
}

func handleRef(h flow.Handle) *string {
	if h == flow.HandleDefault {
		return nil
	}
	s := string(h)
	return &s
}

func decodeConfig(kind flow.Kind, body hcl.Body) (flow.Config, error) {
	switch kind {
	case flow.KindStart:
		var b startBody
		if diags := gohcl.DecodeBody(body, nil, &b); diags.HasErrors() {
			return nil, diags
		}
		return flow.StartConfig{DataSource: b.DataSource}, nil
	case flow.KindSendEmail:
		var b sendEmailBody
		if diags := gohcl.DecodeBody(body, nil, &b); diags.HasErrors() {
			return nil, diags
		}
		links := make([]flow.Link, 0, len(b.Links))
		for _, l := range b.Links {
			links = append(links, flow.Link{Text: l.Text, URL: l.URL})
		}
		return flow.SendEmailConfig{Subject: b.Subject, Body: b.Body, Links: links}, nil
	case flow.KindWait:
		var b waitBody
		if diags := gohcl.DecodeBody(body, nil, &b); diags.HasErrors() {
			return nil, diags
		}
		return flow.WaitConfig{Duration: b.Duration, Unit: flow.Unit(b.Unit)}, nil
	case flow.KindCondition:
		var b conditionBody
		if diags := gohcl.DecodeBody(body, nil, &b); diags.HasErrors() {
			return nil, diags
		}
		return flow.ConditionConfig{
			ConditionType: flow.ConditionType(b.ConditionType),
			Timeout:       b.Timeout,
			TimeoutUnit:   flow.Unit(b.TimeoutUnit),
		}, nil
	case flow.KindEnd:
		var b endBody
		if diags := gohcl.DecodeBody(body, nil, &b); diags.HasErrors() {
			return nil, diags
		}
		return flow.EndConfig{}, nil
	}
	return nil, fmt.Errorf("unknown node type %q", kind)
}

// exprValue evaluates an optional attribute. Absent attributes yield a null
// value.
func exprValue(expr hcl.Expression) (cty.Value, error) {
	if expr == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return val, nil
}

func decodePosition(expr hcl.Expression) (snapshot.Position, error) {
	val, err := exprValue(expr)
	if err != nil || val.IsNull() {
		return snapshot.Position{}, err
	}
	list, err := convert.Convert(val, cty.List(cty.Number))
	if err != nil {
		return snapshot.Position{}, fmt.Errorf("position must be a list of two numbers: %w", err)
	}
	var xy []float64
	if err := gocty.FromCtyValue(list, &xy); err != nil {
		return snapshot.Position{}, fmt.Errorf("position must be a list of two numbers: %w", err)
	}
	if len(xy) != 2 {
		return snapshot.Position{}, fmt.Errorf("position must be a list of two numbers, got %d", len(xy))
	}
	return snapshot.Position{X: xy[0], Y: xy[1]}, nil
}

func decodeStyle(expr hcl.Expression) (map[string]any, error) {
	val, err := exprValue(expr)
	if err != nil || val.IsNull() {
		return nil, err
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("style must be an object, got %s", ty.FriendlyName())
	}
	raw, err := ctyjson.Marshal(val, ty)
	if err != nil {
		return nil, fmt.Errorf("style: %w", err)
	}
	style := map[string]any{}
	if err := json.Unmarshal(raw, &style); err != nil {
		return nil, fmt.Errorf("style: %w", err)
	}
	return style, nil
}

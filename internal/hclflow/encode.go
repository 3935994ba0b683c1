package hclflow

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/snapshot"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Encode writes g and the optional recipient descriptor in the HCL
// authoring format. Node order is preserved. Edges that only carry default
// cosmetics become next/yes/no attributes of their source node; every other
// edge is written as an edge block after the nodes.
func Encode(w io.Writer, g *flow.Graph, desc *snapshot.Descriptor) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	var explicit []flow.Edge
	for i, n := range g.Nodes() {
		if i > 0 {
			root.AppendNewline()
		}
		body := root.AppendNewBlock("node", []string{n.Kind.String(), n.ID}).Body()
		setString(body, "label", n.Label)
		setString(body, "description", n.Description)
		if n.Position != (flow.Position{}) {
			body.SetAttributeValue("position", cty.TupleVal([]cty.Value{
				cty.NumberFloatVal(n.Position.X),
				cty.NumberFloatVal(n.Position.Y),
			}))
		}
		writeConfigAttributes(body, n.Config)
		for _, e := range g.OutgoingEdges(n.ID) {
			if !isPlain(e) {
				explicit = append(explicit, e)
				continue
			}
			body.SetAttributeValue(outputAttr(e.SourceHandle), cty.StringVal(e.Target))
		}
		if cfg, ok := n.Config.(flow.SendEmailConfig); ok {
			for _, l := range cfg.Links {
				body.AppendNewline()
				link := body.AppendNewBlock("link", nil).Body()
				link.SetAttributeValue("text", cty.StringVal(l.Text))
				link.SetAttributeValue("url", cty.StringVal(l.URL))
			}
		}
	}

	for _, e := range explicit {
		root.AppendNewline()
		if err := writeEdge(root, e); err != nil {
			return err
		}
	}

	if desc != nil {
		root.AppendNewline()
		body := root.AppendNewBlock("recipients", []string{desc.Name}).Body()
		body.SetAttributeValue("size", cty.NumberIntVal(desc.Size))
		setString(body, "type", desc.Type)
		if desc.LastModified != 0 {
			body.SetAttributeValue("last_modified", cty.NumberIntVal(desc.LastModified))
		}
	}

	if _, err := w.Write(hclwrite.Format(f.Bytes())); err != nil {
		return fmt.Errorf("writing HCL: %w", err)
	}
	return nil
}

func setString(body *hclwrite.Body, name, value string) {
	if value != "" {
		body.SetAttributeValue(name, cty.StringVal(value))
	}
}

func setInt(body *hclwrite.Body, name string, value int) {
	if value != 0 {
		body.SetAttributeValue(name, cty.NumberIntVal(int64(value)))
	}
}

// writeConfigAttributes writes the non-zero configuration fields. Zero
// fields are left out since they decode back to the same value.
func writeConfigAttributes(body *hclwrite.Body, cfg flow.Config) {
	switch c := cfg.(type) {
	case flow.StartConfig:
		setString(body, "data_source", c.DataSource)
	case flow.SendEmailConfig:
		setString(body, "subject", c.Subject)
		setString(body, "body", c.Body)
	case flow.WaitConfig:
		setInt(body, "duration", c.Duration)
		setString(body, "unit", string(c.Unit))
	case flow.ConditionConfig:
		setString(body, "condition_type", string(c.ConditionType))
		setInt(body, "timeout", c.Timeout)
		setString(body, "timeout_unit", string(c.TimeoutUnit))
	case flow.EndConfig:
	}
}

// isPlain reports whether e can be written as a next/yes/no attribute and
// read back unchanged.
func isPlain(e flow.Edge) bool {
	return e.ID == flow.DefaultEdgeID(e.Source, e.SourceHandle, e.Target) &&
		e.Type == snapshot.DefaultEdgeType &&
		e.Animated == snapshot.DefaultEdgeAnimated &&
		len(e.Style) == 0 &&
		e.Label == flow.DefaultEdgeLabel(e.SourceHandle)
}

func outputAttr(h flow.Handle) string {
	if h == flow.HandleDefault {
		return "next"
	}
	return string(h)
}

func writeEdge(root *hclwrite.Body, e flow.Edge) error {
	body := root.AppendNewBlock("edge", []string{e.ID}).Body()
	body.SetAttributeValue("from", cty.StringVal(e.Source))
	body.SetAttributeValue("to", cty.StringVal(e.Target))
	if e.SourceHandle != flow.HandleDefault {
		body.SetAttributeValue("handle", cty.StringVal(string(e.SourceHandle)))
	}
	body.SetAttributeValue("type", cty.StringVal(e.Type))
	if e.Animated {
		body.SetAttributeValue("animated", cty.True)
	}
	if len(e.Style) > 0 {
		style, err := styleValue(e.Style)
		if err != nil {
			return fmt.Errorf("edge %q: %w", e.ID, err)
		}
		body.SetAttributeValue("style", style)
	}
	setString(body, "label", e.Label)
	return nil
}

func styleValue(style map[string]any) (cty.Value, error) {
	raw, err := json.Marshal(style)
	if err != nil {
		return cty.NilVal, fmt.Errorf("style: %w", err)
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, fmt.Errorf("style: %w", err)
	}
	val, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("style: %w", err)
	}
	return val, nil
}

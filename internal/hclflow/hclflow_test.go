package hclflow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcomeFlow = `
node "start" "start" {
  label    = "Start"
  position = [0, 0]
  next     = "welcome"
}

node "sendEmail" "welcome" {
  label    = "Welcome"
  subject  = "Hi"
  body     = "Thanks for joining"
  position = [250.5, -40]
  next     = "clicked"

  link {
    text = "Get started"
    url  = "https://example.com/start"
  }
}

node "condition" "clicked" {
  label          = "Clicked?"
  condition_type = "linkClicked"
  timeout        = 3
  timeout_unit   = "days"
  yes            = "done"
  no             = "pause"
}

node "wait" "pause" {
  duration = 2
  unit     = "days"
  next     = "gave-up"
}

node "end" "done" {
  label = "Converted"
}

node "end" "gave-up" {}

recipients "contacts.csv" {
  size = 2048
  type = "text/csv"
}
`

func TestParse(t *testing.T) {
	g, desc, err := Parse(context.Background(), "welcome.hcl", []byte(welcomeFlow))
	require.NoError(t, err)

	require.NotNil(t, desc)
	assert.Equal(t, snapshot.Descriptor{Name: "contacts.csv", Size: 2048, Type: "text/csv"}, *desc)

	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"start", "welcome", "clicked", "pause", "done", "gave-up"}, ids)

	welcome, ok := g.Node("welcome")
	require.True(t, ok)
	assert.Equal(t, flow.Position{X: 250.5, Y: -40}, welcome.Position)
	assert.Equal(t, flow.SendEmailConfig{
		Subject: "Hi",
		Body:    "Thanks for joining",
		Links:   []flow.Link{{Text: "Get started", URL: "https://example.com/start"}},
	}, welcome.Config)

	clicked, ok := g.Node("clicked")
	require.True(t, ok)
	assert.Equal(t, flow.ConditionConfig{
		ConditionType: flow.ConditionLinkClicked,
		Timeout:       3,
		TimeoutUnit:   flow.UnitDays,
	}, clicked.Config)

	yes := g.OutgoingEdgesOn("clicked", flow.HandleYes)
	require.Len(t, yes, 1)
	assert.Equal(t, flow.Edge{
		ID:           "edge-clicked-yes-done",
		Source:       "clicked",
		Target:       "done",
		SourceHandle: flow.HandleYes,
		Type:         snapshot.DefaultEdgeType,
		Style:        map[string]any{},
		Label:        "yes",
	}, yes[0])
	assert.Len(t, g.Edges(), 5)

	gaveUp, ok := g.Node("gave-up")
	require.True(t, ok)
	assert.Equal(t, flow.EndConfig{}, gaveUp.Config)
	assert.Empty(t, gaveUp.Label)
}

var byEdgeID = cmpopts.SortSlices(func(a, b snapshot.Edge) bool { return a.ID < b.ID })

func TestEncodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	g, desc, err := Parse(ctx, "welcome.hcl", []byte(welcomeFlow))
	require.NoError(t, err)

	styled := flow.Edge{
		ID:       "custom",
		Source:   "done",
		Target:   "gave-up",
		Type:     "smoothstep",
		Animated: true,
		Style:    map[string]any{"stroke": "#f00", "strokeWidth": 2.0, "dashed": true},
		Label:    "cleanup",
	}
	require.NoError(t, g.AddEdgeRaw(styled))

	want, err := snapshot.Export(g, desc)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, g, desc))
	assert.Contains(t, buf.String(), `edge "custom" {`)
	assert.Contains(t, buf.String(), `node "condition" "clicked" {`)

	back, backDesc, err := Parse(ctx, "roundtrip.hcl", buf.Bytes())
	require.NoError(t, err, buf.String())
	got, err := snapshot.Export(back, backDesc)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, byEdgeID); diff != "" {
		t.Errorf("HCL round trip mismatch (-want +got):\n%s\n%s", diff, buf.String())
	}
}

func TestEncode_EmptyValuesAreOmitted(t *testing.T) {
	g := flow.New()
	require.NoError(t, g.AddNode(flow.Node{ID: "start", Kind: flow.KindStart}))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, g, nil))
	assert.Equal(t, "node \"start\" \"start\" {\n}\n", buf.String())
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "syntax error",
			src:     `node "start" "s" {`,
			wantErr: "failed to parse HCL file",
		},
		{
			name:    "unknown top-level block",
			src:     `job "x" {}`,
			wantErr: "failed to decode HCL file",
		},
		{
			name:    "unknown node type",
			src:     `node "sms" "x" {}`,
			wantErr: `node "x": unknown node type "sms"`,
		},
		{
			name: "attribute of another kind",
			src: `
node "start" "s" {}
node "wait" "w" {
  subject = "Hi"
}`,
			wantErr: `node "w"`,
		},
		{
			name: "next on a condition",
			src: `
node "start" "s" {}
node "condition" "c" {
  next = "s"
}`,
			wantErr: `node "c": condition nodes do not support "next"`,
		},
		{
			name: "yes on an email",
			src: `
node "start" "s" {}
node "sendEmail" "m" {
  yes = "s"
}`,
			wantErr: `node "m": sendEmail nodes do not support "yes"`,
		},
		{
			name: "malformed position",
			src: `
node "start" "s" {
  position = [1, 2, 3]
}`,
			wantErr: "position must be a list of two numbers, got 3",
		},
		{
			name: "non-numeric position",
			src: `
node "start" "s" {
  position = ["left", 2]
}`,
			wantErr: "position must be a list of two numbers",
		},
		{
			name: "style is not an object",
			src: `
node "start" "s" {}
node "end" "e" {}
edge "x" {
  from  = "s"
  to    = "e"
  style = "bold"
}`,
			wantErr: `edge "x": style must be an object, got string`,
		},
		{
			name: "two recipients blocks",
			src: `
node "start" "s" {}
recipients "a.csv" {}
recipients "b.csv" {}`,
			wantErr: `recipients "b.csv": only one recipients block is allowed`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(context.Background(), "flow.hcl", []byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParse_StructuralErrors(t *testing.T) {
	_, _, err := Parse(context.Background(), "flow.hcl", []byte(`
node "start" "s" {
  next = "ghost"
}`))
	assert.True(t, flow.IsStructural(err, flow.StructDanglingEdge), err)

	_, _, err = Parse(context.Background(), "flow.hcl", []byte(`node "end" "e" {}`))
	assert.True(t, flow.IsStructural(err, flow.StructStartCount), err)

	_, _, err = Parse(context.Background(), "flow.hcl", []byte(`
node "start" "s" {}
node "start" "s" {}`))
	assert.True(t, errors.Is(err, flow.ErrStructural), err)
}

func TestLoad_MergesFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	write("01-entry.hcl", `
node "start" "start" {
  next = "mail"
}`)
	write("steps/02-mail.hcl", `
node "sendEmail" "mail" {
  subject = "Hi"
  body    = "Hello"
  next    = "end"
}

node "end" "end" {}`)
	write("README.md", "not a flow")

	g, desc, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Nil(t, desc)
	assert.Equal(t, 3, g.Len())
	assert.Len(t, g.Edges(), 2)

	t.Run("nothing to load", func(t *testing.T) {
		_, _, err := Load(context.Background(), filepath.Join(dir, "missing"))
		assert.ErrorContains(t, err, "no .hcl files found")
	})
}

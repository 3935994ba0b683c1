// Package submit turns a validated flow into the campaign request accepted
// by the execution backend and posts it.
package submit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/snapshot"
	"github.com/specialistvlad/dripflow/internal/validate"
)

var (
	// ErrInvalidFlow is returned when the flow has blocking validation issues.
	ErrInvalidFlow = errors.New("flow is not valid")
	// ErrLoop is returned when a loop is reachable from the entry point. The
	// backend walks flows eagerly and refuses them.
	ErrLoop = errors.New("flow contains a loop")
)

// StatusReady is the status of a freshly submitted campaign.
const StatusReady = "ready"

// Request is the campaign creation document.
type Request struct {
	Campaign    Campaign     `json:"campaign"`
	Nodes       []Node       `json:"nodes" validate:"min=1,dive"`
	Connections []Connection `json:"connections" validate:"dive"`
	Workflow    Workflow     `json:"workflow"`
	ContactFile *ContactFile `json:"contact_file"`
}

// Campaign identifies the campaign.
type Campaign struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Status    string `json:"status" validate:"required"`
	CreatedAt string `json:"created_at" validate:"required"`
}

// Node is one step with its backend configuration.
type Node struct {
	ID            string         `json:"id" validate:"required"`
	Type          string         `json:"type" validate:"required"`
	Label         string         `json:"label"`
	Configuration map[string]any `json:"configuration"`
}

// Connection is an edge; ConnectionType is the branch it leaves through.
type Connection struct {
	ID             string `json:"id" validate:"required"`
	FromNode       string `json:"from_node" validate:"required"`
	ToNode         string `json:"to_node" validate:"required"`
	ConnectionType string `json:"connection_type" validate:"oneof=default yes no"`
}

// Workflow summarizes the graph.
type Workflow struct {
	StartNode        string `json:"start_node" validate:"required"`
	TotalNodes       int    `json:"total_nodes"`
	TotalConnections int    `json:"total_connections"`
}

// ContactFile carries the recipient data along with its descriptor.
type ContactFile struct {
	Name         string `json:"name" validate:"required"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
	Content      string `json:"content" validate:"required"`
}

// NewContactFile pairs a descriptor with the raw data it describes.
func NewContactFile(desc snapshot.Descriptor, content []byte) *ContactFile {
	return &ContactFile{
		Name:         desc.Name,
		Size:         desc.Size,
		Type:         desc.Type,
		LastModified: desc.LastModified,
		Content:      string(content),
	}
}

// Options controls the campaign metadata.
type Options struct {
	// CampaignID defaults to a random UUID.
	CampaignID string
	// Name defaults to "Email Campaign Flow".
	Name string
	// Now defaults to time.Now.
	Now func() time.Time
}

var submitValidate *validator.Validate

func init() {
	submitValidate = validator.New()
}

// Build assembles the request for g. It refuses flows whose validation
// result is not valid and flows with a loop reachable from the entry point.
func Build(g *flow.Graph, res validate.Result, contacts *ContactFile, opts Options) (Request, error) {
	if !res.IsValid {
		var msgs []string
		for _, is := range res.Blocking() {
			msgs = append(msgs, is.Message)
		}
		return Request{}, fmt.Errorf("%w: %s", ErrInvalidFlow, strings.Join(msgs, "; "))
	}
	start, ok := g.StartNode()
	if !ok {
		return Request{}, fmt.Errorf("%w: no entry point", ErrInvalidFlow)
	}
	if id, looped := findLoop(g, start.ID); looped {
		return Request{}, fmt.Errorf("%w involving node %q", ErrLoop, id)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	req := Request{
		Campaign: Campaign{
			ID:        opts.CampaignID,
			Name:      opts.Name,
			Status:    StatusReady,
			CreatedAt: now().UTC().Format(time.RFC3339),
		},
		Nodes:       make([]Node, 0, g.Len()),
		Connections: []Connection{},
		ContactFile: contacts,
	}
	if req.Campaign.ID == "" {
		req.Campaign.ID = uuid.NewString()
	}
	if req.Campaign.Name == "" {
		req.Campaign.Name = "Email Campaign Flow"
	}

	for _, n := range g.Nodes() {
		req.Nodes = append(req.Nodes, Node{
			ID:            n.ID,
			Type:          n.Kind.String(),
			Label:         n.Label,
			Configuration: configuration(n.Config),
		})
	}
	for _, e := range g.Edges() {
		req.Connections = append(req.Connections, Connection{
			ID:             e.ID,
			FromNode:       e.Source,
			ToNode:         e.Target,
			ConnectionType: e.SourceHandle.String(),
		})
	}
	req.Workflow = Workflow{
		StartNode:        start.ID,
		TotalNodes:       len(req.Nodes),
		TotalConnections: len(req.Connections),
	}

	if err := submitValidate.Struct(req); err != nil {
		return Request{}, fmt.Errorf("invalid campaign request: %w", err)
	}
	return req, nil
}

// configuration renders a node configuration with the field names the
// backend reads. A condition without an explicit timeout leaves the backend
// default in place.
func configuration(cfg flow.Config) map[string]any {
	switch c := cfg.(type) {
	case flow.StartConfig:
		return map[string]any{"dataSource": c.DataSource}
	case flow.SendEmailConfig:
		links := make([]map[string]string, 0, len(c.Links))
		for _, l := range c.Links {
			links = append(links, map[string]string{"text": l.Text, "url": l.URL})
		}
		return map[string]any{"subject": c.Subject, "body": c.Body, "links": links}
	case flow.WaitConfig:
		return map[string]any{"waitDuration": c.Duration, "waitUnit": string(c.Unit)}
	case flow.ConditionConfig:
		out := map[string]any{"conditionType": string(c.ConditionType)}
		if c.HasTimeout() {
			out["timeout"] = c.Timeout
			out["unit"] = string(c.TimeoutUnit)
		}
		return out
	}
	return map[string]any{}
}

// findLoop reports a node on a cycle reachable from start.
func findLoop(g *flow.Graph, start string) (string, bool) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		switch state[id] {
		case visiting:
			return id, true
		case done:
			return "", false
		}
		state[id] = visiting
		for _, e := range g.OutgoingEdges(id) {
			if loopID, looped := visit(e.Target); looped {
				return loopID, true
			}
		}
		state[id] = done
		return "", false
	}
	return visit(start)
}

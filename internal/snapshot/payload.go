// Package snapshot converts a flow graph to and from the portable JSON
// payload exchanged with the canvas and the submission backend. Every field
// is written explicitly; optional edge fields missing from an imported
// payload get documented defaults.
package snapshot

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/specialistvlad/dripflow/internal/flow"
)

// Defaults substituted for optional edge fields absent from input.
const (
	DefaultEdgeType     = "default"
	DefaultEdgeAnimated = false
)

// Payload is the export/import document.
type Payload struct {
	Nodes                  []Node      `json:"nodes" validate:"dive"`
	Edges                  []Edge      `json:"edges" validate:"dive"`
	ExternalDataDescriptor *Descriptor `json:"externalDataDescriptor"`
}

// Node is the wire form of flow.Node.
type Node struct {
	ID       string   `json:"id" validate:"required"`
	Type     string   `json:"type" validate:"required,nodekind"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Position is an opaque canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the label and the kind-specific configuration.
type NodeData struct {
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Config      json.RawMessage `json:"config"`
}

// Edge is the wire form of flow.Edge. A nil SourceHandle is the default
// handle. Type, Animated and Style are pointers so that absent fields can be
// told apart from zero values on import.
type Edge struct {
	ID           string         `json:"id" validate:"required"`
	Source       string         `json:"source" validate:"required"`
	Target       string         `json:"target" validate:"required"`
	SourceHandle *string        `json:"sourceHandle"`
	Type         *string        `json:"type"`
	Animated     *bool          `json:"animated"`
	Style        map[string]any `json:"style"`
	Label        string         `json:"label"`
}

// Descriptor describes the attached recipient data file.
type Descriptor struct {
	Name         string `json:"name" validate:"required"`
	Size         int64  `json:"size" validate:"gte=0"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
}

var payloadValidate *validator.Validate

func init() {
	payloadValidate = validator.New()
	_ = payloadValidate.RegisterValidation("nodekind", func(fl validator.FieldLevel) bool {
		return flow.Kind(fl.Field().String()).Valid()
	})
}

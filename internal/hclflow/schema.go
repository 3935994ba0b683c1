package hclflow

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a flow file may hold. Anything
// else in a file is an error.
type fileRoot struct {
	Nodes      []*nodeBlock       `hcl:"node,block"`
	Edges      []*edgeBlock       `hcl:"edge,block"`
	Recipients []*recipientsBlock `hcl:"recipients,block"`
}

// nodeBlock holds the attributes every node kind shares. The remaining
// kind-specific ones are decoded from Config once the kind is known.
type nodeBlock struct {
	Kind        string         `hcl:"kind,label"`
	ID          string         `hcl:"id,label"`
	Label       string         `hcl:"label,optional"`
	Description string         `hcl:"description,optional"`
	Position    hcl.Expression `hcl:"position,optional"`
	Next        string         `hcl:"next,optional"`
	Yes         string         `hcl:"yes,optional"`
	No          string         `hcl:"no,optional"`
	Config      hcl.Body       `hcl:",remain"`
}

type startBody struct {
	DataSource string `hcl:"data_source,optional"`
}

type sendEmailBody struct {
	Subject string       `hcl:"subject,optional"`
	Body    string       `hcl:"body,optional"`
	Links   []*linkBlock `hcl:"link,block"`
}

type linkBlock struct {
	Text string `hcl:"text,optional"`
	URL  string `hcl:"url,optional"`
}

type waitBody struct {
	Duration int    `hcl:"duration,optional"`
	Unit     string `hcl:"unit,optional"`
}

type conditionBody struct {
	ConditionType string `hcl:"condition_type,optional"`
	Timeout       int    `hcl:"timeout,optional"`
	TimeoutUnit   string `hcl:"timeout_unit,optional"`
}

type endBody struct{}

type edgeBlock struct {
	ID       string         `hcl:"id,label"`
	From     string         `hcl:"from"`
	To       string         `hcl:"to"`
	Handle   string         `hcl:"handle,optional"`
	Type     *string        `hcl:"type,optional"`
	Animated bool           `hcl:"animated,optional"`
	Style    hcl.Expression `hcl:"style,optional"`
	Label    string         `hcl:"label,optional"`
}

type recipientsBlock struct {
	Name         string `hcl:"name,label"`
	Size         int64  `hcl:"size,optional"`
	Type         string `hcl:"type,optional"`
	LastModified int64  `hcl:"last_modified,optional"`
}

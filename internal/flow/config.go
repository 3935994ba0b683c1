package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Config is the kind-specific configuration of a node.
type Config interface {
	// Kind returns the node kind this configuration belongs to.
	Kind() Kind
}

// Link is a call-to-action embedded in an email.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// WellFormed reports whether both the text and the url are present.
func (l Link) WellFormed() bool {
	return l.Text != "" && l.URL != ""
}

// StartConfig configures the entry point. DataSource is an opaque reference
// to the attached recipient dataset and is never interpreted.
type StartConfig struct {
	DataSource string `json:"dataSource"`
}

// SendEmailConfig configures an email step.
type SendEmailConfig struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Links   []Link `json:"links"`
}

// WaitConfig configures a delay.
type WaitConfig struct {
	Duration int  `json:"duration"`
	Unit     Unit `json:"unit"`
}

// Minutes returns the configured delay in minutes, clamped at MaxMinutes.
func (c WaitConfig) Minutes() int {
	m, _ := c.Unit.ToMinutes(c.Duration)
	return m
}

// ConditionConfig configures a branching decision. A zero Timeout means the
// condition carries no explicit timeout window.
type ConditionConfig struct {
	ConditionType ConditionType `json:"conditionType"`
	Timeout       int           `json:"timeout"`
	TimeoutUnit   Unit          `json:"timeoutUnit"`
}

// HasTimeout reports whether an explicit timeout window is configured.
func (c ConditionConfig) HasTimeout() bool {
	return c.Timeout > 0
}

// TimeoutMinutes returns the timeout window in minutes, clamped at
// MaxMinutes.
func (c ConditionConfig) TimeoutMinutes() int {
	m, _ := c.TimeoutUnit.ToMinutes(c.Timeout)
	return m
}

// EndConfig configures a terminal step. It has no fields.
type EndConfig struct{}

func (StartConfig) Kind() Kind     { return KindStart }
func (SendEmailConfig) Kind() Kind { return KindSendEmail }
func (WaitConfig) Kind() Kind      { return KindWait }
func (ConditionConfig) Kind() Kind { return KindCondition }
func (EndConfig) Kind() Kind       { return KindEnd }

// DefaultConfig returns the configuration a freshly dropped node of kind k
// starts with.
func DefaultConfig(k Kind) (Config, error) {
	switch k {
	case KindStart:
		return StartConfig{}, nil
	case KindSendEmail:
		return SendEmailConfig{Links: []Link{}}, nil
	case KindWait:
		return WaitConfig{Duration: 1, Unit: UnitDays}, nil
	case KindCondition:
		return ConditionConfig{}, nil
	case KindEnd:
		return EndConfig{}, nil
	}
	return nil, fmt.Errorf("unknown node type %q", k)
}

// DecodeConfig decodes the JSON configuration of a node of kind k. Absent
// fields keep their zero value; an empty document yields the zero config.
func DecodeConfig(k Kind, raw []byte) (Config, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	switch k {
	case KindStart:
		var c StartConfig
		return c, decodeStrict(trimmed, &c)
	case KindSendEmail:
		var c SendEmailConfig
		if err := decodeStrict(trimmed, &c); err != nil {
			return nil, err
		}
		if c.Links == nil {
			c.Links = []Link{}
		}
		return c, nil
	case KindWait:
		var c WaitConfig
		return c, decodeStrict(trimmed, &c)
	case KindCondition:
		var c ConditionConfig
		return c, decodeStrict(trimmed, &c)
	case KindEnd:
		var c EndConfig
		return c, decodeStrict(trimmed, &c)
	}
	return nil, fmt.Errorf("unknown node type %q", k)
}

func decodeStrict(raw []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ConfigPatch is a shallow update of a node configuration keyed by the
// configuration's JSON field names. Every key present replaces the whole
// field value; keys that are absent leave the field untouched.
type ConfigPatch map[string]any

// Merge applies the patch on top of c and returns the resulting
// configuration of the same kind.
func (p ConfigPatch) Merge(c Config) (Config, error) {
	current, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding current configuration: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(current, &fields); err != nil {
		return nil, fmt.Errorf("decoding current configuration: %w", err)
	}
	for key, value := range p {
		if _, known := fields[key]; !known {
			return nil, fmt.Errorf("%s configuration has no field %q", c.Kind(), key)
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", key, err)
		}
		fields[key] = encoded
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding merged configuration: %w", err)
	}
	return DecodeConfig(c.Kind(), merged)
}

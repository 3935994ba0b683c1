// Package editorlink drives a session from a live canvas over socket.io.
// The canvas emits mutation events; every validation result and rule
// decision the session produces is emitted back.
package editorlink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/specialistvlad/dripflow/internal/ctxlog"
	"github.com/specialistvlad/dripflow/internal/flow"
	"github.com/specialistvlad/dripflow/internal/rules"
	"github.com/specialistvlad/dripflow/internal/session"
	"github.com/specialistvlad/dripflow/internal/snapshot"
	"github.com/specialistvlad/dripflow/internal/validate"
)

// Incoming events.
const (
	EventDrop         = "flow:drop"
	EventConnect      = "flow:connect"
	EventDisconnect   = "flow:disconnect"
	EventRemoveNode   = "flow:remove-node"
	EventUpdateConfig = "flow:update-config"
	EventSetLabel     = "flow:set-label"
	EventAttachData   = "flow:attach-data"
	EventDetachData   = "flow:detach-data"
	EventImport       = "flow:import"
	EventExport       = "flow:export"
)

// Outgoing events.
const (
	EventValidated = "flow:validated"
	EventDecision  = "flow:decision"
	EventNodeAdded = "flow:node-added"
	EventSnapshot  = "flow:snapshot"
	EventError     = "flow:error"
)

// Transport is the event channel to the canvas.
type Transport interface {
	On(event string, fn func(args ...any))
	Emit(event string, args ...any)
}

// Recorder counts received events. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordEditorEvent(event string, success bool)
}

// DropRequest asks for a new node of Kind at Position.
type DropRequest struct {
	Kind     flow.Kind     `json:"kind"`
	Position flow.Position `json:"position"`
}

// EdgeRequest names an edge.
type EdgeRequest struct {
	EdgeID string `json:"edgeId"`
}

// NodeRequest names a node.
type NodeRequest struct {
	ID string `json:"id"`
}

// ConfigRequest patches a node configuration.
type ConfigRequest struct {
	ID    string          `json:"id"`
	Patch flow.ConfigPatch `json:"patch"`
}

// LabelRequest renames a node.
type LabelRequest struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DecisionEvent is emitted for every connection proposal.
type DecisionEvent struct {
	Proposal rules.Proposal `json:"proposal"`
	Decision rules.Decision `json:"decision"`
}

// ErrorEvent reports a refused incoming event.
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// Link binds one session to one transport. Socket callbacks arrive on
// library goroutines, so every handler runs under mu.
type Link struct {
	mu       sync.Mutex
	ctx      context.Context
	sess     *session.Session
	tr       Transport
	recorder Recorder
}

// New registers the event handlers on tr and subscribes the link to sess.
// ctx carries the logger used by the handlers. recorder may be nil.
func New(ctx context.Context, sess *session.Session, tr Transport, recorder Recorder) *Link {
	l := &Link{ctx: ctx, sess: sess, tr: tr, recorder: recorder}
	sess.Subscribe(l)

	l.handle(EventDrop, func(ctx context.Context, raw []byte) error {
		var req DropRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return err
		}
		n, err := l.sess.Drop(ctx, req.Kind, req.Position)
		if err != nil {
			return err
		}
		l.tr.Emit(EventNodeAdded, n)
		return nil
	})
	l.handle(EventConnect, func(ctx context.Context, raw []byte) error {
		var p rules.Proposal
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		_, err := l.sess.Connect(ctx, p)
		return err
	})
	l.handle(EventDisconnect, func(ctx context.Context, raw []byte) error {
		var req EdgeRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return err
		}
		return l.sess.Disconnect(ctx, req.EdgeID)
	})
	l.handle(EventRemoveNode, func(ctx context.Context, raw []byte) error {
		var req NodeRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return err
		}
		return l.sess.RemoveNode(ctx, req.ID)
	})
	l.handle(EventUpdateConfig, func(ctx context.Context, raw []byte) error {
		var req ConfigRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return err
		}
		return l.sess.UpdateNodeConfig(ctx, req.ID, req.Patch)
	})
	l.handle(EventSetLabel, func(ctx context.Context, raw []byte) error {
		var req LabelRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return err
		}
		return l.sess.SetLabel(ctx, req.ID, req.Label)
	})
	l.handle(EventAttachData, func(ctx context.Context, raw []byte) error {
		var d snapshot.Descriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		if d.Name == "" {
			return fmt.Errorf("recipient data descriptor needs a name")
		}
		l.sess.AttachData(ctx, d)
		return nil
	})
	l.handle(EventDetachData, func(ctx context.Context, _ []byte) error {
		l.sess.DetachData(ctx)
		return nil
	})
	l.handle(EventImport, func(ctx context.Context, raw []byte) error {
		var p snapshot.Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		return l.sess.Import(ctx, p)
	})
	l.handle(EventExport, func(context.Context, []byte) error {
		p, err := l.sess.Export()
		if err != nil {
			return err
		}
		l.tr.Emit(EventSnapshot, p)
		return nil
	})
	return l
}

// Sync emits the current validation result, e.g. right after connecting.
func (l *Link) Sync() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tr.Emit(EventValidated, l.sess.Validation())
}

// FlowValidated forwards a validation result to the canvas.
func (l *Link) FlowValidated(_ context.Context, res validate.Result) {
	l.tr.Emit(EventValidated, res)
}

// ConnectionDecided forwards a rule engine decision to the canvas.
func (l *Link) ConnectionDecided(_ context.Context, p rules.Proposal, d rules.Decision) {
	l.tr.Emit(EventDecision, DecisionEvent{Proposal: p, Decision: d})
}

func (l *Link) handle(event string, fn func(ctx context.Context, raw []byte) error) {
	l.tr.On(event, func(args ...any) {
		l.mu.Lock()
		defer l.mu.Unlock()

		ctx := ctxlog.With(l.ctx, "event", event)
		logger := ctxlog.FromContext(ctx)
		logger.Debug("Editor event received.")

		raw, err := payload(args)
		if err == nil {
			err = fn(ctx, raw)
		}
		if l.recorder != nil {
			l.recorder.RecordEditorEvent(event, err == nil)
		}
		if err != nil {
			logger.Info("Editor event refused.", "error", err)
			l.tr.Emit(EventError, ErrorEvent{Event: event, Message: err.Error()})
		}
	})
}

// payload re-encodes the first event argument as JSON. Strings are taken
// to already hold JSON; a missing argument reads as an empty object.
func payload(args []any) ([]byte, error) {
	if len(args) == 0 || args[0] == nil {
		return []byte("{}"), nil
	}
	switch v := args[0].(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to encode event payload: %w", err)
	}
	return raw, nil
}

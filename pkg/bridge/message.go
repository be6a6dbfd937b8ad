package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Message types understood by Dispatch. They mirror the bridge calls the
// rendering surface makes.
const (
	MsgReady              = "ready"
	MsgElementSelected    = "onElementSelected"
	MsgElementTextChanged = "onElementTextChanged"
	MsgDomUpdated         = "onDomUpdated"
	MsgElementMoved       = "onElementMoved"
	MsgElementMoveUp      = "onElementMoveUp"
	MsgElementMoveDown    = "onElementMoveDown"
	MsgElementDelete      = "onElementDelete"
	MsgElementDuplicate   = "onElementDuplicate"
	MsgElementsWrapInDiv  = "onElementsWrapInDiv"
	MsgPaletteDrop        = "onPaletteDrop"
	MsgStyleChanged       = "onStyleChanged"
	MsgAttributeChanged   = "onAttributeChanged"
	MsgSelectionCleared   = "onSelectionCleared"
	MsgElementTagChanged  = "onElementTagChanged"
)

// ErrUnknownMessage is returned by Dispatch for unsupported message types.
var ErrUnknownMessage = errors.New("unknown message type")

// Message is the generic envelope carried by transports (HTTP, WebSocket,
// MCP). Only the fields relevant to Type are read.
type Message struct {
	Type     string `json:"type" mapstructure:"type"`
	ID       string `json:"id,omitempty" mapstructure:"id"`
	ParentID string `json:"parent_id,omitempty" mapstructure:"parent_id"`
	Index    int    `json:"index,omitempty" mapstructure:"index"`
	Text     string `json:"text,omitempty" mapstructure:"text"`
	Name     string `json:"name,omitempty" mapstructure:"name"`
	Value    string `json:"value,omitempty" mapstructure:"value"`
	Kind     string `json:"kind,omitempty" mapstructure:"kind"`

	// IDs lists the nodes to wrap. IDsJSON carries the same list encoded
	// as a JSON string, the way the surface script sends it.
	IDs     []string `json:"ids,omitempty" mapstructure:"ids"`
	IDsJSON string   `json:"ids_json,omitempty" mapstructure:"ids_json"`

	// Document is the full-tree payload of onDomUpdated.
	Document json.RawMessage `json:"document,omitempty" mapstructure:"-"`
}

// Result is the outcome reported back to the surface for one message.
type Result struct {
	OK     bool   `json:"ok"`
	NodeID string `json:"node_id,omitempty"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewResult builds a Result from an outcome.
func NewResult(nodeID string, err error) Result {
	if err != nil {
		return Result{Code: Code(err), Error: err.Error()}
	}
	return Result{OK: true, NodeID: nodeID}
}

// Dispatch routes an envelope to the matching bridge call.
func (s *Session) Dispatch(ctx context.Context, msg Message) Result {
	var (
		nodeID string
		err    error
	)

	switch msg.Type {
	case MsgReady:
		err = s.Ready(ctx)
	case MsgElementSelected:
		err = s.OnElementSelected(ctx, msg.ID)
	case MsgSelectionCleared:
		err = s.OnSelectionCleared(ctx)
	case MsgElementTextChanged:
		err = s.OnElementTextChanged(ctx, msg.ID, msg.Text)
	case MsgElementTagChanged:
		err = s.OnElementTagChanged(ctx, msg.ID, msg.Value)
	case MsgDomUpdated:
		err = s.OnDomUpdated(ctx, msg.Document)
	case MsgElementMoved:
		err = s.OnElementMoved(ctx, msg.ID, msg.ParentID, msg.Index)
	case MsgElementMoveUp:
		err = s.OnElementMoveUp(ctx, msg.ID)
	case MsgElementMoveDown:
		err = s.OnElementMoveDown(ctx, msg.ID)
	case MsgElementDelete:
		err = s.OnElementDelete(ctx, msg.ID)
	case MsgElementDuplicate:
		nodeID, err = s.OnElementDuplicate(ctx, msg.ID)
	case MsgElementsWrapInDiv:
		idsJSON := msg.IDsJSON
		if idsJSON == "" {
			raw, _ := json.Marshal(msg.IDs)
			idsJSON = string(raw)
		}
		nodeID, err = s.OnElementsWrapInDiv(ctx, idsJSON)
	case MsgPaletteDrop:
		nodeID, err = s.OnPaletteDrop(ctx, msg.Kind, msg.ParentID, msg.Index)
	case MsgStyleChanged:
		err = s.OnStyleChanged(ctx, msg.ID, msg.Name, msg.Value)
	case MsgAttributeChanged:
		err = s.OnAttributeChanged(ctx, msg.ID, msg.Name, msg.Value)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return NewResult(nodeID, err)
}

package domain

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Well-known node types with special rendering.
const (
	NodeTypeNote    = "Note"
	NodeTypeReroute = "Reroute"
)

// WildcardType is the port type that connects to anything.
const WildcardType = "*"

// Workflow is the canonical, load-ready representation of a workflow file.
// It is built once per load by the extractor and consumed once by the projector.
type Workflow struct {
	Nodes      []Node         `json:"nodes"`
	Links      []Link         `json:"links"`
	Groups     []Group        `json:"groups"`
	LastNodeID LooseInt       `json:"last_node_id"`
	LastLinkID LooseInt       `json:"last_link_id"`
	Version    any            `json:"version,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Node is a single node as declared in the workflow file.
type Node struct {
	ID           NodeID         `json:"id"`
	Type         LooseString    `json:"type,omitempty"`
	Title        LooseString    `json:"title,omitempty"`
	Pos          *Pair          `json:"pos,omitempty"`
	Size         *Pair          `json:"size,omitempty"`
	Inputs       []*Port        `json:"inputs,omitempty"`
	Outputs      []*Port        `json:"outputs,omitempty"`
	WidgetValues any            `json:"widgets_values,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
	Flags        map[string]any `json:"flags,omitempty"`
	Mode         LooseInt       `json:"mode,omitempty"`
	Order        LooseInt       `json:"order,omitempty"`
	Color        LooseString    `json:"color,omitempty"`
	BgColor      LooseString    `json:"bgcolor,omitempty"`
	BoxColor     LooseString    `json:"boxcolor,omitempty"`

	decodeErr error
}

// UnmarshalJSON keeps opaque values (widget values, properties) as
// json.Number so large integers survive a re-serialization untouched.
// A field of the wrong shape is left zeroed and reported by DecodeErr;
// returning it would abort the enclosing workflow decode.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	err := dec.Decode(&p)
	var typeErr *json.UnmarshalTypeError
	if err != nil && !errors.As(err, &typeErr) {
		return err
	}
	*n = Node(p)
	n.decodeErr = err
	return nil
}

// DecodeErr returns the first field type mismatch met while decoding the
// node, or nil.
func (n *Node) DecodeErr() error { return n.decodeErr }

// Port is a declared input or output slot. A null entry in the file decodes
// as a nil *Port and is skipped by the projector.
type Port struct {
	Name  LooseString `json:"name"`
	Label LooseString `json:"label,omitempty"`
	Type  LooseString `json:"type"`
	Link  *LinkID     `json:"link,omitempty"`
	Links []LinkID    `json:"links,omitempty"`
}

// Link is the flat tuple `[id, originNode, originSlot, targetNode, targetSlot]`,
// optionally followed by a declared type.
type Link struct {
	ID         LinkID
	OriginID   NodeID
	OriginSlot int
	TargetID   NodeID
	TargetSlot int
	Type       string

	raw     json.RawMessage
	invalid bool
}

// Valid reports whether the entry decoded into a complete tuple.
func (l Link) Valid() bool { return !l.invalid }

// UnmarshalJSON accepts the tuple form and the object form
// `{"id", "origin_id", "origin_slot", "target_id", "target_slot", "type"}`.
// It never fails: a malformed entry is kept and reported as invalid.
func (l *Link) UnmarshalJSON(data []byte) error {
	*l = Link{}
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err == nil {
		if len(tuple) < 5 {
			l.markInvalid(data)
			return nil
		}
		ok := l.fill(tuple[0], tuple[1], tuple[2], tuple[3], tuple[4])
		if len(tuple) > 5 {
			var t LooseString
			_ = t.UnmarshalJSON(tuple[5])
			l.Type = string(t)
		}
		if !ok {
			l.markInvalid(data)
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		l.markInvalid(data)
		return nil
	}
	if !l.fill(obj["id"], obj["origin_id"], obj["origin_slot"], obj["target_id"], obj["target_slot"]) {
		l.markInvalid(data)
		return nil
	}
	if t, ok := obj["type"]; ok {
		var s LooseString
		_ = s.UnmarshalJSON(t)
		l.Type = string(s)
	}
	return nil
}

func (l *Link) fill(id, origin, originSlot, target, targetSlot json.RawMessage) bool {
	vals := make([]int64, 5)
	for i, raw := range []json.RawMessage{id, origin, originSlot, target, targetSlot} {
		if len(raw) == 0 {
			return false
		}
		v, ok := looseInt(raw)
		if !ok {
			return false
		}
		vals[i] = v
	}
	l.ID = LinkID(vals[0])
	l.OriginID = NodeID(vals[1])
	l.OriginSlot = int(vals[2])
	l.TargetID = NodeID(vals[3])
	l.TargetSlot = int(vals[4])
	return true
}

func (l *Link) markInvalid(data []byte) {
	*l = Link{invalid: true, raw: append(json.RawMessage(nil), data...)}
}

// MarshalJSON writes the tuple form. Invalid entries are written back verbatim.
func (l Link) MarshalJSON() ([]byte, error) {
	if l.invalid {
		if len(l.raw) == 0 {
			return []byte("null"), nil
		}
		return l.raw, nil
	}
	tuple := []any{l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot}
	if l.Type != "" {
		tuple = append(tuple, l.Type)
	}
	return json.Marshal(tuple)
}

// Group is a titled rectangle drawn behind nodes.
type Group struct {
	Title    LooseString `json:"title,omitempty"`
	Bounding Rect        `json:"bounding"`
	Color    LooseString `json:"color,omitempty"`
	FontSize any         `json:"font_size,omitempty"`
}

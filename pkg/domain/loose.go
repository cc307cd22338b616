package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Workflow files are hand-edited and exported by many tool versions, so the
// scalar fields below decode leniently: a value of the wrong shape becomes
// the zero value instead of failing the whole document.

// NodeID identifies a node within a workflow.
type NodeID int64

// LinkID identifies a link within a workflow.
type LinkID int64

func (id *NodeID) UnmarshalJSON(data []byte) error {
	v, _ := looseInt(data)
	*id = NodeID(v)
	return nil
}

func (id *LinkID) UnmarshalJSON(data []byte) error {
	v, _ := looseInt(data)
	*id = LinkID(v)
	return nil
}

// LooseInt is an integer that also accepts numeric strings and floats.
type LooseInt int64

func (i *LooseInt) UnmarshalJSON(data []byte) error {
	v, _ := looseInt(data)
	*i = LooseInt(v)
	return nil
}

// LooseString is a string that tolerates non-string JSON values.
// Numbers keep their literal text; anything else decodes as empty.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = LooseString(str)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err == nil {
		*s = LooseString(data)
		return nil
	}
	*s = ""
	return nil
}

// Pair is a two-element value such as a position or a size. It decodes from
// either `[a, b]` or `{"0": a, "1": b}`. Elements stay opaque until the
// projector coerces them.
type Pair [2]any

func (p *Pair) UnmarshalJSON(data []byte) error {
	*p = Pair{}
	var list []any
	if err := decodeNumber(data, &list); err == nil {
		for i := 0; i < len(list) && i < 2; i++ {
			p[i] = list[i]
		}
		return nil
	}
	var obj map[string]any
	if err := decodeNumber(data, &obj); err == nil {
		p[0], p[1] = obj["0"], obj["1"]
	}
	return nil
}

// Rect is an axis-aligned box `[x, y, w, h]`.
type Rect [4]float64

func (r *Rect) UnmarshalJSON(data []byte) error {
	*r = Rect{}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		list = []json.RawMessage{obj["0"], obj["1"], obj["2"], obj["3"]}
	}
	for i := 0; i < len(list) && i < 4; i++ {
		if len(list[i]) == 0 {
			continue
		}
		if v, ok := looseFloat(list[i]); ok {
			r[i] = v
		}
	}
	return nil
}

// X, Y, W and H name the components of a Rect.
func (r Rect) X() float64 { return r[0] }
func (r Rect) Y() float64 { return r[1] }
func (r Rect) W() float64 { return r[2] }
func (r Rect) H() float64 { return r[3] }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r[0] && p.X <= r[0]+r[2] && p.Y >= r[1] && p.Y <= r[1]+r[3]
}

func decodeNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func looseInt(data []byte) (int64, bool) {
	f, ok := looseFloat(data)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func looseFloat(data []byte) (float64, bool) {
	data = bytes.TrimSpace(data)
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		f, err := n.Float64()
		return f, err == nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

package domain

// Point is a position in graph or node-local coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a node's width and height in graph units.
type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Viewport is the pixel surface the camera frames.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Camera is the pan/zoom transform applied by the renderer:
// screen = graph*Scale + Offset.
type Camera struct {
	Offset Point   `json:"offset"`
	Scale  float64 `json:"scale"`
}

// NodeKind tags the rendering variant of a node.
type NodeKind string

const (
	NodeKindStandard NodeKind = "standard"
	NodeKindNote     NodeKind = "note"
	NodeKindReroute  NodeKind = "reroute"
)

// HitRegion names the part of a node or group under a point.
type HitRegion string

const (
	HitNone     HitRegion = ""
	HitBody     HitRegion = "body"
	HitTag      HitRegion = "tag"
	HitNoteText HitRegion = "note_text"
	HitTitleBar HitRegion = "title_bar"
)

// HitTestable is implemented by descriptors that override the renderer's
// default hit-testing.
type HitTestable interface {
	HitTest(p Point) HitRegion
}

var (
	_ HitTestable = (*NodeDescriptor)(nil)
	_ HitTestable = (*GroupDescriptor)(nil)
)

// ProjectedGraph is everything the external renderer needs for one viewing session.
type ProjectedGraph struct {
	Nodes       []NodeDescriptor          `json:"nodes"`
	Groups      []GroupDescriptor         `json:"groups"`
	Links       map[LinkID]LinkDescriptor `json:"links"`
	LastNodeID  int64                     `json:"last_node_id"`
	LastLinkID  int64                     `json:"last_link_id"`
	Camera      Camera                    `json:"camera"`
	Diagnostics []Diagnostic              `json:"diagnostics,omitempty"`
}

// Node returns the descriptor with the given id.
func (g *ProjectedGraph) Node(id NodeID) (*NodeDescriptor, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// NodeColors are the fill, title and box colors of a node.
type NodeColors struct {
	Color    string `json:"color"`
	BgColor  string `json:"bgcolor"`
	BoxColor string `json:"boxcolor"`
}

// NodeDescriptor is a node ready for the renderer.
type NodeDescriptor struct {
	ID          NodeID         `json:"id"`
	Kind        NodeKind       `json:"kind"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Pos         *Point         `json:"pos,omitempty"` // nil: renderer places the node
	Size        Size           `json:"size"`
	Colors      NodeColors     `json:"colors"`
	Inputs      []Slot         `json:"inputs"`
	Outputs     []Slot         `json:"outputs"`
	Widgets     []Widget       `json:"widgets,omitempty"`
	Note        *NoteBody      `json:"note,omitempty"`
	Tag         *Tag           `json:"tag,omitempty"`
	Connectable bool           `json:"connectable"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// HitTest classifies a point in node-local coordinates.
// The tag region sits above the title bar, so it is checked first.
func (n *NodeDescriptor) HitTest(p Point) HitRegion {
	if n.Tag != nil && n.Tag.Area.Contains(p) {
		return HitTag
	}
	if n.Note != nil && n.Note.Box.Contains(p) {
		return HitNoteText
	}
	if p.X >= 0 && p.X <= float64(n.Size.W) && p.Y >= 0 && p.Y <= float64(n.Size.H) {
		return HitBody
	}
	return HitNone
}

// Slot is a colored input or output port.
type Slot struct {
	Name  string   `json:"name"`
	Label string   `json:"label"`
	Type  string   `json:"type"`
	Color string   `json:"color"`
	Link  *LinkID  `json:"link,omitempty"`  // inputs only
	Links []LinkID `json:"links,omitempty"` // outputs only
}

// Widget is a read-only display of one widget value.
type Widget struct {
	Index     int  `json:"index"`
	Value     any  `json:"value"`
	Multiline bool `json:"multiline"`
	ReadOnly  bool `json:"read_only"`
}

// NoteBody is the word-wrapped text box of a Note node.
type NoteBody struct {
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
	Box   Rect     `json:"box"` // node-local
}

// Tag is the "#id nickname" label drawn above a node.
type Tag struct {
	Text      string `json:"text"`
	Nickname  string `json:"nickname,omitempty"`
	PluginURL string `json:"plugin_url,omitempty"`
	Area      Rect   `json:"area"` // node-local click area
}

// CopyText is what a click on the tag copies: the plugin URL when known,
// otherwise the nickname part of the tag.
func (t *Tag) CopyText() string {
	if t.PluginURL != "" {
		return t.PluginURL
	}
	return t.Nickname
}

// LinkDescriptor is a resolved connection between two slots.
type LinkDescriptor struct {
	ID         LinkID `json:"id"`
	Type       string `json:"type"`
	OriginID   NodeID `json:"origin_id"`
	OriginSlot int    `json:"origin_slot"`
	TargetID   NodeID `json:"target_id"`
	TargetSlot int    `json:"target_slot"`
	Color      string `json:"color"`
}

// GroupDescriptor is a group ready for the renderer.
type GroupDescriptor struct {
	Title          string  `json:"title"`
	Bounding       Rect    `json:"bounding"`
	Color          string  `json:"color"`
	FontSize       float64 `json:"font_size"`
	TitleBarHeight float64 `json:"title_bar_height"`
}

// HitTest only reports hits on the title bar, in graph coordinates, so
// clicks on the group body fall through to the canvas.
func (g *GroupDescriptor) HitTest(p Point) HitRegion {
	if !g.Bounding.Contains(p) {
		return HitNone
	}
	local := p.Y - g.Bounding.Y()
	if local >= 0 && local <= g.TitleBarHeight {
		return HitTitleBar
	}
	return HitNone
}

// Diagnostic records an entry the projector dropped or defaulted.
type Diagnostic struct {
	LinkID LinkID `json:"link_id,omitempty"`
	NodeID NodeID `json:"node_id,omitempty"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (d Diagnostic) Unwrap() error { return d.Err }

func (d Diagnostic) Error() string { return d.Reason }

// Plugin identifies the extension package that provides a node type.
type Plugin struct {
	URL      string `json:"url"`
	Nickname string `json:"nickname,omitempty"`
}

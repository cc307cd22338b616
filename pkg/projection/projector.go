package projection

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/pkg/domain"
)

// Projector turns a canonical workflow into a ProjectedGraph. It never fails:
// missing or malformed fields take defaults and unresolvable links are
// dropped with a Diagnostic. A Projector is safe for concurrent use.
type Projector struct {
	cfg       Config
	measurer  TextMeasurer
	nicknames NicknameLookup
	logger    *slog.Logger
}

// Option configures the Projector.
type Option func(*Projector)

// WithMeasurer sets the text measurer used for note wrapping and tag geometry.
func WithMeasurer(m TextMeasurer) Option {
	return func(p *Projector) {
		p.measurer = m
	}
}

// WithNicknames enables plugin nicknames on node tags.
func WithNicknames(n NicknameLookup) Option {
	return func(p *Projector) {
		if n != nil {
			p.nicknames = n
		}
	}
}

// WithLogger sets the logger used to report dropped entries.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Projector) {
		p.logger = logger
	}
}

// New creates a Projector for cfg.
func New(cfg Config, opts ...Option) *Projector {
	if cfg.Palette == nil {
		cfg.Palette = DefaultPalette()
	}
	p := &Projector{
		cfg:       cfg,
		measurer:  ApproxMeasurer,
		nicknames: noNicknames{},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the projector's configuration.
func (p *Projector) Config() Config { return p.cfg }

// Project builds the render-ready graph of w framed for vp.
func (p *Projector) Project(w *domain.Workflow, vp domain.Viewport) *domain.ProjectedGraph {
	g := &domain.ProjectedGraph{
		Nodes:  []domain.NodeDescriptor{},
		Groups: []domain.GroupDescriptor{},
		Links:  map[domain.LinkID]domain.LinkDescriptor{},
	}
	if w == nil {
		g.Camera = Fit(nil, vp, p.cfg.Fit, p.cfg.DefaultPos)
		return g
	}

	// Later nodes with a duplicate id shadow earlier ones for link resolution.
	index := make(map[domain.NodeID]int, len(w.Nodes))
	for _, n := range w.Nodes {
		index[n.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, p.projectNode(n))
	}

	for _, grp := range w.Groups {
		g.Groups = append(g.Groups, p.projectGroup(grp))
	}

	p.resolveLinks(g, w.Links, index)

	g.LastNodeID = int64(w.LastNodeID)
	for _, n := range w.Nodes {
		g.LastNodeID = max(g.LastNodeID, int64(n.ID))
	}
	g.LastLinkID = int64(w.LastLinkID)
	for _, l := range w.Links {
		if l.Valid() {
			g.LastLinkID = max(g.LastLinkID, int64(l.ID))
		}
	}

	g.Camera = Fit(g.Nodes, vp, p.cfg.Fit, p.cfg.DefaultPos)
	return g
}

func (p *Projector) projectNode(n domain.Node) domain.NodeDescriptor {
	nodeType := string(n.Type)
	d := domain.NodeDescriptor{
		ID:          n.ID,
		Kind:        domain.NodeKindStandard,
		Type:        nodeType,
		Title:       firstNonEmpty(string(n.Title), nodeType, "Node"),
		Pos:         resolvePos(n.Pos),
		Inputs:      []domain.Slot{},
		Outputs:     []domain.Slot{},
		Connectable: true,
		Properties:  n.Properties,
		Colors: domain.NodeColors{
			Color:    firstNonEmpty(string(n.Color), p.cfg.NodeColors.Color),
			BgColor:  firstNonEmpty(string(n.BgColor), p.cfg.NodeColors.BgColor),
			BoxColor: firstNonEmpty(string(n.BoxColor), p.cfg.NodeColors.BoxColor),
		},
	}

	if nodeType == domain.NodeTypeNote {
		d.Kind = domain.NodeKindNote
		d.Connectable = false
		d.Size = resolveSize(n.Size, p.cfg.Note.DefaultSize)
		d.Note = p.noteBody(n, d.Size)
	} else {
		if nodeType == domain.NodeTypeReroute {
			d.Kind = domain.NodeKindReroute
		}
		d.Size = resolveSize(n.Size, domain.Size{W: p.cfg.Skin.Width, H: p.cfg.Skin.Height})
		d.Inputs = p.slots(n.Inputs)
		d.Outputs = p.slots(n.Outputs)
		d.Widgets = p.widgets(n.WidgetValues)
	}
	if d.Kind != domain.NodeKindReroute {
		d.Tag = p.tag(d.ID, nodeType, d.Size)
	}
	return d
}

func (p *Projector) slots(ports []*domain.Port) []domain.Slot {
	out := make([]domain.Slot, 0, len(ports))
	for _, port := range ports {
		if port == nil {
			continue
		}
		typ := strings.ToUpper(string(port.Type))
		if typ == "" {
			typ = domain.WildcardType
		}
		name := string(port.Name)
		out = append(out, domain.Slot{
			Name:  name,
			Label: firstNonEmpty(string(port.Label), name),
			Type:  typ,
			Color: p.cfg.Palette.Color(typ),
		})
	}
	return out
}

func (p *Projector) widgets(values any) []domain.Widget {
	if values == nil {
		return nil
	}
	list, ok := values.([]any)
	if !ok {
		list = []any{values}
	}

	var out []domain.Widget
	for i, v := range list {
		if v == nil || v == "" {
			continue
		}
		out = append(out, domain.Widget{
			Index:     i,
			Value:     v,
			Multiline: p.multiline(v),
			ReadOnly:  true,
		})
	}
	return out
}

func (p *Projector) multiline(v any) bool {
	switch t := v.(type) {
	case []any:
		return true
	case string:
		return strings.Contains(t, "\n") || utf16Len(t) > p.cfg.MultilineThreshold
	}
	return false
}

// utf16Len is the length of s in UTF-16 code units, the unit the threshold
// is defined in.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

func (p *Projector) noteBody(n domain.Node, size domain.Size) *domain.NoteBody {
	var first any
	switch t := n.WidgetValues.(type) {
	case []any:
		if len(t) > 0 {
			first = t[0]
		}
	default:
		first = t
	}

	style := p.cfg.Note
	box := domain.Rect{
		style.Margin,
		style.Margin,
		float64(size.W) - 2*style.Margin,
		float64(size.H) - 2*style.Margin,
	}
	text := displayText(first)
	maxWidth := box.W() - 2*style.Padding
	lines := Wrap(text, maxWidth, func(s string) float64 {
		return p.measurer.Measure(s, style.FontSize)
	})
	if lines == nil {
		lines = []string{}
	}
	return &domain.NoteBody{Text: text, Lines: lines, Box: box}
}

// tag builds the "#id nickname" label. Its click area starts at the tag's
// left edge, reaches 10 units past the node's right edge, and extends down
// to the top of the node.
func (p *Projector) tag(id domain.NodeID, nodeType string, size domain.Size) *domain.Tag {
	t := &domain.Tag{Text: "#" + strconv.FormatInt(int64(id), 10)}
	if plugin, ok := p.nicknames.Lookup(nodeType); ok {
		t.PluginURL = plugin.URL
		if plugin.Nickname != "" {
			t.Nickname = plugin.Nickname
			t.Text += " " + plugin.Nickname
		}
	}

	style := p.cfg.Tag
	tagW := p.measurer.Measure(t.Text, style.FontSize) + 2*style.Padding
	tagH := style.FontSize + 2*style.Padding
	left := float64(size.W) - tagW
	right := float64(size.W) + 10
	t.Area = domain.Rect{left, -tagH - 15, right - left, tagH + 32}
	return t
}

func (p *Projector) projectGroup(g domain.Group) domain.GroupDescriptor {
	fontSize := p.cfg.Group.FontSize
	if f, ok := toFloat(g.FontSize); ok && f > 0 {
		fontSize = f
	}
	return domain.GroupDescriptor{
		Title:          firstNonEmpty(string(g.Title), p.cfg.Group.Title),
		Bounding:       g.Bounding,
		Color:          firstNonEmpty(string(g.Color), p.cfg.Group.Color),
		FontSize:       fontSize,
		TitleBarHeight: p.cfg.Group.TitleBarHeight,
	}
}

func (p *Projector) resolveLinks(g *domain.ProjectedGraph, links []domain.Link, index map[domain.NodeID]int) {
	drop := func(id domain.LinkID, reason string) {
		g.Diagnostics = append(g.Diagnostics, domain.Diagnostic{
			LinkID: id,
			Reason: reason,
			Err:    fmt.Errorf("link %d: %s: %w", id, reason, domain.ErrLinkResolutionSkipped),
		})
		p.logger.Debug("Link dropped", "link", id, "reason", reason)
	}

	for _, l := range links {
		if !l.Valid() {
			drop(0, "malformed link entry")
			continue
		}
		oi, ok := index[l.OriginID]
		if !ok {
			drop(l.ID, fmt.Sprintf("origin node %d not found", l.OriginID))
			continue
		}
		ti, ok := index[l.TargetID]
		if !ok {
			drop(l.ID, fmt.Sprintf("target node %d not found", l.TargetID))
			continue
		}
		origin, target := &g.Nodes[oi], &g.Nodes[ti]
		if l.OriginSlot < 0 || l.OriginSlot >= len(origin.Outputs) {
			drop(l.ID, fmt.Sprintf("origin slot %d out of range on node %d", l.OriginSlot, l.OriginID))
			continue
		}
		if l.TargetSlot < 0 || l.TargetSlot >= len(target.Inputs) {
			drop(l.ID, fmt.Sprintf("target slot %d out of range on node %d", l.TargetSlot, l.TargetID))
			continue
		}

		if prev, dup := g.Links[l.ID]; dup {
			unregister(g, prev, index)
		}

		out := &origin.Outputs[l.OriginSlot]
		in := &target.Inputs[l.TargetSlot]
		typ := linkType(out.Type, in.Type)
		out.Type, in.Type = typ, typ
		out.Links = append(out.Links, l.ID)
		id := l.ID
		in.Link = &id

		g.Links[l.ID] = domain.LinkDescriptor{
			ID:         l.ID,
			Type:       typ,
			OriginID:   l.OriginID,
			OriginSlot: l.OriginSlot,
			TargetID:   l.TargetID,
			TargetSlot: l.TargetSlot,
			Color:      p.cfg.Palette.Color(typ),
		}
	}
}

// unregister removes a link that a later entry with the same id replaces.
func unregister(g *domain.ProjectedGraph, l domain.LinkDescriptor, index map[domain.NodeID]int) {
	out := &g.Nodes[index[l.OriginID]].Outputs[l.OriginSlot]
	kept := out.Links[:0]
	for _, id := range out.Links {
		if id != l.ID {
			kept = append(kept, id)
		}
	}
	out.Links = kept
	in := &g.Nodes[index[l.TargetID]].Inputs[l.TargetSlot]
	if in.Link != nil && *in.Link == l.ID {
		in.Link = nil
	}
}

// linkType prefers the output's concrete type, then the input's.
func linkType(out, in string) string {
	if out != "" && out != domain.WildcardType {
		return out
	}
	if in != "" && in != domain.WildcardType {
		return in
	}
	return domain.WildcardType
}

func resolveSize(pair *domain.Pair, def domain.Size) domain.Size {
	if pair == nil {
		return def
	}
	return domain.Size{
		W: resolveAxis(pair[0], def.W),
		H: resolveAxis(pair[1], def.H),
	}
}

func resolvePos(pair *domain.Pair) *domain.Point {
	if pair == nil {
		return nil
	}
	x, okX := toFloat(pair[0])
	y, okY := toFloat(pair[1])
	if !okX || !okY {
		return nil
	}
	return &domain.Point{X: x, Y: y}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

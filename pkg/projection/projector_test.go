package projection

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testViewport = domain.Viewport{Width: 1280, Height: 720}

func decode(t *testing.T, src string) *domain.Workflow {
	t.Helper()
	var wf domain.Workflow
	require.NoError(t, json.Unmarshal([]byte(src), &wf))
	return &wf
}

type fakeNicknames map[string]domain.Plugin

func (f fakeNicknames) Lookup(nodeType string) (domain.Plugin, bool) {
	p, ok := f[nodeType]
	return p, ok
}

func TestProject_NoteNode(t *testing.T) {
	wf := decode(t, `{"nodes":[{"id":1,"type":"Note","widgets_values":["hello"]}],"links":[],"groups":[]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	require.Len(t, g.Nodes, 1)
	n := g.Nodes[0]
	assert.Equal(t, domain.NodeKindNote, n.Kind)
	assert.Empty(t, n.Inputs)
	assert.Empty(t, n.Outputs)
	assert.Empty(t, n.Widgets)
	assert.False(t, n.Connectable)
	require.NotNil(t, n.Note)
	assert.Equal(t, "hello", n.Note.Text)
	assert.Equal(t, []string{"hello"}, n.Note.Lines)
	assert.Equal(t, domain.Size{W: 280, H: 150}, n.Size)
	assert.Equal(t, domain.Rect{10, 10, 260, 130}, n.Note.Box)
}

func TestProject_NoteWithoutText(t *testing.T) {
	wf := decode(t, `{"nodes":[{"id":1,"type":"Note"}]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	require.NotNil(t, g.Nodes[0].Note)
	assert.Equal(t, "", g.Nodes[0].Note.Text)
	assert.Empty(t, g.Nodes[0].Note.Lines)
}

func TestProject_DropsLinkToMissingNode(t *testing.T) {
	wf := decode(t, `{
		"nodes":[{"id":1,"type":"Loader","outputs":[{"name":"IMAGE","type":"IMAGE"}]}],
		"links":[[5,1,0,99,0]]
	}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	assert.NotContains(t, g.Links, domain.LinkID(5))
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, domain.LinkID(5), g.Diagnostics[0].LinkID)
	assert.True(t, errors.Is(g.Diagnostics[0].Err, domain.ErrLinkResolutionSkipped))
	assert.Empty(t, g.Nodes[0].Outputs[0].Links)
}

func TestProject_DropsLinkWithMissingSlot(t *testing.T) {
	wf := decode(t, `{
		"nodes":[
			{"id":1,"type":"A","outputs":[{"name":"out","type":"INT"}]},
			{"id":2,"type":"B","inputs":[{"name":"in","type":"INT"}]}
		],
		"links":[[1,1,3,2,0],[2,1,0,2,7],"garbage",[3,1,0]]
	}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	assert.Empty(t, g.Links)
	assert.Len(t, g.Diagnostics, 4)
}

func TestProject_SizeCoercion(t *testing.T) {
	wf := decode(t, `{"nodes":[
		{"id":1,"type":"A","size":{"0":"340","1":"bad"}},
		{"id":2,"type":"B","size":[320.9,"64px"]},
		{"id":3,"type":"C"},
		{"id":4,"type":"D","size":[0,null]}
	]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	assert.Equal(t, domain.Size{W: 340, H: 100}, g.Nodes[0].Size)
	assert.Equal(t, domain.Size{W: 320, H: 64}, g.Nodes[1].Size)
	assert.Equal(t, domain.Size{W: 200, H: 100}, g.Nodes[2].Size)
	assert.Equal(t, domain.Size{W: 200, H: 100}, g.Nodes[3].Size)
}

func TestProject_ComfySkin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Skin = SkinComfy
	wf := decode(t, `{"nodes":[{"id":1,"type":"A","size":{"0":"340","1":"bad"}}]}`)

	g := New(cfg).Project(wf, testViewport)

	assert.Equal(t, domain.Size{W: 340, H: 120}, g.Nodes[0].Size)
}

func TestProject_Position(t *testing.T) {
	wf := decode(t, `{"nodes":[
		{"id":1,"type":"A","pos":[100,-20]},
		{"id":2,"type":"A","pos":{"0":5,"1":"6"}},
		{"id":3,"type":"A","pos":[1,"x"]},
		{"id":4,"type":"A"}
	]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	assert.Equal(t, &domain.Point{X: 100, Y: -20}, g.Nodes[0].Pos)
	assert.Equal(t, &domain.Point{X: 5, Y: 6}, g.Nodes[1].Pos)
	assert.Nil(t, g.Nodes[2].Pos)
	assert.Nil(t, g.Nodes[3].Pos)
}

func TestProject_PortColors(t *testing.T) {
	wf := decode(t, `{"nodes":[{
		"id":1,"type":"KSampler",
		"inputs":[
			{"name":"model","type":"model"},
			{"name":"seed","type":"Int","label":"Seed"},
			{"name":"any"},
			null,
			{"name":"weird","type":"NOT_A_TYPE"}
		],
		"outputs":[{"name":"LATENT","type":"LATENT"}]
	}]}`)
	palette := DefaultPalette()

	g := New(DefaultConfig()).Project(wf, testViewport)

	in := g.Nodes[0].Inputs
	require.Len(t, in, 4)
	assert.Equal(t, "MODEL", in[0].Type)
	assert.Equal(t, palette["MODEL"], in[0].Color)
	assert.Equal(t, "model", in[0].Label)
	assert.Equal(t, "INT", in[1].Type)
	assert.Equal(t, "Seed", in[1].Label)
	assert.Equal(t, domain.WildcardType, in[2].Type)
	assert.Equal(t, palette[domain.WildcardType], in[2].Color)
	assert.Equal(t, palette[domain.WildcardType], in[3].Color)

	out := g.Nodes[0].Outputs
	require.Len(t, out, 1)
	assert.Equal(t, palette["LATENT"], out[0].Color)

	for _, s := range append(in, out...) {
		assert.NotEmpty(t, s.Color, "slot %s has no color", s.Name)
	}
}

func TestProject_LinkResolution(t *testing.T) {
	wf := decode(t, `{
		"nodes":[
			{"id":1,"type":"Loader","outputs":[{"name":"out","type":"*","links":[42]}]},
			{"id":2,"type":"Preview","inputs":[{"name":"images","type":"image","link":42}]}
		],
		"links":[[7,1,0,2,0]],
		"last_link_id":3
	}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	require.Contains(t, g.Links, domain.LinkID(7))
	link := g.Links[7]
	assert.Equal(t, "IMAGE", link.Type)
	assert.Equal(t, DefaultPalette()["IMAGE"], link.Color)
	assert.Empty(t, g.Diagnostics)

	out := g.Nodes[0].Outputs[0]
	in := g.Nodes[1].Inputs[0]
	assert.Equal(t, "IMAGE", out.Type)
	assert.Equal(t, "IMAGE", in.Type)
	assert.Equal(t, []domain.LinkID{7}, out.Links)
	require.NotNil(t, in.Link)
	assert.Equal(t, domain.LinkID(7), *in.Link)

	assert.Equal(t, int64(7), g.LastLinkID)
}

func TestProject_MultilineCountsUTF16Units(t *testing.T) {
	// 26 astral runes are 52 UTF-16 units; 50 BMP runes are 50 units.
	emoji := strings.Repeat("\U0001F600", 26)
	accents := strings.Repeat("é", 50)
	wf := decode(t, `{"nodes":[{"id":1,"type":"A","widgets_values":["`+emoji+`","`+accents+`"]}]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	w := g.Nodes[0].Widgets
	require.Len(t, w, 2)
	assert.True(t, w[0].Multiline)
	assert.False(t, w[1].Multiline)
}

func TestProject_DuplicateLinkIDReplacesEarlierEntry(t *testing.T) {
	wf := decode(t, `{
		"nodes":[
			{"id":1,"type":"A","outputs":[{"name":"a","type":"INT"},{"name":"b","type":"INT"}]},
			{"id":2,"type":"B","inputs":[{"name":"x","type":"INT"},{"name":"y","type":"INT"}]}
		],
		"links":[[1,1,0,2,0],[1,1,1,2,1]]
	}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	require.Len(t, g.Links, 1)
	assert.Equal(t, 1, g.Links[1].OriginSlot)
	assert.Empty(t, g.Nodes[0].Outputs[0].Links)
	assert.Nil(t, g.Nodes[1].Inputs[0].Link)
	assert.Equal(t, []domain.LinkID{1}, g.Nodes[0].Outputs[1].Links)
}

func TestProject_Watermarks(t *testing.T) {
	wf := decode(t, `{"nodes":[{"id":12,"type":"A"},{"id":"30","type":"B"}],"last_node_id":4,"last_link_id":50}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	assert.Equal(t, int64(30), g.LastNodeID)
	assert.Equal(t, int64(50), g.LastLinkID)
}

func TestProject_Widgets(t *testing.T) {
	long := `"` + strings.Repeat("a", 51) + `"`
	wf := decode(t, `{"nodes":[
		{"id":1,"type":"A","widgets_values":[42,null,"",false,"a\nb",[1,2],`+long+`,"short"]},
		{"id":2,"type":"B","widgets_values":"lonely"},
		{"id":3,"type":"C","widgets_values":{"seed":1}}
	]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	w := g.Nodes[0].Widgets
	require.Len(t, w, 6)
	assert.Equal(t, []int{0, 3, 4, 5, 6, 7}, []int{w[0].Index, w[1].Index, w[2].Index, w[3].Index, w[4].Index, w[5].Index})
	assert.Equal(t, []bool{false, false, true, true, true, false},
		[]bool{w[0].Multiline, w[1].Multiline, w[2].Multiline, w[3].Multiline, w[4].Multiline, w[5].Multiline})
	for _, widget := range w {
		assert.True(t, widget.ReadOnly)
	}

	require.Len(t, g.Nodes[1].Widgets, 1)
	assert.Equal(t, "lonely", g.Nodes[1].Widgets[0].Value)
	require.Len(t, g.Nodes[2].Widgets, 1)
}

func TestProject_NodeDefaults(t *testing.T) {
	wf := decode(t, `{"nodes":[{"id":1,"type":"A","bgcolor":"#222"},{"id":2}]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	assert.Equal(t, domain.NodeColors{Color: "#131313FF", BgColor: "#222", BoxColor: "#7D7F8DFF"}, g.Nodes[0].Colors)
	assert.Equal(t, "A", g.Nodes[0].Title)
	assert.Equal(t, "Node", g.Nodes[1].Title)
	assert.True(t, g.Nodes[0].Connectable)
}

func TestProject_Tags(t *testing.T) {
	wf := decode(t, `{"nodes":[
		{"id":3,"type":"FaceDetailer","size":[200,100]},
		{"id":4,"type":"Reroute"},
		{"id":5,"type":"KSampler"},
		{"id":6,"type":"Silent"}
	]}`)
	nicknames := fakeNicknames{
		"FaceDetailer": {URL: "https://github.com/example/impact-pack", Nickname: "Impact"},
		"Silent":       {URL: "https://github.com/example/silent"},
	}

	g := New(DefaultConfig(), WithNicknames(nicknames)).Project(wf, testViewport)

	tag := g.Nodes[0].Tag
	require.NotNil(t, tag)
	assert.Equal(t, "#3 Impact", tag.Text)
	assert.Equal(t, "https://github.com/example/impact-pack", tag.CopyText())

	assert.Equal(t, domain.NodeKindReroute, g.Nodes[1].Kind)
	assert.Nil(t, g.Nodes[1].Tag)

	require.NotNil(t, g.Nodes[2].Tag)
	assert.Equal(t, "#5", g.Nodes[2].Tag.Text)
	assert.Equal(t, "", g.Nodes[2].Tag.CopyText())

	assert.Equal(t, "#6", g.Nodes[3].Tag.Text)
	assert.Equal(t, "https://github.com/example/silent", g.Nodes[3].Tag.PluginURL)
}

func TestProject_TagHitTest(t *testing.T) {
	wf := decode(t, `{"nodes":[{"id":3,"type":"A","size":[200,100]}]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)
	n := &g.Nodes[0]

	// "#3" measures 15.6 at 13px: tag is 25.6 wide and 23 high.
	assert.InDelta(t, 174.4, n.Tag.Area.X(), 1e-9)
	assert.InDelta(t, -38, n.Tag.Area.Y(), 1e-9)
	assert.InDelta(t, 35.6, n.Tag.Area.W(), 1e-9)
	assert.InDelta(t, 55, n.Tag.Area.H(), 1e-9)

	assert.Equal(t, domain.HitTag, n.HitTest(domain.Point{X: 205, Y: -20}))
	assert.Equal(t, domain.HitTag, n.HitTest(domain.Point{X: 190, Y: 10}))
	assert.Equal(t, domain.HitBody, n.HitTest(domain.Point{X: 50, Y: 50}))
	assert.Equal(t, domain.HitNone, n.HitTest(domain.Point{X: 50, Y: -20}))
}

func TestProject_Groups(t *testing.T) {
	wf := decode(t, `{"groups":[
		{"bounding":[0,0,400,300]},
		{"title":"Upscale","bounding":[10,20,100,100],"color":"#3f789e","font_size":"18"}
	]}`)

	g := New(DefaultConfig()).Project(wf, testViewport)

	require.Len(t, g.Groups, 2)
	assert.Equal(t, "Group", g.Groups[0].Title)
	assert.Equal(t, "#A88", g.Groups[0].Color)
	assert.Equal(t, 24.0, g.Groups[0].FontSize)
	assert.Equal(t, 30.0, g.Groups[0].TitleBarHeight)

	assert.Equal(t, "Upscale", g.Groups[1].Title)
	assert.Equal(t, 18.0, g.Groups[1].FontSize)

	grp := &g.Groups[1]
	assert.Equal(t, domain.HitTitleBar, grp.HitTest(domain.Point{X: 50, Y: 35}))
	assert.Equal(t, domain.HitNone, grp.HitTest(domain.Point{X: 50, Y: 80}))
	assert.Equal(t, domain.HitNone, grp.HitTest(domain.Point{X: 500, Y: 35}))
}

func TestProject_NilWorkflow(t *testing.T) {
	g := New(DefaultConfig()).Project(nil, testViewport)

	assert.Empty(t, g.Nodes)
	assert.Equal(t, 1.5, g.Camera.Scale)
}

func TestProject_NeverPanicsOnHostileInput(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"nodes":[{}]}`,
		`{"nodes":[{"id":"x","inputs":"nope","outputs":[null],"size":"big","pos":7}],"links":{"a":1}}`,
		`{"nodes":[{"id":1,"type":"Note","widgets_values":[{"a":[1,2]}]}],"groups":[{"bounding":"x"}]}`,
	}
	p := New(DefaultConfig())
	for _, src := range inputs {
		var wf domain.Workflow
		_ = json.Unmarshal([]byte(src), &wf)
		assert.NotPanics(t, func() { p.Project(&wf, testViewport) }, src)
	}
}

package projection

import (
	"fmt"
	"strings"

	"github.com/aretw0/graphlens/pkg/domain"
)

// Skin sets the default node size used when a node declares none.
type Skin struct {
	Name   string
	Width  int
	Height int
}

var (
	SkinClassic = Skin{Name: "classic", Width: 200, Height: 100}
	SkinComfy   = Skin{Name: "comfy", Width: 280, Height: 120}
)

// SkinByName resolves a configured skin name. An empty name is the classic skin.
func SkinByName(name string) (Skin, error) {
	switch strings.ToLower(name) {
	case "", SkinClassic.Name:
		return SkinClassic, nil
	case SkinComfy.Name:
		return SkinComfy, nil
	}
	return Skin{}, fmt.Errorf("unknown node skin %q", name)
}

// Palette maps an uppercase port type to a color.
type Palette map[string]string

// DefaultPalette returns the link colors of the pipeline tool's built-in types.
func DefaultPalette() Palette {
	return Palette{
		"IMAGE":        "#64b5f6",
		"MODEL":        "#b39ddb",
		"VAE":          "#ff6e6e",
		"CLIP":         "#ffd500",
		"CONDITIONING": "#ffa931",
		"LATENT":       "#ff9cf9",
		"CONTROL_NET":  "#00d78d",
		"STRING":       "#80CE4C",
		"INT":          "#29699c",
		"FLOAT":        "#9955ff",
		"BOOLEAN":      "#ff5599",
		"TUPLE":        "#55ff99",
		"LIST":         "#4BCA6F",
		"MASK":         "#5599ff",

		domain.WildcardType: "#99aa99",
	}
}

// Color returns the color of typ, falling back to the wildcard entry.
func (p Palette) Color(typ string) string {
	if c, ok := p[typ]; ok {
		return c
	}
	return p[domain.WildcardType]
}

// Merge returns a copy of p with overrides applied. Override keys are uppercased.
func (p Palette) Merge(overrides map[string]string) Palette {
	out := make(Palette, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// NoteStyle is the text box geometry of Note nodes.
type NoteStyle struct {
	Margin      float64
	Padding     float64
	LineHeight  float64
	FontSize    float64
	DefaultSize domain.Size
}

// TagStyle is the geometry of the "#id nickname" tag.
type TagStyle struct {
	FontSize float64
	Padding  float64
}

// GroupStyle holds group defaults.
type GroupStyle struct {
	Title          string
	Color          string
	FontSize       float64
	TitleBarHeight float64
}

// FitStyle controls the fit-to-view camera.
type FitStyle struct {
	Margin       float64
	MaxScale     float64
	MinScale     float64
	DefaultScale float64
}

// Config is the static configuration of a Projector. It is built once at
// startup and never mutated afterwards.
type Config struct {
	Skin               Skin
	Palette            Palette
	NodeColors         domain.NodeColors
	MultilineThreshold int
	Note               NoteStyle
	Tag                TagStyle
	Group              GroupStyle
	Fit                FitStyle
	// DefaultPos is where the renderer puts a node without a position.
	DefaultPos domain.Point
}

// DefaultConfig returns the viewer's stock look.
func DefaultConfig() Config {
	return Config{
		Skin:    SkinClassic,
		Palette: DefaultPalette(),
		NodeColors: domain.NodeColors{
			Color:    "#131313FF",
			BgColor:  "#131313FF",
			BoxColor: "#7D7F8DFF",
		},
		MultilineThreshold: 50,
		Note: NoteStyle{
			Margin:      10,
			Padding:     15,
			LineHeight:  18,
			FontSize:    14,
			DefaultSize: domain.Size{W: 280, H: 150},
		},
		Tag: TagStyle{FontSize: 13, Padding: 5},
		Group: GroupStyle{
			Title:          "Group",
			Color:          "#A88",
			FontSize:       24,
			TitleBarHeight: 30,
		},
		Fit: FitStyle{
			Margin:       50,
			MaxScale:     1.5,
			MinScale:     0.8,
			DefaultScale: 1.5,
		},
		DefaultPos: domain.Point{X: 10, Y: 10},
	}
}

// TextMeasurer reports the rendered width of text at a font size.
type TextMeasurer interface {
	Measure(text string, fontSize float64) float64
}

// MeasureFunc adapts a function to TextMeasurer.
type MeasureFunc func(text string, fontSize float64) float64

func (f MeasureFunc) Measure(text string, fontSize float64) float64 { return f(text, fontSize) }

// ApproxMeasurer assumes every rune is 0.6em wide, which matches common
// monospace faces closely enough for layout.
var ApproxMeasurer = MeasureFunc(func(text string, fontSize float64) float64 {
	return float64(len([]rune(text))) * fontSize * 0.6
})

// NicknameLookup resolves the plugin that provides a node type.
// Implementations must be safe for concurrent use and must not block.
type NicknameLookup interface {
	Lookup(nodeType string) (domain.Plugin, bool)
}

type noNicknames struct{}

func (noNicknames) Lookup(string) (domain.Plugin, bool) { return domain.Plugin{}, false }

package projection

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func runeWidth(s string) float64 { return float64(len([]rune(s))) }

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth float64
		want     []string
	}{
		{"empty", "", 10, nil},
		{"fits", "hello", 10, []string{"hello"}},
		{"overflowing space ends line", "hello world", 5, []string{"hello", "world"}},
		{"breaks at last space", "ab cd", 4, []string{"ab", "cd"}},
		{"force break without space", "abcdefgh", 3, []string{"abc", "def", "gh"}},
		{"explicit newlines", "a\n\nb", 10, []string{"a", "", "b"}},
		{"trailing newline", "a\n", 10, []string{"a"}},
		{"multibyte runes", "héllo wörld", 5, []string{"héllo", "wörld"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, tt.maxWidth, runeWidth))
		})
	}
}

func TestFit(t *testing.T) {
	style := DefaultConfig().Fit
	origin := domain.Point{X: 10, Y: 10}

	t.Run("no nodes keeps default camera", func(t *testing.T) {
		cam := Fit(nil, domain.Viewport{Width: 800, Height: 600}, style, origin)
		assert.Equal(t, domain.Camera{Scale: 1.5}, cam)
	})

	t.Run("caps scale and centers content", func(t *testing.T) {
		nodes := []domain.NodeDescriptor{{Pos: &domain.Point{}, Size: domain.Size{W: 200, H: 100}}}
		cam := Fit(nodes, domain.Viewport{Width: 1000, Height: 1000}, style, origin)
		assert.Equal(t, 1.5, cam.Scale)
		assert.InDelta(t, 350, cam.Offset.X, 1e-9)
		assert.InDelta(t, 425, cam.Offset.Y, 1e-9)
	})

	t.Run("scales down to fit", func(t *testing.T) {
		nodes := []domain.NodeDescriptor{
			{Pos: &domain.Point{X: 0, Y: 0}, Size: domain.Size{W: 100, H: 100}},
			{Pos: &domain.Point{X: 1900, Y: 0}, Size: domain.Size{W: 100, H: 100}},
		}
		cam := Fit(nodes, domain.Viewport{Width: 2100, Height: 2100}, style, origin)
		assert.InDelta(t, 1.0, cam.Scale, 1e-9)
	})

	t.Run("clamps to minimum scale", func(t *testing.T) {
		nodes := []domain.NodeDescriptor{{Pos: &domain.Point{}, Size: domain.Size{W: 200, H: 100}}}
		cam := Fit(nodes, domain.Viewport{Width: 100, Height: 100}, style, origin)
		assert.Equal(t, 0.8, cam.Scale)
	})

	t.Run("unpositioned nodes use the default position", func(t *testing.T) {
		nodes := []domain.NodeDescriptor{{Size: domain.Size{W: 200, H: 100}}}
		cam := Fit(nodes, domain.Viewport{Width: 1000, Height: 1000}, style, origin)
		assert.InDelta(t, 500-110*1.5, cam.Offset.X, 1e-9)
		assert.InDelta(t, 500-60*1.5, cam.Offset.Y, 1e-9)
	})
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{json.Number("340"), 340, true},
		{json.Number("12.9"), 12, true},
		{json.Number("-3.5"), -3, true},
		{"340", 340, true},
		{"  64px", 64, true},
		{"-7", -7, true},
		{"0x1A", 26, true},
		{"bad", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{true, 0, false},
		{[]any{1}, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseInt(tt.in)
		assert.Equal(t, tt.ok, ok, "%#v", tt.in)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}
}

func TestSkinByName(t *testing.T) {
	s, err := SkinByName("COMFY")
	assert.NoError(t, err)
	assert.Equal(t, SkinComfy, s)

	s, err = SkinByName("")
	assert.NoError(t, err)
	assert.Equal(t, SkinClassic, s)

	_, err = SkinByName("fancy")
	assert.Error(t, err)
}

func TestPaletteMerge(t *testing.T) {
	p := DefaultPalette().Merge(map[string]string{"image": "#000000", "custom": "#111111"})

	assert.Equal(t, "#000000", p.Color("IMAGE"))
	assert.Equal(t, "#111111", p.Color("CUSTOM"))
	assert.Equal(t, "#99aa99", p.Color("UNKNOWN"))
	assert.Equal(t, "#64b5f6", DefaultPalette().Color("IMAGE"))
}

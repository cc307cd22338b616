package projection

import (
	"math"

	"github.com/aretw0/graphlens/pkg/domain"
)

// Fit computes the camera that frames every node inside vp. Nodes without a
// position are measured at defaultPos, where the renderer will place them.
// With no nodes the default camera is returned.
func Fit(nodes []domain.NodeDescriptor, vp domain.Viewport, style FitStyle, defaultPos domain.Point) domain.Camera {
	if len(nodes) == 0 {
		return domain.Camera{Scale: style.DefaultScale}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		pos := defaultPos
		if n.Pos != nil {
			pos = *n.Pos
		}
		minX = math.Min(minX, pos.X)
		minY = math.Min(minY, pos.Y)
		maxX = math.Max(maxX, pos.X+float64(n.Size.W))
		maxY = math.Max(maxY, pos.Y+float64(n.Size.H))
	}

	minX -= style.Margin
	minY -= style.Margin
	maxX += style.Margin
	maxY += style.Margin

	scale := style.MaxScale
	if w := maxX - minX; w > 0 {
		scale = math.Min(scale, vp.Width/w)
	}
	if h := maxY - minY; h > 0 {
		scale = math.Min(scale, vp.Height/h)
	}
	// Small graphs on small viewports would otherwise become unreadable.
	scale = math.Max(scale, style.MinScale)

	return domain.Camera{
		Offset: domain.Point{
			X: vp.Width/2 - (minX+maxX)/2*scale,
			Y: vp.Height/2 - (minY+maxY)/2*scale,
		},
		Scale: scale,
	}
}

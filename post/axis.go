package post

import (
	"image"
	"sort"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/soerenfi/raytracing/types"
)

// Axis draws a small world axis gizmo oriented like the camera.
type Axis struct {
	size int
	dc   *gg.Context
}

func NewAxis(size int) *Axis {
	if size < 16 {
		size = 16
	}
	return &Axis{size: size, dc: gg.NewContext(size, size)}
}

type axisLine struct {
	dir     types.Vec3
	r, g, b float64
	depth   float32
}

// Draw the gizmo into the bottom-left corner of dst.
func (a *Axis) Draw(dst *image.RGBA, view types.Mat4) error {
	lines := []axisLine{
		{dir: types.XYZ(1, 0, 0), r: 1, g: 0.2, b: 0.2},
		{dir: types.XYZ(0, 1, 0), r: 0.2, g: 1, b: 0.2},
		{dir: types.XYZ(0, 0, 1), r: 0.3, g: 0.3, b: 1},
	}
	for i := range lines {
		lines[i].dir = view.TransformDir(lines[i].dir)
		lines[i].depth = lines[i].dir[2]
	}
	// Axes pointing away from the viewer are drawn first
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].depth < lines[j].depth })

	a.dc.Clear()
	center := float64(a.size) / 2
	length := center * 0.8
	a.dc.SetLineWidth(2)
	for _, l := range lines {
		a.dc.SetRGB(l.r, l.g, l.b)
		a.dc.DrawLine(center, center, center+float64(l.dir[0])*length, center-float64(l.dir[1])*length)
		if err := a.dc.Stroke(); err != nil {
			return err
		}
	}

	bounds := dst.Bounds()
	target := image.Rect(bounds.Min.X, bounds.Max.Y-a.size, bounds.Min.X+a.size, bounds.Max.Y)
	draw.Draw(dst, target, a.dc.Image(), image.Point{}, draw.Over)
	return nil
}

func (a *Axis) Close() error {
	return a.dc.Close()
}

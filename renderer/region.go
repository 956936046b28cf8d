package renderer

import (
	"fmt"
	"image"

	"github.com/soerenfi/raytracing/tracer"
)

// The part of the output surface that receives the rendered image.
type Region struct {
	X, Y int
	W, H int
}

func FullRegion(w, h int) Region {
	return Region{W: w, H: h}
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Clip the region to a w x h surface. An empty result falls back to the
// whole surface.
func (r Region) Clip(w, h int) Region {
	rect := r.Rect().Intersect(image.Rect(0, 0, w, h))
	if rect.Empty() {
		return FullRegion(w, h)
	}
	return Region{X: rect.Min.X, Y: rect.Min.Y, W: rect.Dx(), H: rect.Dy()}
}

// Get the render size for the region. While descaling each axis is divided
// by the descaling level and clamped to at least one pixel.
func (r Region) RenderSize(fs *FrameState) tracer.Size {
	size := tracer.Size{W: r.W, H: r.H}
	if fs.Descaling {
		level := ClampDescalingLevel(fs.DescalingLevel)
		size.W /= level
		size.H /= level
	}
	if size.W < 1 {
		size.W = 1
	}
	if size.H < 1 {
		size.H = 1
	}
	return size
}

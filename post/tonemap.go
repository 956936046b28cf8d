package post

import (
	"image"
	"image/color"
	"math"

	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/types"
)

// Parameters of the tonemapping pass.
type Settings struct {
	// Exposure multiplier used when auto exposure is off.
	Exposure   float32
	Brightness float32
	Contrast   float32
	Saturation float32
	Vignette   float32

	// Derive the exposure from the average scene luminance.
	AutoExposure bool
	Ywhite       float32
	Key          float32

	// Fraction of the render region that holds rendered pixels. Set to
	// 1/descaling level while descaling.
	Zoom float32

	// Ratio between the source image (sized like the output surface) and
	// the render region.
	RenderingRatio types.Vec2
}

func DefaultSettings() Settings {
	return Settings{
		Exposure:       1,
		Brightness:     1,
		Contrast:       1,
		Saturation:     1,
		Ywhite:         0.5,
		Key:            0.5,
		Zoom:           1,
		RenderingRatio: types.XY(1, 1),
	}
}

// Tonemapper converts the accumulated float image into a displayable one.
type Tonemapper struct {
	Settings Settings
}

func NewTonemapper() *Tonemapper {
	return &Tonemapper{Settings: DefaultSettings()}
}

// Tonemap the rendered part of src into dst, which covers the render
// region. Rendered pixels occupy the top-left corner of src.
func (tm *Tonemapper) Apply(src *gpu.Image, dst *image.RGBA) {
	s := tm.Settings
	if s.Zoom <= 0 {
		s.Zoom = 1
	}
	ratio := s.RenderingRatio
	if ratio[0] <= 0 || ratio[1] <= 0 {
		ratio = types.XY(1, 1)
	}

	// Size of the rendered area in source pixels
	renderW := s.Zoom * float32(src.Width) / ratio[0]
	renderH := s.Zoom * float32(src.Height) / ratio[1]

	exposure := s.Exposure
	if s.AutoExposure {
		exposure = s.Key / maxf(averageLuminance(src, int(renderW), int(renderH)), 1e-4)
	}

	bounds := dst.Bounds()
	w, h := float32(bounds.Dx()), float32(bounds.Dy())
	for py := bounds.Min.Y; py < bounds.Max.Y; py++ {
		for px := bounds.Min.X; px < bounds.Max.X; px++ {
			u := (float32(px-bounds.Min.X) + 0.5) / w
			v := (float32(py-bounds.Min.Y) + 0.5) / h

			sx := min(int(u*renderW), src.Width-1)
			sy := min(int(v*renderH), src.Height-1)
			hdr := src.At(sx, sy).Vec3().Mul(exposure)

			var c types.Vec3
			if s.AutoExposure {
				c = reinhard(hdr, s.Ywhite)
			} else {
				c = filmic(hdr)
			}
			c = tm.grade(c, u, v)
			dst.SetRGBA(px, py, toRGBA(c))
		}
	}
}

// Apply contrast, brightness, saturation and vignetting to a tonemapped color.
func (tm *Tonemapper) grade(c types.Vec3, u, v float32) types.Vec3 {
	s := tm.Settings

	// contrast
	c = types.XYZ(0.5, 0.5, 0.5).Lerp(c, s.Contrast)
	c = types.XYZ(clamp01(c[0]), clamp01(c[1]), clamp01(c[2]))

	// brightness
	if s.Brightness > 0 {
		inv := float64(1 / s.Brightness)
		c = types.XYZ(
			float32(math.Pow(float64(c[0]), inv)),
			float32(math.Pow(float64(c[1]), inv)),
			float32(math.Pow(float64(c[2]), inv)),
		)
	}

	// saturation
	i := c[0]*0.299 + c[1]*0.587 + c[2]*0.114
	c = types.XYZ(i, i, i).Lerp(c, s.Saturation)

	// vignette
	if s.Vignette > 0 {
		du, dv := (u-0.5)*2, (v-0.5)*2
		c = c.Mul(maxf(0, 1-(du*du+dv*dv)*s.Vignette))
	}
	return c
}

// Get the average luminance of the top-left w x h pixels of an image.
func averageLuminance(src *gpu.Image, w, h int) float32 {
	w = min(max(1, w), src.Width)
	h = min(max(1, h), src.Height)

	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += float64(luminance(src.At(x, y).Vec3()))
		}
	}
	return float32(sum / float64(w*h))
}

// ACES filmic curve fit.
func filmic(c types.Vec3) types.Vec3 {
	var out types.Vec3
	for i, x := range c {
		x = maxf(x, 0)
		out[i] = (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
	}
	return out
}

// Extended Reinhard operator on luminance.
func reinhard(c types.Vec3, ywhite float32) types.Vec3 {
	l := luminance(c)
	if l <= 0 {
		return types.Vec3{}
	}
	white2 := maxf(ywhite*ywhite, 1e-4)
	mapped := l * (1 + l/white2) / (1 + l)
	return c.Mul(mapped / l)
}

func toRGBA(c types.Vec3) color.RGBA {
	return color.RGBA{R: toSRGB(c[0]), G: toSRGB(c[1]), B: toSRGB(c[2]), A: 255}
}

func toSRGB(v float32) uint8 {
	v = clamp01(v)
	return uint8(math.Pow(float64(v), 1/2.2)*255 + 0.5)
}

func luminance(c types.Vec3) float32 {
	return c[0]*0.2126 + c[1]*0.7152 + c[2]*0.0722
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

package env

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/soerenfi/raytracing/asset"
	"github.com/soerenfi/raytracing/asset/texture"
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/log"
	"github.com/soerenfi/raytracing/types"
)

// Descriptor bindings of the environment set.
const (
	SunSkyBinding uint32 = iota
	HdrBinding
	ImportanceBinding
)

var logger = log.New("env")

// An equirectangular HDR environment with the tables needed for importance
// sampling it.
type HDR struct {
	name string
	tex  *texture.Texture

	// Row selection CDF (height+1 entries) and per row column CDFs
	// (height * (width+1) entries).
	marginal    []float32
	conditional []float32
	totalWeight float32

	integral float32
}

// Create a constant white environment.
func NewHDR() *HDR {
	h, _ := NewHDRFromTexture("default", &texture.Texture{
		Format: texture.Rgba32F,
		Width:  1,
		Height: 1,
		Data:   []float32{1, 1, 1, 1},
	})
	return h
}

// Create an environment from a decoded texture.
func NewHDRFromTexture(name string, tex *texture.Texture) (*HDR, error) {
	if tex.Width == 0 || tex.Height == 0 {
		return nil, fmt.Errorf("env: empty environment texture %s", name)
	}
	h := &HDR{name: name, tex: tex}
	h.buildTables()
	return h, nil
}

// Load an HDR image from a local path or an http(s) URL.
func LoadHDR(pathToHdr string) (*HDR, error) {
	start := time.Now()
	res, err := asset.NewResource(pathToHdr)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	tex, err := texture.New(res)
	if err != nil {
		return nil, err
	}

	h, err := NewHDRFromTexture(res.RemotePath(), tex)
	if err != nil {
		return nil, err
	}
	logger.Noticef("loaded %s (%dx%d) in %d ms, integral %f", pathToHdr, tex.Width, tex.Height, time.Since(start).Nanoseconds()/1e6, h.integral)
	return h, nil
}

func (h *HDR) Name() string {
	return h.name
}

func (h *HDR) Size() (int, int) {
	return int(h.tex.Width), int(h.tex.Height)
}

// Get the average radiance over the sphere of directions.
func (h *HDR) Integral() float32 {
	return h.integral
}

// Get the descriptor layout of the environment set. It does not depend on
// the loaded image so environment loads only rebind resources.
func (h *HDR) Layout() gpu.Layout {
	return gpu.Layout{
		Name: "env",
		Bindings: []gpu.Binding{
			{Slot: SunSkyBinding, Kind: gpu.UniformBinding, Count: 1},
			{Slot: HdrBinding, Kind: gpu.TextureBinding, Count: 1},
			{Slot: ImportanceBinding, Kind: gpu.StorageBinding, Count: 1},
		},
	}
}

// Map a direction to equirectangular texture coordinates.
func dirToUV(dir types.Vec3) (float32, float32) {
	dir = dir.Normalize()
	u := 0.5 + math.Atan2(float64(dir[0]), float64(-dir[2]))/(2*math.Pi)
	y := math.Max(-1, math.Min(1, float64(dir[1])))
	v := math.Acos(y) / math.Pi
	return float32(u), float32(v)
}

func uvToDir(u, v float32) types.Vec3 {
	phi := (float64(u) - 0.5) * 2 * math.Pi
	theta := float64(v) * math.Pi
	sinTheta, cosTheta := math.Sincos(theta)
	sinPhi, cosPhi := math.Sincos(phi)
	return types.XYZ(float32(sinTheta*sinPhi), float32(cosTheta), float32(-sinTheta*cosPhi))
}

func (h *HDR) texel(x, y int) types.Vec3 {
	w, hh := int(h.tex.Width), int(h.tex.Height)
	if x >= w {
		x = w - 1
	}
	if y >= hh {
		y = hh - 1
	}
	r, g, b := h.tex.Texel(uint32(x), uint32(y))
	return types.XYZ(r, g, b)
}

// Get the environment radiance along a direction.
func (h *HDR) Lookup(dir types.Vec3) types.Vec3 {
	u, v := dirToUV(dir)
	return h.texel(int(u*float32(h.tex.Width)), int(v*float32(h.tex.Height)))
}

// Build the importance sampling tables. Texel weights are their luminance
// scaled by the solid angle they cover.
func (h *HDR) buildTables() {
	w, hh := int(h.tex.Width), int(h.tex.Height)
	h.marginal = make([]float32, hh+1)
	h.conditional = make([]float32, hh*(w+1))

	var integral float64
	for y := 0; y < hh; y++ {
		area := h.texelSolidAngle(y)
		row := h.conditional[y*(w+1) : (y+1)*(w+1)]
		for x := 0; x < w; x++ {
			weight := luminance(h.texel(x, y)) * area
			row[x+1] = row[x] + weight
			integral += float64(weight)
		}
		h.marginal[y+1] = h.marginal[y] + row[w]
	}

	h.totalWeight = h.marginal[hh]
	h.integral = float32(integral / (4 * math.Pi))
}

// Get the solid angle covered by a texel of row y.
func (h *HDR) texelSolidAngle(y int) float32 {
	hh := float64(h.tex.Height)
	theta0 := float64(y) * math.Pi / hh
	theta1 := float64(y+1) * math.Pi / hh
	return float32((math.Cos(theta0) - math.Cos(theta1)) * 2 * math.Pi / float64(h.tex.Width))
}

// Find the interval of a CDF that contains value.
func searchCDF(cdf []float32, value float32) int {
	n := len(cdf) - 1
	i := sort.Search(n, func(i int) bool { return cdf[i+1] > value })
	if i >= n {
		i = n - 1
	}
	return i
}

// Sample a direction proportionally to the environment radiance. Returns the
// direction and its solid angle pdf.
func (h *HDR) Sample(u1, u2 float32) (types.Vec3, float32) {
	w, hh := int(h.tex.Width), int(h.tex.Height)
	if h.totalWeight <= 0 {
		dir := uvToDir(u1, u2)
		return dir, 1 / (4 * math.Pi)
	}

	y := searchCDF(h.marginal, u1*h.totalWeight)
	row := h.conditional[y*(w+1) : (y+1)*(w+1)]
	x := searchCDF(row, u2*row[w])

	dir := uvToDir((float32(x)+0.5)/float32(w), (float32(y)+0.5)/float32(hh))
	return dir, h.Pdf(dir)
}

// Get the solid angle pdf of sampling a direction with Sample.
func (h *HDR) Pdf(dir types.Vec3) float32 {
	if h.totalWeight <= 0 {
		return 1 / (4 * math.Pi)
	}
	w, hh := int(h.tex.Width), int(h.tex.Height)
	u, v := dirToUV(dir)
	x, y := int(u*float32(w)), int(v*float32(hh))
	if x >= w {
		x = w - 1
	}
	if y >= hh {
		y = hh - 1
	}

	row := h.conditional[y*(w+1) : (y+1)*(w+1)]
	weight := row[x+1] - row[x]
	area := h.texelSolidAngle(y)
	if area <= 0 {
		return 0
	}

	return (weight / h.totalWeight) / area
}

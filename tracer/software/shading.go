package software

import (
	"math"
	"time"

	"github.com/soerenfi/raytracing/env"
	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/scene"
	"github.com/soerenfi/raytracing/tracer"
	"github.com/soerenfi/raytracing/types"
)

const rayEpsilon float32 = 1e-3

var defaultMaterial = scene.Material{
	Name:      "default",
	BaseColor: types.XYZ(0.8, 0.8, 0.8),
	Alpha:     1,
	Roughness: 1,
}

// Everything a frame needs, resolved from the descriptor sets when the
// frame's command executes.
type frameContext struct {
	state tracer.State
	size  tracer.Size

	camera    scene.Camera
	materials []scene.Material
	accel     *scene.Accel
	sky       env.SunAndSky
	hdr       *env.HDR
	filter    scene.HitFilter

	out *gpu.Image
}

// Skip hits on alpha masked materials whose alpha is below the cutoff.
func alphaMaskFilter(materials []scene.Material) scene.HitFilter {
	return func(hit *scene.Hit) bool {
		if hit.Material < 0 || hit.Material >= len(materials) {
			return true
		}
		mat := &materials[hit.Material]
		return !mat.AlphaMask || mat.Alpha >= mat.AlphaCutoff
	}
}

func (fc *frameContext) material(index int) *scene.Material {
	if index < 0 || index >= len(fc.materials) {
		return &defaultMaterial
	}
	return &fc.materials[index]
}

func (fc *frameContext) environment(dir types.Vec3) types.Vec3 {
	if fc.sky.InUse {
		return fc.sky.Eval(dir)
	}
	return fc.hdr.Lookup(dir).Mul(fc.state.HdrMultiplier)
}

// Render all samples of a pixel and blend them into the output image.
func (fc *frameContext) renderPixel(x, y int) {
	start := time.Now()
	rng := newSampler(uint32(y*fc.size.W+x), uint32(fc.state.Frame))

	samples := fc.state.MaxSamples
	if samples < 1 {
		samples = 1
	}

	var color types.Vec3
	for s := 0; s < samples; s++ {
		u := (float32(x) + rng.next()) / float32(fc.size.W)
		v := (float32(y) + rng.next()) / float32(fc.size.H)
		origin, dir := fc.camera.LensRay(u, v, rng.next(), rng.next())
		sample := fc.trace(origin, dir, &rng)
		if !finite(sample) {
			continue
		}
		color = color.Add(sample)
	}
	color = color.Mul(1 / float32(samples))

	if fc.state.DebugMode == tracer.DebugHeatmap {
		color = heatmap(time.Since(start), fc.state.MinHeatmap, fc.state.MaxHeatmap)
	}
	fc.store(x, y, color)
}

// Blend a new frame into the running average.
func (fc *frameContext) store(x, y int, color types.Vec3) {
	weight := 1 / float32(fc.state.Frame+1)
	if fc.state.Frame == 0 && fc.state.Accumulate {
		weight = 0.5
	}
	if weight >= 1 {
		fc.out.Set(x, y, color.Vec4(1))
		return
	}
	prev := fc.out.At(x, y).Vec3()
	fc.out.Set(x, y, prev.Lerp(color, weight).Vec4(1))
}

// Follow a path through the scene and return the radiance it carries.
func (fc *frameContext) trace(origin, dir types.Vec3, rng *sampler) types.Vec3 {
	var radiance types.Vec3
	throughput := types.XYZ(1, 1, 1)
	mode := fc.state.DebugMode

	for depth := 0; depth < fc.state.MaxDepth; depth++ {
		hit, ok := fc.accel.Intersect(origin, dir, scene.Infinity(), fc.filter)
		if !ok {
			if depth == 0 && mode != tracer.NoDebug && mode != tracer.DebugHeatmap {
				return fc.debugMiss(dir)
			}
			contribution := throughput.MulVec(fc.environment(dir))
			if depth > 0 {
				contribution = clampFirefly(contribution, fc.state.FireflyClampThreshold)
			}
			return radiance.Add(contribution)
		}

		mat := fc.material(hit.Material)
		normal := hit.Normal
		if normal.Dot(dir) > 0 {
			normal = normal.Mul(-1)
		}

		if depth == 0 {
			switch mode {
			case tracer.NoDebug, tracer.DebugHeatmap, tracer.DebugWeight:
			case tracer.DebugRadiance:
				return mat.Emissive.Add(fc.environment(normal).MulVec(mat.BaseColor))
			default:
				return fc.debugHit(&hit, mat, normal, dir)
			}
		}

		emitted := throughput.MulVec(mat.Emissive)
		if depth > 0 {
			emitted = clampFirefly(emitted, fc.state.FireflyClampThreshold)
		}
		radiance = radiance.Add(emitted)

		nextDir, weight := fc.scatter(mat, normal, dir, rng)
		throughput = throughput.MulVec(weight)
		if depth == 0 && mode == tracer.DebugWeight {
			return throughput
		}
		if throughput.MaxComponent() <= 0 {
			break
		}

		origin = hit.Position.Add(normal.Mul(rayEpsilon))
		dir = nextDir
	}

	return radiance
}

// Pick the next path direction and the throughput weight for it.
func (fc *frameContext) scatter(mat *scene.Material, normal, dir types.Vec3, rng *sampler) (types.Vec3, types.Vec3) {
	specular := mat.Metallic
	if fc.state.PbrMode == tracer.PbrDisney {
		// Dielectrics keep a faint specular layer
		specular = 0.04 + 0.96*mat.Metallic
	}

	if rng.next() < specular {
		reflected := reflect(dir, normal)
		fuzz := cosineSample(reflected, rng).Mul(mat.Roughness * mat.Roughness)
		out := reflected.Add(fuzz).Normalize()
		if out.Dot(normal) <= 0 {
			return out, types.Vec3{}
		}
		return out, types.XYZ(1, 1, 1).Lerp(mat.BaseColor, mat.Metallic)
	}

	return cosineSample(normal, rng), mat.BaseColor
}

func (fc *frameContext) debugHit(hit *scene.Hit, mat *scene.Material, normal, dir types.Vec3) types.Vec3 {
	switch fc.state.DebugMode {
	case tracer.DebugBaseColor:
		return mat.BaseColor
	case tracer.DebugNormal:
		return toColor(normal)
	case tracer.DebugMetallic:
		return grey(mat.Metallic)
	case tracer.DebugEmissive:
		return mat.Emissive
	case tracer.DebugAlpha:
		return grey(mat.Alpha)
	case tracer.DebugRoughness:
		return grey(mat.Roughness)
	case tracer.DebugTexCoord:
		return types.XYZ(hit.U, hit.V, 0)
	case tracer.DebugTangent:
		tangent, _ := basis(normal)
		return toColor(tangent)
	case tracer.DebugDepth:
		return grey(1 / (1 + hit.Distance))
	case tracer.DebugRayDir:
		return toColor(dir)
	}
	return types.Vec3{}
}

func (fc *frameContext) debugMiss(dir types.Vec3) types.Vec3 {
	switch fc.state.DebugMode {
	case tracer.DebugRadiance:
		return fc.environment(dir)
	case tracer.DebugRayDir:
		return toColor(dir)
	}
	return types.Vec3{}
}

// Scale down contributions brighter than threshold. A threshold <= 0
// disables clamping.
func clampFirefly(c types.Vec3, threshold float32) types.Vec3 {
	if threshold <= 0 {
		return c
	}
	lum := c[0]*0.212671 + c[1]*0.715160 + c[2]*0.072169
	if lum > threshold {
		return c.Mul(threshold / lum)
	}
	return c
}

// Map the heat map time bounds to a blue-green-red ramp.
func heatmap(elapsed time.Duration, minNs, maxNs int) types.Vec3 {
	span := float32(maxNs - minNs)
	if span <= 0 {
		span = 1
	}
	t := (float32(elapsed.Nanoseconds()) - float32(minNs)) / span
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	if t < 0.5 {
		return types.XYZ(0, t*2, 1-t*2)
	}
	return types.XYZ((t-0.5)*2, 1-(t-0.5)*2, 0)
}

func reflect(d, n types.Vec3) types.Vec3 {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}

// Build an orthonormal basis around n.
func basis(n types.Vec3) (types.Vec3, types.Vec3) {
	up := types.XYZ(0, 1, 0)
	if math.Abs(float64(n[1])) > 0.999 {
		up = types.XYZ(1, 0, 0)
	}
	t := up.Cross(n).Normalize()
	return t, n.Cross(t)
}

// Cosine weighted direction in the hemisphere around n.
func cosineSample(n types.Vec3, rng *sampler) types.Vec3 {
	r1, r2 := rng.next(), rng.next()
	phi := 2 * math.Pi * float64(r1)
	r := math.Sqrt(float64(r2))
	sinPhi, cosPhi := math.Sincos(phi)

	t, b := basis(n)
	return t.Mul(float32(r * cosPhi)).
		Add(b.Mul(float32(r * sinPhi))).
		Add(n.Mul(float32(math.Sqrt(1 - float64(r2))))).
		Normalize()
}

func toColor(v types.Vec3) types.Vec3 {
	return v.Mul(0.5).Add(types.XYZ(0.5, 0.5, 0.5))
}

func grey(v float32) types.Vec3 {
	return types.XYZ(v, v, v)
}

func finite(c types.Vec3) bool {
	for _, v := range c {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

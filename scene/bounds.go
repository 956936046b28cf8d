package scene

import (
	"math"

	"github.com/soerenfi/raytracing/types"
)

// An axis-aligned bounding box.
type Bounds struct {
	Min types.Vec3
	Max types.Vec3
}

// Create an empty bounding box that can be grown with Extend.
func EmptyBounds() Bounds {
	inf := float32(math.Inf(1))
	return Bounds{
		Min: types.XYZ(inf, inf, inf),
		Max: types.XYZ(-inf, -inf, -inf),
	}
}

// Returns true if the box encloses at least one point.
func (b Bounds) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

func (b Bounds) Extend(p types.Vec3) Bounds {
	return Bounds{Min: types.MinVec3(b.Min, p), Max: types.MaxVec3(b.Max, p)}
}

func (b Bounds) Union(o Bounds) Bounds {
	if !o.Valid() {
		return b
	}
	return Bounds{Min: types.MinVec3(b.Min, o.Min), Max: types.MaxVec3(b.Max, o.Max)}
}

func (b Bounds) Center() types.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Bounds) Size() types.Vec3 {
	return b.Max.Sub(b.Min)
}

// Transform the 8 box corners and return their bounds.
func (b Bounds) Transform(m types.Mat4) Bounds {
	out := EmptyBounds()
	for corner := 0; corner < 8; corner++ {
		p := b.Min
		if corner&1 != 0 {
			p[0] = b.Max[0]
		}
		if corner&2 != 0 {
			p[1] = b.Max[1]
		}
		if corner&4 != 0 {
			p[2] = b.Max[2]
		}
		out = out.Extend(m.TransformPoint(p))
	}
	return out
}

// Slab test. Returns the entry distance along the ray and whether the ray
// hits the box closer than tMax.
func (b Bounds) Intersect(origin, invDir types.Vec3, tMax float32) (float32, bool) {
	tNear, tFar := float32(0), tMax
	for axis := 0; axis < 3; axis++ {
		t0 := (b.Min[axis] - origin[axis]) * invDir[axis]
		t1 := (b.Max[axis] - origin[axis]) * invDir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return 0, false
		}
	}
	return tNear, true
}

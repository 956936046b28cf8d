package scene

import (
	"math"

	"github.com/soerenfi/raytracing/gpu"
	"github.com/soerenfi/raytracing/types"
)

const (
	// Triangles per bottom level leaf.
	minLeafTriangles = 4

	// Descriptor binding of the top level structure.
	TlasBinding uint32 = 0

	triangleEpsilon float32 = 1e-7
)

// A triangle prepared for intersection tests.
type triangle struct {
	v0, e1, e2 types.Vec3
	bounds     Bounds
}

func (t *triangle) BBox() Bounds       { return t.bounds }
func (t *triangle) Center() types.Vec3 { return t.bounds.Center() }

// Moller-Trumbore ray/triangle test.
func (t *triangle) intersect(origin, dir types.Vec3, tMax float32) (float32, float32, float32, bool) {
	pvec := dir.Cross(t.e2)
	det := t.e1.Dot(pvec)
	if det > -triangleEpsilon && det < triangleEpsilon {
		return 0, 0, 0, false
	}
	invDet := 1 / det

	tvec := origin.Sub(t.v0)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	qvec := tvec.Cross(t.e1)
	v := dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	dist := t.e2.Dot(qvec) * invDet
	if dist <= triangleEpsilon || dist >= tMax {
		return 0, 0, 0, false
	}
	return dist, u, v, true
}

// Bottom level structure for a primitive mesh.
type blas struct {
	bvh       *Bvh
	triangles []triangle
}

// Top level instance entry.
type tlasInstance struct {
	instance     int
	mesh         int
	material     int
	toWorld      types.Mat4
	toObject     types.Mat4
	normalMatrix types.Mat4
	bounds       Bounds
}

func (inst *tlasInstance) BBox() Bounds       { return inst.bounds }
func (inst *tlasInstance) Center() types.Vec3 { return inst.bounds.Center() }

// A ray hit.
type Hit struct {
	Distance  float32
	Instance  int
	Primitive int
	Material  int

	Position types.Vec3
	Normal   types.Vec3
	U, V     float32
}

// A filter invoked for candidate hits. Returning false ignores the hit.
type HitFilter func(hit *Hit) bool

// A two level acceleration structure: a bvh over the triangles of every
// primitive mesh and a top level bvh over the scene instances.
type Accel struct {
	blas      []blas
	instances []tlasInstance
	tlas      *Bvh
	bounds    Bounds
}

// Build the acceleration structure for a scene.
func BuildAccel(sc *Scene) *Accel {
	a := &Accel{
		blas:   make([]blas, len(sc.Meshes)),
		bounds: sc.Bounds(),
	}

	for meshIndex, pm := range sc.Meshes {
		tris := make([]triangle, len(pm.Indices)/3)
		work := make([]BoundedVolume, len(tris))
		for i := range tris {
			v0 := pm.Positions[pm.Indices[i*3]]
			v1 := pm.Positions[pm.Indices[i*3+1]]
			v2 := pm.Positions[pm.Indices[i*3+2]]
			tris[i] = triangle{
				v0:     v0,
				e1:     v1.Sub(v0),
				e2:     v2.Sub(v0),
				bounds: EmptyBounds().Extend(v0).Extend(v1).Extend(v2),
			}
			work[i] = &tris[i]
		}
		a.blas[meshIndex] = blas{bvh: BuildBvh(work, minLeafTriangles), triangles: tris}
	}

	a.instances = make([]tlasInstance, len(sc.Instances))
	work := make([]BoundedVolume, len(sc.Instances))
	for i, inst := range sc.Instances {
		toObject := inst.Transform.Inv()
		a.instances[i] = tlasInstance{
			instance:     i,
			mesh:         inst.Mesh,
			material:     sc.Meshes[inst.Mesh].Material,
			toWorld:      inst.Transform,
			toObject:     toObject,
			normalMatrix: transpose(toObject),
			bounds:       inst.Bounds,
		}
		work[i] = &a.instances[i]
	}
	a.tlas = BuildBvh(work, 1)

	return a
}

// Get the top level bvh.
func (a *Accel) TLAS() *Bvh {
	return a.tlas
}

func (a *Accel) Bounds() Bounds {
	return a.bounds
}

// Get the descriptor layout of the acceleration structure set.
func (a *Accel) Layout() gpu.Layout {
	return gpu.Layout{
		Name:     "accel",
		Bindings: []gpu.Binding{{Slot: TlasBinding, Kind: gpu.AccelBinding, Count: 1}},
	}
}

// Find the closest hit along a ray. Candidate hits rejected by filter are
// skipped; a nil filter accepts every hit.
func (a *Accel) Intersect(origin, dir types.Vec3, tMax float32, filter HitFilter) (Hit, bool) {
	var best Hit
	found := false

	a.tlas.Traverse(origin, dir, tMax, func(item int, tMax float32) (float32, bool) {
		inst := &a.instances[item]
		if hit, ok := a.intersectInstance(inst, origin, dir, tMax, filter); ok {
			best, found = hit, true
			return hit.Distance, false
		}
		return tMax, false
	})

	return best, found
}

// Returns true if anything blocks the ray before tMax.
func (a *Accel) Occluded(origin, dir types.Vec3, tMax float32, filter HitFilter) bool {
	occluded := false
	a.tlas.Traverse(origin, dir, tMax, func(item int, tMax float32) (float32, bool) {
		if _, ok := a.intersectInstance(&a.instances[item], origin, dir, tMax, filter); ok {
			occluded = true
			return tMax, true
		}
		return tMax, false
	})
	return occluded
}

// Intersect a ray with an instance in object space. The direction is not
// normalized after the transform so distances stay in world units.
func (a *Accel) intersectInstance(inst *tlasInstance, origin, dir types.Vec3, tMax float32, filter HitFilter) (Hit, bool) {
	objOrigin := inst.toObject.TransformPoint(origin)
	objDir := inst.toObject.TransformDir(dir)

	mesh := &a.blas[inst.mesh]
	var best Hit
	found := false
	mesh.bvh.Traverse(objOrigin, objDir, tMax, func(item int, tMax float32) (float32, bool) {
		tri := &mesh.triangles[item]
		dist, u, v, ok := tri.intersect(objOrigin, objDir, tMax)
		if !ok {
			return tMax, false
		}

		hit := Hit{
			Distance:  dist,
			Instance:  inst.instance,
			Primitive: item,
			Material:  inst.material,
			Position:  origin.Add(dir.Mul(dist)),
			Normal:    inst.normalMatrix.TransformDir(tri.e1.Cross(tri.e2)).Normalize(),
			U:         u,
			V:         v,
		}
		if filter != nil && !filter(&hit) {
			return tMax, false
		}
		best, found = hit, true
		return dist, false
	})
	return best, found
}

func transpose(m types.Mat4) types.Mat4 {
	var out types.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = m[r*4+c]
		}
	}
	return out
}

// Get a large distance usable as an open ended tMax.
func Infinity() float32 {
	return float32(math.Inf(1))
}

package scene

import (
	"math/rand"
	"testing"

	"github.com/soerenfi/raytracing/types"
)

// Build a scene with a grid of unit quads facing +Z at various depths.
func gridScene(size int) *Scene {
	sc := New()
	quad := PrimMesh{
		Name:      "quad",
		Material:  0,
		Positions: []types.Vec3{{-0.5, -0.5, 0}, {0.5, -0.5, 0}, {0.5, 0.5, 0}, {-0.5, 0.5, 0}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
		Bounds:    Bounds{Min: types.XYZ(-0.5, -0.5, 0), Max: types.XYZ(0.5, 0.5, 0)},
	}
	sc.Meshes = append(sc.Meshes, quad)
	sc.Materials = append(sc.Materials, Material{BaseColor: types.XYZ(1, 1, 1), Alpha: 1})

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			transform := types.Translate3D(types.XYZ(float32(x)*1.5, float32(y)*1.5, -float32((x+y)%3)))
			sc.Instances = append(sc.Instances, Instance{
				Mesh:      0,
				Transform: transform,
				Bounds:    quad.Bounds.Transform(transform),
			})
			sc.bounds = sc.bounds.Union(sc.Instances[len(sc.Instances)-1].Bounds)
		}
	}
	return sc
}

// Find the closest hit by testing every triangle.
func bruteForceHit(a *Accel, origin, dir types.Vec3) (Hit, bool) {
	var best Hit
	found := false
	tMax := Infinity()
	for i := range a.instances {
		inst := &a.instances[i]
		objOrigin := inst.toObject.TransformPoint(origin)
		objDir := inst.toObject.TransformDir(dir)
		for triIndex := range a.blas[inst.mesh].triangles {
			if dist, _, _, ok := a.blas[inst.mesh].triangles[triIndex].intersect(objOrigin, objDir, tMax); ok {
				tMax = dist
				best = Hit{Distance: dist, Instance: i, Primitive: triIndex}
				found = true
			}
		}
	}
	return best, found
}

func TestAccelMatchesBruteForce(t *testing.T) {
	accel := BuildAccel(gridScene(8))
	rng := rand.New(rand.NewSource(42))

	for rayIndex := 0; rayIndex < 500; rayIndex++ {
		origin := types.XYZ(rng.Float32()*12-1, rng.Float32()*12-1, 5)
		target := types.XYZ(rng.Float32()*12-1, rng.Float32()*12-1, -3)
		dir := target.Sub(origin).Normalize()

		expHit, expOk := bruteForceHit(accel, origin, dir)
		hit, ok := accel.Intersect(origin, dir, Infinity(), nil)
		if ok != expOk {
			t.Fatalf("[ray %d] expected hit = %t; got %t", rayIndex, expOk, ok)
		}
		if !ok {
			continue
		}
		if hit.Instance != expHit.Instance || hit.Primitive != expHit.Primitive {
			t.Fatalf("[ray %d] expected instance %d primitive %d; got instance %d primitive %d", rayIndex, expHit.Instance, expHit.Primitive, hit.Instance, hit.Primitive)
		}
		if diff := hit.Distance - expHit.Distance; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("[ray %d] expected distance %f; got %f", rayIndex, expHit.Distance, hit.Distance)
		}
		if hit.Normal[2] < 0.99 && hit.Normal[2] > -0.99 {
			t.Fatalf("[ray %d] expected a normal along Z; got %v", rayIndex, hit.Normal)
		}
	}
}

func TestAccelFilterAndOcclusion(t *testing.T) {
	accel := BuildAccel(gridScene(1))
	origin, dir := types.XYZ(0, 0, 5), types.XYZ(0, 0, -1)

	if !accel.Occluded(origin, dir, 10, nil) {
		t.Fatal("expected the quad to occlude the ray")
	}
	if accel.Occluded(origin, dir, 4, nil) {
		t.Fatal("expected no occlusion before the quad")
	}

	rejectAll := func(*Hit) bool { return false }
	if _, ok := accel.Intersect(origin, dir, Infinity(), rejectAll); ok {
		t.Fatal("expected filtered hits to be ignored")
	}
}

func TestEmptyAccel(t *testing.T) {
	accel := BuildAccel(New())
	if _, ok := accel.Intersect(types.XYZ(0, 0, 0), types.XYZ(0, 0, -1), Infinity(), nil); ok {
		t.Fatal("expected no hits in an empty scene")
	}
}

func TestPicker(t *testing.T) {
	accel := BuildAccel(gridScene(2))
	picker := NewPicker(accel)

	cam := NewCamera(45)
	cam.SetLookAt(types.XYZ(1.5, 0, 10), types.XYZ(1.5, 0, 0), types.XYZ(0, 1, 0))

	type spec struct {
		u, v        float32
		expHit      bool
		expInstance int
	}
	specs := []spec{
		{0.5, 0.5, true, 1},
		{-0.1, 0.5, false, 0},
		{0.5, 1.5, false, 0},
	}

	for index, s := range specs {
		res := picker.Pick(cam, s.u, s.v)
		if res.Hit != s.expHit {
			t.Fatalf("[spec %d] expected hit = %t; got %t", index, s.expHit, res.Hit)
		}
		if s.expHit && res.Instance != s.expInstance {
			t.Fatalf("[spec %d] expected to pick instance %d; got %d", index, s.expInstance, res.Instance)
		}
	}

	// Looking away from the scene
	cam.SetLookAt(types.XYZ(0, 0, 10), types.XYZ(0, 0, 20), types.XYZ(0, 1, 0))
	if res := picker.Pick(cam, 0.5, 0.5); res.Hit {
		t.Fatalf("expected a miss; got %s", res)
	}
}

func TestBvhLeafSize(t *testing.T) {
	sc := gridScene(6)
	work := make([]BoundedVolume, len(sc.Instances))
	for i := range sc.Instances {
		work[i] = &tlasInstance{bounds: sc.Instances[i].Bounds}
	}

	bvh := BuildBvh(work, 2)
	if len(bvh.Items) != len(work) {
		t.Fatalf("expected every item to be stored in a leaf exactly once; got %d of %d", len(bvh.Items), len(work))
	}

	seen := make(map[int]bool)
	for _, node := range bvh.Nodes {
		if !node.IsLeaf() {
			continue
		}
		for _, item := range bvh.Items[node.First : node.First+node.Count] {
			if seen[item] {
				t.Fatalf("item %d stored twice", item)
			}
			seen[item] = true
			itemBounds := work[item].BBox()
			if node.Bounds.Union(itemBounds) != node.Bounds {
				t.Fatalf("expected leaf bounds %v to enclose item %d bounds %v", node.Bounds, item, itemBounds)
			}
		}
	}
}
